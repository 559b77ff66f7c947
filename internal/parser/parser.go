// Package parser turns fetch outcomes into documents: extracted text,
// content hashes, and outbound links annotated with priority hints for the
// frontier. Parse failures yield nil and never propagate to the scheduler.
package parser

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/hfujita/laneway/internal/fetcher"
)

// Link priorities handed back to the frontier. Lower dispatches sooner.
const (
	PriorityNavigation = 0 // Next-page style navigation links
	PriorityContent    = 1 // Ordinary same-site content pages
	PriorityAsset      = 2 // PDFs and other auxiliary downloads
)

// LinkHint is a discovered link with the priority the parser suggests.
type LinkHint struct {
	URL        string
	Priority   int
	AnchorText string
}

// Document is extracted content ready for dedup and persistence.
type Document struct {
	URL         string
	FinalURL    string
	Title       string
	Text        string
	ContentHash string
	ContentType string
	Links       []LinkHint
	FetchedAt   time.Time
}

// nextPagePatterns match anchor text or title attributes of forward
// navigation links, which get top dispatch priority so paginated content
// is walked in order.
var nextPagePatterns = []string{"next page", "next", "下一頁", "下頁", "繼續"}

var (
	blankLines = regexp.MustCompile(`\n\s*\n\s*\n+`)
	runsOfWS   = regexp.MustCompile(`[ \t]+`)
)

// Parser classifies content and extracts text and outbound links.
type Parser struct{}

// New creates a parser.
func New() *Parser {
	return &Parser{}
}

// Parse produces a Document from a fetch outcome, or nil when the outcome
// carries no parseable content. PDFs become metadata-only documents; text
// extraction for them is out of scope here.
func (p *Parser) Parse(outcome *fetcher.Outcome) *Document {
	if outcome == nil || outcome.Error != "" || outcome.StatusCode != 200 {
		return nil
	}

	switch {
	case outcome.IsHTML():
		return p.parseHTML(outcome)
	case outcome.IsPDF():
		return p.parsePDF(outcome)
	default:
		slog.Debug("Skipping unsupported content type", "url", outcome.URL, "content_type", outcome.ContentType)
		return nil
	}
}

func (p *Parser) parseHTML(outcome *fetcher.Outcome) *Document {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(outcome.Body))
	if err != nil {
		slog.Warn("Failed to parse HTML", "url", outcome.URL, "error", err)
		return nil
	}

	base, err := url.Parse(outcome.FinalURL)
	if err != nil {
		base, err = url.Parse(outcome.URL)
		if err != nil {
			return nil
		}
	}

	title := extractTitle(doc)
	links := p.extractLinks(doc, base)
	text := extractText(doc)

	return &Document{
		URL:         outcome.URL,
		FinalURL:    outcome.FinalURL,
		Title:       title,
		Text:        text,
		ContentHash: hashContent([]byte(text)),
		ContentType: "text/html",
		Links:       links,
		FetchedAt:   time.Now().UTC(),
	}
}

// parsePDF records the download without extracting text.
func (p *Parser) parsePDF(outcome *fetcher.Outcome) *Document {
	title := outcome.URL
	if u, err := url.Parse(outcome.URL); err == nil {
		if name := path.Base(u.Path); name != "" && name != "/" && name != "." {
			title = name
		}
	}
	return &Document{
		URL:         outcome.URL,
		FinalURL:    outcome.FinalURL,
		Title:       title,
		ContentHash: hashContent(outcome.Body),
		ContentType: "application/pdf",
		FetchedAt:   time.Now().UTC(),
	}
}

func extractTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if t := strings.TrimSpace(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	if t, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok && strings.TrimSpace(t) != "" {
		return strings.TrimSpace(t)
	}
	return "Untitled"
}

// extractLinks resolves every anchor href against base and assigns a
// priority hint: navigation links first, then same-host content pages,
// then auxiliary downloads.
func (p *Parser) extractLinks(doc *goquery.Document, base *url.URL) []LinkHint {
	var links []LinkHint
	seen := make(map[string]struct{})

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		resolved.Fragment = ""
		target := resolved.String()
		if _, ok := seen[target]; ok {
			return
		}
		seen[target] = struct{}{}

		anchor := strings.TrimSpace(sel.Text())
		titleAttr, _ := sel.Attr("title")

		links = append(links, LinkHint{
			URL:        target,
			Priority:   classifyLink(resolved, base, anchor, titleAttr),
			AnchorText: anchor,
		})
	})
	return links
}

func classifyLink(target, base *url.URL, anchorText, titleAttr string) int {
	if isNextPageText(anchorText) || isNextPageText(titleAttr) {
		return PriorityNavigation
	}
	if strings.HasSuffix(strings.ToLower(target.Path), ".pdf") {
		return PriorityAsset
	}
	lower := strings.ToLower(anchorText)
	if strings.Contains(lower, "download") || strings.Contains(lower, "下載") {
		return PriorityAsset
	}
	return PriorityContent
}

func isNextPageText(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return false
	}
	for _, pattern := range nextPagePatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// extractText pulls readable text from the main content region, dropping
// script, style and chrome elements first.
func extractText(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer, aside").Remove()

	region := doc.Find("body")
	for _, selector := range []string{"main", "article", `[role="main"]`, "#content", ".content", "#main", ".main"} {
		if sel := doc.Find(selector); sel.Length() > 0 {
			region = sel.First()
			break
		}
	}
	if region.Length() == 0 {
		region = doc.Selection
	}

	var sb strings.Builder
	for _, node := range region.Nodes {
		writeNodeText(node, &sb)
	}

	text := blankLines.ReplaceAllString(sb.String(), "\n\n")
	text = runsOfWS.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// writeNodeText walks the HTML tree, inserting newlines around block-level
// elements so paragraph structure survives into the extracted text.
func writeNodeText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			sb.WriteString(t)
			sb.WriteByte(' ')
		}
		return
	}
	block := false
	if n.Type == html.ElementNode {
		switch n.Data {
		case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6", "li", "tr", "br", "section":
			block = true
		}
	}
	if block {
		sb.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeNodeText(c, sb)
	}
	if block {
		sb.WriteByte('\n')
	}
}

func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return fmt.Sprintf("%x", sum)
}
