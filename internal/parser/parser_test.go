package parser

import (
	"strings"
	"testing"

	"github.com/hfujita/laneway/internal/fetcher"
)

func htmlOutcome(url, body string) *fetcher.Outcome {
	return &fetcher.Outcome{
		URL:         url,
		FinalURL:    url,
		StatusCode:  200,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(body),
	}
}

func TestParseSkipsUnusableOutcomes(t *testing.T) {
	p := New()

	tests := []struct {
		name    string
		outcome *fetcher.Outcome
	}{
		{"nil outcome", nil},
		{"fetch error", &fetcher.Outcome{URL: "https://x.com", Error: "timeout", StatusCode: 0}},
		{"not found", &fetcher.Outcome{URL: "https://x.com", StatusCode: 404, ContentType: "text/html"}},
		{"unsupported type", &fetcher.Outcome{URL: "https://x.com", StatusCode: 200, ContentType: "image/png"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if doc := p.Parse(tt.outcome); doc != nil {
				t.Errorf("Parse returned %+v, want nil", doc)
			}
		})
	}
}

func TestParseHTMLBasics(t *testing.T) {
	body := `<html><head><title>Annual Report</title></head>
	<body>
	<nav>Site navigation to ignore</nav>
	<main>
		<h1>Annual Report</h1>
		<p>First paragraph of the report.</p>
		<p>Second paragraph with details.</p>
		<script>var tracked = true;</script>
	</main>
	<footer>Copyright notice</footer>
	</body></html>`

	doc := New().Parse(htmlOutcome("https://example.com/report", body))
	if doc == nil {
		t.Fatal("Parse returned nil")
	}

	if doc.Title != "Annual Report" {
		t.Errorf("Title = %q", doc.Title)
	}
	if !strings.Contains(doc.Text, "First paragraph") || !strings.Contains(doc.Text, "Second paragraph") {
		t.Errorf("Text missing content: %q", doc.Text)
	}
	if strings.Contains(doc.Text, "navigation to ignore") || strings.Contains(doc.Text, "Copyright") {
		t.Errorf("Text includes chrome: %q", doc.Text)
	}
	if strings.Contains(doc.Text, "tracked") {
		t.Errorf("Text includes script content: %q", doc.Text)
	}
	if doc.ContentHash == "" {
		t.Error("ContentHash empty")
	}
	if doc.ContentType != "text/html" {
		t.Errorf("ContentType = %q", doc.ContentType)
	}
}

func TestTitleFallbacks(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"title tag", `<html><head><title>From Title</title></head><body><h1>From H1</h1></body></html>`, "From Title"},
		{"h1 fallback", `<html><body><h1>From H1</h1></body></html>`, "From H1"},
		{"og:title fallback", `<html><head><meta property="og:title" content="From OG"></head><body><p>x</p></body></html>`, "From OG"},
		{"no title anywhere", `<html><body><p>x</p></body></html>`, "Untitled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := New().Parse(htmlOutcome("https://example.com/", tt.body))
			if doc == nil {
				t.Fatal("Parse returned nil")
			}
			if doc.Title != tt.want {
				t.Errorf("Title = %q, want %q", doc.Title, tt.want)
			}
		})
	}
}

func TestExtractLinksResolvesAndFilters(t *testing.T) {
	body := `<html><body><main>
	<a href="/about">About us</a>
	<a href="page2.html">Details</a>
	<a href="https://other.org/x">External</a>
	<a href="#section">In-page</a>
	<a href="javascript:void(0)">JS</a>
	<a href="mailto:a@b.com">Mail</a>
	<a href="/about">About again</a>
	</main></body></html>`

	doc := New().Parse(htmlOutcome("https://example.com/dir/index.html", body))
	if doc == nil {
		t.Fatal("Parse returned nil")
	}

	got := make(map[string]bool)
	for _, l := range doc.Links {
		got[l.URL] = true
	}

	want := []string{
		"https://example.com/about",
		"https://example.com/dir/page2.html",
		"https://other.org/x",
	}
	if len(doc.Links) != len(want) {
		t.Fatalf("Links = %v, want %d entries", doc.Links, len(want))
	}
	for _, w := range want {
		if !got[w] {
			t.Errorf("missing link %s in %v", w, doc.Links)
		}
	}
}

func TestLinkPriorities(t *testing.T) {
	body := `<html><body><main>
	<a href="/page/2">Next page</a>
	<a href="/page/3">下一頁</a>
	<a href="/report.pdf">Annual figures</a>
	<a href="/files/data">Download dataset</a>
	<a href="/article">Interesting article</a>
	</main></body></html>`

	doc := New().Parse(htmlOutcome("https://example.com/", body))
	if doc == nil {
		t.Fatal("Parse returned nil")
	}

	wantByURL := map[string]int{
		"https://example.com/page/2":     PriorityNavigation,
		"https://example.com/page/3":     PriorityNavigation,
		"https://example.com/report.pdf": PriorityAsset,
		"https://example.com/files/data": PriorityAsset,
		"https://example.com/article":    PriorityContent,
	}
	for _, l := range doc.Links {
		want, ok := wantByURL[l.URL]
		if !ok {
			t.Errorf("unexpected link %s", l.URL)
			continue
		}
		if l.Priority != want {
			t.Errorf("priority of %s = %d, want %d", l.URL, l.Priority, want)
		}
	}
}

func TestLinksResolveAgainstFinalURL(t *testing.T) {
	outcome := htmlOutcome("https://example.com/old", `<html><body><a href="sibling">Link</a></body></html>`)
	outcome.FinalURL = "https://example.com/moved/new"

	doc := New().Parse(outcome)
	if doc == nil {
		t.Fatal("Parse returned nil")
	}
	if len(doc.Links) != 1 || doc.Links[0].URL != "https://example.com/moved/sibling" {
		t.Errorf("Links = %v, want resolution against the final URL", doc.Links)
	}
}

func TestIdenticalTextSameHash(t *testing.T) {
	page := func(extra string) string {
		return `<html><head><title>T</title>` + extra + `</head><body><main><p>Same body text here.</p></main></body></html>`
	}

	a := New().Parse(htmlOutcome("https://example.com/a", page("")))
	b := New().Parse(htmlOutcome("https://example.com/b", page(`<meta name="x" content="different head">`)))
	if a == nil || b == nil {
		t.Fatal("Parse returned nil")
	}
	if a.ContentHash != b.ContentHash {
		t.Errorf("hashes differ for identical extracted text: %s vs %s", a.ContentHash, b.ContentHash)
	}
}

func TestParsePDFMetadataOnly(t *testing.T) {
	outcome := &fetcher.Outcome{
		URL:         "https://example.com/docs/report-2026.pdf",
		FinalURL:    "https://example.com/docs/report-2026.pdf",
		StatusCode:  200,
		ContentType: "application/pdf",
		Body:        []byte("%PDF-1.7 fake content"),
	}

	doc := New().Parse(outcome)
	if doc == nil {
		t.Fatal("Parse returned nil")
	}
	if doc.Title != "report-2026.pdf" {
		t.Errorf("Title = %q", doc.Title)
	}
	if doc.Text != "" {
		t.Errorf("Text = %q, want empty for PDF", doc.Text)
	}
	if doc.ContentHash == "" {
		t.Error("ContentHash empty")
	}
	if doc.ContentType != "application/pdf" {
		t.Errorf("ContentType = %q", doc.ContentType)
	}
}
