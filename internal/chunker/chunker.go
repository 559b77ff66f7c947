// Package chunker splits extracted document text into overlapping chunks
// sized in approximate tokens, respecting paragraph and sentence boundaries
// where possible.
package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Chunk is one piece of a document's text.
type Chunk struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	TokenCount int    `json:"token_count"`
	Index      int    `json:"index"`
}

// Chunker splits text into token-bounded chunks.
type Chunker struct {
	chunkSize int // Target size in approximate tokens
	overlap   int // Overlap between consecutive chunks, in tokens
}

var (
	paragraphSplit = regexp.MustCompile(`\n\s*\n`)
	// CJK sentence enders split without trailing whitespace; Chinese prose
	// has none.
	sentenceEnd = regexp.MustCompile(`[.!?]\s+|[。！？]\s*`)
)

// New creates a chunker producing chunks of roughly chunkSize tokens with
// the given overlap. Zero or negative values fall back to sane defaults.
func New(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = chunkSize / 10
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}
}

// EstimateTokens approximates the token count of text. One token is taken
// as four characters, which tracks common BPE vocabularies closely enough
// for sizing purposes.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// Split chunks content, labeling each chunk with docID. Paragraphs are
// packed whole until the target size is reached; paragraphs larger than a
// whole chunk are split on sentence boundaries.
func (c *Chunker) Split(docID, content string) []Chunk {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	var pieces []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			pieces = append(pieces, current.String())
			current.Reset()
		}
	}

	for _, para := range splitParagraphs(content) {
		if EstimateTokens(para) > c.chunkSize {
			flush()
			pieces = append(pieces, c.splitLargeParagraph(para)...)
			continue
		}

		joined := para
		if current.Len() > 0 {
			joined = current.String() + "\n\n" + para
		}
		if EstimateTokens(joined) > c.chunkSize {
			flush()
			current.WriteString(para)
		} else {
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(para)
		}
	}
	flush()

	pieces = c.applyOverlap(pieces)

	chunks := make([]Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, Chunk{
			ID:         fmt.Sprintf("%s-%04d", docID, i),
			Content:    piece,
			TokenCount: EstimateTokens(piece),
			Index:      i,
		})
	}
	return chunks
}

// splitLargeParagraph breaks an oversized paragraph on sentence boundaries,
// falling back to hard character cuts for pathological run-on text.
func (c *Chunker) splitLargeParagraph(para string) []string {
	sentences := splitSentences(para)

	var pieces []string
	var current strings.Builder
	for _, sentence := range sentences {
		if EstimateTokens(sentence) > c.chunkSize {
			if current.Len() > 0 {
				pieces = append(pieces, current.String())
				current.Reset()
			}
			pieces = append(pieces, hardSplit(sentence, c.chunkSize)...)
			continue
		}
		if current.Len() > 0 && EstimateTokens(current.String()+" "+sentence) > c.chunkSize {
			pieces = append(pieces, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}
	return pieces
}

// applyOverlap prefixes each chunk after the first with the tail of its
// predecessor so retrieval windows straddle chunk borders.
func (c *Chunker) applyOverlap(pieces []string) []string {
	if c.overlap <= 0 || len(pieces) < 2 {
		return pieces
	}
	overlapChars := c.overlap * 4
	out := make([]string, len(pieces))
	out[0] = pieces[0]
	for i := 1; i < len(pieces); i++ {
		prev := pieces[i-1]
		tail := prev
		if len(prev) > overlapChars {
			start := len(prev) - overlapChars
			// Never start mid-rune.
			for start < len(prev) && !utf8.RuneStart(prev[start]) {
				start++
			}
			tail = prev[start:]
			// Avoid starting mid-word.
			if idx := strings.IndexAny(tail, " \n"); idx >= 0 && idx < len(tail)-1 {
				tail = tail[idx+1:]
			}
		}
		out[i] = strings.TrimSpace(tail) + "\n\n" + pieces[i]
	}
	return out
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range paragraphSplit.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitSentences(text string) []string {
	locs := sentenceEnd.FindAllStringIndex(text, -1)
	var out []string
	start := 0
	for _, loc := range locs {
		if s := strings.TrimSpace(text[start:loc[1]]); s != "" {
			out = append(out, s)
		}
		start = loc[1]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func hardSplit(text string, chunkSize int) []string {
	limit := chunkSize * 4
	var out []string
	for len(text) > limit {
		cut := limit
		// Back up to a rune boundary so multibyte text is never cut mid-rune.
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if idx := strings.LastIndexAny(text[:cut], " \n"); idx > limit/2 {
			cut = idx
		}
		if cut == 0 {
			cut = limit
		}
		out = append(out, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}
