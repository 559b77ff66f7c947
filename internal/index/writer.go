// Package index writes crawled documents and their chunks as JSON Lines
// for downstream embedding and retrieval pipelines.
package index

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hfujita/laneway/internal/chunker"
	"github.com/hfujita/laneway/internal/parser"
)

// Record is one JSONL line: a document plus its chunks.
type Record struct {
	URL         string          `json:"url"`
	FinalURL    string          `json:"final_url"`
	Title       string          `json:"title"`
	ContentType string          `json:"content_type"`
	ContentHash string          `json:"content_hash"`
	FetchedAt   time.Time       `json:"fetched_at"`
	Chunks      []chunker.Chunk `json:"chunks,omitempty"`
}

// Stats summarizes one write pass.
type Stats struct {
	Documents int
	Chunks    int
}

// Writer persists documents to a JSONL file.
type Writer struct {
	path    string
	chunker *chunker.Chunker
}

// NewWriter creates a writer targeting path. A nil chunker disables
// chunking; documents are then written without chunk payloads.
func NewWriter(path string, c *chunker.Chunker) *Writer {
	return &Writer{path: path, chunker: c}
}

// WriteDocuments writes one record per document, creating parent
// directories as needed. The output file is truncated on each call; a run
// produces one complete snapshot.
func (w *Writer) WriteDocuments(docs []*parser.Document) (Stats, error) {
	var stats Stats
	if w.path == "" || len(docs) == 0 {
		return stats, nil
	}

	if err := os.MkdirAll(filepath.Dir(w.path), 0o750); err != nil {
		return stats, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(w.path)
	if err != nil {
		return stats, fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = f.Close() }()

	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	for _, doc := range docs {
		record := Record{
			URL:         doc.URL,
			FinalURL:    doc.FinalURL,
			Title:       doc.Title,
			ContentType: doc.ContentType,
			ContentHash: doc.ContentHash,
			FetchedAt:   doc.FetchedAt,
		}
		if w.chunker != nil && doc.Text != "" {
			record.Chunks = w.chunker.Split(doc.ContentHash[:12], doc.Text)
		}
		if err := enc.Encode(record); err != nil {
			return stats, fmt.Errorf("failed to encode document %s: %w", doc.URL, err)
		}
		stats.Documents++
		stats.Chunks += len(record.Chunks)
	}
	if err := bw.Flush(); err != nil {
		return stats, fmt.Errorf("failed to flush output: %w", err)
	}

	slog.Info("Wrote document output", "path", w.path, "documents", stats.Documents, "chunks", stats.Chunks)
	return stats, nil
}
