package crawler

import (
	"context"

	"github.com/hfujita/laneway/internal/fetcher"
	"github.com/hfujita/laneway/internal/parser"
)

// Fetcher performs one network fetch with bounded retries. The outcome is
// always non-nil; transport failures after retry exhaustion are reported
// through its Error field, never as a Go error.
type Fetcher interface {
	Fetch(ctx context.Context, url string) *fetcher.Outcome
}

// Parser extracts a document and outbound links from a fetch outcome.
// A nil document means the outcome carried no usable content.
type Parser interface {
	Parse(outcome *fetcher.Outcome) *parser.Document
}

// Deduper detects pages whose extracted content was already seen at
// another URL.
type Deduper interface {
	IsDuplicateHash(hash, url string) (duplicate bool, originalURL string)
}

// RobotsAgent decides whether a URL may be fetched at all.
type RobotsAgent interface {
	Allowed(ctx context.Context, url string) bool
}

// Storage persists crawl results. It never sees scheduling state; the
// frontier is purely in-memory.
type Storage interface {
	SavePage(page *PageRecord) error
	SaveLinks(links []*LinkRecord) error
	SaveError(e *ErrorRecord) error
	Summary() (completed, failed int, err error)
	SetMeta(key, value string) error
	GetMeta(key string) (string, error)
	Close() error
}
