package crawler

import "time"

// PageRecord is the persisted result of one dispatched URL.
type PageRecord struct {
	URL          string        // Originally requested, normalized URL
	FinalURL     string        // Post-redirect location
	StatusCode   int           // HTTP status code, 0 when no response was received
	Title        string        // Extracted document title
	ContentType  string        // HTTP Content-Type header
	ContentHash  string        // Hash of extracted content for duplicate detection
	ResponseSize int64         // Response body size in bytes
	TTFB         time.Duration // Time to First Byte
	DownloadTime time.Duration // Total download time
	Depth        int           // Link hops from the seed
	Parent       string        // URL that linked to this one
	FetchError   string        // Transport error after retry exhaustion, empty on response
	DuplicateOf  string        // URL first seen with identical content, empty otherwise
	FetchedAt    time.Time     // Timestamp when fetched (UTC)
}

// LinkRecord is a discovered link relationship.
type LinkRecord struct {
	SourceURL    string    // Page the link was found on
	TargetURL    string    // Where the link points
	AnchorText   string    // Text content of the anchor
	Priority     int       // Priority hint the parser assigned
	DiscoveredAt time.Time // When the link was discovered (UTC)
}

// ErrorRecord captures a failure observed while processing one URL.
type ErrorRecord struct {
	URL          string    // URL where the failure occurred
	ErrorType    string    // fetch_error, http_error, parse_error, robots_disallowed
	ErrorMessage string    // Detail text
	OccurredAt   time.Time // When it occurred (UTC)
}

// Stats tracks run progress. Duration is filled on snapshot.
type Stats struct {
	PagesCrawled  int // Fetches that produced a response
	PagesFailed   int // Fetches that exhausted retries or returned an error status
	PagesSkipped  int // URLs refused by robots.txt
	Duplicates    int // Documents dropped by content-hash dedup
	Documents     int // Documents accepted for output
	ParseFailures int // Fetched pages whose content could not be parsed
	LinksQueued   int // Discovered links accepted by the frontier
	StartTime     time.Time
	Duration      time.Duration
}
