// Package storage persists crawl results to SQLite. A single connection
// with WAL journaling is enough here; writers are serialized by
// database/sql's connection pool and the crawl's write volume is modest.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hfujita/laneway/internal/crawler"
)

// SQLiteStorage implements crawler.Storage backed by a SQLite file.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (creating if needed) the database at path and
// applies the schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// SavePage upserts a page record. Re-saving the same URL replaces the
// previous row, so a page fetched after an earlier failed run keeps a
// single record.
func (s *SQLiteStorage) SavePage(page *crawler.PageRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO pages (
			url, final_url, status_code, title, content_type, content_hash,
			response_size, ttfb_ms, download_time_ms, depth, parent,
			fetch_error, duplicate_of, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			final_url = excluded.final_url,
			status_code = excluded.status_code,
			title = excluded.title,
			content_type = excluded.content_type,
			content_hash = excluded.content_hash,
			response_size = excluded.response_size,
			ttfb_ms = excluded.ttfb_ms,
			download_time_ms = excluded.download_time_ms,
			depth = excluded.depth,
			parent = excluded.parent,
			fetch_error = excluded.fetch_error,
			duplicate_of = excluded.duplicate_of,
			fetched_at = excluded.fetched_at`,
		page.URL, page.FinalURL, page.StatusCode, page.Title,
		page.ContentType, page.ContentHash, page.ResponseSize,
		float64(page.TTFB)/float64(time.Millisecond),
		float64(page.DownloadTime)/float64(time.Millisecond),
		page.Depth, page.Parent, page.FetchError, page.DuplicateOf,
		page.FetchedAt)
	if err != nil {
		return fmt.Errorf("failed to save page %s: %w", page.URL, err)
	}
	return nil
}

// SaveLinks inserts link records in one transaction, ignoring duplicates
// of the (source, target) pair.
func (s *SQLiteStorage) SaveLinks(links []*crawler.LinkRecord) error {
	if len(links) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO links (source_url, target_url, anchor_text, priority, discovered_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare link insert: %w", err)
	}
	defer stmt.Close()

	for _, link := range links {
		if _, err := stmt.Exec(link.SourceURL, link.TargetURL, link.AnchorText, link.Priority, link.DiscoveredAt); err != nil {
			return fmt.Errorf("failed to save link %s -> %s: %w", link.SourceURL, link.TargetURL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit links: %w", err)
	}
	return nil
}

// SaveError appends an error record.
func (s *SQLiteStorage) SaveError(record *crawler.ErrorRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO crawl_errors (url, error_type, error_message, occurred_at)
		VALUES (?, ?, ?, ?)`,
		record.URL, record.ErrorType, record.ErrorMessage, record.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to save error for %s: %w", record.URL, err)
	}
	return nil
}

// Summary returns the count of successfully fetched pages and of pages
// that ended with a fetch error or error status.
func (s *SQLiteStorage) Summary() (completed, failed int, err error) {
	row := s.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN fetch_error = '' AND status_code BETWEEN 200 AND 399 THEN 1 END),
			COUNT(CASE WHEN fetch_error != '' OR status_code >= 400 OR status_code = 0 THEN 1 END)
		FROM pages`)
	if err := row.Scan(&completed, &failed); err != nil {
		return 0, 0, fmt.Errorf("failed to summarize pages: %w", err)
	}
	return completed, failed, nil
}

// SetMeta stores a key/value pair describing the crawl run.
func (s *SQLiteStorage) SetMeta(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO crawl_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to set meta %s: %w", key, err)
	}
	return nil
}

// GetMeta returns the value for key, or an empty string if unset.
func (s *SQLiteStorage) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM crawl_meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get meta %s: %w", key, err)
	}
	return value, nil
}

// Close closes the underlying database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
