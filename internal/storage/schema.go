package storage

// Schema for crawl results. Pages are keyed by the URL as it was queued;
// links record the discovery graph with the priority the link classifier
// assigned at parse time.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS pages (
	url TEXT PRIMARY KEY,
	final_url TEXT NOT NULL DEFAULT '',
	status_code INTEGER NOT NULL DEFAULT 0,
	title TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL DEFAULT '',
	content_hash TEXT NOT NULL DEFAULT '',
	response_size INTEGER NOT NULL DEFAULT 0,
	ttfb_ms REAL NOT NULL DEFAULT 0,
	download_time_ms REAL NOT NULL DEFAULT 0,
	depth INTEGER NOT NULL DEFAULT 0,
	parent TEXT NOT NULL DEFAULT '',
	fetch_error TEXT NOT NULL DEFAULT '',
	duplicate_of TEXT NOT NULL DEFAULT '',
	fetched_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS links (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_url TEXT NOT NULL,
	target_url TEXT NOT NULL,
	anchor_text TEXT NOT NULL DEFAULT '',
	priority INTEGER NOT NULL DEFAULT 1,
	discovered_at TIMESTAMP NOT NULL,
	UNIQUE(source_url, target_url)
);

CREATE TABLE IF NOT EXISTS crawl_errors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT NOT NULL,
	error_type TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	occurred_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS crawl_meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pages_status ON pages(status_code);
CREATE INDEX IF NOT EXISTS idx_pages_hash ON pages(content_hash);
CREATE INDEX IF NOT EXISTS idx_links_source ON links(source_url);
CREATE INDEX IF NOT EXISTS idx_errors_url ON crawl_errors(url);
`
