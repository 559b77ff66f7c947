// Package crawler drives the crawl to completion: it polls the frontier
// for admissible work, fans fetches out to a bounded set of goroutines,
// feeds results through the parser and dedup, and reports discovered links
// back to the frontier. No failure in a single item's pipeline can abort
// the run; the loop ends only on its stopping conditions.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hfujita/laneway/internal/config"
	"github.com/hfujita/laneway/internal/dedupe"
	"github.com/hfujita/laneway/internal/fetcher"
	"github.com/hfujita/laneway/internal/frontier"
	"github.com/hfujita/laneway/internal/parser"
	"github.com/hfujita/laneway/internal/robots"
)

const (
	// minIdleWait keeps the loop responsive to completions even when the
	// frontier projects a long wait.
	minIdleWait = 100 * time.Millisecond
	// maxIdleWait caps the sleep on an empty poll so the loop re-evaluates
	// its stopping conditions regularly.
	maxIdleWait = 5 * time.Second
	// statsInterval is how often the reporter logs progress.
	statsInterval = 10 * time.Second
)

// Crawler ties the frontier, fetcher, parser and storage together.
type Crawler struct {
	cfg      *config.Config
	frontier *frontier.Frontier
	fetcher  Fetcher
	parser   Parser
	deduper  Deduper
	robots   RobotsAgent
	storage  Storage
	client   *fetcher.Client

	mu        sync.Mutex
	stats     Stats
	documents []*parser.Document
	failed    map[string]struct{}
}

// New creates a crawler wired with its production components.
func New(cfg *config.Config, store Storage) *Crawler {
	client := fetcher.NewClient(cfg.UserAgent, cfg.RequestTimeout)
	return &Crawler{
		cfg: cfg,
		frontier: frontier.New(frontier.Config{
			AllowedHosts:       cfg.AllowedHosts,
			DepthLimit:         cfg.DepthLimit,
			PerHostRPS:         cfg.RateLimits.PerHostRPS,
			PerHostConcurrency: cfg.RateLimits.PerHostConcurrency,
			GlobalConcurrency:  cfg.RateLimits.GlobalConcurrency,
		}),
		fetcher: fetcher.New(client, cfg.Retries, cfg.BackoffUnit),
		parser:  parser.New(),
		deduper: dedupe.New(),
		robots:  robots.NewAgent(client, cfg.UserAgent, cfg.RespectRobots),
		storage: store,
		client:  client,
		failed:  make(map[string]struct{}),
	}
}

// Run seeds the frontier and drives the dispatch loop until one of the
// stopping conditions triggers: the page budget is spent, the frontier
// drains, or too many consecutive polls come back empty. It blocks until
// every in-flight fetch has completed.
func (c *Crawler) Run(ctx context.Context) (Stats, error) {
	c.mu.Lock()
	c.stats.StartTime = time.Now()
	c.mu.Unlock()

	if added := c.frontier.AddSeeds(c.cfg.SeedURLs); added == 0 {
		slog.Warn("No seed URLs accepted, nothing to crawl")
		return c.GetStats(), nil
	}

	done := make(chan struct{})
	go c.reportProgress(done)
	defer close(done)

	g, gctx := errgroup.WithContext(ctx)
	dispatched := 0
	consecutiveEmpty := 0

	for {
		if ctx.Err() != nil {
			slog.Info("Crawl cancelled", "dispatched", dispatched)
			break
		}
		if dispatched >= c.cfg.MaxPages {
			slog.Info("Reached page limit", "limit", c.cfg.MaxPages)
			break
		}
		if !c.frontier.HasPending() {
			slog.Info("Frontier drained", "dispatched", dispatched)
			break
		}
		if consecutiveEmpty >= c.cfg.EmptyPollLimit {
			slog.Warn("Too many consecutive empty polls, stopping", "limit", c.cfg.EmptyPollLimit)
			break
		}

		item := c.frontier.Next()
		if item == nil {
			consecutiveEmpty++
			c.idleWait(ctx)
			continue
		}
		consecutiveEmpty = 0
		dispatched++

		slog.Info("Crawling", "n", dispatched, "max", c.cfg.MaxPages, "url", item.URL, "depth", item.Depth)
		it := item
		g.Go(func() error {
			c.processItem(gctx, it)
			return nil
		})
	}

	_ = g.Wait()
	c.client.Close()

	stats := c.GetStats()
	slog.Info("Crawl finished",
		"crawled", stats.PagesCrawled,
		"failed", stats.PagesFailed,
		"skipped", stats.PagesSkipped,
		"documents", stats.Documents,
		"duplicates", stats.Duplicates,
		"duration", stats.Duration)
	return stats, nil
}

// processItem runs the per-item pipeline. The frontier slot is released in
// a defer that also absorbs panics, so neither parsing nor persistence can
// leak an admission slot or kill the run.
func (c *Crawler) processItem(ctx context.Context, item *frontier.Item) {
	success := false
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic while processing URL", "url", item.URL, "panic", r)
			c.markFailed(item.URL)
			success = false
		}
		c.frontier.Complete(item.URL, success)
	}()

	if !c.robots.Allowed(ctx, item.URL) {
		slog.Info("URL disallowed by robots.txt", "url", item.URL)
		c.recordSkip(item.URL)
		success = true
		return
	}

	outcome := c.fetcher.Fetch(ctx, item.URL)
	success = outcome.Error == "" && outcome.StatusCode < 400

	if !success {
		c.recordFailure(item, outcome)
		return
	}

	c.mu.Lock()
	c.stats.PagesCrawled++
	c.mu.Unlock()

	doc := c.parser.Parse(outcome)
	c.recordResult(item, outcome, doc)
}

// recordResult persists the outcome, applies content dedup, and feeds
// discovered links back into the frontier.
func (c *Crawler) recordResult(item *frontier.Item, outcome *fetcher.Outcome, doc *parser.Document) {
	page := pageRecord(item, outcome)

	if doc == nil {
		if outcome.IsHTML() {
			c.mu.Lock()
			c.stats.ParseFailures++
			c.mu.Unlock()
			c.saveError(item.URL, "parse_error", "no document could be extracted")
		}
		c.savePage(page)
		return
	}

	page.Title = doc.Title
	page.ContentHash = doc.ContentHash

	if dup, original := c.deduper.IsDuplicateHash(doc.ContentHash, doc.URL); dup {
		slog.Info("Skipping duplicate content", "url", doc.URL, "original", original)
		page.DuplicateOf = original
		c.mu.Lock()
		c.stats.Duplicates++
		c.mu.Unlock()
		c.savePage(page)
		return
	}

	c.mu.Lock()
	c.documents = append(c.documents, doc)
	c.stats.Documents++
	c.mu.Unlock()
	c.savePage(page)
	c.saveLinks(doc)
	c.enqueueLinks(item, outcome, doc)
}

// enqueueLinks offers discovered links to the frontier. Items already at
// the depth limit discover nothing; the frontier would reject their
// children anyway, this just spares the churn.
func (c *Crawler) enqueueLinks(item *frontier.Item, outcome *fetcher.Outcome, doc *parser.Document) {
	if item.Depth >= c.cfg.DepthLimit {
		return
	}
	queued := 0
	for _, link := range doc.Links {
		if c.frontier.Add(link.URL, item.Depth+1, outcome.URL, link.Priority) {
			queued++
		}
	}
	if queued > 0 {
		c.mu.Lock()
		c.stats.LinksQueued += queued
		c.mu.Unlock()
		slog.Debug("Queued discovered links", "source", item.URL, "queued", queued, "found", len(doc.Links))
	}
}

func (c *Crawler) recordFailure(item *frontier.Item, outcome *fetcher.Outcome) {
	c.markFailed(item.URL)

	page := pageRecord(item, outcome)
	c.savePage(page)

	if outcome.Error != "" {
		slog.Warn("Fetch failed", "url", item.URL, "error", outcome.Error)
		c.saveError(item.URL, "fetch_error", outcome.Error)
	} else {
		slog.Warn("Fetch returned error status", "url", item.URL, "status", outcome.StatusCode)
		c.saveError(item.URL, "http_error", fmt.Sprintf("HTTP %d", outcome.StatusCode))
	}
}

func (c *Crawler) recordSkip(url string) {
	c.mu.Lock()
	c.stats.PagesSkipped++
	c.mu.Unlock()
	c.saveError(url, "robots_disallowed", "disallowed by robots.txt")
}

func (c *Crawler) markFailed(url string) {
	c.mu.Lock()
	c.stats.PagesFailed++
	c.failed[url] = struct{}{}
	c.mu.Unlock()
}

func (c *Crawler) savePage(page *PageRecord) {
	if err := c.storage.SavePage(page); err != nil {
		slog.Error("Failed to save page", "url", page.URL, "error", err)
	}
}

func (c *Crawler) saveLinks(doc *parser.Document) {
	if len(doc.Links) == 0 {
		return
	}
	records := make([]*LinkRecord, 0, len(doc.Links))
	now := time.Now().UTC()
	for _, link := range doc.Links {
		records = append(records, &LinkRecord{
			SourceURL:    doc.FinalURL,
			TargetURL:    link.URL,
			AnchorText:   link.AnchorText,
			Priority:     link.Priority,
			DiscoveredAt: now,
		})
	}
	if err := c.storage.SaveLinks(records); err != nil {
		slog.Error("Failed to save links", "source", doc.URL, "error", err)
	}
}

func (c *Crawler) saveError(url, errType, message string) {
	record := &ErrorRecord{
		URL:          url,
		ErrorType:    errType,
		ErrorMessage: message,
		OccurredAt:   time.Now().UTC(),
	}
	if err := c.storage.SaveError(record); err != nil {
		slog.Error("Failed to save error record", "url", url, "error", err)
	}
}

// idleWait sleeps until the frontier projects new work, clamped so the
// loop neither busy-polls nor oversleeps.
func (c *Crawler) idleWait(ctx context.Context) {
	wait := time.Until(c.frontier.NextAvailableAt())
	if wait < minIdleWait {
		wait = minIdleWait
	}
	if wait > maxIdleWait {
		wait = maxIdleWait
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// reportProgress periodically logs crawl and frontier statistics.
func (c *Crawler) reportProgress(done <-chan struct{}) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			stats := c.GetStats()
			snap := c.frontier.Stats()
			slog.Info("Crawl progress",
				"crawled", stats.PagesCrawled,
				"failed", stats.PagesFailed,
				"documents", stats.Documents,
				"queued", snap.Queued,
				"in_flight", snap.InFlight,
				"hosts", snap.Hosts,
				"duration", stats.Duration)
		}
	}
}

// GetStats returns a snapshot of current crawl statistics.
func (c *Crawler) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := c.stats
	stats.Duration = time.Since(stats.StartTime)
	return stats
}

// FailedURLs returns the URLs whose processing failed, sorted.
func (c *Crawler) FailedURLs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	urls := make([]string, 0, len(c.failed))
	for u := range c.failed {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// Documents returns the accepted, deduplicated documents of the run.
func (c *Crawler) Documents() []*parser.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	docs := make([]*parser.Document, len(c.documents))
	copy(docs, c.documents)
	return docs
}

// FrontierStats exposes the frontier snapshot for observability.
func (c *Crawler) FrontierStats() frontier.Snapshot {
	return c.frontier.Stats()
}

func pageRecord(item *frontier.Item, outcome *fetcher.Outcome) *PageRecord {
	return &PageRecord{
		URL:          item.URL,
		FinalURL:     outcome.FinalURL,
		StatusCode:   outcome.StatusCode,
		ContentType:  outcome.ContentType,
		ResponseSize: int64(len(outcome.Body)),
		TTFB:         outcome.TTFB,
		DownloadTime: outcome.DownloadTime,
		Depth:        item.Depth,
		Parent:       item.Parent,
		FetchError:   outcome.Error,
		FetchedAt:    time.Now().UTC(),
	}
}
