// Package robots evaluates robots.txt rules with per-host caching.
// Rule fetches fail open: an unreachable or malformed robots.txt never
// blocks a crawl.
package robots

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/hfujita/laneway/internal/fetcher"
)

// defaultTTL is how long cached rules stay fresh.
const defaultTTL = 30 * time.Minute

// Agent checks URLs against robots.txt, fetching and caching rules per host.
type Agent struct {
	client    *fetcher.Client
	userAgent string
	respect   bool
	ttl       time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	fetched time.Time
	rules   *robotstxt.RobotsData // nil means fetch failed, treat as allow-all
}

// NewAgent creates a robots agent. With respect false every URL is allowed.
func NewAgent(client *fetcher.Client, userAgent string, respect bool) *Agent {
	return &Agent{
		client:    client,
		userAgent: userAgent,
		respect:   respect,
		ttl:       defaultTTL,
		cache:     make(map[string]cacheEntry),
	}
}

// Allowed reports whether target may be fetched under the host's
// robots.txt rules.
func (a *Agent) Allowed(ctx context.Context, target string) bool {
	if !a.respect {
		return true
	}

	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return false
	}

	rules := a.rulesFor(ctx, u)
	if rules == nil {
		return true
	}
	group := rules.FindGroup(a.userAgent)
	if group == nil {
		return true
	}
	pathWithQuery := u.EscapedPath()
	if pathWithQuery == "" {
		pathWithQuery = "/"
	}
	if u.RawQuery != "" {
		pathWithQuery += "?" + u.RawQuery
	}
	return group.Test(pathWithQuery)
}

func (a *Agent) rulesFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	key := strings.ToLower(u.Scheme + "://" + u.Host)

	a.mu.Lock()
	entry, ok := a.cache[key]
	a.mu.Unlock()
	if ok && time.Since(entry.fetched) < a.ttl {
		return entry.rules
	}

	rules := a.fetch(ctx, key)
	a.mu.Lock()
	a.cache[key] = cacheEntry{fetched: time.Now(), rules: rules}
	a.mu.Unlock()
	return rules
}

func (a *Agent) fetch(ctx context.Context, origin string) *robotstxt.RobotsData {
	robotsURL := fmt.Sprintf("%s/robots.txt", origin)

	resp, err := a.client.Get(ctx, robotsURL)
	if err != nil {
		slog.Debug("robots.txt fetch failed, allowing all", "url", robotsURL, "error", err)
		return nil
	}

	rules, err := robotstxt.FromStatusAndBytes(resp.StatusCode, resp.Body)
	if err != nil {
		slog.Debug("robots.txt parse failed, allowing all", "url", robotsURL, "error", err)
		return nil
	}
	return rules
}
