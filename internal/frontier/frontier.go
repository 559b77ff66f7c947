// Package frontier implements the crawl frontier: host-partitioned pending
// queues with per-host politeness controls, URL-level deduplication, and a
// global concurrency cap. The Frontier is the single owner of all mutable
// scheduling state; every operation takes its internal lock, so Add, Next
// and Complete are atomic with respect to each other.
package frontier

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Config holds the admission limits the frontier enforces.
type Config struct {
	AllowedHosts       []string // Hostnames eligible for crawling
	DepthLimit         int      // Maximum link hops from a seed
	PerHostRPS         float64  // Dispatch rate per host
	PerHostConcurrency int      // Concurrent fetches per host
	GlobalConcurrency  int      // Concurrent fetches across all hosts
}

// Frontier decides what may be crawled next. All mutation goes through its
// methods; lanes are never handed out.
type Frontier struct {
	cfg     Config
	allowed map[string]struct{}

	mu             sync.Mutex
	lanes          map[string]*hostLane
	seen           map[string]struct{}
	completed      map[string]struct{}
	globalInFlight int
	rejections     RejectionCounts
}

// RejectionCounts tallies Add calls that were refused, by reason.
// Rejections are bookkeeping, never errors.
type RejectionCounts struct {
	Malformed      int
	Duplicate      int
	DisallowedHost int
	DepthExceeded  int
}

// LaneStats is a read-only view of one host lane.
type LaneStats struct {
	Queued   int
	InFlight int
}

// Snapshot is a point-in-time view of frontier state for observability.
type Snapshot struct {
	Seen           int
	Completed      int
	Queued         int
	InFlight       int
	GlobalInFlight int
	Hosts          int
	PerHost        map[string]LaneStats
	Rejections     RejectionCounts
}

// New creates a frontier enforcing the given limits.
func New(cfg Config) *Frontier {
	if cfg.GlobalConcurrency <= 0 {
		cfg.GlobalConcurrency = 1
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedHosts))
	for _, h := range cfg.AllowedHosts {
		allowed[normalizeHostKey(h)] = struct{}{}
	}
	return &Frontier{
		cfg:       cfg,
		allowed:   allowed,
		lanes:     make(map[string]*hostLane),
		seen:      make(map[string]struct{}),
		completed: make(map[string]struct{}),
	}
}

// Add offers a URL to the frontier. It returns true if the URL was accepted
// and queued, false when it is malformed, already seen, on a disallowed
// host, or beyond the depth limit. A normalized URL enters the seen set at
// most once; a second Add for an equivalent URL is a no-op.
func (f *Frontier) Add(rawURL string, depth int, parent string, priority int) bool {
	normalized, laneKey, hostname, err := Normalize(rawURL)
	if err != nil {
		f.mu.Lock()
		f.rejections.Malformed++
		f.mu.Unlock()
		slog.Debug("Rejected malformed URL", "url", rawURL, "error", err)
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.seen[normalized]; ok {
		f.rejections.Duplicate++
		return false
	}
	if _, ok := f.allowed[hostname]; !ok {
		f.rejections.DisallowedHost++
		slog.Debug("Rejected URL outside allowed hosts", "url", normalized, "host", hostname)
		return false
	}
	if depth > f.cfg.DepthLimit {
		f.rejections.DepthExceeded++
		slog.Debug("Rejected URL beyond depth limit", "url", normalized, "depth", depth, "limit", f.cfg.DepthLimit)
		return false
	}

	f.seen[normalized] = struct{}{}

	lane, ok := f.lanes[laneKey]
	if !ok {
		lane = newHostLane(laneKey, f.cfg.PerHostRPS, f.cfg.PerHostConcurrency)
		f.lanes[laneKey] = lane
		slog.Debug("Created lane", "host", laneKey)
	}
	lane.push(&Item{
		URL:        normalized,
		Host:       laneKey,
		Depth:      depth,
		Parent:     parent,
		Priority:   priority,
		EnqueuedAt: time.Now(),
	})
	return true
}

// AddSeeds queues the given seed URLs at depth 0 with top priority and
// returns how many were accepted.
func (f *Frontier) AddSeeds(seedURLs []string) int {
	added := 0
	for _, u := range seedURLs {
		if f.Add(u, 0, "", SeedPriority) {
			added++
		}
	}
	slog.Info("Seeded frontier", "accepted", added, "offered", len(seedURLs))
	return added
}

// SeedPriority outranks every priority the parser assigns to discovered
// links, so seeds always dispatch ahead of their descendants.
const SeedPriority = -1

// Next returns the next item to fetch, or nil when nothing is admissible
// right now. Among admissible non-empty lanes it picks the one with the
// smallest backlog; within the lane the lowest (priority, depth, enqueuedAt)
// item wins. The item is marked in flight on its lane and globally before
// it is returned.
func (f *Frontier) Next() *Item {
	now := time.Now()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.globalInFlight >= f.cfg.GlobalConcurrency {
		return nil
	}

	lane := f.pickLane(now)
	if lane == nil {
		return nil
	}

	item := lane.dispatch(now)
	if item == nil {
		return nil
	}
	f.globalInFlight++
	slog.Debug("Dispatched URL", "url", item.URL, "host", item.Host, "global_in_flight", f.globalInFlight)
	return item
}

// pickLane selects the admissible non-empty lane with the smallest pending
// queue. Hosts with little backlog get served first, which keeps small
// hosts responsive at the cost of strict fairness. Ties break on host name
// for determinism. Caller holds the lock.
func (f *Frontier) pickLane(now time.Time) *hostLane {
	var best *hostLane
	for _, lane := range f.lanes {
		if lane.pending.Len() == 0 || !lane.admissible(now) {
			continue
		}
		if best == nil ||
			lane.pending.Len() < best.pending.Len() ||
			(lane.pending.Len() == best.pending.Len() && lane.host < best.host) {
			best = lane
		}
	}
	return best
}

// Complete releases the admission slot held by url on its lane and
// globally. It must be called exactly once per item returned by Next,
// regardless of fetch success; repeated calls for the same URL are no-ops,
// so a slot can neither leak nor be released twice.
func (f *Frontier) Complete(url string, success bool) {
	_, laneKey, _, err := Normalize(url)

	f.mu.Lock()
	defer f.mu.Unlock()

	if err == nil {
		if lane, ok := f.lanes[laneKey]; ok && lane.release(url) {
			if f.globalInFlight > 0 {
				f.globalInFlight--
			}
		}
	}
	f.completed[url] = struct{}{}
	slog.Debug("Completed URL", "url", url, "success", success, "global_in_flight", f.globalInFlight)
}

// HasPending reports whether any lane still has queued or in-flight work.
func (f *Frontier) HasPending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, lane := range f.lanes {
		if lane.pending.Len() > 0 || len(lane.inFlight) > 0 {
			return true
		}
	}
	return false
}

// NextAvailableAt returns the earliest time any lane with pending items is
// projected to become admissible, letting the caller sleep instead of
// busy-polling. With no pending items it returns one second from now.
func (f *Frontier) NextAvailableAt() time.Time {
	now := time.Now()

	f.mu.Lock()
	defer f.mu.Unlock()

	var earliest time.Time
	for _, lane := range f.lanes {
		if lane.pending.Len() == 0 {
			continue
		}
		at := lane.nextAvailableAt(now)
		if earliest.IsZero() || at.Before(earliest) {
			earliest = at
		}
	}
	if earliest.IsZero() {
		return now.Add(time.Second)
	}
	return earliest
}

// Stats returns a read-only snapshot of frontier state.
func (f *Frontier) Stats() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := Snapshot{
		Seen:           len(f.seen),
		Completed:      len(f.completed),
		GlobalInFlight: f.globalInFlight,
		Hosts:          len(f.lanes),
		PerHost:        make(map[string]LaneStats, len(f.lanes)),
		Rejections:     f.rejections,
	}
	hosts := make([]string, 0, len(f.lanes))
	for host := range f.lanes {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	for _, host := range hosts {
		lane := f.lanes[host]
		stats := LaneStats{Queued: lane.pending.Len(), InFlight: len(lane.inFlight)}
		snap.PerHost[host] = stats
		snap.Queued += stats.Queued
		snap.InFlight += stats.InFlight
	}
	return snap
}

func normalizeHostKey(host string) string {
	_, _, hostname, err := Normalize("http://" + host)
	if err != nil {
		return host
	}
	return hostname
}
