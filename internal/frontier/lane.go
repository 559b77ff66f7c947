package frontier

import (
	"container/heap"
	"time"

	"golang.org/x/time/rate"
)

// historyWindow bounds the rolling dispatch history kept per lane.
// The history is informational only and never drives admission.
const historyWindow = time.Minute

// hostLane owns one host's pending queue and in-flight set. A lane is
// admissible when it has a free concurrency slot and its rate limiter has
// a token available. Admissibility is always recomputed from current time;
// no throttled state is stored between polls.
type hostLane struct {
	host           string
	pending        laneHeap
	inFlight       map[string]struct{}
	limiter        *rate.Limiter
	interval       time.Duration
	maxInFlight    int
	lastDispatchAt time.Time
	history        []time.Time
	seq            uint64
}

func newHostLane(host string, rps float64, concurrency int) *hostLane {
	if rps <= 0 {
		rps = 1
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &hostLane{
		host:        host,
		inFlight:    make(map[string]struct{}),
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		interval:    time.Duration(float64(time.Second) / rps),
		maxInFlight: concurrency,
	}
}

func (l *hostLane) push(item *Item) {
	l.seq++
	heap.Push(&l.pending, &heapEntry{item: item, seq: l.seq})
}

// admissible reports whether the lane may release another item right now.
func (l *hostLane) admissible(now time.Time) bool {
	if len(l.inFlight) >= l.maxInFlight {
		return false
	}
	return l.limiter.TokensAt(now) >= 1
}

// dispatch pops the most urgent pending item and marks it in flight.
// The caller must have verified admissibility under the frontier lock.
func (l *hostLane) dispatch(now time.Time) *Item {
	if l.pending.Len() == 0 {
		return nil
	}
	entry := heap.Pop(&l.pending).(*heapEntry)
	item := entry.item

	l.inFlight[item.URL] = struct{}{}
	l.limiter.AllowN(now, 1)
	l.lastDispatchAt = now
	l.recordDispatch(now)
	return item
}

// release removes url from the in-flight set and reports whether it was
// actually in flight, so the frontier never double-decrements its counter.
func (l *hostLane) release(url string) bool {
	if _, ok := l.inFlight[url]; !ok {
		return false
	}
	delete(l.inFlight, url)
	return true
}

// nextAvailableAt projects the earliest time this lane could become
// admissible. When the lane is blocked on concurrency rather than rate the
// completion time of the blocking fetch is unknowable, so the projection
// falls back to one full rate interval.
func (l *hostLane) nextAvailableAt(now time.Time) time.Time {
	if l.admissible(now) {
		return now
	}
	wait := l.interval - now.Sub(l.lastDispatchAt)
	if wait <= 0 {
		wait = l.interval
	}
	return now.Add(wait)
}

func (l *hostLane) recordDispatch(now time.Time) {
	cutoff := now.Add(-historyWindow)
	trimmed := l.history[:0]
	for _, t := range l.history {
		if t.After(cutoff) {
			trimmed = append(trimmed, t)
		}
	}
	l.history = append(trimmed, now)
}
