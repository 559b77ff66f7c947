package frontier

import "time"

// Item is a URL queued for crawling together with its scheduling metadata.
// Items are immutable once created.
type Item struct {
	URL        string    // Normalized URL
	Host       string    // Lane key (lowercased host, including port if present)
	Depth      int       // Link hops from the seed that led here
	Parent     string    // URL of the page that linked to this one, empty for seeds
	Priority   int       // Lower number = more urgent
	EnqueuedAt time.Time // When the item entered the frontier
}

// laneHeap orders pending items by (priority, depth, enqueuedAt), lowest
// first, so later insertions of more urgent items overtake older ones.
// A per-push sequence number keeps the ordering stable for equal keys.
type laneHeap struct {
	items []*heapEntry
}

type heapEntry struct {
	item *Item
	seq  uint64
}

func (h *laneHeap) Len() int { return len(h.items) }

func (h *laneHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.item.Priority != b.item.Priority {
		return a.item.Priority < b.item.Priority
	}
	if a.item.Depth != b.item.Depth {
		return a.item.Depth < b.item.Depth
	}
	if !a.item.EnqueuedAt.Equal(b.item.EnqueuedAt) {
		return a.item.EnqueuedAt.Before(b.item.EnqueuedAt)
	}
	return a.seq < b.seq
}

func (h *laneHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
}

func (h *laneHeap) Push(x any) {
	h.items = append(h.items, x.(*heapEntry))
}

func (h *laneHeap) Pop() any {
	old := h.items
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	return entry
}
