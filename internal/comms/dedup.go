package comms

import "sync"

// DefaultDedupWindow is the number of message ids remembered by default.
const DefaultDedupWindow = 1000

// Deduplicator rejects message ids that were already seen recently.
type Deduplicator interface {
	// FirstSeen records id and reports whether this is its first sighting.
	FirstSeen(id string) bool
}

// DedupWindow remembers the last N message ids in a fixed-capacity ring.
// When full, the oldest id is evicted to make room, so the window always
// covers the most recent N distinct ids.
type DedupWindow struct {
	mu   sync.Mutex
	seen map[string]struct{}
	ring []string
	next int
	full bool
}

// NewDedupWindow creates a window holding up to capacity ids.
func NewDedupWindow(capacity int) *DedupWindow {
	if capacity <= 0 {
		capacity = DefaultDedupWindow
	}
	return &DedupWindow{
		seen: make(map[string]struct{}, capacity),
		ring: make([]string, capacity),
	}
}

// FirstSeen implements Deduplicator. Check and insert happen under one lock.
func (w *DedupWindow) FirstSeen(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.seen[id]; ok {
		return false
	}

	if w.full {
		delete(w.seen, w.ring[w.next])
	}
	w.ring[w.next] = id
	w.seen[id] = struct{}{}
	w.next++
	if w.next == len(w.ring) {
		w.next = 0
		w.full = true
	}
	return true
}

// Len returns the number of ids currently remembered.
func (w *DedupWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}
