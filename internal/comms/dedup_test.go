package comms

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func TestDedupWindowRejectsDuplicates(t *testing.T) {
	w := NewDedupWindow(10)

	if !w.FirstSeen("om_1") {
		t.Fatal("first sighting should be accepted")
	}
	if w.FirstSeen("om_1") {
		t.Fatal("duplicate should be rejected")
	}
	if !w.FirstSeen("om_2") {
		t.Fatal("distinct id should be accepted")
	}
}

func TestDedupWindowEvictsOldest(t *testing.T) {
	w := NewDedupWindow(3)

	for _, id := range []string{"a", "b", "c", "d"} {
		if !w.FirstSeen(id) {
			t.Fatalf("%s should be new", id)
		}
	}

	if w.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", w.Len())
	}
	// "a" was evicted by "d"; the rest are still inside the window.
	if w.FirstSeen("b") || w.FirstSeen("c") || w.FirstSeen("d") {
		t.Error("recent ids must stay deduplicated after eviction")
	}
	if !w.FirstSeen("a") {
		t.Error("evicted id should be accepted again")
	}
}

func TestDedupWindowNoBulkClear(t *testing.T) {
	w := NewDedupWindow(DefaultDedupWindow)

	for i := 0; i < DefaultDedupWindow+1; i++ {
		w.FirstSeen(fmt.Sprintf("om_%d", i))
	}

	// The id inserted just before the overflow is still remembered.
	if w.FirstSeen(fmt.Sprintf("om_%d", DefaultDedupWindow-1)) {
		t.Error("overflow must not forget the most recent ids")
	}
}

func TestDedupWindowConcurrent(t *testing.T) {
	w := NewDedupWindow(100)

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if w.FirstSeen("same-id") {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := accepted.Load(); got != 1 {
		t.Errorf("accepted %d times, want exactly 1", got)
	}
}

func TestNewDedupWindowDefaultCapacity(t *testing.T) {
	w := NewDedupWindow(0)
	if len(w.ring) != DefaultDedupWindow {
		t.Errorf("capacity = %d, want %d", len(w.ring), DefaultDedupWindow)
	}
}
