package session

import (
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestMergerFlushesNeverOverlap proves the property spec §8 invariant 4
// requires: a new flush is not scheduled until the prior one has delivered.
// A slow deliver is held in flight while a second Accept lands mid-flush;
// that update must not trigger an overlapping delivery.
func TestMergerFlushesNeverOverlap(t *testing.T) {
	orig, hadOrig := os.LookupEnv("ACP_BATCH_MS")
	os.Setenv("ACP_BATCH_MS", "5")
	defer func() {
		if hadOrig {
			os.Setenv("ACP_BATCH_MS", orig)
		} else {
			os.Unsetenv("ACP_BATCH_MS")
		}
	}()

	var active, maxActive int32
	var mu sync.Mutex
	var delivered []SessionUpdate

	deliver := func(u SessionUpdate) {
		n := atomic.AddInt32(&active, 1)
		for {
			cur := atomic.LoadInt32(&maxActive)
			if n <= cur || atomic.CompareAndSwapInt32(&maxActive, cur, n) {
				break
			}
		}
		time.Sleep(40 * time.Millisecond)
		mu.Lock()
		delivered = append(delivered, u)
		mu.Unlock()
		atomic.AddInt32(&active, -1)
	}

	m := newMerger(deliver)

	m.Accept(SessionUpdate{MessageChunks: []ContentBlock{TextBlock("first")}})

	// Let the timer fire and the first flush's deliver begin its slow run.
	time.Sleep(15 * time.Millisecond)

	// A second update lands while the first delivery is still in flight.
	// Under the bug, m.timer was already nil'd before deliver was called,
	// so this would immediately arm a second timer and overlap.
	m.Accept(SessionUpdate{MessageChunks: []ContentBlock{TextBlock("second")}})

	time.Sleep(150 * time.Millisecond)
	m.Close()
	time.Sleep(20 * time.Millisecond)

	if got := atomic.LoadInt32(&maxActive); got > 1 {
		t.Fatalf("observed %d concurrent merger deliveries, want at most 1 (flushes overlapped)", got)
	}

	mu.Lock()
	defer mu.Unlock()
	var total int
	for _, u := range delivered {
		total += len(u.MessageChunks)
	}
	if total != 2 {
		t.Fatalf("expected both chunks eventually delivered across non-overlapping flushes, got %d in %d deliveries", total, len(delivered))
	}
}
