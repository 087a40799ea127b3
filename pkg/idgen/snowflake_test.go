package idgen

import (
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGenerateUniqueAcrossGoroutines(t *testing.T) {
	g, err := New(7)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const workers, perWorker = 8, 2000
	var mu sync.Mutex
	seen := make(map[int64]struct{}, workers*perWorker)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]int64, perWorker)
			for j := range ids {
				ids[j] = g.Generate()
			}
			mu.Lock()
			for _, id := range ids {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Errorf("unique ids = %d, want %d", len(seen), workers*perWorker)
	}
}

func TestGenerateMonotonicWhenClockMovesBack(t *testing.T) {
	g, _ := New(1)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	first := g.Generate()
	now = now.Add(-time.Second)
	second := g.Generate()
	if second <= first {
		t.Errorf("id after clock regression %d <= %d", second, first)
	}
}

func TestSequenceOverflowBorrowsNextMilli(t *testing.T) {
	g, _ := New(1)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	var last int64
	for i := 0; i <= maxSequence+1; i++ {
		id := g.Generate()
		if id <= last {
			t.Fatalf("id %d not increasing at %d", id, i)
		}
		last = id
	}
	at, _, seq := Decompose(last)
	if !at.Equal(now.Add(time.Millisecond)) || seq != 0 {
		t.Errorf("overflow id at=%s seq=%d", at, seq)
	}
}

func TestDecompose(t *testing.T) {
	g, _ := New(42)
	now := time.Date(2025, 3, 1, 12, 0, 0, 5_000_000, time.UTC)
	g.now = func() time.Time { return now }

	g.Generate()
	id := g.Generate()
	at, worker, seq := Decompose(id)
	if !at.Equal(now) || worker != 42 || seq != 1 {
		t.Errorf("Decompose = %s, %d, %d", at, worker, seq)
	}

	no := FormatNo(PrefixStake, id)
	if !strings.HasPrefix(no, "STK20250301120000") || !strings.HasSuffix(no, strconv.FormatInt(id, 10)) {
		t.Errorf("FormatNo = %s", no)
	}
}

func TestNewRejectsWorkerID(t *testing.T) {
	for _, id := range []int64{-1, maxWorkerID + 1} {
		if _, err := New(id); err == nil {
			t.Errorf("New(%d) accepted", id)
		}
	}
}
