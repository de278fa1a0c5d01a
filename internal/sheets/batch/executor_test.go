package batch

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestRunBoundedLimitsInFlight(t *testing.T) {
	const items = 5
	const limit = 2

	var inFlight, maxInFlight, started int32
	RunBounded(items, limit, func(i int) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			max := atomic.LoadInt32(&maxInFlight)
			if cur <= max || atomic.CompareAndSwapInt32(&maxInFlight, max, cur) {
				break
			}
		}
		atomic.AddInt32(&started, 1)
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
	})

	if started != items {
		t.Errorf("started = %d, want %d", started, items)
	}
	if maxInFlight > limit {
		t.Errorf("observed %d concurrent workers, limit is %d", maxInFlight, limit)
	}
}

func TestRunBoundedRunsEveryIndexOnce(t *testing.T) {
	seen := make([]int32, 10)
	RunBounded(len(seen), 3, func(i int) {
		atomic.AddInt32(&seen[i], 1)
	})
	for i, n := range seen {
		if n != 1 {
			t.Errorf("index %d ran %d times, want 1", i, n)
		}
	}
}

func TestRunBoundedToleratesWorkerFailures(t *testing.T) {
	// Workers record their own failures; one "failing" unit must not stop
	// the others from running.
	var ran int32
	RunBounded(4, 2, func(i int) {
		if i == 1 {
			return // simulates a unit that settled with an error
		}
		atomic.AddInt32(&ran, 1)
	})
	if ran != 3 {
		t.Errorf("ran = %d, want 3", ran)
	}
}

func TestRunBoundedEdgeCases(t *testing.T) {
	called := false
	RunBounded(0, 2, func(int) { called = true })
	if called {
		t.Error("worker invoked for empty batch")
	}
	RunBounded(3, 0, func(int) { called = true })
	if called {
		t.Error("worker invoked with non-positive limit")
	}
	RunBounded(2, 100, func(int) {}) // limit larger than n must not block
}
