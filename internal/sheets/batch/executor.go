package batch

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// RunBounded invokes worker(i) for every i in [0, n) with at most limit
// invocations in flight at once and returns only after every started unit
// has settled. Workers record their own outcomes; an individual failure
// never short-circuits the rest of the batch. Start order follows index
// order, completion order is unconstrained.
//
// There is deliberately no context parameter: once dispatched, a unit runs
// to completion, matching the no-cancellation policy of the writer.
//
// A non-positive limit or an empty batch returns immediately.
func RunBounded(n, limit int, worker func(i int)) {
	if n <= 0 || limit <= 0 {
		return
	}
	if limit > n {
		limit = n
	}

	sem := semaphore.NewWeighted(int64(limit))
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		_ = sem.Acquire(context.Background(), 1)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			worker(i)
		}(i)
	}
	wg.Wait()
}
