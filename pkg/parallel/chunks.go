package parallel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// ItemError reports the failure of one item in a MapChunks batch
type ItemError struct {
	Index int
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// ChunkCount returns the number of chunks n items split into
func ChunkCount(n, chunkSize int) int {
	if n <= 0 {
		return 0
	}
	if chunkSize <= 0 {
		chunkSize = 1
	}
	return (n + chunkSize - 1) / chunkSize
}

// MapChunks applies fn to items 0..n-1, split into contiguous chunks of
// chunkSize that run on the pool. Results are returned in index order.
//
// When items fail, the error with the smallest index is returned as an
// *ItemError and all results are discarded. Items above the smallest
// failing index seen so far are skipped; items below it always run, so the
// reported index does not depend on scheduling. ctx is checked before each
// item and while waiting for queue space.
func MapChunks[T any](ctx context.Context, wp *WorkerPool, n, chunkSize int, fn func(ctx context.Context, i int) (T, error)) ([]T, error) {
	if n <= 0 {
		return []T{}, nil
	}
	if chunkSize <= 0 {
		chunkSize = 1
	}

	results := make([]T, n)
	chunks := ChunkCount(n, chunkSize)
	chunkErrs := make([]*ItemError, chunks)

	var minFailed atomic.Int64
	minFailed.Store(math.MaxInt64)
	fail := func(i int) {
		for {
			cur := minFailed.Load()
			if int64(i) >= cur || minFailed.CompareAndSwap(cur, int64(i)) {
				return
			}
		}
	}

	var wg sync.WaitGroup
	for c := 0; c < chunks; c++ {
		start := c * chunkSize
		end := min(start+chunkSize, n)
		chunk := c

		task := func() {
			defer wg.Done()
			i := start
			defer func() {
				if r := recover(); r != nil {
					chunkErrs[chunk] = &ItemError{Index: i, Err: fmt.Errorf("panic: %v", r)}
					fail(i)
				}
			}()
			for ; i < end; i++ {
				if int64(i) > minFailed.Load() {
					return
				}
				if err := ctx.Err(); err != nil {
					chunkErrs[chunk] = &ItemError{Index: i, Err: err}
					fail(i)
					return
				}
				v, err := fn(ctx, i)
				if err != nil {
					chunkErrs[chunk] = &ItemError{Index: i, Err: err}
					fail(i)
					return
				}
				results[i] = v
			}
		}

		wg.Add(1)
		if err := wp.Submit(ctx, task); err != nil {
			wg.Done()
			wg.Wait()
			if errors.Is(err, ErrPoolClosed) {
				return nil, err
			}
			return nil, &ItemError{Index: start, Err: err}
		}
	}
	wg.Wait()

	var first *ItemError
	for _, e := range chunkErrs {
		if e != nil && (first == nil || e.Index < first.Index) {
			first = e
		}
	}
	if first != nil {
		return nil, first
	}
	return results, nil
}
