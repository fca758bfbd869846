package parallel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func mustPool(workers int) *WorkerPool {
	pool, err := NewWorkerPool(workers, WithPanicHandler(func(any) {}))
	if err != nil {
		panic(err)
	}
	return pool
}

func TestNewWorkerPool_Size(t *testing.T) {
	tests := []struct {
		in      int
		want    int
		wantErr bool
	}{
		{-5, 1, false},
		{0, 1, false},
		{1, 1, false},
		{64, 64, false},
		{MaxWorkers, MaxWorkers, false},
		{MaxWorkers + 1, 0, true},
	}

	for _, tt := range tests {
		pool, err := NewWorkerPool(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrTooManyWorkers) {
				t.Errorf("NewWorkerPool(%d) error = %v, want ErrTooManyWorkers", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("NewWorkerPool(%d) failed: %v", tt.in, err)
		}
		if pool.Workers() != tt.want {
			t.Errorf("NewWorkerPool(%d).Workers() = %d, want %d", tt.in, pool.Workers(), tt.want)
		}
		if cap(pool.queue) != 2*tt.want {
			t.Errorf("queue capacity = %d, want %d", cap(pool.queue), 2*tt.want)
		}
		pool.Close()
	}
}

// TestWorkerPoolTaskExecution tests that every submitted task runs before
// Close returns
func TestWorkerPoolTaskExecution(t *testing.T) {
	pool := mustPool(5)

	const numTasks = 50
	var executed [numTasks]atomic.Bool
	for i := 0; i < numTasks; i++ {
		i := i
		if err := pool.Submit(context.Background(), func() { executed[i].Store(true) }); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	pool.Close()

	for i := range executed {
		if !executed[i].Load() {
			t.Errorf("Task %d was not executed", i)
		}
	}
}

// TestWorkerPoolConcurrentSubmissions tests concurrent task submissions
func TestWorkerPoolConcurrentSubmissions(t *testing.T) {
	pool := mustPool(10)

	var counter atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Submit(context.Background(), func() { counter.Add(1) })
		}()
	}
	wg.Wait()
	pool.Close()

	if counter.Load() != 100 {
		t.Errorf("Expected counter 100, got %d", counter.Load())
	}
}

// TestWorkerPoolCloseRace closes the pool while submitters are running.
// Submissions either succeed or report ErrPoolClosed; none may panic.
func TestWorkerPoolCloseRace(t *testing.T) {
	for iteration := 0; iteration < 50; iteration++ {
		pool := mustPool(4)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					err := pool.Submit(context.Background(), func() { time.Sleep(time.Millisecond) })
					if err != nil && !errors.Is(err, ErrPoolClosed) {
						t.Errorf("unexpected Submit error: %v", err)
					}
				}
			}()
		}

		time.Sleep(2 * time.Millisecond)
		pool.Close()
		wg.Wait()
	}
}

func TestWorkerPoolSubmitAfterClose(t *testing.T) {
	pool := mustPool(4)
	pool.Close()

	err := pool.Submit(context.Background(), func() {
		t.Error("This task should never execute")
	})
	if !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Submit after close = %v, want ErrPoolClosed", err)
	}
}

// TestWorkerPoolSubmitCanceled fills the queue and checks that a blocked
// Submit gives up when its context ends
func TestWorkerPoolSubmitCanceled(t *testing.T) {
	pool := mustPool(1)

	release := make(chan struct{})
	block := func() { <-release }

	// One task occupies the worker, two more fill the queue
	for i := 0; i < 3; i++ {
		if err := pool.Submit(context.Background(), block); err != nil {
			t.Fatalf("Submit %d failed: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := pool.Submit(ctx, block); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Submit on a full queue = %v, want DeadlineExceeded", err)
	}

	close(release)
	pool.Close()
}

func TestWorkerPoolConcurrentClose(t *testing.T) {
	pool := mustPool(4)
	for i := 0; i < 20; i++ {
		_ = pool.Submit(context.Background(), func() { time.Sleep(time.Millisecond) })
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Close()
		}()
	}
	wg.Wait()
	pool.Close()
}

// TestWorkerPoolWithPanic tests that panics in tasks don't crash the pool
func TestWorkerPoolWithPanic(t *testing.T) {
	var panics, counter atomic.Int64
	pool, err := NewWorkerPool(4, WithPanicHandler(func(r any) {
		panics.Add(1)
	}))
	if err != nil {
		t.Fatalf("NewWorkerPool failed: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = pool.Submit(ctx, func() { panic("intentional panic") })
	}
	for i := 0; i < 10; i++ {
		_ = pool.Submit(ctx, func() { counter.Add(1) })
	}
	pool.Close()

	if counter.Load() != 10 {
		t.Errorf("Expected counter 10, got %d", counter.Load())
	}
	if panics.Load() != 5 {
		t.Errorf("Expected 5 recovered panics, got %d", panics.Load())
	}
}

func BenchmarkWorkerPoolThroughput(b *testing.B) {
	pool := mustPool(8)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = pool.Submit(ctx, func() {})
	}
	pool.Close()
}
