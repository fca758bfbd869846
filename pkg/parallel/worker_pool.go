package parallel

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// MaxWorkers bounds the pool size
const MaxWorkers = 4096

var (
	// ErrTooManyWorkers is returned when the worker count exceeds MaxWorkers
	ErrTooManyWorkers = errors.New("worker count exceeds maximum")

	// ErrPoolClosed is returned when work is submitted to a closed pool
	ErrPoolClosed = errors.New("worker pool is closed")
)

// WorkerPool runs tasks on a fixed set of goroutines. It is long lived:
// an evaluator submits one batch per elementwise dispatch and awaits it
// with its own WaitGroup (see MapChunks). Close ends the pool.
type WorkerPool struct {
	workers int
	queue   chan func()
	wg      sync.WaitGroup
	once    sync.Once

	// mu is held for reading while sending so Close cannot close the
	// queue under a sender
	mu      sync.RWMutex
	closed  bool
	onPanic func(any)
}

// Option configures a WorkerPool
type Option func(*WorkerPool)

// WithPanicHandler sets the function called with the recovered value when
// a task panics. The default prints to stdout.
func WithPanicHandler(fn func(any)) Option {
	return func(wp *WorkerPool) {
		wp.onPanic = fn
	}
}

// NewWorkerPool starts a pool. Non-positive counts mean one worker.
func NewWorkerPool(workers int, opts ...Option) (*WorkerPool, error) {
	if workers <= 0 {
		workers = 1
	}
	if workers > MaxWorkers {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrTooManyWorkers, workers, MaxWorkers)
	}

	wp := &WorkerPool{
		workers: workers,
		queue:   make(chan func(), workers*2),
		onPanic: func(r any) {
			fmt.Printf("Worker panic recovered: %v\n", r)
		},
	}
	for _, opt := range opts {
		opt(wp)
	}

	wp.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go wp.run()
	}
	return wp, nil
}

// Workers returns the number of worker goroutines
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

func (wp *WorkerPool) run() {
	defer wp.wg.Done()
	for task := range wp.queue {
		wp.exec(task)
	}
}

// exec runs one task, keeping the worker alive if it panics
func (wp *WorkerPool) exec(task func()) {
	defer func() {
		if r := recover(); r != nil {
			wp.onPanic(r)
		}
	}()
	task()
}

// Submit queues a task. It blocks while the queue is full and returns
// ctx.Err() if ctx ends first, or ErrPoolClosed after Close.
func (wp *WorkerPool) Submit(ctx context.Context, task func()) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.closed {
		return ErrPoolClosed
	}
	select {
	case wp.queue <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks, lets queued ones finish and waits for the
// workers to exit. It is safe to call more than once.
func (wp *WorkerPool) Close() {
	wp.once.Do(func() {
		wp.mu.Lock()
		wp.closed = true
		close(wp.queue)
		wp.mu.Unlock()
	})
	wp.wg.Wait()
}
