package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// ErrPoolShutdown is returned when work is submitted to a stopped pool.
var ErrPoolShutdown = errors.New("worker pool is shut down")

// PoolStats contains worker pool statistics.
type PoolStats struct {
	Name        string  `json:"name"`
	Workers     int     `json:"workers"`
	Active      int64   `json:"active"`
	Pending     int64   `json:"pending"`
	Completed   int64   `json:"completed"`
	Failed      int64   `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

// WorkerPool runs independent CPU-bound tasks on a bounded number of
// goroutines. Each Run call fans its tasks out and joins them before
// returning; tasks share no state through the pool.
type WorkerPool struct {
	name    string
	workers int

	// Atomic counters for thread-safe statistics
	active    int64
	pending   int64
	completed int64
	failed    int64

	inflight sync.WaitGroup
	running  bool
	mu       sync.RWMutex
}

// NewWorkerPool creates a pool running at most workers tasks at once.
// A non-positive count uses GOMAXPROCS.
func NewWorkerPool(name string, workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return &WorkerPool{
		name:    name,
		workers: workers,
		running: true,
	}
}

// Workers returns the concurrency limit.
func (p *WorkerPool) Workers() int { return p.workers }

// Run calls task(ctx, i) for every i in [0, n). The first failing task
// cancels the context seen by the others, and its error is returned after
// all started tasks finish. A panicking task fails with an error instead of
// crashing the process.
func (p *WorkerPool) Run(ctx context.Context, n int, task func(ctx context.Context, i int) error) error {
	p.mu.RLock()
	if !p.running {
		p.mu.RUnlock()
		return ErrPoolShutdown
	}
	p.inflight.Add(1)
	p.mu.RUnlock()
	defer p.inflight.Done()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		atomic.AddInt64(&p.pending, 1)
		g.Go(func() error {
			atomic.AddInt64(&p.pending, -1)
			return p.execute(gctx, i, task)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	// tasks skipped after cancellation report no error of their own
	return ctx.Err()
}

// execute runs a single task and updates the statistics.
func (p *WorkerPool) execute(ctx context.Context, i int, task func(context.Context, int) error) (err error) {
	atomic.AddInt64(&p.active, 1)
	defer atomic.AddInt64(&p.active, -1)

	// Panic recovery to prevent one task from crashing the entire pool
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in task %d: %s", i, panicToString(r))
		}
		if err != nil {
			atomic.AddInt64(&p.failed, 1)
		} else {
			atomic.AddInt64(&p.completed, 1)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return task(ctx, i)
}

// panicToString converts a recovered panic value to a string.
func panicToString(r interface{}) string {
	switch v := r.(type) {
	case string:
		return v
	case error:
		return v.Error()
	default:
		return fmt.Sprint(v)
	}
}

// Map applies fn to every item on the pool and returns the results in input
// order.
func Map[T, R any](ctx context.Context, p *WorkerPool, items []T, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	out := make([]R, len(items))
	err := p.Run(ctx, len(items), func(ctx context.Context, i int) error {
		r, err := fn(ctx, items[i])
		if err != nil {
			return err
		}
		out[i] = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetStats returns current worker pool statistics.
func (p *WorkerPool) GetStats() PoolStats {
	completed := atomic.LoadInt64(&p.completed)
	failed := atomic.LoadInt64(&p.failed)
	total := completed + failed

	var successRate float64
	if total > 0 {
		successRate = float64(completed) / float64(total) * 100
	}

	return PoolStats{
		Name:        p.name,
		Workers:     p.workers,
		Active:      atomic.LoadInt64(&p.active),
		Pending:     atomic.LoadInt64(&p.pending),
		Completed:   completed,
		Failed:      failed,
		SuccessRate: successRate,
	}
}

// Shutdown stops accepting work and waits for running calls to finish.
func (p *WorkerPool) Shutdown() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	p.inflight.Wait()
}

// IsRunning returns true if the pool is still accepting work.
func (p *WorkerPool) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}
