package crawler

import (
	"context"
	"errors"
	"sync"
)

// ErrPoolClosed is returned by Submit once the pool has shut down.
var ErrPoolClosed = errors.New("worker pool closed")

// Job is a unit of work run on a pool worker. The context is cancelled when
// the pool shuts down.
type Job func(ctx context.Context)

// WorkerPool bounds outbound fan-out across every in-flight scrape with a
// fixed set of workers and a bounded queue.
type WorkerPool struct {
	ctx    context.Context
	cancel context.CancelFunc
	jobs   chan Job
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewWorkerPool creates a pool with the given concurrency and queue size.
func NewWorkerPool(parent context.Context, concurrency, queueSize int) (*WorkerPool, error) {
	if concurrency <= 0 || queueSize <= 0 {
		return nil, errors.New("worker pool requires positive concurrency and queue size")
	}
	ctx, cancel := context.WithCancel(parent)
	pool := &WorkerPool{
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(chan Job, queueSize),
	}
	pool.start(concurrency)
	return pool, nil
}

func (p *WorkerPool) start(concurrency int) {
	for i := 0; i < concurrency; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			// Queued jobs still run after shutdown so they can report
			// their cancellation; they see a done context.
			for job := range p.jobs {
				job(p.ctx)
			}
		}()
	}
}

// Submit schedules a job, blocking while the queue is full. It fails when
// ctx is done first or the pool is closed.
func (p *WorkerPool) Submit(ctx context.Context, fn Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrPoolClosed
	case p.jobs <- fn:
		return nil
	}
}

// Pending reports how many jobs wait in the queue.
func (p *WorkerPool) Pending() int {
	return len(p.jobs)
}

// Close cancels running jobs, drains the queue and stops all workers.
// Calling it more than once is safe.
func (p *WorkerPool) Close() {
	p.cancel()
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
