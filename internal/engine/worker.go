package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rendis/evoflow/pkg/schema"
)

// WorkerPool bounds the number of concurrently running tasks. The optimizer
// uses one pool per run to evaluate a generation's population in parallel.
type WorkerPool struct {
	sem chan struct{}
	wg  sync.WaitGroup

	submitted atomic.Int64
	completed atomic.Int64
}

// NewWorkerPool creates a pool admitting at most size concurrent tasks.
// A non-positive size defaults to 1.
func NewWorkerPool(size int) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{
		sem: make(chan struct{}, size),
	}
}

// Submit schedules task on the pool, blocking while the pool is saturated.
// Returns a CANCELLED error when the context is done before a slot frees up.
func (p *WorkerPool) Submit(ctx context.Context, task func()) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return schema.NewError(schema.ErrCodeCancelled, "worker pool submit cancelled").
			WithCause(ctx.Err())
	}

	p.submitted.Add(1)
	p.wg.Add(1)
	go func() {
		defer func() {
			<-p.sem
			p.completed.Add(1)
			p.wg.Done()
		}()
		task()
	}()
	return nil
}

// Wait blocks until every submitted task has finished. This is the
// generation barrier: no selection happens while evaluations are in flight.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

// Stats returns the number of submitted and completed tasks.
func (p *WorkerPool) Stats() (submitted, completed int64) {
	return p.submitted.Load(), p.completed.Load()
}
