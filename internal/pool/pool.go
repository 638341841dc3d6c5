// Package pool provides a bounded worker pool: a fixed number of workers
// draining a job queue of fixed capacity. Submit blocks while the queue is
// full, so producers that outpace the workers are throttled instead of
// buffering without bound.
//
// The import run uses two pools. The file pool runs one loader task per
// input file; the mutation pool applies the batches those tasks submit.
package pool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// ErrStopped is returned by Submit after Stop has been called.
var ErrStopped = errors.New("pool stopped")

// Job is a unit of work. The context is the one the pool was created with.
type Job func(ctx context.Context) error

// Pool is a bounded worker pool. It is safe for concurrent use.
type Pool struct {
	name string
	ctx  context.Context
	jobs chan Job
	g    errgroup.Group

	mu      sync.RWMutex
	stopped bool

	stopOnce sync.Once
	stopErr  error

	errMu sync.Mutex
	errs  *multierror.Error

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// New starts a pool of workers goroutines reading from a queue of capacity
// queue. Non-positive values are raised to 1 worker and an unbuffered queue.
func New(ctx context.Context, name string, workers, queue int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}
	p := &Pool{name: name, ctx: ctx, jobs: make(chan Job, queue)}
	for i := 0; i < workers; i++ {
		p.g.Go(p.work)
	}
	return p
}

func (p *Pool) work() error {
	for job := range p.jobs {
		if err := p.run(job); err != nil {
			p.failed.Add(1)
			p.errMu.Lock()
			p.errs = multierror.Append(p.errs, err)
			p.errMu.Unlock()
		}
		p.completed.Add(1)
	}
	return nil
}

// run executes one job, turning a panic into an error so the worker keeps
// serving the queue.
func (p *Pool) run(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s pool: job panicked: %v\n%s", p.name, r, debug.Stack())
		}
	}()
	return job(p.ctx)
}

// Submit queues job, blocking while the queue is full. It returns
// ErrStopped once Stop has been called, or ctx's error if ctx ends while
// waiting for queue space.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return fmt.Errorf("%s pool: %w", p.name, ErrStopped)
	}
	select {
	case p.jobs <- job:
		p.submitted.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop stops accepting jobs, waits for every queued and running job to
// finish and returns the job failures in the order they were observed. It
// is safe to call more than once; later calls return the same result.
func (p *Pool) Stop() error {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		close(p.jobs)
		p.mu.Unlock()

		_ = p.g.Wait()
		p.errMu.Lock()
		p.stopErr = p.errs.ErrorOrNil()
		p.errMu.Unlock()
	})
	return p.stopErr
}

// Stats is a snapshot of a pool's job counters.
type Stats struct {
	Submitted int64
	Completed int64
	Failed    int64
}

// Stats returns the current job counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}
