// Package pool runs jobs on a fixed set of long-lived worker goroutines fed
// from an unbounded FIFO queue.
//
// Submit never blocks. Workers take jobs in submission order; which worker
// runs a job, and the order in which jobs finish, is unspecified. A slow
// handler occupies its worker until it returns: there are no deadlines.
package pool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// DefaultWorkers is the worker count used by callers that have no opinion.
const DefaultWorkers = 4

var (
	ErrClosed             = errors.New("pool: closed")
	ErrInvalidWorkerCount = errors.New("pool: worker count must be positive")
)

// Handler processes one job. A returned error is reported and the worker
// moves on to the next job.
type Handler[J any] func(job J) error

// PanicError wraps a value recovered from a panicking handler.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("pool: handler panic: %v", e.Value)
}

type config struct {
	onError func(error)
}

// Option configures a Pool.
type Option func(*config)

// WithErrorHandler sets the function that receives handler errors and
// recovered panics. It is called from worker goroutines.
func WithErrorHandler(fn func(error)) Option {
	return func(c *config) {
		if fn != nil {
			c.onError = fn
		}
	}
}

// WithLogger reports handler failures through entry.
func WithLogger(entry *logrus.Entry) Option {
	return WithErrorHandler(logTo(entry))
}

func logTo(entry *logrus.Entry) func(error) {
	return func(err error) {
		var pe *PanicError
		if errors.As(err, &pe) {
			entry.WithField("stack", string(pe.Stack)).WithError(err).Error("worker recovered from panic")
			return
		}
		entry.WithError(err).Warn("job failed")
	}
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Workers   int
	Queued    int
	Active    int64
	Completed int64
	Failed    int64
}

// Pool is a fixed-size worker pool.
type Pool[J any] struct {
	handler Handler[J]
	onError func(error)
	workers int

	mu      sync.Mutex
	cond    *sync.Cond
	jobs    queue[J]
	closing bool

	wg        sync.WaitGroup
	done      chan struct{}
	active    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// New starts workers goroutines that run handler on submitted jobs.
func New[J any](handler Handler[J], workers int, opts ...Option) (*Pool[J], error) {
	if workers <= 0 {
		return nil, ErrInvalidWorkerCount
	}
	if handler == nil {
		return nil, errors.New("pool: nil handler")
	}

	cfg := config{onError: logTo(logrus.WithField("component", "pool"))}
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &Pool[J]{
		handler: handler,
		onError: cfg.onError,
		workers: workers,
		done:    make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	go func() {
		p.wg.Wait()
		close(p.done)
	}()

	return p, nil
}

// Submit queues job and wakes one idle worker.
func (p *Pool[J]) Submit(job J) error {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return ErrClosed
	}
	p.jobs.push(job)
	p.mu.Unlock()

	p.cond.Signal()
	return nil
}

func (p *Pool[J]) worker() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for p.jobs.len() == 0 && !p.closing {
			p.cond.Wait()
		}
		job, ok := p.jobs.pop()
		p.mu.Unlock()

		if !ok {
			// Shutting down and nothing left to drain.
			return
		}
		p.run(job)
	}
}

// run invokes the handler outside the queue lock and contains failures.
func (p *Pool[J]) run(job J) {
	p.active.Add(1)
	defer p.active.Add(-1)

	err := p.call(job)
	p.completed.Add(1)
	if err != nil {
		p.failed.Add(1)
		p.onError(err)
	}
}

func (p *Pool[J]) call(job J) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return p.handler(job)
}

// Close stops accepting jobs, lets the workers drain the queue and waits for
// all of them to exit. It is safe to call more than once.
func (p *Pool[J]) Close() {
	p.beginShutdown()
	<-p.done
}

// Shutdown is Close bounded by ctx. When ctx ends first the workers keep
// draining in the background and ctx.Err() is returned.
func (p *Pool[J]) Shutdown(ctx context.Context) error {
	p.beginShutdown()
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool[J]) beginShutdown() {
	p.mu.Lock()
	p.closing = true
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Stats reports queue depth and job counters.
func (p *Pool[J]) Stats() Stats {
	p.mu.Lock()
	queued := p.jobs.len()
	p.mu.Unlock()

	return Stats{
		Workers:   p.workers,
		Queued:    queued,
		Active:    p.active.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}
