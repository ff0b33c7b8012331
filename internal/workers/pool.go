package workers

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueFull is returned by Submit when the job queue has no free slot.
var ErrQueueFull = errors.New("worker queue is full")

// ErrPoolClosed is returned when work is submitted after Shutdown.
var ErrPoolClosed = errors.New("worker pool is closed")

// Pool runs blocking jobs on a fixed number of worker goroutines behind a
// bounded queue. QueueSize exposes the current queue depth so callers can
// shed load before enqueueing more work.
type Pool struct {
	jobs chan func()
	wg   sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewPool starts size workers with a job queue of queueLen slots.
func NewPool(size, queueLen int) *Pool {
	if size < 1 {
		size = 1
	}
	if queueLen < 0 {
		queueLen = 0
	}

	p := &Pool{
		jobs: make(chan func(), queueLen),
	}

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		job()
	}
}

// QueueSize returns the number of queued jobs not yet picked up by a worker.
// It is a plain channel length read and safe to call on every request.
func (p *Pool) QueueSize() int {
	return len(p.jobs)
}

// Submit enqueues job without blocking. It fails with ErrQueueFull when the
// queue is saturated.
func (p *Pool) Submit(job func()) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	defer p.mu.Unlock()

	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run executes fn on the pool and waits for it to finish. If ctx is canceled
// before fn starts, Run returns the context error and fn never runs. Once fn
// has started it always runs to completion, but a cancellation that lands in
// the narrow window while fn is starting may make Run return ctx.Err() and
// discard fn's result. Callers must not assume fn did not run when Run
// returns a context error.
func (p *Pool) Run(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	started := make(chan struct{})

	err := p.Submit(func() {
		select {
		case <-ctx.Done():
			done <- ctx.Err()
			return
		default:
		}
		close(started)
		done <- fn()
	})
	if err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// The job may still be queued; wait for it only if it started.
		select {
		case <-started:
			return <-done
		default:
			return ctx.Err()
		}
	}
}

// Shutdown stops accepting jobs and waits for the workers to drain the queue,
// or for ctx to expire.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
