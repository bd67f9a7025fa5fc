// Package pool provides a bounded worker pool with per-unit results.
package pool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc/panics"
)

// Size bounds.
const (
	MinSize = 1
	MaxSize = 256
)

var (
	// ErrClosed is returned when submitting to a closed pool.
	ErrClosed = errors.New("pool closed")
	// ErrTaskPanic wraps a panic recovered from a unit of work.
	ErrTaskPanic = errors.New("task panicked")
)

// Task is a unit of work.
type Task func(ctx context.Context) (any, error)

// DefaultSize returns min(32, GOMAXPROCS+4).
func DefaultSize() int {
	return min(32, runtime.GOMAXPROCS(0)+4)
}

// job is a submitted task with its completion handle.
type job struct {
	ctx    context.Context //nolint:containedctx // Carried to the worker with the task
	task   Task
	future *Future
}

// Pool runs submitted tasks on a fixed number of goroutines.
type Pool struct {
	size  int
	queue chan job

	mu     sync.RWMutex
	closed bool

	workers sync.WaitGroup
	running atomic.Int64
	busy    atomic.Int64
	once    sync.Once
}

// New starts a pool of size workers, clamped to [MinSize, MaxSize].
// The queue holds as many pending units as there are workers.
func New(size int) *Pool {
	size = max(MinSize, min(size, MaxSize))

	p := &Pool{
		size:  size,
		queue: make(chan job, size),
	}

	p.workers.Add(size)
	p.running.Add(int64(size))

	for range size {
		go p.work()
	}

	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Running returns the number of live worker goroutines.
func (p *Pool) Running() int {
	return int(p.running.Load())
}

// Busy returns the number of units currently executing.
func (p *Pool) Busy() int {
	return int(p.busy.Load())
}

// Submit queues a task. It blocks while every worker is busy and the queue
// is full, and fails with ErrClosed after Close or ctx.Err() on cancellation.
func (p *Pool) Submit(ctx context.Context, task Task) (*Future, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrClosed
	}

	future := newFuture()

	select {
	case p.queue <- job{ctx: ctx, task: task, future: future}:
		return future, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting work, lets queued units drain and waits for every
// worker to exit. It is safe to call more than once.
func (p *Pool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()
	})

	p.workers.Wait()
}

func (p *Pool) work() {
	defer func() {
		p.running.Add(-1)
		p.workers.Done()
	}()

	for j := range p.queue {
		// Units whose context ended while queued never start.
		if err := j.ctx.Err(); err != nil {
			j.future.complete(nil, err)

			continue
		}

		p.busy.Add(1)
		j.future.complete(run(j.ctx, j.task))
		p.busy.Add(-1)
	}
}

// run executes a task, converting a panic into ErrTaskPanic.
func run(ctx context.Context, task Task) (any, error) {
	var (
		value   any
		err     error
		catcher panics.Catcher
	)

	catcher.Try(func() {
		value, err = task(ctx)
	})

	if recovered := catcher.Recovered(); recovered != nil {
		return nil, fmt.Errorf("%w: %v", ErrTaskPanic, recovered.Value)
	}

	return value, err
}
