package pool

import "context"

// Future is the pending result of a submitted task.
type Future struct {
	done  chan struct{}
	value any
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(value any, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// Done is closed once the task has finished or was abandoned.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the task finishes or ctx ends.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the outcome of a finished task. It blocks until the task is done.
func (f *Future) Result() (any, error) {
	<-f.done

	return f.value, f.err
}
