package pool

import (
	"context"
	"fmt"
)

// Outcome is the typed result of one unit submitted by Map.
type Outcome[R any] struct {
	Value R
	Err   error
}

// Map runs fn for every item on the pool and returns outcomes in input order.
// Items that could not be submitted carry the submission error. Map waits for
// every submitted unit, even after ctx is cancelled.
func Map[T, R any](ctx context.Context, p *Pool, items []T, fn func(context.Context, T) (R, error)) []Outcome[R] {
	outcomes := make([]Outcome[R], len(items))
	futures := make([]*Future, len(items))

	for i, item := range items {
		future, err := p.Submit(ctx, func(ctx context.Context) (any, error) {
			return fn(ctx, item)
		})
		if err != nil {
			for j := i; j < len(items); j++ {
				outcomes[j].Err = err
			}

			break
		}

		futures[i] = future
	}

	for i, future := range futures {
		if future == nil {
			continue
		}

		value, err := future.Result()
		if err != nil {
			outcomes[i].Err = err

			continue
		}

		typed, ok := value.(R)
		if !ok && value != nil {
			outcomes[i].Err = fmt.Errorf("unexpected result type %T", value)

			continue
		}

		outcomes[i].Value = typed
	}

	return outcomes
}
