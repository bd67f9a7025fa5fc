package pool_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/idelchi/folderstat/internal/pool"
)

func TestNew_ClampsSize(t *testing.T) {
	for _, tt := range []struct {
		in, want int
	}{
		{in: 0, want: 1},
		{in: -3, want: 1},
		{in: 4, want: 4},
		{in: 1000, want: 256},
	} {
		p := pool.New(tt.in)
		require.Equal(t, tt.want, p.Size())
		require.Equal(t, tt.want, p.Running())
		p.Close()
		require.Zero(t, p.Running())
	}
}

func TestDefaultSize(t *testing.T) {
	size := pool.DefaultSize()
	require.GreaterOrEqual(t, size, 5)
	require.LessOrEqual(t, size, 32)
}

func TestSubmit_Results(t *testing.T) {
	p := pool.New(4)
	defer p.Close()

	ctx := context.Background()

	var futures []*pool.Future

	for i := range 20 {
		future, err := p.Submit(ctx, func(context.Context) (any, error) {
			return i * i, nil
		})
		require.NoError(t, err)

		futures = append(futures, future)
	}

	for i, future := range futures {
		value, err := future.Wait(ctx)
		require.NoError(t, err)
		require.Equal(t, i*i, value)
	}
}

func TestSubmit_PanicIsolated(t *testing.T) {
	p := pool.New(2)
	defer p.Close()

	ctx := context.Background()

	bad, err := p.Submit(ctx, func(context.Context) (any, error) {
		panic("boom")
	})
	require.NoError(t, err)

	good, err := p.Submit(ctx, func(context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)

	_, err = bad.Wait(ctx)
	require.ErrorIs(t, err, pool.ErrTaskPanic)
	require.Contains(t, err.Error(), "boom")

	value, err := good.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", value)
}

func TestSubmit_ErrorIsolated(t *testing.T) {
	p := pool.New(2)
	defer p.Close()

	errUnit := errors.New("unit failed")

	outcomes := pool.Map(context.Background(), p, []int{1, 2, 3}, func(_ context.Context, n int) (int, error) {
		if n == 2 {
			return 0, errUnit
		}

		return n * 10, nil
	})

	require.Len(t, outcomes, 3)
	require.Equal(t, 10, outcomes[0].Value)
	require.ErrorIs(t, outcomes[1].Err, errUnit)
	require.Equal(t, 30, outcomes[2].Value)
}

func TestSubmit_AfterClose(t *testing.T) {
	p := pool.New(1)
	p.Close()
	p.Close()

	_, err := p.Submit(context.Background(), func(context.Context) (any, error) { return nil, nil })
	require.ErrorIs(t, err, pool.ErrClosed)
}

func TestSubmit_CancelledContext(t *testing.T) {
	p := pool.New(1)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Submit(ctx, func(context.Context) (any, error) { return nil, nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestQueuedUnitsSkippedOnCancel(t *testing.T) {
	p := pool.New(1)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	started := make(chan struct{})

	var ran atomic.Int64

	first, err := p.Submit(ctx, func(context.Context) (any, error) {
		close(started)
		<-release
		ran.Add(1)

		return "first", nil
	})
	require.NoError(t, err)

	<-started

	queued, err := p.Submit(ctx, func(context.Context) (any, error) {
		ran.Add(1)

		return "queued", nil
	})
	require.NoError(t, err)

	cancel()
	close(release)

	value, err := first.Result()
	require.NoError(t, err, "started units run to completion")
	require.Equal(t, "first", value)

	_, err = queued.Result()
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, int64(1), ran.Load())
}

func TestSubmit_BlocksWhenSaturated(t *testing.T) {
	p := pool.New(1)
	defer p.Close()

	release := make(chan struct{})
	block := func(context.Context) (any, error) {
		<-release

		return nil, nil
	}

	// One running, one queued.
	_, err := p.Submit(context.Background(), block)
	require.NoError(t, err)

	_, err = p.Submit(context.Background(), block)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = p.Submit(ctx, block)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
}

func TestClose_DrainsQueue(t *testing.T) {
	p := pool.New(2)

	var done atomic.Int64

	for range 10 {
		_, err := p.Submit(context.Background(), func(context.Context) (any, error) {
			time.Sleep(time.Millisecond)
			done.Add(1)

			return nil, nil
		})
		require.NoError(t, err)
	}

	p.Close()

	require.Equal(t, int64(10), done.Load())
	require.Zero(t, p.Running())
	require.Zero(t, p.Busy())
}

func TestMap_SubmissionFailure(t *testing.T) {
	p := pool.New(1)
	p.Close()

	outcomes := pool.Map(context.Background(), p, []string{"a", "b"}, func(_ context.Context, s string) (string, error) {
		return s, nil
	})

	require.Len(t, outcomes, 2)

	for _, outcome := range outcomes {
		require.ErrorIs(t, outcome.Err, pool.ErrClosed)
	}
}
