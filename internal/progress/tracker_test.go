package progress_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/idelchi/folderstat/internal/progress"
)

func TestTracker_Lifecycle(t *testing.T) {
	tracker := progress.New()
	require.Equal(t, progress.StatusIdle, tracker.Current().Status)

	ctx, err := tracker.Begin(context.Background())
	require.NoError(t, err)
	require.NotNil(t, ctx)

	state := tracker.Current()
	require.Equal(t, progress.StatusRunning, state.Status)
	require.Zero(t, state.Percent)
	require.False(t, state.StartedAt.IsZero())

	tracker.Update("scanning", 30, "Scanned 10 files")
	tracker.Update("", 20, "late update")

	state = tracker.Current()
	require.InDelta(t, 30.0, state.Percent, 1e-9, "percent never decreases")
	require.Equal(t, "scanning", state.Phase)
	require.Equal(t, "late update", state.Message)

	tracker.Update("sizing", 250, "")
	require.InDelta(t, 100.0, tracker.Current().Percent, 1e-9)

	tracker.Complete("report")

	state = tracker.Current()
	require.Equal(t, progress.StatusCompleted, state.Status)
	require.Equal(t, "report", state.Report)
	require.ErrorIs(t, ctx.Err(), context.Canceled, "run context is released")

	tracker.Update("scanning", 10, "ignored")
	require.Equal(t, progress.StatusCompleted, tracker.Current().Status)
}

func TestTracker_Busy(t *testing.T) {
	tracker := progress.New()

	_, err := tracker.Begin(context.Background())
	require.NoError(t, err)

	_, err = tracker.Begin(context.Background())
	require.ErrorIs(t, err, progress.ErrBusy)

	tracker.Fail(errors.New("disk on fire"))

	state := tracker.Current()
	require.Equal(t, progress.StatusError, state.Status)
	require.Equal(t, "disk on fire", state.Err)

	_, err = tracker.Begin(context.Background())
	require.NoError(t, err, "a terminal tracker can start again")
	require.Empty(t, tracker.Current().Err)
}

func TestTracker_Cancel(t *testing.T) {
	tracker := progress.New()
	require.False(t, tracker.Cancel(), "nothing to cancel")

	ctx, err := tracker.Begin(context.Background())
	require.NoError(t, err)

	require.True(t, tracker.Cancel())
	require.ErrorIs(t, ctx.Err(), context.Canceled)
	require.Equal(t, progress.StatusRunning, tracker.Current().Status, "run stays active until it reports back")

	tracker.Cancelled("partial")

	state := tracker.Current()
	require.Equal(t, progress.StatusCancelled, state.Status)
	require.Equal(t, "partial", state.Report)
	require.False(t, tracker.Cancel())
}

func TestTracker_Reset(t *testing.T) {
	tracker := progress.New()

	_, err := tracker.Begin(context.Background())
	require.NoError(t, err)

	tracker.Reset()
	require.Equal(t, progress.StatusRunning, tracker.Current().Status)

	tracker.Complete(nil)
	tracker.Reset()
	require.Equal(t, progress.State{Status: progress.StatusIdle}, tracker.Current())
}

func TestTracker_ConcurrentReaders(t *testing.T) {
	tracker := progress.New()

	_, err := tracker.Begin(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup

	for range 4 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			last := 0.0
			for range 200 {
				percent := tracker.Current().Percent
				if percent < last {
					panic("percent went backwards")
				}

				last = percent
			}
		}()
	}

	for i := range 100 {
		tracker.Update("scanning", float64(i), "")
	}

	wg.Wait()
	tracker.Complete(nil)
}

func TestStatus_Terminal(t *testing.T) {
	require.False(t, progress.StatusIdle.Terminal())
	require.False(t, progress.StatusRunning.Terminal())
	require.True(t, progress.StatusCompleted.Terminal())
	require.True(t, progress.StatusError.Terminal())
	require.True(t, progress.StatusCancelled.Terminal())
}

func TestNop(t *testing.T) {
	var reporter progress.Reporter = progress.Nop{}
	reporter.Update("x", 1, "y")
}
