// Package progress tracks the state of a single analysis run and lets other
// goroutines observe and cancel it.
package progress

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBusy is returned by Begin while a run is in progress.
var ErrBusy = errors.New("analysis already running")

// Status is the lifecycle state of a run.
type Status string

// Run states.
const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status ends a run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// State is a snapshot of the tracker.
type State struct {
	Status  Status  `json:"status"`
	Phase   string  `json:"phase,omitempty"`
	Percent float64 `json:"progress"`
	Message string  `json:"message,omitempty"`
	// Report is the result of a finished run.
	Report any `json:"report,omitempty"`
	// Err is the failure of an errored run.
	Err       string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// Reporter receives progress updates from a running analysis.
type Reporter interface {
	Update(phase string, percent float64, message string)
}

// Nop discards updates.
type Nop struct{}

// Update does nothing.
func (Nop) Update(string, float64, string) {}

// Tracker holds the state of the current run. It is safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	now    func() time.Time
}

// New returns an idle tracker.
func New() *Tracker {
	return &Tracker{
		state: State{Status: StatusIdle},
		now:   time.Now,
	}
}

// Begin starts a run. It fails with ErrBusy while another run is active.
// The returned context is cancelled by Cancel and released by the terminal
// transitions.
func (t *Tracker) Begin(ctx context.Context) (context.Context, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Status == StatusRunning {
		return nil, ErrBusy
	}

	runCtx, cancel := context.WithCancel(ctx)
	now := t.now()

	t.cancel = cancel
	t.state = State{
		Status:    StatusRunning,
		Phase:     "starting",
		StartedAt: now,
		UpdatedAt: now,
	}

	return runCtx, nil
}

// Update records progress. Updates outside a run are ignored, and percent is
// clamped to [0, 100] and never moves backwards.
func (t *Tracker) Update(phase string, percent float64, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Status != StatusRunning {
		return
	}

	percent = max(0, min(100, percent))
	if percent > t.state.Percent {
		t.state.Percent = percent
	}

	if phase != "" {
		t.state.Phase = phase
	}

	t.state.Message = message
	t.state.UpdatedAt = t.now()
}

// Complete ends the run successfully.
func (t *Tracker) Complete(report any) {
	t.finish(StatusCompleted, report, nil, "Analysis complete")
}

// Fail ends the run with an error.
func (t *Tracker) Fail(err error) {
	t.finish(StatusError, nil, err, "Analysis failed")
}

// Cancelled ends the run after cancellation, keeping the partial report.
func (t *Tracker) Cancelled(report any) {
	t.finish(StatusCancelled, report, nil, "Analysis cancelled")
}

// Cancel asks the current run to stop. It reports whether a run was active.
func (t *Tracker) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Status != StatusRunning || t.cancel == nil {
		return false
	}

	t.cancel()
	t.state.Message = "Cancelling"
	t.state.UpdatedAt = t.now()

	return true
}

// Current returns a snapshot of the state.
func (t *Tracker) Current() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state
}

// Reset returns a finished tracker to idle. It does nothing while running.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Status == StatusRunning {
		return
	}

	t.state = State{Status: StatusIdle}
}

func (t *Tracker) finish(status Status, report any, err error, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Status != StatusRunning {
		return
	}

	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}

	t.state.Status = status
	t.state.Report = report
	t.state.Message = message
	t.state.UpdatedAt = t.now()

	if err != nil {
		t.state.Err = err.Error()
	}

	if status == StatusCompleted {
		t.state.Percent = 100
	}
}
