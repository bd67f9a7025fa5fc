package duration

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/idelchi/folderstat/internal/classify"
	"github.com/idelchi/folderstat/internal/pool"
)

// Sampling defaults.
const (
	DefaultThreshold     = 1000
	DefaultMinSample     = 100
	DefaultSampleDivisor = 10
)

// Status describes how a duration result was obtained.
type Status string

// Result statuses.
const (
	// StatusOK means at least one file was probed successfully.
	StatusOK Status = "ok"
	// StatusUnknown means every probe failed.
	StatusUnknown Status = "unknown"
	// StatusUnavailable means the probe tool is missing.
	StatusUnavailable Status = "unavailable"
	// StatusSkipped means durations were not requested.
	StatusSkipped Status = "skipped"
	// StatusCancelled means the run was cancelled while probing.
	StatusCancelled Status = "cancelled"
)

// Result is the duration total of one media category.
type Result struct {
	Category     classify.Category `json:"category"`
	TotalSeconds float64           `json:"total_duration"`
	Formatted    string            `json:"formatted_duration"`
	// Durations holds per-file seconds for successfully probed files in exact mode.
	Durations         map[string]float64 `json:"individual_durations,omitempty"`
	FilesTotal        int                `json:"total_files"`
	FilesProcessed    int                `json:"files_processed"`
	FilesFailed       int                `json:"files_failed"`
	Estimated         bool               `json:"estimated"`
	SampleSize        int                `json:"sample_size,omitempty"`
	SuccessfulSamples int                `json:"successful_samples,omitempty"`
	Status            Status             `json:"status"`
	Elapsed           time.Duration      `json:"elapsed"`
}

// NewResult returns a result with no probes for the given status.
func NewResult(category classify.Category, files int, status Status) *Result {
	result := &Result{Category: category, FilesTotal: files, Status: status}
	result.format()

	return result
}

func (r *Result) format() {
	switch r.Status {
	case StatusUnknown, StatusUnavailable, StatusSkipped:
		r.Formatted = string(r.Status)
	default:
		r.Formatted = Format(r.TotalSeconds)
	}
}

// Estimator totals media durations, probing every file of small sets and a
// uniform random sample of large ones.
type Estimator struct {
	Prober Prober
	// Pool runs probes concurrently. Nil probes sequentially.
	Pool *pool.Pool
	// Rand drives sampling. Nil uses the global source.
	Rand *rand.Rand
	// Threshold is the largest set probed exhaustively.
	Threshold int
	// MinSample is the smallest sample taken above the threshold.
	MinSample int
	// SampleDivisor sets the sample to n/SampleDivisor when that is larger.
	SampleDivisor int
	// Progress is called after each probe with the number done and planned.
	// It may be called concurrently.
	Progress func(done, total int)

	mu sync.Mutex
}

// NewEstimator returns an estimator with the default sampling parameters.
func NewEstimator(prober Prober, p *pool.Pool, r *rand.Rand) *Estimator {
	return &Estimator{
		Prober:        prober,
		Pool:          p,
		Rand:          r,
		Threshold:     DefaultThreshold,
		MinSample:     DefaultMinSample,
		SampleDivisor: DefaultSampleDivisor,
	}
}

// SampleSize returns how many of n files are probed.
func (e *Estimator) SampleSize(n int) int {
	if n <= e.Threshold {
		return n
	}

	return min(n, max(e.MinSample, n/max(e.SampleDivisor, 1)))
}

// Estimate totals the durations of files. Sets no larger than Threshold are
// probed in full. Larger sets are sampled without replacement and the mean
// of successful probes is scaled to the whole set. Cancellation stops
// outstanding probes and keeps the partial sum.
func (e *Estimator) Estimate(ctx context.Context, files []string, category classify.Category) *Result {
	start := time.Now()
	n := len(files)

	result := &Result{Category: category, FilesTotal: n, Status: StatusOK}

	defer func() {
		result.Elapsed = time.Since(start)
		result.format()
	}()

	if n == 0 {
		return result
	}

	targets := files
	sampled := n > e.Threshold

	if sampled {
		targets = e.sample(files, e.SampleSize(n))
		result.Estimated = true
		result.SampleSize = len(targets)
	} else {
		result.Durations = make(map[string]float64, n)
	}

	outcomes := e.probeAll(ctx, targets)

	var (
		sum         float64
		successes   int
		unavailable int
		cancelled   bool
	)

	for i, outcome := range outcomes {
		switch {
		case outcome.Err == nil:
			sum += outcome.Value
			successes++

			if !sampled {
				result.Durations[targets[i]] = outcome.Value
			}
		case errors.Is(outcome.Err, context.Canceled), errors.Is(outcome.Err, context.DeadlineExceeded) && ctx.Err() != nil:
			cancelled = true

			continue
		case errors.Is(outcome.Err, ErrToolUnavailable):
			unavailable++
			result.FilesFailed++
		default:
			result.FilesFailed++
		}

		result.FilesProcessed++
	}

	if sampled {
		result.SuccessfulSamples = successes
		if successes > 0 {
			sum = sum / float64(successes) * float64(n)
		}
	}

	result.TotalSeconds = sum

	switch {
	case cancelled || ctx.Err() != nil:
		result.Status = StatusCancelled
	case successes == 0 && unavailable > 0 && unavailable == result.FilesFailed:
		result.Status = StatusUnavailable
	case successes == 0:
		result.Status = StatusUnknown
	}

	return result
}

// probeAll probes every target, on the pool when one is configured.
func (e *Estimator) probeAll(ctx context.Context, targets []string) []pool.Outcome[float64] {
	var done atomic.Int64

	probe := func(ctx context.Context, path string) (float64, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		seconds, err := e.Prober.Probe(ctx, path)

		if e.Progress != nil {
			e.Progress(int(done.Add(1)), len(targets))
		}

		return seconds, err
	}

	if e.Pool != nil {
		return pool.Map(ctx, e.Pool, targets, probe)
	}

	outcomes := make([]pool.Outcome[float64], len(targets))
	for i, path := range targets {
		outcomes[i].Value, outcomes[i].Err = probe(ctx, path)
	}

	return outcomes
}

// sample draws k files uniformly without replacement with a partial
// Fisher-Yates shuffle over a copy of files.
func (e *Estimator) sample(files []string, k int) []string {
	shuffled := slices.Clone(files)

	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range k {
		j := i + e.intN(len(shuffled)-i)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	return shuffled[:k]
}

func (e *Estimator) intN(n int) int {
	if e.Rand == nil {
		return rand.IntN(n)
	}

	return e.Rand.IntN(n)
}
