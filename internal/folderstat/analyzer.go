package folderstat

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/idelchi/folderstat/internal/aggregate"
	"github.com/idelchi/folderstat/internal/cache"
	"github.com/idelchi/folderstat/internal/classify"
	"github.com/idelchi/folderstat/internal/duration"
	"github.com/idelchi/folderstat/internal/metrics"
	"github.com/idelchi/folderstat/internal/pool"
	"github.com/idelchi/folderstat/internal/progress"
	"github.com/idelchi/folderstat/internal/walk"
)

// DefaultProgressInterval is the default interval for progress updates.
const DefaultProgressInterval = 250 * time.Millisecond

// Progress bands of a run, in percent.
const (
	scanEnd     = 60
	durationEnd = 95
)

// Deps are the collaborators of an Analyzer. Every field is optional.
type Deps struct {
	Logger  *zap.Logger
	Cache   *cache.Cache[*Report]
	Prober  duration.Prober
	Metrics *metrics.Metrics
	// Tracker receives progress and exposes cancellation. Without one, runs
	// are not observable and not limited to one at a time.
	Tracker *progress.Tracker
	// Rand seeds the sampling of large media sets.
	Rand *rand.Rand
	// ProgressInterval controls how often scan progress is published.
	ProgressInterval time.Duration
}

// Analyzer runs analyses. It is safe for concurrent use.
type Analyzer struct {
	deps   Deps
	logger *zap.Logger
	group  singleflight.Group

	randMu sync.Mutex
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(deps Deps) *Analyzer {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	if deps.Metrics == nil {
		deps.Metrics = metrics.New(nil)
	}

	if deps.ProgressInterval <= 0 {
		deps.ProgressInterval = DefaultProgressInterval
	}

	return &Analyzer{deps: deps, logger: deps.Logger}
}

// Tracker returns the progress tracker, if any.
func (a *Analyzer) Tracker() *progress.Tracker {
	return a.deps.Tracker
}

// Prober returns the media prober, if any.
func (a *Analyzer) Prober() duration.Prober {
	return a.deps.Prober
}

// Analyze analyzes the tree at root.
//
// Invalid options or an unusable root fail before any work starts.
// Cancellation is not an error: the partial report comes back with Status
// cancelled. Concurrent calls for the same root and options share one run,
// including the first caller's context: cancelling it cancels the run for
// every caller that joined.
func (a *Analyzer) Analyze(ctx context.Context, root string, opts Options) (*Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	table, err := classify.NewTable(opts.Extensions)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	root, err = ResolveRoot(root)
	if err != nil {
		return nil, err
	}

	if a.deps.Cache != nil && !opts.NoCache {
		if report, ok := a.deps.Cache.Get(root, opts.Policy()); ok && reusable(report, opts) {
			a.deps.Metrics.CacheRequestsTotal.WithLabelValues("hit").Inc()
			a.logger.Info("serving cached report", zap.String("path", root))

			return report.cached(), nil
		}

		a.deps.Metrics.CacheRequestsTotal.WithLabelValues("miss").Inc()
	}

	key := fmt.Sprintf("%s\x00%v", root, opts)

	value, err, shared := a.group.Do(key, func() (any, error) {
		return a.run(ctx, root, opts, table)
	})
	if err != nil {
		return nil, err
	}

	if shared {
		a.logger.Debug("shared in-flight analysis", zap.String("path", root))
	}

	report, _ := value.(*Report)

	return report, nil
}

// reusable reports whether a cached report answers a request with opts.
func reusable(report *Report, opts Options) bool {
	if !report.Settings.Equal(settingsOf(opts)) {
		return false
	}

	return opts.CacheTTL <= 0 || time.Since(report.ScannedAt) < opts.CacheTTL
}

// ResolveRoot validates root and returns its normalized absolute path.
func ResolveRoot(root string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidInput)
	}

	key, err := cache.Key(root)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	info, err := os.Stat(key)
	if err != nil {
		return "", rootError(root, err)
	}

	if !info.IsDir() {
		return "", fmt.Errorf("%w: path %q is not a directory", ErrInvalidInput, root)
	}

	dir, err := os.Open(key)
	if err != nil {
		return "", rootError(root, err)
	}

	_ = dir.Close()

	return key, nil
}

// run performs one analysis. It fails for a busy tracker or an internal
// panic, which moves the tracker to the error state.
func (a *Analyzer) run(ctx context.Context, root string, opts Options, table *classify.Table) (*Report, error) {
	var reporter progress.Reporter = progress.Nop{}

	if tracker := a.deps.Tracker; tracker != nil {
		runCtx, err := tracker.Begin(ctx)
		if err != nil {
			return nil, err
		}

		ctx = runCtx
		reporter = tracker
	}

	var report *Report

	recovered := panics.Try(func() {
		report = a.execute(ctx, root, opts, table, reporter)
	})
	if recovered != nil {
		err := fmt.Errorf("%w: %w", ErrInternal, recovered.AsError())

		a.logger.Error("analysis failed", zap.String("path", root), zap.Error(err))
		a.deps.Metrics.AnalysesTotal.WithLabelValues("error").Inc()

		if a.deps.Tracker != nil {
			a.deps.Tracker.Fail(err)
		}

		return nil, err
	}

	return report, nil
}

// execute runs the phases of an analysis and publishes the outcome.
func (a *Analyzer) execute(
	ctx context.Context,
	root string,
	opts Options,
	table *classify.Table,
	reporter progress.Reporter,
) *Report {
	start := time.Now()
	logger := a.logger.With(zap.String("path", root))
	logger.Info("starting analysis", zap.Int("workers", opts.MaxWorkers), zap.Bool("parallel", opts.Parallel))

	a.deps.Metrics.AnalysesRunning.Inc()
	defer a.deps.Metrics.AnalysesRunning.Dec()

	workers := pool.New(opts.MaxWorkers)
	defer workers.Close()

	collect := map[classify.Category]bool{}
	if opts.CalculateDurations {
		collect[classify.Video] = true
		collect[classify.Audio] = true
	}

	agg := aggregate.New(aggregate.Config{Table: table, SampleCap: opts.SampleFiles, Collect: collect})

	// Fingerprint before scanning so changes made during the run invalidate
	// the cached report.
	var (
		fingerprint    cache.Fingerprint
		fingerprintErr error
	)

	caching := a.deps.Cache != nil && !opts.NoCache
	if caching {
		fingerprint, fingerprintErr = a.deps.Cache.Fingerprint(root, opts.Policy())
	}

	s := &scanner{
		pool:      workers,
		agg:       agg,
		policy:    opts.Policy(),
		budget:    walk.NewBudget(opts.MaxFiles),
		batchSize: opts.BatchSize,
		logger:    logger,
	}

	reporter.Update("scanning", 0, "Scanning directory structure")

	stopProgress := startProgressReporter(ctx, agg, s.percent, reporter, a.deps.ProgressInterval)

	scanned := s.scan(ctx, root, opts.Parallel)

	stopProgress()

	scanTime := time.Since(start)
	a.deps.Metrics.PhaseSeconds.WithLabelValues("scan").Observe(scanTime.Seconds())

	result := agg.Result()
	files, bytes := agg.Totals()
	reporter.Update("scanning", scanEnd, fmt.Sprintf("Scanned %d files, %s", files, humanize.IBytes(uint64(max(bytes, 0)))))

	report := &Report{
		Root:          root,
		ScannedAt:     start,
		Status:        StatusCompleted,
		TotalFiles:    result.Summary.TotalFiles,
		TotalSize:     result.Summary.TotalSize,
		FormattedSize: humanize.IBytes(uint64(max(result.Summary.TotalSize, 0))),
		Categories:    result.Summary.Categories,
		Truncated:     scanned.Truncated,
		Errors:        ErrorCounts{ErrorCounts: scanned.Errors.Add(result.Errors)},
		Settings:      settingsOf(opts),
		Performance: Performance{
			ScanTime:           scanTime,
			ClassifyTime:       result.Classify,
			SizeTime:           result.Stat,
			DirectoriesScanned: scanned.DirsScanned,
			DirectoriesSkipped: scanned.DirsSkipped,
			Workers:            workers.Size(),
			Parallel:           scanned.Parallel,
			Subtrees:           scanned.Subtrees,
		},
	}

	if opts.CalculateDurations && ctx.Err() == nil {
		durationStart := time.Now()

		a.durations(ctx, workers, result.Summary, report, reporter, logger)

		report.Performance.DurationTime = time.Since(durationStart)
		a.deps.Metrics.PhaseSeconds.WithLabelValues("durations").Observe(report.Performance.DurationTime.Seconds())
	}

	reporter.Update("finalizing", durationEnd, "Finalizing results")

	if volume, err := volumeOf(root); err != nil {
		logger.Debug("volume usage unavailable", zap.Error(err))
	} else {
		report.Volume = volume
	}

	report.Performance.TotalTime = time.Since(start)

	a.record(report, scanned)

	if ctx.Err() != nil {
		report.Status = StatusCancelled
		report.Cancelled = true

		logger.Info("analysis cancelled", zap.Int64("files", report.TotalFiles))
		a.deps.Metrics.AnalysesTotal.WithLabelValues(string(StatusCancelled)).Inc()

		if a.deps.Tracker != nil {
			a.deps.Tracker.Cancelled(report)
		}

		return report
	}

	switch {
	case !caching:
	case fingerprintErr != nil:
		logger.Warn("fingerprinting tree, report not cached", zap.Error(fingerprintErr))
	default:
		if err := a.deps.Cache.Put(root, fingerprint, report); err != nil {
			logger.Warn("caching report", zap.Error(err))
		}
	}

	logger.Info("analysis complete",
		zap.Int64("files", report.TotalFiles),
		zap.String("size", report.FormattedSize),
		zap.Duration("elapsed", report.Performance.TotalTime),
		zap.Bool("truncated", report.Truncated),
	)
	a.deps.Metrics.AnalysesTotal.WithLabelValues(string(StatusCompleted)).Inc()

	if a.deps.Tracker != nil {
		a.deps.Tracker.Complete(report)
	}

	return report
}

// durations estimates media durations per category into report.
func (a *Analyzer) durations(
	ctx context.Context,
	workers *pool.Pool,
	summary *aggregate.Summary,
	report *Report,
	reporter progress.Reporter,
	logger *zap.Logger,
) {
	var media []classify.Category

	for _, category := range []classify.Category{classify.Video, classify.Audio} {
		if len(summary.Media[category]) > 0 {
			media = append(media, category)
		}
	}

	if len(media) == 0 {
		return
	}

	report.Durations = make(map[classify.Category]*duration.Result, len(media))

	available := false

	if a.deps.Prober != nil {
		capability, err := a.deps.Prober.Available(ctx)
		if err != nil {
			logger.Warn("duration probe unavailable, skipping durations", zap.Error(err))
		} else {
			available = true
			report.ProbeAvailable = true
			report.ProbeVersion = capability.Version
		}
	}

	if !available {
		for _, category := range media {
			report.Durations[category] = duration.NewResult(category, len(summary.Media[category]), duration.StatusUnavailable)
		}

		return
	}

	estimator := duration.NewEstimator(a.deps.Prober, workers, a.runRand())
	band := float64(durationEnd-scanEnd) / float64(len(media))

	for i, category := range media {
		if ctx.Err() != nil {
			break
		}

		offset := scanEnd + band*float64(i)
		estimator.Progress = func(done, total int) {
			reporter.Update("durations", offset+band*float64(done)/float64(total),
				fmt.Sprintf("Probing %s durations (%d/%d)", category, done, total))
		}

		result := estimator.Estimate(ctx, summary.Media[category], category)
		report.Durations[category] = result
		report.Errors.ProbeFailures += int64(result.FilesFailed)

		a.deps.Metrics.ProbesTotal.WithLabelValues("ok").Add(float64(result.FilesProcessed - result.FilesFailed))
		a.deps.Metrics.ProbesTotal.WithLabelValues("failed").Add(float64(result.FilesFailed))

		logger.Debug("durations estimated",
			zap.Stringer("category", category),
			zap.String("total", result.Formatted),
			zap.Bool("estimated", result.Estimated),
			zap.String("status", string(result.Status)),
		)
	}
}

// runRand derives a per-run source from the configured one so concurrent
// runs never share a *rand.Rand.
func (a *Analyzer) runRand() *rand.Rand {
	if a.deps.Rand == nil {
		return nil
	}

	a.randMu.Lock()
	defer a.randMu.Unlock()

	return rand.New(rand.NewPCG(a.deps.Rand.Uint64(), a.deps.Rand.Uint64())) //nolint:gosec // Sampling, not security
}

// record publishes scan counters.
func (a *Analyzer) record(report *Report, scanned scanResult) {
	m := a.deps.Metrics

	for category, summary := range report.Categories {
		m.FilesTotal.WithLabelValues(string(category)).Add(float64(summary.Count))
	}

	m.BytesTotal.Add(float64(report.TotalSize))
	m.DirsSkippedTotal.Add(float64(scanned.DirsSkipped))
	m.ScanErrorsTotal.WithLabelValues(string(walk.ErrKindPermission)).Add(float64(report.Errors.PermissionDenied))
	m.ScanErrorsTotal.WithLabelValues(string(walk.ErrKindVanished)).Add(float64(report.Errors.Vanished))
	m.ScanErrorsTotal.WithLabelValues(string(walk.ErrKindOther)).Add(float64(report.Errors.Other))
}

// startProgressReporter publishes running totals on each tick until the
// returned stop function is called or ctx is done. Stop waits for the
// reporter goroutine to exit.
func startProgressReporter(
	ctx context.Context,
	agg *aggregate.Aggregator,
	percent func() float64,
	reporter progress.Reporter,
	interval time.Duration,
) func() {
	if _, ok := reporter.(progress.Nop); ok {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	ticker := time.NewTicker(interval)

	go func() {
		defer close(done)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				files, bytes := agg.Totals()
				msg := fmt.Sprintf("Scanning… %d files, %s", files, humanize.IBytes(uint64(max(bytes, 0))))
				reporter.Update("scanning", percent()*scanEnd, msg)
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// IsUserError reports whether err is caused by bad input rather than the system.
func IsUserError(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrPathNotFound)
}
