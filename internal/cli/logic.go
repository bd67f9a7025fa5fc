package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/idelchi/folderstat/internal/cache"
	"github.com/idelchi/folderstat/internal/config"
	"github.com/idelchi/folderstat/internal/duration"
	"github.com/idelchi/folderstat/internal/folderstat"
	"github.com/idelchi/folderstat/internal/metrics"
	"github.com/idelchi/folderstat/internal/progress"
	"github.com/idelchi/folderstat/internal/server"
)

// ProgressRefresh is how often the terminal progress line is redrawn.
const ProgressRefresh = 200 * time.Millisecond

// newLogger builds a development logger when verbose, otherwise a JSON
// logger on stderr at the configured level.
func newLogger(verbose bool, level string) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Encoding:         "json",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig:    zap.NewProductionEncoderConfig(),
	}

	return cfg.Build()
}

// app is the wired analyzer with its collaborators.
type app struct {
	analyzer *folderstat.Analyzer
	tracker  *progress.Tracker
	registry *prometheus.Registry
	store    cache.Store
}

// build wires an Analyzer from the configuration. An in-memory cache is only
// worth building for long-lived processes; a persistent store is used
// whenever cache.dir is set.
func build(cfg *config.Config, logger *zap.Logger, longLived bool) (*app, error) {
	a := &app{
		tracker:  progress.New(),
		registry: prometheus.NewRegistry(),
	}

	var results *cache.Cache[*folderstat.Report]

	if cfg.Cache.Enabled && (longLived || cfg.Cache.Dir != "") {
		if cfg.Cache.Dir != "" {
			store, err := cache.OpenBadger(cfg.Cache.Dir)
			if err != nil {
				return nil, fmt.Errorf("opening cache store: %w", err)
			}

			a.store = store
		}

		results = cache.New[*folderstat.Report](cache.Options{
			TTL:        cfg.Cache.TTL,
			Validation: cache.Validation(cfg.Cache.Validation),
			Store:      a.store,
			Logger:     logger,
		})
	}

	a.analyzer = folderstat.NewAnalyzer(folderstat.Deps{
		Logger:  logger,
		Cache:   results,
		Prober:  duration.NewFFprobe(cfg.Probe.FFprobePath, cfg.Probe.Timeout, logger),
		Metrics: metrics.New(a.registry),
		Tracker: a.tracker,
	})

	return a, nil
}

// Close releases the persistent store.
func (a *app) Close() error {
	if a.store == nil {
		return nil
	}

	return a.store.Close()
}

func analyze(ctx context.Context, path string, cfg *config.Config, verbose bool, stdout, stderr io.Writer) (err error) {
	logger, err := newLogger(verbose, cfg.Log.Level)
	if err != nil {
		return err
	}

	defer func() { _ = logger.Sync() }()

	a, err := build(cfg, logger, false)
	if err != nil {
		return err
	}

	defer func() { err = errors.Join(err, a.Close()) }()

	enableProgress := cfg.Output != "json" && !verbose && isTerminal(stderr)

	stopProgress := func() {}
	if enableProgress {
		stopProgress = showProgress(a.tracker, stderr)
	}

	report, err := a.analyzer.Analyze(ctx, path, cfg.AnalyzeOptions())

	stopProgress()

	if err != nil {
		return err
	}

	switch cfg.Output {
	case "json":
		return PrintJSON(report, stdout)
	case "table":
		return PrintTable(report, stdout)
	default:
		return fmt.Errorf("unknown output format: %s", cfg.Output)
	}
}

func serve(ctx context.Context, cfg *config.Config, verbose bool, stderr io.Writer) (err error) {
	logger, err := newLogger(verbose, cfg.Log.Level)
	if err != nil {
		return err
	}

	defer func() { _ = logger.Sync() }()

	a, err := build(cfg, logger, true)
	if err != nil {
		return err
	}

	defer func() { err = errors.Join(err, a.Close()) }()

	srv := server.New(a.analyzer, a.tracker, cfg.AnalyzeOptions(), a.registry, logger)

	fmt.Fprintf(stderr, "Serving on http://%s\n", cfg.Server.Addr)

	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// showProgress redraws the tracker state on a single terminal line until the
// returned stop function is called.
func showProgress(tracker *progress.Tracker, w io.Writer) func() {
	// Hide cursor for in-place updates; restore on stop.
	fmt.Fprint(w, "\033[?25l")

	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)

		ticker := time.NewTicker(ProgressRefresh)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				state := tracker.Current()
				if state.Status != progress.StatusRunning {
					continue
				}

				fmt.Fprintf(w, "\r\033[2K%3.0f%%  %s\r", state.Percent, state.Message)
			}
		}
	}()

	return func() {
		close(done)
		<-stopped

		// Clear the status line
		fmt.Fprint(w, "\r\033[2K\r\033[?25h")
	}
}
