package aggregate

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/idelchi/folderstat/internal/walk"
)

// Aggregator merges partial results from concurrent batches.
type Aggregator struct {
	cfg Config

	mu       sync.Mutex
	summary  *Summary
	errors   walk.ErrorCounts
	stat     time.Duration
	classify time.Duration

	files atomic.Int64
	bytes atomic.Int64
}

// New creates an empty aggregator.
func New(cfg Config) *Aggregator {
	return &Aggregator{
		cfg:     cfg,
		summary: cfg.NewSummary(),
	}
}

// Config returns the configuration batches should be processed with.
func (a *Aggregator) Config() Config {
	return a.cfg
}

// Merge folds a batch result into the running totals.
func (a *Aggregator) Merge(partial Partial) {
	if partial.Summary != nil {
		a.files.Add(partial.Summary.TotalFiles)
		a.bytes.Add(partial.Summary.TotalSize)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.summary.Merge(partial.Summary)
	a.errors = a.errors.Add(partial.Errors)
	a.stat += partial.Stat
	a.classify += partial.Classify
}

// Totals returns the running file count and byte total. It does not block on Merge.
func (a *Aggregator) Totals() (files, bytes int64) {
	return a.files.Load(), a.bytes.Load()
}

// Result returns the merged totals as a single partial. The summary is
// shared with the aggregator and must not be modified while batches are
// still being merged.
func (a *Aggregator) Result() Partial {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Partial{
		Summary:  a.summary,
		Errors:   a.errors,
		Stat:     a.stat,
		Classify: a.classify,
	}
}
