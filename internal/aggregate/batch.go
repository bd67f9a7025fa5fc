package aggregate

import (
	"context"
	"os"
	"time"

	"github.com/idelchi/folderstat/internal/classify"
	"github.com/idelchi/folderstat/internal/walk"
)

// Config controls how batches are classified and summarized.
type Config struct {
	// Table classifies extensions. Nil means the default table.
	Table *classify.Table
	// SampleCap is the number of sample paths kept per category.
	SampleCap int
	// Collect lists the categories whose full path lists are kept.
	Collect map[classify.Category]bool
}

// NewSummary creates an empty summary for this configuration.
func (c Config) NewSummary() *Summary {
	return NewSummary(c.SampleCap, c.Collect)
}

func (c Config) table() *classify.Table {
	if c.Table == nil {
		return classify.Default()
	}

	return c.Table
}

// Partial is the result of one batch.
type Partial struct {
	Summary *Summary
	Errors  walk.ErrorCounts
	// Stat and Classify split the time spent on the batch.
	Stat     time.Duration
	Classify time.Duration
}

// StatBatch sizes and classifies entries. Files that vanished or cannot be
// read are counted in Errors and left out of the summary. The batch stops
// early when ctx is cancelled.
func StatBatch(ctx context.Context, entries []walk.Entry, cfg Config) Partial {
	table := cfg.table()
	partial := Partial{Summary: cfg.NewSummary()}

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}

		start := time.Now()
		info, err := os.Lstat(entry.Path)
		partial.Stat += time.Since(start)

		if err != nil {
			partial.Errors.Record(walk.ClassifyError(err))

			continue
		}

		if !info.Mode().IsRegular() {
			continue
		}

		start = time.Now()
		partial.Summary.Add(FileEntry{
			Path:     entry.Path,
			Size:     info.Size(),
			Ext:      entry.Ext,
			Category: table.Classify(entry.Ext),
		})
		partial.Classify += time.Since(start)
	}

	return partial
}
