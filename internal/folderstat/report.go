package folderstat

import (
	"errors"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/idelchi/folderstat/internal/aggregate"
	"github.com/idelchi/folderstat/internal/classify"
	"github.com/idelchi/folderstat/internal/duration"
	"github.com/idelchi/folderstat/internal/walk"
)

// Status is the outcome of an analysis.
type Status string

// Report statuses.
const (
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ErrorCounts tallies non-fatal failures of a run.
type ErrorCounts struct {
	walk.ErrorCounts

	// ProbeFailures is the number of media files whose duration could not be read.
	ProbeFailures int64 `json:"probe_failures"`
}

// Performance holds timings and work counters of a run.
type Performance struct {
	// ScanTime is the wall time of the traversal and sizing phase.
	ScanTime time.Duration `json:"scan_time"`
	// ClassifyTime is the time spent classifying, summed over workers.
	ClassifyTime time.Duration `json:"classify_time"`
	// SizeTime is the time spent in stat calls, summed over workers.
	SizeTime time.Duration `json:"size_time"`
	// DurationTime is the wall time of the duration phase.
	DurationTime time.Duration `json:"duration_time"`
	// TotalTime is the wall time of the whole run.
	TotalTime time.Duration `json:"total_time"`

	DirectoriesScanned int64 `json:"directories_scanned"`
	DirectoriesSkipped int64 `json:"directories_skipped"`
	Workers            int   `json:"workers"`
	Parallel           bool  `json:"parallel"`
	Subtrees           int   `json:"subtrees"`
}

// Volume describes the filesystem holding the root.
type Volume struct {
	Path        string  `json:"path"`
	Fstype      string  `json:"fstype,omitempty"`
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"used_percent"`
}

// Settings records the options that shaped a report, so a cached report is
// only reused for equivalent requests. Slices and maps are normalized.
type Settings struct {
	CalculateDurations bool  `json:"calculate_durations"`
	MaxFiles           int64 `json:"max_files"`
	MaxDepth           int   `json:"max_depth"`
	SkipSystemDirs     bool  `json:"skip_system_dirs"`
	SkipHidden         bool  `json:"skip_hidden"`
	SampleFiles        int   `json:"sample_files"`
	// DenyList is the effective lower-cased deny-list, sorted.
	DenyList []string `json:"deny_list,omitempty"`
	// Extensions are the extension overrides keyed by normalized extension.
	Extensions map[string]string `json:"extensions,omitempty"`
}

func settingsOf(opts Options) Settings {
	extensions := lo.MapEntries(opts.Extensions, func(ext, category string) (string, string) {
		if parsed, err := classify.ParseCategory(category); err == nil {
			return classify.Normalize(ext), string(parsed)
		}

		return classify.Normalize(ext), strings.ToLower(strings.TrimSpace(category))
	})
	delete(extensions, "")

	return Settings{
		CalculateDurations: opts.CalculateDurations,
		MaxFiles:           opts.MaxFiles,
		MaxDepth:           opts.MaxDepth,
		SkipSystemDirs:     opts.SkipSystemDirs,
		SkipHidden:         opts.SkipHidden,
		SampleFiles:        opts.SampleFiles,
		DenyList:           opts.Policy().DenyList(),
		Extensions:         extensions,
	}
}

// Equal reports whether two reports were computed under equivalent options.
func (s Settings) Equal(other Settings) bool {
	return s.CalculateDurations == other.CalculateDurations &&
		s.MaxFiles == other.MaxFiles &&
		s.MaxDepth == other.MaxDepth &&
		s.SkipSystemDirs == other.SkipSystemDirs &&
		s.SkipHidden == other.SkipHidden &&
		s.SampleFiles == other.SampleFiles &&
		slices.Equal(s.DenyList, other.DenyList) &&
		maps.Equal(s.Extensions, other.Extensions)
}

// Report is the result of an analysis. It must not be modified after it is
// returned, since the cache hands it out again.
type Report struct {
	// Root is the normalized absolute path analyzed.
	Root string `json:"folder_path"`
	// ScannedAt is when the run started.
	ScannedAt time.Time `json:"scanned_at"`
	// Status is completed or cancelled.
	Status Status `json:"status"`
	// TotalFiles is the number of files counted.
	TotalFiles int64 `json:"total_files"`
	// TotalSize is the cumulative size in bytes.
	TotalSize int64 `json:"total_size"`
	// FormattedSize is TotalSize in human-readable form.
	FormattedSize string `json:"formatted_size"`
	// Categories maps each category with files to its totals.
	Categories map[classify.Category]*aggregate.CategorySummary `json:"categories"`
	// Durations maps media categories to their duration totals.
	Durations map[classify.Category]*duration.Result `json:"durations,omitempty"`
	// Truncated is set when the file limit was reached.
	Truncated bool `json:"truncated"`
	// Cancelled is set when the run was cancelled.
	Cancelled bool `json:"cancelled"`
	// Errors counts non-fatal failures.
	Errors ErrorCounts `json:"errors"`
	// Performance holds timings.
	Performance Performance `json:"performance"`
	// Volume is the usage of the filesystem holding Root, when available.
	Volume *Volume `json:"volume,omitempty"`
	// FromCache is set on reports served from the cache.
	FromCache bool `json:"from_cache"`
	// ProbeAvailable reports whether the duration probe tool was found.
	ProbeAvailable bool `json:"probe_available"`
	// ProbeVersion is the first line of the probe tool version output.
	ProbeVersion string `json:"probe_version,omitempty"`
	// Settings are the options the report was computed with.
	Settings Settings `json:"settings"`
}

// Err returns ErrLimitExceeded and/or ErrCancelled when the report is partial.
func (r *Report) Err() error {
	var errs []error

	if r.Truncated {
		errs = append(errs, ErrLimitExceeded)
	}

	if r.Cancelled {
		errs = append(errs, ErrCancelled)
	}

	return errors.Join(errs...)
}

// Sorted returns the categories present in display order.
func (r *Report) Sorted() []classify.Category {
	out := make([]classify.Category, 0, len(r.Categories))

	for _, category := range classify.All {
		if _, ok := r.Categories[category]; ok {
			out = append(out, category)
		}
	}

	return out
}

// cached returns a copy of r flagged as served from the cache. The copy
// shares the category and duration maps with r.
func (r *Report) cached() *Report {
	hit := *r
	hit.FromCache = true

	return &hit
}
