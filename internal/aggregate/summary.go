// Package aggregate sizes and classifies batches of files and merges the
// partial results into running per-category totals.
package aggregate

import (
	"maps"
	"slices"

	"github.com/samber/lo"

	"github.com/idelchi/folderstat/internal/classify"
)

// DefaultSampleCap is the number of sample paths kept per category.
const DefaultSampleCap = 10

// FileEntry is a sized and classified file.
type FileEntry struct {
	Path     string
	Size     int64
	Ext      string
	Category classify.Category
}

// CategorySummary holds the totals for one category.
type CategorySummary struct {
	// Count is the number of files.
	Count int64 `json:"count"`
	// TotalSize is the cumulative size in bytes.
	TotalSize int64 `json:"total_size"`
	// Extensions is the sorted set of extensions seen.
	Extensions []string `json:"extensions"`
	// Samples are the lexically smallest paths seen, capped.
	Samples []string `json:"sample_files"`
}

// Summary is a mergeable set of per-category totals.
type Summary struct {
	// Categories holds one summary per category that has files.
	Categories map[classify.Category]*CategorySummary
	// TotalFiles is the number of files counted.
	TotalFiles int64
	// TotalSize is the cumulative size in bytes.
	TotalSize int64
	// Media holds the full path lists of collected categories.
	Media map[classify.Category][]string

	sampleCap int
	collect   map[classify.Category]bool
}

// NewSummary creates an empty summary keeping sampleCap sample paths per
// category and full path lists for the categories in collect.
func NewSummary(sampleCap int, collect map[classify.Category]bool) *Summary {
	return &Summary{
		Categories: make(map[classify.Category]*CategorySummary),
		Media:      make(map[classify.Category][]string),
		sampleCap:  max(sampleCap, 0),
		collect:    collect,
	}
}

// Add counts a single file.
func (s *Summary) Add(entry FileEntry) {
	summary := s.category(entry.Category)

	summary.Count++
	summary.TotalSize += entry.Size

	if entry.Ext != "" {
		if i, found := slices.BinarySearch(summary.Extensions, entry.Ext); !found {
			summary.Extensions = slices.Insert(summary.Extensions, i, entry.Ext)
		}
	}

	summary.Samples = capSamples(append(summary.Samples, entry.Path), s.sampleCap)

	s.TotalFiles++
	s.TotalSize += entry.Size

	if s.collect[entry.Category] {
		s.Media[entry.Category] = append(s.Media[entry.Category], entry.Path)
	}
}

// Merge folds other into s. Merging is associative and commutative: counts
// and sizes add, extension sets union and samples keep the smallest paths.
func (s *Summary) Merge(other *Summary) {
	if other == nil {
		return
	}

	for category, theirs := range other.Categories {
		ours := s.category(category)

		ours.Count += theirs.Count
		ours.TotalSize += theirs.TotalSize
		ours.Extensions = lo.Union(ours.Extensions, theirs.Extensions)
		slices.Sort(ours.Extensions)
		ours.Samples = capSamples(append(ours.Samples, theirs.Samples...), s.sampleCap)
	}

	for category, paths := range other.Media {
		s.Media[category] = append(s.Media[category], paths...)
	}

	s.TotalFiles += other.TotalFiles
	s.TotalSize += other.TotalSize
}

// Sorted returns the categories present, in display order.
func (s *Summary) Sorted() []classify.Category {
	return lo.Filter(classify.All, func(c classify.Category, _ int) bool {
		_, ok := s.Categories[c]

		return ok
	})
}

// Clone returns a deep copy of the summary.
func (s *Summary) Clone() *Summary {
	clone := NewSummary(s.sampleCap, s.collect)
	clone.Merge(s)

	return clone
}

// Equal reports whether two summaries hold the same totals, ignoring the
// order of collected media paths.
func (s *Summary) Equal(other *Summary) bool {
	if s.TotalFiles != other.TotalFiles || s.TotalSize != other.TotalSize {
		return false
	}

	if !maps.EqualFunc(s.Categories, other.Categories, func(a, b *CategorySummary) bool {
		return a.Count == b.Count && a.TotalSize == b.TotalSize &&
			slices.Equal(a.Extensions, b.Extensions) && slices.Equal(a.Samples, b.Samples)
	}) {
		return false
	}

	return maps.EqualFunc(s.Media, other.Media, func(a, b []string) bool {
		return lo.ElementsMatch(a, b)
	})
}

func (s *Summary) category(c classify.Category) *CategorySummary {
	summary, ok := s.Categories[c]
	if !ok {
		summary = &CategorySummary{}
		s.Categories[c] = summary
	}

	return summary
}

// capSamples sorts, deduplicates and truncates sample paths.
func capSamples(samples []string, limit int) []string {
	slices.Sort(samples)
	samples = slices.Compact(samples)

	if len(samples) > limit {
		samples = samples[:limit]
	}

	return samples
}
