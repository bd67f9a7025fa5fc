package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/idelchi/folderstat/internal/duration"
	"github.com/idelchi/folderstat/internal/folderstat"
)

const (
	// TabSpacing is the number of spaces between tabwriter columns.
	TabSpacing = 2
	// MaxListedExtensions caps the extensions shown per category in tables.
	MaxListedExtensions = 6
)

// PrintJSON outputs the report in JSON format.
func PrintJSON(report *folderstat.Report, writer io.Writer) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	if _, err := fmt.Fprintln(writer, string(data)); err != nil {
		return err
	}

	return nil
}

// PrintTable outputs the report in human-readable table format.
//
//nolint:forbidigo // This function prints output to the console.
func PrintTable(report *folderstat.Report, writer io.Writer) error {
	w := tabwriter.NewWriter(writer, 0, 4, TabSpacing, ' ', 0)

	fmt.Fprintf(w, "Folder:\t%s\n", report.Root)

	if report.FromCache {
		fmt.Fprintf(w, "Scanned:\t%s (cached)\n", humanize.Time(report.ScannedAt))
	}

	fmt.Fprintln(w, "\nCategories:\t\t\t")

	for _, category := range report.Sorted() {
		summary := report.Categories[category]

		pct := 0.0
		if report.TotalSize > 0 {
			pct = 100.0 * float64(summary.TotalSize) / float64(report.TotalSize)
		}

		fmt.Fprintf(w, "  %s:\t%s files\t%s (%.1f%%)\t%s\n",
			category,
			humanize.Comma(summary.Count),
			humanize.IBytes(uint64(max(summary.TotalSize, 0))),
			pct,
			extensions(summary.Extensions),
		)
	}

	if len(report.Durations) > 0 {
		fmt.Fprintln(w, "\nDurations:\t\t\t")

		for _, category := range report.Sorted() {
			result, ok := report.Durations[category]
			if !ok {
				continue
			}

			fmt.Fprintf(w, "  %s:\t%s\t%s\t\n", category, result.Formatted, describe(result))
		}
	}

	fmt.Fprintln(w, "\nStats:\t\t\t")
	fmt.Fprintf(w, "Total files:\t%s\n", humanize.Comma(report.TotalFiles))
	fmt.Fprintf(w, "Total size:\t%s (%d bytes)\n", report.FormattedSize, report.TotalSize)
	fmt.Fprintf(w, "Directories:\t%d scanned, %d skipped\n",
		report.Performance.DirectoriesScanned, report.Performance.DirectoriesSkipped)

	if errs := report.Errors.Total() + report.Errors.ProbeFailures; errs > 0 {
		fmt.Fprintf(w, "Errors:\t%d permission denied, %d vanished, %d other, %d probe failures\n",
			report.Errors.PermissionDenied, report.Errors.Vanished, report.Errors.Other, report.Errors.ProbeFailures)
	}

	if report.Volume != nil {
		fmt.Fprintf(w, "Volume:\t%s free of %s (%.1f%% used)\n",
			humanize.IBytes(report.Volume.Free), humanize.IBytes(report.Volume.Total), report.Volume.UsedPercent)
	}

	if report.Truncated {
		fmt.Fprintf(w, "\nWarning:\tstopped at the file limit (%s files)\n", humanize.Comma(report.Settings.MaxFiles))
	}

	if report.Cancelled {
		fmt.Fprintln(w, "\nWarning:\tanalysis cancelled, results are partial")
	}

	fmt.Fprintf(w, "\nElapsed:\t%v\n", report.Performance.TotalTime)

	return w.Flush()
}

// extensions renders a short extension list.
func extensions(exts []string) string {
	if len(exts) <= MaxListedExtensions {
		return strings.Join(exts, ", ")
	}

	return fmt.Sprintf("%s, +%d more", strings.Join(exts[:MaxListedExtensions], ", "), len(exts)-MaxListedExtensions)
}

// describe explains how a duration was obtained.
func describe(result *duration.Result) string {
	switch {
	case result.Status != duration.StatusOK:
		return ""
	case result.Estimated:
		return fmt.Sprintf("(estimated from %d of %s files)", result.SuccessfulSamples, humanize.Comma(int64(result.FilesTotal)))
	case result.FilesFailed > 0:
		return fmt.Sprintf("(%d of %d files probed)", result.FilesProcessed-result.FilesFailed, result.FilesTotal)
	default:
		return fmt.Sprintf("(%d files)", result.FilesProcessed)
	}
}
