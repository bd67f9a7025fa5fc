package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idelchi/folderstat/internal/aggregate"
	"github.com/idelchi/folderstat/internal/classify"
	"github.com/idelchi/folderstat/internal/duration"
	"github.com/idelchi/folderstat/internal/folderstat"
)

func tree(t *testing.T) string {
	t.Helper()

	root := t.TempDir()

	for name, content := range map[string]string{
		"a.mp4":           "video",
		"notes/readme.md": "# hi",
		"notes/b.txt":     "text",
		"src/main.go":     "package main",
	} {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	return root
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	cmd := New("test").Command()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := cmd.ExecuteContext(context.Background())

	return stdout.String(), err
}

func TestCommand_JSON(t *testing.T) {
	t.Setenv("FOLDERSTAT_CACHE_ENABLED", "false")

	root := tree(t)

	out, err := run(t, "--no-duration", "--output", "json", "--workers", "2", root)
	require.NoError(t, err)

	var report struct {
		Status     string `json:"status"`
		TotalFiles int64  `json:"total_files"`
		Categories map[string]struct {
			Count int64 `json:"count"`
		} `json:"categories"`
		Settings struct {
			CalculateDurations bool `json:"calculate_durations"`
		} `json:"settings"`
	}

	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "completed", report.Status)
	assert.Equal(t, int64(4), report.TotalFiles)
	assert.Equal(t, int64(1), report.Categories["video"].Count)
	assert.Equal(t, int64(2), report.Categories["document"].Count)
	assert.Equal(t, int64(1), report.Categories["code"].Count)
	assert.False(t, report.Settings.CalculateDurations)
}

func TestCommand_Table(t *testing.T) {
	root := tree(t)

	out, err := run(t, "--no-duration", "--no-cache", root)
	require.NoError(t, err)

	assert.Contains(t, out, "Categories:")
	assert.Contains(t, out, "Total files:")
	assert.Contains(t, out, "video:")
	assert.NotContains(t, out, "Durations:")
}

func TestCommand_InvalidFlags(t *testing.T) {
	root := t.TempDir()

	_, err := run(t, "--output", "yaml", root)
	require.Error(t, err)

	_, err = run(t, "--workers", "0", root)
	require.ErrorIs(t, err, folderstat.ErrInvalidInput)

	_, err = run(t, "--no-duration", filepath.Join(root, "missing"))
	require.ErrorIs(t, err, folderstat.ErrPathNotFound)

	_, err = run(t, "a", "b")
	require.Error(t, err)
}

func TestLoad_FlagsOverrideConfig(t *testing.T) {
	file := filepath.Join(t.TempDir(), "folderstat.yaml")
	require.NoError(t, os.WriteFile(file, []byte("analysis:\n  workers: 3\n  max_files: 10\n"), 0o644))

	cmd := New("test").Command()
	require.NoError(t, cmd.ParseFlags([]string{"--config", file, "--max-files", "20", "--no-skip", "--no-parallel"}))

	config, err := cmd.Flags().GetString("config")
	require.NoError(t, err)

	maxFiles, err := cmd.Flags().GetInt64("max-files")
	require.NoError(t, err)

	cfg, err := load(cmd.Flags(), flags{config: config, maxFiles: maxFiles, noSkip: true, noParallel: true})
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Analysis.Workers, "unset flag keeps the configured value")
	assert.Equal(t, int64(20), cfg.Analysis.MaxFiles)
	assert.False(t, cfg.Prune.SkipSystemDirs)
	assert.False(t, cfg.Analysis.Parallel)
	assert.True(t, cfg.Analysis.CalculateDurations)
}

func TestPrintTable(t *testing.T) {
	report := &folderstat.Report{
		Root:          "/data",
		Status:        folderstat.StatusCancelled,
		Cancelled:     true,
		Truncated:     true,
		TotalFiles:    3,
		TotalSize:     3072,
		FormattedSize: "3.0 KiB",
		Categories: map[classify.Category]*aggregate.CategorySummary{
			classify.Video: {Count: 2, TotalSize: 2048, Extensions: []string{".mkv", ".mp4"}},
			classify.Other: {Count: 1, TotalSize: 1024, Extensions: []string{""}},
		},
		Durations: map[classify.Category]*duration.Result{
			classify.Video: {
				Category:          classify.Video,
				Formatted:         "1h 0m 0s",
				Status:            duration.StatusOK,
				Estimated:         true,
				FilesTotal:        5000,
				SuccessfulSamples: 500,
			},
		},
		Settings: folderstat.Settings{MaxFiles: 3},
		Performance: folderstat.Performance{
			TotalTime: time.Second,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, PrintTable(report, &buf))

	out := buf.String()
	assert.Contains(t, out, "Folder:")
	assert.Contains(t, out, "(66.7%)")
	assert.Contains(t, out, ".mkv, .mp4")
	assert.Contains(t, out, "1h 0m 0s")
	assert.Contains(t, out, "(estimated from 500 of 5,000 files)")
	assert.Contains(t, out, "stopped at the file limit")
	assert.Contains(t, out, "results are partial")
}

func TestExtensions(t *testing.T) {
	assert.Equal(t, ".a, .b", extensions([]string{".a", ".b"}))
	assert.Equal(t, ".1, .2, .3, .4, .5, .6, +2 more",
		extensions([]string{".1", ".2", ".3", ".4", ".5", ".6", ".7", ".8"}))
}
