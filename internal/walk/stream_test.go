package walk_test

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/idelchi/folderstat/internal/prune"
	"github.com/idelchi/folderstat/internal/walk"
)

// makeTree creates files (relative paths) below a temporary root.
func makeTree(t *testing.T, files ...string) string {
	t.Helper()

	root := t.TempDir()

	for _, file := range files {
		path := filepath.Join(root, filepath.FromSlash(file))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}

	return root
}

func collect(t *testing.T, stream *walk.Stream) map[walk.Kind][]walk.Event {
	t.Helper()

	events := make(map[walk.Kind][]walk.Event)
	for event := range stream.All(context.Background()) {
		events[event.Kind] = append(events[event.Kind], event)
	}

	return events
}

func names(events []walk.Event) []string {
	out := make([]string, 0, len(events))
	for _, event := range events {
		out = append(out, event.Entry.Name)
	}

	slices.Sort(out)

	return out
}

func TestStream_VisitsAllFiles(t *testing.T) {
	root := makeTree(t, "a.mp4", "b/c.txt", "b/d/e.MP3", "f/g/h/i.go")

	stream := walk.New(root, walk.Limits{}, prune.Default(0))
	events := collect(t, stream)

	require.Equal(t, []string{"a.mp4", "c.txt", "e.MP3", "i.go"}, names(events[walk.EventFile]))
	require.NoError(t, stream.Err())

	stats := stream.Stats()
	require.Equal(t, int64(4), stats.FilesEmitted)
	require.Equal(t, int64(6), stats.DirsScanned)
	require.False(t, stats.Truncated)

	for _, event := range events[walk.EventFile] {
		if event.Entry.Name == "e.MP3" {
			require.Equal(t, ".mp3", event.Entry.Ext)
			require.Equal(t, 2, event.Entry.Depth)
		}
	}
}

func TestStream_EmptyDirectory(t *testing.T) {
	root := t.TempDir()

	stream := walk.New(root, walk.Limits{}, prune.Default(0))
	events := collect(t, stream)

	require.Empty(t, events[walk.EventFile])
	require.Len(t, events[walk.EventDir], 1)
	require.Equal(t, int64(1), stream.Stats().DirsScanned)
}

func TestStream_PrunesDenyList(t *testing.T) {
	root := makeTree(t, "keep.txt", ".git/objects/x", ".git/HEAD", "src/node_modules/pkg/index.js", "src/main.go")

	stream := walk.New(root, walk.Limits{}, prune.Default(0))
	events := collect(t, stream)

	require.Equal(t, []string{"keep.txt", "main.go"}, names(events[walk.EventFile]))
	require.Len(t, events[walk.EventSkip], 2)
	require.Equal(t, int64(2), stream.Stats().DirsSkipped)

	for _, event := range events[walk.EventSkip] {
		require.Equal(t, prune.ReasonDenyList, event.Reason)
	}
}

func TestStream_SkipDisabled(t *testing.T) {
	root := makeTree(t, "keep.txt", ".git/HEAD")

	stream := walk.New(root, walk.Limits{}, prune.New(prune.DefaultDenyList, false, false, 0))
	events := collect(t, stream)

	require.Equal(t, []string{"HEAD", "keep.txt"}, names(events[walk.EventFile]))
}

func TestStream_MaxDepth(t *testing.T) {
	root := makeTree(t, "l0.txt", "a/l1.txt", "a/b/l2.txt", "a/b/c/l3.txt")

	stream := walk.New(root, walk.Limits{MaxDepth: 2}, prune.Default(0))
	events := collect(t, stream)

	require.Equal(t, []string{"l0.txt", "l1.txt", "l2.txt"}, names(events[walk.EventFile]))
	require.Len(t, events[walk.EventSkip], 1)
	require.Equal(t, prune.ReasonDepth, events[walk.EventSkip][0].Reason)
}

func TestStream_Budget(t *testing.T) {
	root := makeTree(t, "1.txt", "2.txt", "a/3.txt", "a/4.txt", "b/5.txt")

	stream := walk.New(root, walk.Limits{Budget: walk.NewBudget(3)}, prune.Default(0))
	events := collect(t, stream)

	require.Len(t, events[walk.EventFile], 3)
	require.Len(t, events[walk.EventTruncated], 1)
	require.True(t, stream.Stats().Truncated)
	require.NoError(t, stream.Err())

	_, ok := stream.Next(context.Background())
	require.False(t, ok, "stream ends after truncation")
}

func TestStream_BudgetExactlyEnough(t *testing.T) {
	root := makeTree(t, "1.txt", "2.txt")

	stream := walk.New(root, walk.Limits{Budget: walk.NewBudget(2)}, prune.Default(0))
	events := collect(t, stream)

	require.Len(t, events[walk.EventFile], 2)
	require.Empty(t, events[walk.EventTruncated])
}

func TestStream_SharedBudget(t *testing.T) {
	root := makeTree(t, "a/1.txt", "a/2.txt", "b/3.txt", "b/4.txt")
	budget := walk.NewBudget(3)

	var total int

	for _, sub := range []string{"a", "b"} {
		stream := walk.NewAt(filepath.Join(root, sub), 1, walk.Limits{Budget: budget}, prune.Default(0))
		total += len(collect(t, stream)[walk.EventFile])
	}

	require.Equal(t, 3, total)
	require.Equal(t, int64(3), budget.Used())
	require.True(t, budget.Exhausted())
}

func TestStream_Cancelled(t *testing.T) {
	root := makeTree(t, "a/1.txt", "b/2.txt")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stream := walk.New(root, walk.Limits{}, prune.Default(0))

	_, ok := stream.Next(ctx)
	require.False(t, ok)
	require.ErrorIs(t, stream.Err(), context.Canceled)
}

func TestStream_MissingRoot(t *testing.T) {
	stream := walk.New(filepath.Join(t.TempDir(), "missing"), walk.Limits{}, prune.Default(0))
	events := collect(t, stream)

	require.Len(t, events[walk.EventError], 1)
	require.Equal(t, walk.ErrKindVanished, events[walk.EventError][0].ErrKind)
	require.Equal(t, int64(1), stream.Stats().Errors.Vanished)
}

func TestStream_ChildOrder(t *testing.T) {
	root := makeTree(t, "a/x/1.txt", "a/y/2.txt")

	stream := walk.New(root, walk.Limits{}, prune.Default(0))

	var dirs []string

	for event := range stream.All(context.Background()) {
		if event.Kind == walk.EventDir {
			dirs = append(dirs, event.Path)
		}
	}

	// Depth-first: a subtree is finished before its sibling starts.
	require.Len(t, dirs, 4)
	require.Equal(t, root, dirs[0])
	require.Equal(t, filepath.Join(root, "a"), dirs[1])
}

func TestRootChildren(t *testing.T) {
	root := makeTree(t, "top.mkv", "a/1.txt", "b/2.txt", ".git/HEAD")

	children, err := walk.RootChildren(root, prune.Default(0))
	require.NoError(t, err)

	slices.Sort(children.Dirs)
	require.Equal(t, []string{filepath.Join(root, "a"), filepath.Join(root, "b")}, children.Dirs)
	require.Len(t, children.Files, 1)
	require.Equal(t, ".mkv", children.Files[0].Ext)
	require.Equal(t, int64(1), children.Skipped)

	_, err = walk.RootChildren(filepath.Join(root, "missing"), prune.Default(0))
	require.Error(t, err)
}

func TestBudget_Unlimited(t *testing.T) {
	var nilBudget *walk.Budget
	require.True(t, nilBudget.Take())
	require.False(t, nilBudget.Exhausted())

	budget := walk.NewBudget(0)
	for range 10 {
		require.True(t, budget.Take())
	}

	require.False(t, budget.Exhausted())
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want walk.ErrorKind
	}{
		{name: "permission", err: &fs.PathError{Op: "open", Path: "x", Err: fs.ErrPermission}, want: walk.ErrKindPermission},
		{name: "eacces", err: &fs.PathError{Op: "open", Path: "x", Err: syscall.EACCES}, want: walk.ErrKindPermission},
		{name: "not exist", err: &fs.PathError{Op: "lstat", Path: "x", Err: fs.ErrNotExist}, want: walk.ErrKindVanished},
		{name: "not a directory", err: &fs.PathError{Op: "open", Path: "x", Err: syscall.ENOTDIR}, want: walk.ErrKindVanished},
		{name: "wrapped", err: fmt.Errorf("reading: %w", fs.ErrNotExist), want: walk.ErrKindVanished},
		{name: "other", err: errors.New("disk on fire"), want: walk.ErrKindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, walk.ClassifyError(tt.err))
		})
	}
}

func TestErrorCounts(t *testing.T) {
	var counts walk.ErrorCounts

	counts.Record(walk.ErrKindPermission)
	counts.Record(walk.ErrKindPermission)
	counts.Record(walk.ErrKindVanished)
	counts.Record(walk.ErrKindOther)

	require.Equal(t, walk.ErrorCounts{PermissionDenied: 2, Vanished: 1, Other: 1}, counts)
	require.Equal(t, int64(4), counts.Total())
	require.Equal(t, int64(8), counts.Add(counts).Total())
}

// lockDir makes dir unreadable for the rest of the test.
func lockDir(t *testing.T, dir string) {
	t.Helper()

	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced")
	}

	require.NoError(t, os.Chmod(dir, 0))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })
}

func TestStream_PermissionDenied(t *testing.T) {
	root := makeTree(t, "open/a.txt", "locked/b.txt", "c.txt")
	lockDir(t, filepath.Join(root, "locked"))

	stream := walk.New(root, walk.Limits{}, prune.Default(0))
	events := collect(t, stream)

	require.NoError(t, stream.Err())
	require.Equal(t, []string{"a.txt", "c.txt"}, names(events[walk.EventFile]))
	require.Len(t, events[walk.EventError], 1)
	require.Equal(t, filepath.Join(root, "locked"), events[walk.EventError][0].Path)
	require.Equal(t, walk.ErrKindPermission, events[walk.EventError][0].ErrKind)

	stats := stream.Stats()
	require.Equal(t, walk.ErrorCounts{PermissionDenied: 1}, stats.Errors)
	require.Equal(t, int64(2), stats.FilesEmitted)
	require.Equal(t, int64(2), stats.DirsScanned, "root and open")
}
