package cache

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"

	"github.com/idelchi/folderstat/internal/prune"
)

// Validation selects how much of a tree is checked for changes.
type Validation string

// Validation modes.
const (
	// ValidationRoot compares only the root directory mtime.
	ValidationRoot Validation = "root"
	// ValidationTree also compares the newest mtime of every non-pruned directory.
	ValidationTree Validation = "tree"
)

// Fingerprint identifies the state of a tree at capture time.
type Fingerprint struct {
	RootMTime int64 `json:"root_mtime"`
	TreeMTime int64 `json:"tree_mtime,omitempty"`
}

// Key normalizes a path into a cache key: absolute, cleaned and with
// symlinks resolved when possible.
func Key(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}

	abs = filepath.Clean(abs)

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	return abs, nil
}

// Compute fingerprints the directory at root.
func Compute(root string, mode Validation, policy prune.Policy) (Fingerprint, error) {
	info, err := os.Stat(root)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("accessing path %q: %w", root, err)
	}

	fingerprint := Fingerprint{RootMTime: info.ModTime().UnixNano()}

	if mode != ValidationTree {
		return fingerprint, nil
	}

	fingerprint.TreeMTime, err = treeMTime(root, policy)
	if err != nil {
		return Fingerprint{}, err
	}

	return fingerprint, nil
}

// treeMTime returns the newest mtime of any directory below root that the
// policy does not prune. Unreadable directories are ignored.
func treeMTime(root string, policy prune.Policy) (int64, error) {
	var newest atomic.Int64

	conf := &fastwalk.Config{
		Follow: false,
	}

	//nolint:varnamelen // d is standard for DirEntry
	err := fastwalk.Walk(conf, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil //nolint:nilerr // Unreadable entries do not invalidate
		}

		if path != root {
			if skip, _ := policy.ShouldSkip(d.Name(), prune.AttributesOf(d), depth(path, root)); skip {
				return filepath.SkipDir
			}
		}

		info, err := d.Info()
		if err != nil {
			return nil //nolint:nilerr // Vanished directories do not invalidate
		}

		mtime := info.ModTime().UnixNano()

		for {
			current := newest.Load()
			if mtime <= current || newest.CompareAndSwap(current, mtime) {
				break
			}
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walking %q: %w", root, err)
	}

	return newest.Load(), nil
}

// depth returns the depth of a path relative to the root.
func depth(path, root string) int {
	rel := strings.TrimPrefix(path, root)

	rel = strings.TrimPrefix(rel, string(filepath.Separator))
	if rel == "" {
		return 0
	}

	return strings.Count(rel, string(filepath.Separator)) + 1
}
