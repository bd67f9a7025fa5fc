package walk

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/idelchi/folderstat/internal/classify"
	"github.com/idelchi/folderstat/internal/prune"
)

// Children is the first level of a tree, split for parallel scanning.
type Children struct {
	// Dirs are the subdirectories that survived pruning, in enumeration order.
	Dirs []string
	// Files are the regular files directly under the root.
	Files []Entry
	// Skipped counts pruned subdirectories.
	Skipped int64
	// Irregular counts non-regular root entries.
	Irregular int64
}

// RootChildren lists the root's subdirectories (after pruning) and files.
// Root files are not charged against any budget.
func RootChildren(root string, policy prune.Policy) (Children, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return Children{}, fmt.Errorf("reading directory %q: %w", root, err)
	}

	var children Children

	for _, entry := range entries {
		path := filepath.Join(root, entry.Name())

		switch mode := entry.Type(); {
		case mode.IsDir():
			if skip, _ := policy.ShouldSkip(entry.Name(), prune.AttributesOf(entry), 1); skip {
				children.Skipped++

				continue
			}

			children.Dirs = append(children.Dirs, path)
		case mode.IsRegular():
			children.Files = append(children.Files, Entry{
				Path: path,
				Name: entry.Name(),
				Ext:  classify.Ext(entry.Name()),
			})
		default:
			children.Irregular++
		}
	}

	return children, nil
}
