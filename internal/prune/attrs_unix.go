//go:build !windows

package prune

import "io/fs"

// AttributesOf derives pruning attributes from a directory entry.
// Unix has no hidden or system flag; dot-directories are handled by
// Policy.SkipHidden instead.
func AttributesOf(fs.DirEntry) Attributes {
	return Attributes{}
}
