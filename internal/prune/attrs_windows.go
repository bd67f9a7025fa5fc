//go:build windows

package prune

import (
	"io/fs"
	"syscall"
)

// AttributesOf derives pruning attributes from a directory entry.
// On Windows the entry info comes from the directory listing itself.
func AttributesOf(entry fs.DirEntry) Attributes {
	info, err := entry.Info()
	if err != nil {
		return Attributes{}
	}

	data, ok := info.Sys().(*syscall.Win32FileAttributeData)
	if !ok {
		return Attributes{}
	}

	return Attributes{
		Hidden: data.FileAttributes&syscall.FILE_ATTRIBUTE_HIDDEN != 0,
		System: data.FileAttributes&syscall.FILE_ATTRIBUTE_SYSTEM != 0,
	}
}
