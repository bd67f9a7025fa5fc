package walk

import (
	"errors"
	"io/fs"
	"syscall"

	"github.com/idelchi/folderstat/internal/prune"
)

// Kind identifies the type of a traversal event.
type Kind int

// Event kinds.
const (
	// EventFile carries a regular file.
	EventFile Kind = iota
	// EventDir reports that a directory was entered.
	EventDir
	// EventSkip reports that a directory was pruned.
	EventSkip
	// EventError reports a per-entry failure.
	EventError
	// EventTruncated reports that the file budget ran out. It is the last event.
	EventTruncated
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case EventFile:
		return "file"
	case EventDir:
		return "dir"
	case EventSkip:
		return "skip"
	case EventError:
		return "error"
	case EventTruncated:
		return "truncated"
	default:
		return "unknown"
	}
}

// Entry is a file discovered by the traversal, before it is sized.
type Entry struct {
	// Path is the full path of the file.
	Path string
	// Name is the base name.
	Name string
	// Ext is the normalized lowercase extension, empty when there is none.
	Ext string
	// Depth is the depth of the containing directory (the root is 0).
	Depth int
}

// Event is a single item produced by a Stream.
type Event struct {
	Kind Kind
	// Entry is set for EventFile.
	Entry Entry
	// Path is the directory for EventDir and EventSkip, or the failing path for EventError.
	Path string
	// Depth is the depth of Path.
	Depth int
	// Reason is set for EventSkip.
	Reason prune.Reason
	// Err and ErrKind are set for EventError.
	Err     error
	ErrKind ErrorKind
}

// ErrorKind classifies per-entry failures.
type ErrorKind string

// Error kinds.
const (
	ErrKindPermission ErrorKind = "permission_denied"
	ErrKindVanished   ErrorKind = "vanished"
	ErrKindOther      ErrorKind = "other"
)

// ClassifyError maps a filesystem error to an ErrorKind.
func ClassifyError(err error) ErrorKind {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return ErrKindPermission
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		return ErrKindVanished
	default:
		return ErrKindOther
	}
}

// ErrorCounts tallies per-entry failures by kind.
type ErrorCounts struct {
	PermissionDenied int64 `json:"permission_denied"`
	Vanished         int64 `json:"vanished"`
	Other            int64 `json:"other"`
}

// Record counts one failure of the given kind.
func (c *ErrorCounts) Record(kind ErrorKind) {
	switch kind {
	case ErrKindPermission:
		c.PermissionDenied++
	case ErrKindVanished:
		c.Vanished++
	default:
		c.Other++
	}
}

// Add sums two counts.
func (c ErrorCounts) Add(other ErrorCounts) ErrorCounts {
	return ErrorCounts{
		PermissionDenied: c.PermissionDenied + other.PermissionDenied,
		Vanished:         c.Vanished + other.Vanished,
		Other:            c.Other + other.Other,
	}
}

// Total returns the number of failures of any kind.
func (c ErrorCounts) Total() int64 {
	return c.PermissionDenied + c.Vanished + c.Other
}
