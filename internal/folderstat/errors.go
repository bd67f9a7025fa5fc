package folderstat

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrInvalidInput is returned for empty paths, non-directories and bad options.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPathNotFound is returned when the root does not exist.
	ErrPathNotFound = errors.New("path not found")
	// ErrPermissionDenied is returned when the root cannot be read.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrLimitExceeded marks a report truncated by the file limit.
	ErrLimitExceeded = errors.New("file limit exceeded")
	// ErrCancelled marks a report cut short by cancellation.
	ErrCancelled = errors.New("analysis cancelled")
	// ErrInternal is returned when a run panics after it started.
	ErrInternal = errors.New("internal error")
)

// rootError maps a failure to access the root onto the error taxonomy.
func rootError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %q", ErrPathNotFound, path)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %q", ErrPermissionDenied, path)
	default:
		return fmt.Errorf("accessing path %q: %w", path, err)
	}
}
