// Package duration measures and estimates the playback duration of media
// files through an external probe tool.
package duration

import (
	"context"
	"errors"
)

// Probe errors.
var (
	// ErrNotMedia is returned when the probe rejects a file.
	ErrNotMedia = errors.New("not a media file")
	// ErrToolUnavailable is returned when the probe tool cannot be found or run.
	ErrToolUnavailable = errors.New("probe tool unavailable")
	// ErrParseFailure is returned when the probe output has no usable duration.
	ErrParseFailure = errors.New("unparseable probe output")
	// ErrTimeout is returned when a probe exceeds its deadline.
	ErrTimeout = errors.New("probe timed out")
)

// Capability describes the probe tool found on this host.
type Capability struct {
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
}

// Prober reads the duration of a single media file.
type Prober interface {
	// Probe returns the duration of the file in seconds.
	Probe(ctx context.Context, path string) (float64, error)
	// Available checks whether the tool works and reports its version.
	Available(ctx context.Context) (Capability, error)
}
