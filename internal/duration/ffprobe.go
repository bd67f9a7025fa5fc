package duration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Probe timeouts.
const (
	DefaultProbeTimeout   = 30 * time.Second
	DefaultVersionTimeout = 5 * time.Second
)

// WellKnownPaths are checked when ffprobe is not on PATH.
//
//nolint:gochecknoglobals // Static search list
var WellKnownPaths = []string{
	`C:\ffmpeg\bin\ffprobe.exe`,
	`C:\Program Files\ffmpeg\bin\ffprobe.exe`,
	"/usr/bin/ffprobe",
	"/usr/local/bin/ffprobe",
	"/opt/homebrew/bin/ffprobe",
}

// FFprobe probes media files with the ffprobe command line tool.
type FFprobe struct {
	// Path is an explicit binary location. Empty means discover it.
	Path string
	// Timeout bounds a single probe.
	Timeout time.Duration

	logger *zap.Logger

	once     sync.Once
	resolved string
	err      error
}

// NewFFprobe creates a prober. An empty path triggers discovery on first use.
func NewFFprobe(path string, timeout time.Duration, logger *zap.Logger) *FFprobe {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &FFprobe{Path: path, Timeout: timeout, logger: logger}
}

// locate resolves the binary once: the configured path, then PATH, then the
// well-known locations.
func (f *FFprobe) locate() (string, error) {
	f.once.Do(func() {
		if f.Path != "" {
			f.resolved, f.err = exec.LookPath(f.Path)
			if f.err != nil {
				f.err = fmt.Errorf("%w: %w", ErrToolUnavailable, f.err)
			}

			return
		}

		for _, candidate := range append([]string{"ffprobe"}, WellKnownPaths...) {
			if path, err := exec.LookPath(candidate); err == nil {
				f.resolved = path

				return
			}
		}

		f.err = fmt.Errorf("%w: ffprobe not found in PATH or common locations", ErrToolUnavailable)
	})

	return f.resolved, f.err
}

// Available runs "ffprobe -version" and records the first line of its output.
func (f *FFprobe) Available(ctx context.Context) (Capability, error) {
	path, err := f.locate()
	if err != nil {
		return Capability{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultVersionTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return Capability{Path: path}, fmt.Errorf("%w: running %q: %w", ErrToolUnavailable, path, err)
	}

	version, _, _ := strings.Cut(strings.ToValidUTF8(string(out), ""), "\n")

	return Capability{
		Available: true,
		Path:      path,
		Version:   strings.TrimSpace(version),
	}, nil
}

// Probe returns the container duration reported by ffprobe.
func (f *FFprobe) Probe(ctx context.Context, path string) (float64, error) {
	bin, err := f.locate()
	if err != nil {
		return 0, err
	}

	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%w: %q is not a regular file", ErrNotMedia, path)
	}

	probeCtx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	var stdout bytes.Buffer

	cmd := exec.CommandContext(probeCtx, bin, "-v", "quiet", "-print_format", "json", "-show_format", path)
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		switch {
		case ctx.Err() != nil:
			return 0, ctx.Err()
		case errors.Is(probeCtx.Err(), context.DeadlineExceeded):
			return 0, fmt.Errorf("%w: %q after %s", ErrTimeout, path, f.Timeout)
		case errors.As(err, new(*exec.ExitError)):
			return 0, fmt.Errorf("%w: %q: %w", ErrNotMedia, path, err)
		default:
			return 0, fmt.Errorf("%w: %w", ErrToolUnavailable, err)
		}
	}

	seconds, err := parseOutput(stdout.Bytes())
	if err != nil {
		return 0, fmt.Errorf("probing %q: %w", path, err)
	}

	f.logger.Debug("probed", zap.String("path", path), zap.Float64("seconds", seconds))

	return seconds, nil
}

// probeOutput is the subset of "ffprobe -show_format" output that is used.
type probeOutput struct {
	Format struct {
		Duration json.RawMessage `json:"duration"`
	} `json:"format"`
}

// parseOutput extracts format.duration, which ffprobe reports as a string.
func parseOutput(out []byte) (float64, error) {
	text := strings.TrimSpace(strings.ToValidUTF8(string(out), ""))
	if text == "" {
		return 0, fmt.Errorf("%w: empty output", ErrParseFailure)
	}

	var parsed probeOutput
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrParseFailure, err)
	}

	raw := strings.Trim(string(parsed.Format.Duration), `"`)
	if raw == "" || raw == "null" {
		return 0, fmt.Errorf("%w: missing format.duration", ErrParseFailure)
	}

	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, fmt.Errorf("%w: duration %q", ErrParseFailure, raw)
	}

	return seconds, nil
}
