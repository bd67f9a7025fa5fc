package walk

import (
	"context"
	"errors"
	"io"
	"iter"
	"os"
	"path/filepath"
	"slices"

	"github.com/idelchi/folderstat/internal/classify"
	"github.com/idelchi/folderstat/internal/prune"
)

// ChunkSize is the number of directory entries read per ReadDir call.
const ChunkSize = 1000

// Limits bounds a traversal.
type Limits struct {
	// Budget is the file ceiling, possibly shared with other streams.
	Budget *Budget
	// MaxDepth overrides the policy depth bound when positive.
	MaxDepth int
}

// Stats summarizes a finished or in-progress traversal.
type Stats struct {
	DirsScanned  int64
	DirsSkipped  int64
	FilesEmitted int64
	// Irregular counts symlinks, devices and other non-regular entries.
	Irregular int64
	Errors    ErrorCounts
	Truncated bool
}

// node is a directory waiting on the frontier.
type node struct {
	path  string
	depth int
}

// Stream is a finite, pull-based depth-first traversal. It is not safe for
// concurrent use and cannot be restarted.
type Stream struct {
	limits Limits
	policy prune.Policy

	stack []node

	// Directory currently being enumerated.
	dir      *os.File
	dirNode  node
	children []node

	queue []Event
	stats Stats
	err   error
	done  bool
}

// New starts a traversal rooted at root (depth 0).
func New(root string, limits Limits, policy prune.Policy) *Stream {
	return NewAt(root, 0, limits, policy)
}

// NewAt starts a traversal of a subtree whose root sits at the given depth
// of a larger walk.
func NewAt(root string, depth int, limits Limits, policy prune.Policy) *Stream {
	if limits.MaxDepth > 0 {
		policy.MaxDepth = limits.MaxDepth
	}

	return &Stream{
		limits: limits,
		policy: policy,
		stack:  []node{{path: filepath.Clean(root), depth: depth}},
	}
}

// Next returns the next event. It returns false once the traversal is over,
// either because the tree is exhausted, the budget ran out or ctx was cancelled.
func (s *Stream) Next(ctx context.Context) (Event, bool) {
	for {
		if len(s.queue) > 0 {
			event := s.queue[0]
			s.queue = s.queue[1:]

			if event.Kind == EventTruncated {
				s.finish()
			}

			return event, true
		}

		if s.done {
			return Event{}, false
		}

		if err := ctx.Err(); err != nil {
			s.err = err
			s.finish()

			return Event{}, false
		}

		if s.dir != nil {
			s.readChunk()

			continue
		}

		if len(s.stack) == 0 {
			s.finish()

			return Event{}, false
		}

		s.enter()
	}
}

// All adapts the stream for range loops. Breaking out of the loop releases
// the open directory handle.
func (s *Stream) All(ctx context.Context) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		defer s.Close()

		for {
			event, ok := s.Next(ctx)
			if !ok || !yield(event) {
				return
			}
		}
	}
}

// Stats returns the traversal counters collected so far.
func (s *Stream) Stats() Stats {
	return s.stats
}

// Err returns the context error that stopped the traversal, if any.
func (s *Stream) Err() error {
	return s.err
}

// Close ends the traversal early and releases resources.
func (s *Stream) Close() {
	s.finish()
}

// enter pops the next directory off the frontier and opens it.
func (s *Stream) enter() {
	current := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]

	dir, err := os.Open(current.path)
	if err != nil {
		s.fail(current.path, current.depth, err)

		return
	}

	s.dir = dir
	s.dirNode = current
	s.children = s.children[:0]
	s.stats.DirsScanned++
	s.queue = append(s.queue, Event{Kind: EventDir, Path: current.path, Depth: current.depth})
}

// readChunk reads up to ChunkSize entries of the open directory and turns
// them into events. Subdirectories are pushed once the directory is exhausted.
func (s *Stream) readChunk() {
	entries, err := s.dir.ReadDir(ChunkSize)

	for _, entry := range entries {
		path := filepath.Join(s.dirNode.path, entry.Name())

		switch mode := entry.Type(); {
		case mode.IsDir():
			s.consider(entry, path)
		case mode.IsRegular():
			if !s.limits.Budget.Take() {
				s.stats.Truncated = true
				s.queue = append(s.queue, Event{Kind: EventTruncated, Path: s.dirNode.path, Depth: s.dirNode.depth})

				return
			}

			s.stats.FilesEmitted++
			s.queue = append(s.queue, Event{
				Kind: EventFile,
				Entry: Entry{
					Path:  path,
					Name:  entry.Name(),
					Ext:   classify.Ext(entry.Name()),
					Depth: s.dirNode.depth,
				},
			})
		default:
			s.stats.Irregular++
		}
	}

	if err == nil {
		return
	}

	if !errors.Is(err, io.EOF) {
		s.fail(s.dirNode.path, s.dirNode.depth, err)
	}

	s.closeDir()

	// Reverse enumeration order so the first child listed is popped first.
	slices.Reverse(s.children)
	s.stack = append(s.stack, s.children...)
	s.children = s.children[:0]
}

// consider applies the pruning policy to a subdirectory.
func (s *Stream) consider(entry os.DirEntry, path string) {
	depth := s.dirNode.depth + 1

	if skip, reason := s.policy.ShouldSkip(entry.Name(), prune.AttributesOf(entry), depth); skip {
		s.stats.DirsSkipped++
		s.queue = append(s.queue, Event{Kind: EventSkip, Path: path, Depth: depth, Reason: reason})

		return
	}

	s.children = append(s.children, node{path: path, depth: depth})
}

func (s *Stream) fail(path string, depth int, err error) {
	kind := ClassifyError(err)
	s.stats.Errors.Record(kind)
	s.queue = append(s.queue, Event{Kind: EventError, Path: path, Depth: depth, Err: err, ErrKind: kind})
}

func (s *Stream) closeDir() {
	if s.dir != nil {
		_ = s.dir.Close()
		s.dir = nil
	}
}

func (s *Stream) finish() {
	s.closeDir()
	s.stack = nil
	s.children = nil
	s.done = true
}
