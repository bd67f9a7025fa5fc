package folderstat

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/idelchi/folderstat/internal/aggregate"
	"github.com/idelchi/folderstat/internal/pool"
	"github.com/idelchi/folderstat/internal/prune"
	"github.com/idelchi/folderstat/internal/walk"
)

// ParallelMinSubdirs is the number of eligible root subdirectories needed
// before subtrees are scanned in parallel.
const ParallelMinSubdirs = 2

// scanResult summarizes the traversal side of a scan.
type scanResult struct {
	walk.Stats

	Parallel bool
	Subtrees int
}

func (r *scanResult) add(stats walk.Stats) {
	r.DirsScanned += stats.DirsScanned
	r.DirsSkipped += stats.DirsSkipped
	r.FilesEmitted += stats.FilesEmitted
	r.Irregular += stats.Irregular
	r.Errors = r.Errors.Add(stats.Errors)
	r.Truncated = r.Truncated || stats.Truncated
}

// scanner runs the traversal and sizing phase of one analysis.
type scanner struct {
	pool      *pool.Pool
	agg       *aggregate.Aggregator
	policy    prune.Policy
	budget    *walk.Budget
	batchSize int
	logger    *zap.Logger

	// Subtree progress, read by the progress reporter.
	subtrees     atomic.Int64
	subtreesDone atomic.Int64
}

// scan walks root, in parallel over root subdirectories when allowed and
// worthwhile, and merges all sizes into the aggregator.
func (s *scanner) scan(ctx context.Context, root string, parallel bool) scanResult {
	if parallel {
		children, err := walk.RootChildren(root, s.policy)
		if err != nil {
			s.logger.Debug("listing root failed, scanning sequentially", zap.Error(err))
		} else if len(children.Dirs) >= ParallelMinSubdirs {
			return s.parallel(ctx, root, children)
		}
	}

	return s.sequential(ctx, root)
}

// sequential streams the whole tree and submits size batches to the pool.
func (s *scanner) sequential(ctx context.Context, root string) scanResult {
	stream := walk.New(root, walk.Limits{Budget: s.budget}, s.policy)

	var futures []*pool.Future

	s.consume(ctx, stream, func(batch []walk.Entry) bool {
		future, err := s.pool.Submit(ctx, s.statTask(batch))
		if err != nil {
			s.logger.Debug("stopping scan", zap.Error(err))

			return false
		}

		futures = append(futures, future)

		return true
	})

	for _, future := range futures {
		_, _ = future.Result()
	}

	var result scanResult

	result.add(stream.Stats())

	return result
}

// parallel submits one unit per root subdirectory plus batches of root files.
// Each subtree unit walks its own stream and sizes inline, so no unit ever
// waits on another.
func (s *scanner) parallel(ctx context.Context, root string, children walk.Children) scanResult {
	result := scanResult{Parallel: true, Subtrees: len(children.Dirs)}
	result.DirsScanned = 1
	result.DirsSkipped = children.Skipped
	result.Irregular = children.Irregular

	s.subtrees.Store(int64(len(children.Dirs)))

	var (
		statFutures    []*pool.Future
		subtreeFutures []*pool.Future
	)

	files := make([]walk.Entry, 0, min(len(children.Files), s.batchSize))

	for _, file := range children.Files {
		if !s.budget.Take() {
			result.Truncated = true

			break
		}

		result.FilesEmitted++
		files = append(files, file)

		if len(files) == s.batchSize {
			if future, err := s.pool.Submit(ctx, s.statTask(files)); err == nil {
				statFutures = append(statFutures, future)
			}

			files = make([]walk.Entry, 0, s.batchSize)
		}
	}

	if len(files) > 0 {
		if future, err := s.pool.Submit(ctx, s.statTask(files)); err == nil {
			statFutures = append(statFutures, future)
		}
	}

	for _, dir := range children.Dirs {
		future, err := s.pool.Submit(ctx, s.subtreeTask(dir))
		if err != nil {
			s.logger.Debug("stopping subtree dispatch", zap.Error(err))

			break
		}

		subtreeFutures = append(subtreeFutures, future)
	}

	for _, future := range statFutures {
		_, _ = future.Result()
	}

	for _, future := range subtreeFutures {
		value, err := future.Result()
		if err != nil {
			s.logger.Debug("subtree unit failed", zap.Error(err))

			continue
		}

		if stats, ok := value.(walk.Stats); ok {
			result.add(stats)
		}
	}

	return result
}

// subtreeTask walks a subtree at depth 1 and merges its sizes batch by batch.
func (s *scanner) subtreeTask(dir string) pool.Task {
	return func(ctx context.Context) (any, error) {
		defer s.subtreesDone.Add(1)

		stream := walk.NewAt(dir, 1, walk.Limits{Budget: s.budget}, s.policy)
		cfg := s.agg.Config()

		s.consume(ctx, stream, func(batch []walk.Entry) bool {
			s.agg.Merge(aggregate.StatBatch(ctx, batch, cfg))

			return true
		})

		return stream.Stats(), nil
	}
}

// statTask sizes one batch of files.
func (s *scanner) statTask(batch []walk.Entry) pool.Task {
	return func(ctx context.Context) (any, error) {
		s.agg.Merge(aggregate.StatBatch(ctx, batch, s.agg.Config()))

		return nil, nil
	}
}

// consume drains a stream, handing full batches to flush. A false return
// from flush stops the traversal.
func (s *scanner) consume(ctx context.Context, stream *walk.Stream, flush func([]walk.Entry) bool) {
	defer stream.Close()

	batch := make([]walk.Entry, 0, s.batchSize)

	for event := range stream.All(ctx) {
		switch event.Kind {
		case walk.EventFile:
			batch = append(batch, event.Entry)

			if len(batch) == s.batchSize {
				if !flush(batch) {
					return
				}

				batch = make([]walk.Entry, 0, s.batchSize)
			}
		case walk.EventSkip:
			s.logger.Debug("skipping directory", zap.String("path", event.Path), zap.String("reason", string(event.Reason)))
		case walk.EventError:
			s.logger.Debug("error accessing path", zap.String("path", event.Path), zap.String("kind", string(event.ErrKind)), zap.Error(event.Err))
		case walk.EventTruncated:
			s.logger.Debug("file limit reached", zap.Int64("limit", s.budget.Limit()))
		case walk.EventDir:
		}
	}

	if len(batch) > 0 {
		flush(batch)
	}
}

// percent estimates scan progress within [0, 1).
func (s *scanner) percent() float64 {
	if total := s.subtrees.Load(); total > 0 {
		return float64(s.subtreesDone.Load()) / float64(total+1)
	}

	if limit := s.budget.Limit(); limit > 0 {
		return float64(s.budget.Used()) / float64(limit+1)
	}

	return 0
}
