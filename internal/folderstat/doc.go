// Package folderstat analyzes directory trees.
//
// It walks the tree depth-first with pruning, fans subtree scans and size
// batches out to a bounded worker pool, classifies files by extension,
// aggregates counts and sizes per category and estimates the playback
// duration of media files. Runs report progress, can be cancelled and are
// cached per directory until the tree changes.
package folderstat
