// Package walk implements a pull-based, iterative depth-first directory
// traversal.
//
// A Stream keeps an explicit frontier of directories instead of recursing,
// reads directories in bounded chunks and consults a prune.Policy before
// descending. Traversal is bounded by a shared file Budget and by depth, and
// stops between directories when its context is cancelled.
package walk
