package walk

import "sync/atomic"

// Budget is a file ceiling shared between streams. A nil Budget or a limit
// of zero or less is unlimited.
type Budget struct {
	limit int64
	used  atomic.Int64
}

// NewBudget creates a budget allowing up to limit files.
func NewBudget(limit int64) *Budget {
	return &Budget{limit: limit}
}

// Take claims one file from the budget and reports whether it was granted.
func (b *Budget) Take() bool {
	if b == nil || b.limit <= 0 {
		return true
	}

	return b.used.Add(1) <= b.limit
}

// Used returns the number of files granted so far.
func (b *Budget) Used() int64 {
	if b == nil {
		return 0
	}

	used := b.used.Load()
	if b.limit > 0 && used > b.limit {
		return b.limit
	}

	return used
}

// Exhausted reports whether every file of a bounded budget has been granted.
func (b *Budget) Exhausted() bool {
	return b != nil && b.limit > 0 && b.used.Load() >= b.limit
}

// Limit returns the configured ceiling.
func (b *Budget) Limit() int64 {
	if b == nil {
		return 0
	}

	return b.limit
}
