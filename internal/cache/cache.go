// Package cache stores analysis results keyed by directory, valid for a
// bounded time and only while the directory has not changed.
package cache

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/idelchi/folderstat/internal/prune"
)

// DefaultTTL is how long an entry stays valid.
const DefaultTTL = time.Hour

// Entry is a cached value with the state of the tree it was computed from.
type Entry[V any] struct {
	Path        string      `json:"path"`
	Fingerprint Fingerprint `json:"fingerprint"`
	CapturedAt  time.Time   `json:"captured_at"`
	Value       V           `json:"value"`
}

// Options configures a Cache.
type Options struct {
	// TTL bounds the age of an entry. Zero means DefaultTTL.
	TTL time.Duration
	// Validation selects the fingerprint mode. Empty means ValidationTree.
	Validation Validation
	// Store optionally persists entries behind the in-memory map.
	Store Store
	// Clock returns the current time. Nil means time.Now.
	Clock func() time.Time
	// Logger receives debug output about misses and evictions.
	Logger *zap.Logger
}

// Cache maps normalized directory paths to values. It is safe for
// concurrent use; fingerprints are computed outside the lock.
type Cache[V any] struct {
	opts Options

	mu      sync.RWMutex
	entries map[string]*Entry[V]
}

// New creates a cache.
func New[V any](opts Options) *Cache[V] {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}

	if opts.Validation == "" {
		opts.Validation = ValidationTree
	}

	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Cache[V]{
		opts:    opts,
		entries: make(map[string]*Entry[V]),
	}
}

// Fingerprint captures the current state of the tree at path. Directories
// pruned by policy are not part of a tree fingerprint. Take it before
// computing the value that is later passed to Put, so changes made while the
// value is computed invalidate the entry.
func (c *Cache[V]) Fingerprint(path string, policy prune.Policy) (Fingerprint, error) {
	key, err := Key(path)
	if err != nil {
		return Fingerprint{}, err
	}

	return Compute(key, c.opts.Validation, policy)
}

// Get returns the value cached for path if it is younger than the TTL and
// the tree, as seen through policy, is unchanged. Stale entries are evicted.
// Any failure is a miss.
func (c *Cache[V]) Get(path string, policy prune.Policy) (V, bool) {
	var zero V

	key, err := Key(path)
	if err != nil {
		return zero, false
	}

	entry, ok := c.lookup(key)
	if !ok {
		c.opts.Logger.Debug("cache miss", zap.String("path", key))

		return zero, false
	}

	if age := c.opts.Clock().Sub(entry.CapturedAt); age >= c.opts.TTL {
		c.opts.Logger.Debug("cache entry expired", zap.String("path", key), zap.Duration("age", age))
		c.Invalidate(key)

		return zero, false
	}

	fingerprint, err := Compute(key, c.opts.Validation, policy)
	if err != nil || fingerprint != entry.Fingerprint {
		c.opts.Logger.Debug("cache entry stale", zap.String("path", key), zap.Error(err))
		c.Invalidate(key)

		return zero, false
	}

	return entry.Value, true
}

// Put stores value for path together with the fingerprint the tree had when
// computing value started.
func (c *Cache[V]) Put(path string, fingerprint Fingerprint, value V) error {
	key, err := Key(path)
	if err != nil {
		return err
	}

	entry := &Entry[V]{
		Path:        key,
		Fingerprint: fingerprint,
		CapturedAt:  c.opts.Clock(),
		Value:       value,
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()

	if c.opts.Store == nil {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return c.opts.Store.Save(key, data, c.opts.TTL)
}

// Invalidate drops the entry for path.
func (c *Cache[V]) Invalidate(path string) {
	key, err := Key(path)
	if err != nil {
		return
	}

	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()

	if c.opts.Store != nil {
		if err := c.opts.Store.Delete(key); err != nil {
			c.opts.Logger.Warn("deleting persisted cache entry", zap.Error(err))
		}
	}
}

// Len returns the number of entries held in memory.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// lookup finds an entry in memory, falling back to the persistent store.
func (c *Cache[V]) lookup(key string) (*Entry[V], bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok || c.opts.Store == nil {
		return entry, ok
	}

	data, err := c.opts.Store.Load(key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.opts.Logger.Warn("loading persisted cache entry", zap.Error(err))
		}

		return nil, false
	}

	entry = new(Entry[V])
	if err := json.Unmarshal(data, entry); err != nil {
		c.opts.Logger.Warn("decoding persisted cache entry", zap.String("path", key), zap.Error(err))

		return nil, false
	}

	c.mu.Lock()
	if existing, ok := c.entries[key]; ok {
		entry = existing
	} else {
		c.entries[key] = entry
	}
	c.mu.Unlock()

	return entry, true
}
