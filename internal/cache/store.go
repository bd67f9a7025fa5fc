package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned by a Store for missing keys.
var ErrNotFound = errors.New("cache entry not found")

// Store persists encoded cache entries.
type Store interface {
	Load(key string) ([]byte, error)
	Save(key string, data []byte, ttl time.Duration) error
	Delete(key string) error
	Close() error
}

// BadgerStore keeps entries in a badger database. Entries expire with the
// cache TTL so stale reports are collected by badger itself.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a store in dir. An empty dir keeps the
// database in memory.
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening cache store %q: %w", dir, err)
	}

	return &BadgerStore{db: db}, nil
}

// Load returns the stored bytes for key.
func (s *BadgerStore) Load(key string) ([]byte, error) {
	var data []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}

		data, err = item.ValueCopy(nil)

		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("loading %q: %w", key, err)
	}

	return data, nil
}

// Save stores data under key for ttl (zero keeps it forever).
func (s *BadgerStore) Save(key string, data []byte, ttl time.Duration) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), data)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}

		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("saving %q: %w", key, err)
	}

	return nil
}

// Delete removes key.
func (s *BadgerStore) Delete(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("deleting %q: %w", key, err)
	}

	return nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
