// Package pebblestore adapts a github.com/cockroachdb/pebble database to the
// wbcache.Store interface, the same way ethdb/pebble adapts pebble to
// go-ethereum's KeyValueStore.
package pebblestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// ErrNotFound is returned by Fetch when the key is absent from the
// underlying database.
var ErrNotFound = errors.New("pebblestore: key not found")

// Store is a wbcache.Store[string, []byte] backed by an embedded pebble
// database. It is the demo CLI's default backing store.
type Store struct {
	db *pebble.DB
}

// Open opens (creating if necessary) a pebble database at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebblestore: open %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Fetch reads key from the database. Context cancellation is not honored
// mid-read: pebble's Get is a fast local call, not a blocking network one.
func (s *Store) Fetch(ctx context.Context, key string) ([]byte, error) {
	v, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("pebblestore: get %q: %w", key, err)
	}
	out := append([]byte(nil), v...)
	if cerr := closer.Close(); cerr != nil {
		return nil, fmt.Errorf("pebblestore: close iterator for %q: %w", key, cerr)
	}
	return out, nil
}

// Update writes key/value durably, syncing the write-ahead log before
// returning. This is the write-back cache's only path to durable storage, so
// it does not trade sync for speed.
func (s *Store) Update(ctx context.Context, key string, value []byte) error {
	if err := s.db.Set([]byte(key), value, pebble.Sync); err != nil {
		return fmt.Errorf("pebblestore: set %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
