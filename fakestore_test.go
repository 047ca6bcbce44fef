package wbcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// fakeStore is an in-memory Store used across the test suite. It records
// every Fetch/Update call in order so tests can assert on the exact store
// trace, mirroring the "expected store trace" scenarios in the cache's
// design notes.
type fakeStore struct {
	mu    sync.Mutex
	trace []string

	fetchDelay time.Duration
	fetchFn    func(key int) (string, error)
	updateFn   func(key int, value string) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		fetchFn: func(key int) (string, error) {
			return fmt.Sprintf("v%d", key), nil
		},
	}
}

var errFakeFetch = errors.New("fakeStore: fetch failed")

func (s *fakeStore) Fetch(ctx context.Context, key int) (string, error) {
	if s.fetchDelay > 0 {
		select {
		case <-time.After(s.fetchDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	v, err := s.fetchFn(key)
	s.mu.Lock()
	s.trace = append(s.trace, fmt.Sprintf("Fetch(%d)", key))
	s.mu.Unlock()
	return v, err
}

func (s *fakeStore) Update(ctx context.Context, key int, value string) error {
	var err error
	if s.updateFn != nil {
		err = s.updateFn(key, value)
	}
	s.mu.Lock()
	s.trace = append(s.trace, fmt.Sprintf("Update(%d, %s)", key, value))
	s.mu.Unlock()
	return err
}

func (s *fakeStore) Trace() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.trace))
	copy(out, s.trace)
	return out
}

func (s *fakeStore) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.trace {
		if len(t) >= 5 && t[:5] == "Fetch" {
			n++
		}
	}
	return n
}
