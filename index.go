package wbcache

import (
	"sync"
	"time"
)

// slot is the Go realization of an index Entry: exactly one of notifier
// (Fetching) or handle (Resident) is non-nil at any time.
type slot[K comparable, V any] struct {
	notifier   *notifier[V]
	handle     *Handle[V]
	lastAccess time.Time
}

// lookupOutcome distinguishes the three ways lookupOrMarkFetching can
// resolve for a caller.
type lookupOutcome int

const (
	outcomeHit lookupOutcome = iota
	outcomeAttach
	outcomeInitiate
)

// flushItem is a (key, value) pair handed from reclamation to the flush
// pipeline.
type flushItem[K comparable, V any] struct {
	key   K
	value V
}

// index is the single mapping from key to entry state, protected by one
// mutex held only for short critical sections. Every other component reaches
// the map exclusively through these methods.
type index[K comparable, V any] struct {
	mu    sync.Mutex
	slots map[K]*slot[K, V]
}

func newIndex[K comparable, V any]() *index[K, V] {
	return &index[K, V]{slots: make(map[K]*slot[K, V])}
}

// lookupOrMarkFetching is the entry point for Get. Atomically: a Resident
// slot bumps lastAccess and returns an acquired handle; a Fetching slot
// returns its existing notifier; an absent key is marked Fetching and a
// fresh notifier is returned for the caller to fulfill.
func (ix *index[K, V]) lookupOrMarkFetching(k K) (lookupOutcome, *Handle[V], *notifier[V]) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	s, ok := ix.slots[k]
	if !ok {
		n := newNotifier[V]()
		ix.slots[k] = &slot[K, V]{notifier: n}
		return outcomeInitiate, nil, n
	}
	if s.notifier != nil {
		return outcomeAttach, nil, s.notifier
	}
	s.lastAccess = time.Now()
	return outcomeHit, s.handle.acquire(), nil
}

// publish settles a fetch. If the slot is still Fetching it installs the
// fetched value as Resident. If a concurrent insert already made the slot
// Resident, that value wins and the fetched one is discarded. If the slot
// was evicted mid-fetch, publish revives it. The returned handle is an
// unacquired, cache-owned reference; callers that hand it to a waiter must
// acquire before doing so.
func (ix *index[K, V]) publish(k K, v V) *Handle[V] {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	s, ok := ix.slots[k]
	if !ok {
		h := newHandle(v)
		ix.slots[k] = &slot[K, V]{handle: h, lastAccess: time.Now()}
		return h
	}
	if s.notifier != nil {
		h := newHandle(v)
		s.notifier = nil
		s.handle = h
		s.lastAccess = time.Now()
		return h
	}
	// A concurrent insert (or an earlier publish) already settled this key;
	// that value wins and the one we just fetched is dropped by our caller.
	s.lastAccess = time.Now()
	return s.handle
}

// abortFetch removes a Fetching slot after store.Fetch failed, but only if
// it still points at n: a reclaim may already have removed the slot, and a
// fresh fetch may have since started under the same key.
func (ix *index[K, V]) abortFetch(k K, n *notifier[V]) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if s, ok := ix.slots[k]; ok && s.notifier == n {
		delete(ix.slots, k)
	}
}

// insert unconditionally sets k to Resident with v, replacing any prior
// state. It is the one operation that lets a caller win a race against an
// in-flight fetch (see publish).
func (ix *index[K, V]) insert(k K, v V) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.slots[k] = &slot[K, V]{handle: newHandle(v), lastAccess: time.Now()}
}

// tryReclaim attempts to remove k from the index and hand its value to the
// flush pipeline. A Vacant key or a Fetching slot both succeed trivially (in
// the Fetching case the producer will discover the slot absent on
// publish and recreate it). A Resident slot only succeeds when the cache's
// own reference is the sole remaining one.
func (ix *index[K, V]) tryReclaim(k K) (succeeded bool, item *flushItem[K, V]) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	s, ok := ix.slots[k]
	if !ok {
		return true, nil
	}
	if s.notifier != nil {
		delete(ix.slots, k)
		return true, nil
	}
	// No Get can bump this refcount without first taking ix.mu (the only
	// path that acquires a Resident handle is lookupOrMarkFetching above),
	// so a count of one observed here is stable for the rest of this
	// critical section.
	if s.handle.refCount() != 1 {
		return false, nil
	}
	delete(ix.slots, k)
	return true, &flushItem[K, V]{key: k, value: s.handle.Value()}
}

// residentIdleFor reports how long a Resident slot has gone unaccessed. The
// second return is false for an absent or Fetching slot, both of which the
// pruner skips.
func (ix *index[K, V]) residentIdleFor(k K, now time.Time) (time.Duration, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	s, ok := ix.slots[k]
	if !ok || s.notifier != nil {
		return 0, false
	}
	return now.Sub(s.lastAccess), true
}

// snapshotKeys returns the keys currently present, for the pruner and drain
// controller to iterate without holding the lock across per-key work.
func (ix *index[K, V]) snapshotKeys() []K {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	keys := make([]K, 0, len(ix.slots))
	for k := range ix.slots {
		keys = append(keys, k)
	}
	return keys
}

func (ix *index[K, V]) len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.slots)
}
