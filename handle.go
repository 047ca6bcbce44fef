package wbcache

import "sync/atomic"

// Handle is a shared, refcounted reference to a cached value. The cache
// itself always holds one reference; each live Get result holds an
// additional one. A Handle is eligible for reclamation only once its
// refcount drops back to one (see index.tryReclaim).
type Handle[V any] struct {
	value V
	refs  int32
}

func newHandle[V any](v V) *Handle[V] {
	return &Handle[V]{value: v, refs: 1}
}

// Value returns the handle's underlying value. It remains valid for as long
// as the caller holds this Handle (i.e. until Release is called).
func (h *Handle[V]) Value() V {
	return h.value
}

// acquire adds a reference on behalf of a new holder and returns the same
// handle. Every acquire must be matched by exactly one Release.
func (h *Handle[V]) acquire() *Handle[V] {
	atomic.AddInt32(&h.refs, 1)
	return h
}

// Release drops the caller's reference. Every Handle returned by Get must be
// released exactly once when the caller is done with it.
func (h *Handle[V]) Release() {
	atomic.AddInt32(&h.refs, -1)
}

// refCount only ever decreases outside the index lock (via Release), and
// only ever increases while the index lock is held (via acquire from
// lookupOrMarkFetching or publish). That asymmetry is what lets tryReclaim
// treat a count of one, observed under the lock, as proof that no external
// holder remains: nothing can race it upward.
func (h *Handle[V]) refCount() int32 {
	return atomic.LoadInt32(&h.refs)
}
