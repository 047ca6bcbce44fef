package wbcache

import "errors"

var (
	// ErrStoreFetchFailure is returned to every waiter of a Get call whose
	// underlying store.Fetch failed. The cache does not negative-cache; the
	// first waiter may retry by calling Get again.
	ErrStoreFetchFailure = errors.New("wbcache: store fetch failed")

	// ErrProducerVanished is returned when the goroutine servicing a fetch
	// panicked or was otherwise lost before it could settle the notifier.
	// Callers should treat it identically to ErrStoreFetchFailure.
	ErrProducerVanished = errors.New("wbcache: fetch producer vanished")

	// ErrDrainTimeout is returned by EvictAllSync when the caller supplied a
	// context deadline and external handles were still pinned when it
	// elapsed. Without a deadline, EvictAllSync spins until drained.
	ErrDrainTimeout = errors.New("wbcache: drain deadline exceeded")
)
