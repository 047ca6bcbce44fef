// Package wbcache implements a write-back, single-flight, read-through
// key/value cache layered over a caller-supplied Store. Concurrent misses on
// the same key are coalesced into one upstream fetch; values are held under
// shared ownership so a reader can keep using one after the cache itself has
// moved on; eviction hands values off to a serialized background flush
// pipeline instead of blocking the evicting caller.
package wbcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// drainBackoff is how long EvictAllSync waits between retry passes while
// external handles remain pinned.
const drainBackoff = time.Second

// Cache is a concurrent read-through, write-back cache over a Store.
// The zero value is not usable; construct one with New.
type Cache[K comparable, V any] struct {
	name  string
	store Store[K, V]
	ix    *index[K, V]
	cfg   Config
	log   log.Logger
	met   *cacheMetrics

	// rotMu guards flush/prune during EvictAllSync's pipeline rotation; it
	// is never held across a blocking call.
	rotMu sync.Mutex
	flush *flushPipeline[K, V]
	prune *pruner[K, V]

	closeOnce sync.Once
}

// New constructs a Cache named name, backed by store, and starts its flush
// worker and pruner. name only affects logging and metrics, so that several
// caches in one process remain distinguishable.
func New[K comparable, V any](name string, store Store[K, V], opts ...Option) *Cache[K, V] {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.normalize()

	c := &Cache[K, V]{
		name:  name,
		store: store,
		ix:    newIndex[K, V](),
		cfg:   cfg,
		log:   log.New("cache", name),
		met:   newCacheMetrics(name),
	}
	c.flush = newFlushPipeline[K, V](store, c.met, c.log)
	c.prune = newPruner[K, V](c.ix, c.currentFlush, cfg.AccessTTL, cfg.PruneInterval, c.met, c.log)
	go c.flush.run()
	go c.prune.run()
	return c
}

func (c *Cache[K, V]) currentFlush() *flushPipeline[K, V] {
	c.rotMu.Lock()
	defer c.rotMu.Unlock()
	return c.flush
}

func (c *Cache[K, V]) currentPrune() *pruner[K, V] {
	c.rotMu.Lock()
	defer c.rotMu.Unlock()
	return c.prune
}

// Reconfigure retunes AccessTTL and PruneInterval on the running pruner
// without restarting it, so a config file reload (see the demo CLI's
// fsnotify watcher) can take effect immediately.
func (c *Cache[K, V]) Reconfigure(cfg Config) {
	cfg = cfg.normalize()
	c.rotMu.Lock()
	c.cfg = cfg
	c.rotMu.Unlock()
	pr := c.currentPrune()
	pr.setAccessTTL(cfg.AccessTTL)
	pr.setPruneInterval(cfg.PruneInterval)
}

// Get implements read-through with single-flight coalescing: concurrent
// callers on a cold key each attach to the same fetch and receive the same
// value. The returned Handle must be released by the caller when no longer
// needed. ctx cancels only this caller's wait; a fetch it happened to start
// runs to completion regardless, so other waiters are unaffected.
func (c *Cache[K, V]) Get(ctx context.Context, k K) (*Handle[V], error) {
	outcome, h, n := c.ix.lookupOrMarkFetching(k)
	switch outcome {
	case outcomeHit:
		c.met.hit.Mark(1)
		return h, nil
	case outcomeAttach:
		c.met.coalesced.Mark(1)
		return n.wait(ctx)
	default: // outcomeInitiate
		c.met.miss.Mark(1)
		go c.runFetch(k, n)
		return n.wait(ctx)
	}
}

// runFetch is the producer task for a single key: it calls the store, then
// settles the notifier under the index lock. It is started detached from
// any one caller's context, so cancelling the Get that triggered it never
// orphans the other waiters.
func (c *Cache[K, V]) runFetch(k K, n *notifier[V]) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("cache fetch producer panicked", "key", k, "panic", r)
			c.ix.abortFetch(k, n)
			n.settle(nil, nil) // surfaces as ErrProducerVanished to waiters
		}
	}()

	v, err := c.store.Fetch(context.Background(), k)
	if err != nil {
		c.met.fetchErr.Mark(1)
		c.ix.abortFetch(k, n)
		n.settle(nil, fmt.Errorf("%w: %v", ErrStoreFetchFailure, err))
		return
	}
	h := c.ix.publish(k, v)
	n.settle(h, nil)
}

// Insert unconditionally installs v as the Resident value for k. It races
// freely against a concurrent fetch: if a fetch is in flight, Insert wins
// and the fetched value is discarded when the fetch later calls publish.
func (c *Cache[K, V]) Insert(k K, v V) {
	c.ix.insert(k, v)
}

// TryEvict attempts to remove k from the cache, handing its value to the
// flush pipeline on success. It returns true if the key was removed (or was
// already absent), and false if a caller-held Handle from a prior Get is
// still pinning it, in which case the entry is untouched and may be
// retried later.
func (c *Cache[K, V]) TryEvict(k K) bool {
	// rotMu is held across reclaim and enqueue so rotate cannot close the
	// pipeline this item is handed to in between.
	c.rotMu.Lock()
	defer c.rotMu.Unlock()
	ok, item := c.ix.tryReclaim(k)
	if ok && item != nil {
		c.flush.enqueue(*item)
	}
	return ok
}

// EvictAllSync drains the cache: every resident entry is reclaimed and
// handed to the flush pipeline, and this call does not return until the
// store has observed an Update for every one of them. It livelocks, with a
// periodic warning log, for as long as external handles remain pinned; pass
// a context with a deadline to bound that wait instead.
func (c *Cache[K, V]) EvictAllSync(ctx context.Context) error {
	cycles := 0
	for {
		keys := c.ix.snapshotKeys()
		allReclaimed := true
		fp := c.currentFlush()
		for _, k := range keys {
			ok, item := c.ix.tryReclaim(k)
			if !ok {
				allReclaimed = false
				continue
			}
			if item != nil {
				fp.enqueue(*item)
			}
		}
		if allReclaimed && c.ix.len() == 0 {
			break
		}
		cycles++
		c.met.drainCycles.Mark(1)
		c.log.Warn("cache drain waiting on externally pinned handles", "name", c.name, "cycle", cycles)
		select {
		case <-time.After(drainBackoff):
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrDrainTimeout, ctx.Err())
		}
	}
	c.rotate()
	return nil
}

// rotate installs a fresh flush pipeline and pruner, then retires the old
// ones: the old pruner is stopped first (so no further pass can enqueue
// onto the old queue), the old queue is closed only after that, and the
// call blocks until the old flush worker has drained everything already
// queued. That ordering is what guarantees every value reclaimed by
// EvictAllSync above has reached the store by the time EvictAllSync
// returns.
func (c *Cache[K, V]) rotate() {
	c.rotMu.Lock()
	oldFlush, oldPrune := c.flush, c.prune
	newFlush := newFlushPipeline[K, V](c.store, c.met, c.log)
	c.flush = newFlush
	c.prune = newPruner[K, V](c.ix, c.currentFlush, c.cfg.AccessTTL, c.cfg.PruneInterval, c.met, c.log)
	newPrune := c.prune
	c.rotMu.Unlock()

	oldPrune.stop()
	oldFlush.closeAndWait()

	go newFlush.run()
	go newPrune.run()
}

// Close aborts the pruner and flush worker without draining. Any writes
// still queued for flush are discarded. Callers that need durability must
// call EvictAllSync before Close.
func (c *Cache[K, V]) Close() {
	c.closeOnce.Do(func() {
		c.rotMu.Lock()
		fp, pr := c.flush, c.prune
		c.rotMu.Unlock()
		pr.stop()
		fp.abortAndDiscard()
	})
}
