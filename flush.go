package wbcache

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// flushQueue is an unbounded FIFO of pending writes. A plain Go channel
// would either bound capacity or require a guessed buffer size; reclamation
// sites (the pruner and explicit TryEvict calls) must never block on it, so
// pushes are served by a mutex-protected slice with a single-slot wake-up
// channel the worker selects on alongside its abort signal.
type flushQueue[K comparable, V any] struct {
	mu     sync.Mutex
	items  []flushItem[K, V]
	closed bool
	notify chan struct{}
}

func newFlushQueue[K comparable, V any]() *flushQueue[K, V] {
	return &flushQueue[K, V]{notify: make(chan struct{}, 1)}
}

func (q *flushQueue[K, V]) push(item flushItem[K, V]) {
	q.mu.Lock()
	if !q.closed {
		q.items = append(q.items, item)
	}
	q.mu.Unlock()
	q.wake()
}

func (q *flushQueue[K, V]) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// close marks the queue closed. Already-queued items are still delivered by
// tryPop; no further pushes are accepted.
func (q *flushQueue[K, V]) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

func (q *flushQueue[K, V]) tryPop() (flushItem[K, V], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		var zero flushItem[K, V]
		return zero, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

func (q *flushQueue[K, V]) isClosedAndEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.items) == 0
}

// flushPipeline is the single background worker that owns the flush queue.
// It dequeues one pair at a time and calls store.Update, preserving per-key
// flush order trivially: reclamation removes a key's index slot before
// enqueueing, so at most one pair per key is ever in flight.
type flushPipeline[K comparable, V any] struct {
	store   Store[K, V]
	queue   *flushQueue[K, V]
	metrics *cacheMetrics
	log     log.Logger

	abortOnce sync.Once
	abortCh   chan struct{}
	done      chan struct{}
}

func newFlushPipeline[K comparable, V any](store Store[K, V], m *cacheMetrics, lg log.Logger) *flushPipeline[K, V] {
	return &flushPipeline[K, V]{
		store:   store,
		queue:   newFlushQueue[K, V](),
		metrics: m,
		log:     lg,
		abortCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (fp *flushPipeline[K, V]) enqueue(item flushItem[K, V]) {
	fp.queue.push(item)
}

// run services the queue until it is both closed and empty, or until an
// abort is requested. No retries: a store.Update failure is logged and
// counted, then the worker moves on to the next item.
func (fp *flushPipeline[K, V]) run() {
	defer close(fp.done)
	for {
		select {
		case <-fp.abortCh:
			return
		default:
		}
		if item, ok := fp.queue.tryPop(); ok {
			fp.process(item)
			continue
		}
		if fp.queue.isClosedAndEmpty() {
			return
		}
		select {
		case <-fp.queue.notify:
		case <-fp.abortCh:
			return
		}
	}
}

func (fp *flushPipeline[K, V]) process(item flushItem[K, V]) {
	if err := fp.store.Update(context.Background(), item.key, item.value); err != nil {
		fp.metrics.flushErr.Mark(1)
		fp.log.Error("cache flush failed", "key", item.key, "err", err)
		return
	}
	fp.metrics.flushOK.Mark(1)
}

// closeAndWait closes the queue for new pushes, waits for every item
// already queued to be flushed, then returns. This is the synchronization
// point EvictAllSync relies on.
func (fp *flushPipeline[K, V]) closeAndWait() {
	fp.queue.close()
	<-fp.done
}

// abortAndDiscard stops the worker as soon as possible, abandoning any
// queued writes. Used when the cache is closed without a prior drain. It
// does not wait for a store.Update already in progress to return.
func (fp *flushPipeline[K, V]) abortAndDiscard() {
	fp.abortOnce.Do(func() { close(fp.abortCh) })
}
