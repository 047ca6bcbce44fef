package wbcache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// pruner runs on a fixed period, scanning the index for Resident entries
// that have gone idle longer than accessTTL and reclaiming them. It mirrors
// eth/feemarket.FeeMarketCache.removeStaleEntries: a ticker loop that takes
// the index lock once per key, not once for the whole pass, so a slow
// store.Update on the flush side never holds the scan up.
//
// accessTTL and interval are stored as atomic nanosecond counts so a config
// reload (see the demo CLI's fsnotify watcher) can retune a running pruner
// without tearing it down.
type pruner[K comparable, V any] struct {
	ix      *index[K, V]
	flushOf func() *flushPipeline[K, V]
	metrics *cacheMetrics
	log     log.Logger

	accessTTL atomic.Int64
	interval  atomic.Int64
	retuneCh  chan struct{}

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func newPruner[K comparable, V any](ix *index[K, V], flushOf func() *flushPipeline[K, V], accessTTL, interval time.Duration, m *cacheMetrics, lg log.Logger) *pruner[K, V] {
	p := &pruner[K, V]{
		ix:       ix,
		flushOf:  flushOf,
		metrics:  m,
		log:      lg,
		retuneCh: make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	p.accessTTL.Store(int64(accessTTL))
	p.interval.Store(int64(interval))
	return p
}

func (p *pruner[K, V]) setAccessTTL(d time.Duration) { p.accessTTL.Store(int64(d)) }

// setPruneInterval retunes the scan period and wakes the running loop so a
// shorter interval takes effect immediately instead of after whatever is
// left of the old ticker's current period.
func (p *pruner[K, V]) setPruneInterval(d time.Duration) {
	p.interval.Store(int64(d))
	select {
	case p.retuneCh <- struct{}{}:
	default:
	}
}

func (p *pruner[K, V]) run() {
	defer close(p.doneCh)
	ticker := time.NewTicker(time.Duration(p.interval.Load()))
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.pass()
			ticker.Reset(time.Duration(p.interval.Load()))
		case <-p.retuneCh:
			ticker.Reset(time.Duration(p.interval.Load()))
		case <-p.stopCh:
			return
		}
	}
}

// pass scans a snapshot of the current keys. Re-fetching each slot by key
// (rather than trusting the snapshot) is what lets the index change freely
// underneath the scan: a key gone Fetching, evicted, or freshly re-inserted
// between the snapshot and the per-key check is simply skipped or left for
// the next pass.
func (p *pruner[K, V]) pass() {
	now := time.Now()
	ttl := time.Duration(p.accessTTL.Load())
	for _, k := range p.ix.snapshotKeys() {
		idle, resident := p.ix.residentIdleFor(k, now)
		if !resident || idle < ttl {
			continue
		}
		reclaimed, item := p.ix.tryReclaim(k)
		if !reclaimed {
			continue // still externally held; reconsidered next pass
		}
		if item != nil {
			p.metrics.pruneEvicted.Mark(1)
			p.log.Debug("cache pruner reclaimed idle entry", "key", k, "idle", idle)
			p.flushOf().enqueue(*item)
		}
	}
}

func (p *pruner[K, V]) stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	<-p.doneCh
}
