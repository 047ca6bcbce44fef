package wbcache

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario: the pruner reclaims a Resident entry once it has gone idle past
// accessTTL, and hands it to the flush pipeline.
func TestPrunerReclaimsIdleEntry(t *testing.T) {
	store := newFakeStore()
	ix := newIndex[int, string]()
	ix.publish(1, "v1")

	fp := newFlushPipeline[int, string](store, newCacheMetrics("prunetest"), log.New())
	go fp.run()
	defer fp.abortAndDiscard()

	p := newPruner[int, string](ix, func() *flushPipeline[int, string] { return fp }, time.Millisecond, 2*time.Millisecond, newCacheMetrics("prunetest"), log.New())
	go p.run()
	defer p.stop()

	require.Eventually(t, func() bool {
		return ix.len() == 0
	}, time.Second, 2*time.Millisecond)

	require.Eventually(t, func() bool {
		for _, tr := range store.Trace() {
			if tr == "Update(1, v1)" {
				return true
			}
		}
		return false
	}, time.Second, 2*time.Millisecond)
}

// Scenario: the pruner cannot reclaim an entry that is still pinned by a live
// Handle, and leaves it for a later pass.
func TestPrunerCannotReclaimPinnedEntry(t *testing.T) {
	ix := newIndex[int, string]()
	ix.publish(1, "v1")
	_, h, _ := ix.lookupOrMarkFetching(1)
	require.NotNil(t, h)

	p := newPruner[int, string](ix, nil, time.Millisecond, 2*time.Millisecond, newCacheMetrics("prunetest2"), log.New())
	go p.run()
	defer p.stop()

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, ix.len(), "pinned entry must survive several pruner passes")

	h.Release()
}

func TestPrunerSetPruneIntervalWakesLoop(t *testing.T) {
	ix := newIndex[int, string]()
	ix.publish(1, "v1")

	store := newFakeStore()
	fp := newFlushPipeline[int, string](store, newCacheMetrics("prunetest3"), log.New())
	go fp.run()
	defer fp.abortAndDiscard()

	p := newPruner[int, string](ix, func() *flushPipeline[int, string] { return fp }, time.Millisecond, time.Hour, newCacheMetrics("prunetest3"), log.New())
	go p.run()
	defer p.stop()

	p.setPruneInterval(2 * time.Millisecond)

	require.Eventually(t, func() bool {
		return ix.len() == 0
	}, time.Second, 2*time.Millisecond, "a shortened interval must take effect without waiting out the old hour-long period")
}
