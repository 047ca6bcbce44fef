package wbcache

import "github.com/ethereum/go-ethereum/metrics"

// cacheMetrics mirrors the way core/state.triePrefetcher registers one
// meter per event under a per-instance prefix, so several Cache instances
// in one process stay distinguishable in a metrics dashboard.
type cacheMetrics struct {
	hit          metrics.Meter
	miss         metrics.Meter
	coalesced    metrics.Meter
	fetchErr     metrics.Meter
	flushOK      metrics.Meter
	flushErr     metrics.Meter
	pruneEvicted metrics.Meter
	drainCycles  metrics.Meter
}

func newCacheMetrics(name string) *cacheMetrics {
	prefix := "cache/" + name + "/"
	return &cacheMetrics{
		hit:          metrics.GetOrRegisterMeter(prefix+"hit", nil),
		miss:         metrics.GetOrRegisterMeter(prefix+"miss", nil),
		coalesced:    metrics.GetOrRegisterMeter(prefix+"coalesced", nil),
		fetchErr:     metrics.GetOrRegisterMeter(prefix+"fetch/error", nil),
		flushOK:      metrics.GetOrRegisterMeter(prefix+"flush/success", nil),
		flushErr:     metrics.GetOrRegisterMeter(prefix+"flush/error", nil),
		pruneEvicted: metrics.GetOrRegisterMeter(prefix+"prune/evicted", nil),
		drainCycles:  metrics.GetOrRegisterMeter(prefix+"drain/cycles", nil),
	}
}
