package wbcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexLookupOrMarkFetchingTransitions(t *testing.T) {
	ix := newIndex[int, string]()

	outcome, h, n := ix.lookupOrMarkFetching(1)
	assert.Equal(t, outcomeInitiate, outcome)
	assert.Nil(t, h)
	require.NotNil(t, n)

	outcome2, h2, n2 := ix.lookupOrMarkFetching(1)
	assert.Equal(t, outcomeAttach, outcome2)
	assert.Nil(t, h2)
	assert.Same(t, n, n2)

	published := ix.publish(1, "v1")
	assert.Equal(t, "v1", published.Value())

	outcome3, h3, n3 := ix.lookupOrMarkFetching(1)
	assert.Equal(t, outcomeHit, outcome3)
	assert.Nil(t, n3)
	require.NotNil(t, h3)
	assert.Equal(t, "v1", h3.Value())
	assert.EqualValues(t, 2, h3.refCount(), "cache's own ref plus this caller's acquire")
}

func TestIndexPublishDiscardsWhenAlreadyResident(t *testing.T) {
	ix := newIndex[int, string]()
	ix.lookupOrMarkFetching(1)
	ix.insert(1, "winner")

	h := ix.publish(1, "loser")
	assert.Equal(t, "winner", h.Value())
}

func TestIndexAbortFetchOnlyRemovesMatchingNotifier(t *testing.T) {
	ix := newIndex[int, string]()
	_, _, n := ix.lookupOrMarkFetching(1)

	stale := newNotifier[string]()
	ix.abortFetch(1, stale)
	assert.Equal(t, 1, ix.len(), "abortFetch must not remove a slot owned by a different notifier")

	ix.abortFetch(1, n)
	assert.Equal(t, 0, ix.len())
}

func TestIndexTryReclaimVacantFetchingResident(t *testing.T) {
	ix := newIndex[int, string]()

	ok, item := ix.tryReclaim(1)
	assert.True(t, ok)
	assert.Nil(t, item)

	ix.lookupOrMarkFetching(2)
	ok, item = ix.tryReclaim(2)
	assert.True(t, ok)
	assert.Nil(t, item)
	assert.Equal(t, 0, ix.len())

	ix.insert(3, "v3")
	ok, item = ix.tryReclaim(3)
	require.True(t, ok)
	require.NotNil(t, item)
	assert.Equal(t, "v3", item.value)
	assert.Equal(t, 0, ix.len())
}

func TestIndexTryReclaimFailsWhilePinned(t *testing.T) {
	ix := newIndex[int, string]()
	ix.insert(1, "v1")
	_, h, _ := ix.lookupOrMarkFetching(1)
	require.NotNil(t, h)

	ok, item := ix.tryReclaim(1)
	assert.False(t, ok)
	assert.Nil(t, item)

	h.Release()
	ok, item = ix.tryReclaim(1)
	assert.True(t, ok)
	require.NotNil(t, item)
}

func TestIndexResidentIdleFor(t *testing.T) {
	ix := newIndex[int, string]()
	_, resident := ix.residentIdleFor(1, time.Now())
	assert.False(t, resident, "absent key is not resident")

	ix.lookupOrMarkFetching(1)
	_, resident = ix.residentIdleFor(1, time.Now())
	assert.False(t, resident, "fetching key is not resident")

	ix.publish(1, "v1")
	idle, resident := ix.residentIdleFor(1, time.Now().Add(time.Second))
	assert.True(t, resident)
	assert.GreaterOrEqual(t, idle, time.Second)
}
