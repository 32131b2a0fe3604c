package facetlock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAtomicProfilerCounts(t *testing.T) {
	p := NewAtomicProfiler()
	p.OnLock(FacetMain)
	p.OnLock(FacetMain)
	p.OnTryLock(FacetMain, false)
	p.OnTryLock(FacetMain, true)
	p.OnUnlock(FacetMain)
	p.OnContended(FacetMain)

	snap := p.Snapshot()
	got := snap[FacetMain]
	assert.EqualValues(t, 2, got.Locks)
	assert.EqualValues(t, 1, got.TryLocks)
	assert.EqualValues(t, 1, got.TryBusy)
	assert.EqualValues(t, 1, got.Unlocks)
	assert.EqualValues(t, 1, got.Contention)

	// Other facets untouched.
	assert.Zero(t, snap[FacetMsgQ].Locks)
}

func TestLockProfilerIsWiredIntoAcquireRelease(t *testing.T) {
	p := NewAtomicProfiler()
	setupRuntime(t, WithLockProfiler(p))

	a := NewActor(1)
	a.fw.bandRel(AllFacets, 0)
	a.Lock(FacetMain.Bit(), true)
	a.Unlock(FacetMain.Bit())

	snap := p.Snapshot()
	assert.EqualValues(t, 1, snap[FacetMain].Locks)
	assert.EqualValues(t, 1, snap[FacetMain].Unlocks)
}
