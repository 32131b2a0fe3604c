package facetlock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnlockMask(t *testing.T) {
	// S4: have={TIMERS}, need={MAIN} -> every held facet at/above MAIN
	// (the lowest needed bit) must go, i.e. all of have.
	got := unlockMask(FacetTimers.Bit(), FacetMain.Bit())
	assert.Equal(t, FacetTimers.Bit(), got)

	// Nothing needed: no release required.
	assert.Zero(t, unlockMask(FacetTimers.Bit(), 0))

	// Held facet below the lowest needed facet is untouched.
	got = unlockMask(FacetMain.Bit(), FacetTimers.Bit())
	assert.Zero(t, got)
}

func TestPlanSafelockRunsTieGoesToP1First(t *testing.T) {
	steps := planSafelockRuns(FacetMain.Bit()|FacetTimers.Bit(), FacetMain.Bit()|FacetMsgQ.Bit())
	assert.Equal(t, 1, steps[0].owner)
	assert.Equal(t, FacetMain.Bit(), steps[0].run)
}

func TestSafelockRoundTripLawEquivalentToLock(t *testing.T) {
	// safelock(A, H, H∪M, nil, ...) is equivalent to lock(A, M).
	setupRuntime(t)
	a := NewActor(1)
	a.fw.bandRel(AllFacets, 0)
	a.fw.borAcq(FacetMain.Bit(), 0) // H = {MAIN}

	Safelock(a, FacetMain.Bit(), FacetMain.Bit()|FacetTimers.Bit(), nil, 0, 0, true)

	held, _ := a.fw.load()
	assert.Equal(t, FacetMain.Bit()|FacetTimers.Bit(), held)
}

// S4: A.id=7 need={MAIN,MSGQ}, B.id=3 have={TIMERS} need={MAIN}. After
// canonicalising P1=B, P2=A: caller ends up holding {MAIN,MSGQ} on A and
// {MAIN} on B.
func TestScenarioS4CrossActorSafelock(t *testing.T) {
	setupRuntime(t)
	a := NewActor(7)
	b := NewActor(3)
	a.fw.bandRel(AllFacets, 0)
	b.fw.bandRel(AllFacets, 0)
	b.fw.borAcq(FacetTimers.Bit(), 0) // have_B = {TIMERS}

	Safelock(a, 0, FacetMain.Bit()|FacetMsgQ.Bit(), b, FacetTimers.Bit(), FacetMain.Bit(), true)

	heldA, _ := a.fw.load()
	heldB, _ := b.fw.load()
	assert.Equal(t, FacetMain.Bit()|FacetMsgQ.Bit(), heldA)
	assert.Equal(t, FacetMain.Bit(), heldB)
}

func TestSafelockSameActorMergesRoles(t *testing.T) {
	setupRuntime(t)
	a := NewActor(1)
	a.fw.bandRel(AllFacets, 0)
	a.fw.borAcq(FacetTrace.Bit(), 0)

	// Same actor reached as both "A" and "B": needs get unioned onto P1,
	// P2 is absent. Boundary behaviour: need spans facets lower than a
	// currently held one, so TRACE must be released and everything
	// reacquired in order.
	Safelock(a, FacetTrace.Bit(), FacetTrace.Bit()|FacetMain.Bit(), a, 0, FacetMsgQ.Bit(), true)

	held, _ := a.fw.load()
	assert.Equal(t, FacetMain.Bit()|FacetMsgQ.Bit()|FacetTrace.Bit(), held)
}

func TestSafelockPinsRefcWhenUnmanagedCallerDropsToZero(t *testing.T) {
	setupRuntime(t)
	a := NewActor(1)
	a.fw.bandRel(AllFacets, 0)
	a.fw.borAcq(FacetTrace.Bit(), 0)

	Safelock(a, FacetTrace.Bit(), FacetMain.Bit(), nil, 0, 0, false)

	// By the time Safelock returns, the pin has already been released.
	assert.Zero(t, a.Refc())
}
