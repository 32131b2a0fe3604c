package facetlock

import "runtime"

// inOrderFree computes, from the currently-held field heldOld and a
// requested set need, the subset of need that is both free and safe to
// grab without skipping over a lower-ordered facet someone else holds
// (spec §4.3: "in_order_free(old, M) = M ∩ ¬held(old) ∩ below-lowest-busy,
// where below-lowest-busy is the set of bits strictly below the lowest
// bit of M ∩ held(old)"). Grounded directly on erl_process_lock.c's
// in_order_locks (original_source, lines 371-382): when need holds no
// bits that are currently held by someone else, "lowest busy" is the zero
// value and subtracting 1 from it underflows to all-ones, which correctly
// imposes no ordering constraint at all (spec §8 scenario S3).
func inOrderFree(heldOld, need FacetSet) FacetSet {
	busy := heldOld & need
	lowestBusy := busy.Lowest()
	belowLowestBusy := lowestBusy - 1
	free := need &^ heldOld
	return free & belowLowestBusy
}

// Lock acquires every facet in m in addition to whatever the caller
// already holds (spec §6 "lock(actor, M)"). m must be disjoint from what
// the caller already holds; acquiring an already-held facet is a
// contract violation the caller is responsible for avoiding (facets are
// strictly non-reentrant, spec §1).
//
// managed should be true when called from a scheduler-managed thread and
// false otherwise (spec §5); it only affects the spin budget used on
// contention.
func (a *Actor) Lock(m FacetSet, managed bool) {
	if m == 0 {
		return
	}
	priorHeld, _ := a.fw.borAcq(m, 0)
	busy := priorHeld & m
	if busy == 0 {
		a.onLocked(m)
		return
	}
	// The OR above is unconditional: it may have grabbed higher-ordered,
	// currently-free bits of m even though a lower-ordered bit in m is
	// held elsewhere. Handing the full m to acquireSlowPath would make it
	// wait on a bit this same goroutine already holds (parking forever,
	// since nothing will ever release it); handing it only busy would
	// leave those higher bits held out of order, which can still deadlock
	// two goroutines cross-wise (one holds a low facet wanting a high one
	// this goroutine just grabbed, while this goroutine holds that high
	// facet wanting the low one) — spec §8 inv. 4/5 requires facets on one
	// actor always be taken in ascending order. So any bit grabbed at or
	// above the lowest busy facet is given back (mirroring TryLock's
	// rollback below) and folded into the need passed to acquireSlowPath,
	// which reacquires everything through the proper in-order/CAS path.
	grabbed := m &^ priorHeld
	belowLowestBusy := busy.Below()
	outOfOrder := grabbed &^ belowLowestBusy
	if outOfOrder != 0 {
		a.fw.bandRel(outOfOrder, 0)
	}
	a.acquireSlowPath(busy|outOfOrder, managed)
	a.onLocked(m)
}

// TryLock attempts to acquire m without blocking (spec §6
// "trylock_raw(actor, M)"). On success it returns nil; on failure it
// returns ErrBusy and the caller holds none of m (any bits it happened to
// grab via the initial OR are rolled back before returning).
func (a *Actor) TryLock(m FacetSet) error {
	if m == 0 {
		return nil
	}
	priorHeld, _ := a.fw.borAcq(m, 0)
	got := m &^ priorHeld
	failed := m & priorHeld
	if failed != 0 {
		if got != 0 {
			a.fw.bandRel(got, 0)
		}
		if p := current().profiler; p != nil {
			for _, f := range failed.Facets() {
				p.OnTryLock(f, true)
			}
		}
		if c := current().checker; c != nil {
			for _, f := range failed.Facets() {
				c.OnTryLock(a.ID, f, false)
			}
		}
		return ErrBusy
	}
	a.onLocked(m)
	st := current()
	if st.profiler != nil {
		for _, f := range m.Facets() {
			st.profiler.OnTryLock(f, false)
		}
	}
	if st.checker != nil {
		for _, f := range m.Facets() {
			st.checker.OnTryLock(a.ID, f, true)
		}
	}
	return nil
}

func (a *Actor) onLocked(m FacetSet) {
	st := current()
	if st.checker != nil {
		for _, f := range m.Facets() {
			st.checker.OnLock(a.ID, f)
		}
	}
	if st.profiler != nil {
		for _, f := range m.Facets() {
			st.profiler.OnLock(f)
		}
	}
}

// acquireSlowPath is entered once the fast-path OR observes contention.
// It bound-spins trying to CAS-acquire every free, in-order facet at
// once, then parks (spec §4.3).
func (a *Actor) acquireSlowPath(need FacetSet, managed bool) {
	st := current()
	if st.profiler != nil {
		for _, f := range need.Facets() {
			st.profiler.OnContended(f)
		}
	}

	spinBudget := st.auxSpin
	if managed {
		spinBudget = st.schedulerSpin
	}
	untilYield := st.spinUntilYield

	old := a.fw.word.Load()
	for need != 0 {
		heldOld, _ := unpackWord(old)
		grabbable := inOrderFree(heldOld, need)
		if grabbable == 0 {
			if spinBudget <= 0 {
				a.parkForLocks(need)
				return
			}
			spinBudget--
			untilYield--
			if untilYield <= 0 {
				runtime.Gosched()
				untilYield = st.spinUntilYield
			}
			old = a.fw.word.Load()
			continue
		}
		ok, observed := a.fw.casAcq(old, grabbable)
		if ok {
			need &^= grabbable
			if managed {
				spinBudget = st.schedulerSpin
			} else {
				spinBudget = st.auxSpin
			}
			old = observed | uint64(grabbable)
		} else {
			old = observed
		}
	}
}

// parkForLocks implements spec §4.3 "Parking": take the stripe, try once
// more under its protection (which may finish the job without ever
// enqueueing), and if not, enqueue on the lowest still-missing facet and
// block on the TSE's event until the releaser has transferred every
// facet this goroutine needs.
func (a *Actor) parkForLocks(need FacetSet) {
	st := current()
	stripe := st.stripes.for_(a.ID)

	stripe.Lock()
	t := fetchTSE()
	t.needed = need
	a.tryAcquireAndEnqueue(t)
	if t.needed == 0 {
		stripe.Unlock()
		returnTSE(t)
		return
	}
	t.acquired.Store(true)
	stripe.Unlock()

	for {
		t.resetEvent()
		if !t.acquired.Load() {
			break
		}
		t.waitEvent()
	}
	debugAssert(t.needed == 0, "parked goroutine woke with needed != 0")
	returnTSE(t)
}

// tryAcquireAndEnqueue is spec §4.4, run under the actor's stripe. For
// each missing facet in ascending order it either joins an existing
// queue (stopping there — higher facets are left for lock transfer to
// assign later) or grabs the facet directly if its queue was empty.
func (a *Actor) tryAcquireAndEnqueue(t *tse) {
	need := t.needed
	got := FacetSet(0)

	for _, b := range need.Facets() {
		bit := b.Bit()
		if !a.wqb.empty(b) {
			a.wqb.enqueue(b, t)
			t.needed = need &^ got
			return
		}
		priorHeld, priorWaiter := a.fw.borAcq(bit, bit)
		debugAssert(priorWaiter&bit == 0, "waiter bit set on an empty facet queue")
		if priorHeld&bit != 0 {
			// Someone else holds it; we're the first waiter.
			a.wqb.enqueue(b, t)
			t.needed = need &^ got
			return
		}
		// Got it outright. No one else can be waiting on an empty
		// queue under our stripe, so the transient waiter bit we just
		// set alongside the held bit can come straight back off
		// (spec §9 "Open questions": this two-step is equivalent to
		// folding it into one stripe-local store; kept symmetric here
		// for clarity).
		a.fw.bandRel(0, bit)
		got |= bit
	}
	t.needed = need &^ got
}
