package facetlock

// reverseFacets returns the facets in s in descending order, mirroring
// erl_process_lock.c's erts_proc_lc_unlock (original_source, lines
// 1241-1267), which walks TRACE down to MAIN when reporting unlocks —
// the reverse of the ascending order locks are taken and reported in.
func reverseFacets(s FacetSet) []Facet {
	fs := s.Facets()
	for i, j := 0, len(fs)-1; i < j; i, j = i+1, j-1 {
		fs[i], fs[j] = fs[j], fs[i]
	}
	return fs
}

// Unlock releases every facet in m, which the caller must currently hold
// (spec §6 "unlock(actor, M)"). Facets with no waiters are released with
// a single atomic AND; facets with waiters are handed directly to the
// head of their wait queue without ever being observed free
// ("transfer", spec §4.5).
func (a *Actor) Unlock(m FacetSet) {
	if m == 0 {
		return
	}
	st := current()
	if st.checker != nil {
		// spec §6/erts_proc_lc_might_unlock: fired once for the whole set
		// before any facet is actually released, ahead of the per-facet
		// OnUnlock calls below — the order-checker's chance to record that
		// a release of m is about to happen before it observes any of it
		// having taken effect.
		st.checker.OnMightUnlock(a.ID, m)
		for _, f := range reverseFacets(m) {
			st.checker.OnUnlock(a.ID, f)
		}
	}

	remaining := m
	for remaining != 0 {
		_, waiterField := a.fw.load()
		clean := remaining &^ waiterField
		a.fw.bandRel(clean, 0)
		toTransfer := remaining &^ clean
		if toTransfer != 0 {
			a.releaseSlowPath(toTransfer)
		}
		if clean == 0 {
			break
		}

		// spec §9 "Wait-flag read without stripe": a waiter may have
		// enqueued itself, under the stripe, on a facet we had already
		// decided (from a stale lock-free read) was waiter-free. If so
		// the bit we just cleared is now "free but someone is queued
		// on it" — a lost wakeup unless we notice and fix it here.
		_, waiterField2 := a.fw.load()
		raced := clean & waiterField2
		if raced == 0 {
			break
		}
		priorHeld, _ := a.fw.borAcq(raced, 0)
		reclaimed := raced &^ priorHeld
		if reclaimed == 0 {
			// Someone else's ordinary fast-path Lock beat us to the
			// facet first; it now owns the responsibility of eventually
			// transferring to the queued waiter on its own Unlock.
			break
		}
		remaining = reclaimed
	}

	if st.profiler != nil {
		for _, f := range m.Facets() {
			st.profiler.OnUnlock(f)
		}
	}
}

// releaseSlowPath is spec §4.5: for each facet in t (ascending order),
// hand it to the head of that facet's wait queue. A woken waiter whose
// full requested set isn't yet satisfied is re-run through
// tryAcquireAndEnqueue, which may move it onto another facet's queue or
// grab further facets for it directly — without the transferred facet's
// held bit ever being cleared in between.
func (a *Actor) releaseSlowPath(t FacetSet) {
	st := current()
	stripe := st.stripes.for_(a.ID)
	stripe.Lock()

	var wake *tse
	unsetWaiter := FacetSet(0)

	for _, b := range t.Facets() {
		bit := b.Bit()
		w := a.wqb.dequeue(b)
		if a.wqb.empty(b) {
			unsetWaiter |= bit
		}
		w.needed &^= bit
		if w.needed != 0 {
			a.tryAcquireAndEnqueue(w)
		}
		if w.needed == 0 {
			w.next = wake
			wake = w
		}
	}

	if unsetWaiter != 0 {
		a.fw.bandRel(0, unsetWaiter)
	}

	stripe.Unlock()

	for wake != nil {
		next := wake.next
		wake.next = nil
		wake.prev = nil
		wake.acquired.Store(false)
		wake.setEvent()
		wake = next
	}
}
