package facetlock

import (
	stdatomic "sync/atomic"

	"go.uber.org/atomic"
)

// actorTable is the indexed-lookup table (spec §4.7): a fixed, power-of-two
// array of slots, one actor published per hashed identifier. Slot reads are
// lock-free; slot writes (publish/remove) only ever happen while the
// identifier's stripe is held, per spec §3 "the table-entry visibility
// check used by indexed lookup" being one of the things a stripe covers.
type actorTable struct {
	slots []stdatomic.Pointer[Actor]
	mask  uint64

	// epoch stands in for the "unmanaged-thread progress region" barrier
	// (spec §4.7 step 2, the ThrProgress collaborator) the original's
	// erts_thr_progress_unmanaged_delay/_continue calls around table
	// access. This module has no quiescent-state reclamation scheme to
	// hook into (see DESIGN.md), so the region is a monotonically
	// increasing counter rather than a true safe-memory-reclamation
	// barrier: it documents the intended critical section without
	// providing its original liveness guarantee.
	epoch atomic.Uint64
}

// newActorTable builds a table with n slots, rounded up to a power of two.
func newActorTable(n int) *actorTable {
	if n < 1 {
		n = 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return &actorTable{slots: make([]stdatomic.Pointer[Actor], p), mask: uint64(p - 1)}
}

func (t *actorTable) slot(id uint64) *stdatomic.Pointer[Actor] {
	return &t.slots[id&t.mask]
}

// publish makes a resolvable by LookupAndLock under its identifier.
func (t *actorTable) publish(a *Actor) {
	t.slot(a.ID).Store(a)
}

// remove clears a's slot, but only if it is still the occupant (an actor
// that was never published, or already replaced, is a harmless no-op).
func (t *actorTable) remove(a *Actor) {
	t.slot(a.ID).CompareAndSwap(a, nil)
}

func (t *actorTable) lookup(id uint64) *Actor {
	return t.slot(id).Load()
}

type progressHandle struct{ epoch uint64 }

func (t *actorTable) unmanagedDelay() progressHandle {
	return progressHandle{epoch: t.epoch.Inc()}
}

func (t *actorTable) unmanagedContinue(progressHandle) {
	t.epoch.Inc()
}

// LookupFlags selects LookupAndLock's optional behaviours (spec §4.7's
// flags {allow_other_exit, try_only, inc_refc}).
type LookupFlags struct {
	// AllowOtherExit permits returning an actor that is marked exiting.
	// Without it, an exiting target, the caller itself included, is
	// reported as ErrNotFound. A lookup with an empty required set takes
	// no facet and returns the target whether or not it is exiting.
	AllowOtherExit bool
	// TryOnly fails with ErrBusy instead of blocking when required isn't
	// immediately available.
	TryOnly bool
	// IncRefc bumps the returned actor's refcount before returning, for
	// callers that need to pin it past this call.
	IncRefc bool
}

// LookupAndLock resolves id to a live actor and acquires required on it
// (spec §4.7). caller/haveC describe the calling actor's own identity and
// what it already holds on itself, and may be nil/zero for a caller with
// no actor context. managed selects spin budgets exactly as it does for
// Lock/Safelock.
//
// On success the returned actor holds required, in addition to whatever
// the caller already held on it (haveC when id is the caller's own
// identifier, nothing otherwise). On failure it returns (nil, ErrNotFound)
// or (nil, ErrBusy) (only possible with TryOnly set); the caller holds
// nothing more on the target than it did before the call.
func LookupAndLock(caller *Actor, haveC FacetSet, id uint64, required FacetSet, flags LookupFlags, managed bool) (*Actor, error) {
	st := current()

	if caller != nil && caller.ID == id {
		if caller.Exiting() && !flags.AllowOtherExit {
			return nil, ErrNotFound
		}
		if haveC.Has(required) {
			if flags.IncRefc {
				caller.IncRefc()
			}
			return caller, nil
		}
	}

	var h progressHandle
	if !managed {
		h = st.table.unmanagedDelay()
	}

	target := st.table.lookup(id)
	if target == nil || target.ID != id {
		if !managed {
			st.table.unmanagedContinue(h)
		}
		return nil, ErrNotFound
	}

	if required == 0 {
		if flags.IncRefc {
			target.IncRefc()
		}
		if !managed {
			st.table.unmanagedContinue(h)
		}
		return target, nil
	}

	if err := target.TryLock(required); err == nil {
		if target.Exiting() && !flags.AllowOtherExit {
			target.Unlock(required)
			if !managed {
				st.table.unmanagedContinue(h)
			}
			return nil, ErrNotFound
		}
		if flags.IncRefc {
			target.IncRefc()
		}
		if !managed {
			st.table.unmanagedContinue(h)
		}
		return target, nil
	}

	if flags.TryOnly {
		if !managed {
			st.table.unmanagedContinue(h)
		}
		return nil, ErrBusy
	}

	// Blocking path: pin the target so it can't be torn down while we're
	// not holding any of its facets, leave the progress region for the
	// (possibly parking) safelock call, and re-enter once it returns
	// (spec §4.7 step 5).
	target.IncRefc()
	if !managed {
		st.table.unmanagedContinue(h)
	}

	Safelock(caller, haveC, haveC, target, 0, required, managed)

	if !managed {
		h = st.table.unmanagedDelay()
	}

	live := st.table.lookup(id) == target && (!target.Exiting() || flags.AllowOtherExit)
	if !managed {
		st.table.unmanagedContinue(h)
	}

	target.DecRefc()

	if !live {
		target.Unlock(required)
		return nil, ErrNotFound
	}
	return target, nil
}
