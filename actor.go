package facetlock

import "go.uber.org/atomic"

// Actor is a schedulable entity owning a compound facet lock (spec §1/§3).
// The core does not care what an Actor's facets protect; it only
// implements acquiring and releasing them in a deadlock-free, fair,
// mostly lock-free way.
type Actor struct {
	// ID is the actor's identifier. Safelock and LookupAndLock both
	// compare IDs numerically to establish the cross-actor lock order
	// (spec §4.6 step 1), so IDs must be unique among live actors and
	// stable for the actor's lifetime.
	ID uint64

	fw  fw
	wqb wqb

	refc    atomic.Int64
	exiting atomic.Bool
}

// NewActor allocates an actor with the given identifier, initialised per
// spec §3 "Entity lifecycle": FW = all-held, queues empty, the creator
// counted as already holding every facet. It does not publish the actor
// into the lookup table; call Publish for that once the caller is ready
// for other goroutines to resolve this identifier via LookupAndLock.
func NewActor(id uint64) *Actor {
	a := &Actor{ID: id}
	a.fw.initAllHeld()
	return a
}

// Publish makes a into a valid LookupAndLock target for its identifier.
// Only one live actor may be published under a given identifier at a
// time.
func (a *Actor) Publish() {
	st := current()
	stripe := st.stripes.for_(a.ID)
	stripe.Lock()
	defer stripe.Unlock()
	st.table.publish(a)
}

// Fin tears an actor down. Precondition (spec §6 "fin(actor)"): all
// queues empty and FW = all-held, i.e. the caller is the last holder of
// every facet and nobody is parked waiting on any of them. Fin removes
// the actor from the lookup table under its stripe, per spec §3 "the
// stripe is taken to observe the removal".
func (a *Actor) Fin() {
	st := current()
	stripe := st.stripes.for_(a.ID)
	stripe.Lock()
	defer stripe.Unlock()

	held, waiter := a.fw.load()
	debugAssert(held == AllFacets, "Fin: actor destroyed without holding all facets")
	debugAssert(waiter == 0, "Fin: actor destroyed with waiters still set")
	for i := 0; i < NumFacets; i++ {
		debugAssert(a.wqb.empty(Facet(i)), "Fin: actor destroyed with a non-empty facet queue")
	}

	st.table.remove(a)
}

// IncRefc and DecRefc implement the pinning refcount spec §4.6 step 5 and
// §4.7 step 5/7 use to keep an actor alive across a window where a
// non-scheduler-managed caller holds none of its facets. The core never
// interprets the count beyond incrementing/decrementing it; an external
// collaborator (the actor table's allocator, per spec §6) is responsible
// for not reclaiming an actor with a positive refcount.
func (a *Actor) IncRefc() { a.refc.Inc() }
func (a *Actor) DecRefc() { a.refc.Dec() }

// Refc returns the current pinning refcount.
func (a *Actor) Refc() int64 { return a.refc.Load() }

// SetExiting marks the actor as exiting, the state LookupAndLock's
// liveness check (spec §4.7) consults. The core does not otherwise define
// what "exiting" means.
func (a *Actor) SetExiting(v bool) { a.exiting.Store(v) }

// Exiting reports whether the actor has been marked exiting.
func (a *Actor) Exiting() bool { return a.exiting.Load() }
