package facetlock

import "sync"

// stripeTable is the index-lock stripe (ILS) array from spec §3: a
// fixed-size, power-of-two array of locks shared by every actor in the
// runtime. An actor is mapped to one stripe by hashing its identifier; the
// stripe serializes that actor's queue-block mutations, waiter-bit
// mutations, and the writes (Publish, Fin) to its slot in the actor table
// in lookup.go. Lookups read that slot with an atomic load and do not
// take the stripe.
//
// Stripes are process-global and, per spec §3 "Ownership", never
// destroyed for the lifetime of the runtime; Shutdown only drops this
// package's reference to the table so a fresh Init can build another one.
//
// spec §3 allows "plain spinlocks (or adaptive mutexes)". Go's sync.Mutex
// already spins briefly before parking a goroutine (see the runtime
// sync.Mutex fast/slow path this pack's `other_examples` copy of
// src/sync/mutex.go shows: active spin while runtime_canSpin, then
// semaphore park) — exactly the adaptive-mutex behavior the spec
// describes, so stripes use sync.Mutex directly rather than a hand-rolled
// test-and-set spinlock.
type stripeTable struct {
	stripes []sync.Mutex
	mask    uint64
}

// newStripeTable builds a stripe table with n stripes, rounded up to the
// next power of two (so the actor->stripe hash can be a cheap mask
// instead of a modulo).
func newStripeTable(n int) *stripeTable {
	if n < 1 {
		n = 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return &stripeTable{
		stripes: make([]sync.Mutex, p),
		mask:    uint64(p - 1),
	}
}

// for_ returns the stripe guarding actor identifier id.
func (t *stripeTable) for_(id uint64) *sync.Mutex {
	return &t.stripes[id&t.mask]
}
