package facetlock

import "go.uber.org/atomic"

// wordWaiterShift is the fixed, build-time shift W separating the held
// field (bits [0, MaxFacets)) from the waiter field (bits
// [wordWaiterShift, wordWaiterShift+MaxFacets)) of the packed facet word
// (spec §3, "Facet word layout"). Keeping held and waiter in the low and
// high halves of a uint64 rather than interleaving them is what lets a
// single OR-and-return or AND-and-return touch an arbitrary combination of
// held and waiter bits in one atomic operation.
const wordWaiterShift = 32

func packWord(held, waiter FacetSet) uint64 {
	return uint64(held) | uint64(waiter)<<wordWaiterShift
}

func unpackWord(w uint64) (held, waiter FacetSet) {
	return FacetSet(w), FacetSet(w >> wordWaiterShift)
}

// fw is the atomic facet word (spec §3/§4.1). After initAllHeld, every field
// is mutated only through borAcq, bandRel and casAcq; readers that only need the waiter
// field may Load it lock-free (spec §4.2, "Readers may observe the waiter
// field without the stripe").
//
// Go's sync/atomic (and go.uber.org/atomic, which wraps it) gives every
// operation full sequential-consistency, which is strictly stronger than
// the acquire-on-set/release-on-clear ordering spec §4.1 requires, so no
// extra barriers are needed here.
type fw struct {
	word atomic.Uint64
}

// initAllHeld sets the word to "every production facet held, no waiters",
// the state a freshly created actor starts in (spec §3, "Entity
// lifecycle"): the creator is considered to already hold everything.
func (w *fw) initAllHeld() {
	w.word.Store(packWord(AllFacets, 0))
}

// load returns the current (held, waiter) fields without taking the
// stripe. Safe for the waiter field per spec §4.2/§9; held-field reads
// outside the stripe are used only as hints (e.g. in-order-free
// computation), never to decide queue membership.
func (w *fw) load() (held, waiter FacetSet) {
	return unpackWord(w.word.Load())
}

// borAcq atomically ORs held into the held field and waiter into the
// waiter field, and returns the prior (held, waiter) fields. This is
// BOR-acq from spec §4.1: the caller inspects the prior held field to
// learn which bits of `held` it actually just set (and therefore holds).
func (w *fw) borAcq(held, waiter FacetSet) (priorHeld, priorWaiter FacetSet) {
	mask := packWord(held, waiter)
	for {
		old := w.word.Load()
		if old&mask == mask {
			// Idempotent: every targeted bit is already set. Still a
			// legal outcome of an OR; report the state as-is.
			return unpackWord(old)
		}
		if w.word.CAS(old, old|mask) {
			return unpackWord(old)
		}
	}
}

// bandRel atomically clears heldClear from the held field and waiterClear
// from the waiter field, and returns the prior (held, waiter) fields. This
// is BAND-rel from spec §4.1.
func (w *fw) bandRel(heldClear, waiterClear FacetSet) (priorHeld, priorWaiter FacetSet) {
	mask := ^packWord(heldClear, waiterClear)
	for {
		old := w.word.Load()
		if old&^mask == 0 {
			return unpackWord(old)
		}
		if w.word.CAS(old, old&mask) {
			return unpackWord(old)
		}
	}
}

// casAcq attempts to set exactly the held bits in grab, transitioning the
// word from oldWord to oldWord|grab (held field only; the waiter field is
// untouched). Returns the word actually observed: equal to oldWord on
// success, or the concurrently-updated value on failure, exactly as
// spec §4.1's CAS-acq / spec §4.3 step 3 requires ("On failure: old ←
// observed value").
func (w *fw) casAcq(oldWord uint64, grab FacetSet) (ok bool, observed uint64) {
	newWord := oldWord | uint64(grab)
	if w.word.CAS(oldWord, newWord) {
		return true, oldWord
	}
	return false, w.word.Load()
}
