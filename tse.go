package facetlock

import (
	"sync"

	"go.uber.org/atomic"
)

// tse is a thread-sleep endpoint: a per-goroutine, reusable parking node
// (spec §3 "Thread-sleep endpoint", §4.3 "Parking"). It is fetched from
// and returned to a pool rather than allocated fresh on every park, the
// same amortized-allocation goal as vanadium's nsync waiter free list
// (other_examples nsync-waiter.go's newWaiter/freeWaiter), but backed by
// sync.Pool instead of a hand-rolled spinlock-guarded free list since the
// standard library already solves per-goroutine reuse without a bespoke
// lock.
//
// needed, next and prev are owned by whichever actor stripe the node is
// currently linked under (or, if unlinked, by the fetching goroutine).
// acquired is the wakeup signal and is always safe to read/write
// atomically; sema is the underlying event the goroutine parks on.
type tse struct {
	needed   FacetSet
	acquired atomic.Bool
	next     *tse
	prev     *tse
	sema     chan struct{} // capacity 1: a binary semaphore, not a data channel
}

var tsePool = sync.Pool{
	New: func() any {
		return &tse{sema: make(chan struct{}, 1)}
	},
}

// fetchTSE pulls a node from the pool, ready to be given a `needed` mask.
func fetchTSE() *tse {
	t := tsePool.Get().(*tse)
	t.needed = 0
	t.next = nil
	t.prev = nil
	t.acquired.Store(false)
	return t
}

// PrepareWaiter warms the TSE pool by fetching and immediately returning n
// nodes (spec §6 "prepare_waiter()": an external operation an embedder can
// call ahead of time, e.g. once per scheduler thread at startup, so the
// first contended acquire on that thread doesn't pay a pool-miss allocation).
func PrepareWaiter(n int) {
	for i := 0; i < n; i++ {
		returnTSE(fetchTSE())
	}
}

// returnTSE gives a node back to the pool. Precondition (spec §3 "On
// return to the pool, needed must be zero"; spec §8 invariant 7): the node
// must not be linked into any queue and must have acquired everything it
// needed.
func returnTSE(t *tse) {
	debugAssert(t.needed == 0, "tse returned to pool with needed != 0")
	debugAssert(t.next == nil && t.prev == nil, "tse returned to pool while still linked")
	tsePool.Put(t)
}

// resetEvent drains any stale wakeup so a subsequent waitEvent only
// returns for a wakeup posted after this point (spec §4.3: "reset the
// event, re-read acquired_flag").
func (t *tse) resetEvent() {
	select {
	case <-t.sema:
	default:
	}
}

// waitEvent parks until setEvent is called. There is no equivalent of
// EINTR here, but a wakeup can still be spurious: a releaser posts
// setEvent after clearing acquired, so a post meant for an earlier use of
// a pooled node can arrive after the node has been fetched again. Callers
// therefore loop on acquired (spec §4.3).
func (t *tse) waitEvent() {
	<-t.sema
}

// setEvent posts a single wakeup. Posting twice without an intervening
// wait does not queue a second wakeup (it's a binary semaphore), which
// matches the platform event primitive spec §3 describes.
func (t *tse) setEvent() {
	select {
	case t.sema <- struct{}{}:
	default:
	}
}
