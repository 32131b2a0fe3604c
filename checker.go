package facetlock

import "github.com/rs/zerolog"

// LockChecker is the debug-only lock-order collaborator from spec §6
// ("Lock checker (debug-only): order-violation predicates, per-lock
// acquire/release callbacks"). The call shape is supplemented from
// erl_process_lock.c's erts_proc_lc_lock/_trylock/_unlock/_might_unlock
// (SPEC_FULL.md, SUPPLEMENTED FEATURES #1): one call per facet bit, in
// ascending order as facets are locked and descending order as they are
// unlocked (erts_proc_lc_unlock walks TRACE down to MAIN). OnMightUnlock
// is the exception: it is called once per Unlock with the whole set.
//
// The core does not implement order tracking itself — Go has no portable
// way to attach a per-goroutine "locks currently held" stack the way the
// original attaches one to a pthread, so detecting an order violation is
// left entirely to the LockChecker implementation the embedder supplies.
// A nil LockChecker is always valid and every call site nil-checks first.
type LockChecker interface {
	OnLock(actorID uint64, facet Facet)
	OnTryLock(actorID uint64, facet Facet, acquired bool)
	OnUnlock(actorID uint64, facet Facet)
	OnMightUnlock(actorID uint64, facets FacetSet)
}

// zerologChecker is the default LockChecker: it does no order tracking of
// its own, it just emits one structured event per call, using
// github.com/rs/zerolog the way joeycumines-go-utilpkg's logiface-zerolog
// adapter wires a logging backend behind a narrow domain interface.
type zerologChecker struct {
	log zerolog.Logger
}

// NewZerologChecker returns a LockChecker that logs every facet
// lock/trylock/unlock through log at debug level.
func NewZerologChecker(log zerolog.Logger) *zerologChecker {
	return &zerologChecker{log: log}
}

func (c *zerologChecker) OnLock(actorID uint64, facet Facet) {
	c.log.Debug().Uint64("actor", actorID).Stringer("facet", facet).Msg("facet locked")
}

func (c *zerologChecker) OnTryLock(actorID uint64, facet Facet, acquired bool) {
	c.log.Debug().Uint64("actor", actorID).Stringer("facet", facet).Bool("acquired", acquired).Msg("facet trylock")
}

func (c *zerologChecker) OnUnlock(actorID uint64, facet Facet) {
	c.log.Debug().Uint64("actor", actorID).Stringer("facet", facet).Msg("facet unlocked")
}

func (c *zerologChecker) OnMightUnlock(actorID uint64, facets FacetSet) {
	c.log.Debug().Uint64("actor", actorID).Uint32("facets", uint32(facets)).Msg("facet might-unlock")
}
