package facetlock

import "errors"

// The core has no recoverable error modes (spec §7): every operation
// either succeeds or is defined to not be called. The two sentinels below
// are the only non-panic, non-success outcomes, following the
// sentinel-error style used across the pack for "this isn't a failure,
// it's a control-flow signal" results (e.g. hayabusa-cloud-lfq's
// ErrWouldBlock).
var (
	// ErrNotFound is returned by LookupAndLock when the identifier does
	// not resolve to a live actor, or resolves to one that is exiting, a
	// non-empty required set was asked for, and the caller did not opt
	// into AllowOtherExit.
	ErrNotFound = errors.New("facetlock: actor not found")

	// ErrBusy is returned by TryLock, and by LookupAndLock with TryOnly
	// set, when the requested facets could not be acquired immediately.
	ErrBusy = errors.New("facetlock: facet set busy")
)
