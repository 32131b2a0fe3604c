package facetlock

import "testing"

// setupRuntime initialises the process-wide runtime state for a test or
// benchmark and tears it down on cleanup, so tests can run in any order
// despite Init being a process-wide singleton (spec §9 "Global state").
func setupRuntime(t testing.TB, opts ...Option) {
	t.Helper()
	Init(opts...)
	t.Cleanup(Shutdown)
}
