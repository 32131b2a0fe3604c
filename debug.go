package facetlock

// Debug is a process-wide switch gating the contract-violation assertions
// scattered through the acquire/release/safelock engines (spec §7:
// "Contract violation... a fatal assertion in debug builds, undefined in
// release — the caller is buggy"). It defaults to true; production
// embedders that have already validated correctness under race/stress
// testing can set it false to shave the (already tiny) cost of these
// checks off the hot path.
var Debug = true

func debugAssert(cond bool, msg string) {
	if Debug && !cond {
		panic("facetlock: " + msg)
	}
}
