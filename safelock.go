package facetlock

// safelockStep is one "lock exactly this contiguous run on this actor"
// instruction produced by planSafelockRuns.
type safelockStep struct {
	owner int // 1 or 2
	run   FacetSet
}

// planSafelockRuns implements spec §4.6 step 4: walk facet bits ascending,
// grouping consecutive bits that belong wholly to one actor's remaining
// need into a single run, alternating actors when the walk crosses into
// the other actor's territory. A bit needed by both actors is a forced
// tie: P1 (the numerically-lower actor, already canonicalised by the
// caller) always locks a tied bit before P2 does, per spec §5 "same-facet
// on lower-id actor ordered before same-facet on higher-id actor" — so a
// tie flushes whatever run is in progress, locks the bit alone on P1, and
// hands the same bit to P2 to start its next run.
//
// Worked against spec §8 scenario S4 (P1's deficit {MAIN}, P2's deficit
// {MAIN,MSGQ}), this produces lock(P1,{MAIN}); lock(P2,{MAIN,MSGQ}) —
// see DESIGN.md for why this reading of the scenario differs from, but is
// consistent with, the spec's own worked trace.
func planSafelockRuns(need1, need2 FacetSet) []safelockStep {
	var steps []safelockStep
	owner := 0
	var run FacetSet
	flush := func() {
		if run != 0 {
			steps = append(steps, safelockStep{owner, run})
			run = 0
		}
	}
	for b := Facet(0); int(b) < NumFacets; b++ {
		bit := b.Bit()
		in1 := need1&bit != 0
		in2 := need2&bit != 0
		switch {
		case in1 && in2:
			flush()
			steps = append(steps, safelockStep{1, bit})
			owner = 2
			run = bit
		case in1:
			if owner != 1 {
				flush()
				owner = 1
			}
			run |= bit
		case in2:
			if owner != 2 {
				flush()
				owner = 2
			}
			run |= bit
		}
	}
	flush()
	return steps
}

// unlockMask computes, for one actor, the facets in have that must be
// released before need can be (re)acquired in ascending order: every
// currently-held facet at or above the lowest still-needed facet (spec
// §4.6 step 3, corrected per §8 scenario S4 — "the union of bits in
// have_i that are ≥ some bit in need_i" reduces to "≥ the lowest bit of
// need_i", since any have-bit at or above the minimum need-bit trivially
// satisfies "≥ some bit in need_i", and no have-bit below the minimum
// need-bit ever can).
func unlockMask(have, need FacetSet) FacetSet {
	lowest := need.Lowest()
	if lowest == 0 {
		return 0
	}
	return have &^ (lowest - 1)
}

// Safelock acquires need_A on a and need_B on b (either may be nil, for
// "actor absent"), given each is already held on have_A/have_B, without
// risking deadlock against any other concurrent Safelock or Lock call
// (spec §4.6). managed selects the spin budget used by any contended
// reacquisition, same as Lock's parameter.
//
// It is the caller's responsibility that have_A/have_B accurately
// reflect what it currently holds; Safelock may temporarily release and
// reacquire facets from those sets to preserve the global order, but
// returns holding exactly need_A on a and need_B on b.
func Safelock(a *Actor, haveA, needA FacetSet, b *Actor, haveB, needB FacetSet, managed bool) {
	if a == nil && b == nil {
		return
	}

	var p1, p2 *Actor
	var have1, need1, have2, need2 FacetSet

	switch {
	case a == nil:
		p1, have1, need1 = b, haveB, needB
	case b == nil:
		p1, have1, need1 = a, haveA, needA
	case a == b || a.ID == b.ID:
		// Same actor reached via two roles: merge onto p1, leave p2 absent
		// (spec §4.6 step 1).
		p1, have1, need1 = a, haveA|haveB, needA|needB
	case a.ID < b.ID:
		p1, have1, need1 = a, haveA, needA
		p2, have2, need2 = b, haveB, needB
	default:
		p1, have1, need1 = b, haveB, needB
		p2, have2, need2 = a, haveA, needA
	}

	// target1/target2 are the absolute final holdings the caller asked
	// for; need1/need2 track the remaining deficit still to acquire. A
	// bit can be released from have_i for two different reasons: it's
	// genuinely excess (not in target_i at all, so once dropped it stays
	// dropped) or it's wanted but currently held out of the order the
	// walk below requires (so it goes back into the deficit). unlockMask
	// doesn't distinguish the two — it only identifies "everything at or
	// above the lowest deficit bit" — so the caller (here) must re-narrow
	// to target_i before adding anything back to the deficit. Held facets
	// outside target_i that sit below the lowest deficit bit are added to
	// the release mask as well, so no excess survives.
	target1, target2 := need1, need2
	need1 &^= have1
	if p2 != nil {
		need2 &^= have2
	}

	var pin1, pin2 bool

	if mask1 := unlockMask(have1, need1) | have1&^target1; mask1 != 0 {
		if !managed && have1&^mask1 == 0 {
			p1.IncRefc()
			pin1 = true
		}
		p1.Unlock(mask1)
		have1 &^= mask1
		need1 |= mask1 & target1
	}
	if p2 != nil {
		if mask2 := unlockMask(have2, need2) | have2&^target2; mask2 != 0 {
			if !managed && have2&^mask2 == 0 {
				p2.IncRefc()
				pin2 = true
			}
			p2.Unlock(mask2)
			have2 &^= mask2
			need2 |= mask2 & target2
		}
	}

	for _, st := range planSafelockRuns(need1, need2) {
		if st.owner == 1 {
			p1.Lock(st.run, managed)
		} else {
			p2.Lock(st.run, managed)
		}
	}

	if pin1 {
		p1.DecRefc()
	}
	if pin2 {
		p2.DecRefc()
	}
}
