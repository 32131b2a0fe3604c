package facetlock

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitShutdownRoundTrip(t *testing.T) {
	Init(WithStripes(8), WithTableSize(16))
	defer Shutdown()

	st := current()
	require.NotNil(t, st)
	assert.Len(t, st.stripes.stripes, 8)
}

func TestInitTwiceWithoutShutdownPanics(t *testing.T) {
	Init()
	defer Shutdown()
	assert.Panics(t, func() { Init() })
}

func TestSchedulerSpinScalesWithSchedulerCount(t *testing.T) {
	Init(WithSchedulers(4), WithSchedulerSpin(1000, 32, 2000))
	defer Shutdown()

	st := current()
	assert.Equal(t, 1000+32*4, st.schedulerSpin)
}

func TestSchedulerSpinCapsAtMax(t *testing.T) {
	Init(WithSchedulers(100), WithSchedulerSpin(1000, 32, 1500))
	defer Shutdown()

	assert.Equal(t, 1500, current().schedulerSpin)
}

func TestSingleCPUForcesZeroSpin(t *testing.T) {
	// Boundary behaviour (spec §8): "Zero-CPU system (spin budget 0): every
	// contended acquire goes straight to parking."
	Init(WithSchedulers(1), WithSchedulerSpin(1000, 32, 2000), withSingleCPUSpin0())
	defer Shutdown()

	st := current()
	assert.Zero(t, st.schedulerSpin)
	assert.Zero(t, st.auxSpin)
}

func TestWithLockCheckerAndProfilerAreWired(t *testing.T) {
	checker := NewZerologChecker(zerolog.Nop())
	profiler := NewAtomicProfiler()

	Init(WithLockChecker(checker), WithLockProfiler(profiler))
	defer Shutdown()

	assert.Same(t, checker, current().checker)
	assert.Same(t, profiler, current().profiler)
}
