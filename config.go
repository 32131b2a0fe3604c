package facetlock

import (
	"runtime"
	"sync/atomic"
)

// Default spin tuning, carried over from erl_process_lock.c's
// ERTS_PROC_LOCK_SPIN_COUNT_* constants (original_source, lines 77-82).
// Spec §9 calls these "tuning parameters... defaults, not contracts", so
// every one of them is overridable via an Option.
const (
	defaultSchedulerSpinBase       = 1000
	defaultSchedulerSpinIncPerProc = 32
	defaultSchedulerSpinMax        = 2000
	defaultAuxSpin                 = 50
	defaultSpinUntilYield          = 25
	defaultStripes                 = 64
	defaultTableSize               = 1024
)

// runtimeState holds everything spec §9 calls "global state... initialised
// once at runtime start, torn down at runtime stop": the stripe array, the
// actor table, spin tuning, and the two optional debug collaborators.
type runtimeState struct {
	stripes        *stripeTable
	table          *actorTable
	schedulerSpin  int
	auxSpin        int
	spinUntilYield int
	checker        LockChecker
	profiler       LockProfiler
}

// state is read on every uncontended Lock/Unlock/TryLock call, so it is a
// plain atomic pointer rather than a mutex-guarded one: spec §1/§2's "hot
// path is lock-free when uncontended" means current() itself must not take
// a lock, or every scheduler thread would contend on that lock's cache line
// regardless of whether the actor it's touching is contended at all.
var state atomic.Pointer[runtimeState]

// Options configures a call to Init. Init fills every field with its
// default first and then applies each Option in turn, so a value an Option
// sets, zero included, replaces the default as given.
type Options struct {
	stripes             int
	tableSize           int
	schedulers          int
	schedulerSpinBase   int
	schedulerSpinInc    int
	schedulerSpinMax    int
	auxSpin             int
	spinUntilYield      int
	checker             LockChecker
	profiler            LockProfiler
	forceSingleCPUSpin0 bool
}

// Option configures Init, following the functional-options shape
// hayabusa-cloud-lfq's Builder (options.go) uses for per-instance tuning;
// here the options apply to the single process-wide runtime state instead.
type Option func(*Options)

// WithStripes sets the number of index-lock stripes (rounded up to a
// power of two). Default 64.
func WithStripes(n int) Option { return func(o *Options) { o.stripes = n } }

// WithTableSize sets the number of slots in the actor lookup table
// (rounded up to a power of two). Default 1024.
func WithTableSize(n int) Option { return func(o *Options) { o.tableSize = n } }

// WithSchedulers overrides the scheduler count used to scale the
// scheduler-thread spin budget. Defaults to runtime.GOMAXPROCS(0).
func WithSchedulers(n int) Option { return func(o *Options) { o.schedulers = n } }

// WithSchedulerSpin overrides the scheduler-thread spin budget formula:
// base + incPerScheduler*schedulers, capped at max.
func WithSchedulerSpin(base, incPerScheduler, max int) Option {
	return func(o *Options) {
		o.schedulerSpinBase = base
		o.schedulerSpinInc = incPerScheduler
		o.schedulerSpinMax = max
	}
}

// WithAuxSpin overrides the fixed spin budget used by auxiliary
// (non-scheduler) threads.
func WithAuxSpin(n int) Option { return func(o *Options) { o.auxSpin = n } }

// WithSpinUntilYield overrides how many spin iterations elapse between
// calls to runtime.Gosched() while spinning.
func WithSpinUntilYield(n int) Option { return func(o *Options) { o.spinUntilYield = n } }

// WithLockChecker installs a debug-only lock-order collaborator (spec §6).
func WithLockChecker(c LockChecker) Option { return func(o *Options) { o.checker = c } }

// WithLockProfiler installs a debug-only lock-counting collaborator
// (spec §6).
func WithLockProfiler(p LockProfiler) Option { return func(o *Options) { o.profiler = p } }

// withSingleCPUSpin0 forces the zero-CPU-system boundary behaviour from
// spec §8 ("every contended acquire goes straight to parking") regardless
// of the host's actual CPU count. Exercised by tests; not part of the
// public configuration surface because real embedders should let
// WithSchedulers / GOMAXPROCS drive this.
func withSingleCPUSpin0() Option { return func(o *Options) { o.forceSingleCPUSpin0 = true } }

// Init builds the process-wide stripe table, actor table and spin tuning.
// It must be called once before any Actor is created, mirroring
// erts_init_proc_lock's role at runtime startup (original_source, lines
// 115-149). Calling Init twice without an intervening Shutdown panics.
func Init(opts ...Option) {
	o := Options{
		stripes:           defaultStripes,
		tableSize:         defaultTableSize,
		schedulers:        runtime.GOMAXPROCS(0),
		schedulerSpinBase: defaultSchedulerSpinBase,
		schedulerSpinInc:  defaultSchedulerSpinIncPerProc,
		schedulerSpinMax:  defaultSchedulerSpinMax,
		auxSpin:           defaultAuxSpin,
		spinUntilYield:    defaultSpinUntilYield,
	}
	for _, fn := range opts {
		fn(&o)
	}

	schedSpin := o.schedulerSpinBase + o.schedulerSpinInc*o.schedulers
	aux := o.auxSpin
	if o.forceSingleCPUSpin0 || o.schedulers == 1 {
		schedSpin = 0
		aux = 0
	}
	if schedSpin > o.schedulerSpinMax {
		schedSpin = o.schedulerSpinMax
	}

	st := &runtimeState{
		stripes:        newStripeTable(o.stripes),
		table:          newActorTable(o.tableSize),
		schedulerSpin:  schedSpin,
		auxSpin:        aux,
		spinUntilYield: o.spinUntilYield,
		checker:        o.checker,
		profiler:       o.profiler,
	}

	if !state.CompareAndSwap(nil, st) {
		panic("facetlock: Init called twice without an intervening Shutdown")
	}
}

// Shutdown tears down the process-wide runtime state. It is a contract
// violation (spec §7) to call it while any actor is still live.
func Shutdown() {
	state.Store(nil)
}

func current() *runtimeState {
	st := state.Load()
	debugAssert(st != nil, "facetlock used before Init")
	return st
}
