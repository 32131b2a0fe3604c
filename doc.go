// Copyright 2020 Nathan Taylor (nbtaylor@gmail.com)
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package facetlock implements the compound, multi-facet lock that a
// preemptive, multi-scheduler runtime hangs off of every schedulable actor.
//
// Each actor owns several independent logical locks ("facets") that protect
// different aspects of its state: its execution context, its message queue,
// its timers, its administrative status, its tracing instrumentation.  Many
// scheduler threads concurrently try to acquire arbitrary subsets of an
// actor's facets, and often subsets of two actors' facets at once. This
// package delivers those acquisitions with:
//
//   - an ordering that rules out deadlock by construction (facets within an
//     actor are always taken in ascending index order; across two actors,
//     the lower-identifier actor's facets are always taken first);
//   - fair, FIFO wakeup per facet;
//   - a hot path that is entirely lock-free when uncontended (a single
//     atomic OR on a packed word);
//   - a slow path that parks goroutines on a per-goroutine event and hands
//     locks directly to the next waiter on release ("lock transfer"),
//     rather than waking every waiter to re-race for the lock.
//
// ## Overview
//
// Every actor's lock state lives in one atomic 64-bit word (see word.go):
// the low 32 bits are the "held" field, one bit per facet; the high 32 bits
// are the "waiter" field, one bit per facet, set only while some goroutine
// is parked waiting for that facet and only ever touched while the actor's
// stripe lock (one of a small, fixed, process-wide array of stripes, picked
// by hashing the actor's identifier) is held.
//
// Acquiring a facet that is free is a single atomic OR: if the prior value
// shows the bit was already clear, the caller now holds it and there is no
// further work. Acquiring a facet that is held falls onto a slow path that
// spins briefly trying to grab every free, in-order facet in the requested
// set with a single compare-and-swap, and parks on a pooled per-goroutine
// wait node if spinning doesn't pan out.  Releasing a facet that has no
// waiters is a single atomic AND.  Releasing a facet that does have
// waiters transfers ownership directly to the queue head without the bit
// ever being observed free, which is what lets release avoid waking every
// blocked goroutine just to have them re-contend.
//
// Two higher-level operations build on this: Safelock, which reacquires a
// requested set of facets across one or two actors while respecting the
// global facet/actor order (used whenever code needs facets on more than
// one actor, or needs to "unlock up to" a facet it doesn't yet hold); and
// LookupAndLock, which resolves an actor identifier to a live reference
// with a requested facet set already held, coping with concurrent
// creation/teardown races.
package facetlock
