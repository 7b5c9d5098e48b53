// Copyright (C) 2026  grblHAL contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package odometer

import (
	"sync/atomic"

	"github.com/grblHAL/Plugin-odometer/pkg/hal"
)

// Accumulator is the interrupt-side step bookkeeping: one tally per axis
// and a dirty flag set on the first pulse of an interval. The pulse path
// only increments; the foreground settle path swaps the counters out
// atomically, so the handoff needs no lock and the pulse path never
// blocks.
type Accumulator struct {
	steps   []atomic.Uint32
	changed atomic.Bool
}

func newAccumulator(nAxes int) *Accumulator {
	return &Accumulator{steps: make([]atomic.Uint32, nAxes)}
}

// Count records one pulse event: every axis stepping in this event gets
// its tally incremented. No storage access, no floating point.
func (a *Accumulator) Count(ev *hal.StepperEvent) {
	a.changed.Store(true)
	for i := range a.steps {
		if ev.StepOut.Has(i) {
			a.steps[i].Add(1)
		}
	}
}

// Changed reports whether any pulse was recorded since the last Settle.
func (a *Accumulator) Changed() bool {
	return a.changed.Load()
}

// Settle atomically takes and clears the tallies and the dirty flag.
// Called from the foreground only, after motion has stopped.
func (a *Accumulator) Settle() []uint32 {
	a.changed.Store(false)
	out := make([]uint32, len(a.steps))
	for i := range a.steps {
		out[i] = a.steps[i].Swap(0)
	}
	return out
}
