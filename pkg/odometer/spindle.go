// Copyright (C) 2026  grblHAL contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package odometer

import "github.com/grblHAL/Plugin-odometer/pkg/hal"

// onSpindleSelected instruments the primary spindle (ID 0) by wrapping
// its set-state entry point. Wrapping is idempotent per spindle
// instance: re-selecting an already instrumented spindle leaves the
// wrapper in place, so the entry point is never double-wrapped.
func (o *Odometer) onSpindleSelected(s *hal.Spindle) {
	if s.ID != 0 {
		return
	}
	if _, done := o.baseSpindle[s]; done {
		return
	}
	o.baseSpindle[s] = s.SetState
	s.SetState = o.spindleSetState
}

// spindleSetState brackets spindle-on intervals. The real state change
// is forwarded first, unconditionally: the spindle must obey regardless
// of accounting. This may run in an interrupt-like context, so the NVS
// write for a closed interval is deferred to the foreground dispatcher
// rather than done inline.
func (o *Odometer) spindleSetState(s *hal.Spindle, state hal.SpindleState, rpm float32) {
	if base := o.baseSpindle[s]; base != nil {
		base(s, state, rpm)
	}

	if state.On {
		// Re-entrant "on while on" keeps the original interval start.
		if !o.spindleOn {
			o.spindleStart = o.hal.Clock.ElapsedTicks()
			o.spindleOn = true
		}
		return
	}

	if !o.spindleOn {
		return // off with no open interval is a no-op
	}

	elapsed := o.hal.Clock.ElapsedTicks() - o.spindleStart
	o.spindleOn = false

	o.mu.Lock()
	o.current.Spindle += elapsed
	o.mu.Unlock()

	if err := o.tasks.AddImmediate(o.persistCurrent); err != nil {
		o.taskDrops.Inc(nil)
		o.logger.WithError(err).Warn("deferred odometer write dropped")
	}
}
