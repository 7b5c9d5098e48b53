// Package hal models the firmware surface the odometer plugin hooks
// into: machine state notifications, the stepper pulse entry point, the
// spindle state entry point, settings reloads and the system clock.
//
// Notification hooks are ordered observer lists (see Events) while the
// two hot entry points (stepper pulse start, spindle set state) stay
// swappable functions so a plugin can decorate them pass-through.
//
// Copyright (C) 2026  grblHAL contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package hal

import (
	"sync/atomic"
	"time"
)

// MaxAxes is the largest supported axis count (XYZABC).
const MaxAxes = 6

// AxisLetters maps axis index to its conventional letter.
var AxisLetters = [MaxAxes]string{"X", "Y", "Z", "A", "B", "C"}

// State is the machine state bitmask. Idle is the zero value; all other
// states are single bits so callers can test against a mask.
type State uint16

const (
	StateIdle       State = 0
	StateAlarm      State = 1 << 0
	StateCheckMode  State = 1 << 1
	StateHoming     State = 1 << 2
	StateCycle      State = 1 << 3
	StateHold       State = 1 << 4
	StateJog        State = 1 << 5
	StateSafetyDoor State = 1 << 6
	StateSleep      State = 1 << 7
)

// StateMotion is the active-class mask: states during which steppers may
// be generating pulses. Door-hold dwell is included, as in the firmware's
// own run-time accounting.
const StateMotion = StateCycle | StateJog | StateHoming | StateSafetyDoor

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAlarm:
		return "Alarm"
	case StateCheckMode:
		return "Check"
	case StateHoming:
		return "Home"
	case StateCycle:
		return "Run"
	case StateHold:
		return "Hold"
	case StateJog:
		return "Jog"
	case StateSafetyDoor:
		return "Door"
	case StateSleep:
		return "Sleep"
	default:
		return "Unknown"
	}
}

// AxisMask is a per-axis bitmask (bit i = axis i).
type AxisMask uint8

// Has reports whether axis idx is set in the mask.
func (m AxisMask) Has(idx int) bool {
	return m&(1<<idx) != 0
}

// Set returns the mask with axis idx set.
func (m AxisMask) Set(idx int) AxisMask {
	return m | 1<<idx
}

// StepperEvent describes one pulse-generation event: which axes emit a
// step pulse and the direction outputs.
type StepperEvent struct {
	StepOut AxisMask
	DirOut  AxisMask
}

// PulseStartFunc is the stepper pulse entry point, invoked from the
// pulse interrupt for every step event.
type PulseStartFunc func(ev *StepperEvent)

// SpindleState is the commanded spindle state.
type SpindleState struct {
	On  bool
	CCW bool
}

// SpindleSetStateFunc changes the physical spindle state.
type SpindleSetStateFunc func(s *Spindle, state SpindleState, rpm float32)

// Spindle is one configured spindle. SetState is swappable so a plugin
// can wrap it; ID 0 is the primary spindle.
type Spindle struct {
	ID       int
	Name     string
	SetState SpindleSetStateFunc
}

// AxisSettings holds the per-axis configuration the odometer consumes.
type AxisSettings struct {
	Letter     string
	StepsPerMM float32
}

// Settings is the live machine configuration. A settings reload replaces
// the value and fires the settings-changed event.
type Settings struct {
	Axes []AxisSettings
}

// NumAxes returns the configured axis count.
func (s *Settings) NumAxes() int {
	return len(s.Axes)
}

// DriverCaps announces optional driver capabilities to the firmware.
type DriverCaps struct {
	Odometers bool
}

// Stepper groups the stepper driver entry points.
type Stepper struct {
	PulseStart PulseStartFunc
}

// HAL is the hardware abstraction handle passed to plugins.
type HAL struct {
	Clock     Clock
	Stepper   Stepper
	Settings  *Settings
	DriverCap DriverCaps
}

// Clock is a monotonically increasing millisecond tick counter.
type Clock interface {
	ElapsedTicks() uint64
}

// SystemClock is the real clock, ticking from its creation.
type SystemClock struct {
	start time.Time
}

// NewSystemClock creates a clock starting at tick zero.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) ElapsedTicks() uint64 {
	return uint64(time.Since(c.start) / time.Millisecond)
}

// ManualClock is a test clock advanced by hand.
type ManualClock struct {
	ticks atomic.Uint64
}

func (c *ManualClock) ElapsedTicks() uint64 {
	return c.ticks.Load()
}

// Advance moves the clock forward by ms milliseconds.
func (c *ManualClock) Advance(ms uint64) {
	c.ticks.Add(ms)
}

// Set sets the absolute tick value.
func (c *ManualClock) Set(ms uint64) {
	c.ticks.Store(ms)
}
