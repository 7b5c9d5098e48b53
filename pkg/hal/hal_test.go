package hal

import (
	"testing"
	"time"
)

func TestAxisMask(t *testing.T) {
	var m AxisMask
	m = m.Set(0).Set(2)

	if !m.Has(0) || !m.Has(2) {
		t.Error("set axes not reported")
	}
	if m.Has(1) || m.Has(3) {
		t.Error("unset axes reported")
	}
}

func TestStateMotionMask(t *testing.T) {
	active := []State{StateCycle, StateJog, StateHoming, StateSafetyDoor}
	for _, s := range active {
		if s&StateMotion == 0 {
			t.Errorf("%v not in motion mask", s)
		}
	}
	inactive := []State{StateIdle, StateAlarm, StateHold, StateSleep, StateCheckMode}
	for _, s := range inactive {
		if s&StateMotion != 0 {
			t.Errorf("%v wrongly in motion mask", s)
		}
	}
}

func TestManualClock(t *testing.T) {
	var c ManualClock
	if c.ElapsedTicks() != 0 {
		t.Error("manual clock not zero at start")
	}
	c.Advance(2500)
	if got := c.ElapsedTicks(); got != 2500 {
		t.Errorf("ticks = %d, want 2500", got)
	}
	c.Set(100)
	if got := c.ElapsedTicks(); got != 100 {
		t.Errorf("ticks = %d, want 100", got)
	}
}

func TestSystemClockMonotonic(t *testing.T) {
	c := NewSystemClock()
	t1 := c.ElapsedTicks()
	time.Sleep(15 * time.Millisecond)
	t2 := c.ElapsedTicks()
	if t2 <= t1 {
		t.Errorf("clock not advancing: %d <= %d", t2, t1)
	}
}

func TestEventsDispatchOrder(t *testing.T) {
	e := NewEvents()

	var order []int
	e.OnStateChange(func(State) { order = append(order, 1) })
	e.OnStateChange(func(State) { order = append(order, 2) })
	e.OnStateChange(func(State) { order = append(order, 3) })

	e.PublishStateChange(StateCycle)
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("observers not dispatched in registration order: %v", order)
	}
}

func TestEventsSettingsChanged(t *testing.T) {
	e := NewEvents()

	var got *Settings
	e.OnSettingsChanged(func(s *Settings) { got = s })

	s := &Settings{Axes: []AxisSettings{{Letter: "X", StepsPerMM: 80}}}
	e.PublishSettingsChanged(s)
	if got != s {
		t.Error("settings not delivered to observer")
	}
}

func TestCommandRegistry(t *testing.T) {
	r := NewCommandRegistry()

	var gotArgs *string
	r.Register(Command{
		Name: "ODOMETERS",
		Handler: func(state State, args *string) StatusCode {
			gotArgs = args
			return StatusOK
		},
		Help: []string{"$ODOMETERS - list odometer log"},
	})

	if code := r.Execute("odometers", nil, StateIdle); code != StatusOK {
		t.Errorf("case-insensitive lookup failed: %v", code)
	}
	arg := "PREV"
	r.Execute("ODOMETERS", &arg, StateIdle)
	if gotArgs == nil || *gotArgs != "PREV" {
		t.Errorf("args not passed: %v", gotArgs)
	}

	if code := r.Execute("BOGUS", nil, StateIdle); code != StatusUnhandled {
		t.Errorf("unknown command = %v, want StatusUnhandled", code)
	}

	if help := r.Help("ODOMETERS"); len(help) != 1 {
		t.Errorf("help missing: %v", help)
	}
}
