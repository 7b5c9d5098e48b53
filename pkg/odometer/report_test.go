package odometer

import (
	"testing"

	"github.com/grblHAL/Plugin-odometer/pkg/hal"
)

func TestFormatRunTime(t *testing.T) {
	tests := []struct {
		ms   uint64
		want string
	}{
		{0, "0:00"},
		{59999, "0:00"},
		{60000, "0:01"},
		{3600000, "1:00"},
		{3723000, "1:02"},
		{36061000, "10:01"},
	}
	for _, tt := range tests {
		if got := formatRunTime(tt.ms); got != tt.want {
			t.Errorf("formatRunTime(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestFormatDistance(t *testing.T) {
	tests := []struct {
		mm   float32
		want string
	}{
		{0, "0.0"},
		{12500, "12.5"},
		{999, "1.0"},
		{1234567, "1234.6"},
	}
	for _, tt := range tests {
		if got := formatDistance(tt.mm); got != tt.want {
			t.Errorf("formatDistance(%v) = %q, want %q", tt.mm, got, tt.want)
		}
	}
}

func TestOdometersCommand(t *testing.T) {
	h := newHarness()

	h.events.PublishStateChange(hal.StateCycle)
	h.pulse(hal.AxisMask(0).Set(0), 1000)
	h.clock.Advance(3723000)
	h.events.PublishStateChange(hal.StateIdle)

	if code := h.commands.Execute("ODOMETERS", nil, hal.StateIdle); code != hal.StatusOK {
		t.Fatalf("command status = %v", code)
	}

	want := []string{"MOTORHRS 1:02", "SPINDLEHRS 0:00", "ODOMETERX 0.0", "ODOMETERY 0.0", "ODOMETERZ 0.0"}
	for _, w := range want[:2] {
		if !containsString(h.reporter.plain, w) {
			t.Errorf("report missing %q: %v", w, h.reporter.plain)
		}
	}
	// 1000 steps at 80 steps/mm is 12.5 mm, reported in meters.
	if !containsString(h.reporter.plain, "ODOMETERX 0.0") {
		t.Errorf("X odometer line missing: %v", h.reporter.plain)
	}
}

func TestOdometersCommandPrev(t *testing.T) {
	h := newHarness()

	// Without a backup the previous record is unavailable.
	arg := "prev"
	if code := h.commands.Execute("ODOMETERS", &arg, hal.StateIdle); code != hal.StatusOK {
		t.Fatalf("command status = %v", code)
	}
	if !containsString(h.reporter.warnings, "Previous odometer values not available") {
		t.Errorf("missing unavailable warning: %v", h.reporter.warnings)
	}

	// After a reset-with-backup it reports.
	h.events.PublishStateChange(hal.StateCycle)
	h.pulse(hal.AxisMask(0).Set(0), 1000)
	h.clock.Advance(60000)
	h.events.PublishStateChange(hal.StateIdle)
	h.odo.Reset(true)

	h.reporter.plain = nil
	if code := h.commands.Execute("ODOMETERS", &arg, hal.StateIdle); code != hal.StatusOK {
		t.Fatalf("command status = %v", code)
	}
	if !containsString(h.reporter.plain, "MOTORHRS 0:01") {
		t.Errorf("previous record not reported: %v", h.reporter.plain)
	}
}

func TestOdometersCommandRst(t *testing.T) {
	h := newHarness()

	h.events.PublishStateChange(hal.StateCycle)
	h.pulse(hal.AxisMask(0).Set(0), 100)
	h.clock.Advance(1000)
	h.events.PublishStateChange(hal.StateIdle)

	arg := "RST"
	if code := h.commands.Execute("ODOMETERS", &arg, hal.StateIdle); code != hal.StatusOK {
		t.Fatalf("command status = %v", code)
	}
	if cur := h.odo.Current(); cur.Motors != 0 {
		t.Errorf("RST did not clear current: %+v", cur)
	}
	if prev, err := h.odo.Previous(); err != nil || prev.Motors != 1000 {
		t.Errorf("RST did not back up: %+v, %v", prev, err)
	}
}

func TestOdometersCommandUnknownArg(t *testing.T) {
	h := newHarness()
	arg := "BOGUS"
	if code := h.commands.Execute("ODOMETERS", &arg, hal.StateIdle); code != hal.StatusUnhandled {
		t.Errorf("unknown arg status = %v, want StatusUnhandled", code)
	}
}

func TestReportOptions(t *testing.T) {
	h := newHarness()

	h.events.PublishReportOptions(true)
	if !containsString(h.reporter.writes, ",ODO") {
		t.Errorf("capability tag missing: %v", h.reporter.writes)
	}

	h.events.PublishReportOptions(false)
	if !containsString(h.reporter.writes, "[PLUGIN:Odometers v0.08]\n") {
		t.Errorf("plugin report missing: %v", h.reporter.writes)
	}
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
