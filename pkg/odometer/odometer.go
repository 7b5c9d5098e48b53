// Axis odometers including motor run time and spindle run time.
//
// The odometer observes the firmware through its event hooks: it
// decorates the stepper pulse entry point to tally steps per axis,
// tracks motion intervals on state transitions, wraps the primary
// spindle's set-state entry point to measure on-time, and persists the
// accumulated record to non-volatile storage. Nothing here may
// destabilize the firmware: unsuitable storage disables the subsystem
// with a startup warning, and runtime write failures are tolerated.
//
// Copyright (C) 2026  grblHAL contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package odometer

import (
	"errors"
	"reflect"
	"sync"

	"github.com/grblHAL/Plugin-odometer/pkg/hal"
	"github.com/grblHAL/Plugin-odometer/pkg/log"
	"github.com/grblHAL/Plugin-odometer/pkg/metrics"
	"github.com/grblHAL/Plugin-odometer/pkg/nvs"
	"github.com/grblHAL/Plugin-odometer/pkg/task"
)

const (
	PluginName    = "Odometers"
	PluginVersion = "0.08"
)

// ErrDisabled is returned by record operations on an instance that was
// disabled at startup.
var ErrDisabled = errors.New("odometers disabled")

// Params wires the odometer to its collaborators.
type Params struct {
	HAL      *hal.HAL
	Events   *hal.Events
	Commands *hal.CommandRegistry
	Reporter hal.Reporter

	// Store is the NVS backend; FirmwareReserved and DriverReserved
	// bytes of it belong to the firmware settings area and the driver.
	Store            nvs.IO
	FirmwareReserved uint32
	DriverReserved   uint32

	Tasks   *task.Dispatcher
	Logger  *log.Logger
	Metrics *metrics.Registry
}

// Odometer is the accumulation subsystem. Created by Init; disabled
// instances install no hooks and keep no counters.
type Odometer struct {
	hal      *hal.HAL
	events   *hal.Events
	reporter hal.Reporter
	store    nvs.IO
	tasks    *task.Dispatcher
	logger   *log.Logger

	nAxes int
	acc   *Accumulator

	basePulse    hal.PulseStartFunc
	pulseWrapper hal.PulseStartFunc

	// Motion interval state. Foreground only: written exclusively from
	// the state-change observer.
	motionStart uint64
	motionHeld  bool

	// Spindle interval state, owned by the set-state interceptor.
	spindleStart uint64
	spindleOn    bool
	baseSpindle  map[*hal.Spindle]hal.SpindleSetStateFunc

	// mu guards the two records: the foreground settle path, the
	// deferred spindle write and the command surface all touch them.
	mu       sync.Mutex
	current  Record
	previous Record

	addrCurrent  uint32
	addrPrevious uint32
	enabled      bool

	writeFailures *metrics.Counter
	taskDrops     *metrics.Counter
	persists      *metrics.Counter
}

// Init sets up the odometer. It never fails hard: with unsuitable
// storage it logs a startup warning, installs no hooks and returns a
// disabled instance, leaving the rest of the firmware untouched.
func Init(p Params) *Odometer {
	logger := p.Logger
	if logger == nil {
		logger = log.New("odometer")
	}
	reg := p.Metrics
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	tasks := p.Tasks
	if tasks == nil {
		tasks = task.New(task.DefaultCapacity)
	}

	o := &Odometer{
		hal:         p.HAL,
		events:      p.Events,
		reporter:    p.Reporter,
		store:       p.Store,
		tasks:       tasks,
		logger:      logger,
		nAxes:       p.HAL.Settings.NumAxes(),
		baseSpindle: make(map[*hal.Spindle]hal.SpindleSetStateFunc),

		writeFailures: reg.Counter("odometer_nvs_write_failures_total",
			"NVS record writes that failed and were skipped"),
		taskDrops: reg.Counter("odometer_task_drops_total",
			"Deferred persistence tasks dropped because the queue was full"),
		persists: reg.Counter("odometer_persists_total",
			"Records successfully written to NVS"),
	}
	o.acc = newAccumulator(o.nAxes)
	o.current = newRecord(o.nAxes)
	o.previous = newRecord(o.nAxes)

	slot := RecordSize(o.nAxes) + nvs.ChecksumBytes

	if p.Store == nil || !p.Store.Type().SupportsRewrite() {
		o.warnStartup("EEPROM or FRAM is required for odometers!")
		return o
	}
	reserved := p.FirmwareReserved + p.DriverReserved
	if p.Store.Size() < reserved || p.Store.Size()-reserved < 2*slot {
		o.warnStartup("Not enough NVS storage for odometers!")
		return o
	}

	// Both record slots live at the very top of the storage area, clear
	// of the firmware-reserved region below.
	o.addrCurrent = p.Store.Size() - slot
	o.addrPrevious = o.addrCurrent - slot

	if rec, err := o.load(o.addrCurrent); err == nil {
		o.current = rec
	} else {
		logger.WithError(err).Info("no usable odometer record, starting from zero")
		o.resetData(false)
	}

	p.HAL.DriverCap.Odometers = true

	p.Events.OnStateChange(o.onStateChanged)
	p.Events.OnReportOptions(o.onReportOptions)
	p.Events.OnSettingsChanged(o.onSettingsChanged)
	p.Events.OnSpindleSelected(o.onSpindleSelected)

	o.pulseWrapper = o.stepperPulseStart
	o.basePulse = p.HAL.Stepper.PulseStart
	p.HAL.Stepper.PulseStart = o.pulseWrapper

	if p.Commands != nil {
		o.registerCommands(p.Commands)
	}

	o.enabled = true
	logger.WithFields(log.Fields{
		"axes":    o.nAxes,
		"current": o.addrCurrent,
		"prev":    o.addrPrevious,
	}).Debug("odometers enabled")
	return o
}

// Enabled reports whether the subsystem initialized and installed its
// hooks.
func (o *Odometer) Enabled() bool {
	return o.enabled
}

func (o *Odometer) warnStartup(msg string) {
	o.logger.Warn(msg)
	if o.reporter != nil {
		o.tasks.RunOnStartup(func() {
			o.reporter.Message(hal.MessageWarning, msg)
		})
	}
}

// stepperPulseStart is the pulse-interrupt decorator: record, then pass
// through to the real pulse generator with its timing intact.
func (o *Odometer) stepperPulseStart(ev *hal.StepperEvent) {
	o.acc.Count(ev)
	if o.basePulse != nil {
		o.basePulse(ev)
	}
}

// onStateChanged drives the motion interval state machine. Entering any
// active-class state opens an interval (without re-capturing the start
// on repeated entries); leaving the active class settles it: elapsed
// time and accumulated steps are folded into the record and the record
// is persisted. With no pulses recorded the transition is free.
func (o *Odometer) onStateChanged(state hal.State) {
	if state&hal.StateMotion != 0 {
		if !o.motionHeld {
			o.motionStart = o.hal.Clock.ElapsedTicks()
			o.motionHeld = true
		}
		return
	}

	if o.acc.Changed() {
		var elapsed uint64
		if o.motionHeld {
			elapsed = o.hal.Clock.ElapsedTicks() - o.motionStart
		}
		steps := o.acc.Settle()

		o.mu.Lock()
		o.current.Motors += elapsed
		for idx, n := range steps {
			if n != 0 {
				o.current.Distance[idx] += float32(n) / o.hal.Settings.Axes[idx].StepsPerMM
			}
		}
		rec := o.current.clone()
		o.mu.Unlock()

		o.persist(&rec, o.addrCurrent)
	}
	o.motionHeld = false
}

// onSettingsChanged reclaims the pulse entry point: a configuration
// reload may have reinstalled the driver's own pulse function, silently
// bypassing the accumulator. Runs after the firmware's own observers.
func (o *Odometer) onSettingsChanged(settings *hal.Settings) {
	cur := o.hal.Stepper.PulseStart
	if cur == nil || !sameFunc(cur, o.pulseWrapper) {
		o.basePulse = cur
		o.hal.Stepper.PulseStart = o.pulseWrapper
		o.logger.Debug("reclaimed stepper pulse entry point")
	}
}

// sameFunc reports whether two callbacks share an identity. Func values
// are not comparable, so the code pointers are compared instead; that is
// sufficient to recognize the accumulator's own wrapper.
func sameFunc(a, b hal.PulseStartFunc) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

// load reads and integrity-checks a record at addr.
func (o *Odometer) load(addr uint32) (Record, error) {
	data, err := o.store.Read(addr, RecordSize(o.nAxes), true)
	if err != nil {
		return Record{}, err
	}
	return decodeRecord(data, o.nAxes)
}

// persist writes a whole record plus integrity footer at addr.
// Best effort: a failed write must not disturb the firmware, so it is
// logged and counted, and the in-memory state stays authoritative until
// a later write succeeds.
func (o *Odometer) persist(r *Record, addr uint32) {
	if err := o.store.Write(addr, r.encode(), true); err != nil {
		o.writeFailures.Inc(nil)
		o.logger.WithError(err).WithField("addr", addr).Warn("odometer record write failed")
		return
	}
	o.persists.Inc(nil)
}

// persistCurrent is the deferred write scheduled by the spindle
// interceptor, run in the foreground.
func (o *Odometer) persistCurrent() {
	o.mu.Lock()
	rec := o.current.clone()
	o.mu.Unlock()
	o.persist(&rec, o.addrCurrent)
}

func (o *Odometer) resetData(backup bool) {
	o.mu.Lock()
	if backup {
		o.previous = o.current.clone()
		prev := o.previous.clone()
		o.mu.Unlock()
		o.persist(&prev, o.addrPrevious)
		o.mu.Lock()
	}
	o.current.reset()
	rec := o.current.clone()
	o.mu.Unlock()

	o.persist(&rec, o.addrCurrent)
}

// Reset zeroes the current record, first freezing it into the previous
// slot when backup is set. Both slots are persisted.
func (o *Odometer) Reset(backup bool) {
	if !o.enabled {
		return
	}
	o.resetData(backup)
}

// Current returns a snapshot of the live record.
func (o *Odometer) Current() Record {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current.clone()
}

// Previous loads the last backed-up record from storage. The error
// distinguishes "never backed up / corrupt" from the record itself.
func (o *Odometer) Previous() (Record, error) {
	if !o.enabled {
		return Record{}, ErrDisabled
	}
	return o.load(o.addrPrevious)
}
