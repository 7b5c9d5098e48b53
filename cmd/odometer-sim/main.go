// odometer-sim exercises the odometer plugin against a simulated
// machine: it installs the odometer on a fake HAL, replays a scripted
// job (homing, a cut with step pulses and spindle use, a jog), prints
// the odometer reports and demonstrates persistence across a restart.
//
// Usage:
//
//	odometer-sim [-config odometer.yaml] [-metrics]
//
// With a configured NVS file path the counters survive between runs;
// otherwise an in-memory store is used and the restart is simulated
// in-process.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/grblHAL/Plugin-odometer/pkg/config"
	"github.com/grblHAL/Plugin-odometer/pkg/hal"
	"github.com/grblHAL/Plugin-odometer/pkg/log"
	"github.com/grblHAL/Plugin-odometer/pkg/metrics"
	"github.com/grblHAL/Plugin-odometer/pkg/nvs"
	"github.com/grblHAL/Plugin-odometer/pkg/odometer"
	"github.com/grblHAL/Plugin-odometer/pkg/task"
)

// consoleReporter prints report output the way the firmware streams it.
type consoleReporter struct{}

func (consoleReporter) Message(kind hal.MessageKind, msg string) {
	if kind == hal.MessageWarning {
		fmt.Printf("[MSG:Warning: %s]\n", msg)
	} else {
		fmt.Printf("[MSG:%s]\n", msg)
	}
}

func (consoleReporter) Write(s string) {
	fmt.Print(s)
}

// machine is the simulated firmware the odometer hooks into.
type machine struct {
	cfg      *config.Config
	logger   *log.Logger
	clock    *hal.ManualClock
	hal      *hal.HAL
	events   *hal.Events
	commands *hal.CommandRegistry
	tasks    *task.Dispatcher
	registry *metrics.Registry
	spindle  *hal.Spindle
	odo      *odometer.Odometer
}

func newMachine(cfg *config.Config, store nvs.IO, logger *log.Logger) *machine {
	m := &machine{
		cfg:      cfg,
		logger:   logger,
		clock:    &hal.ManualClock{},
		events:   hal.NewEvents(),
		commands: hal.NewCommandRegistry(),
		tasks:    task.New(cfg.TaskQueue),
		registry: metrics.NewRegistry(),
	}
	m.hal = &hal.HAL{
		Clock:    m.clock,
		Settings: cfg.HALSettings(),
	}
	m.hal.Stepper.PulseStart = func(ev *hal.StepperEvent) {} // pulse generator stand-in

	m.spindle = &hal.Spindle{ID: 0, Name: "PWM spindle"}
	m.spindle.SetState = func(s *hal.Spindle, state hal.SpindleState, rpm float32) {
		logger.WithFields(log.Fields{"on": state.On, "rpm": rpm}).Debug("spindle state")
	}

	m.odo = odometer.Init(odometer.Params{
		HAL:              m.hal,
		Events:           m.events,
		Commands:         m.commands,
		Reporter:         consoleReporter{},
		Store:            store,
		FirmwareReserved: cfg.NVS.FirmwareReserved,
		DriverReserved:   cfg.NVS.DriverReserved,
		Tasks:            m.tasks,
		Logger:           logger.Child("odometer"),
		Metrics:          m.registry,
	})

	m.events.PublishSpindleSelected(m.spindle)
	m.tasks.Drain()
	return m
}

// move simulates a motion interval: enter state, emit pulses, stop.
func (m *machine) move(state hal.State, durationMs uint64, steps map[int]int) {
	m.events.PublishStateChange(state)
	ev := &hal.StepperEvent{}
	max := 0
	for _, n := range steps {
		if n > max {
			max = n
		}
	}
	// Interleave axes roughly the way a planner would: per-axis
	// counters drained one pulse event at a time.
	remaining := make(map[int]int, len(steps))
	for axis, n := range steps {
		remaining[axis] = n
	}
	for i := 0; i < max; i++ {
		ev.StepOut = 0
		for axis := range remaining {
			if remaining[axis] > 0 {
				ev.StepOut = ev.StepOut.Set(axis)
				remaining[axis]--
			}
		}
		if ev.StepOut != 0 {
			m.hal.Stepper.PulseStart(ev)
		}
	}
	m.clock.Advance(durationMs)
	m.events.PublishStateChange(hal.StateIdle)
	m.tasks.Drain()
}

func (m *machine) spindleRun(durationMs uint64, rpm float32) {
	m.spindle.SetState(m.spindle, hal.SpindleState{On: true}, rpm)
	m.clock.Advance(durationMs)
	m.spindle.SetState(m.spindle, hal.SpindleState{}, 0)
	m.tasks.Drain()
}

func (m *machine) command(name string, arg string) {
	if arg == "" {
		fmt.Printf("$%s\n", name)
		m.commands.Execute(name, nil, hal.StateIdle)
	} else {
		fmt.Printf("$%s=%s\n", name, arg)
		m.commands.Execute(name, &arg, hal.StateIdle)
	}
	m.tasks.Drain()
}

func main() {
	configPath := flag.String("config", "", "path to YAML configuration")
	showMetrics := flag.Bool("metrics", false, "print diagnostics metrics on exit")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger := log.New("sim")
	logger.SetLevel(log.ParseLevel(cfg.Log.Level))
	logger.SetFormat(log.ParseFormat(cfg.Log.Format))

	var store nvs.IO
	if cfg.NVS.Path != "" {
		fs, err := nvs.OpenFile(cfg.NVS.Path, cfg.StorageType(), cfg.NVS.Size)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		defer fs.Close()
		store = fs
	} else {
		store = nvs.NewMemory(cfg.StorageType(), cfg.NVS.Size)
	}

	m := newMachine(cfg, store, logger)
	if !m.odo.Enabled() {
		logger.Warn("odometers disabled, nothing to simulate")
		return
	}

	m.events.PublishReportOptions(false)

	// A short session: home, cut a part, jog clear.
	m.move(hal.StateHoming, 4200, map[int]int{0: 2400, 1: 2400, 2: 8000})
	m.spindle.SetState(m.spindle, hal.SpindleState{On: true}, 12000)
	m.move(hal.StateCycle, 95000, map[int]int{0: 64000, 1: 32000, 2: 1600})
	m.spindle.SetState(m.spindle, hal.SpindleState{}, 0)
	m.tasks.Drain()
	m.spindleRun(30000, 18000)
	m.move(hal.StateJog, 2500, map[int]int{0: 1000})

	m.command("ODOMETERS", "")

	// Restart on the same storage: counters must survive.
	logger.Info("simulating restart")
	m2 := newMachine(cfg, store, logger)
	m2.command("ODOMETERS", "")

	// Archive the log and start a fresh one.
	m2.command("ODOMETERS", "RST")
	m2.command("ODOMETERS", "PREV")

	if *showMetrics {
		fmt.Print(m2.registry.Gather())
	}
}
