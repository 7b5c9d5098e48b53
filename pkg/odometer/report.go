// Copyright (C) 2026  grblHAL contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package odometer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grblHAL/Plugin-odometer/pkg/hal"
)

// formatRunTime renders cumulative milliseconds as hours:minutes.
func formatRunTime(ms uint64) string {
	hr := ms / 3600000
	min := (ms / 60000) % 60
	return fmt.Sprintf("%d:%02d", hr, min)
}

// formatDistance renders millimeters as meters with one decimal.
func formatDistance(mm float32) string {
	return strconv.FormatFloat(float64(mm)/1000.0, 'f', 1, 32)
}

// report writes the human-readable odometer listing for a record.
func (o *Odometer) report(r *Record) {
	o.reporter.Message(hal.MessagePlain, "SPINDLEHRS "+formatRunTime(r.Spindle))
	o.reporter.Message(hal.MessagePlain, "MOTORHRS "+formatRunTime(r.Motors))
	for idx, dist := range r.Distance {
		letter := o.hal.Settings.Axes[idx].Letter
		o.reporter.Message(hal.MessagePlain, "ODOMETER"+letter+" "+formatDistance(dist))
	}
}

// onReportOptions contributes to the firmware capabilities report: the
// short ",ODO" tag on the options line, the plugin name and version
// otherwise.
func (o *Odometer) onReportOptions(newOpt bool) {
	if newOpt {
		o.reporter.Write(",ODO")
	} else {
		o.reporter.Write(fmt.Sprintf("[PLUGIN:%s v%s]\n", PluginName, PluginVersion))
	}
}

// odometerCommand handles $ODOMETERS:
//
//	$ODOMETERS      - list the current record
//	$ODOMETERS=PREV - list the last backed-up record
//	$ODOMETERS=RST  - back up the current record and clear it
func (o *Odometer) odometerCommand(state hal.State, args *string) hal.StatusCode {
	if args == nil {
		rec := o.Current()
		o.report(&rec)
		return hal.StatusOK
	}

	switch strings.ToUpper(*args) {
	case "PREV":
		if rec, err := o.Previous(); err == nil {
			o.report(&rec)
		} else {
			o.reporter.Message(hal.MessageWarning, "Previous odometer values not available")
		}
		return hal.StatusOK

	case "RST":
		o.resetData(true)
		return hal.StatusOK
	}

	return hal.StatusUnhandled
}

func (o *Odometer) registerCommands(r *hal.CommandRegistry) {
	r.Register(hal.Command{
		Name:    "ODOMETERS",
		Handler: o.odometerCommand,
		Help: []string{
			"$ODOMETERS - list odometer log",
			"$ODOMETERS=PREV - list previous odometer log when available",
			"$ODOMETERS=RST - copy current log to previous and clear current",
		},
	})
}
