// Copyright (C) 2026  grblHAL contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package hal

import "sync"

// Observer callback types, one per event.
type (
	StateChangeFunc     func(state State)
	SpindleSelectedFunc func(s *Spindle)
	SettingsChangedFunc func(settings *Settings)
	ReportOptionsFunc   func(newOpt bool)
)

// Events is the firmware event hub. Each event keeps an ordered observer
// list; Publish* dispatches in registration order, so an observer
// registered later sees the event after every earlier one.
type Events struct {
	mu sync.Mutex

	stateChange     []StateChangeFunc
	spindleSelected []SpindleSelectedFunc
	settingsChanged []SettingsChangedFunc
	reportOptions   []ReportOptionsFunc
}

// NewEvents creates an empty event hub.
func NewEvents() *Events {
	return &Events{}
}

// OnStateChange registers an observer for machine state transitions.
func (e *Events) OnStateChange(fn StateChangeFunc) {
	e.mu.Lock()
	e.stateChange = append(e.stateChange, fn)
	e.mu.Unlock()
}

// PublishStateChange notifies all state-change observers.
func (e *Events) PublishStateChange(state State) {
	e.mu.Lock()
	observers := append([]StateChangeFunc(nil), e.stateChange...)
	e.mu.Unlock()
	for _, fn := range observers {
		fn(state)
	}
}

// OnSpindleSelected registers an observer for spindle selection.
func (e *Events) OnSpindleSelected(fn SpindleSelectedFunc) {
	e.mu.Lock()
	e.spindleSelected = append(e.spindleSelected, fn)
	e.mu.Unlock()
}

// PublishSpindleSelected notifies observers that s became the active
// spindle.
func (e *Events) PublishSpindleSelected(s *Spindle) {
	e.mu.Lock()
	observers := append([]SpindleSelectedFunc(nil), e.spindleSelected...)
	e.mu.Unlock()
	for _, fn := range observers {
		fn(s)
	}
}

// OnSettingsChanged registers an observer for configuration reloads.
func (e *Events) OnSettingsChanged(fn SettingsChangedFunc) {
	e.mu.Lock()
	e.settingsChanged = append(e.settingsChanged, fn)
	e.mu.Unlock()
}

// PublishSettingsChanged notifies observers after a configuration reload.
func (e *Events) PublishSettingsChanged(settings *Settings) {
	e.mu.Lock()
	observers := append([]SettingsChangedFunc(nil), e.settingsChanged...)
	e.mu.Unlock()
	for _, fn := range observers {
		fn(settings)
	}
}

// OnReportOptions registers an observer for the capabilities report.
func (e *Events) OnReportOptions(fn ReportOptionsFunc) {
	e.mu.Lock()
	e.reportOptions = append(e.reportOptions, fn)
	e.mu.Unlock()
}

// PublishReportOptions asks observers to contribute to the capabilities
// report. With newOpt set observers append to the short capabilities
// line; otherwise they report their full name and version.
func (e *Events) PublishReportOptions(newOpt bool) {
	e.mu.Lock()
	observers := append([]ReportOptionsFunc(nil), e.reportOptions...)
	e.mu.Unlock()
	for _, fn := range observers {
		fn(newOpt)
	}
}
