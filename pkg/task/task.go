// Package task provides the foreground task dispatcher for the odometer
// plugin: a bounded queue of one-shot callbacks scheduled from constrained
// contexts (the pulse interrupt, the spindle state hook) and drained by the
// cooperative foreground loop.
//
// Copyright (C) 2026  grblHAL contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// DefaultCapacity is the immediate-queue capacity used when New is given
// a non-positive value.
const DefaultCapacity = 32

// ErrQueueFull is returned by AddImmediate when the bounded queue is full.
// The caller's work is dropped, never blocked on.
var ErrQueueFull = errors.New("task: immediate queue full")

// Func is a deferred one-shot callback.
type Func func()

// Dispatcher owns the foreground execution context. Callbacks are enqueued
// with AddImmediate from any context and run strictly in the foreground,
// either by the Run loop or by an explicit Drain.
type Dispatcher struct {
	queue chan Func

	mu      sync.Mutex
	startup []Func
	started bool

	ctx    context.Context
	cancel context.CancelFunc

	running atomic.Bool
	wg      sync.WaitGroup

	dropped atomic.Uint64
}

// New creates a dispatcher with the given immediate-queue capacity.
func New(capacity int) *Dispatcher {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		queue:  make(chan Func, capacity),
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddImmediate schedules fn to run once, soon, in the foreground.
// Non-blocking: if the queue is full the task is dropped, the drop counter
// is incremented and ErrQueueFull is returned.
func (d *Dispatcher) AddImmediate(fn Func) error {
	if fn == nil {
		return nil
	}
	select {
	case d.queue <- fn:
		return nil
	default:
		d.dropped.Add(1)
		return ErrQueueFull
	}
}

// RunOnStartup registers fn to run when the dispatch loop starts. If the
// loop has already started the task is enqueued immediately instead.
func (d *Dispatcher) RunOnStartup(fn Func) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	started := d.started
	if !started {
		d.startup = append(d.startup, fn)
	}
	d.mu.Unlock()
	if started {
		d.AddImmediate(fn)
	}
}

// Dropped returns the number of tasks dropped because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Pending returns the number of tasks waiting in the immediate queue.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Run starts the foreground dispatch loop.
func (d *Dispatcher) Run() {
	if d.running.Swap(true) {
		return // Already running
	}

	d.wg.Add(1)
	go d.dispatchLoop()
}

// End signals the dispatch loop to stop.
func (d *Dispatcher) End() {
	d.running.Store(false)
	d.cancel()
}

// Wait blocks until the dispatch loop has stopped.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Drain synchronously runs the startup tasks (once) and every queued
// immediate task. It is the cooperative alternative to Run for callers
// that own their own foreground loop, and for tests.
func (d *Dispatcher) Drain() {
	d.runStartup()
	for {
		select {
		case fn := <-d.queue:
			fn()
		default:
			return
		}
	}
}

func (d *Dispatcher) runStartup() {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	startup := d.startup
	d.startup = nil
	d.mu.Unlock()

	for _, fn := range startup {
		fn()
	}
}

// dispatchLoop is the main foreground loop.
func (d *Dispatcher) dispatchLoop() {
	defer d.wg.Done()

	d.runStartup()

	for d.running.Load() {
		select {
		case fn := <-d.queue:
			fn()
		case <-d.ctx.Done():
			return
		}
	}
}
