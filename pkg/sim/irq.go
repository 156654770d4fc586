// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sim

import "time"

// Interrupt is a simulated edge interrupt. It implements hal.Interrupt.
type Interrupt struct {
	handler func()
	enabled bool
	pending bool

	Fired   uint64
	Latched uint64
}

func (i *Interrupt) SetHandler(handler func()) { i.handler = handler }

func (i *Interrupt) Enable() {
	i.pending = false
	i.enabled = true
}

func (i *Interrupt) Disable() { i.enabled = false }

// Enabled reports whether the source is armed.
func (i *Interrupt) Enabled() bool { return i.enabled }

// Pending reports whether an edge was latched while disabled.
func (i *Interrupt) Pending() bool { return i.pending }

// Trigger signals an edge. The handler runs synchronously when armed.
func (i *Interrupt) Trigger() {
	if !i.enabled || i.handler == nil {
		i.pending = true
		i.Latched++
		return
	}
	i.Fired++
	i.handler()
}

// Timer is a simulated periodic timer. It implements hal.Timer.
type Timer struct {
	sched    *Scheduler
	handler  func()
	interval time.Duration
	next     *Event

	Expiries uint64
}

func NewTimer(sched *Scheduler) *Timer {
	return &Timer{sched: sched}
}

func (t *Timer) SetHandler(handler func()) { t.handler = handler }

func (t *Timer) Start(interval time.Duration) {
	t.sched.Cancel(t.next)
	t.interval = interval
	t.next = t.sched.After(interval, t.fire)
}

func (t *Timer) Stop() {
	t.sched.Cancel(t.next)
	t.next = nil
}

// Running reports whether an expiry is scheduled.
func (t *Timer) Running() bool { return t.next != nil }

func (t *Timer) fire() {
	t.next = t.sched.After(t.interval, t.fire)
	t.Expiries++
	if t.handler != nil {
		t.handler()
	}
}
