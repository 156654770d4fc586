// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sim is a deterministic discrete-event model of the bridge hardware.
//
// It provides open-collector lines, interrupt sources, timers, a compare
// counter, a PS/2 mouse and the measurement cycle of the host computer, all
// running on virtual time. Nothing happens unless the scheduler is advanced,
// either explicitly or through the hal.Clock methods the bridge itself calls
// while it waits.
package sim

import (
	"container/heap"
	"time"
)

// Event is a scheduled callback.
type Event struct {
	at        time.Duration
	seq       uint64
	fn        func()
	index     int
	cancelled bool
}

// At returns the virtual time the event fires at.
func (e *Event) At() time.Duration { return e.at }

type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *eventHeap) Push(x any) {
	e := x.(*Event)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Scheduler owns virtual time. Events at the same instant run in the order
// they were scheduled. It implements hal.Clock.
type Scheduler struct {
	now    time.Duration
	seq    uint64
	events eventHeap

	// Quantum is how far Yield advances time when nothing is scheduled.
	Quantum time.Duration
}

// NewScheduler creates a scheduler at time zero.
func NewScheduler() *Scheduler {
	return &Scheduler{Quantum: time.Microsecond}
}

// Now returns the current virtual time.
func (s *Scheduler) Now() time.Duration { return s.now }

// Pending returns the number of scheduled events.
func (s *Scheduler) Pending() int { return len(s.events) }

// After schedules fn to run d from now.
func (s *Scheduler) After(d time.Duration, fn func()) *Event {
	if d < 0 {
		d = 0
	}
	s.seq++
	e := &Event{at: s.now + d, seq: s.seq, fn: fn}
	heap.Push(&s.events, e)
	return e
}

// Cancel removes a scheduled event. Cancelling a fired or nil event is a
// no-op.
func (s *Scheduler) Cancel(e *Event) {
	if e == nil || e.cancelled || e.index < 0 {
		return
	}
	e.cancelled = true
	heap.Remove(&s.events, e.index)
}

// Step runs the next event, advancing time to it. It reports false when
// nothing is scheduled.
func (s *Scheduler) Step() bool {
	if len(s.events) == 0 {
		return false
	}
	e := heap.Pop(&s.events).(*Event)
	s.now = e.at
	e.fn()
	return true
}

// RunUntil runs every event scheduled at or before t, then sets the clock to t.
func (s *Scheduler) RunUntil(t time.Duration) {
	for len(s.events) > 0 && s.events[0].at <= t {
		s.Step()
	}
	if t > s.now {
		s.now = t
	}
}

// Delay advances virtual time by d, running everything due on the way.
func (s *Scheduler) Delay(d time.Duration) {
	s.RunUntil(s.now + d)
}

// Yield runs the next event, or advances by Quantum when idle.
func (s *Scheduler) Yield() {
	if !s.Step() {
		s.now += s.Quantum
	}
}
