// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sim

import (
	"fmt"
	"time"
)

// Line is an open-collector wire with a pull-up. It reads low while any
// attached driver pulls it low.
type Line struct {
	name     string
	sched    *Scheduler
	trace    *Trace
	drivers  []*Pin
	level    bool
	watchers []func(high bool)
}

// NewLine creates a released (high) line. trace may be nil.
func NewLine(name string, sched *Scheduler, trace *Trace) *Line {
	return &Line{name: name, sched: sched, trace: trace, level: true}
}

func (l *Line) Name() string { return l.name }

// Level returns the current line level.
func (l *Line) Level() bool { return l.level }

// Watch registers fn to be called on every level change.
func (l *Line) Watch(fn func(high bool)) {
	l.watchers = append(l.watchers, fn)
}

// OnFall registers fn to be called on every falling edge.
func (l *Line) OnFall(fn func()) {
	l.Watch(func(high bool) {
		if !high {
			fn()
		}
	})
}

// OnRise registers fn to be called on every rising edge.
func (l *Line) OnRise(fn func()) {
	l.Watch(func(high bool) {
		if high {
			fn()
		}
	})
}

// Driver attaches a new driver pin to the line.
func (l *Line) Driver(name string) *Pin {
	p := &Pin{name: name, line: l}
	l.drivers = append(l.drivers, p)
	return p
}

func (l *Line) update() {
	level := true
	for _, d := range l.drivers {
		if d.output && !d.level {
			level = false
			break
		}
	}
	if level == l.level {
		return
	}
	l.level = level
	if l.trace != nil {
		l.trace.record(l.sched.Now(), l.name, level)
	}
	for _, w := range l.watchers {
		w(level)
	}
}

// Pin is one driver of a Line. It implements hal.Pin; a pin driven high
// behaves like a released one.
type Pin struct {
	name   string
	line   *Line
	level  bool
	output bool
}

func (p *Pin) Name() string { return p.name }

// Line returns the line the pin drives.
func (p *Pin) Line() *Line { return p.line }

func (p *Pin) Get() bool { return p.line.level }

func (p *Pin) Set(high bool) {
	p.level = high
	p.line.update()
}

func (p *Pin) Output(enable bool) {
	p.output = enable
	p.line.update()
}

// Asserted reports whether the pin itself pulls its line low.
func (p *Pin) Asserted() bool { return p.output && !p.level }

// Transition is one recorded level change.
type Transition struct {
	At   time.Duration
	Line string
	High bool
}

func (t Transition) String() string {
	level := "low"
	if t.High {
		level = "high"
	}
	return fmt.Sprintf("%10s %s %s", t.At, t.Line, level)
}

// Trace is an ordered log of line level changes shared by several lines.
type Trace struct {
	entries []Transition
	limit   int
}

// NewTrace creates a trace keeping at most limit entries (0 means no limit).
func NewTrace(limit int) *Trace {
	return &Trace{limit: limit}
}

func (t *Trace) record(at time.Duration, line string, high bool) {
	if t.limit > 0 && len(t.entries) >= t.limit {
		copy(t.entries, t.entries[1:])
		t.entries = t.entries[:len(t.entries)-1]
	}
	t.entries = append(t.entries, Transition{At: at, Line: line, High: high})
}

// Entries returns the recorded transitions in order.
func (t *Trace) Entries() []Transition { return t.entries }

// Reset drops all entries.
func (t *Trace) Reset() { t.entries = t.entries[:0] }

// Find returns the index of the first transition at or after from that
// matches line and level, or -1.
func (t *Trace) Find(from int, line string, high bool) int {
	for i := from; i < len(t.entries); i++ {
		if t.entries[i].Line == line && t.entries[i].High == high {
			return i
		}
	}
	return -1
}
