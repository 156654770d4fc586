// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sim

import "github.com/Thermoquad/potmouse/pkg/hal"

// Line names used in traces.
const (
	LinePS2Clock = "ps2-clk"
	LinePS2Data  = "ps2-dat"
	LinePotX     = "potx"
	LinePotY     = "poty"
	LineUp       = "up"
	LineDown     = "down"
	LineLeft     = "left"
	LineRight    = "right"
	LineFire     = "fire"
)

// Board is a complete simulated bridge: the PS/2 side with a mouse attached,
// the control port side with a SID measuring the pot lines, and the
// microcontroller resources in between.
type Board struct {
	Sched *Scheduler
	Trace *Trace

	PS2Clock *Line
	PS2Data  *Line
	HostClk  *Pin
	HostDat  *Pin
	PS2Edge  *Interrupt
	PS2Timer *Timer
	Mouse    *Mouse

	Lines map[string]*Line
	PotX  *Pin
	PotY  *Pin
	Up    *Pin
	Down  *Pin
	Left  *Pin
	Right *Pin
	Fire  *Pin

	Sense   *Interrupt
	Counter *Counter
	SID     *SID
}

// NewBoard wires a board. traceLimit bounds the transition trace (0 keeps
// everything).
func NewBoard(traceLimit int) *Board {
	s := NewScheduler()
	tr := NewTrace(traceLimit)
	b := &Board{
		Sched: s,
		Trace: tr,
		Lines: make(map[string]*Line),
	}

	b.PS2Clock = NewLine(LinePS2Clock, s, tr)
	b.PS2Data = NewLine(LinePS2Data, s, tr)
	b.HostClk = b.PS2Clock.Driver("host-clk")
	b.HostDat = b.PS2Data.Driver("host-dat")
	b.PS2Edge = &Interrupt{}
	b.PS2Clock.OnFall(b.PS2Edge.Trigger)
	b.PS2Timer = NewTimer(s)
	b.Mouse = NewMouse(s, b.PS2Clock, b.PS2Data)

	output := func(name string) *Pin {
		l := NewLine(name, s, tr)
		b.Lines[name] = l
		return l.Driver("bridge-" + name)
	}
	b.PotX = output(LinePotX)
	b.PotY = output(LinePotY)
	b.Up = output(LineUp)
	b.Down = output(LineDown)
	b.Left = output(LineLeft)
	b.Right = output(LineRight)
	b.Fire = output(LineFire)

	b.Sense = &Interrupt{}
	b.Counter = NewCounter(s, b.PotY, b.PotX)
	b.SID = NewSID(s, b.Sense, b.Lines[LinePotX], b.Lines[LinePotY])
	return b
}

// HAL returns the board as bridge hardware.
func (b *Board) HAL() hal.Board {
	return hal.Board{
		PS2Clock: b.HostClk,
		PS2Data:  b.HostDat,
		PS2Edge:  b.PS2Edge,
		PS2Timer: b.PS2Timer,
		PotX:     b.PotX,
		PotY:     b.PotY,
		Up:       b.Up,
		Down:     b.Down,
		Left:     b.Left,
		Right:    b.Right,
		Fire:     b.Fire,
		Sense:    b.Sense,
		Counter:  b.Counter,
		Clock:    b.Sched,
	}
}

// Asserted reports whether an output line is pulled low.
func (b *Board) Asserted(line string) bool {
	l, ok := b.Lines[line]
	return ok && !l.Level()
}
