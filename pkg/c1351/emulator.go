// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package c1351

import (
	"sync/atomic"

	"github.com/Thermoquad/potmouse/pkg/hal"
	"github.com/Thermoquad/potmouse/pkg/mouse"
)

// Mode selects the emulated device.
type Mode int

const (
	ModeAnalog Mode = iota
	ModeJoystick
)

func (m Mode) String() string {
	switch m {
	case ModeAnalog:
		return "analog"
	case ModeJoystick:
		return "joystick"
	default:
		return "unknown"
	}
}

// Outputs are the control port lines. PotY is driven by compare channel A
// and PotX by channel B of the counter.
type Outputs struct {
	PotX  hal.Pin
	PotY  hal.Pin
	Up    hal.Pin
	Down  hal.Pin
	Left  hal.Pin
	Right hal.Pin
	Fire  hal.Pin
}

func (o Outputs) all() []hal.Pin {
	return []hal.Pin{o.PotX, o.PotY, o.Up, o.Down, o.Left, o.Right, o.Fire}
}

func (o Outputs) joystick() []hal.Pin {
	return []hal.Pin{o.Up, o.Down, o.Left, o.Right, o.Fire, o.PotX}
}

// Emulator drives the control port.
//
// The main loop owns mode, zero and pos and is the only writer of the
// latched targets; OnSyncEdge only reads them.
type Emulator struct {
	out     Outputs
	sense   hal.Interrupt
	counter hal.Counter

	mode Mode
	zero uint16
	pos  Position

	targetX atomic.Uint32
	targetY atomic.Uint32

	syncs  atomic.Uint64
	pulses atomic.Uint64
}

// New creates an emulator with every line released, the sense interrupt
// disabled and analog mode selected but not started. It binds OnSyncEdge
// to sense and OnPulseTimeout to the counter overflow.
func New(out Outputs, sense hal.Interrupt, counter hal.Counter) *Emulator {
	e := &Emulator{out: out, sense: sense, counter: counter, zero: DefaultZeroPoint}
	sense.SetHandler(e.OnSyncEdge)
	counter.SetOverflowHandler(e.OnPulseTimeout)
	e.neutral()
	e.latch()
	return e
}

// Mode returns the active mode.
func (e *Emulator) Mode() Mode { return e.mode }

// Position returns the analog position counters.
func (e *Emulator) Position() Position { return e.pos }

// ZeroPoint returns the pulse delay of counter value zero.
func (e *Emulator) ZeroPoint() uint16 { return e.zero }

// Targets returns the latched pulse delays.
func (e *Emulator) Targets() (x, y uint16) {
	return uint16(e.targetX.Load()), uint16(e.targetY.Load())
}

// Syncs returns the number of measurement cycles served.
func (e *Emulator) Syncs() uint64 { return e.syncs.Load() }

// Pulses returns the number of joystick pulses started.
func (e *Emulator) Pulses() uint64 { return e.pulses.Load() }

// Start switches to mode. Every line and the counter wiring are returned to
// neutral before the new mode is configured, so nothing asserted by the old
// mode survives the switch.
func (e *Emulator) Start(mode Mode) {
	e.neutral()
	e.mode = mode
	if mode == ModeAnalog {
		e.out.PotX.Set(true)
		e.out.PotX.Output(true)
		e.out.PotY.Set(true)
		e.out.PotY.Output(true)
		e.sense.Enable()
	}
}

// SetZeroPoint moves the pulse delay of counter value zero.
func (e *Emulator) SetZeroPoint(zero uint16) {
	e.zero = zero
	e.latch()
}

func (e *Emulator) neutral() {
	e.sense.Disable()
	e.counter.Stop()
	e.counter.EnableOverflow(false)
	e.counter.SetCompareMode(hal.CompareDisconnected)
	for _, p := range e.out.all() {
		p.Output(false)
		p.Set(false)
	}
}

func (e *Emulator) latch() {
	x, y := e.pos.Targets(e.zero)
	e.targetX.Store(uint32(x))
	e.targetY.Store(uint32(y))
}

// OnMovement applies one decoded movement.
func (e *Emulator) OnMovement(dx, dy int16, buttons mouse.Buttons) {
	switch e.mode {
	case ModeAnalog:
		e.pos.Apply(dx, dy)
		e.latch()
		e.out.Fire.Output(buttons.Left())
		e.out.Up.Output(buttons.Right())
		e.out.Down.Output(buttons.Middle())

	case ModeJoystick:
		e.releaseJoystick()
		switch {
		case dx < 0:
			e.out.Left.Output(true)
		case dx > 0:
			e.out.Right.Output(true)
		}
		switch {
		case dy < 0:
			e.out.Down.Output(true)
		case dy > 0:
			e.out.Up.Output(true)
		}
		if buttons.Left() {
			e.out.Fire.Output(true)
		}
		if buttons.Right() {
			e.out.PotX.Output(true)
		}
		e.counter.Stop()
		e.counter.SetCompareMode(hal.CompareDisconnected)
		e.counter.Load(JoystickPreload)
		e.counter.EnableOverflow(true)
		e.counter.Start(JoystickTick)
		e.pulses.Add(1)
	}
}

// OnSyncEdge starts the pulses of one measurement cycle: both pot lines go
// low now and rise when the counter reaches the latched targets.
func (e *Emulator) OnSyncEdge() {
	if e.mode != ModeAnalog {
		return
	}
	e.counter.Stop()
	e.counter.SetCompareMode(hal.CompareClear)
	e.counter.ForceCompare()
	e.counter.SetCompareMode(hal.CompareSet)
	e.counter.Load(0)
	e.counter.SetCompare(hal.ChannelA, uint16(e.targetY.Load()))
	e.counter.SetCompare(hal.ChannelB, uint16(e.targetX.Load()))
	e.counter.Start(AnalogTick)
	e.syncs.Add(1)
}

// OnPulseTimeout ends a joystick pulse.
func (e *Emulator) OnPulseTimeout() {
	if e.mode != ModeJoystick {
		return
	}
	e.releaseJoystick()
	e.counter.EnableOverflow(false)
	e.counter.Stop()
}

func (e *Emulator) releaseJoystick() {
	for _, p := range e.out.joystick() {
		p.Output(false)
	}
}
