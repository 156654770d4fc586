// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package c1351 turns mouse movement into Commodore control port signals.
//
// In analog mode it behaves like a C1351 proportional mouse: two 6 bit
// position counters are converted to pulse delays that the host's pot
// measurement reads as positions. In joystick mode it behaves like a C1350:
// every movement closes the matching direction switches for a fixed time.
package c1351

import "time"

// Analog timing. A counter value c puts the rising edge of its pot line
// DefaultZeroPoint + c*ScaleNum/ScaleDen counter ticks after the sync edge.
const (
	DefaultZeroPoint = 320
	ScaleNum         = 200
	ScaleDen         = 96
	CounterMask      = 0x3F
	AnalogTick       = time.Microsecond
)

// Joystick timing: the pulse lasts JoystickPulseTicks ticks of JoystickTick,
// about 33ms.
const (
	JoystickPulseTicks = 256
	JoystickPreload    = 0xFFFF - JoystickPulseTicks
	JoystickTick       = 128 * time.Microsecond
)

// Target returns the pulse delay in ticks for a counter value.
func Target(zero uint16, counter uint8) uint16 {
	return zero + uint16(uint32(counter&CounterMask)*ScaleNum/ScaleDen)
}

// Position holds the two mod 64 position counters.
type Position struct {
	X uint8
	Y uint8
}

// Apply adds a movement. The counters wrap modulo 64.
func (p *Position) Apply(dx, dy int16) {
	p.X = uint8(int16(p.X)+dx) & CounterMask
	p.Y = uint8(int16(p.Y)+dy) & CounterMask
}

// Targets returns the pulse delays for both axes.
func (p Position) Targets(zero uint16) (x, y uint16) {
	return Target(zero, p.X), Target(zero, p.Y)
}
