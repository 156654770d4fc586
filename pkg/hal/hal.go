// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package hal defines the hardware capabilities the bridge is built on.
//
// Every piece of the bridge talks to pins, interrupts and timers through these
// interfaces only. A board support package provides real implementations; the
// sim package provides a deterministic discrete-event model used by tests and
// by the host tools.
package hal

import "time"

// Pin is a single GPIO line.
//
// Output(false) releases the line and the pull-up makes it read high.
// Output(true) drives the line at the level last given to Set. Switch style
// outputs are asserted by driving them low.
type Pin interface {
	Get() bool
	Set(high bool)
	Output(enable bool)
}

// Interrupt is an edge triggered interrupt source.
type Interrupt interface {
	SetHandler(handler func())
	// Enable drops any request latched while disabled, then arms the source.
	Enable()
	Disable()
}

// Timer is a periodic overflow source.
type Timer interface {
	SetHandler(handler func())
	// Start (re)arms the timer; the first expiry is one interval from now.
	Start(interval time.Duration)
	Stop()
}

// Channel selects a compare unit of a Counter.
type Channel int

const (
	ChannelA Channel = iota
	ChannelB
)

// CompareMode is the action a compare match applies to its output pin.
type CompareMode int

const (
	CompareDisconnected CompareMode = iota
	CompareClear
	CompareSet
)

func (m CompareMode) String() string {
	switch m {
	case CompareDisconnected:
		return "disconnected"
	case CompareClear:
		return "clear-on-match"
	case CompareSet:
		return "set-on-match"
	default:
		return "unknown"
	}
}

// Counter is a 16-bit up counter with two compare outputs and an overflow
// event, the shape of a typical microcontroller timer/counter unit.
type Counter interface {
	Stop()
	Load(count uint16)
	SetCompare(ch Channel, value uint16)
	SetCompareMode(mode CompareMode)
	// ForceCompare applies the current compare action to both outputs now.
	ForceCompare()
	Start(tick time.Duration)
	EnableOverflow(enable bool)
	SetOverflowHandler(handler func())
}

// Clock provides delays and the busy-wait step used while waiting on
// interrupt driven state.
type Clock interface {
	Delay(d time.Duration)
	Yield()
}

// Board bundles every capability the bridge needs.
//
// Sense must preempt PS2Edge: the measurement cycle of the host computer
// tolerates microseconds of latency, the PS/2 clock tolerates tens.
type Board struct {
	PS2Clock Pin
	PS2Data  Pin
	PS2Edge  Interrupt
	PS2Timer Timer

	PotX  Pin
	PotY  Pin
	Up    Pin
	Down  Pin
	Left  Pin
	Right Pin
	Fire  Pin

	Sense   Interrupt
	Counter Counter
	Clock   Clock
}
