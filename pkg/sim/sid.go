// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sim

import "time"

// SID measurement cycle timing. The chip grounds both pot lines for the
// discharge phase, then counts until each line crosses the threshold.
const (
	SIDPeriod    = 512 * time.Microsecond
	SIDDischarge = 256 * time.Microsecond
	SIDCycle     = time.Microsecond
)

// SID models the paddle measurement of the host computer.
type SID struct {
	sched *Scheduler
	sense *Interrupt
	lines [2]*Line
	drive [2]*Pin

	start   time.Duration
	rise    [2]time.Duration
	running bool
	next    *Event

	// PotX and PotY hold the values of the last completed cycle.
	PotX   uint8
	PotY   uint8
	Cycles uint64

	// OnCycle, when set, is called after every completed cycle.
	OnCycle func(potX, potY uint8)
}

// NewSID attaches the measurement unit to the pot lines. sense receives a
// trigger at the start of every cycle.
func NewSID(sched *Scheduler, sense *Interrupt, potX, potY *Line) *SID {
	s := &SID{
		sched: sched,
		sense: sense,
		lines: [2]*Line{potX, potY},
		drive: [2]*Pin{potX.Driver("sid-potx"), potY.Driver("sid-poty")},
	}
	for i, l := range s.lines {
		i := i
		l.OnRise(func() { s.rose(i) })
	}
	return s
}

// Start begins measuring, one cycle every SIDPeriod.
func (s *SID) Start() {
	if s.running {
		return
	}
	s.running = true
	s.next = s.sched.After(0, s.cycle)
}

// Stop halts measuring after releasing the lines.
func (s *SID) Stop() {
	s.running = false
	s.sched.Cancel(s.next)
	s.next = nil
	for _, d := range s.drive {
		pull(d, false)
	}
}

func (s *SID) cycle() {
	s.start = s.sched.Now()
	s.rise = [2]time.Duration{-1, -1}
	for _, d := range s.drive {
		pull(d, true)
	}
	s.sense.Trigger()
	s.sched.After(SIDDischarge, func() {
		for i, d := range s.drive {
			pull(d, false)
			if s.lines[i].Level() && s.rise[i] < 0 {
				s.rise[i] = s.sched.Now()
			}
		}
	})
	s.next = s.sched.After(SIDPeriod, func() {
		s.PotX = s.value(0)
		s.PotY = s.value(1)
		s.Cycles++
		if s.OnCycle != nil {
			s.OnCycle(s.PotX, s.PotY)
		}
		if s.running {
			s.cycle()
		}
	})
}

func (s *SID) rose(i int) {
	if s.rise[i] >= 0 || s.sched.Now() < s.start+SIDDischarge {
		return
	}
	s.rise[i] = s.sched.Now()
}

func (s *SID) value(i int) uint8 {
	if s.rise[i] < 0 {
		return 255
	}
	n := (s.rise[i] - s.start - SIDDischarge) / SIDCycle
	if n > 255 {
		return 255
	}
	return uint8(n)
}
