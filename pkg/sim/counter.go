// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sim

import (
	"time"

	"github.com/Thermoquad/potmouse/pkg/hal"
)

const counterPeriod = 1 << 16

// Counter is a simulated 16-bit timer/counter. Compare channel A and B drive
// the pins given to NewCounter. It implements hal.Counter.
type Counter struct {
	sched *Scheduler
	out   [2]*Pin

	compare  [2]uint16
	mode     hal.CompareMode
	count    uint16
	tick     time.Duration
	running  bool
	startAt  time.Duration
	matches  [2]*Event
	overflow *Event

	overflowEnabled bool
	handler         func()

	Overflows uint64
	Matches   [2]uint64
}

// NewCounter creates a stopped counter whose compare outputs drive a and b.
// Either may be nil.
func NewCounter(sched *Scheduler, a, b *Pin) *Counter {
	return &Counter{sched: sched, out: [2]*Pin{a, b}}
}

func (c *Counter) SetOverflowHandler(handler func()) { c.handler = handler }

// Count returns the current counter value.
func (c *Counter) Count() uint16 {
	if !c.running {
		return c.count
	}
	elapsed := uint64((c.sched.Now() - c.startAt) / c.tick)
	return uint16((uint64(c.count) + elapsed) % counterPeriod)
}

// Running reports whether the counter is clocked.
func (c *Counter) Running() bool { return c.running }

// Mode returns the configured compare action.
func (c *Counter) Mode() hal.CompareMode { return c.mode }

// Compare returns the compare value of a channel.
func (c *Counter) Compare(ch hal.Channel) uint16 { return c.compare[ch] }

func (c *Counter) Stop() {
	if !c.running {
		return
	}
	c.count = c.Count()
	c.running = false
	c.cancel()
}

func (c *Counter) Load(count uint16) {
	if c.running {
		c.cancel()
		c.count = count
		c.startAt = c.sched.Now()
		c.schedule()
		return
	}
	c.count = count
}

func (c *Counter) SetCompare(ch hal.Channel, value uint16) {
	c.compare[ch] = value
	c.reschedule()
}

func (c *Counter) SetCompareMode(mode hal.CompareMode) {
	c.mode = mode
	c.reschedule()
}

func (c *Counter) ForceCompare() {
	for ch := range c.out {
		c.apply(hal.Channel(ch))
	}
}

func (c *Counter) Start(tick time.Duration) {
	c.Stop()
	c.tick = tick
	c.running = true
	c.startAt = c.sched.Now()
	c.schedule()
}

func (c *Counter) EnableOverflow(enable bool) { c.overflowEnabled = enable }

func (c *Counter) reschedule() {
	if !c.running {
		return
	}
	c.count = c.Count()
	c.startAt = c.sched.Now()
	c.cancel()
	c.schedule()
}

func (c *Counter) cancel() {
	for i := range c.matches {
		c.sched.Cancel(c.matches[i])
		c.matches[i] = nil
	}
	c.sched.Cancel(c.overflow)
	c.overflow = nil
}

func (c *Counter) ticksUntil(value uint16) time.Duration {
	n := uint16(value - c.count)
	if n == 0 {
		return time.Duration(counterPeriod) * c.tick
	}
	return time.Duration(n) * c.tick
}

func (c *Counter) schedule() {
	for i := range c.matches {
		ch := hal.Channel(i)
		c.matches[i] = c.sched.After(c.ticksUntil(c.compare[i]), func() { c.match(ch) })
	}
	c.overflow = c.sched.After(time.Duration(counterPeriod-int(c.count))*c.tick, c.wrap)
}

func (c *Counter) match(ch hal.Channel) {
	c.Matches[ch]++
	c.apply(ch)
	c.matches[ch] = c.sched.After(time.Duration(counterPeriod)*c.tick, func() { c.match(ch) })
}

func (c *Counter) wrap() {
	c.Overflows++
	c.count = 0
	c.startAt = c.sched.Now()
	c.overflow = c.sched.After(time.Duration(counterPeriod)*c.tick, c.wrap)
	if c.overflowEnabled && c.handler != nil {
		c.handler()
	}
}

func (c *Counter) apply(ch hal.Channel) {
	pin := c.out[ch]
	if pin == nil {
		return
	}
	switch c.mode {
	case hal.CompareClear:
		pin.Set(false)
	case hal.CompareSet:
		pin.Set(true)
	}
}
