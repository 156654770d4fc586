// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sim

import (
	"testing"
	"time"

	"github.com/Thermoquad/potmouse/pkg/hal"
)

// ============================================================
// Scheduler
// ============================================================

func TestScheduler_Ordering(t *testing.T) {
	s := NewScheduler()
	var got []int
	s.After(20*time.Microsecond, func() { got = append(got, 3) })
	s.After(10*time.Microsecond, func() { got = append(got, 1) })
	s.After(10*time.Microsecond, func() { got = append(got, 2) })
	cancelled := s.After(15*time.Microsecond, func() { got = append(got, 99) })
	s.Cancel(cancelled)
	s.Cancel(cancelled)

	s.RunUntil(time.Millisecond)

	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if s.Now() != time.Millisecond {
		t.Errorf("now = %v", s.Now())
	}
	if s.Pending() != 0 {
		t.Errorf("%d events left", s.Pending())
	}
}

func TestScheduler_NestedEvents(t *testing.T) {
	s := NewScheduler()
	var at []time.Duration
	s.After(time.Microsecond, func() {
		at = append(at, s.Now())
		s.After(0, func() { at = append(at, s.Now()) })
	})
	s.Delay(2 * time.Microsecond)
	if len(at) != 2 || at[0] != time.Microsecond || at[1] != time.Microsecond {
		t.Errorf("unexpected times %v", at)
	}
}

func TestScheduler_YieldWhenIdle(t *testing.T) {
	s := NewScheduler()
	s.Quantum = 3 * time.Microsecond
	s.Yield()
	s.Yield()
	if s.Now() != 6*time.Microsecond {
		t.Errorf("now = %v", s.Now())
	}
}

// ============================================================
// Lines
// ============================================================

func TestLine_WiredAnd(t *testing.T) {
	s := NewScheduler()
	tr := NewTrace(0)
	l := NewLine("clk", s, tr)
	a := l.Driver("a")
	b := l.Driver("b")

	if !l.Level() {
		t.Fatal("released line should read high")
	}

	pull(a, true)
	pull(b, true)
	pull(a, false)
	if l.Level() {
		t.Error("line should stay low while b pulls")
	}
	if !b.Asserted() || a.Asserted() {
		t.Error("asserted flags wrong")
	}
	pull(b, false)
	if !l.Level() {
		t.Error("line should be released")
	}

	// a pin driven high does not pull
	a.Set(true)
	a.Output(true)
	if !l.Level() {
		t.Error("high output should read as released")
	}

	entries := tr.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 transitions, got %v", entries)
	}
	if entries[0].High || !entries[1].High {
		t.Errorf("unexpected transitions %v", entries)
	}
	if tr.Find(0, "clk", true) != 1 || tr.Find(0, "dat", true) != -1 {
		t.Error("Find mismatch")
	}
}

func TestTrace_Limit(t *testing.T) {
	s := NewScheduler()
	tr := NewTrace(3)
	p := NewLine("x", s, tr).Driver("p")
	for i := 0; i < 5; i++ {
		pull(p, i%2 == 0)
		s.Delay(time.Microsecond)
	}
	entries := tr.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].At != 2*time.Microsecond {
		t.Errorf("oldest entries should be dropped, first at %v", entries[0].At)
	}
}

// ============================================================
// Interrupts and timers
// ============================================================

func TestInterrupt_Latching(t *testing.T) {
	var calls int
	irq := &Interrupt{}
	irq.SetHandler(func() { calls++ })

	irq.Trigger()
	if calls != 0 || !irq.Pending() || irq.Latched != 1 {
		t.Fatal("disabled interrupt should only latch")
	}
	irq.Enable()
	if irq.Pending() {
		t.Error("Enable should clear the pending flag")
	}
	irq.Trigger()
	irq.Trigger()
	if calls != 2 || irq.Fired != 2 {
		t.Errorf("calls=%d fired=%d", calls, irq.Fired)
	}
}

func TestTimer_Periodic(t *testing.T) {
	s := NewScheduler()
	tm := NewTimer(s)
	var at []time.Duration
	tm.SetHandler(func() { at = append(at, s.Now()) })
	tm.Start(time.Millisecond)
	s.RunUntil(3500 * time.Microsecond)
	if len(at) != 3 || at[2] != 3*time.Millisecond {
		t.Errorf("expiries at %v", at)
	}

	tm.Stop()
	s.RunUntil(10 * time.Millisecond)
	if tm.Expiries != 3 || tm.Running() {
		t.Errorf("timer kept running: %d", tm.Expiries)
	}
}

func TestTimer_StopFromHandler(t *testing.T) {
	s := NewScheduler()
	tm := NewTimer(s)
	tm.SetHandler(tm.Stop)
	tm.Start(time.Millisecond)
	s.RunUntil(5 * time.Millisecond)
	if tm.Expiries != 1 {
		t.Errorf("expected a single expiry, got %d", tm.Expiries)
	}
}

// ============================================================
// Counter
// ============================================================

func newTestCounter() (*Scheduler, *Pin, *Pin, *Counter) {
	s := NewScheduler()
	a := NewLine("a", s, nil).Driver("a")
	b := NewLine("b", s, nil).Driver("b")
	a.Set(true)
	a.Output(true)
	b.Set(true)
	b.Output(true)
	return s, a, b, NewCounter(s, a, b)
}

func TestCounter_CompareOutputs(t *testing.T) {
	s, a, b, c := newTestCounter()

	c.SetCompareMode(hal.CompareClear)
	c.ForceCompare()
	if a.Get() || b.Get() {
		t.Fatal("forced clear should pull both outputs")
	}

	c.SetCompareMode(hal.CompareSet)
	c.Load(0)
	c.SetCompare(hal.ChannelA, 100)
	c.SetCompare(hal.ChannelB, 200)
	c.Start(time.Microsecond)

	s.RunUntil(99 * time.Microsecond)
	if a.Get() {
		t.Error("channel A released early")
	}
	if c.Count() != 99 {
		t.Errorf("count = %d", c.Count())
	}
	s.RunUntil(100 * time.Microsecond)
	if !a.Get() || b.Get() {
		t.Error("channel A should match at 100 ticks")
	}
	s.RunUntil(200 * time.Microsecond)
	if !b.Get() {
		t.Error("channel B should match at 200 ticks")
	}
	if c.Matches[hal.ChannelA] != 1 || c.Matches[hal.ChannelB] != 1 {
		t.Errorf("matches %v", c.Matches)
	}
}

func TestCounter_StopFreezesCount(t *testing.T) {
	s, _, _, c := newTestCounter()
	c.Start(2 * time.Microsecond)
	s.RunUntil(20 * time.Microsecond)
	c.Stop()
	s.RunUntil(time.Millisecond)
	if c.Count() != 10 || c.Running() {
		t.Errorf("count = %d running=%v", c.Count(), c.Running())
	}
	if c.Matches[hal.ChannelA] != 0 {
		t.Error("stopped counter should not match")
	}
}

func TestCounter_Overflow(t *testing.T) {
	s, _, _, c := newTestCounter()
	var at time.Duration
	c.SetOverflowHandler(func() {
		if at == 0 {
			at = s.Now()
		}
	})
	c.EnableOverflow(true)
	c.Load(0xFFFF - 256)
	c.Start(128 * time.Microsecond)
	s.RunUntil(50 * time.Millisecond)

	if want := 257 * 128 * time.Microsecond; at != want {
		t.Errorf("overflow at %v, want %v", at, want)
	}

	c.EnableOverflow(false)
	c.Stop()
	c.Load(0xFFFF)
	overflows := c.Overflows
	c.Start(time.Microsecond)
	s.Delay(time.Millisecond)
	if c.Overflows != overflows+1 {
		t.Error("overflow should still be counted with the handler disabled")
	}
}

// ============================================================
// SID
// ============================================================

func TestSID_MeasuresRiseTime(t *testing.T) {
	s := NewScheduler()
	potX := NewLine("potx", s, nil)
	potY := NewLine("poty", s, nil)
	sense := &Interrupt{}
	sid := NewSID(s, sense, potX, potY)

	drv := potX.Driver("bridge")
	hold := 300 * time.Microsecond
	sense.SetHandler(func() {
		pull(drv, true)
		if hold > 0 {
			s.After(hold, func() { pull(drv, false) })
		}
	})
	sense.Enable()

	sid.Start()
	s.RunUntil(SIDPeriod)

	if sid.Cycles != 1 {
		t.Fatalf("cycles = %d", sid.Cycles)
	}
	if sid.PotX != 44 {
		t.Errorf("PotX = %d, want 44", sid.PotX)
	}
	if sid.PotY != 0 {
		t.Errorf("PotY = %d, want 0", sid.PotY)
	}

	// the next cycle is already running, the one after holds the line
	// low for the whole window and reads as maximum
	hold = 0
	s.RunUntil(3 * SIDPeriod)
	if sid.PotX != 255 {
		t.Errorf("PotX = %d, want 255", sid.PotX)
	}

	sid.Stop()
	cycles := sid.Cycles
	s.RunUntil(10 * SIDPeriod)
	if sid.Cycles != cycles {
		t.Error("stopped SID kept measuring")
	}
}

// ============================================================
// Mouse model
// ============================================================

func TestMouse_Scaling(t *testing.T) {
	m := &Mouse{Scaling: 2}
	tests := []struct{ in, want int }{
		{0, 0}, {1, 1}, {2, 1}, {3, 3}, {4, 6}, {5, 9}, {6, 12}, {40, 80},
		{-1, -1}, {-2, -1}, {-4, -6}, {-5, -9},
	}
	for _, tt := range tests {
		if got := m.scale(tt.in); got != tt.want {
			t.Errorf("scale(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}

	m.Scaling = 1
	if m.scale(5) != 5 {
		t.Error("1:1 scaling should pass deltas through")
	}
}

func TestMouse_PacketOverflow(t *testing.T) {
	m := &Mouse{Scaling: 1, buttons: 0x05}
	p := m.packet(300, -300)
	if p[0] != 0x08|0x05|0x40|0x80|0x20 {
		t.Errorf("status byte %08b", p[0])
	}
	if p[1] != 255 || p[2] != 0 {
		t.Errorf("deltas %d %d", p[1], p[2])
	}

	p = m.packet(-1, 1)
	if p[0] != 0x08|0x05|0x10 || p[1] != 0xFF || p[2] != 1 {
		t.Errorf("packet % x", p)
	}
}

func TestBoard_OutputsIdleHigh(t *testing.T) {
	b := NewBoard(0)
	for _, name := range []string{LinePotX, LinePotY, LineUp, LineDown, LineLeft, LineRight, LineFire} {
		if b.Asserted(name) {
			t.Errorf("%s asserted at power-on", name)
		}
	}
	if b.Asserted("nonexistent") {
		t.Error("unknown line reported asserted")
	}
	hw := b.HAL()
	if hw.Clock == nil || hw.Counter == nil || hw.PS2Edge == nil {
		t.Error("incomplete hal.Board")
	}
}
