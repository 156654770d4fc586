// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package c1351

import (
	"testing"
	"time"

	"github.com/Thermoquad/potmouse/pkg/hal"
	"github.com/Thermoquad/potmouse/pkg/mouse"
	"github.com/Thermoquad/potmouse/pkg/sim"
)

// ============================================================
// Test Helpers
// ============================================================

func newTestEmulator(t *testing.T) (*Emulator, *sim.Board) {
	t.Helper()
	board := sim.NewBoard(0)
	hw := board.HAL()
	out := Outputs{
		PotX:  hw.PotX,
		PotY:  hw.PotY,
		Up:    hw.Up,
		Down:  hw.Down,
		Left:  hw.Left,
		Right: hw.Right,
		Fire:  hw.Fire,
	}
	return New(out, hw.Sense, hw.Counter), board
}

// ============================================================
// Position and Target
// ============================================================

func TestTarget(t *testing.T) {
	tests := []struct {
		zero    uint16
		counter uint8
		want    uint16
	}{
		{320, 0, 320},
		{320, 1, 322},
		{320, 48, 420},
		{320, 63, 451},
		{300, 10, 320},
		{320, 64, 320}, // only the low 6 bits count
	}
	for _, tt := range tests {
		if got := Target(tt.zero, tt.counter); got != tt.want {
			t.Errorf("Target(%d, %d) = %d, expected %d", tt.zero, tt.counter, got, tt.want)
		}
	}
}

func TestPosition_WrapsModulo64(t *testing.T) {
	for start := uint8(0); start < 64; start += 7 {
		p := Position{X: start, Y: 63 - start}
		x0, y0 := p.Targets(DefaultZeroPoint)
		for i := 0; i < 64; i++ {
			p.Apply(1, -1)
		}
		if p.X != start || p.Y != 63-start {
			t.Fatalf("start %d: position %+v after 64 steps", start, p)
		}
		x1, y1 := p.Targets(DefaultZeroPoint)
		if x0 != x1 || y0 != y1 {
			t.Errorf("start %d: targets changed %d/%d -> %d/%d", start, x0, y0, x1, y1)
		}
	}
}

func TestPosition_LargeDeltas(t *testing.T) {
	var p Position
	p.Apply(-1, 0)
	if p.X != 63 {
		t.Errorf("0-1 = %d, expected 63", p.X)
	}
	p.Apply(-256, 255)
	if p.X != 63 || p.Y != 63 {
		t.Errorf("position %+v, expected 63/63", p)
	}
}

// ============================================================
// Analog Mode
// ============================================================

func TestAnalog_PulseDelaysMeasured(t *testing.T) {
	e, board := newTestEmulator(t)
	e.Start(ModeAnalog)
	e.OnMovement(10, 5, 0)

	board.SID.Start()
	board.Sched.Delay(2 * time.Millisecond)

	wantX := uint8(Target(DefaultZeroPoint, 10) - 256)
	wantY := uint8(Target(DefaultZeroPoint, 5) - 256)
	if board.SID.PotX != wantX || board.SID.PotY != wantY {
		t.Errorf("measured %d/%d, expected %d/%d", board.SID.PotX, board.SID.PotY, wantX, wantY)
	}
	if e.Syncs() == 0 {
		t.Error("no sync edges served")
	}

	e.SetZeroPoint(300)
	board.Sched.Delay(2 * time.Millisecond)
	if board.SID.PotX != wantX-20 {
		t.Errorf("after zero point change measured %d, expected %d", board.SID.PotX, wantX-20)
	}
}

func TestAnalog_Buttons(t *testing.T) {
	e, board := newTestEmulator(t)
	e.Start(ModeAnalog)

	e.OnMovement(0, 0, mouse.ButtonLeft|mouse.ButtonMiddle)
	if !board.Asserted(sim.LineFire) || !board.Asserted(sim.LineDown) || board.Asserted(sim.LineUp) {
		t.Error("left should close fire and middle should close down")
	}

	e.OnMovement(0, 0, mouse.ButtonRight)
	if board.Asserted(sim.LineFire) || board.Asserted(sim.LineDown) || !board.Asserted(sim.LineUp) {
		t.Error("right alone should close up")
	}
}

func TestAnalog_SyncIgnoredInJoystickMode(t *testing.T) {
	e, board := newTestEmulator(t)
	e.Start(ModeJoystick)
	if board.Sense.Enabled() {
		t.Error("sense interrupt should be disabled in joystick mode")
	}
	e.OnSyncEdge()
	if e.Syncs() != 0 {
		t.Error("sync edge served in joystick mode")
	}
}

// ============================================================
// Joystick Mode
// ============================================================

func TestJoystick_Pulse(t *testing.T) {
	e, board := newTestEmulator(t)
	e.Start(ModeJoystick)

	e.OnMovement(-3, 2, mouse.ButtonLeft|mouse.ButtonRight)
	for _, line := range []string{sim.LineLeft, sim.LineUp, sim.LineFire, sim.LinePotX} {
		if !board.Asserted(line) {
			t.Errorf("%s should be asserted", line)
		}
	}
	for _, line := range []string{sim.LineRight, sim.LineDown} {
		if board.Asserted(line) {
			t.Errorf("%s should be released", line)
		}
	}

	board.Sched.Delay(30 * time.Millisecond)
	if !board.Asserted(sim.LineLeft) {
		t.Fatal("pulse ended early")
	}
	board.Sched.Delay(5 * time.Millisecond)
	for _, line := range []string{sim.LineLeft, sim.LineUp, sim.LineFire, sim.LinePotX} {
		if board.Asserted(line) {
			t.Errorf("%s still asserted after the pulse", line)
		}
	}
	if e.Pulses() != 1 {
		t.Errorf("Pulses() = %d, expected 1", e.Pulses())
	}
}

func TestJoystick_NewMovementReplacesDirections(t *testing.T) {
	e, board := newTestEmulator(t)
	e.Start(ModeJoystick)

	e.OnMovement(1, 0, 0)
	board.Sched.Delay(20 * time.Millisecond)
	e.OnMovement(-1, 0, 0)
	if board.Asserted(sim.LineRight) || !board.Asserted(sim.LineLeft) {
		t.Error("second movement should replace the first")
	}

	// the pulse restarts with every movement
	board.Sched.Delay(25 * time.Millisecond)
	if !board.Asserted(sim.LineLeft) {
		t.Error("pulse not restarted")
	}
}

// ============================================================
// Mode Switch
// ============================================================

func TestModeSwitch_ReleasesBeforeAsserting(t *testing.T) {
	e, board := newTestEmulator(t)
	e.Start(ModeAnalog)
	e.OnMovement(0, 0, mouse.ButtonRight)
	if !board.Asserted(sim.LineUp) {
		t.Fatal("analog button output not asserted")
	}

	mark := len(board.Trace.Entries())
	e.Start(ModeJoystick)
	if board.Asserted(sim.LineUp) {
		t.Fatal("analog button output survived the mode switch")
	}
	e.OnMovement(1, 1, mouse.ButtonLeft)

	released := board.Trace.Find(mark, sim.LineUp, true)
	if released < 0 {
		t.Fatal("no release recorded")
	}
	for _, line := range []string{sim.LineUp, sim.LineDown, sim.LineLeft, sim.LineRight, sim.LineFire, sim.LinePotX} {
		if i := board.Trace.Find(mark, line, false); i >= 0 && i < released {
			t.Errorf("%s asserted at %d before the analog output was released at %d", line, i, released)
		}
	}
	if !board.Asserted(sim.LineUp) || !board.Asserted(sim.LineRight) || !board.Asserted(sim.LineFire) {
		t.Error("joystick outputs not asserted after the switch")
	}
	if board.Counter.Mode() != hal.CompareDisconnected {
		t.Errorf("compare outputs still connected: %s", board.Counter.Mode())
	}
}

func TestModeSwitch_BackToAnalog(t *testing.T) {
	e, board := newTestEmulator(t)
	e.Start(ModeJoystick)
	e.OnMovement(-1, -1, 0)

	e.Start(ModeAnalog)
	for _, line := range []string{sim.LineLeft, sim.LineDown} {
		if board.Asserted(line) {
			t.Errorf("%s still asserted in analog mode", line)
		}
	}
	if !board.Sense.Enabled() {
		t.Error("sense interrupt not enabled")
	}
	// a stale pulse timeout must not disturb analog mode
	board.Sched.Delay(40 * time.Millisecond)
	if e.Mode() != ModeAnalog {
		t.Errorf("mode %s", e.Mode())
	}
}
