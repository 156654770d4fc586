// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ps2

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Thermoquad/potmouse/pkg/sim"
)

// ============================================================
// Test Helpers
// ============================================================

func newTestLink(t *testing.T) (*Engine, *sim.Board) {
	t.Helper()
	board := sim.NewBoard(0)
	e := New(board.HostClk, board.HostDat, board.PS2Edge, board.PS2Timer, board.Sched)
	e.EnableReceive(true)
	return e, board
}

// feed clocks a frame into the engine by driving the data line directly and
// calling the edge handler once per bit.
func feed(e *Engine, drv *sim.Pin, f Frame) {
	for i := 0; i < FrameBits; i++ {
		drv.Set(false)
		drv.Output(!f.Bit(i))
		e.HandleClockEdge()
	}
	drv.Output(false)
}

// ============================================================
// Reception
// ============================================================

func TestEngine_ReceivesEveryByte(t *testing.T) {
	e, board := newTestLink(t)

	for i := 0; i < 256; i++ {
		board.Mouse.Inject(byte(i))
		board.Sched.Delay(2 * time.Millisecond)

		if !e.ByteAvailable() {
			t.Fatalf("0x%02X: no byte received", i)
		}
		if got := e.GetByte(); got != byte(i) {
			t.Fatalf("received 0x%02X, expected 0x%02X", got, i)
		}
		if e.State() != Idle {
			t.Fatalf("0x%02X: state %s after frame, expected IDLE", i, e.State())
		}
	}

	stats := e.Stats()
	if stats.Received != 256 || stats.Errors() != 0 {
		t.Errorf("unexpected stats: %s", stats)
	}
}

func TestEngine_ReceiveStates(t *testing.T) {
	e, board := newTestLink(t)
	drv := board.PS2Data.Driver("test")
	f := EncodeFrame(0x81)

	expected := []LinkState{RxData, RxData, RxData, RxData, RxData, RxData, RxData, RxData, RxParity, RxStop, Idle}
	for i := 0; i < FrameBits; i++ {
		drv.Set(false)
		drv.Output(!f.Bit(i))
		e.HandleClockEdge()
		if e.State() != expected[i] {
			t.Fatalf("after bit %d: state %s, expected %s", i, e.State(), expected[i])
		}
	}
	if got := e.GetByte(); got != 0x81 {
		t.Errorf("received 0x%02X, expected 0x81", got)
	}
}

func TestEngine_FramingErrors(t *testing.T) {
	good := EncodeFrame(0x3C)
	tests := []struct {
		name  string
		frame Frame
		count func(Snapshot) uint64
	}{
		{"parity", good.WithBit(9, !good.Bit(9)), func(s Snapshot) uint64 { return s.ParityErrors }},
		{"stop bit", good.WithBit(10, false), func(s Snapshot) uint64 { return s.StopErrors }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, board := newTestLink(t)
			drv := board.PS2Data.Driver("test")

			feed(e, drv, tt.frame)
			if e.State() != Error {
				t.Fatalf("state %s, expected ERROR", e.State())
			}
			if board.PS2Edge.Enabled() {
				t.Error("edge interrupt should be disabled during recovery")
			}
			if board.PS2Clock.Level() {
				t.Error("clock should be held low during recovery")
			}

			board.Sched.Delay(RecoveryDelay + 10*time.Microsecond)
			if e.State() != Idle {
				t.Fatalf("state %s after recovery, expected IDLE", e.State())
			}
			if !board.PS2Edge.Enabled() {
				t.Error("edge interrupt should be re-enabled")
			}
			if e.ByteAvailable() {
				t.Error("bad frame must not reach the queue")
			}
			stats := e.Stats()
			if tt.count(stats) != 1 || stats.Recoveries != 1 {
				t.Errorf("unexpected stats: %s", stats)
			}

			feed(e, drv, EncodeFrame(0x99))
			if got := e.GetByte(); got != 0x99 {
				t.Errorf("received 0x%02X after recovery, expected 0x99", got)
			}
		})
	}
}

func TestEngine_StartBitError(t *testing.T) {
	e, board := newTestLink(t)

	// data line idles high: an edge here is not a start bit
	e.HandleClockEdge()
	if e.State() != Error {
		t.Fatalf("state %s, expected ERROR", e.State())
	}
	board.Sched.Delay(2 * RecoveryDelay)
	if e.State() != Idle {
		t.Errorf("state %s, expected IDLE", e.State())
	}
	if e.Stats().StartErrors != 1 {
		t.Errorf("StartErrors = %d, expected 1", e.Stats().StartErrors)
	}
}

func TestEngine_ParityFaultFromDevice(t *testing.T) {
	e, board := newTestLink(t)
	board.Mouse.ParityFaults = 1

	board.Mouse.Inject(0x42)
	board.Sched.Delay(700 * time.Microsecond)
	if e.State() != Error {
		t.Fatalf("state %s, expected ERROR", e.State())
	}

	board.Sched.Delay(RecoveryDelay)
	if e.State() != Idle {
		t.Fatalf("state %s, expected IDLE", e.State())
	}
	if e.ByteAvailable() {
		t.Fatal("corrupted frame reached the queue")
	}

	// reception works again
	board.Mouse.Inject(0x55)
	board.Sched.Delay(2 * time.Millisecond)
	if !e.ByteAvailable() || e.GetByte() != 0x55 {
		t.Error("byte after recovery not received")
	}
	if e.Stats().ParityErrors != 1 {
		t.Errorf("ParityErrors = %d, expected 1", e.Stats().ParityErrors)
	}
}

func TestEngine_QueueOverflow(t *testing.T) {
	e, board := newTestLink(t)
	drv := board.PS2Data.Driver("test")

	for i := 1; i <= QueueSize+1; i++ {
		feed(e, drv, EncodeFrame(byte(i)))
	}
	if got := e.GetByte(); got != 2 {
		t.Errorf("oldest byte = %d, expected 2", got)
	}
	if e.Stats().Overflows != 1 {
		t.Errorf("Overflows = %d, expected 1", e.Stats().Overflows)
	}
}

// ============================================================
// Transmission
// ============================================================

func TestEngine_TransmitsEveryByte(t *testing.T) {
	e, board := newTestLink(t)

	for i := 0; i < 256; i++ {
		if err := e.SendByte(byte(i)); err != nil {
			t.Fatalf("0x%02X: %v", i, err)
		}
		if e.State() != Idle {
			t.Fatalf("0x%02X: state %s after send", i, e.State())
		}
		rx := board.Mouse.Received
		if len(rx) == 0 || rx[len(rx)-1] != byte(i) {
			t.Fatalf("0x%02X: device did not receive the byte", i)
		}
	}

	if board.Mouse.HostErrors != 0 {
		t.Errorf("device saw %d bad frames", board.Mouse.HostErrors)
	}
	if sent := e.Stats().Sent; sent != 256 {
		t.Errorf("Sent = %d, expected 256", sent)
	}
}

func TestEngine_SendWaitsForReception(t *testing.T) {
	e, board := newTestLink(t)

	board.Mouse.Inject(0x33)
	board.Sched.Delay(300 * time.Microsecond)
	if !e.State().Receiving() {
		t.Fatalf("state %s, expected a receive state", e.State())
	}

	if err := e.SendByte(0xF5); err != nil {
		t.Fatalf("SendByte: %v", err)
	}
	if !e.ByteAvailable() || e.GetByte() != 0x33 {
		t.Error("frame in progress was cut short")
	}
	rx := board.Mouse.Received
	if len(rx) != 1 || rx[0] != 0xF5 {
		t.Errorf("device received %X, expected [F5]", rx)
	}
}

func TestEngine_ReplyAfterCommand(t *testing.T) {
	e, board := newTestLink(t)

	if err := e.SendByte(0xF2); err != nil {
		t.Fatalf("SendByte: %v", err)
	}
	board.Sched.Delay(5 * time.Millisecond)

	var got []byte
	for e.ByteAvailable() {
		got = append(got, e.GetByte())
	}
	if len(got) != 2 || got[0] != 0xFA || got[1] != 0x00 {
		t.Errorf("reply = %X, expected [FA 00]", got)
	}
}

func TestEngine_Watchdog(t *testing.T) {
	e, board := newTestLink(t)
	board.Mouse.Unresponsive = true

	start := board.Sched.Now()
	err := e.SendByte(0xF4)
	elapsed := board.Sched.Now() - start

	if !errors.Is(err, ErrWatchdog) {
		t.Fatalf("expected ErrWatchdog, got %v", err)
	}
	if e.State() != Idle {
		t.Errorf("state %s, expected IDLE", e.State())
	}
	if elapsed < 160*time.Millisecond || elapsed > 180*time.Millisecond {
		t.Errorf("watchdog fired after %s, expected about 170ms", elapsed)
	}
	if e.Stats().Watchdogs != 1 {
		t.Errorf("Watchdogs = %d, expected 1", e.Stats().Watchdogs)
	}

	board.Mouse.Unresponsive = false
	if err := e.SendByte(0xF4); err != nil {
		t.Errorf("send after watchdog recovery: %v", err)
	}
}

func TestEngine_TransmitFaults(t *testing.T) {
	tests := []struct {
		name   string
		fault  func(m *sim.Mouse)
		err    error
		minDur time.Duration
		count  func(s Snapshot) uint64
	}{
		{
			name:   "device nack",
			fault:  func(m *sim.Mouse) { m.NackBytes = 1 },
			err:    ErrAck,
			minDur: RecoveryDelay,
			count:  func(s Snapshot) uint64 { return s.AckErrors },
		},
		{
			name:   "data held after ack",
			fault:  func(m *sim.Mouse) { m.StuckAcks = 1 },
			err:    ErrLineRelease,
			minDur: RecoveryDelay + LineReleasePolls*LineReleasePoll,
			count:  func(s Snapshot) uint64 { return s.ReleaseErrors },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, board := newTestLink(t)
			tt.fault(board.Mouse)

			start := board.Sched.Now()
			err := e.SendByte(0xF4)
			elapsed := board.Sched.Now() - start

			if !errors.Is(err, tt.err) {
				t.Fatalf("expected %v, got %v", tt.err, err)
			}
			if e.State() != Idle {
				t.Errorf("state %s, expected IDLE", e.State())
			}
			if elapsed < tt.minDur {
				t.Errorf("returned after %s, expected at least %s", elapsed, tt.minDur)
			}
			stats := e.Stats()
			if tt.count(stats) != 1 || stats.Recoveries != 1 || stats.Sent != 0 {
				t.Errorf("stats %s", stats)
			}
			if len(board.Mouse.Received) != 0 {
				t.Errorf("device kept %X", board.Mouse.Received)
			}

			if err := e.SendByte(0xF4); err != nil {
				t.Fatalf("send after recovery: %v", err)
			}
			if len(board.Mouse.Received) != 1 || board.Mouse.Received[0] != 0xF4 {
				t.Errorf("device received %X, expected [F4]", board.Mouse.Received)
			}
		})
	}
}

func TestEngine_InhibitHoldsClockLow(t *testing.T) {
	e, board := newTestLink(t)

	e.EnableReceive(false)
	if board.HostClk.Get() {
		t.Error("clock should be held low while reception is disabled")
	}

	e.EnableReceive(true)
	if !board.HostClk.Get() {
		t.Error("clock should be released when reception is enabled")
	}
	if e.IsBusy() {
		t.Errorf("state %s after enabling reception", e.State())
	}
}

func TestEngine_SendCancelledWhileBusy(t *testing.T) {
	e, _ := newTestLink(t)
	e.set(RxData)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Send(ctx, 0xF4); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if e.State() != RxData {
		t.Errorf("state %s, expected RX_DATA untouched", e.State())
	}
}

func TestLinkState_String(t *testing.T) {
	if Idle.String() != "IDLE" || TxEnd.String() != "TX_END" || Error.String() != "ERROR" {
		t.Error("unexpected state names")
	}
	if LinkState(99).String() != "UNKNOWN" {
		t.Error("out of range state should be UNKNOWN")
	}
}
