// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ps2

import (
	"context"
	"sync/atomic"

	"github.com/Thermoquad/potmouse/pkg/hal"
)

// Engine is the PS/2 host link.
//
// state is written by the two handlers and, only through a compare and swap
// out of Idle, by Send. The remaining fields below state belong to whichever
// handler owns the current state.
type Engine struct {
	clk   hal.Pin
	dat   hal.Pin
	edge  hal.Interrupt
	timer hal.Timer
	clock hal.Clock

	state  atomic.Uint32
	queue  Queue
	stats  Stats
	result atomic.Pointer[error]

	shift  byte
	bits   uint8
	parity bool
	tx     byte
	barks  uint8
	polls  uint8
}

// New creates an engine on the given clock and data pins and binds the
// handlers to edge and timer. The engine starts in Idle with reception
// disabled; call EnableReceive to start listening.
func New(clk, dat hal.Pin, edge hal.Interrupt, timer hal.Timer, clock hal.Clock) *Engine {
	e := &Engine{clk: clk, dat: dat, edge: edge, timer: timer, clock: clock}
	edge.SetHandler(e.HandleClockEdge)
	timer.SetHandler(e.HandleTimer)
	e.Init()
	return e
}

// Init resets the link: Idle, empty queue, edge interrupt disabled, both
// lines released.
func (e *Engine) Init() {
	e.edge.Disable()
	e.timer.Stop()
	e.clk.Output(false)
	e.dat.Output(false)
	e.state.Store(uint32(Idle))
	e.queue.Reset()
}

// State returns the current link state.
func (e *Engine) State() LinkState { return LinkState(e.state.Load()) }

// IsBusy reports whether the link is anywhere but Idle.
func (e *Engine) IsBusy() bool { return e.State() != Idle }

// ByteAvailable reports whether a received byte is waiting.
func (e *Engine) ByteAvailable() bool { return e.queue.Available() }

// GetByte pops the oldest received byte. ByteAvailable must be true.
func (e *Engine) GetByte() byte { return e.queue.Pop() }

// Stats returns a snapshot of the link counters.
func (e *Engine) Stats() Snapshot {
	return Snapshot{
		Received:      e.stats.received.Load(),
		Sent:          e.stats.sent.Load(),
		StartErrors:   e.stats.startErrors.Load(),
		ParityErrors:  e.stats.parityErrors.Load(),
		StopErrors:    e.stats.stopErrors.Load(),
		AckErrors:     e.stats.ackErrors.Load(),
		Watchdogs:     e.stats.watchdogs.Load(),
		ReleaseErrors: e.stats.releaseErrors.Load(),
		Recoveries:    e.stats.recoveries.Load(),
		Overflows:     uint64(e.queue.Overflows()),
	}
}

// EnableReceive releases both lines and arms the clock edge interrupt, or
// disarms it and holds the clock low so the device cannot send.
func (e *Engine) EnableReceive(enable bool) {
	if enable {
		e.state.Store(uint32(Idle))
		e.clk.Output(false)
		e.dat.Output(false)
		e.edge.Enable()
		return
	}
	e.edge.Disable()
	e.clk.Set(false)
	e.clk.Output(true)
	e.dat.Output(false)
}

// SendByte transmits b and blocks until the device acknowledged it or the
// link recovered from a failed attempt.
func (e *Engine) SendByte(b byte) error {
	return e.Send(context.Background(), b)
}

// Send is SendByte with cancellation. It first waits for Idle, so an
// incoming frame is never cut short. Cancelling while the frame is in
// flight returns early; the link still finishes or recovers on its own.
func (e *Engine) Send(ctx context.Context, b byte) error {
	for !e.state.CompareAndSwap(uint32(Idle), uint32(TxRequest)) {
		if err := e.yield(ctx); err != nil {
			return err
		}
	}
	e.result.Store(nil)
	e.EnableReceive(false)
	e.tx = b
	e.timer.Start(RequestToSend)
	for e.State() != Idle {
		if err := e.yield(ctx); err != nil {
			return err
		}
	}
	if err := e.result.Load(); err != nil {
		return *err
	}
	return nil
}

func (e *Engine) yield(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.clock.Yield()
	return nil
}

func (e *Engine) set(s LinkState) { e.state.Store(uint32(s)) }

// HandleClockEdge runs on every falling edge of the clock line.
func (e *Engine) HandleClockEdge() {
	in := e.dat.Get()

	switch e.State() {
	case Idle:
		if in {
			e.fail(ErrStartBit)
			return
		}
		e.shift = 0
		e.bits = 8
		e.parity = false
		e.set(RxData)

	case RxData:
		e.shift >>= 1
		if in {
			e.shift |= 0x80
			e.parity = !e.parity
		}
		e.bits--
		if e.bits == 0 {
			e.set(RxParity)
		}

	case RxParity:
		if in {
			e.parity = !e.parity
		}
		if !e.parity {
			e.fail(ErrParity)
			return
		}
		e.set(RxStop)

	case RxStop:
		if !in {
			e.fail(ErrStopBit)
			return
		}
		e.queue.Push(e.shift)
		e.stats.received.Add(1)
		e.set(Idle)

	case TxData:
		bit := e.tx&1 != 0
		e.dat.Set(bit)
		if bit {
			e.parity = !e.parity
		}
		e.tx >>= 1
		e.bits--
		if e.bits == 0 {
			e.set(TxParity)
		}

	case TxParity:
		e.dat.Set(!e.parity)
		e.set(TxStop)

	case TxStop:
		e.dat.Set(false)
		e.dat.Output(false)
		e.clk.Output(false)
		e.set(TxAck)

	case TxAck:
		if in {
			e.fail(ErrAck)
			return
		}
		e.polls = LineReleasePolls
		e.set(TxEnd)
		e.timer.Start(LineReleasePoll)
	}
}

// HandleTimer runs on every expiry of the link timer: the request to send
// delay, the transmit watchdog, the line release poll and the recovery delay
// all share it.
func (e *Engine) HandleTimer() {
	switch e.State() {
	case Error:
		e.timer.Stop()
		e.clk.Set(false)
		e.dat.Set(false)
		e.stats.recoveries.Add(1)
		e.EnableReceive(true)

	case TxRequest:
		e.barks = WatchdogBarks
		e.timer.Start(BarkInterval)
		e.dat.Set(false)
		e.dat.Output(true)
		e.clk.Output(false)
		e.bits = 8
		e.parity = false
		e.set(TxData)
		e.edge.Enable()

	case TxEnd:
		if e.clk.Get() && e.dat.Get() {
			e.timer.Stop()
			e.stats.sent.Add(1)
			e.set(Idle)
			return
		}
		if e.polls == 0 {
			e.fail(ErrLineRelease)
			return
		}
		e.polls--

	default:
		if e.barks == 0 {
			e.fail(ErrWatchdog)
			return
		}
		e.barks--
	}
}

// fail enters Error and starts recovery: reception is inhibited and the
// timer returns the link to Idle after RecoveryDelay.
func (e *Engine) fail(err error) {
	e.stats.count(err)
	if e.State().Transmitting() {
		e.result.Store(&err)
	}
	e.set(Error)
	e.EnableReceive(false)
	e.timer.Start(RecoveryDelay)
}
