// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sim

import "time"

// Device side PS/2 timing. A real mouse clocks at 10 to 16.7 kHz.
const (
	MouseHalfClock = 20 * time.Microsecond
	mouseDataSetup = 5 * time.Microsecond
	mouseRTSDelay  = 50 * time.Microsecond
	mouseByteGap   = 100 * time.Microsecond
	mouseStuckHold = 400 * time.Microsecond
)

// Device replies.
const (
	mouseAck        = 0xFA
	mouseResend     = 0xFE
	mouseError      = 0xFC
	mouseSelfTestOK = 0xAA
)

type mouseState int

const (
	mouseIdle mouseState = iota
	mouseSending
	mouseReceiving
)

// Mouse models a PS/2 mouse on a clock and a data line.
//
// It generates the clock for both directions, answers the standard command
// set and streams movement packets while reporting is enabled. Bytes whose
// transmission the host inhibits are retransmitted, except frames carrying
// an injected fault, which are dropped.
type Mouse struct {
	sched   *Scheduler
	clkLine *Line
	datLine *Line
	clk     *Pin
	dat     *Pin

	state   mouseState
	tx      []byte
	frame   [11]bool
	bit     int
	faulted bool
	kickEv  *Event
	resetEv *Event

	rxBits [10]bool
	rxBit  int

	pendingArg byte
	last       byte
	buttons    byte

	Reporting  bool
	Scaling    int
	Resolution byte
	SampleRate byte
	ID         byte

	// ResponseDelay is the time between receiving a command and queueing
	// the reply; SelfTestDelay is the duration of the power-on self test.
	ResponseDelay time.Duration
	SelfTestDelay time.Duration

	// ParityFaults sends the next n frames with inverted parity.
	ParityFaults int
	// Unresponsive ignores host requests to send.
	Unresponsive bool
	// FailResets answers the next n resets with an error code.
	FailResets int
	// NackBytes leaves the acknowledge bit released for the next n host
	// bytes, which are discarded.
	NackBytes int
	// StuckAcks keeps the data line low for a while after acknowledging the
	// next n host bytes, which are discarded.
	StuckAcks int
	// RejectArgs answers the next n command arguments with an error code.
	RejectArgs int

	Received   []byte
	Sent       []byte
	Aborted    int
	HostErrors int
}

// NewMouse attaches a mouse to the PS/2 clock and data lines.
func NewMouse(sched *Scheduler, clk, dat *Line) *Mouse {
	m := &Mouse{
		sched:         sched,
		clkLine:       clk,
		datLine:       dat,
		clk:           clk.Driver("mouse-clk"),
		dat:           dat.Driver("mouse-dat"),
		ResponseDelay: 300 * time.Microsecond,
		SelfTestDelay: 400 * time.Millisecond,
	}
	m.defaults()
	clk.OnRise(m.clockReleased)
	return m
}

func (m *Mouse) defaults() {
	m.Scaling = 1
	m.Resolution = 2
	m.SampleRate = 100
}

func pull(p *Pin, low bool) {
	p.Set(false)
	p.Output(low)
}

// Buttons returns the pressed buttons in packet order.
func (m *Mouse) Buttons() byte { return m.buttons }

// SetButtons changes the pressed buttons (bit 0 left, bit 1 right, bit 2
// middle) and reports the change when streaming.
func (m *Mouse) SetButtons(buttons byte) {
	buttons &= 0x07
	if buttons == m.buttons {
		return
	}
	m.buttons = buttons
	if m.Reporting {
		m.queue(m.packet(0, 0)...)
	}
}

// Move reports a movement when streaming. Deltas beyond the 9-bit range
// saturate and set the overflow flag.
func (m *Mouse) Move(dx, dy int, buttons byte) {
	m.buttons = buttons & 0x07
	if m.Reporting {
		m.queue(m.packet(dx, dy)...)
	}
}

// Inject queues raw bytes for transmission regardless of mode.
func (m *Mouse) Inject(bytes ...byte) {
	m.queue(bytes...)
}

// Idle reports whether the device has nothing to send and is not clocking.
func (m *Mouse) Idle() bool {
	return m.state == mouseIdle && len(m.tx) == 0
}

func (m *Mouse) scale(d int) int {
	if m.Scaling != 2 {
		return d
	}
	neg := d < 0
	if neg {
		d = -d
	}
	switch d {
	case 0, 1, 3:
	case 2:
		d = 1
	case 4:
		d = 6
	case 5:
		d = 9
	default:
		d *= 2
	}
	if neg {
		return -d
	}
	return d
}

func (m *Mouse) packet(dx, dy int) []byte {
	dx, dy = m.scale(dx), m.scale(dy)
	b0 := 0x08 | m.buttons
	clamp := func(d int, sign, ovf byte) byte {
		if d < -256 {
			d = -256
			b0 |= ovf
		} else if d > 255 {
			d = 255
			b0 |= ovf
		}
		if d < 0 {
			b0 |= sign
		}
		return byte(d)
	}
	x := clamp(dx, 0x10, 0x40)
	y := clamp(dy, 0x20, 0x80)
	return []byte{b0, x, y}
}

func (m *Mouse) status() byte {
	var s byte
	if m.Reporting {
		s |= 0x20
	}
	if m.Scaling == 2 {
		s |= 0x10
	}
	if m.buttons&0x01 != 0 {
		s |= 0x04
	}
	if m.buttons&0x04 != 0 {
		s |= 0x02
	}
	if m.buttons&0x02 != 0 {
		s |= 0x01
	}
	return s
}

func (m *Mouse) queue(bytes ...byte) {
	m.tx = append(m.tx, bytes...)
	m.scheduleKick(mouseByteGap)
}

func (m *Mouse) respond(bytes ...byte) {
	m.sched.After(m.ResponseDelay, func() { m.queue(bytes...) })
}

func (m *Mouse) scheduleKick(d time.Duration) {
	if m.kickEv != nil {
		return
	}
	m.kickEv = m.sched.After(d, m.kick)
}

func (m *Mouse) clockReleased() {
	if m.state != mouseIdle {
		return
	}
	if !m.datLine.Level() {
		if m.Unresponsive {
			return
		}
		m.sched.Cancel(m.kickEv)
		m.kickEv = nil
		m.state = mouseReceiving
		m.rxBit = 0
		m.sched.After(mouseRTSDelay, m.receiveClock)
		return
	}
	if len(m.tx) > 0 {
		m.scheduleKick(mouseByteGap)
	}
}

func (m *Mouse) kick() {
	m.kickEv = nil
	if m.state != mouseIdle || len(m.tx) == 0 {
		return
	}
	if !m.clkLine.Level() || !m.datLine.Level() {
		// inhibited or host request pending; clockReleased restarts us
		return
	}
	b := m.tx[0]
	parity := true
	for i := 0; i < 8; i++ {
		bit := b&(1<<i) != 0
		m.frame[1+i] = bit
		if bit {
			parity = !parity
		}
	}
	m.faulted = m.ParityFaults > 0
	if m.faulted {
		m.ParityFaults--
		parity = !parity
	}
	m.frame[0] = false
	m.frame[9] = parity
	m.frame[10] = true
	m.bit = 0
	m.state = mouseSending
	m.sendBit()
}

func (m *Mouse) sendBit() {
	if !m.clkLine.Level() {
		m.abort()
		return
	}
	pull(m.dat, !m.frame[m.bit])
	m.sched.After(mouseDataSetup, func() {
		pull(m.clk, true)
		m.sched.After(MouseHalfClock, func() {
			pull(m.clk, false)
			if !m.clkLine.Level() {
				m.abort()
				return
			}
			m.sched.After(MouseHalfClock-mouseDataSetup, func() {
				m.bit++
				if m.bit == len(m.frame) {
					m.finish()
					return
				}
				m.sendBit()
			})
		})
	})
}

func (m *Mouse) abort() {
	pull(m.dat, false)
	pull(m.clk, false)
	m.Aborted++
	if m.faulted && len(m.tx) > 0 {
		m.tx = m.tx[1:]
	}
	m.faulted = false
	m.state = mouseIdle
	if m.clkLine.Level() && m.datLine.Level() && len(m.tx) > 0 {
		m.scheduleKick(mouseByteGap)
	}
}

func (m *Mouse) finish() {
	pull(m.dat, false)
	m.last = m.tx[0]
	m.Sent = append(m.Sent, m.tx[0])
	m.tx = m.tx[1:]
	m.faulted = false
	m.state = mouseIdle
	if len(m.tx) > 0 {
		m.scheduleKick(mouseByteGap)
	}
}

// receiveClock clocks one host bit: the host changes data while the clock
// is low and the device samples it after the rising edge.
func (m *Mouse) receiveClock() {
	pull(m.clk, true)
	m.sched.After(MouseHalfClock, func() {
		pull(m.clk, false)
		m.sched.After(mouseDataSetup, func() {
			m.rxBits[m.rxBit] = m.datLine.Level()
			m.rxBit++
			next := m.receiveClock
			if m.rxBit == len(m.rxBits) {
				next = m.acknowledge
			}
			m.sched.After(MouseHalfClock-mouseDataSetup, next)
		})
	})
}

func (m *Mouse) acknowledge() {
	var b byte
	ones := 0
	for i := 0; i < 8; i++ {
		if m.rxBits[i] {
			b |= 1 << i
			ones++
		}
	}
	if m.rxBits[8] {
		ones++
	}
	valid := ones%2 == 1 && m.rxBits[9]

	nack := m.NackBytes > 0
	if nack {
		m.NackBytes--
	}
	stuck := !nack && m.StuckAcks > 0
	if stuck {
		m.StuckAcks--
	}

	pull(m.dat, !nack)
	m.sched.After(mouseDataSetup, func() {
		pull(m.clk, true)
		m.sched.After(MouseHalfClock, func() {
			pull(m.clk, false)
			m.sched.After(mouseDataSetup, func() {
				if stuck {
					m.sched.After(mouseStuckHold, m.release)
					return
				}
				m.release()
				switch {
				case nack:
				case !valid:
					m.HostErrors++
					m.respond(mouseResend)
				default:
					m.command(b)
				}
			})
		})
	})
}

// release ends a reception: the data line is let go and pending bytes are
// sent.
func (m *Mouse) release() {
	pull(m.dat, false)
	m.state = mouseIdle
	if len(m.tx) > 0 {
		m.scheduleKick(mouseByteGap)
	}
}

func (m *Mouse) command(b byte) {
	m.Received = append(m.Received, b)
	if m.pendingArg != 0 && m.RejectArgs > 0 {
		m.RejectArgs--
		m.pendingArg = 0
		m.respond(mouseError)
		return
	}
	if m.pendingArg != 0 {
		switch m.pendingArg {
		case 0xE8:
			m.Resolution = b & 0x03
		case 0xF3:
			m.SampleRate = b
		}
		m.pendingArg = 0
		m.respond(mouseAck)
		return
	}
	switch b {
	case 0xFF:
		m.tx = m.tx[:0]
		m.Reporting = false
		m.defaults()
		m.respond(mouseAck)
		m.sched.Cancel(m.resetEv)
		m.resetEv = m.sched.After(m.SelfTestDelay, func() {
			m.resetEv = nil
			if m.FailResets > 0 {
				m.FailResets--
				m.queue(mouseError)
				return
			}
			m.queue(mouseSelfTestOK, m.ID)
		})
	case 0xFE:
		m.respond(m.last)
	case 0xF6:
		m.defaults()
		m.respond(mouseAck)
	case 0xF5:
		m.Reporting = false
		m.respond(mouseAck)
	case 0xF4:
		m.Reporting = true
		m.respond(mouseAck)
	case 0xF3, 0xE8:
		m.pendingArg = b
		m.respond(mouseAck)
	case 0xF2:
		m.respond(mouseAck, m.ID)
	case 0xF0, 0xEE, 0xEC, 0xEA:
		m.respond(mouseAck)
	case 0xEB:
		m.respond(append([]byte{mouseAck}, m.packet(0, 0)...)...)
	case 0xE9:
		m.respond(mouseAck, m.status(), m.Resolution, m.SampleRate)
	case 0xE7:
		m.Scaling = 2
		m.respond(mouseAck)
	case 0xE6:
		m.Scaling = 1
		m.respond(mouseAck)
	default:
		m.respond(mouseResend)
	}
}
