// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/Thermoquad/potmouse/pkg/bridge"
	"github.com/Thermoquad/potmouse/pkg/c1351"
	"github.com/Thermoquad/potmouse/pkg/mouse"
	"github.com/Thermoquad/potmouse/pkg/ps2"
)

// byteStream moves bytes from a connection into the same receive ring the
// bridge fills from its clock interrupt. The reader goroutine is the only
// producer; the command loop is the only consumer. Unlike the interrupt,
// the reader waits for room instead of overwriting. It implements
// bridge.Source.
type byteStream struct {
	conn    Connection
	queue   ps2.Queue
	ready   chan struct{}
	drained chan struct{}
	errs    chan error
}

func newByteStream(conn Connection) *byteStream {
	return &byteStream{
		conn:    conn,
		ready:   make(chan struct{}, 1),
		drained: make(chan struct{}, 1),
		errs:    make(chan error, 1),
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// start launches the reader goroutine. It stops on the first read error,
// which is delivered on errs.
func (s *byteStream) start() {
	go func() {
		buf := make([]byte, 128)
		for {
			n, err := s.conn.Read(buf)
			for i := 0; i < n; i++ {
				for s.queue.Len() >= ps2.QueueSize {
					notify(s.ready)
					<-s.drained
				}
				s.queue.Push(buf[i])
			}
			if n > 0 {
				notify(s.ready)
			}
			if err != nil {
				s.errs <- err
				return
			}
		}
	}()
}

// poll drains the ring through r and lets the reader continue.
func (s *byteStream) poll(r *bridge.Router) int {
	n := r.Poll()
	notify(s.drained)
	return n
}

func (s *byteStream) ByteAvailable() bool { return s.queue.Available() }

func (s *byteStream) GetByte() byte { return s.queue.Pop() }

// Overflows returns the bytes lost because the command loop fell behind.
func (s *byteStream) Overflows() uint32 { return s.queue.Overflows() }

// positionSink follows the pot counters a bridge would output for the
// movements it is given.
type positionSink struct {
	pos     c1351.Position
	zero    uint16
	buttons mouse.Buttons

	// onMove, when set, runs after every movement.
	onMove func(p *positionSink)
}

func (p *positionSink) OnMovement(dx, dy int16, buttons mouse.Buttons) {
	p.pos.Apply(dx, dy)
	p.buttons = buttons
	if p.onMove != nil {
		p.onMove(p)
	}
}

func (p *positionSink) String() string {
	x, y := p.pos.Targets(p.zero)
	return fmt.Sprintf("pot x=%2d (%3dus) y=%2d (%3dus)", p.pos.X, x, p.pos.Y, y)
}

// joystickLines renders the control port switches, closed ones by letter.
func joystickLines(up, down, left, right, fire bool) string {
	var b strings.Builder
	for _, l := range []struct {
		on bool
		c  byte
	}{{up, 'U'}, {down, 'D'}, {left, 'L'}, {right, 'R'}, {fire, 'F'}} {
		if l.on {
			b.WriteByte(l.c)
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}
