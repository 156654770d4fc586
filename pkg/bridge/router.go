// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bridge connects the PS/2 side to the control port side.
//
// The Router is the main loop body: it drains received bytes, assembles
// and decodes packets and hands every movement to the emulator. The Adapter
// builds the whole bridge from a hal.Board and runs the startup sequence.
package bridge

import (
	"github.com/Thermoquad/potmouse/pkg/mouse"
)

// Source supplies received bytes. *ps2.Engine implements it.
type Source interface {
	ByteAvailable() bool
	GetByte() byte
}

// Sink consumes movements. *c1351.Emulator implements it.
type Sink interface {
	OnMovement(dx, dy int16, buttons mouse.Buttons)
}

// Router forwards decoded packets from a Source to a Sink.
type Router struct {
	src   Source
	sink  Sink
	asm   mouse.Assembler
	stats *mouse.Statistics

	dropped uint64

	// OnPacket, when set, sees every packet before it is forwarded.
	OnPacket func(f mouse.RawFrame, m mouse.Movement)
}

// NewRouter creates a router.
func NewRouter(src Source, sink Sink) *Router {
	return &Router{src: src, sink: sink, stats: mouse.NewStatistics()}
}

// Statistics returns the packet statistics.
func (r *Router) Statistics() *mouse.Statistics { return r.stats }

// Poll drains the source and returns the number of packets forwarded.
func (r *Router) Poll() int {
	n := 0
	for r.src.ByteAvailable() {
		f, ok := r.asm.Push(r.src.GetByte())
		if d := r.asm.Dropped(); d != r.dropped {
			r.stats.AddDropped(d - r.dropped)
			r.dropped = d
		}
		if !ok {
			continue
		}
		m := mouse.Decode(f)
		r.stats.Update(f, mouse.ValidateFrame(f))
		if r.OnPacket != nil {
			r.OnPacket(f, m)
		}
		r.sink.OnMovement(m.DX, m.DY, m.Buttons)
		n++
	}
	return n
}

// HandleKey applies a console key: h, l, j and k move one count left,
// right, down and up, space clicks the left button. It reports whether the
// key was recognised.
func (r *Router) HandleKey(key rune) bool {
	switch key {
	case 'h':
		r.sink.OnMovement(-1, 0, 0)
	case 'l':
		r.sink.OnMovement(1, 0, 0)
	case 'j':
		r.sink.OnMovement(0, -1, 0)
	case 'k':
		r.sink.OnMovement(0, 1, 0)
	case ' ':
		r.sink.OnMovement(0, 0, mouse.ButtonLeft)
	default:
		return false
	}
	return true
}
