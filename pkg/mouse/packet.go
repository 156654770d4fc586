// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mouse

// RawFrame is a movement packet as received.
type RawFrame [3]byte

// Movement is a decoded movement packet. Deltas span -256..255.
type Movement struct {
	DX        int16
	DY        int16
	Buttons   Buttons
	XOverflow bool
	YOverflow bool
}

// Decode interprets a raw packet. It never fails: the sign bits extend the
// 8 bit deltas to 9 bits and the overflow flags are passed through.
func Decode(f RawFrame) Movement {
	status := f[0]
	m := Movement{
		DX:        int16(f[1]),
		DY:        int16(f[2]),
		Buttons:   Buttons(status & ButtonMask),
		XOverflow: status&(1<<BitXOverflow) != 0,
		YOverflow: status&(1<<BitYOverflow) != 0,
	}
	if status&(1<<BitXSign) != 0 {
		m.DX -= 256
	}
	if status&(1<<BitYSign) != 0 {
		m.DY -= 256
	}
	return m
}

// Encode builds the raw packet for m. Deltas outside -256..255 are clamped.
func Encode(m Movement) RawFrame {
	f := RawFrame{1<<BitAlwaysOne | byte(m.Buttons&ButtonMask)}
	if m.XOverflow {
		f[0] |= 1 << BitXOverflow
	}
	if m.YOverflow {
		f[0] |= 1 << BitYOverflow
	}
	dx, dy := clampDelta(m.DX), clampDelta(m.DY)
	if dx < 0 {
		f[0] |= 1 << BitXSign
	}
	if dy < 0 {
		f[0] |= 1 << BitYSign
	}
	f[1] = byte(dx)
	f[2] = byte(dy)
	return f
}

func clampDelta(d int16) int16 {
	switch {
	case d < -256:
		return -256
	case d > 255:
		return 255
	}
	return d
}

// Synced reports whether the first byte carries the always-one bit.
func (f RawFrame) Synced() bool {
	return f[0]&(1<<BitAlwaysOne) != 0
}

// Assembler groups a byte stream into packets.
//
// A byte that cannot start a packet (bit 3 clear) is dropped, which brings
// the assembler back in step after a lost byte.
type Assembler struct {
	frame   RawFrame
	index   int
	dropped uint64
}

// Push adds a byte and returns a packet when one is complete.
func (a *Assembler) Push(b byte) (RawFrame, bool) {
	if a.index == 0 && b&(1<<BitAlwaysOne) == 0 {
		a.dropped++
		return RawFrame{}, false
	}
	a.frame[a.index] = b
	a.index++
	if a.index < len(a.frame) {
		return RawFrame{}, false
	}
	a.index = 0
	return a.frame, true
}

// Reset discards a partial packet.
func (a *Assembler) Reset() { a.index = 0 }

// Dropped returns the number of bytes discarded while out of step.
func (a *Assembler) Dropped() uint64 { return a.dropped }
