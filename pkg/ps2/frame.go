// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ps2

import "fmt"

// Frame is an 11 bit wire frame; bit i of the value is the i-th bit on the
// wire, starting with the start bit.
type Frame uint16

// ParityBit returns the odd parity bit for b: set when b has an even number
// of one bits.
func ParityBit(b byte) bool {
	ones := 0
	for v := b; v != 0; v &= v - 1 {
		ones++
	}
	return ones%2 == 0
}

// EncodeFrame builds the wire frame for b.
func EncodeFrame(b byte) Frame {
	f := Frame(b) << 1
	if ParityBit(b) {
		f |= 1 << 9
	}
	f |= 1 << 10
	return f
}

// Bit returns wire bit i.
func (f Frame) Bit(i int) bool {
	return f&(1<<i) != 0
}

// WithBit returns f with wire bit i replaced.
func (f Frame) WithBit(i int, v bool) Frame {
	if v {
		return f | 1<<i
	}
	return f &^ (1 << i)
}

func (f Frame) String() string {
	s := make([]byte, FrameBits)
	for i := range s {
		s[i] = '0'
		if f.Bit(i) {
			s[i] = '1'
		}
	}
	return string(s)
}

// DecodeFrame checks the framing of f and returns its data byte.
func DecodeFrame(f Frame) (byte, error) {
	if f.Bit(0) {
		return 0, ErrStartBit
	}
	b := byte(f >> 1)
	if f.Bit(9) != ParityBit(b) {
		return b, fmt.Errorf("%w: byte 0x%02X", ErrParity, b)
	}
	if !f.Bit(10) {
		return b, ErrStopBit
	}
	return b, nil
}
