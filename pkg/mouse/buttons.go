// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mouse

// Buttons is the button field of a movement packet.
type Buttons uint8

const (
	ButtonLeft   Buttons = 1 << 0
	ButtonRight  Buttons = 1 << 1
	ButtonMiddle Buttons = 1 << 2
)

// Left reports whether the left button is held.
func (b Buttons) Left() bool { return b&ButtonLeft != 0 }

// Right reports whether the right button is held.
func (b Buttons) Right() bool { return b&ButtonRight != 0 }

// Middle reports whether the middle button is held.
func (b Buttons) Middle() bool { return b&ButtonMiddle != 0 }

// String draws the buttons left to right, e.g. "[@_@]" for left and right.
func (b Buttons) String() string {
	s := []byte("[___]")
	if b.Left() {
		s[1] = '@'
	}
	if b.Middle() {
		s[2] = '@'
	}
	if b.Right() {
		s[3] = '@'
	}
	return string(s)
}

// StatusButtons is the button field of a status report, which orders the
// buttons differently from movement packets.
type StatusButtons uint8

const (
	StatusRight  StatusButtons = 1 << 0
	StatusMiddle StatusButtons = 1 << 1
	StatusLeft   StatusButtons = 1 << 2
)

// Buttons converts to movement packet order.
func (s StatusButtons) Buttons() Buttons {
	var b Buttons
	if s&StatusLeft != 0 {
		b |= ButtonLeft
	}
	if s&StatusRight != 0 {
		b |= ButtonRight
	}
	if s&StatusMiddle != 0 {
		b |= ButtonMiddle
	}
	return b
}

func (s StatusButtons) String() string { return s.Buttons().String() }
