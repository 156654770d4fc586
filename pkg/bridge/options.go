// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"github.com/Thermoquad/potmouse/pkg/c1351"
	"github.com/Thermoquad/potmouse/pkg/mouse"
)

// Profile is a startup behaviour chosen by holding buttons at power on.
type Profile int

const (
	ProfileNormal Profile = iota
	ProfileJoystick
	ProfileFast
	ProfileSlow
)

func (p Profile) String() string {
	switch p {
	case ProfileNormal:
		return "1351 normal"
	case ProfileJoystick:
		return "joystick"
	case ProfileFast:
		return "1351 fast"
	case ProfileSlow:
		return "1351 slow"
	default:
		return "unknown"
	}
}

// Options are the startup decisions.
type Options struct {
	Profile    Profile
	Mode       c1351.Mode
	Resolution *mouse.Resolution
}

// SelectOptions maps the buttons held during boot to options: right selects
// joystick mode, left a fast and middle a slow analog mouse. Anything else,
// chords included, is a normal analog mouse.
func SelectOptions(held mouse.StatusButtons) Options {
	switch held & mouse.ButtonMask {
	case mouse.StatusRight:
		return Options{Profile: ProfileJoystick, Mode: c1351.ModeJoystick}
	case mouse.StatusLeft:
		return Options{Profile: ProfileFast, Mode: c1351.ModeAnalog, Resolution: resolution(mouse.Res4PerMM)}
	case mouse.StatusMiddle:
		return Options{Profile: ProfileSlow, Mode: c1351.ModeAnalog, Resolution: resolution(mouse.Res1PerMM)}
	default:
		return Options{Profile: ProfileNormal, Mode: c1351.ModeAnalog}
	}
}

func resolution(r mouse.Resolution) *mouse.Resolution { return &r }
