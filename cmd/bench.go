// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/potmouse/pkg/bridge"
	"github.com/Thermoquad/potmouse/pkg/c1351"
	"github.com/Thermoquad/potmouse/pkg/mouse"
	"github.com/Thermoquad/potmouse/pkg/sim"
)

const (
	benchTraceLimit = 4096
	benchBootLimit  = 10 * time.Second
)

// bench is a complete bridge on a simulated board: a PS/2 mouse on one
// side, a SID measuring the pot lines on the other.
type bench struct {
	board  *sim.Board
	bridge *bridge.Adapter
}

func newBench(bc bridge.Config, held mouse.Buttons) *bench {
	board := sim.NewBoard(benchTraceLimit)
	board.Mouse.SetButtons(byte(held))
	bc.Logger = log.WithField("component", "bridge")
	return &bench{board: board, bridge: bridge.New(board.HAL(), bc)}
}

// boot runs the bridge startup, then releases the held buttons and starts
// the SID.
func (b *bench) boot() (bridge.Options, error) {
	ctx, cancel := context.WithTimeout(context.Background(), benchBootLimit)
	defer cancel()

	opts, err := b.bridge.Boot(ctx)
	if err != nil {
		return opts, fmt.Errorf("boot: %w", err)
	}
	b.board.Mouse.SetButtons(0)
	b.board.SID.Start()
	return opts, nil
}

// run advances virtual time by d, polling like the bridge main loop.
func (b *bench) run(d time.Duration) {
	for end := b.board.Sched.Now() + d; b.board.Sched.Now() < end; {
		step := end - b.board.Sched.Now()
		if step > time.Millisecond {
			step = time.Millisecond
		}
		b.board.Sched.Delay(step)
		b.bridge.Poll()
	}
}

func (b *bench) now() time.Duration { return b.board.Sched.Now() }

func (b *bench) pots() (x, y uint8) { return b.board.SID.PotX, b.board.SID.PotY }

func (b *bench) lines() string {
	a := b.board.Asserted
	return joystickLines(a(sim.LineUp), a(sim.LineDown), a(sim.LineLeft), a(sim.LineRight), a(sim.LineFire))
}

// describe renders the emulator output on one line.
func (b *bench) describe() string {
	if b.bridge.Emulator.Mode() == c1351.ModeJoystick {
		return "lines " + b.lines()
	}
	pos := b.bridge.Emulator.Position()
	x, y := b.pots()
	return fmt.Sprintf("counters x=%2d y=%2d  SID potx=%3d poty=%3d  lines %s", pos.X, pos.Y, x, y, b.lines())
}

func (b *bench) summary() string {
	var s strings.Builder
	fmt.Fprintf(&s, "Virtual time: %s\n", b.now().Round(time.Microsecond))
	fmt.Fprintf(&s, "Boot attempts: %d\n", b.bridge.Session.Attempts())
	fmt.Fprintf(&s, "Link: %s\n", b.bridge.Link.Stats())
	fmt.Fprintf(&s, "SID cycles: %d  sync edges: %d  joystick pulses: %d\n",
		b.board.SID.Cycles, b.bridge.Emulator.Syncs(), b.bridge.Emulator.Pulses())
	s.WriteString(b.bridge.Router.Statistics().String())
	return s.String()
}

// parseButtons reads a button list such as "left" or "left+right".
func parseButtons(s string) (mouse.Buttons, error) {
	var b mouse.Buttons
	if s == "" || s == "none" {
		return 0, nil
	}
	for _, name := range strings.Split(s, "+") {
		switch strings.TrimSpace(strings.ToLower(name)) {
		case "left":
			b |= mouse.ButtonLeft
		case "right":
			b |= mouse.ButtonRight
		case "middle":
			b |= mouse.ButtonMiddle
		default:
			return 0, fmt.Errorf("unknown button %q (use left, right, middle)", name)
		}
	}
	return b, nil
}

// benchConfig merges the mode and resolution flags over the configuration.
func benchConfig(mode string, resolution int) (bridge.Config, error) {
	c := *cfg
	if mode != "" {
		c.Mode = mode
	}
	if resolution >= 0 {
		c.Resolution = &resolution
	}
	if err := c.Validate(); err != nil {
		return bridge.Config{}, err
	}
	return c.Bridge(), nil
}
