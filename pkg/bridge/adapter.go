// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/potmouse/pkg/c1351"
	"github.com/Thermoquad/potmouse/pkg/hal"
	"github.com/Thermoquad/potmouse/pkg/mouse"
	"github.com/Thermoquad/potmouse/pkg/ps2"
)

// Config overrides the startup decisions. Nil fields leave the choice to
// the buttons held at boot.
type Config struct {
	Mode       *c1351.Mode
	Resolution *mouse.Resolution
	ZeroPoint  uint16
	Logger     logrus.FieldLogger
}

// Adapter is a complete bridge.
type Adapter struct {
	Link     *ps2.Engine
	Session  *mouse.Session
	Emulator *c1351.Emulator
	Router   *Router

	clock   hal.Clock
	cfg     Config
	log     logrus.FieldLogger
	options Options
	held    mouse.StatusButtons
}

// New builds the bridge on hw. Nothing runs until Boot.
func New(hw hal.Board, cfg Config) *Adapter {
	log := cfg.Logger
	if log == nil {
		quiet := logrus.New()
		quiet.SetOutput(io.Discard)
		log = quiet
	}
	if cfg.ZeroPoint == 0 {
		cfg.ZeroPoint = c1351.DefaultZeroPoint
	}

	link := ps2.New(hw.PS2Clock, hw.PS2Data, hw.PS2Edge, hw.PS2Timer, hw.Clock)
	emu := c1351.New(c1351.Outputs{
		PotX:  hw.PotX,
		PotY:  hw.PotY,
		Up:    hw.Up,
		Down:  hw.Down,
		Left:  hw.Left,
		Right: hw.Right,
		Fire:  hw.Fire,
	}, hw.Sense, hw.Counter)

	return &Adapter{
		Link:     link,
		Session:  mouse.NewSession(link, hw.Clock, mouse.WithLogger(log.WithField("component", "mouse"))),
		Emulator: emu,
		Router:   NewRouter(link, emu),
		clock:    hw.Clock,
		cfg:      cfg,
		log:      log,
	}
}

// Options returns the startup decisions taken by Boot.
func (a *Adapter) Options() Options { return a.options }

// HeldButtons returns the buttons held while the mouse booted.
func (a *Adapter) HeldButtons() mouse.StatusButtons { return a.held }

// Boot boots the mouse, applies the startup options and starts emulation.
// It returns only once a mouse answered or ctx ended.
func (a *Adapter) Boot(ctx context.Context) (Options, error) {
	held, err := a.Session.Boot(ctx)
	if err != nil {
		return Options{}, err
	}
	a.held = held

	opts := SelectOptions(held)
	if a.cfg.Mode != nil {
		opts.Mode = *a.cfg.Mode
	}
	if a.cfg.Resolution != nil {
		opts.Resolution = a.cfg.Resolution
	}
	if opts.Resolution != nil {
		if err := a.Session.SetResolution(*opts.Resolution); err != nil {
			a.log.WithError(err).Warn("set resolution failed")
		}
	}
	a.options = opts

	a.log.WithFields(logrus.Fields{
		"buttons": held.String(),
		"profile": opts.Profile.String(),
		"mode":    opts.Mode.String(),
	}).Info("starting emulation")

	a.Emulator.SetZeroPoint(a.cfg.ZeroPoint)
	a.Emulator.Start(opts.Mode)
	a.Emulator.OnMovement(0, 0, 0)
	return opts, nil
}

// Poll runs one main loop iteration.
func (a *Adapter) Poll() int { return a.Router.Poll() }

// Run polls until ctx ends.
func (a *Adapter) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		a.Poll()
		a.clock.Yield()
	}
}
