// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config reads the startup configuration of the host tools.
//
// The file is JSON5, so comments and trailing commas are allowed:
//
//	{
//	  // "auto" follows the buttons held at boot
//	  mode: "joystick",
//	  resolution: 2,
//	  zero_point: 320,
//	  port: "/dev/ttyUSB0",
//	}
//
// The file is only ever read.
package config

import (
	"errors"
	"fmt"

	"github.com/flynn/json5"
	"github.com/spf13/afero"

	"github.com/Thermoquad/potmouse/pkg/bridge"
	"github.com/Thermoquad/potmouse/pkg/c1351"
	"github.com/Thermoquad/potmouse/pkg/mouse"
)

// Mode names accepted in the file.
const (
	ModeAuto     = "auto"
	ModeAnalog   = "analog"
	ModeJoystick = "joystick"
)

// Config is the startup configuration.
type Config struct {
	Mode       string `json:"mode"`
	Resolution *int   `json:"resolution"`
	ZeroPoint  uint16 `json:"zero_point"`

	Port     string `json:"port"`
	Baud     int    `json:"baud"`
	URL      string `json:"url"`
	Username string `json:"username"`
}

var (
	ErrInvalidMode       = errors.New("config: invalid mode")
	ErrInvalidResolution = errors.New("config: invalid resolution")
	ErrInvalidZeroPoint  = errors.New("config: invalid zero point")
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Mode:      ModeAuto,
		ZeroPoint: c1351.DefaultZeroPoint,
		Baud:      115200,
	}
}

// Load reads path from fs on top of Default.
func Load(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg := Default()
	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.Mode {
	case "", ModeAuto, ModeAnalog, ModeJoystick:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Mode)
	}
	if c.Resolution != nil && (*c.Resolution < 0 || *c.Resolution > int(mouse.Res8PerMM)) {
		return fmt.Errorf("%w: %d", ErrInvalidResolution, *c.Resolution)
	}
	// the pulse must rise after the 256 cycle discharge and the full
	// counter range must fit in the measurement window
	if c.ZeroPoint != 0 && (c.ZeroPoint < 256 || c.Target63() > 256+255) {
		return fmt.Errorf("%w: %d", ErrInvalidZeroPoint, c.ZeroPoint)
	}
	return nil
}

// Target63 returns the pulse delay of the largest counter value.
func (c *Config) Target63() uint16 {
	return c1351.Target(c.ZeroPoint, c1351.CounterMask)
}

// Bridge converts the startup settings.
func (c *Config) Bridge() bridge.Config {
	var bc bridge.Config
	switch c.Mode {
	case ModeAnalog:
		m := c1351.ModeAnalog
		bc.Mode = &m
	case ModeJoystick:
		m := c1351.ModeJoystick
		bc.Mode = &m
	}
	if c.Resolution != nil {
		r := mouse.Resolution(*c.Resolution)
		bc.Resolution = &r
	}
	bc.ZeroPoint = c.ZeroPoint
	return bc
}
