// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package mouse drives a PS/2 mouse over a byte transport.
//
// It boots the device into a known state, issues commands and decodes the
// three byte movement packets the mouse streams once reporting is enabled.
// Diagnostics helpers (validation, statistics and formatting) are used by
// the host tools.
package mouse

import (
	"errors"
	"time"
)

// Host to device commands
const (
	CmdReset            = 0xFF
	CmdResend           = 0xFE
	CmdSetDefaults      = 0xF6
	CmdDisableReporting = 0xF5
	CmdEnableReporting  = 0xF4
	CmdSetSampleRate    = 0xF3
	CmdGetID            = 0xF2
	CmdSetRemote        = 0xF0
	CmdSetWrap          = 0xEE
	CmdResetWrap        = 0xEC
	CmdReadData         = 0xEB
	CmdSetStream        = 0xEA
	CmdStatusRequest    = 0xE9
	CmdSetResolution    = 0xE8
	CmdSetScaling21     = 0xE7
	CmdSetScaling11     = 0xE6
)

// Device responses
const (
	RespAck        = 0xFA
	RespResend     = 0xFE
	RespError      = 0xFC
	RespSelfTestOK = 0xAA
)

// First packet byte layout
const (
	BitYOverflow = 7
	BitXOverflow = 6
	BitYSign     = 5
	BitXSign     = 4
	BitAlwaysOne = 3

	ButtonMask = 0x07
)

// Session timing
const (
	CommandWait       = 22 * time.Millisecond
	ResetPollInterval = 250 * time.Millisecond
	ResetPolls        = 11
	ResetSettle       = 100 * time.Millisecond
	EnableSettle      = 100 * time.Millisecond
)

// Resolution is a device resolution code.
type Resolution byte

const (
	Res1PerMM Resolution = iota
	Res2PerMM
	Res4PerMM
	Res8PerMM
)

// DefaultResolution is programmed during boot.
const DefaultResolution = Res2PerMM

// CountsPerMM returns the resolution in counts per millimetre.
func (r Resolution) CountsPerMM() int {
	return 1 << r
}

// Valid reports whether r is a code the device accepts.
func (r Resolution) Valid() bool { return r <= Res8PerMM }

// Session errors
var (
	ErrNoResponse        = errors.New("mouse: no response")
	ErrInvalidResolution = errors.New("mouse: invalid resolution code")
	ErrRejected          = errors.New("mouse: command rejected")
)
