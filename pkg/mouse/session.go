// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mouse

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/potmouse/pkg/hal"
)

// Transport is the byte link to the device. *ps2.Engine implements it.
type Transport interface {
	EnableReceive(enable bool)
	ByteAvailable() bool
	GetByte() byte
	SendByte(b byte) error
}

// State is the boot state of a session.
type State int

const (
	StateOffline State = iota
	StateBootPending
	StateReady
)

func (s State) String() string {
	switch s {
	case StateOffline:
		return "OFFLINE"
	case StateBootPending:
		return "BOOT_PENDING"
	case StateReady:
		return "READY"
	default:
		return "UNKNOWN"
	}
}

// Session owns the device: boot, commands and resolution. It runs on the
// main loop only.
type Session struct {
	link  Transport
	clock hal.Clock
	log   logrus.FieldLogger

	state      State
	attempts   int
	resolution Resolution
	argNext    bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sends boot progress and command traces to log.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Session) { s.log = log }
}

// NewSession creates an offline session on link. clock provides the
// command delays.
func NewSession(link Transport, clock hal.Clock, opts ...Option) *Session {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	s := &Session{
		link:       link,
		clock:      clock,
		log:        quiet,
		resolution: DefaultResolution,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the boot state.
func (s *Session) State() State { return s.state }

// Attempts returns the number of reset attempts made by Boot.
func (s *Session) Attempts() int { return s.attempts }

// Resolution returns the last resolution programmed.
func (s *Session) Resolution() Resolution { return s.resolution }

// Boot brings the device into streaming mode and returns the buttons held
// while it booted.
//
// The device is reset until it passes its self test, however long that
// takes; only ctx ends the retries. It is then configured for 2:1 scaling
// at DefaultResolution, queried for its button state and set streaming.
func (s *Session) Boot(ctx context.Context) (StatusButtons, error) {
	s.state = StateBootPending
	s.link.EnableReceive(true)

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		s.attempts++
		if s.reset() {
			s.log.WithField("attempt", s.attempts).Info("mouse reset ok")
			break
		}
		s.log.WithField("attempt", s.attempts).Warn("mouse reset failed")
	}

	s.Command(CmdDisableReporting, true)
	s.Command(CmdSetScaling21, true)
	s.Command(CmdSetResolution, true)
	s.Command(byte(DefaultResolution), true)
	s.resolution = DefaultResolution

	var buttons StatusButtons
	s.Command(CmdStatusRequest, true)
	s.clock.Delay(CommandWait)
	if s.link.ByteAvailable() {
		buttons = StatusButtons(s.link.GetByte() & ButtonMask)
	}
	s.flush(CommandWait)
	s.log.WithField("buttons", buttons.String()).Info("boot buttons")

	s.Command(CmdEnableReporting, true)
	s.flush(EnableSettle)

	s.state = StateReady
	return buttons, nil
}

// reset runs one reset attempt: the acknowledge is skipped, the self test
// result must follow within ResetPolls polls.
func (s *Session) reset() bool {
	s.send(CmdReset)
	for i := 0; i < ResetPolls; i++ {
		s.clock.Delay(ResetPollInterval)
		for s.link.ByteAvailable() {
			b := s.link.GetByte()
			switch b {
			case RespAck:
				continue
			case RespSelfTestOK:
				s.clock.Delay(ResetSettle)
				s.flush(0)
				return true
			default:
				s.log.WithField("response", FormatResponse(b)).Debug("reset answered")
				return false
			}
		}
	}
	return false
}

// Command sends code and, if expectResponse, waits CommandWait and returns
// the first byte received. Transport framing failures are not reported
// here; they show up as a missing response.
func (s *Session) Command(code byte, expectResponse bool) (byte, error) {
	log := s.log.WithField("command", s.send(code))
	if !expectResponse {
		log.Debug("sent")
		return 0, nil
	}
	s.clock.Delay(CommandWait)
	if !s.link.ByteAvailable() {
		log.Debug("no response")
		return 0, ErrNoResponse
	}
	resp := s.link.GetByte()
	log.WithField("response", FormatResponse(resp)).Debug("answered")
	return resp, nil
}

// SetResolution programs a resolution code (0..3 for 1, 2, 4 or 8 counts
// per mm). Reporting is paused around the change.
func (s *Session) SetResolution(res Resolution) error {
	if !res.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidResolution, res)
	}
	s.Command(CmdDisableReporting, true)
	s.Command(CmdSetResolution, true)
	resp, err := s.Command(byte(res), true)
	s.Command(CmdEnableReporting, true)
	if err != nil {
		return err
	}
	if resp != RespAck {
		return fmt.Errorf("%w: resolution %d answered 0x%02X", ErrRejected, res, resp)
	}
	s.resolution = res
	return nil
}

// SetSampleRate programs the report rate in samples per second.
func (s *Session) SetSampleRate(rate byte) error {
	s.Command(CmdDisableReporting, true)
	s.Command(CmdSetSampleRate, true)
	resp, err := s.Command(rate, true)
	s.Command(CmdEnableReporting, true)
	if err != nil {
		return err
	}
	if resp != RespAck {
		return fmt.Errorf("%w: sample rate %d answered 0x%02X", ErrRejected, rate, resp)
	}
	return nil
}

// Identify returns the device ID (0x00 for a standard mouse). Reporting is
// paused while asking.
func (s *Session) Identify() (byte, error) {
	s.Command(CmdDisableReporting, true)
	s.flush(0)
	resp, err := s.Command(CmdGetID, true)
	if err == nil && resp != RespAck {
		err = fmt.Errorf("%w: get id answered 0x%02X", ErrRejected, resp)
	}
	var id byte
	if err == nil {
		s.clock.Delay(CommandWait)
		if s.link.ByteAvailable() {
			id = s.link.GetByte()
		} else {
			err = ErrNoResponse
		}
	}
	s.Command(CmdEnableReporting, true)
	return id, err
}

// send transmits code and returns its name for the trace. The byte after
// a command taking an argument is named as a plain value.
func (s *Session) send(code byte) string {
	name := FormatCommand(code)
	if s.argNext {
		name = fmt.Sprintf("0x%02X", code)
	}
	s.argNext = !s.argNext && (code == CmdSetResolution || code == CmdSetSampleRate)
	if err := s.link.SendByte(code); err != nil {
		s.log.WithError(err).WithField("command", name).Debug("send failed")
	}
	return name
}

// flush waits d, then discards everything received.
func (s *Session) flush(d time.Duration) {
	s.clock.Delay(d)
	for s.link.ByteAvailable() {
		s.log.WithField("response", FormatResponse(s.link.GetByte())).Debug("flushed")
	}
}
