// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ps2

import (
	"fmt"
	"sync/atomic"
)

// Stats counts link events. The handlers are the only writers.
type Stats struct {
	received      atomic.Uint64
	sent          atomic.Uint64
	startErrors   atomic.Uint64
	parityErrors  atomic.Uint64
	stopErrors    atomic.Uint64
	ackErrors     atomic.Uint64
	watchdogs     atomic.Uint64
	releaseErrors atomic.Uint64
	recoveries    atomic.Uint64
}

// Snapshot is a point in time copy of Stats.
type Snapshot struct {
	Received      uint64
	Sent          uint64
	StartErrors   uint64
	ParityErrors  uint64
	StopErrors    uint64
	AckErrors     uint64
	Watchdogs     uint64
	ReleaseErrors uint64
	Recoveries    uint64
	Overflows     uint64
}

func (s *Stats) count(err error) {
	switch err {
	case ErrStartBit:
		s.startErrors.Add(1)
	case ErrParity:
		s.parityErrors.Add(1)
	case ErrStopBit:
		s.stopErrors.Add(1)
	case ErrAck:
		s.ackErrors.Add(1)
	case ErrWatchdog:
		s.watchdogs.Add(1)
	case ErrLineRelease:
		s.releaseErrors.Add(1)
	}
}

// Errors returns the total of all framing and transmission errors.
func (s Snapshot) Errors() uint64 {
	return s.StartErrors + s.ParityErrors + s.StopErrors + s.AckErrors + s.Watchdogs + s.ReleaseErrors
}

func (s Snapshot) String() string {
	return fmt.Sprintf("rx=%d tx=%d err=%d (start=%d parity=%d stop=%d ack=%d watchdog=%d release=%d) recoveries=%d overflows=%d",
		s.Received, s.Sent, s.Errors(), s.StartErrors, s.ParityErrors, s.StopErrors,
		s.AckErrors, s.Watchdogs, s.ReleaseErrors, s.Recoveries, s.Overflows)
}
