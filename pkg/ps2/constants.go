// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package ps2 implements the bit level PS/2 host link.
//
// The device generates the clock in both directions. Frames are 11 bits:
// a start bit (0), eight data bits LSB first, an odd parity bit and a stop
// bit (1). Reception samples the data line on every falling clock edge;
// transmission starts with a request to send and shifts bits out on the
// device's falling edges until the device acknowledges.
//
// All link state is advanced by two interrupt handlers, HandleClockEdge and
// HandleTimer. Received bytes are handed to the main loop through a single
// producer, single consumer Queue.
package ps2

import (
	"errors"
	"time"
)

// Link timing
const (
	// RequestToSend is how long the clock is held low before a transmission.
	RequestToSend = 128 * time.Microsecond
	// RecoveryDelay is how long reception stays inhibited after an error.
	RecoveryDelay = time.Millisecond
	// BarkInterval and WatchdogBarks bound a transmission to about 168ms.
	BarkInterval  = 8 * time.Millisecond
	WatchdogBarks = 20
	// LineReleasePoll and LineReleasePolls bound the wait for the device to
	// release both lines after its acknowledge.
	LineReleasePoll  = 2 * time.Microsecond
	LineReleasePolls = 50
)

// QueueSize is the capacity of the receive queue.
const QueueSize = 16

// FrameBits is the length of a frame on the wire.
const FrameBits = 11

// LinkState is the state of the link state machine.
type LinkState uint32

const (
	Idle LinkState = iota
	RxData
	RxParity
	RxStop
	TxRequest
	TxData
	TxParity
	TxStop
	TxAck
	TxEnd
	Error
)

var linkStateNames = [...]string{
	Idle:      "IDLE",
	RxData:    "RX_DATA",
	RxParity:  "RX_PARITY",
	RxStop:    "RX_STOP",
	TxRequest: "TX_REQUEST",
	TxData:    "TX_DATA",
	TxParity:  "TX_PARITY",
	TxStop:    "TX_STOP",
	TxAck:     "TX_ACK",
	TxEnd:     "TX_END",
	Error:     "ERROR",
}

func (s LinkState) String() string {
	if int(s) < len(linkStateNames) {
		return linkStateNames[s]
	}
	return "UNKNOWN"
}

// Receiving reports whether a frame from the device is being shifted in.
func (s LinkState) Receiving() bool { return s >= RxData && s <= RxStop }

// Transmitting reports whether a host frame is in flight.
func (s LinkState) Transmitting() bool { return s >= TxRequest && s <= TxEnd }

// Link errors. Framing errors are handled autonomously by the engine; they
// are surfaced only through Stats and as the result of a transmission.
var (
	ErrStartBit    = errors.New("ps2: start bit not low")
	ErrParity      = errors.New("ps2: parity error")
	ErrStopBit     = errors.New("ps2: stop bit not high")
	ErrAck         = errors.New("ps2: device did not acknowledge")
	ErrWatchdog    = errors.New("ps2: transmit watchdog expired")
	ErrLineRelease = errors.New("ps2: device did not release the lines")
)
