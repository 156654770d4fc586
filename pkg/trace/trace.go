// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package trace stores captured movement packets.
//
// A trace is a CBOR sequence: one Header followed by one Event per packet.
// Events carry the raw three packet bytes and their offset from the start
// of the capture, so a replay can reproduce the original pacing.
package trace

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/afero"

	"github.com/Thermoquad/potmouse/pkg/mouse"
)

const (
	Magic   = "PMTR"
	Version = 1
)

var (
	ErrBadMagic   = errors.New("trace: not a movement trace")
	ErrBadVersion = errors.New("trace: unsupported version")
)

// Header opens every trace.
type Header struct {
	Magic   string    `cbor:"0,keyasint"`
	Version uint      `cbor:"1,keyasint"`
	Created time.Time `cbor:"2,keyasint"`
	Source  string    `cbor:"3,keyasint,omitempty"`
}

// Event is one captured packet.
type Event struct {
	Offset time.Duration  `cbor:"0,keyasint"`
	Raw    mouse.RawFrame `cbor:"1,keyasint"`
}

// Movement decodes the captured packet.
func (e Event) Movement() mouse.Movement {
	return mouse.Decode(e.Raw)
}

// Writer appends events to a trace file.
type Writer struct {
	file  afero.File
	enc   *cbor.Encoder
	count int
}

// Create starts a new trace at path, replacing any existing file.
func Create(fs afero.Fs, path, source string) (*Writer, error) {
	f, err := fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	w := &Writer{file: f, enc: cbor.NewEncoder(f)}
	hdr := Header{Magic: Magic, Version: Version, Created: time.Now().UTC(), Source: source}
	if err := w.enc.Encode(hdr); err != nil {
		f.Close()
		return nil, fmt.Errorf("trace: header: %w", err)
	}
	return w, nil
}

// Write appends a packet captured at offset at.
func (w *Writer) Write(raw mouse.RawFrame, at time.Duration) error {
	if err := w.enc.Encode(Event{Offset: at, Raw: raw}); err != nil {
		return fmt.Errorf("trace: event %d: %w", w.count, err)
	}
	w.count++
	return nil
}

// Count returns the number of events written.
func (w *Writer) Count() int { return w.count }

// Close flushes and closes the file.
func (w *Writer) Close() error {
	return w.file.Close()
}

// Reader iterates over the events of a trace.
type Reader struct {
	file   afero.File
	dec    *cbor.Decoder
	header Header
	last   time.Duration
}

// Open reads and checks the header of the trace at path.
func Open(fs afero.Fs, path string) (*Reader, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	r := &Reader{file: f, dec: cbor.NewDecoder(f)}
	if err := r.dec.Decode(&r.header); err != nil {
		f.Close()
		return nil, fmt.Errorf("trace: header: %w", err)
	}
	if r.header.Magic != Magic {
		f.Close()
		return nil, ErrBadMagic
	}
	if r.header.Version != Version {
		f.Close()
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, r.header.Version)
	}
	return r, nil
}

// Header returns the trace header.
func (r *Reader) Header() Header { return r.header }

// Next returns the next event, or io.EOF after the last one.
// Offsets never go backwards.
func (r *Reader) Next() (Event, error) {
	var ev Event
	if err := r.dec.Decode(&ev); err != nil {
		if errors.Is(err, io.EOF) {
			return ev, io.EOF
		}
		return ev, fmt.Errorf("trace: %w", err)
	}
	if ev.Offset < r.last {
		ev.Offset = r.last
	}
	r.last = ev.Offset
	return ev, nil
}

// Close closes the file.
func (r *Reader) Close() error {
	return r.file.Close()
}
