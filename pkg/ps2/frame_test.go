// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ps2

import (
	"errors"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// ============================================================
// Framing Tests
// ============================================================

func TestParityBit(t *testing.T) {
	tests := []struct {
		b        byte
		expected bool
	}{
		{0x00, true},
		{0x01, false},
		{0x03, true},
		{0xFA, true},
		{0xAA, true},
		{0xFE, false},
		{0xFF, true},
	}

	for _, tt := range tests {
		if got := ParityBit(tt.b); got != tt.expected {
			t.Errorf("ParityBit(0x%02X) = %v, expected %v", tt.b, got, tt.expected)
		}
	}
}

func TestEncodeFrame_Layout(t *testing.T) {
	f := EncodeFrame(0xF4)
	if f.Bit(0) {
		t.Error("start bit should be 0")
	}
	if !f.Bit(10) {
		t.Error("stop bit should be 1")
	}
	// 0xF4 = 11110100, LSB first on the wire
	want := "00010111101"
	if f.String() != want {
		t.Errorf("frame bits = %s, expected %s", f.String(), want)
	}
}

func TestFrameRoundTrip_AllBytes(t *testing.T) {
	for i := 0; i < 256; i++ {
		b := byte(i)
		f := EncodeFrame(b)

		ones := 0
		for bit := 1; bit <= 9; bit++ {
			if f.Bit(bit) {
				ones++
			}
		}
		if ones%2 != 1 {
			t.Errorf("0x%02X: data plus parity has %d ones, expected odd", b, ones)
		}

		got, err := DecodeFrame(f)
		if err != nil {
			t.Errorf("0x%02X: unexpected error: %v", b, err)
			continue
		}
		if got != b {
			t.Errorf("0x%02X: decoded 0x%02X", b, got)
		}
	}
}

func TestDecodeFrame_Errors(t *testing.T) {
	good := EncodeFrame(0x5A)
	tests := []struct {
		name     string
		frame    Frame
		expected error
	}{
		{"start bit high", good.WithBit(0, true), ErrStartBit},
		{"parity flipped", good.WithBit(9, !good.Bit(9)), ErrParity},
		{"data bit flipped", good.WithBit(3, !good.Bit(3)), ErrParity},
		{"stop bit low", good.WithBit(10, false), ErrStopBit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFrame(tt.frame)
			if !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
		})
	}
}

// ============================================================
// Fuzz Helpers
// ============================================================

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// newFuzzRng creates a generator seeded from FUZZ_SEED or the clock and logs the seed
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := time.Now().UnixNano()
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if s, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			seed = s
		}
	}
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

func TestFuzzDecodeFrame_SingleBitErrorsDetected(t *testing.T) {
	rng := newFuzzRng(t)
	for round := 0; round < getFuzzRounds(); round++ {
		b := byte(rng.Intn(256))
		bit := 1 + rng.Intn(9) // any data or parity bit
		f := EncodeFrame(b)
		f = f.WithBit(bit, !f.Bit(bit))
		if _, err := DecodeFrame(f); !errors.Is(err, ErrParity) {
			t.Fatalf("round %d: byte 0x%02X with bit %d flipped: expected parity error, got %v", round, b, bit, err)
		}
	}
}
