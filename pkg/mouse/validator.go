// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mouse

import "fmt"

// AnomalyType represents different types of packet anomalies
type AnomalyType int

const (
	AnomalySyncBit AnomalyType = iota
	AnomalyXOverflow
	AnomalyYOverflow
	AnomalyLargeDelta
)

// LargeDelta is the magnitude above which a delta is reported as suspicious.
// A mouse at 2 counts/mm and 100 reports/s would have to travel well over a
// metre per second to produce it.
const LargeDelta = 200

// ValidationError represents a packet validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateFrame checks a raw packet for anomalies. The result is empty for a
// clean packet.
func ValidateFrame(f RawFrame) []ValidationError {
	errors := []ValidationError{}

	if !f.Synced() {
		errors = append(errors, ValidationError{
			Type:    AnomalySyncBit,
			Message: fmt.Sprintf("Always-one bit clear in status byte 0x%02X", f[0]),
			Details: map[string]interface{}{"status": f[0]},
		})
	}

	m := Decode(f)
	if m.XOverflow {
		errors = append(errors, ValidationError{
			Type:    AnomalyXOverflow,
			Message: fmt.Sprintf("X overflow (dx=%d)", m.DX),
			Details: map[string]interface{}{"dx": m.DX},
		})
	}
	if m.YOverflow {
		errors = append(errors, ValidationError{
			Type:    AnomalyYOverflow,
			Message: fmt.Sprintf("Y overflow (dy=%d)", m.DY),
			Details: map[string]interface{}{"dy": m.DY},
		})
	}

	if !m.XOverflow && !m.YOverflow && (abs(m.DX) > LargeDelta || abs(m.DY) > LargeDelta) {
		errors = append(errors, ValidationError{
			Type:    AnomalyLargeDelta,
			Message: fmt.Sprintf("Large movement dx=%d dy=%d (max %d)", m.DX, m.DY, LargeDelta),
			Details: map[string]interface{}{"dx": m.DX, "dy": m.DY, "max": LargeDelta},
		})
	}

	return errors
}

func abs(v int16) int16 {
	if v < 0 {
		return -v
	}
	return v
}
