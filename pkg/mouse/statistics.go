// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mouse

import (
	"fmt"
	"time"
)

// Statistics tracks packet statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalPackets    uint64
	ValidPackets    uint64
	SyncErrors      uint64
	Overflows       uint64
	LargeDeltas     uint64
	DroppedBytes    uint64
	ButtonChanges   uint64
	TotalDistanceX  int64
	TotalDistanceY  int64
	lastButtons     Buttons
	haveLastButtons bool

	// Rates (calculated)
	PacketRate float64 // packets/sec
	ErrorRate  float64 // errors/sec

	now func() time.Time
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return newStatistics(time.Now)
}

func newStatistics(now func() time.Time) *Statistics {
	t := now()
	return &Statistics{
		StartTime:      t,
		LastUpdateTime: t,
		now:            now,
	}
}

// Update updates statistics based on a packet and its validation errors
func (s *Statistics) Update(f RawFrame, validationErrors []ValidationError) {
	s.TotalPackets++

	if len(validationErrors) > 0 {
		for _, err := range validationErrors {
			switch err.Type {
			case AnomalySyncBit:
				s.SyncErrors++
			case AnomalyXOverflow, AnomalyYOverflow:
				s.Overflows++
			case AnomalyLargeDelta:
				s.LargeDeltas++
			}
		}
	} else {
		s.ValidPackets++
	}

	m := Decode(f)
	s.TotalDistanceX += int64(m.DX)
	s.TotalDistanceY += int64(m.DY)
	if s.haveLastButtons && m.Buttons != s.lastButtons {
		s.ButtonChanges++
	}
	s.lastButtons = m.Buttons
	s.haveLastButtons = true

	s.LastUpdateTime = s.now()
}

// AddDropped records bytes discarded while resynchronising.
func (s *Statistics) AddDropped(n uint64) {
	s.DroppedBytes += n
}

// Errors returns the number of packets with at least one anomaly.
func (s *Statistics) Errors() uint64 {
	return s.TotalPackets - s.ValidPackets
}

// CalculateRates calculates packet and error rates
func (s *Statistics) CalculateRates() {
	elapsed := s.now().Sub(s.StartTime).Seconds()
	if elapsed > 0 {
		s.PacketRate = float64(s.TotalPackets) / elapsed
		s.ErrorRate = float64(s.Errors()+s.DroppedBytes) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent float64
	if s.TotalPackets > 0 {
		validPercent = float64(s.ValidPackets) * 100.0 / float64(s.TotalPackets)
	}

	elapsed := s.now().Sub(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Packets:   %8d\n", s.TotalPackets)
	result += fmt.Sprintf("Valid Packets:   %8d (%.1f%%)\n", s.ValidPackets, validPercent)

	if s.SyncErrors > 0 {
		result += fmt.Sprintf("Sync Errors:     %8d\n", s.SyncErrors)
	}
	if s.DroppedBytes > 0 {
		result += fmt.Sprintf("Dropped Bytes:   %8d\n", s.DroppedBytes)
	}
	if s.Overflows > 0 {
		result += fmt.Sprintf("Overflows:       %8d\n", s.Overflows)
	}
	if s.LargeDeltas > 0 {
		result += fmt.Sprintf("Large Deltas:    %8d\n", s.LargeDeltas)
	}

	result += fmt.Sprintf("Distance X/Y:    %8d / %d counts\n", s.TotalDistanceX, s.TotalDistanceY)
	result += fmt.Sprintf("Button Changes:  %8d\n", s.ButtonChanges)
	result += fmt.Sprintf("Packet Rate:     %8.1f pkts/sec\n", s.PacketRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}
