// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/devdash/pkg/frame"
)

// Statistics tracks frame decode statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames    uint64
	DecodedFrames  uint64
	UnknownFrames  uint64
	InvalidFrames  uint64
	DecodeErrors   uint64
	AdapterErrors  uint64
	RemoteFrames   uint64
	OversizeFrames uint64
	IDRangeErrors  uint64
	ChannelUpdates uint64

	// Rates (calculated)
	FrameRate  float64 // frames/sec
	UpdateRate float64 // updates/sec
	ErrorRate  float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update updates statistics based on a frame, its errors, and the number of
// channel updates the decoders produced from it
func (s *Statistics) Update(f *frame.Frame, decodeErr error, validationErrors []frame.ValidationError, produced int) {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	// Handle decode errors
	if decodeErr != nil {
		if errors.Is(decodeErr, frame.ErrAdapterError) {
			s.AdapterErrors++
		} else {
			s.DecodeErrors++
		}
		return
	}

	// Handle validation errors
	if len(validationErrors) > 0 {
		s.InvalidFrames++
		for _, err := range validationErrors {
			switch err.Type {
			case frame.AnomalyRemoteFrame:
				s.RemoteFrames++
			case frame.AnomalyDataLength:
				s.OversizeFrames++
			case frame.AnomalyIDRange:
				s.IDRangeErrors++
			}
		}
		return
	}

	if produced > 0 {
		s.DecodedFrames++
		s.ChannelUpdates += uint64(produced)
	} else {
		s.UnknownFrames++
	}
}

// CalculateRates calculates frame, update and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.UpdateRate = float64(s.ChannelUpdates) / elapsed
		s.ErrorRate = float64(s.errorCount()) / elapsed
	}
}

func (s *Statistics) errorCount() uint64 {
	return s.DecodeErrors + s.AdapterErrors + s.InvalidFrames
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var decodedPercent, unknownPercent, invalidPercent, errorPercent float64
	if s.TotalFrames > 0 {
		decodedPercent = float64(s.DecodedFrames) * 100.0 / float64(s.TotalFrames)
		unknownPercent = float64(s.UnknownFrames) * 100.0 / float64(s.TotalFrames)
		invalidPercent = float64(s.InvalidFrames) * 100.0 / float64(s.TotalFrames)
		errorPercent = float64(s.DecodeErrors+s.AdapterErrors) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Decoded Frames:  %8d (%.1f%%)\n", s.DecodedFrames, decodedPercent)
	result += fmt.Sprintf("Unknown Frames:  %8d (%.1f%%)\n", s.UnknownFrames, unknownPercent)

	if s.InvalidFrames > 0 {
		result += fmt.Sprintf("Invalid Frames:  %8d (%.1f%%)\n", s.InvalidFrames, invalidPercent)
		if s.RemoteFrames > 0 {
			result += fmt.Sprintf("  Remote Frames:    %5d\n", s.RemoteFrames)
		}
		if s.OversizeFrames > 0 {
			result += fmt.Sprintf("  Oversize:         %5d\n", s.OversizeFrames)
		}
		if s.IDRangeErrors > 0 {
			result += fmt.Sprintf("  ID Range:         %5d\n", s.IDRangeErrors)
		}
	}
	if s.DecodeErrors+s.AdapterErrors > 0 {
		result += fmt.Sprintf("Line Errors:     %8d (%.1f%%)\n", s.DecodeErrors+s.AdapterErrors, errorPercent)
		if s.AdapterErrors > 0 {
			result += fmt.Sprintf("  Adapter (BEL):    %5d\n", s.AdapterErrors)
		}
	}

	result += fmt.Sprintf("Channel Updates: %8d\n", s.ChannelUpdates)
	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Update Rate:     %8.1f updates/sec\n", s.UpdateRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
