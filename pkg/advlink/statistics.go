// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package advlink

import (
	"fmt"
	"strings"
	"time"
)

// Statistics tracks link frame statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames     uint64
	ValidFrames     uint64
	CRCErrors       uint64
	DecodeErrors    uint64
	MalformedFrames uint64
	UnknownTypes    uint64
	MissingFields   uint64
	AnomalousValues uint64
	OversizeRaw     uint64
	InvalidValues   uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update counts a frame or a decode error along with its validation errors
func (s *Statistics) Update(f *Frame, decodeErr error, validationErrors []ValidationError) {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		if strings.HasPrefix(decodeErr.Error(), "CRC mismatch") {
			s.CRCErrors++
		} else {
			s.DecodeErrors++
		}
		return
	}

	if len(validationErrors) == 0 {
		s.ValidFrames++
		return
	}

	for _, err := range validationErrors {
		switch err.Type {
		case AnomalyUnknownType:
			s.UnknownTypes++
			s.MalformedFrames++
		case AnomalyMissingField, AnomalyDecodeError:
			s.MissingFields++
			s.MalformedFrames++
		case AnomalyOversizeRaw:
			s.OversizeRaw++
			s.AnomalousValues++
		case AnomalyInvalidValue:
			s.InvalidValues++
			s.AnomalousValues++
		}
	}
}

// Errors returns the total error count
func (s *Statistics) Errors() uint64 {
	return s.CRCErrors + s.DecodeErrors + s.MalformedFrames + s.AnomalousValues
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	percent := func(n uint64) float64 {
		if s.TotalFrames == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.TotalFrames)
	}

	result := fmt.Sprintf("=== Link Statistics (%.0f seconds) ===\n", time.Since(s.StartTime).Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, percent(s.ValidFrames))

	if s.CRCErrors > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d (%.1f%%)\n", s.CRCErrors, percent(s.CRCErrors))
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, percent(s.DecodeErrors))
	}
	if s.MalformedFrames > 0 {
		result += fmt.Sprintf("Malformed:       %8d (%.1f%%)\n", s.MalformedFrames, percent(s.MalformedFrames))
		if s.UnknownTypes > 0 {
			result += fmt.Sprintf("  Unknown Type:     %5d\n", s.UnknownTypes)
		}
		if s.MissingFields > 0 {
			result += fmt.Sprintf("  Missing Field:    %5d\n", s.MissingFields)
		}
	}
	if s.AnomalousValues > 0 {
		result += fmt.Sprintf("Anomalous Values:%8d (%.1f%%)\n", s.AnomalousValues, percent(s.AnomalousValues))
		if s.OversizeRaw > 0 {
			result += fmt.Sprintf("  Oversize Adv:     %5d\n", s.OversizeRaw)
		}
		if s.InvalidValues > 0 {
			result += fmt.Sprintf("  Invalid Value:    %5d\n", s.InvalidValues)
		}
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
