// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package advertiser

import (
	"fmt"
	"time"
)

// Statistics tracks scheduler activity and radio error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	BatchesAdded   uint64
	BatchesRemoved uint64
	PacketsQueued  uint64
	Starts         uint64
	Stops          uint64
	Rotations      uint64
	Evictions      uint64
	RadioErrors    uint64
	StartErrors    uint64
	StopErrors     uint64

	// Rates (calculated)
	StartRate float64 // advertisements/sec
	ErrorRate float64 // radio errors/sec
}

// NewStatistics creates a statistics tracker starting at now
func NewStatistics(now time.Time) *Statistics {
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Event is one scheduler occurrence counted by Update
type Event int

// Scheduler events
const (
	EventBatchAdded Event = iota
	EventBatchRemoved
	EventStart
	EventStop
	EventRotate
	EventEvict
)

// Update records ev at now. A non-nil radioErr counts against the start or
// stop that produced it.
func (s *Statistics) Update(now time.Time, ev Event, radioErr error) {
	switch ev {
	case EventBatchAdded:
		s.BatchesAdded++
	case EventBatchRemoved:
		s.BatchesRemoved++
	case EventStart:
		s.Starts++
		if radioErr != nil {
			s.StartErrors++
			s.RadioErrors++
		}
	case EventStop:
		s.Stops++
		if radioErr != nil {
			s.StopErrors++
			s.RadioErrors++
		}
	case EventRotate:
		s.Rotations++
	case EventEvict:
		s.Evictions++
	}
	s.LastUpdateTime = now
}

// CalculateRates calculates start and error rates over the tracked window
func (s *Statistics) CalculateRates() {
	elapsed := s.LastUpdateTime.Sub(s.StartTime).Seconds()
	if elapsed > 0 {
		s.StartRate = float64(s.Starts) / elapsed
		s.ErrorRate = float64(s.RadioErrors) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var errorPercent float64
	if total := s.Starts + s.Stops; total > 0 {
		errorPercent = float64(s.RadioErrors) * 100.0 / float64(total)
	}

	elapsed := s.LastUpdateTime.Sub(s.StartTime)

	result := fmt.Sprintf("=== Scheduler (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Batches Added:   %8d\n", s.BatchesAdded)
	result += fmt.Sprintf("Batches Removed: %8d\n", s.BatchesRemoved)
	result += fmt.Sprintf("Packets Queued:  %8d\n", s.PacketsQueued)
	result += fmt.Sprintf("Starts:          %8d\n", s.Starts)
	result += fmt.Sprintf("Stops:           %8d\n", s.Stops)
	result += fmt.Sprintf("Rotations:       %8d\n", s.Rotations)
	result += fmt.Sprintf("Evictions:       %8d\n", s.Evictions)

	if s.RadioErrors > 0 {
		result += fmt.Sprintf("Radio Errors:    %8d (%.1f%%)\n", s.RadioErrors, errorPercent)
		if s.StartErrors > 0 {
			result += fmt.Sprintf("  Start Failed:     %5d\n", s.StartErrors)
		}
		if s.StopErrors > 0 {
			result += fmt.Sprintf("  Stop Failed:      %5d\n", s.StopErrors)
		}
	}

	result += fmt.Sprintf("Start Rate:      %8.1f adv/sec\n", s.StartRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset(now time.Time) {
	*s = Statistics{StartTime: now, LastUpdateTime: now}
}
