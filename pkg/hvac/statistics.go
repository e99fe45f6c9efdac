// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 HWHardsoft

package hvac

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks display frame and controller error counts
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Frame counters
	TotalFrames     uint64
	Dispatched      uint64
	UnknownCommands uint64
	RejectedValues  uint64
	NoAssignment    uint64
	BadIdentifier   uint64
	EmptyValue      uint64
	Overflows       uint64

	// Controller counters
	SensorErrors   uint64
	HardwareErrors uint64
	StatusPushes   uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // discarded frames/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// RecordFrame counts the outcome of one parser poll that completed a frame.
// frame is nil when parseErr is set; handled reports whether dispatch
// accepted the command.
func (s *Statistics) RecordFrame(frame *Frame, parseErr error, handled bool) {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	if parseErr != nil {
		switch {
		case errors.Is(parseErr, ErrNoAssignment):
			s.NoAssignment++
		case errors.Is(parseErr, ErrBadIdentifier):
			s.BadIdentifier++
		case errors.Is(parseErr, ErrEmptyAssignment):
			s.EmptyValue++
		case errors.Is(parseErr, ErrFrameOverflow):
			s.Overflows++
		}
		return
	}

	switch {
	case handled:
		s.Dispatched++
	case !IsKnownCommand(frame.ID()):
		s.UnknownCommands++
	default:
		s.RejectedValues++
	}
}

// Discarded returns the number of frames dropped before dispatch.
func (s *Statistics) Discarded() uint64 {
	return s.NoAssignment + s.BadIdentifier + s.EmptyValue + s.Overflows
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.Discarded()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var dispatchedPercent, discardedPercent float64
	if s.TotalFrames > 0 {
		dispatchedPercent = float64(s.Dispatched) * 100.0 / float64(s.TotalFrames)
		discardedPercent = float64(s.Discarded()) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Dispatched:      %8d (%.1f%%)\n", s.Dispatched, dispatchedPercent)

	if s.UnknownCommands > 0 {
		result += fmt.Sprintf("Unknown IDs:     %8d\n", s.UnknownCommands)
	}
	if s.RejectedValues > 0 {
		result += fmt.Sprintf("Bad Values:      %8d\n", s.RejectedValues)
	}
	if s.Discarded() > 0 {
		result += fmt.Sprintf("Discarded:       %8d (%.1f%%)\n", s.Discarded(), discardedPercent)
		if s.NoAssignment > 0 {
			result += fmt.Sprintf("  No '=':          %5d\n", s.NoAssignment)
		}
		if s.BadIdentifier > 0 {
			result += fmt.Sprintf("  Bad ID:          %5d\n", s.BadIdentifier)
		}
		if s.EmptyValue > 0 {
			result += fmt.Sprintf("  Empty Value:     %5d\n", s.EmptyValue)
		}
		if s.Overflows > 0 {
			result += fmt.Sprintf("  Overflow:        %5d\n", s.Overflows)
		}
	}
	if s.SensorErrors > 0 {
		result += fmt.Sprintf("Sensor Errors:   %8d\n", s.SensorErrors)
	}
	if s.HardwareErrors > 0 {
		result += fmt.Sprintf("Output Errors:   %8d\n", s.HardwareErrors)
	}
	if s.StatusPushes > 0 {
		result += fmt.Sprintf("Status Pushes:   %8d\n", s.StatusPushes)
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
