// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package grout

import (
	"fmt"
	"time"
)

// Statistics tracks line counts and error rates for monitors
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalLines    uint64
	ValidLines    uint64
	ParseErrors   uint64
	UnknownVerbs  uint64
	InvalidFields uint64
	Acks          uint64
	DeviceErrors  uint64
	Events        uint64

	// Rates (calculated)
	LineRate  float64 // lines/sec
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

// Update updates statistics based on a parsed line and its errors
func (s *Statistics) Update(c *Command, parseErr error, validationErrors []ValidationError) {
	s.TotalLines++
	s.LastUpdateTime = time.Now()

	if parseErr != nil {
		s.ParseErrors++
		return
	}

	if len(validationErrors) > 0 {
		for _, err := range validationErrors {
			if err.Type == AnomalyUnknownVerb {
				s.UnknownVerbs++
			} else {
				s.InvalidFields++
			}
		}
		return
	}

	s.ValidLines++
	if c == nil {
		return
	}
	switch {
	case c.Is(VerbAck):
		s.Acks++
	case c.Is(VerbError):
		s.DeviceErrors++
	case c.IsEvent():
		s.Events++
	}
}

// CalculateRates calculates line and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.LineRate = float64(s.TotalLines) / elapsed
		errorCount := s.ParseErrors + s.UnknownVerbs + s.InvalidFields
		s.ErrorRate = float64(errorCount) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent float64
	if s.TotalLines > 0 {
		validPercent = float64(s.ValidLines) * 100.0 / float64(s.TotalLines)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Lines:     %8d\n", s.TotalLines)
	result += fmt.Sprintf("Valid Lines:     %8d (%.1f%%)\n", s.ValidLines, validPercent)

	if s.ParseErrors > 0 {
		result += fmt.Sprintf("Parse Errors:    %8d\n", s.ParseErrors)
	}
	if s.UnknownVerbs > 0 {
		result += fmt.Sprintf("Unknown Verbs:   %8d\n", s.UnknownVerbs)
	}
	if s.InvalidFields > 0 {
		result += fmt.Sprintf("Invalid Fields:  %8d\n", s.InvalidFields)
	}
	if s.Acks > 0 {
		result += fmt.Sprintf("Acks:            %8d\n", s.Acks)
	}
	if s.DeviceErrors > 0 {
		result += fmt.Sprintf("Device Errors:   %8d\n", s.DeviceErrors)
	}
	if s.Events > 0 {
		result += fmt.Sprintf("Events:          %8d\n", s.Events)
	}

	result += fmt.Sprintf("Line Rate:       %8.1f lines/sec\n", s.LineRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	now := time.Now()
	s.StartTime = now
	s.LastUpdateTime = now
	s.TotalLines = 0
	s.ValidLines = 0
	s.ParseErrors = 0
	s.UnknownVerbs = 0
	s.InvalidFields = 0
	s.Acks = 0
	s.DeviceErrors = 0
	s.Events = 0
	s.LineRate = 0
	s.ErrorRate = 0
}
