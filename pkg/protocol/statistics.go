// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package protocol

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Counters is a point-in-time copy of Statistics.
type Counters struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	TotalFrames     uint64
	ValidFrames     uint64
	CRCErrors       uint64
	DecodeErrors    uint64
	MalformedFrames uint64
	MissingFields   uint64
	AnomalousValues uint64
	InvalidTemp     uint64
	InvalidSpeed    uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// Statistics tracks frame statistics and error rates. Safe for concurrent use.
type Statistics struct {
	mu sync.Mutex
	c  Counters
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	s := &Statistics{}
	s.Reset()
	return s
}

// Update updates statistics based on a frame and its errors
func (s *Statistics) Update(frame *Frame, decodeErr error, validationErrors []ValidationError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.c.TotalFrames++
	s.c.LastUpdateTime = time.Now()

	if decodeErr != nil {
		var de *DecodeError
		if errors.As(decodeErr, &de) && de.IsCRCError() {
			s.c.CRCErrors++
		} else {
			s.c.DecodeErrors++
		}
		return
	}

	if len(validationErrors) == 0 {
		s.c.ValidFrames++
		return
	}

	for _, err := range validationErrors {
		switch err.Type {
		case AnomalyMissingField, AnomalyInvalidCount:
			s.c.MissingFields++
			s.c.MalformedFrames++
		case AnomalyInvalidTemp:
			s.c.InvalidTemp++
			s.c.AnomalousValues++
		case AnomalyInvalidSpeed:
			s.c.InvalidSpeed++
			s.c.AnomalousValues++
		default:
			s.c.AnomalousValues++
		}
	}
}

// Counters returns a copy of the counters with rates calculated.
func (s *Statistics) Counters() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.c
	elapsed := time.Since(c.StartTime).Seconds()
	if elapsed > 0 {
		c.FrameRate = float64(c.TotalFrames) / elapsed
		errorCount := c.CRCErrors + c.DecodeErrors + c.MalformedFrames + c.AnomalousValues
		c.ErrorRate = float64(errorCount) / elapsed
	}
	return c
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	c := s.Counters()

	var validPercent, crcErrorPercent, decodeErrorPercent, malformedPercent, anomalousPercent float64
	if c.TotalFrames > 0 {
		total := float64(c.TotalFrames)
		validPercent = float64(c.ValidFrames) * 100.0 / total
		crcErrorPercent = float64(c.CRCErrors) * 100.0 / total
		decodeErrorPercent = float64(c.DecodeErrors) * 100.0 / total
		malformedPercent = float64(c.MalformedFrames) * 100.0 / total
		anomalousPercent = float64(c.AnomalousValues) * 100.0 / total
	}

	elapsed := time.Since(c.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", c.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", c.ValidFrames, validPercent)

	if c.CRCErrors > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d (%.1f%%)\n", c.CRCErrors, crcErrorPercent)
	}
	if c.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", c.DecodeErrors, decodeErrorPercent)
	}
	if c.MalformedFrames > 0 {
		result += fmt.Sprintf("Malformed:       %8d (%.1f%%)\n", c.MalformedFrames, malformedPercent)
	}
	if c.AnomalousValues > 0 {
		result += fmt.Sprintf("Anomalous Values:%8d (%.1f%%)\n", c.AnomalousValues, anomalousPercent)
		if c.InvalidTemp > 0 {
			result += fmt.Sprintf("  Invalid Temp:     %5d\n", c.InvalidTemp)
		}
		if c.InvalidSpeed > 0 {
			result += fmt.Sprintf("  Invalid Speed:    %5d\n", c.InvalidSpeed)
		}
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", c.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", c.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.c = Counters{StartTime: now, LastUpdateTime: now}
}
