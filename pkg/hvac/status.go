// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 HWHardsoft

package hvac

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// maxStatusSize bounds one outbound status assignment.
const maxStatusSize = 64

// Status is one display field assignment pushed by the controller.
type Status struct {
	Field     string
	Value     int
	Timestamp time.Time
}

// EncodeStatus builds a display assignment: "<field>=<value>" followed by
// the three-byte status terminator.
func EncodeStatus(field string, value int) []byte {
	out := make([]byte, 0, len(field)+8+len(StatusTerminator))
	out = append(out, field...)
	out = append(out, Assign)
	out = strconv.AppendInt(out, int64(value), 10)
	return append(out, StatusTerminator...)
}

// EncodeOutsideStatus builds the status push for an outside reading.
// Failed readings are sent as their legacy sentinel.
func EncodeOutsideStatus(r Reading) []byte {
	return EncodeStatus(StatusField, r.Legacy())
}

// StatusDecoder reassembles status pushes from the controller's output
// stream, one byte at a time.
type StatusDecoder struct {
	buffer []byte
	ffRun  int
}

// NewStatusDecoder creates a status decoder
func NewStatusDecoder() *StatusDecoder {
	return &StatusDecoder{buffer: make([]byte, 0, maxStatusSize)}
}

// Reset discards any partial status
func (d *StatusDecoder) Reset() {
	d.buffer = d.buffer[:0]
	d.ffRun = 0
}

// DecodeByte processes a single byte.
// Returns a completed status, or nil if the status is incomplete.
// Returns an error if the completed bytes are not a valid assignment.
func (d *StatusDecoder) DecodeByte(b byte) (*Status, error) {
	if b == 0xFF {
		d.ffRun++
		if d.ffRun < len(StatusTerminator) {
			return nil, nil
		}
		body := append([]byte(nil), d.buffer...)
		d.Reset()
		return parseStatus(body)
	}

	// A short run of 0xFF that was not a terminator is payload.
	for ; d.ffRun > 0; d.ffRun-- {
		d.buffer = append(d.buffer, 0xFF)
	}

	if len(d.buffer) >= maxStatusSize {
		d.Reset()
		return nil, fmt.Errorf("status exceeds %d bytes", maxStatusSize)
	}
	d.buffer = append(d.buffer, b)
	return nil, nil
}

func parseStatus(body []byte) (*Status, error) {
	eq := bytes.IndexByte(body, Assign)
	if eq <= 0 {
		return nil, fmt.Errorf("status %q has no field assignment", body)
	}
	value, err := strconv.Atoi(string(body[eq+1:]))
	if err != nil {
		return nil, fmt.Errorf("status %q: invalid value: %w", body, err)
	}
	return &Status{
		Field:     string(body[:eq]),
		Value:     value,
		Timestamp: time.Now(),
	}, nil
}
