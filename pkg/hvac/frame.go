// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 HWHardsoft

package hvac

import (
	"bytes"
	"errors"
	"fmt"
	"time"
)

// Frame errors. A frame that fails to parse is discarded; these errors only
// tell the caller why.
var (
	ErrNoAssignment    = errors.New("frame has no '=' assignment")
	ErrBadIdentifier   = errors.New("frame has no two-digit command identifier")
	ErrFrameOverflow   = errors.New("frame exceeds maximum size")
	ErrEmptyAssignment = errors.New("frame has no value after '='")
)

// ByteSource yields inbound bytes without blocking.
type ByteSource interface {
	// TryReadByte returns the next byte, or false if none is buffered.
	TryReadByte() (byte, bool)
}

// Frame is one complete terminator-delimited display frame.
type Frame struct {
	raw       []byte
	id        uint8
	payload   []byte
	timestamp time.Time
}

// ID returns the two-digit command identifier.
func (f *Frame) ID() uint8 {
	return f.id
}

// Payload returns the bytes between '=' and the terminator.
func (f *Frame) Payload() []byte {
	return f.payload
}

// Raw returns the frame bytes including the terminator.
func (f *Frame) Raw() []byte {
	return f.raw
}

// Timestamp returns when the frame was completed.
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// Command returns the command carried by the frame.
func (f *Frame) Command() Command {
	return Command{ID: f.id, Value: f.payload[0]}
}

// Parser accumulates display bytes into frames
type Parser struct {
	buffer []byte
}

// NewParser creates a parser with an empty frame buffer
func NewParser() *Parser {
	return &Parser{buffer: make([]byte, 0, MaxFrameSize)}
}

// Reset discards any partially received frame
func (p *Parser) Reset() {
	p.buffer = p.buffer[:0]
}

// Buffered returns the bytes of the frame received so far.
func (p *Parser) Buffered() []byte {
	return p.buffer
}

// Poll consumes bytes from src until it runs dry or a terminator arrives.
//
// It returns (nil, nil) while the frame is incomplete; buffered bytes are kept
// for the next call. Once a terminator is seen the frame is parsed, every
// byte still waiting in src is drained and the buffer is reset, whether the
// frame parsed or not. A frame that does not parse returns a nil frame and an
// error describing why it was discarded.
func (p *Parser) Poll(src ByteSource) (*Frame, error) {
	for {
		b, ok := src.TryReadByte()
		if !ok {
			return nil, nil
		}

		if len(p.buffer) >= MaxFrameSize {
			p.finish(src)
			return nil, fmt.Errorf("%w (%d bytes)", ErrFrameOverflow, MaxFrameSize)
		}

		p.buffer = append(p.buffer, b)
		if b != Terminator {
			continue
		}

		frame, err := ParseFrame(p.buffer)
		p.finish(src)
		return frame, err
	}
}

// finish drains residual input and clears the frame buffer.
func (p *Parser) finish(src ByteSource) {
	for {
		if _, ok := src.TryReadByte(); !ok {
			break
		}
	}
	p.Reset()
}

// ParseFrame parses one complete frame. The trailing terminator is optional.
//
// The first '=' splits the frame: the two bytes before it are the decimal
// command identifier and everything after it (up to the terminator) is the
// value payload. Any text before the identifier is ignored.
func ParseFrame(data []byte) (*Frame, error) {
	raw := make([]byte, len(data))
	copy(raw, data)

	body := bytes.TrimSuffix(raw, []byte{Terminator})
	eq := bytes.IndexByte(body, Assign)
	if eq < 0 {
		return nil, ErrNoAssignment
	}
	if eq < 2 {
		return nil, fmt.Errorf("%w: '=' at offset %d", ErrBadIdentifier, eq)
	}

	hi, lo := body[eq-2], body[eq-1]
	if !isDigit(hi) || !isDigit(lo) {
		return nil, fmt.Errorf("%w: %q", ErrBadIdentifier, body[eq-2:eq])
	}

	payload := body[eq+1:]
	if len(payload) == 0 {
		return nil, ErrEmptyAssignment
	}

	return &Frame{
		raw:       raw,
		id:        (hi-'0')*10 + (lo - '0'),
		payload:   payload,
		timestamp: time.Now(),
	}, nil
}

// EncodeFrame builds the frame the display sends for a command.
func EncodeFrame(id uint8, value byte) []byte {
	return []byte(fmt.Sprintf("id%02d=%c%c", id, value, Terminator))
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
