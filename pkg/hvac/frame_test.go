// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 HWHardsoft

package hvac

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func inboxOf(s string) *Inbox {
	in := NewInbox()
	in.Write([]byte(s))
	return in
}

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		id      uint8
		payload string
		wantErr error
	}{
		{"plain", "id10=1|", 10, "1", nil},
		{"leading junk", "junkid05=1|", 5, "1", nil},
		{"no terminator", "id13=7", 13, "7", nil},
		{"multi byte payload", "id16=25|", 16, "25", nil},
		{"first equals wins", "id02=1=0|", 2, "1=0", nil},
		{"no equals", "noequalshere|", 0, "", ErrNoAssignment},
		{"equals at start", "=1|", 0, "", ErrBadIdentifier},
		{"equals at offset one", "7=1|", 0, "", ErrBadIdentifier},
		{"non digit id", "idAB=1|", 0, "", ErrBadIdentifier},
		{"empty value", "id10=|", 0, "", ErrEmptyAssignment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseFrame([]byte(tt.in))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseFrame(%q) error = %v, want %v", tt.in, err, tt.wantErr)
				}
				if f != nil {
					t.Errorf("ParseFrame(%q) returned a frame with an error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFrame(%q) unexpected error: %v", tt.in, err)
			}
			if f.ID() != tt.id {
				t.Errorf("ID() = %d, want %d", f.ID(), tt.id)
			}
			if string(f.Payload()) != tt.payload {
				t.Errorf("Payload() = %q, want %q", f.Payload(), tt.payload)
			}
			if string(f.Raw()) != tt.in {
				t.Errorf("Raw() = %q, want %q", f.Raw(), tt.in)
			}
		})
	}
}

func TestParserPollIncomplete(t *testing.T) {
	p := NewParser()
	in := inboxOf("id1")

	f, err := p.Poll(in)
	if f != nil || err != nil {
		t.Fatalf("Poll on partial input = (%v, %v), want (nil, nil)", f, err)
	}
	if string(p.Buffered()) != "id1" {
		t.Fatalf("Buffered() = %q, want %q", p.Buffered(), "id1")
	}

	in.Write([]byte("0=1|"))
	f, err = p.Poll(in)
	if err != nil {
		t.Fatalf("Poll unexpected error: %v", err)
	}
	if f == nil || f.ID() != CmdACEnable || f.Command().Value != '1' {
		t.Fatalf("Poll = %+v, want id10 value '1'", f)
	}
	if len(p.Buffered()) != 0 {
		t.Errorf("buffer not reset after frame: %q", p.Buffered())
	}
}

func TestParserDrainsResidualInput(t *testing.T) {
	p := NewParser()
	in := inboxOf("id02=1|id04=1|")

	f, err := p.Poll(in)
	if err != nil || f == nil {
		t.Fatalf("Poll = (%v, %v), want a frame", f, err)
	}
	if f.ID() != CmdFogLight {
		t.Errorf("ID() = %d, want %d", f.ID(), CmdFogLight)
	}
	if in.Len() != 0 {
		t.Errorf("residual bytes not drained: %d left", in.Len())
	}

	f, err = p.Poll(in)
	if f != nil || err != nil {
		t.Errorf("second frame survived the drain: (%v, %v)", f, err)
	}
}

func TestParserDiscardsMalformedFrame(t *testing.T) {
	p := NewParser()
	in := inboxOf("noequalshere|")

	f, err := p.Poll(in)
	if f != nil {
		t.Fatalf("malformed frame returned %+v", f)
	}
	if !errors.Is(err, ErrNoAssignment) {
		t.Fatalf("Poll error = %v, want ErrNoAssignment", err)
	}
	if len(p.Buffered()) != 0 {
		t.Errorf("buffer not reset: %q", p.Buffered())
	}

	in.Write([]byte("id07=1|"))
	f, err = p.Poll(in)
	if err != nil || f == nil || f.ID() != CmdAirCirculation {
		t.Errorf("frame after discard = (%v, %v), want id07", f, err)
	}
}

func TestParserOverflow(t *testing.T) {
	p := NewParser()
	in := inboxOf(strings.Repeat("x", MaxFrameSize+10))

	f, err := p.Poll(in)
	if f != nil {
		t.Fatalf("overflow returned frame %+v", f)
	}
	if !errors.Is(err, ErrFrameOverflow) {
		t.Fatalf("Poll error = %v, want ErrFrameOverflow", err)
	}
	if in.Len() != 0 || len(p.Buffered()) != 0 {
		t.Errorf("overflow left state: inbox=%d buffer=%d", in.Len(), len(p.Buffered()))
	}
}

func TestParserExactlyMaxFrame(t *testing.T) {
	p := NewParser()
	frame := strings.Repeat("x", MaxFrameSize-len("id02=1|")) + "id02=1|"
	f, err := p.Poll(inboxOf(frame))
	if err != nil || f == nil {
		t.Fatalf("Poll(%d-byte frame) = (%v, %v), want a frame", len(frame), f, err)
	}
	if f.ID() != CmdFogLight {
		t.Errorf("ID() = %d, want %d", f.ID(), CmdFogLight)
	}
}

func TestEncodeFrame(t *testing.T) {
	tests := []struct {
		id    uint8
		value byte
		want  string
	}{
		{CmdFogLight, '1', "id02=1|"},
		{CmdFanLevel, '7', "id13=7|"},
		{CmdVentFrontFoot, '0', "id22=0|"},
	}

	for _, tt := range tests {
		got := EncodeFrame(tt.id, tt.value)
		if !bytes.Equal(got, []byte(tt.want)) {
			t.Errorf("EncodeFrame(%d, %q) = %q, want %q", tt.id, tt.value, got, tt.want)
		}

		f, err := ParseFrame(got)
		if err != nil {
			t.Fatalf("ParseFrame(EncodeFrame(%d)) error: %v", tt.id, err)
		}
		if f.Command() != (Command{ID: tt.id, Value: tt.value}) {
			t.Errorf("ParseFrame(EncodeFrame) = %+v", f.Command())
		}
	}
}

func TestInboxCapacity(t *testing.T) {
	in := NewInbox()
	n, err := in.Write(make([]byte, maxInboxSize+100))
	if err != nil || n != maxInboxSize+100 {
		t.Fatalf("Write = (%d, %v)", n, err)
	}
	if in.Len() != maxInboxSize {
		t.Errorf("Len() = %d, want %d", in.Len(), maxInboxSize)
	}
	if in.Dropped() != 100 {
		t.Errorf("Dropped() = %d, want 100", in.Dropped())
	}
}
