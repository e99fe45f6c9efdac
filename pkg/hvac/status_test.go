// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 HWHardsoft

package hvac

import (
	"bytes"
	"testing"
)

func TestEncodeStatus(t *testing.T) {
	tests := []struct {
		value int
		want  []byte
	}{
		{23, []byte("ID1.val=23\xff\xff\xff")},
		{-4, []byte("ID1.val=-4\xff\xff\xff")},
		{0, []byte("ID1.val=0\xff\xff\xff")},
	}

	for _, tt := range tests {
		got := EncodeStatus(StatusField, tt.value)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("EncodeStatus(%d) = % X, want % X", tt.value, got, tt.want)
		}
	}
}

func TestEncodeOutsideStatusSentinel(t *testing.T) {
	got := EncodeOutsideStatus(Reading{Err: ErrNoDeviceFound})
	want := []byte("ID1.val=97\xff\xff\xff")
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeOutsideStatus(no device) = %q, want %q", got, want)
	}
}

func TestStatusDecoder(t *testing.T) {
	d := NewStatusDecoder()
	stream := append(EncodeStatus(StatusField, 23), EncodeStatus(StatusField, -4)...)

	var got []*Status
	for _, b := range stream {
		st, err := d.DecodeByte(b)
		if err != nil {
			t.Fatalf("DecodeByte error: %v", err)
		}
		if st != nil {
			got = append(got, st)
		}
	}

	if len(got) != 2 {
		t.Fatalf("decoded %d statuses, want 2", len(got))
	}
	if got[0].Field != StatusField || got[0].Value != 23 {
		t.Errorf("first status = %+v", got[0])
	}
	if got[1].Value != -4 {
		t.Errorf("second status = %+v", got[1])
	}
}

func TestStatusDecoderInvalid(t *testing.T) {
	d := NewStatusDecoder()
	var lastErr error
	for _, b := range []byte("garbage\xff\xff\xff") {
		if _, err := d.DecodeByte(b); err != nil {
			lastErr = err
		}
	}
	if lastErr == nil {
		t.Errorf("status without '=' decoded without error")
	}

	// The decoder recovers for the next status.
	for _, b := range EncodeStatus(StatusField, 5) {
		st, err := d.DecodeByte(b)
		if err != nil {
			t.Fatalf("DecodeByte after error: %v", err)
		}
		if st != nil && st.Value != 5 {
			t.Errorf("status after error = %+v", st)
		}
	}
}
