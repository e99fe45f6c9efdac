// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 HWHardsoft

package hvac

import (
	"strings"
	"testing"
)

func TestStatisticsRecordFrame(t *testing.T) {
	s := NewStatistics()

	inputs := []string{
		"id10=1|",     // dispatched
		"id99=1|",     // unknown
		"id13=9|",     // rejected value
		"noequals|",   // no assignment
		"=1|",         // bad identifier
		"id10=|",      // empty value
		"junkid02=0|", // dispatched
	}
	for _, in := range inputs {
		f, err := ParseFrame([]byte(in))
		handled := false
		if err == nil {
			st := NewState()
			handled = Dispatch(&st, f.Command())
		}
		s.RecordFrame(f, err, handled)
	}
	s.RecordFrame(nil, ErrFrameOverflow, false)

	if s.TotalFrames != 8 {
		t.Errorf("TotalFrames = %d, want 8", s.TotalFrames)
	}
	checks := []struct {
		name string
		got  uint64
		want uint64
	}{
		{"Dispatched", s.Dispatched, 2},
		{"UnknownCommands", s.UnknownCommands, 1},
		{"RejectedValues", s.RejectedValues, 1},
		{"NoAssignment", s.NoAssignment, 1},
		{"BadIdentifier", s.BadIdentifier, 1},
		{"EmptyValue", s.EmptyValue, 1},
		{"Overflows", s.Overflows, 1},
		{"Discarded", s.Discarded(), 4},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}

	out := s.String()
	for _, want := range []string{"Total Frames:", "Dispatched:", "Discarded:", "Overflow:"} {
		if !strings.Contains(out, want) {
			t.Errorf("String() missing %q:\n%s", want, out)
		}
	}

	s.Reset()
	if s.TotalFrames != 0 || s.Discarded() != 0 {
		t.Errorf("Reset left counters: %+v", s)
	}
}
