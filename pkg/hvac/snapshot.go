// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 HWHardsoft

package hvac

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// SensorSample is a reading as recorded in a snapshot. Fault is the legacy
// sentinel when the read failed, 0 otherwise.
type SensorSample struct {
	Celsius int `cbor:"0,keyasint"`
	Fault   int `cbor:"1,keyasint,omitempty"`
}

// Snapshot is a point-in-time copy of the controller state.
type Snapshot struct {
	Time          time.Time    `cbor:"0,keyasint"`
	Tick          uint64       `cbor:"1,keyasint"`
	Phase         int          `cbor:"2,keyasint"`
	Mode          Mode         `cbor:"3,keyasint"`
	ACEnabled     bool         `cbor:"4,keyasint"`
	SetpointLeft  int          `cbor:"5,keyasint"`
	SetpointRight int          `cbor:"6,keyasint"`
	Outside       SensorSample `cbor:"7,keyasint"`
	InsideLeft    SensorSample `cbor:"8,keyasint"`
	InsideRight   SensorSample `cbor:"9,keyasint"`
	Outputs       uint16       `cbor:"10,keyasint"` // bit n = Output(n)
	FanLevel      int          `cbor:"11,keyasint"`
	FanDuty       int          `cbor:"12,keyasint"`
}

func sampleOf(r Reading) SensorSample {
	if r.Err != nil {
		return SensorSample{Celsius: r.Legacy(), Fault: LegacySentinel(r.Err)}
	}
	return SensorSample{Celsius: r.Celsius}
}

// newSnapshot copies s into a snapshot.
func newSnapshot(s *State, tick uint64) Snapshot {
	var outputs uint16
	for _, o := range Outputs {
		if s.Actuators.Get(o) {
			outputs |= 1 << uint(o)
		}
	}
	return Snapshot{
		Time:          time.Now(),
		Tick:          tick,
		Phase:         int(tick % CycleLength),
		Mode:          s.Mode,
		ACEnabled:     s.ACEnabled,
		SetpointLeft:  s.Setpoints.Left,
		SetpointRight: s.Setpoints.Right,
		Outside:       sampleOf(s.Readings.Outside),
		InsideLeft:    sampleOf(s.Readings.InsideLeft),
		InsideRight:   sampleOf(s.Readings.InsideRight),
		Outputs:       outputs,
		FanLevel:      s.Actuators.FanLevel,
		FanDuty:       s.Actuators.FanDuty,
	}
}

// Output reports whether relay o was on when the snapshot was taken.
func (s Snapshot) Output(o Output) bool {
	return s.Outputs&(1<<uint(o)) != 0
}

// Recorder appends snapshots to a stream as a CBOR sequence.
type Recorder struct {
	enc *cbor.Encoder
}

// NewRecorder creates a recorder writing to w.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{enc: cbor.NewEncoder(w)}
}

// Record writes one snapshot.
func (r *Recorder) Record(s Snapshot) error {
	if err := r.enc.Encode(s); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// ReadRecording decodes every snapshot in a recording, calling fn for each.
// It stops at the first error returned by fn.
func ReadRecording(r io.Reader, fn func(Snapshot) error) error {
	dec := cbor.NewDecoder(r)
	for {
		var s Snapshot
		if err := dec.Decode(&s); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to decode snapshot: %w", err)
		}
		if err := fn(s); err != nil {
			return err
		}
	}
}
