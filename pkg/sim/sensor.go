// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 HWHardsoft

// Package sim provides simulated controller hardware: 1-Wire temperature
// sensors, a relay/PWM output bank and scripted bench scenarios.
package sim

import (
	"math"
	"sync"

	"github.com/HWHardsoft/HVAC-car-control/pkg/hvac"
)

// Fault is an injected sensor bus failure.
type Fault string

// Sensor faults
const (
	FaultNone        Fault = ""
	FaultNoDevice    Fault = "no_device"
	FaultCRC         Fault = "crc"
	FaultUnsupported Fault = "unsupported"
)

// unsupportedFamily is a 1-Wire family code the reader does not accept.
const unsupportedFamily = 0x05

// Step is one scripted sensor result: a temperature or a fault.
type Step struct {
	Celsius float64
	Fault   Fault
}

// Temp returns a temperature step.
func Temp(c float64) Step {
	return Step{Celsius: c}
}

// Fail returns a fault step.
func Fail(f Fault) Step {
	return Step{Fault: f}
}

// Sensor emulates a DS18S20, DS18B20 or DS1822 on its own bus.
//
// Each temperature read consumes one step. After the last step the final
// step repeats.
type Sensor struct {
	mu         sync.Mutex
	family     byte
	serial     [6]byte
	resolution int
	steps      []Step
	next       int
	scratch    [9]byte
	readPos    int
	converts   int
	searches   int
}

// NewSensor creates a sensor of the given family. resolution is 9..12 bits
// and only affects DS18B20/DS1822 families.
func NewSensor(family byte, resolution int, steps ...Step) *Sensor {
	if resolution < 9 || resolution > 12 {
		resolution = 12
	}
	if len(steps) == 0 {
		steps = []Step{Temp(hvac.DefaultTemperature)}
	}
	return &Sensor{
		family:     family,
		serial:     [6]byte{0x01, 0x23, 0x45, 0x67, 0x89, family},
		resolution: resolution,
		steps:      steps,
	}
}

// SetSteps replaces the script and restarts it.
func (s *Sensor) SetSteps(steps ...Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = steps
	s.next = 0
}

// Conversions returns the number of completed temperature conversions.
func (s *Sensor) Conversions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.converts
}

// Searches returns the number of ROM searches seen.
func (s *Sensor) Searches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searches
}

func (s *Sensor) current() Step {
	if len(s.steps) == 0 {
		return Temp(hvac.DefaultTemperature)
	}
	if s.next >= len(s.steps) {
		return s.steps[len(s.steps)-1]
	}
	return s.steps[s.next]
}

func (s *Sensor) advance() {
	if s.next < len(s.steps) {
		s.next++
	}
}

// Search implements hvac.Bus.
func (s *Sensor) Search() ([8]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches++

	step := s.current()
	family := s.family
	switch step.Fault {
	case FaultNoDevice:
		s.advance()
		return [8]byte{}, false
	case FaultUnsupported:
		s.advance()
		family = unsupportedFamily
	}

	var rom [8]byte
	rom[0] = family
	copy(rom[1:7], s.serial[:])
	rom[7] = hvac.CRC8(rom[:7])

	if step.Fault == FaultCRC {
		s.advance()
		rom[7] ^= 0xFF
	}
	return rom, true
}

// ResetSearch implements hvac.Bus.
func (s *Sensor) ResetSearch() {}

// Reset implements hvac.Bus.
func (s *Sensor) Reset() bool {
	return true
}

// Select implements hvac.Bus.
func (s *Sensor) Select(rom [8]byte) {}

// Write implements hvac.Bus.
func (s *Sensor) Write(b byte, power bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch b {
	case 0x44:
		s.scratch = s.scratchpad(s.current().Celsius)
		s.converts++
		s.advance()
	case 0xBE:
		s.readPos = 0
	}
}

// Read implements hvac.Bus.
func (s *Sensor) Read() byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readPos >= len(s.scratch) {
		return 0xFF
	}
	b := s.scratch[s.readPos]
	s.readPos++
	return b
}

// scratchpad builds the nine scratchpad bytes the device reports for c.
func (s *Sensor) scratchpad(c float64) [9]byte {
	var data [9]byte
	t16 := int16(math.Round(c * 16))

	if s.family == hvac.FamilyDS18S20 {
		// Half-degree register plus COUNT_REMAIN / COUNT_PER_C for the
		// extended-resolution calculation.
		raw9 := (t16 + 4) >> 3
		whole16 := (raw9 << 3) &^ 0x0F
		remain := whole16 + 12 - t16
		if remain < 0 {
			remain = 0
		} else if remain > 16 {
			remain = 16
		}
		data[0] = byte(uint16(raw9))
		data[1] = byte(uint16(raw9) >> 8)
		data[4] = 0xFF
		data[5] = 0xFF
		data[6] = byte(remain)
		data[7] = 0x10
	} else {
		mask := int16(0)
		config := byte(0x7F)
		switch s.resolution {
		case 9:
			mask, config = 7, 0x1F
		case 10:
			mask, config = 3, 0x3F
		case 11:
			mask, config = 1, 0x5F
		}
		raw := t16 &^ mask
		data[0] = byte(uint16(raw))
		data[1] = byte(uint16(raw) >> 8)
		data[2] = 0x4B
		data[3] = 0x46
		data[4] = config
		data[5] = 0xFF
		data[6] = 0x0C
		data[7] = 0x10
	}
	data[8] = hvac.CRC8(data[:8])
	return data
}
