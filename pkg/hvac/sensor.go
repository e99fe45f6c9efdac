// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 HWHardsoft

package hvac

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sensor errors
var (
	ErrNoDeviceFound     = errors.New("no sensor found on bus")
	ErrCRCMismatch       = errors.New("sensor ROM CRC mismatch")
	ErrUnsupportedDevice = errors.New("unsupported sensor family")
)

// Bus is a 1-Wire bus carrying one temperature sensor.
type Bus interface {
	// Search finds the next device ROM. It returns false when no device
	// answered.
	Search() ([8]byte, bool)
	ResetSearch()
	// Reset issues a bus reset and reports whether a presence pulse was seen.
	Reset() bool
	Select(rom [8]byte)
	// Write sends a byte. When power is true the bus is held high afterwards
	// to feed parasite-powered devices.
	Write(b byte, power bool)
	Read() byte
}

// WaitFunc blocks for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default WaitFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Reading is one sample from a sensor bus.
type Reading struct {
	Celsius int
	Err     error
}

// Legacy returns the temperature, or the legacy sentinel if the read failed.
func (r Reading) Legacy() int {
	if r.Err != nil {
		return LegacySentinel(r.Err)
	}
	return r.Celsius
}

// String formats the reading for logs and the console.
func (r Reading) String() string {
	if r.Err != nil {
		return fmt.Sprintf("ERR(%d)", LegacySentinel(r.Err))
	}
	return fmt.Sprintf("%d°C", r.Celsius)
}

// LegacySentinel maps a sensor error onto the out-of-range temperature the
// display firmware expects in its place. Unrecognised errors map to the
// no-device sentinel.
func LegacySentinel(err error) int {
	switch {
	case errors.Is(err, ErrCRCMismatch):
		return SentinelCRCMismatch
	case errors.Is(err, ErrUnsupportedDevice):
		return SentinelUnsupported
	default:
		return SentinelNoDevice
	}
}

// SensorReader performs temperature conversions on a Bus.
type SensorReader struct {
	// Wait implements the conversion and no-device delays. Defaults to Sleep.
	Wait WaitFunc

	// ConversionWait is how long a conversion takes. Defaults to 750 ms.
	ConversionWait time.Duration

	// NoDeviceWait is the pause after a failed search. Defaults to 250 ms.
	NoDeviceWait time.Duration

	// Diagnostic is called when the DS18S20 extended-resolution correction
	// is applied. May be nil.
	Diagnostic func()
}

func (r *SensorReader) wait(ctx context.Context, d time.Duration) error {
	if r.Wait != nil {
		return r.Wait(ctx, d)
	}
	return Sleep(ctx, d)
}

// ReadTemperature discovers the sensor on bus, runs a conversion and
// returns the temperature in whole degrees Celsius.
//
// Errors are ErrNoDeviceFound, ErrCRCMismatch, ErrUnsupportedDevice, or the
// context error if ctx ends during a wait.
func (r *SensorReader) ReadTemperature(ctx context.Context, bus Bus) (int, error) {
	conversionWait := r.ConversionWait
	if conversionWait == 0 {
		conversionWait = DefaultConversionWait
	}
	noDeviceWait := r.NoDeviceWait
	if noDeviceWait == 0 {
		noDeviceWait = DefaultNoDeviceWait
	}

	rom, found := bus.Search()
	if !found {
		bus.ResetSearch()
		if err := r.wait(ctx, noDeviceWait); err != nil {
			return 0, err
		}
		return 0, ErrNoDeviceFound
	}

	if crc := CRC8(rom[:romSize-1]); crc != rom[romSize-1] {
		return 0, fmt.Errorf("%w: expected 0x%02X, got 0x%02X", ErrCRCMismatch, crc, rom[romSize-1])
	}

	var typeS bool
	switch rom[0] {
	case FamilyDS18S20:
		typeS = true
	case FamilyDS18B20, FamilyDS1822:
		typeS = false
	default:
		return 0, fmt.Errorf("%w: 0x%02X", ErrUnsupportedDevice, rom[0])
	}

	bus.Reset()
	bus.Select(rom)
	bus.Write(cmdConvertT, true)
	if err := r.wait(ctx, conversionWait); err != nil {
		return 0, err
	}
	bus.Reset()
	bus.Select(rom)
	bus.Write(cmdReadScratchpad, false)

	var data [scratchpadSize]byte
	for i := range data {
		data[i] = bus.Read()
	}

	return r.decode(data, typeS), nil
}

// decode converts a scratchpad into whole degrees.
func (r *SensorReader) decode(data [scratchpadSize]byte, typeS bool) int {
	raw := int16(uint16(data[1])<<8 | uint16(data[0]))

	if typeS {
		// 9-bit default resolution
		raw <<= 3
		if data[7] == 0x10 {
			if r.Diagnostic != nil {
				r.Diagnostic()
			}
			raw = (raw &^ 0x0F) + 12 - int16(data[6])
		}
	} else {
		switch data[4] & 0x60 {
		case 0x00:
			raw &^= 7 // 9-bit, 93.75 ms
		case 0x20:
			raw &^= 3 // 10-bit, 187.5 ms
		case 0x40:
			raw &^= 1 // 11-bit, 375 ms
		}
	}

	return int(raw) / 16
}

// CRC8 computes the Dallas/Maxim 1-Wire CRC (polynomial x^8+x^5+x^4+1).
func CRC8(data []byte) byte {
	var crc byte
	for _, b := range data {
		for i := 0; i < 8; i++ {
			mix := (crc ^ b) & 0x01
			crc >>= 1
			if mix != 0 {
				crc ^= 0x8C
			}
			b >>= 1
		}
	}
	return crc
}
