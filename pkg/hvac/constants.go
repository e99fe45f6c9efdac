// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 HWHardsoft

// Package hvac implements the control core of the car HVAC controller.
//
// It covers the display command protocol (terminator-delimited ASCII frames
// sent by the touch display), the command dispatcher that maps those frames
// onto actuator state, the bang-bang thermostat, the 1-Wire temperature
// reader and the round-robin scheduler that ties them together.
package hvac

import "time"

// Display protocol framing
const (
	// Terminator ends every inbound display frame.
	Terminator = '|'

	// Assign separates the command identifier from its value.
	Assign = '='

	// MaxFrameSize bounds the inbound frame buffer. Longer input without a
	// terminator is discarded.
	MaxFrameSize = 64

	// StatusField is the display field that receives the outside temperature.
	StatusField = "ID1.val"
)

// StatusTerminator ends every outbound status push.
var StatusTerminator = []byte{0xFF, 0xFF, 0xFF}

// Command identifiers sent by the display. Identifiers are two decimal digits.
const (
	CmdFogLight        = 2
	CmdWindowHeatRear  = 4
	CmdVentFootWindow  = 5
	CmdWindowHeatFront = 6
	CmdAirCirculation  = 7
	CmdVentFoot        = 9
	CmdACEnable        = 10
	CmdFanLevel        = 13
	CmdVentFront       = 14
	CmdSetpointLeft    = 16
	CmdHVACPower       = 18
	CmdSetpointRight   = 20
	CmdVentFrontFoot   = 22

	numCommandIDs = 100
)

// Fan speed
const (
	MaxFanLevel = 7
	MaxFanDuty  = 1023
)

// fanDutyTable maps a fan level onto the PWM duty written to the fan output.
var fanDutyTable = [MaxFanLevel + 1]int{0, 146, 293, 439, 585, 731, 877, MaxFanDuty}

// Temperature defaults and thermostat limits
const (
	DefaultSetpoint    = 20
	DefaultTemperature = 20

	// CoolingFloor is the outside temperature at or below which the
	// compressor is never engaged.
	CoolingFloor = 15

	// CoolingDeadBand is how far above the setpoint the outside temperature
	// must rise before cooling starts.
	CoolingDeadBand = 1
)

// Legacy sentinel temperatures reported in place of a reading when the
// sensor bus fails.
const (
	SentinelNoDevice    = 97
	SentinelCRCMismatch = 98
	SentinelUnsupported = 99
)

// 1-Wire sensor families and commands
const (
	FamilyDS18S20 = 0x10
	FamilyDS18B20 = 0x28
	FamilyDS1822  = 0x22

	cmdConvertT       = 0x44
	cmdReadScratchpad = 0xBE

	scratchpadSize = 9
	romSize        = 8
)

// Scheduler cadence
const (
	// CycleLength is the number of scheduler slots in one round-robin cycle.
	// The phase counter runs 0..100 inclusive.
	CycleLength = 101

	SlotOutside     = 0
	SlotInsideRight = 25
	SlotInsideLeft  = 50
	SlotControl     = 75
)

// Timing defaults
const (
	DefaultPace           = 10 * time.Millisecond
	DefaultConversionWait = 750 * time.Millisecond
	DefaultNoDeviceWait   = 250 * time.Millisecond
	DefaultSettleWait     = 250 * time.Millisecond
	DefaultBootSensorGap  = 100 * time.Millisecond
)
