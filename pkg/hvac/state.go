// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 HWHardsoft

package hvac

// Output identifies a discrete relay output.
type Output int

// Relay outputs
const (
	OutputVentFront Output = iota
	OutputVentFoot
	OutputVentWindow
	OutputFanPower
	OutputCompressor
	OutputHeaterValve
	OutputAirCirculation
	OutputFogLight
	OutputWindowHeatFront
	OutputWindowHeatRear
	OutputDiagnostic
	numOutputs
)

// Outputs lists every relay output in drive order.
var Outputs = []Output{
	OutputVentFront,
	OutputVentFoot,
	OutputVentWindow,
	OutputFanPower,
	OutputCompressor,
	OutputHeaterValve,
	OutputAirCirculation,
	OutputFogLight,
	OutputWindowHeatFront,
	OutputWindowHeatRear,
	OutputDiagnostic,
}

// String returns the relay name.
func (o Output) String() string {
	switch o {
	case OutputVentFront:
		return "VENT_FRONT"
	case OutputVentFoot:
		return "VENT_FOOT"
	case OutputVentWindow:
		return "VENT_WINDOW"
	case OutputFanPower:
		return "FAN_POWER"
	case OutputCompressor:
		return "COMPRESSOR"
	case OutputHeaterValve:
		return "HEATER_VALVE"
	case OutputAirCirculation:
		return "AIR_CIRCULATION"
	case OutputFogLight:
		return "FOG_LIGHT"
	case OutputWindowHeatFront:
		return "WINDOW_HEAT_FRONT"
	case OutputWindowHeatRear:
		return "WINDOW_HEAT_REAR"
	case OutputDiagnostic:
		return "DIAGNOSTIC"
	default:
		return "UNKNOWN"
	}
}

// Mode is the thermostat decision.
type Mode int

// Thermostat modes
const (
	ModeIdle Mode = iota
	ModeHeating
	ModeCooling
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeHeating:
		return "HEATING"
	case ModeCooling:
		return "COOLING"
	default:
		return "IDLE"
	}
}

// Vent is a ventilation mode. The zero value has every vent closed.
type Vent struct {
	Front  bool
	Foot   bool
	Window bool
}

// Ventilation modes selectable from the display
var (
	VentOff        = Vent{}
	VentFootWindow = Vent{Foot: true, Window: true}
	VentFootOnly   = Vent{Foot: true}
	VentFrontOnly  = Vent{Front: true}
	VentFrontFoot  = Vent{Front: true, Foot: true}
)

// Actuators holds the commanded state of every output.
type Actuators struct {
	Vent            Vent
	FanPower        bool
	FanLevel        int
	FanDuty         int
	Compressor      bool
	HeaterValve     bool
	AirCirculation  bool
	FogLight        bool
	WindowHeatFront bool
	WindowHeatRear  bool
	Diagnostic      bool
}

// Get returns the commanded value of a relay output.
func (a *Actuators) Get(o Output) bool {
	switch o {
	case OutputVentFront:
		return a.Vent.Front
	case OutputVentFoot:
		return a.Vent.Foot
	case OutputVentWindow:
		return a.Vent.Window
	case OutputFanPower:
		return a.FanPower
	case OutputCompressor:
		return a.Compressor
	case OutputHeaterValve:
		return a.HeaterValve
	case OutputAirCirculation:
		return a.AirCirculation
	case OutputFogLight:
		return a.FogLight
	case OutputWindowHeatFront:
		return a.WindowHeatFront
	case OutputWindowHeatRear:
		return a.WindowHeatRear
	case OutputDiagnostic:
		return a.Diagnostic
	}
	return false
}

// setVent replaces the whole ventilation group. Outputs dropped from the
// group are written before outputs added to it (see syncOutputs).
func (a *Actuators) setVent(v Vent) {
	a.Vent = v
}

// setFan sets power and duty for a fan level. Levels outside 0..7 are ignored.
func (a *Actuators) setFan(level int) bool {
	if level < 0 || level > MaxFanLevel {
		return false
	}
	a.FanLevel = level
	a.FanPower = level > 0
	a.FanDuty = fanDutyTable[level]
	return true
}

// applyMode drives the compressor and heater valve for a thermostat mode.
func (a *Actuators) applyMode(m Mode) {
	switch m {
	case ModeHeating:
		a.Compressor = false
		a.HeaterValve = true
	case ModeCooling:
		a.Compressor = true
		a.HeaterValve = false
	default:
		a.Compressor = false
		a.HeaterValve = false
	}
}

// Setpoints holds the user-selected cabin temperatures.
type Setpoints struct {
	Left  int
	Right int
}

// Readings holds the latest sample from each sensor bus.
type Readings struct {
	Outside     Reading
	InsideLeft  Reading
	InsideRight Reading
}

// State is the complete mutable controller state. It is owned by a
// Controller and only touched while holding the controller lock.
type State struct {
	Actuators Actuators
	Setpoints Setpoints
	ACEnabled bool
	Mode      Mode
	Readings  Readings
}

// NewState returns the power-on state: every output off, both setpoints at
// the default and every reading at the default temperature.
func NewState() State {
	return State{
		Setpoints: Setpoints{Left: DefaultSetpoint, Right: DefaultSetpoint},
		Readings: Readings{
			Outside:     Reading{Celsius: DefaultTemperature},
			InsideLeft:  Reading{Celsius: DefaultTemperature},
			InsideRight: Reading{Celsius: DefaultTemperature},
		},
	}
}
