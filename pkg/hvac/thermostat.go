// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 HWHardsoft

package hvac

// Decide chooses the climate mode from the outside temperature and a cabin
// setpoint.
//
// Heating wins whenever outside is below the setpoint. Cooling needs outside
// above setpoint+CoolingDeadBand, above CoolingFloor, and the AC enabled.
// Everything else is idle. There is no hysteresis: each call is independent.
func Decide(outside, setpoint int, acEnabled bool) Mode {
	switch {
	case outside < setpoint:
		return ModeHeating
	case outside > setpoint+CoolingDeadBand && outside > CoolingFloor && acEnabled:
		return ModeCooling
	default:
		return ModeIdle
	}
}

// SensorPolicy selects how a failed outside reading reaches the thermostat.
type SensorPolicy int

const (
	// SensorPolicyLegacy feeds the legacy sentinel temperature to the
	// thermostat as if it were a real reading.
	SensorPolicyLegacy SensorPolicy = iota

	// SensorPolicyStrict holds the thermostat idle while the outside
	// reading is an error.
	SensorPolicyStrict
)

// String returns the policy name used on the command line.
func (p SensorPolicy) String() string {
	if p == SensorPolicyStrict {
		return "strict"
	}
	return "legacy"
}

// ParseSensorPolicy parses "legacy" or "strict".
func ParseSensorPolicy(s string) (SensorPolicy, bool) {
	switch s {
	case "legacy", "":
		return SensorPolicyLegacy, true
	case "strict":
		return SensorPolicyStrict, true
	}
	return SensorPolicyLegacy, false
}

// evaluate runs the thermostat against the current state and drives the
// compressor and heater valve.
//
// Only the left setpoint is consulted. The right setpoint is stored but has
// never taken part in the decision.
func evaluate(s *State, policy SensorPolicy) Mode {
	outside := s.Readings.Outside
	mode := ModeIdle
	if outside.Err == nil || policy == SensorPolicyLegacy {
		mode = Decide(outside.Legacy(), s.Setpoints.Left, s.ACEnabled)
	}
	s.Mode = mode
	s.Actuators.applyMode(mode)
	return mode
}
