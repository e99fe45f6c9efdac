// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 HWHardsoft

package hvac

// Command is one display command: a two-digit identifier and a single
// ASCII value byte.
type Command struct {
	ID    uint8
	Value byte
}

// commandHandler applies a command value to the state. It reports false
// when the value is not one the command accepts.
type commandHandler func(s *State, value byte) bool

// commandTable is indexed by command identifier. Unassigned entries are nil.
var commandTable = [numCommandIDs]commandHandler{
	CmdFogLight:        switchHandler(func(a *Actuators, on bool) { a.FogLight = on }),
	CmdWindowHeatRear:  switchHandler(func(a *Actuators, on bool) { a.WindowHeatRear = on }),
	CmdVentFootWindow:  ventHandler(VentFootWindow),
	CmdWindowHeatFront: switchHandler(func(a *Actuators, on bool) { a.WindowHeatFront = on }),
	CmdAirCirculation:  switchHandler(func(a *Actuators, on bool) { a.AirCirculation = on }),
	CmdVentFoot:        ventHandler(VentFootOnly),
	CmdACEnable:        handleACEnable,
	CmdFanLevel:        handleFanLevel,
	CmdVentFront:       ventHandler(VentFrontOnly),
	CmdSetpointLeft:    setpointHandler(func(sp *Setpoints, v int) { sp.Left = v }),
	CmdHVACPower:       handleHVACPower,
	CmdSetpointRight:   setpointHandler(func(sp *Setpoints, v int) { sp.Right = v }),
	CmdVentFrontFoot:   ventHandler(VentFrontFoot),
}

// Dispatch applies cmd to s. Unknown identifiers and unsupported values
// leave s untouched and return false.
func Dispatch(s *State, cmd Command) bool {
	if int(cmd.ID) >= len(commandTable) {
		return false
	}
	handler := commandTable[cmd.ID]
	if handler == nil {
		return false
	}
	return handler(s, cmd.Value)
}

// IsKnownCommand reports whether id has a handler.
func IsKnownCommand(id uint8) bool {
	return int(id) < len(commandTable) && commandTable[id] != nil
}

// parseSwitch decodes an on/off value.
func parseSwitch(value byte) (on bool, ok bool) {
	switch value {
	case '1':
		return true, true
	case '0':
		return false, true
	}
	return false, false
}

func switchHandler(set func(a *Actuators, on bool)) commandHandler {
	return func(s *State, value byte) bool {
		on, ok := parseSwitch(value)
		if !ok {
			return false
		}
		set(&s.Actuators, on)
		return true
	}
}

// ventHandler selects a ventilation mode on '1' and closes every vent on '0'.
func ventHandler(mode Vent) commandHandler {
	return func(s *State, value byte) bool {
		on, ok := parseSwitch(value)
		if !ok {
			return false
		}
		if on {
			s.Actuators.setVent(mode)
		} else {
			s.Actuators.setVent(VentOff)
		}
		return true
	}
}

func setpointHandler(set func(sp *Setpoints, v int)) commandHandler {
	return func(s *State, value byte) bool {
		if !isDigit(value) {
			return false
		}
		set(&s.Setpoints, int(value-'0'))
		return true
	}
}

func handleACEnable(s *State, value byte) bool {
	on, ok := parseSwitch(value)
	if !ok {
		return false
	}
	s.ACEnabled = on
	return true
}

func handleFanLevel(s *State, value byte) bool {
	if !isDigit(value) {
		return false
	}
	return s.Actuators.setFan(int(value - '0'))
}

// handleHVACPower implements the master switch. Switching on changes
// nothing; switching off is a full shutdown of everything the display
// controls except the fog light.
func handleHVACPower(s *State, value byte) bool {
	on, ok := parseSwitch(value)
	if !ok {
		return false
	}
	if on {
		return true
	}

	s.ACEnabled = false
	s.Actuators.setFan(0)
	s.Actuators.AirCirculation = false
	s.Actuators.WindowHeatRear = false
	s.Actuators.WindowHeatFront = false
	s.Actuators.setVent(VentOff)
	return true
}
