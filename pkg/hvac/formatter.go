// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 HWHardsoft

package hvac

import (
	"fmt"
	"strings"
)

// FormatFrame formats a frame into a human-readable line
func FormatFrame(f *Frame) string {
	timestamp := f.Timestamp().Format("15:04:05.000")
	cmd := f.Command()
	return fmt.Sprintf("[%s] %s (id%02d) %s\n", timestamp, CommandName(cmd.ID), cmd.ID, FormatValue(cmd))
}

// CommandName returns the human-readable name for a command identifier
func CommandName(id uint8) string {
	switch id {
	case CmdFogLight:
		return "FOG_LIGHT"
	case CmdWindowHeatRear:
		return "WINDOW_HEAT_REAR"
	case CmdVentFootWindow:
		return "VENT_FOOT_WINDOW"
	case CmdWindowHeatFront:
		return "WINDOW_HEAT_FRONT"
	case CmdAirCirculation:
		return "AIR_CIRCULATION"
	case CmdVentFoot:
		return "VENT_FOOT"
	case CmdACEnable:
		return "AC_ENABLE"
	case CmdFanLevel:
		return "FAN_LEVEL"
	case CmdVentFront:
		return "VENT_FRONT"
	case CmdSetpointLeft:
		return "SETPOINT_LEFT"
	case CmdHVACPower:
		return "HVAC_POWER"
	case CmdSetpointRight:
		return "SETPOINT_RIGHT"
	case CmdVentFrontFoot:
		return "VENT_FRONT_FOOT"
	default:
		return "UNKNOWN"
	}
}

// FormatValue describes what a command value asks for
func FormatValue(c Command) string {
	switch c.ID {
	case CmdFanLevel:
		if isDigit(c.Value) && c.Value-'0' <= MaxFanLevel {
			level := int(c.Value - '0')
			return fmt.Sprintf("level=%d duty=%d", level, fanDutyTable[level])
		}
	case CmdSetpointLeft, CmdSetpointRight:
		if isDigit(c.Value) {
			return fmt.Sprintf("setpoint=%d°C", c.Value-'0')
		}
	default:
		if on, ok := parseSwitch(c.Value); ok {
			if on {
				return "ON"
			}
			return "OFF"
		}
	}
	return fmt.Sprintf("value=%q (ignored)", c.Value)
}

// FormatSnapshot formats a snapshot as a multi-line block
func FormatSnapshot(s Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] tick=%d phase=%d mode=%s ac=%s\n",
		s.Time.Format("15:04:05"), s.Tick, s.Phase, s.Mode, onOff(s.ACEnabled))
	fmt.Fprintf(&b, "  Setpoints: left=%d°C right=%d°C\n", s.SetpointLeft, s.SetpointRight)
	fmt.Fprintf(&b, "  Sensors:   outside=%s left=%s right=%s\n",
		formatSample(s.Outside), formatSample(s.InsideLeft), formatSample(s.InsideRight))
	fmt.Fprintf(&b, "  Fan:       level=%d duty=%d\n", s.FanLevel, s.FanDuty)

	var on []string
	for _, o := range Outputs {
		if s.Output(o) {
			on = append(on, o.String())
		}
	}
	if len(on) == 0 {
		b.WriteString("  Outputs:   (all off)\n")
	} else {
		fmt.Fprintf(&b, "  Outputs:   %s\n", strings.Join(on, " "))
	}

	return b.String()
}

func formatSample(s SensorSample) string {
	if s.Fault != 0 {
		return fmt.Sprintf("FAULT(%d)", s.Fault)
	}
	return fmt.Sprintf("%d°C", s.Celsius)
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}
