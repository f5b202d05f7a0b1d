// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frc2015

import (
	"fmt"
	"strings"
)

// PacketKind names the four packet layouts of this protocol
type PacketKind string

// Packet kinds
const (
	KindCommand    PacketKind = "command"     // DS -> robot
	KindStatus     PacketKind = "status"      // robot -> DS
	KindFMSStatus  PacketKind = "fms-status"  // DS -> FMS
	KindFMSCommand PacketKind = "fms-command" // FMS -> DS
)

// Kinds lists every packet kind FormatPacket understands
var Kinds = []PacketKind{KindCommand, KindStatus, KindFMSStatus, KindFMSCommand}

// FormatPacket decodes data as kind and returns a human-readable summary
func FormatPacket(kind PacketKind, data []byte) (string, error) {
	switch kind {
	case KindCommand:
		c, err := DecodeCommand(data)
		if err != nil {
			return "", err
		}
		return FormatCommand(c), nil
	case KindStatus:
		s, err := DecodeStatus(data)
		if err != nil {
			return "", err
		}
		return FormatStatus(s), nil
	case KindFMSStatus:
		s, err := DecodeFMSStatus(data)
		if err != nil {
			return "", err
		}
		return FormatFMSStatus(s), nil
	case KindFMSCommand:
		c, err := DecodeFMSCommand(data)
		if err != nil {
			return "", err
		}
		return FormatFMSCommand(c), nil
	default:
		return "", fmt.Errorf("unknown packet kind %q", kind)
	}
}

// FormatControl renders a control byte's flags
func FormatControl(c Control) string {
	flags := []string{c.Mode.String()}
	if c.Enabled {
		flags = append(flags, "ENABLED")
	} else {
		flags = append(flags, "DISABLED")
	}
	if c.FMSAttached {
		flags = append(flags, "FMS")
	}
	if c.Brownout {
		flags = append(flags, "BROWNOUT")
	}
	if c.EStop {
		flags = append(flags, "ESTOP")
	}
	return strings.Join(flags, " ")
}

// FormatStation renders a station byte as "Red 2"
func FormatStation(station byte) string {
	return fmt.Sprintf("%s %d", Alliance(station), Position(station))
}

// FormatRequest names a DS to robot request code
func FormatRequest(code byte) string {
	switch code {
	case RequestUnconnected:
		return "UNCONNECTED"
	case RequestNormal:
		return "NORMAL"
	case RequestReboot:
		return "REBOOT"
	case RequestRestartCode:
		return "RESTART_CODE"
	default:
		return "UNKNOWN"
	}
}

// FormatTag names an extended block tag
func FormatTag(tag byte) string {
	switch tag {
	case TagJoystickOutput:
		return "JOYSTICK_OUTPUT"
	case TagDiskInfo:
		return "DISK_INFO"
	case TagCPUInfo:
		return "CPU_INFO"
	case TagRAMInfo:
		return "RAM_INFO"
	case TagPDPLog:
		return "PDP_LOG"
	case TagCANMetrics:
		return "CAN_METRICS"
	default:
		return "UNKNOWN"
	}
}

// FormatCommand formats a DS to robot packet
func FormatCommand(c Command) string {
	result := fmt.Sprintf("COMMAND seq=%d\n", c.Sequence)
	result += fmt.Sprintf("  Control: %s (0x%02X)\n", FormatControl(c.Control), c.Control.Byte())
	result += fmt.Sprintf("  Request: %s (0x%02X)\n", FormatRequest(c.Request), c.Request)
	result += fmt.Sprintf("  Station: %s (0x%02X)\n", FormatStation(c.Station), c.Station)
	for i, js := range c.Joysticks {
		pressed := 0
		for _, b := range js.Buttons {
			if b {
				pressed++
			}
		}
		result += fmt.Sprintf("  Joystick %d: axes=%d buttons=%d (%d pressed) povs=%d\n",
			i, len(js.Axes), len(js.Buttons), pressed, len(js.POVs))
	}
	if !c.Date.IsZero() {
		result += fmt.Sprintf("  Date: %s (%s)\n", c.Date.Format("2006-01-02 15:04:05.000000"), c.Timezone)
	}
	return result
}

// FormatStatus formats a robot to DS packet
func FormatStatus(s Status) string {
	result := fmt.Sprintf("STATUS seq=%d\n", s.Sequence)
	result += fmt.Sprintf("  Control: %s (0x%02X)\n", FormatControl(s.Control), s.Control.Byte())
	result += fmt.Sprintf("  Code: %v, Trace: 0x%02X\n", s.HasCode(), s.Trace)
	result += fmt.Sprintf("  Battery: %.2f V\n", s.Voltage)
	if s.RequestsTime() {
		result += "  Request: TIME\n"
	}
	for _, b := range s.Blocks {
		result += fmt.Sprintf("  Block %s (0x%02X): % X\n", FormatTag(b.Tag), b.Tag, b.Data)
	}
	return result
}

// FormatFMSStatus formats a DS to FMS packet
func FormatFMSStatus(s FMSStatus) string {
	result := fmt.Sprintf("FMS_STATUS seq=%d team=%d\n", s.Sequence, s.Team)
	result += fmt.Sprintf("  Control: %s\n", FormatControl(s.Control))
	result += fmt.Sprintf("  Radio: %v, Robot: %v, Robot comms: %v\n", s.RadioPing, s.RobotPing, s.RobotComms)
	result += fmt.Sprintf("  Battery: %.2f V\n", s.Voltage)
	return result
}

// FormatFMSCommand formats an FMS to DS packet
func FormatFMSCommand(c FMSCommand) string {
	result := fmt.Sprintf("FMS_COMMAND seq=%d\n", c.Sequence)
	result += fmt.Sprintf("  Control: %s (0x%02X)\n", FormatControl(c.Control), c.Control.Byte())
	result += fmt.Sprintf("  Station: %s (0x%02X)\n", FormatStation(c.Station), c.Station)
	result += fmt.Sprintf("  Match: level=%d number=%d replay=%d official=%v remaining=%ds\n",
		c.Match.Level, c.Match.Number, c.Match.Replay, c.Match.Level.Official(), c.Match.RemainingSeconds)
	return result
}
