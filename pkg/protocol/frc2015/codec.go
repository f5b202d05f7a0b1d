// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frc2015

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Thermoquad/dslink/pkg/ds"
)

// ErrShortPacket is returned when a packet is smaller than its fixed header
var ErrShortPacket = errors.New("packet too short")

//////////////////////////////////////////////////////////////
// Control code
//////////////////////////////////////////////////////////////

// Control is the decoded control byte shared by robot and FMS packets
type Control struct {
	Mode        ds.ControlMode
	Enabled     bool
	FMSAttached bool
	Brownout    bool
	EStop       bool
}

// Byte packs the control flags
func (c Control) Byte() byte {
	var code byte
	switch c.Mode {
	case ds.ModeTest:
		code |= ControlTest
	case ds.ModeAutonomous:
		code |= ControlAutonomous
	default:
		code |= ControlTeleoperated
	}
	if c.Enabled {
		code |= ControlEnabled
	}
	if c.FMSAttached {
		code |= ControlFMSAttached
	}
	if c.Brownout {
		code |= ControlBrownout
	}
	if c.EStop {
		code |= ControlEStop
	}
	return code
}

// ParseControl unpacks a control byte. Mode value 0x03 is not defined and
// reads as teleoperated.
func ParseControl(b byte) Control {
	c := Control{
		Enabled:     b&ControlEnabled != 0,
		FMSAttached: b&ControlFMSAttached != 0,
		Brownout:    b&ControlBrownout != 0,
		EStop:       b&ControlEStop != 0,
	}
	switch b & controlModeMask {
	case ControlTest:
		c.Mode = ds.ModeTest
	case ControlAutonomous:
		c.Mode = ds.ModeAutonomous
	default:
		c.Mode = ds.ModeTeleoperated
	}
	return c
}

//////////////////////////////////////////////////////////////
// Station code
//////////////////////////////////////////////////////////////

// StationCode packs an alliance and position into a station byte.
// Unknown alliances pack as red and invalid positions as position 1.
func StationCode(alliance ds.Alliance, position ds.Position) byte {
	if !position.Valid() {
		position = ds.Position1
	}
	offset := byte(position - ds.Position1)
	if alliance == ds.AllianceBlue {
		return StationBlue1 + offset
	}
	return StationRed1 + offset
}

// Alliance returns the alliance encoded in a station byte.
// Out-of-range codes read as red.
func Alliance(station byte) ds.Alliance {
	if station >= StationBlue1 && station <= StationBlue3 {
		return ds.AllianceBlue
	}
	return ds.AllianceRed
}

// Position returns the position encoded in a station byte.
// Out-of-range codes read as position 1.
func Position(station byte) ds.Position {
	if station > StationBlue3 {
		return ds.Position1
	}
	return ds.Position(station%3) + ds.Position1
}

//////////////////////////////////////////////////////////////
// Battery voltage
//////////////////////////////////////////////////////////////

// encodeVoltage packs volts as a whole byte and a 1/256 fraction byte
func encodeVoltage(v float64) (byte, byte) {
	if v <= 0 || math.IsNaN(v) {
		return 0, 0
	}
	if v >= 255 {
		return 255, 255
	}
	whole := math.Floor(v)
	frac := math.Round((v - whole) * 256)
	if frac > 255 {
		frac = 255
	}
	return byte(whole), byte(frac)
}

func decodeVoltage(whole, frac byte) float64 {
	return float64(whole) + float64(frac)/256
}

//////////////////////////////////////////////////////////////
// Robot command (DS -> robot)
//////////////////////////////////////////////////////////////

// Limits caps how much joystick state goes into a packet
type Limits struct {
	Joysticks int
	Axes      int
	Buttons   int
	POVs      int
}

// DefaultLimits are the protocol's joystick ceilings
var DefaultLimits = Limits{
	Joysticks: MaxJoysticks,
	Axes:      MaxAxes,
	Buttons:   MaxButtons,
	POVs:      MaxPOVs,
}

// Command is a driver station to robot packet
type Command struct {
	Sequence  uint16
	Control   Control
	Request   byte
	Station   byte
	Joysticks []ds.Joystick

	// Date is sent when the robot asks for the time; zero means absent
	Date     time.Time
	Timezone string
}

// EncodeCommand builds the wire bytes for c
func EncodeCommand(c Command, limits Limits) []byte {
	data := make([]byte, CommandHeaderSize, CommandHeaderSize+64)
	binary.BigEndian.PutUint16(data[0:2], c.Sequence)
	data[2] = versionGeneral
	data[3] = c.Control.Byte()
	data[4] = c.Request
	data[5] = c.Station

	data = appendJoysticks(data, c.Joysticks, limits)
	if !c.Date.IsZero() {
		data = appendDate(data, c.Date, c.Timezone)
	}
	return data
}

// DecodeCommand parses a driver station to robot packet
func DecodeCommand(data []byte) (Command, error) {
	if len(data) < CommandHeaderSize {
		return Command{}, fmt.Errorf("command: %w: %d bytes (need %d)", ErrShortPacket, len(data), CommandHeaderSize)
	}
	if data[2] != versionGeneral {
		return Command{}, fmt.Errorf("command: unsupported comm version 0x%02X", data[2])
	}

	c := Command{
		Sequence: binary.BigEndian.Uint16(data[0:2]),
		Control:  ParseControl(data[3]),
		Request:  data[4],
		Station:  data[5],
	}

	readBlocks(data[CommandHeaderSize:], func(tag byte, payload []byte) {
		switch tag {
		case TagJoystick:
			if js, ok := decodeJoystick(payload); ok {
				c.Joysticks = append(c.Joysticks, js)
			}
		case TagDate:
			if t, ok := decodeDate(payload); ok {
				c.Date = t
			}
		case TagTimezone:
			c.Timezone = string(payload)
		}
	})

	return c, nil
}

//////////////////////////////////////////////////////////////
// Robot status (robot -> DS)
//////////////////////////////////////////////////////////////

// Block is one tagged extension block
type Block struct {
	Tag  byte
	Data []byte
}

// Status is a robot to driver station packet
type Status struct {
	Sequence uint16
	Control  Control
	Trace    byte // StatusXxx bits
	Voltage  float64
	Request  byte
	Blocks   []Block
}

// HasCode reports whether robot code is running
func (s Status) HasCode() bool {
	return s.Trace&StatusHasCode != 0
}

// RequestsTime reports whether the robot wants the date and time
func (s Status) RequestsTime() bool {
	return s.Request == RobotRequestTime
}

// EncodeStatus builds the wire bytes for s
func EncodeStatus(s Status) []byte {
	data := make([]byte, StatusHeaderSize, StatusHeaderSize+32)
	binary.BigEndian.PutUint16(data[0:2], s.Sequence)
	data[2] = versionGeneral
	data[3] = s.Control.Byte()
	data[4] = s.Trace
	data[5], data[6] = encodeVoltage(s.Voltage)
	data[7] = s.Request

	for _, b := range s.Blocks {
		data = appendBlock(data, b.Tag, b.Data)
	}
	return data
}

// DecodeStatus parses a robot to driver station packet. Blocks that are
// truncated are dropped; the fixed header alone decides success.
func DecodeStatus(data []byte) (Status, error) {
	if len(data) < StatusHeaderSize {
		return Status{}, fmt.Errorf("status: %w: %d bytes (need %d)", ErrShortPacket, len(data), StatusHeaderSize)
	}

	s := Status{
		Sequence: binary.BigEndian.Uint16(data[0:2]),
		Control:  ParseControl(data[3]),
		Trace:    data[4],
		Voltage:  decodeVoltage(data[5], data[6]),
		Request:  data[7],
	}

	readBlocks(data[StatusHeaderSize:], func(tag byte, payload []byte) {
		s.Blocks = append(s.Blocks, Block{Tag: tag, Data: payload})
	})

	return s, nil
}
