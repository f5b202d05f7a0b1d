// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frc2015

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/Thermoquad/dslink/pkg/ds"
)

// FMSStatus is a driver station to FMS packet
type FMSStatus struct {
	Sequence   uint16
	Control    Control // mode, enabled and e-stop only
	RadioPing  bool
	RobotPing  bool
	RobotComms bool
	Team       int
	Voltage    float64
}

func (s FMSStatus) controlByte() byte {
	code := Control{Mode: s.Control.Mode, Enabled: s.Control.Enabled, EStop: s.Control.EStop}.Byte()
	if s.RadioPing {
		code |= FMSRadioPing
	}
	if s.RobotPing {
		code |= FMSRobotPing
	}
	if s.RobotComms {
		code |= FMSRobotComms
	}
	return code
}

// EncodeFMSStatus builds the wire bytes for s
func EncodeFMSStatus(s FMSStatus) []byte {
	data := make([]byte, FMSStatusSize)
	binary.BigEndian.PutUint16(data[0:2], s.Sequence)
	data[2] = versionFMS
	data[3] = s.controlByte()
	binary.BigEndian.PutUint16(data[4:6], uint16(s.Team))
	data[6], data[7] = encodeVoltage(s.Voltage)
	return data
}

// DecodeFMSStatus parses a driver station to FMS packet
func DecodeFMSStatus(data []byte) (FMSStatus, error) {
	if len(data) < FMSStatusSize {
		return FMSStatus{}, fmt.Errorf("fms status: %w: %d bytes (need %d)", ErrShortPacket, len(data), FMSStatusSize)
	}
	code := data[3]
	control := ParseControl(code)
	return FMSStatus{
		Sequence:   binary.BigEndian.Uint16(data[0:2]),
		Control:    Control{Mode: control.Mode, Enabled: control.Enabled, EStop: control.EStop},
		RadioPing:  code&FMSRadioPing != 0,
		RobotPing:  code&FMSRobotPing != 0,
		RobotComms: code&FMSRobotComms != 0,
		Team:       int(binary.BigEndian.Uint16(data[4:6])),
		Voltage:    decodeVoltage(data[6], data[7]),
	}, nil
}

// FMSCommand is an FMS to driver station packet
//
//	0-1 seq, 2 version, 3 control, 4 request, 5 station, 6 tournament level,
//	7-8 match number, 9 replay, 10-19 date, 20-21 remaining seconds
type FMSCommand struct {
	Sequence uint16
	Control  Control
	Request  byte
	Station  byte
	Match    ds.MatchInfo
	Date     time.Time
}

// EncodeFMSCommand builds the wire bytes for c
func EncodeFMSCommand(c FMSCommand) []byte {
	data := make([]byte, FMSCommandSize)
	binary.BigEndian.PutUint16(data[0:2], c.Sequence)
	data[2] = versionFMS
	data[3] = c.Control.Byte()
	data[4] = c.Request
	data[5] = c.Station
	data[6] = byte(c.Match.Level)
	binary.BigEndian.PutUint16(data[7:9], uint16(c.Match.Number))
	data[9] = byte(c.Match.Replay)
	date := c.Date
	if date.IsZero() {
		date = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	copy(data[10:20], encodeDate(date))
	binary.BigEndian.PutUint16(data[20:22], uint16(c.Match.RemainingSeconds))
	return data
}

// DecodeFMSCommand parses an FMS to driver station packet
func DecodeFMSCommand(data []byte) (FMSCommand, error) {
	if len(data) < FMSCommandSize {
		return FMSCommand{}, fmt.Errorf("fms command: %w: %d bytes (need %d)", ErrShortPacket, len(data), FMSCommandSize)
	}
	date, _ := decodeDate(data[10:20])
	return FMSCommand{
		Sequence: binary.BigEndian.Uint16(data[0:2]),
		Control:  ParseControl(data[3]),
		Request:  data[4],
		Station:  data[5],
		Match: ds.MatchInfo{
			Level:            ds.TournamentLevel(data[6]),
			Number:           int(binary.BigEndian.Uint16(data[7:9])),
			Replay:           int(data[9]),
			RemainingSeconds: int(binary.BigEndian.Uint16(data[20:22])),
		},
		Date: date,
	}, nil
}
