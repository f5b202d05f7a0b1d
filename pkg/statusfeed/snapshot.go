// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package statusfeed streams driver station snapshots to monitors over a
// websocket. Each binary message is one CBOR-encoded Snapshot.
package statusfeed

import (
	"fmt"

	"github.com/Thermoquad/dslink/pkg/ds"
	"github.com/Thermoquad/dslink/pkg/dsconfig"
	"github.com/Thermoquad/dslink/pkg/protocol"
	"github.com/Thermoquad/dslink/pkg/station"
	"github.com/fxamacker/cbor/v2"
)

// Snapshot is everything a monitor shows. Keys are integers on the wire.
type Snapshot struct {
	TimeMs   int64  `cbor:"1,keyasint"`
	Protocol string `cbor:"2,keyasint"`
	Team     int    `cbor:"3,keyasint"`
	Alliance string `cbor:"4,keyasint"`
	Position int    `cbor:"5,keyasint"`
	Mode     string `cbor:"6,keyasint"`

	Enabled     bool `cbor:"7,keyasint"`
	EStopped    bool `cbor:"8,keyasint"`
	FMSAttached bool `cbor:"9,keyasint"`

	FMSConnected   bool `cbor:"10,keyasint"`
	RadioConnected bool `cbor:"11,keyasint"`
	RobotConnected bool `cbor:"12,keyasint"`

	HasCode        bool    `cbor:"13,keyasint"`
	Brownout       bool    `cbor:"14,keyasint"`
	Voltage        float64 `cbor:"15,keyasint"`
	NominalVoltage float64 `cbor:"16,keyasint"`

	PacketLoss    float64 `cbor:"17,keyasint"`
	SentRobot     uint64  `cbor:"18,keyasint"`
	ReceivedRobot uint64  `cbor:"19,keyasint"`
	SentFMS       uint64  `cbor:"20,keyasint"`
	ReceivedFMS   uint64  `cbor:"21,keyasint"`

	CPUUsage       float64 `cbor:"22,keyasint,omitempty"`
	RAMFree        uint32  `cbor:"23,keyasint,omitempty"`
	DiskFree       uint32  `cbor:"24,keyasint,omitempty"`
	CANUtilization float64 `cbor:"25,keyasint,omitempty"`

	MatchNumber    int `cbor:"26,keyasint,omitempty"`
	MatchRemaining int `cbor:"27,keyasint,omitempty"` // seconds
}

// BuildSnapshot combines a counter sample with the store's state
func BuildSnapshot(proto *protocol.Protocol, state dsconfig.State, sample station.Sample) Snapshot {
	return Snapshot{
		TimeMs:   sample.Time.UnixMilli(),
		Protocol: proto.Name(),
		Team:     state.Team,
		Alliance: state.Alliance.String(),
		Position: int(state.Position),
		Mode:     state.Mode.String(),

		Enabled:     state.Enabled,
		EStopped:    state.EStopped,
		FMSAttached: state.FMSAttached,

		FMSConnected:   state.FMS == ds.CommsWorking,
		RadioConnected: state.Radio == ds.CommsWorking,
		RobotConnected: state.Robot == ds.CommsWorking,

		HasCode:        state.RobotStatus.HasCode,
		Brownout:       state.RobotStatus.Brownout,
		Voltage:        state.RobotStatus.Voltage,
		NominalVoltage: proto.NominalBatteryVoltage(),

		PacketLoss:    sample.PacketLoss,
		SentRobot:     sample.Counters.SentRobot,
		ReceivedRobot: sample.Counters.ReceivedRobot,
		SentFMS:       sample.Counters.SentFMS,
		ReceivedFMS:   sample.Counters.ReceivedFMS,

		CPUUsage:       state.Diagnostics.CPUUsage,
		RAMFree:        state.Diagnostics.RAMFree,
		DiskFree:       state.Diagnostics.DiskFree,
		CANUtilization: state.Diagnostics.CANUtilization,

		MatchNumber:    state.Match.Number,
		MatchRemaining: state.Match.RemainingSeconds,
	}
}

// Encode returns the wire bytes for s
func (s Snapshot) Encode() ([]byte, error) {
	data, err := cbor.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a snapshot message
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return s, nil
}
