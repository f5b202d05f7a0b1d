// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

import (
	"github.com/Thermoquad/dslink/pkg/ds"
	"github.com/hashicorp/go-hclog"
)

// Config is the driver station state a protocol reads when building packets
// and writes back when it interprets packets from its peers.
// Implementations must be safe for concurrent use when peers are serviced
// from separate goroutines.
type Config interface {
	Team() int
	Alliance() ds.Alliance
	Position() ds.Position
	ControlMode() ds.ControlMode
	IsEnabled() bool
	IsEmergencyStopped() bool
	IsFMSAttached() bool
	Voltage() float64
	Diagnostics() ds.RobotDiagnostics

	IsConnectedToFMS() bool
	IsConnectedToRadio() bool
	IsConnectedToRobot() bool

	UpdateFMSCommStatus(status ds.CommStatus)
	UpdateRadioCommStatus(status ds.CommStatus)
	UpdateRobotCommStatus(status ds.CommStatus)

	SetEnabled(enabled bool)
	SetControlMode(mode ds.ControlMode)
	SetEmergencyStopped(stopped bool)
	SetFMSAttached(attached bool)
	SetAlliance(alliance ds.Alliance)
	SetPosition(position ds.Position)
	SetMatchInfo(info ds.MatchInfo)
	UpdateRobotStatus(status ds.RobotStatus)
	UpdateDiagnostics(diag ds.RobotDiagnostics)
}

// JoystickSource supplies the joystick snapshot encoded into robot packets
type JoystickSource interface {
	Joysticks() []ds.Joystick
}

// Env is handed to every packet hook. It carries the collaborators a
// protocol implementation may touch during a single call.
type Env struct {
	Config    Config
	Joysticks JoystickSource
	Logger    hclog.Logger

	// Sequence is the peer's sent counter for generate hooks (this packet
	// included) and the peer's received counter for interpret hooks.
	Sequence uint64
}

// JoystickList returns the current joystick snapshot, or nil without a source
func (e Env) JoystickList() []ds.Joystick {
	if e.Joysticks == nil {
		return nil
	}
	return e.Joysticks.Joysticks()
}
