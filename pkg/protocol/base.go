// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

import "github.com/Thermoquad/dslink/pkg/ds"

// Implementation is the set of hooks a concrete protocol provides.
// Embed Base to inherit the generic defaults and override what differs.
type Implementation interface {
	Name() string

	FMSFrequency() int
	RadioFrequency() int
	RobotFrequency() int

	MaxJoystickCount() int
	MaxAxisCount() int
	MaxButtonCount() int
	MaxPOVCount() int

	FMSInputPort() int
	FMSOutputPort() int
	RadioInputPort() int
	RadioOutputPort() int
	RobotInputPort() int
	RobotOutputPort() int
	NetconsoleInputPort() int
	NetconsoleOutputPort() int

	FMSSocketType() ds.SocketType
	RadioSocketType() ds.SocketType
	RobotSocketType() ds.SocketType

	FMSAddress() string
	RadioAddress(team int) string
	RobotAddress(team int) string

	NominalBatteryVoltage() float64
	NominalBatteryAmperage() float64

	FMSPacket(env Env) []byte
	RadioPacket(env Env) []byte
	RobotPacket(env Env) []byte

	InterpretFMSPacket(env Env, data []byte) bool
	InterpretRadioPacket(env Env, data []byte) bool
	InterpretRobotPacket(env Env, data []byte) bool

	RebootRobot()
	RestartRobotCode()

	OnFMSWatchdogExpired(env Env)
	OnRadioWatchdogExpired(env Env)
	OnRobotWatchdogExpired(env Env)
}

// Base implements every hook with the generic protocol behaviour:
// no packets, every port disabled, UDP sockets and team-derived addresses.
type Base struct{}

func (Base) Name() string { return "Generic Protocol" }

func (Base) FMSFrequency() int   { return 1 }
func (Base) RadioFrequency() int { return 1 }
func (Base) RobotFrequency() int { return 1 }

func (Base) MaxJoystickCount() int { return 6 }
func (Base) MaxAxisCount() int     { return 12 }
func (Base) MaxButtonCount() int   { return 24 }
func (Base) MaxPOVCount() int      { return 12 }

func (Base) FMSInputPort() int         { return ds.DisabledPort }
func (Base) FMSOutputPort() int        { return ds.DisabledPort }
func (Base) RadioInputPort() int       { return ds.DisabledPort }
func (Base) RadioOutputPort() int      { return ds.DisabledPort }
func (Base) RobotInputPort() int       { return ds.DisabledPort }
func (Base) RobotOutputPort() int      { return ds.DisabledPort }
func (Base) NetconsoleInputPort() int  { return ds.DisabledPort }
func (Base) NetconsoleOutputPort() int { return ds.DisabledPort }

func (Base) FMSSocketType() ds.SocketType   { return ds.SocketUDP }
func (Base) RadioSocketType() ds.SocketType { return ds.SocketUDP }
func (Base) RobotSocketType() ds.SocketType { return ds.SocketUDP }

// FMSAddress is empty: the FMS is found by listening for its first packet
func (Base) FMSAddress() string { return "" }

// RadioAddress returns 10.TE.AM.1
func (Base) RadioAddress(team int) string { return ds.StaticIP(10, team, 1) }

// RobotAddress returns 10.TE.AM.2
func (Base) RobotAddress(team int) string { return ds.StaticIP(10, team, 2) }

func (Base) NominalBatteryVoltage() float64  { return 12.8 }
func (Base) NominalBatteryAmperage() float64 { return 17 }

func (Base) FMSPacket(Env) []byte   { return nil }
func (Base) RadioPacket(Env) []byte { return nil }
func (Base) RobotPacket(Env) []byte { return nil }

func (Base) InterpretFMSPacket(Env, []byte) bool   { return false }
func (Base) InterpretRadioPacket(Env, []byte) bool { return false }
func (Base) InterpretRobotPacket(Env, []byte) bool { return false }

func (Base) RebootRobot()      {}
func (Base) RestartRobotCode() {}

func (Base) OnFMSWatchdogExpired(Env)   {}
func (Base) OnRadioWatchdogExpired(Env) {}
func (Base) OnRobotWatchdogExpired(Env) {}
