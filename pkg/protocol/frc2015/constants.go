// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package frc2015 implements the FRC 2015-2019 driver station protocol.
//
// The driver station talks to the roboRIO over UDP at 50 Hz and to the
// field management system at 2 Hz. All multi-byte fields are big-endian.
// Optional data rides in tagged blocks: [size][tag][size-1 bytes], where
// size counts the tag and payload but not itself.
package frc2015

// Network configuration
const (
	FMSFrequency   = 2
	RobotFrequency = 50

	FMSInputPort        = 1120
	FMSOutputPort       = 1160
	RobotInputPort      = 1150
	RobotOutputPort     = 1110
	NetconsoleInputPort = 6666
)

// Joystick ceilings
const (
	MaxJoysticks = 6
	MaxAxes      = 12
	MaxButtons   = 24
	MaxPOVs      = 12
)

// Battery information
const (
	NominalBatteryVoltage  = 12.8
	NominalBatteryAmperage = 17
)

// Packet sizes
const (
	CommandHeaderSize = 6  // DS -> robot fixed header
	StatusHeaderSize  = 8  // robot -> DS fixed header
	FMSStatusSize     = 8  // DS -> FMS
	FMSCommandSize    = 22 // FMS -> DS
)

// Comm versions carried in byte 2
const (
	versionGeneral = 0x01 // DS <-> robot
	versionFMS     = 0x00 // DS -> FMS
)

// Control code bits (DS -> robot, echoed by the robot)
const (
	ControlTeleoperated = 0x00
	ControlTest         = 0x01
	ControlAutonomous   = 0x02
	ControlEnabled      = 0x04
	ControlFMSAttached  = 0x08
	ControlBrownout     = 0x10
	ControlEStop        = 0x80

	controlModeMask = 0x03
)

// Request codes (DS -> robot)
const (
	RequestUnconnected = 0x00
	RequestRestartCode = 0x04
	RequestReboot      = 0x08
	RequestNormal      = 0x80
)

// Request codes (robot -> DS)
const (
	RobotRequestTime = 0x01
)

// Status bits (robot -> DS, byte 4)
const (
	StatusDisabled = 0x01
	StatusTeleop   = 0x02
	StatusAuto     = 0x04
	StatusTest     = 0x08
	StatusRoboRIO  = 0x10
	StatusHasCode  = 0x20
)

// FMS control bits (DS -> FMS)
const (
	FMSRobotPing  = 0x08
	FMSRadioPing  = 0x10
	FMSRobotComms = 0x20
)

// Station codes
const (
	StationRed1 = iota
	StationRed2
	StationRed3
	StationBlue1
	StationBlue2
	StationBlue3
)

// Outbound block tags (DS -> robot)
const (
	TagJoystick = 0x0C
	TagDate     = 0x0F
	TagTimezone = 0x10
)

// Inbound block tags (robot -> DS)
const (
	TagJoystickOutput = 0x01
	TagDiskInfo       = 0x04
	TagCPUInfo        = 0x05
	TagRAMInfo        = 0x06
	TagPDPLog         = 0x08
	TagCANMetrics     = 0x0E
)

// povCentered is sent for a hat that is not pressed
const povCentered = -1
