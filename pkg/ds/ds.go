// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package ds holds the value types shared by every driver station protocol:
// alliances, positions, control modes, socket types, communication status
// and joystick snapshots.
package ds

import "fmt"

// DisabledPort is the port value that tells the transport not to open a channel
const DisabledPort = -1

// Alliance identifies which side of the field the team plays on
type Alliance int

// Alliance values
const (
	AllianceRed Alliance = iota
	AllianceBlue
)

// String returns the alliance name
func (a Alliance) String() string {
	switch a {
	case AllianceRed:
		return "Red"
	case AllianceBlue:
		return "Blue"
	default:
		return fmt.Sprintf("Alliance(%d)", int(a))
	}
}

// Position is the 1-based driver station slot within an alliance
type Position int

// Position values
const (
	Position1 Position = iota + 1
	Position2
	Position3
)

// Valid reports whether the position is one of the three station slots
func (p Position) Valid() bool {
	return p >= Position1 && p <= Position3
}

// ControlMode is the robot operating mode
type ControlMode int

// Control mode values
const (
	ModeTeleoperated ControlMode = iota
	ModeAutonomous
	ModeTest
)

// String returns the control mode name
func (m ControlMode) String() string {
	switch m {
	case ModeTeleoperated:
		return "Teleoperated"
	case ModeAutonomous:
		return "Autonomous"
	case ModeTest:
		return "Test"
	default:
		return fmt.Sprintf("ControlMode(%d)", int(m))
	}
}

// SocketType selects datagram or stream transport for a peer
type SocketType int

// Socket type values
const (
	SocketUDP SocketType = iota
	SocketTCP
)

// Network returns the net package network name for the socket type
func (s SocketType) Network() string {
	if s == SocketTCP {
		return "tcp"
	}
	return "udp"
}

// String returns the socket type name
func (s SocketType) String() string {
	if s == SocketTCP {
		return "TCP"
	}
	return "UDP"
}

// CommStatus is the health of the link with a peer
type CommStatus int

// Communication status values
const (
	CommsFailing CommStatus = iota
	CommsWorking
)

// String returns the status name
func (c CommStatus) String() string {
	if c == CommsWorking {
		return "Working"
	}
	return "Failing"
}

// Peer identifies one of the three remote endpoints
type Peer int

// Peer values
const (
	PeerFMS Peer = iota
	PeerRadio
	PeerRobot
)

// String returns the peer name
func (p Peer) String() string {
	switch p {
	case PeerFMS:
		return "fms"
	case PeerRadio:
		return "radio"
	case PeerRobot:
		return "robot"
	default:
		return fmt.Sprintf("peer(%d)", int(p))
	}
}

// TournamentLevel is the match type reported by the FMS
type TournamentLevel int

// Tournament level values
const (
	LevelTest TournamentLevel = iota
	LevelPractice
	LevelQualification
	LevelPlayoff
)

// Official reports whether matches at this level count for rankings
func (l TournamentLevel) Official() bool {
	return l == LevelQualification || l == LevelPlayoff
}

// MatchInfo is what the FMS tells the driver station about the current match
type MatchInfo struct {
	Level            TournamentLevel
	Number           int
	Replay           int
	RemainingSeconds int
}

// Joystick is a snapshot of one input device.
// Axes range from -1 to 1. POV values are angles in degrees, -1 when centered.
type Joystick struct {
	Axes    []float64
	Buttons []bool
	POVs    []int
}

// RobotStatus is what the robot reports about itself in its status packets
type RobotStatus struct {
	HasCode  bool
	EStopped bool
	Brownout bool
	Voltage  float64
}

// RobotDiagnostics is optional data carried in extended status blocks.
// Fields are zero until the robot reports them.
type RobotDiagnostics struct {
	CPUUsage       float64 // percent, averaged over cores
	RAMFree        uint32  // bytes
	DiskFree       uint32  // bytes
	CANUtilization float64 // percent
	RumbleLeft     uint16
	RumbleRight    uint16
}
