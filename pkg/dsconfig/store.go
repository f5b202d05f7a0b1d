// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package dsconfig holds the driver station's live state and its YAML
// configuration file.
package dsconfig

import (
	"sync"

	"github.com/Thermoquad/dslink/pkg/ds"
)

// StatusListener is called after a peer's communication status changes
type StatusListener func(peer ds.Peer, status ds.CommStatus)

// State is a point-in-time copy of the store
type State struct {
	Team        int
	Alliance    ds.Alliance
	Position    ds.Position
	Mode        ds.ControlMode
	Enabled     bool
	EStopped    bool
	FMSAttached bool

	FMS   ds.CommStatus
	Radio ds.CommStatus
	Robot ds.CommStatus

	RobotStatus ds.RobotStatus
	Diagnostics ds.RobotDiagnostics
	Match       ds.MatchInfo
}

// Store is the in-memory driver station state. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	state State

	listenerMu sync.RWMutex
	listeners  []StatusListener
}

// NewStore creates a store for team at Red 1, disabled, teleoperated
func NewStore(team int) *Store {
	return &Store{
		state: State{
			Team:     team,
			Alliance: ds.AllianceRed,
			Position: ds.Position1,
			Mode:     ds.ModeTeleoperated,
		},
	}
}

// OnStatusChange registers fn for communication status transitions
func (s *Store) OnStatusChange(fn StatusListener) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) notify(peer ds.Peer, status ds.CommStatus) {
	s.listenerMu.RLock()
	listeners := s.listeners
	s.listenerMu.RUnlock()
	for _, fn := range listeners {
		fn(peer, status)
	}
}

// State returns a copy of the whole state
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) read(fn func(st *State)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.state)
}

func (s *Store) write(fn func(st *State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

//////////////////////////////////////////////////////////////
// Reads
//////////////////////////////////////////////////////////////

// Team returns the team number
func (s *Store) Team() (team int) {
	s.read(func(st *State) { team = st.Team })
	return
}

// Alliance returns the alliance colour
func (s *Store) Alliance() (a ds.Alliance) {
	s.read(func(st *State) { a = st.Alliance })
	return
}

// Position returns the driver station position
func (s *Store) Position() (p ds.Position) {
	s.read(func(st *State) { p = st.Position })
	return
}

// ControlMode returns the selected control mode
func (s *Store) ControlMode() (m ds.ControlMode) {
	s.read(func(st *State) { m = st.Mode })
	return
}

// IsEnabled reports whether the robot should be enabled
func (s *Store) IsEnabled() (enabled bool) {
	s.read(func(st *State) { enabled = st.Enabled })
	return
}

// IsEmergencyStopped reports whether the e-stop is latched
func (s *Store) IsEmergencyStopped() (stopped bool) {
	s.read(func(st *State) { stopped = st.EStopped })
	return
}

// IsFMSAttached reports whether the FMS controls the robot
func (s *Store) IsFMSAttached() (attached bool) {
	s.read(func(st *State) { attached = st.FMSAttached })
	return
}

// Voltage returns the last battery voltage the robot reported
func (s *Store) Voltage() (v float64) {
	s.read(func(st *State) { v = st.RobotStatus.Voltage })
	return
}

// Diagnostics returns the last robot diagnostics
func (s *Store) Diagnostics() (d ds.RobotDiagnostics) {
	s.read(func(st *State) { d = st.Diagnostics })
	return
}

// RobotStatus returns the last robot status
func (s *Store) RobotStatus() (r ds.RobotStatus) {
	s.read(func(st *State) { r = st.RobotStatus })
	return
}

// MatchInfo returns the match the FMS last reported
func (s *Store) MatchInfo() (m ds.MatchInfo) {
	s.read(func(st *State) { m = st.Match })
	return
}

// Link state per peer; true only while the peer is CommsWorking.
func (s *Store) IsConnectedToFMS() (ok bool) {
	s.read(func(st *State) { ok = st.FMS == ds.CommsWorking })
	return
}

func (s *Store) IsConnectedToRadio() (ok bool) {
	s.read(func(st *State) { ok = st.Radio == ds.CommsWorking })
	return
}

func (s *Store) IsConnectedToRobot() (ok bool) {
	s.read(func(st *State) { ok = st.Robot == ds.CommsWorking })
	return
}

//////////////////////////////////////////////////////////////
// Communication status
//////////////////////////////////////////////////////////////

func (s *Store) updateStatus(peer ds.Peer, status ds.CommStatus) {
	changed := false
	s.write(func(st *State) {
		var field *ds.CommStatus
		switch peer {
		case ds.PeerFMS:
			field = &st.FMS
		case ds.PeerRadio:
			field = &st.Radio
		default:
			field = &st.Robot
		}
		if *field == status {
			return
		}
		*field = status
		changed = true

		switch {
		case peer == ds.PeerRobot && status == ds.CommsFailing:
			// A robot we cannot talk to must not stay enabled
			st.Enabled = false
			st.RobotStatus = ds.RobotStatus{}
		case peer == ds.PeerFMS && status == ds.CommsFailing:
			st.FMSAttached = false
		}
	})
	if changed {
		s.notify(peer, status)
	}
}

// Status updates per peer. Listeners hear about changes only.
func (s *Store) UpdateFMSCommStatus(status ds.CommStatus)   { s.updateStatus(ds.PeerFMS, status) }
func (s *Store) UpdateRadioCommStatus(status ds.CommStatus) { s.updateStatus(ds.PeerRadio, status) }
func (s *Store) UpdateRobotCommStatus(status ds.CommStatus) { s.updateStatus(ds.PeerRobot, status) }

//////////////////////////////////////////////////////////////
// Writes
//////////////////////////////////////////////////////////////

// SetTeam changes the team number
func (s *Store) SetTeam(team int) {
	s.write(func(st *State) { st.Team = team })
}

// SetEnabled enables or disables the robot. Enabling is refused while
// the e-stop is latched.
func (s *Store) SetEnabled(enabled bool) {
	s.write(func(st *State) {
		// Re-enabling requires clearing the e-stop first
		st.Enabled = enabled && !st.EStopped
	})
}

// SetControlMode selects the control mode
func (s *Store) SetControlMode(mode ds.ControlMode) {
	s.write(func(st *State) { st.Mode = mode })
}

// SetEmergencyStopped latches or clears the e-stop. Latching disables the robot.
func (s *Store) SetEmergencyStopped(stopped bool) {
	s.write(func(st *State) {
		st.EStopped = stopped
		if stopped {
			st.Enabled = false
		}
	})
}

// SetFMSAttached records whether the FMS controls the robot
func (s *Store) SetFMSAttached(attached bool) {
	s.write(func(st *State) { st.FMSAttached = attached })
}

// SetAlliance changes the alliance colour
func (s *Store) SetAlliance(alliance ds.Alliance) {
	s.write(func(st *State) { st.Alliance = alliance })
}

// SetPosition changes the position. Invalid positions become Position1.
func (s *Store) SetPosition(position ds.Position) {
	if !position.Valid() {
		position = ds.Position1
	}
	s.write(func(st *State) { st.Position = position })
}

// SetMatchInfo records the FMS match details
func (s *Store) SetMatchInfo(info ds.MatchInfo) {
	s.write(func(st *State) { st.Match = info })
}

// UpdateRobotStatus records the robot's latest status
func (s *Store) UpdateRobotStatus(status ds.RobotStatus) {
	s.write(func(st *State) { st.RobotStatus = status })
}

// UpdateDiagnostics records the robot's latest diagnostics
func (s *Store) UpdateDiagnostics(diag ds.RobotDiagnostics) {
	s.write(func(st *State) { st.Diagnostics = diag })
}
