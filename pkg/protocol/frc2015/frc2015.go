// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frc2015

import (
	"time"

	"github.com/Thermoquad/dslink/pkg/ds"
	"github.com/Thermoquad/dslink/pkg/protocol"
	"github.com/hashicorp/go-hclog"
)

// Name is the registry name of this protocol
const Name = "frc2015"

func init() {
	protocol.Register(Name, func() protocol.Implementation { return New() })
}

// Protocol implements the FRC 2015-2019 season protocol
type Protocol struct {
	protocol.Base

	reboot      protocol.Request
	restartCode protocol.Request
	sendDate    protocol.Request

	now func() time.Time
}

// Option configures a Protocol
type Option func(*Protocol)

// WithClock replaces the clock used for the date block
func WithClock(now func() time.Time) Option {
	return func(p *Protocol) {
		p.now = now
	}
}

// New creates an FRC 2015-2019 protocol implementation
func New(opts ...Option) *Protocol {
	p := &Protocol{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the protocol's display name
func (p *Protocol) Name() string { return "FRC 2015-2019" }

// FMS and robot run at fixed rates; the radio is not sent to.
func (p *Protocol) FMSFrequency() int   { return FMSFrequency }
func (p *Protocol) RobotFrequency() int { return RobotFrequency }

// Ports on the field network. The radio has none.
func (p *Protocol) FMSInputPort() int        { return FMSInputPort }
func (p *Protocol) FMSOutputPort() int       { return FMSOutputPort }
func (p *Protocol) RobotInputPort() int      { return RobotInputPort }
func (p *Protocol) RobotOutputPort() int     { return RobotOutputPort }
func (p *Protocol) NetconsoleInputPort() int { return NetconsoleInputPort }

// Joystick ceilings per robot packet.
func (p *Protocol) MaxJoystickCount() int { return MaxJoysticks }
func (p *Protocol) MaxAxisCount() int     { return MaxAxes }
func (p *Protocol) MaxButtonCount() int   { return MaxButtons }
func (p *Protocol) MaxPOVCount() int      { return MaxPOVs }

// Both links are UDP.
func (p *Protocol) FMSSocketType() ds.SocketType   { return ds.SocketUDP }
func (p *Protocol) RobotSocketType() ds.SocketType { return ds.SocketUDP }

// Ratings of the standard 12 V robot battery.
func (p *Protocol) NominalBatteryVoltage() float64  { return NominalBatteryVoltage }
func (p *Protocol) NominalBatteryAmperage() float64 { return NominalBatteryAmperage }

// RebootRobot asks the roboRIO to reboot with the next packet sent while connected
func (p *Protocol) RebootRobot() {
	p.reboot.Set()
}

// RestartRobotCode asks the roboRIO to restart user code with the next
// packet sent while connected
func (p *Protocol) RestartRobotCode() {
	p.restartCode.Set()
}

// OnRobotWatchdogExpired drops every pending request; they belong to the
// connection that was lost
func (p *Protocol) OnRobotWatchdogExpired(env protocol.Env) {
	p.reboot.Clear()
	p.restartCode.Clear()
	p.sendDate.Clear()
}

// Pending reports which single-shot requests are waiting for the next robot packet
func (p *Protocol) Pending() (reboot, restartCode, sendDate bool) {
	return p.reboot.Pending(), p.restartCode.Pending(), p.sendDate.Pending()
}

func (p *Protocol) limits() Limits {
	return Limits{
		Joysticks: p.MaxJoystickCount(),
		Axes:      p.MaxAxisCount(),
		Buttons:   p.MaxButtonCount(),
		POVs:      p.MaxPOVCount(),
	}
}

func logger(env protocol.Env) hclog.Logger {
	if env.Logger == nil {
		return hclog.NewNullLogger()
	}
	return env.Logger
}

//////////////////////////////////////////////////////////////
// Packet generation
//////////////////////////////////////////////////////////////

func (p *Protocol) controlCode(cfg protocol.Config) Control {
	return Control{
		Mode:        cfg.ControlMode(),
		Enabled:     cfg.IsEnabled(),
		FMSAttached: cfg.IsFMSAttached(),
		EStop:       cfg.IsEmergencyStopped(),
	}
}

// requestCode consumes at most one of the reboot and restart requests.
// Nothing is consumed while the robot is not connected.
func (p *Protocol) requestCode(cfg protocol.Config) byte {
	if !cfg.IsConnectedToRobot() {
		return RequestUnconnected
	}
	if p.reboot.Take() {
		return RequestReboot
	}
	if p.restartCode.Take() {
		return RequestRestartCode
	}
	return RequestNormal
}

// RobotPacket builds the 50 Hz control packet
func (p *Protocol) RobotPacket(env protocol.Env) []byte {
	cfg := env.Config
	cmd := Command{
		Sequence:  uint16(env.Sequence),
		Control:   p.controlCode(cfg),
		Request:   p.requestCode(cfg),
		Station:   StationCode(cfg.Alliance(), cfg.Position()),
		Joysticks: env.JoystickList(),
	}
	if p.sendDate.Take() {
		cmd.Date = p.now()
	}
	return EncodeCommand(cmd, p.limits())
}

// FMSPacket builds the 2 Hz status report for the field
func (p *Protocol) FMSPacket(env protocol.Env) []byte {
	cfg := env.Config
	return EncodeFMSStatus(FMSStatus{
		Sequence: uint16(env.Sequence),
		Control: Control{
			Mode:    cfg.ControlMode(),
			Enabled: cfg.IsEnabled(),
			EStop:   cfg.IsEmergencyStopped(),
		},
		RadioPing:  cfg.IsConnectedToRadio(),
		RobotPing:  cfg.IsConnectedToRobot(),
		RobotComms: cfg.IsConnectedToRobot(),
		Team:       cfg.Team(),
		Voltage:    cfg.Voltage(),
	})
}

//////////////////////////////////////////////////////////////
// Packet interpretation
//////////////////////////////////////////////////////////////

// InterpretFMSPacket applies the field's commands: enable state, mode,
// e-stop, station assignment and match information
func (p *Protocol) InterpretFMSPacket(env protocol.Env, data []byte) bool {
	c, err := DecodeFMSCommand(data)
	if err != nil {
		logger(env).Trace("bad FMS packet", "error", err)
		return false
	}

	cfg := env.Config
	cfg.SetFMSAttached(true)
	cfg.SetEnabled(c.Control.Enabled)
	cfg.SetControlMode(c.Control.Mode)
	if c.Control.EStop {
		cfg.SetEmergencyStopped(true)
	}
	cfg.SetAlliance(Alliance(c.Station))
	cfg.SetPosition(Position(c.Station))
	cfg.SetMatchInfo(c.Match)
	return true
}

// InterpretRobotPacket applies the robot's status report. Success depends
// only on the fixed header; extended blocks are best effort.
func (p *Protocol) InterpretRobotPacket(env protocol.Env, data []byte) bool {
	s, err := DecodeStatus(data)
	if err != nil {
		logger(env).Trace("bad robot packet", "error", err)
		return false
	}

	cfg := env.Config
	cfg.UpdateRobotStatus(ds.RobotStatus{
		HasCode:  s.HasCode(),
		EStopped: s.Control.EStop,
		Brownout: s.Control.Brownout,
		Voltage:  s.Voltage,
	})
	if s.Control.EStop {
		cfg.SetEmergencyStopped(true)
	}
	if s.RequestsTime() {
		p.sendDate.Set()
	}

	p.readExtended(env, s.Blocks)
	return true
}

// readExtended folds the robot's extended blocks into the diagnostics
func (p *Protocol) readExtended(env protocol.Env, blocks []Block) {
	if len(blocks) == 0 {
		return
	}
	diag := env.Config.Diagnostics()
	for _, b := range blocks {
		if !applyDiagnostics(&diag, b.Tag, b.Data) {
			logger(env).Trace("skipping unknown block", "tag", b.Tag, "length", len(b.Data))
		}
	}
	env.Config.UpdateDiagnostics(diag)
}
