// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package protocol provides the driver station protocol layer.
//
// A Protocol wraps one Implementation (a season's byte rules) and owns the
// bookkeeping every implementation shares: packet counters, the robot
// connection epoch used for packet loss, and communication status updates
// written back to the configuration store.
package protocol

import (
	"sync"

	"github.com/Thermoquad/dslink/pkg/ds"
	"github.com/hashicorp/go-hclog"
)

// Protocol is the uniform interface the driver loop talks to.
//
// Calls for one peer (generate, read and watchdog expiry) are serialised by
// a per-peer lock. Calls for different peers never contend.
type Protocol struct {
	impl      Implementation
	cfg       Config
	joysticks JoystickSource
	logger    hclog.Logger

	tracker CommsTracker

	fmsMu   sync.Mutex
	radioMu sync.Mutex
	robotMu sync.Mutex

	addrMu  sync.RWMutex
	fmsAddr string
}

// Option configures a Protocol
type Option func(*Protocol)

// WithLogger sets the logger used for status transitions and decode failures
func WithLogger(l hclog.Logger) Option {
	return func(p *Protocol) {
		if l != nil {
			p.logger = l
		}
	}
}

// New wraps impl. cfg is required; joysticks may be nil.
func New(impl Implementation, cfg Config, joysticks JoystickSource, opts ...Option) *Protocol {
	p := &Protocol{
		impl:      impl,
		cfg:       cfg,
		joysticks: joysticks,
		logger:    hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("protocol").With("protocol", impl.Name())
	return p
}

// Implementation returns the wrapped implementation
func (p *Protocol) Implementation() Implementation {
	return p.impl
}

func (p *Protocol) env(seq uint64) Env {
	return Env{
		Config:    p.cfg,
		Joysticks: p.joysticks,
		Logger:    p.logger,
		Sequence:  seq,
	}
}

//////////////////////////////////////////////////////////////
// Packet generation
//////////////////////////////////////////////////////////////

// GenerateFMSPacket counts and builds a packet for the FMS.
// An empty result means there is nothing to send this cycle.
func (p *Protocol) GenerateFMSPacket() []byte {
	p.fmsMu.Lock()
	defer p.fmsMu.Unlock()

	seq := p.tracker.SentFMS.Add(1)
	return p.impl.FMSPacket(p.env(seq))
}

// GenerateRadioPacket counts and builds a packet for the radio
func (p *Protocol) GenerateRadioPacket() []byte {
	p.radioMu.Lock()
	defer p.radioMu.Unlock()

	seq := p.tracker.SentRadio.Add(1)
	return p.impl.RadioPacket(p.env(seq))
}

// GenerateRobotPacket counts and builds a packet for the robot
func (p *Protocol) GenerateRobotPacket() []byte {
	p.robotMu.Lock()
	defer p.robotMu.Unlock()

	seq := p.tracker.SentRobot.Add(1)
	p.tracker.SentRobotSinceConnect.Add(1)
	return p.impl.RobotPacket(p.env(seq))
}

//////////////////////////////////////////////////////////////
// Packet interpretation
//////////////////////////////////////////////////////////////

// ReadFMSPacket counts data and lets the implementation interpret it.
// The FMS is marked working when interpretation succeeds.
func (p *Protocol) ReadFMSPacket(data []byte) bool {
	p.fmsMu.Lock()
	defer p.fmsMu.Unlock()

	seq := p.tracker.ReceivedFMS.Add(1)
	if !p.impl.InterpretFMSPacket(p.env(seq), data) {
		p.logger.Debug("FMS packet rejected", "length", len(data))
		return false
	}

	if !p.cfg.IsConnectedToFMS() {
		p.logger.Info("FMS communications established")
	}
	p.cfg.UpdateFMSCommStatus(ds.CommsWorking)
	return true
}

// ReadRadioPacket counts data and lets the implementation interpret it
func (p *Protocol) ReadRadioPacket(data []byte) bool {
	p.radioMu.Lock()
	defer p.radioMu.Unlock()

	seq := p.tracker.ReceivedRadio.Add(1)
	if !p.impl.InterpretRadioPacket(p.env(seq), data) {
		p.logger.Debug("radio packet rejected", "length", len(data))
		return false
	}

	if !p.cfg.IsConnectedToRadio() {
		p.logger.Info("radio communications established")
	}
	p.cfg.UpdateRadioCommStatus(ds.CommsWorking)
	return true
}

// ReadRobotPacket counts data and lets the implementation interpret it.
//
// The first packet interpreted after a disconnection starts a new loss
// epoch: both since-connect counters are zeroed before the robot is marked
// connected, and the packet itself is the first one counted in the epoch.
func (p *Protocol) ReadRobotPacket(data []byte) bool {
	p.robotMu.Lock()
	defer p.robotMu.Unlock()

	seq := p.tracker.ReceivedRobot.Add(1)
	ok := p.impl.InterpretRobotPacket(p.env(seq), data)

	// Must run before UpdateRobotCommStatus or the robot always looks connected
	if ok && !p.cfg.IsConnectedToRobot() {
		p.tracker.ResetSinceConnect()
		p.logger.Info("robot communications established")
	}
	p.tracker.ReceivedRobotSinceConnect.Add(1)

	if !ok {
		p.logger.Debug("robot packet rejected", "length", len(data))
		return false
	}

	p.cfg.UpdateRobotCommStatus(ds.CommsWorking)
	return true
}

// ResetLossCounter starts a new robot loss epoch
func (p *Protocol) ResetLossCounter() {
	p.robotMu.Lock()
	defer p.robotMu.Unlock()
	p.tracker.ResetSinceConnect()
}

//////////////////////////////////////////////////////////////
// Watchdogs and diagnostics
//////////////////////////////////////////////////////////////

// OnFMSWatchdogExpired marks the FMS as failing and notifies the implementation
func (p *Protocol) OnFMSWatchdogExpired() {
	p.fmsMu.Lock()
	defer p.fmsMu.Unlock()

	if p.cfg.IsConnectedToFMS() {
		p.logger.Warn("FMS watchdog expired")
	}
	p.cfg.UpdateFMSCommStatus(ds.CommsFailing)
	p.impl.OnFMSWatchdogExpired(p.env(p.tracker.ReceivedFMS.Load()))
}

// OnRadioWatchdogExpired marks the radio as failing and notifies the implementation
func (p *Protocol) OnRadioWatchdogExpired() {
	p.radioMu.Lock()
	defer p.radioMu.Unlock()

	if p.cfg.IsConnectedToRadio() {
		p.logger.Warn("radio watchdog expired")
	}
	p.cfg.UpdateRadioCommStatus(ds.CommsFailing)
	p.impl.OnRadioWatchdogExpired(p.env(p.tracker.ReceivedRadio.Load()))
}

// OnRobotWatchdogExpired marks the robot as failing and notifies the implementation
func (p *Protocol) OnRobotWatchdogExpired() {
	p.robotMu.Lock()
	defer p.robotMu.Unlock()

	if p.cfg.IsConnectedToRobot() {
		p.logger.Warn("robot watchdog expired")
	}
	p.cfg.UpdateRobotCommStatus(ds.CommsFailing)
	p.impl.OnRobotWatchdogExpired(p.env(p.tracker.ReceivedRobot.Load()))
}

// RebootRobot asks the implementation to reboot the robot controller
func (p *Protocol) RebootRobot() {
	p.logger.Info("robot reboot requested")
	p.impl.RebootRobot()
}

// RestartRobotCode asks the implementation to restart the robot program
func (p *Protocol) RestartRobotCode() {
	p.logger.Info("robot code restart requested")
	p.impl.RestartRobotCode()
}

//////////////////////////////////////////////////////////////
// Counters
//////////////////////////////////////////////////////////////

// Counters returns a snapshot of every packet counter. The robot counters
// are read under the robot lock so a snapshot never straddles the start of
// a new connection epoch.
func (p *Protocol) Counters() Counters {
	p.robotMu.Lock()
	defer p.robotMu.Unlock()
	return p.tracker.Snapshot()
}

// PacketLoss returns the robot packet loss of the current epoch (0-1)
func (p *Protocol) PacketLoss() float64 {
	return p.Counters().PacketLoss()
}

// Lifetime packet counts per peer. Each is a single atomic read.

// SentFMSPackets returns packets generated for the FMS
func (p *Protocol) SentFMSPackets() uint64 { return p.tracker.SentFMS.Load() }

// SentRadioPackets returns packets generated for the radio
func (p *Protocol) SentRadioPackets() uint64 { return p.tracker.SentRadio.Load() }

// SentRobotPackets returns packets generated for the robot
func (p *Protocol) SentRobotPackets() uint64 { return p.tracker.SentRobot.Load() }

// ReceivedFMSPackets returns packets read from the FMS, accepted or not
func (p *Protocol) ReceivedFMSPackets() uint64 { return p.tracker.ReceivedFMS.Load() }

// ReceivedRadioPackets returns packets read from the radio, accepted or not
func (p *Protocol) ReceivedRadioPackets() uint64 { return p.tracker.ReceivedRadio.Load() }

// ReceivedRobotPackets returns packets read from the robot, accepted or not
func (p *Protocol) ReceivedRobotPackets() uint64 { return p.tracker.ReceivedRobot.Load() }

// SentRobotPacketsSinceConnect returns robot packets sent in the current epoch
func (p *Protocol) SentRobotPacketsSinceConnect() uint64 {
	return p.tracker.SentRobotSinceConnect.Load()
}

// ReceivedRobotPacketsSinceConnect returns robot packets received in the current epoch
func (p *Protocol) ReceivedRobotPacketsSinceConnect() uint64 {
	return p.tracker.ReceivedRobotSinceConnect.Load()
}

//////////////////////////////////////////////////////////////
// Peer configuration
//////////////////////////////////////////////////////////////

// The accessors below pass straight through to the implementation.

// Name returns the implementation's display name
func (p *Protocol) Name() string { return p.impl.Name() }

// Send rates in packets per second; zero means the peer is not sent to.
func (p *Protocol) FMSFrequency() int   { return p.impl.FMSFrequency() }
func (p *Protocol) RadioFrequency() int { return p.impl.RadioFrequency() }
func (p *Protocol) RobotFrequency() int { return p.impl.RobotFrequency() }

// Joystick ceilings of one packet.
func (p *Protocol) MaxJoystickCount() int { return p.impl.MaxJoystickCount() }
func (p *Protocol) MaxAxisCount() int     { return p.impl.MaxAxisCount() }
func (p *Protocol) MaxButtonCount() int   { return p.impl.MaxButtonCount() }
func (p *Protocol) MaxPOVCount() int      { return p.impl.MaxPOVCount() }

// Ports per peer and direction; ds.DisabledPort turns a direction off.
func (p *Protocol) FMSInputPort() int         { return p.impl.FMSInputPort() }
func (p *Protocol) FMSOutputPort() int        { return p.impl.FMSOutputPort() }
func (p *Protocol) RadioInputPort() int       { return p.impl.RadioInputPort() }
func (p *Protocol) RadioOutputPort() int      { return p.impl.RadioOutputPort() }
func (p *Protocol) RobotInputPort() int       { return p.impl.RobotInputPort() }
func (p *Protocol) RobotOutputPort() int      { return p.impl.RobotOutputPort() }
func (p *Protocol) NetconsoleInputPort() int  { return p.impl.NetconsoleInputPort() }
func (p *Protocol) NetconsoleOutputPort() int { return p.impl.NetconsoleOutputPort() }

// Transport used for each peer.
func (p *Protocol) FMSSocketType() ds.SocketType   { return p.impl.FMSSocketType() }
func (p *Protocol) RadioSocketType() ds.SocketType { return p.impl.RadioSocketType() }
func (p *Protocol) RobotSocketType() ds.SocketType { return p.impl.RobotSocketType() }

// Battery ratings used to scale voltage displays.
func (p *Protocol) NominalBatteryVoltage() float64  { return p.impl.NominalBatteryVoltage() }
func (p *Protocol) NominalBatteryAmperage() float64 { return p.impl.NominalBatteryAmperage() }

// FMSAddress returns the learned FMS address, falling back to the
// implementation's. It is empty while the FMS output port is disabled.
func (p *Protocol) FMSAddress() string {
	if p.impl.FMSOutputPort() == ds.DisabledPort {
		return ""
	}
	p.addrMu.RLock()
	learned := p.fmsAddr
	p.addrMu.RUnlock()
	if learned != "" {
		return learned
	}
	return p.impl.FMSAddress()
}

// LearnFMSAddress records where the FMS lives. Only the first address sticks.
// It reports whether the address was stored.
func (p *Protocol) LearnFMSAddress(addr string) bool {
	if addr == "" {
		return false
	}
	p.addrMu.Lock()
	defer p.addrMu.Unlock()
	if p.fmsAddr != "" {
		return false
	}
	p.fmsAddr = addr
	p.logger.Info("FMS address learned", "address", addr)
	return true
}

// RadioAddress returns where radio packets go, empty while the radio output
// port is disabled
func (p *Protocol) RadioAddress() string {
	if p.impl.RadioOutputPort() == ds.DisabledPort {
		return ""
	}
	return p.impl.RadioAddress(p.cfg.Team())
}

// RobotAddress returns where robot packets go, empty while the robot output
// port is disabled
func (p *Protocol) RobotAddress() string {
	if p.impl.RobotOutputPort() == ds.DisabledPort {
		return ""
	}
	return p.impl.RobotAddress(p.cfg.Team())
}
