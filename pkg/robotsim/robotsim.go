// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package robotsim is a stand-in roboRIO speaking the FRC 2015-2019
// protocol. It answers each driver station command with a status packet,
// asks for the date until it gets one, follows reboot and restart requests,
// and prints to the driver station's netconsole.
package robotsim

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/Thermoquad/dslink/pkg/ds"
	"github.com/Thermoquad/dslink/pkg/protocol/frc2015"
	"github.com/hashicorp/go-hclog"
)

// Defaults
const (
	DefaultVoltage      = 12.6
	DefaultRebootTime   = 3 * time.Second
	DefaultRestartTime  = time.Second
	diagnosticsInterval = 50 // packets
)

// Ports the simulator binds and targets
type Ports struct {
	Listen     int // robot command input (DS -> robot)
	Reply      int // driver station status input (robot -> DS)
	Netconsole int // driver station netconsole input
}

// DefaultPorts are the real roboRIO ports
var DefaultPorts = Ports{
	Listen:     frc2015.RobotOutputPort,
	Reply:      frc2015.RobotInputPort,
	Netconsole: frc2015.NetconsoleInputPort,
}

// Robot simulates one robot controller
type Robot struct {
	ports       Ports
	logger      hclog.Logger
	voltage     float64
	rebootTime  time.Duration
	restartTime time.Duration

	mu        sync.Mutex
	sequence  uint16
	haveDate  bool
	date      time.Time
	offline   time.Time // silent until
	codeStart time.Time // no code until
	last      frc2015.Command
	commands  uint64
	console   net.Conn
}

// Option configures a Robot
type Option func(*Robot)

// WithLogger sets the simulator's logger
func WithLogger(l hclog.Logger) Option {
	return func(r *Robot) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithPorts replaces the default ports
func WithPorts(p Ports) Option {
	return func(r *Robot) {
		r.ports = p
	}
}

// WithVoltage sets the resting battery voltage
func WithVoltage(v float64) Option {
	return func(r *Robot) {
		r.voltage = v
	}
}

// WithRebootTime sets how long a reboot keeps the robot silent
func WithRebootTime(d time.Duration) Option {
	return func(r *Robot) {
		r.rebootTime = d
	}
}

// WithRestartTime sets how long a code restart reports no code
func WithRestartTime(d time.Duration) Option {
	return func(r *Robot) {
		r.restartTime = d
	}
}

// New creates a simulator
func New(opts ...Option) *Robot {
	r := &Robot{
		ports:       DefaultPorts,
		logger:      hclog.NewNullLogger(),
		voltage:     DefaultVoltage,
		rebootTime:  DefaultRebootTime,
		restartTime: DefaultRestartTime,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("robotsim")
	return r
}

// Run answers commands until ctx is cancelled
func (r *Robot) Run(ctx context.Context) error {
	conn, err := net.ListenPacket("udp", ":"+strconv.Itoa(r.ports.Listen))
	if err != nil {
		return fmt.Errorf("failed to listen on %d: %w", r.ports.Listen, err)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	r.logger.Info("simulated robot listening", "port", r.ports.Listen)

	buf := make([]byte, 2048)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				r.closeConsole()
				return nil
			}
			r.logger.Debug("read failed", "error", err)
			continue
		}

		reply, ok := r.Handle(buf[:n], time.Now())
		if !ok {
			continue
		}
		host := from.(*net.UDPAddr).IP
		dst := &net.UDPAddr{IP: host, Port: r.ports.Reply}
		if _, err := conn.WriteTo(reply, dst); err != nil {
			r.logger.Debug("reply failed", "error", err)
		}
	}
}

// Handle processes one command at time now and returns the status reply.
// It reports false when the robot stays silent.
func (r *Robot) Handle(data []byte, now time.Time) ([]byte, bool) {
	cmd, err := frc2015.DecodeCommand(data)
	if err != nil {
		r.logger.Trace("ignoring bad command", "error", err)
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if now.Before(r.offline) {
		return nil, false
	}

	r.commands++
	r.last = cmd
	if !cmd.Date.IsZero() && !r.haveDate {
		r.haveDate = true
		r.date = cmd.Date
		r.logger.Info("clock set by driver station", "date", cmd.Date, "timezone", cmd.Timezone)
	}

	switch cmd.Request {
	case frc2015.RequestReboot:
		r.logger.Warn("reboot requested")
		r.offline = now.Add(r.rebootTime)
		r.codeStart = r.offline.Add(r.restartTime)
		r.haveDate = false
		return nil, false
	case frc2015.RequestRestartCode:
		r.logger.Warn("code restart requested")
		r.codeStart = now.Add(r.restartTime)
	}

	r.sequence++
	status := frc2015.Status{
		Sequence: r.sequence,
		Control:  cmd.Control,
		Trace:    r.trace(cmd, now),
		Voltage:  r.batteryVoltage(cmd),
	}
	if !r.haveDate {
		status.Request = frc2015.RobotRequestTime
	}
	if r.commands%diagnosticsInterval == 1 {
		status.Blocks = diagnostics()
	}
	return frc2015.EncodeStatus(status), true
}

func (r *Robot) trace(cmd frc2015.Command, now time.Time) byte {
	trace := byte(frc2015.StatusRoboRIO)
	if !now.Before(r.codeStart) {
		trace |= frc2015.StatusHasCode
	}
	if !cmd.Control.Enabled {
		trace |= frc2015.StatusDisabled
	}
	switch cmd.Control.Mode {
	case ds.ModeAutonomous:
		trace |= frc2015.StatusAuto
	case ds.ModeTest:
		trace |= frc2015.StatusTest
	default:
		trace |= frc2015.StatusTeleop
	}
	return trace
}

// batteryVoltage sags while enabled in proportion to joystick deflection
func (r *Robot) batteryVoltage(cmd frc2015.Command) float64 {
	if !cmd.Control.Enabled {
		return r.voltage
	}
	var load float64
	for _, js := range cmd.Joysticks {
		for _, axis := range js.Axes {
			load += math.Abs(axis)
		}
	}
	return math.Max(r.voltage-0.4*load, 0)
}

func diagnostics() []frc2015.Block {
	cpu := []byte{2}
	cpu = binary.BigEndian.AppendUint32(cpu, math.Float32bits(23.5))
	cpu = binary.BigEndian.AppendUint32(cpu, math.Float32bits(31.5))

	ram := binary.BigEndian.AppendUint32(nil, 0)
	ram = binary.BigEndian.AppendUint32(ram, 128<<20)

	disk := binary.BigEndian.AppendUint32(nil, 256<<20)

	can := binary.BigEndian.AppendUint32(nil, math.Float32bits(18))
	can = append(can, make([]byte, 10)...)

	return []frc2015.Block{
		{Tag: frc2015.TagCPUInfo, Data: cpu},
		{Tag: frc2015.TagRAMInfo, Data: ram},
		{Tag: frc2015.TagDiskInfo, Data: disk},
		{Tag: frc2015.TagCANMetrics, Data: can},
	}
}

// State is what the simulator has seen so far
type State struct {
	Commands uint64
	Last     frc2015.Command
	Date     time.Time
	HaveDate bool
}

// State returns a copy of the simulator's state
func (r *Robot) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return State{
		Commands: r.commands,
		Last:     r.last,
		Date:     r.date,
		HaveDate: r.haveDate,
	}
}

// Print sends a netconsole message to host
func (r *Robot) Print(host, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.console == nil {
		conn, err := net.Dial("udp", net.JoinHostPort(host, strconv.Itoa(r.ports.Netconsole)))
		if err != nil {
			return fmt.Errorf("failed to open netconsole: %w", err)
		}
		r.console = conn
	}
	_, err := r.console.Write([]byte(message + "\n"))
	return err
}

func (r *Robot) closeConsole() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.console != nil {
		r.console.Close()
		r.console = nil
	}
}
