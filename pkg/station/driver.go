// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package station runs a protocol against the network: one sender loop per
// peer ticking at the protocol's frequency, one receiver per input port,
// and a watchdog per peer that declares the link lost when traffic stops.
package station

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/dslink/pkg/ds"
	"github.com/Thermoquad/dslink/pkg/protocol"
	"github.com/Thermoquad/dslink/pkg/watchdog"
	"github.com/hashicorp/go-hclog"
)

// DefaultWatchdogTimeout is how long a peer may stay silent before its
// link is declared failing
const DefaultWatchdogTimeout = time.Second

// DefaultPublishInterval is how often samples go to publishers
const DefaultPublishInterval = 100 * time.Millisecond

// Sample is a periodic view of the packet counters
type Sample struct {
	Time       time.Time
	Counters   protocol.Counters
	PacketLoss float64
}

// Publisher receives samples while the driver runs
type Publisher interface {
	Publish(Sample)
}

// ConsoleHandler receives netconsole output, one datagram at a time
type ConsoleHandler func(message string)

// Driver moves packets between a Protocol and its peers
type Driver struct {
	proto  *protocol.Protocol
	logger hclog.Logger

	timeout         time.Duration
	publishInterval time.Duration
	robotAddress    string
	publishers      []Publisher
	console         ConsoleHandler
}

// Option configures a Driver
type Option func(*Driver)

// WithLogger sets the driver's logger
func WithLogger(l hclog.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithWatchdogTimeout sets the silence allowed before a peer is lost
func WithWatchdogTimeout(timeout time.Duration) Option {
	return func(d *Driver) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithRobotAddress overrides the team-derived robot address
func WithRobotAddress(addr string) Option {
	return func(d *Driver) {
		d.robotAddress = addr
	}
}

// WithPublisher adds a sample publisher
func WithPublisher(p Publisher) Option {
	return func(d *Driver) {
		if p != nil {
			d.publishers = append(d.publishers, p)
		}
	}
}

// WithPublishInterval sets how often publishers are called
func WithPublishInterval(interval time.Duration) Option {
	return func(d *Driver) {
		if interval > 0 {
			d.publishInterval = interval
		}
	}
}

// WithConsoleHandler replaces the default netconsole handler, which logs
// each message at Info
func WithConsoleHandler(fn ConsoleHandler) Option {
	return func(d *Driver) {
		d.console = fn
	}
}

// New creates a driver for proto
func New(proto *protocol.Protocol, opts ...Option) *Driver {
	d := &Driver{
		proto:           proto,
		logger:          hclog.NewNullLogger(),
		timeout:         DefaultWatchdogTimeout,
		publishInterval: DefaultPublishInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.Named("station")
	if d.console == nil {
		console := d.logger.Named("netconsole")
		d.console = func(message string) { console.Info(message) }
	}
	return d
}

// peer bundles what the loops need to service one remote endpoint
type peer struct {
	id         ds.Peer
	inputPort  int
	outputPort int
	socket     ds.SocketType
	frequency  int
	address    func() string
	generate   func() []byte
	read       func([]byte) bool
	expire     func()
}

func (d *Driver) peers() []peer {
	p := d.proto
	robotAddress := p.RobotAddress
	if d.robotAddress != "" {
		robotAddress = func() string { return d.robotAddress }
	}
	return []peer{
		{
			id:         ds.PeerFMS,
			inputPort:  p.FMSInputPort(),
			outputPort: p.FMSOutputPort(),
			socket:     p.FMSSocketType(),
			frequency:  p.FMSFrequency(),
			address:    p.FMSAddress,
			generate:   p.GenerateFMSPacket,
			read:       p.ReadFMSPacket,
			expire:     p.OnFMSWatchdogExpired,
		},
		{
			id:         ds.PeerRadio,
			inputPort:  p.RadioInputPort(),
			outputPort: p.RadioOutputPort(),
			socket:     p.RadioSocketType(),
			frequency:  p.RadioFrequency(),
			address:    p.RadioAddress,
			generate:   p.GenerateRadioPacket,
			read:       p.ReadRadioPacket,
			expire:     p.OnRadioWatchdogExpired,
		},
		{
			id:         ds.PeerRobot,
			inputPort:  p.RobotInputPort(),
			outputPort: p.RobotOutputPort(),
			socket:     p.RobotSocketType(),
			frequency:  p.RobotFrequency(),
			address:    robotAddress,
			generate:   p.GenerateRobotPacket,
			read:       p.ReadRobotPacket,
			expire:     p.OnRobotWatchdogExpired,
		},
	}
}

// Run services every enabled peer until ctx is cancelled. It fails only if
// an input port cannot be opened.
func (d *Driver) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	peers := d.peers()
	receivers := make([]receiver, 0, len(peers)+1)
	defer func() {
		for _, r := range receivers {
			r.Close()
		}
	}()

	for _, pr := range peers {
		if pr.inputPort == ds.DisabledPort {
			continue
		}
		r, err := listen(pr.socket, pr.inputPort)
		if err != nil {
			return fmt.Errorf("failed to open %s input port %d: %w", pr.id, pr.inputPort, err)
		}
		receivers = append(receivers, r)
	}

	var console receiver
	if port := d.proto.NetconsoleInputPort(); port != ds.DisabledPort {
		r, err := listen(ds.SocketUDP, port)
		if err != nil {
			return fmt.Errorf("failed to open netconsole port %d: %w", port, err)
		}
		receivers = append(receivers, r)
		console = r
	}

	d.logger.Info("driver started", "protocol", d.proto.Name(), "watchdog", d.timeout)

	var wg sync.WaitGroup
	next := 0
	for _, pr := range peers {
		pr := pr
		wd := watchdog.New(d.timeout, pr.expire)
		defer wd.Stop()

		if pr.inputPort != ds.DisabledPort {
			r := receivers[next]
			next++
			wg.Add(1)
			go func() {
				defer wg.Done()
				d.receive(ctx, pr, r, wd)
			}()
		}
		if pr.outputPort != ds.DisabledPort && pr.frequency > 0 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				d.send(ctx, pr)
			}()
		}
	}

	if console != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.netconsole(ctx, console)
		}()
	}

	if len(d.publishers) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.publish(ctx)
		}()
	}

	<-ctx.Done()
	for _, r := range receivers {
		r.Close()
	}
	wg.Wait()
	d.logger.Info("driver stopped")
	return nil
}

// send generates and transmits one packet per tick
func (d *Driver) send(ctx context.Context, pr peer) {
	logger := d.logger.With("peer", pr.id.String())
	s := newSender(pr.socket, pr.outputPort)
	defer s.Close()

	ticker := time.NewTicker(time.Second / time.Duration(pr.frequency))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		data := pr.generate()
		if len(data) == 0 {
			continue
		}
		addr := pr.address()
		if addr == "" {
			continue
		}
		if err := s.Send(addr, data); err != nil {
			logger.Trace("send failed", "address", addr, "error", err)
		}
	}
}

// receive feeds incoming packets to the protocol and keeps the watchdog fed.
// Only packets the protocol accepts reset the watchdog. Sending does not,
// so a peer that never answers expires even while we keep transmitting.
func (d *Driver) receive(ctx context.Context, pr peer, r receiver, wd *watchdog.Watchdog) {
	logger := d.logger.With("peer", pr.id.String())
	for {
		data, from, err := r.Receive()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, errClosed) {
				return
			}
			logger.Debug("receive failed", "error", err)
			continue
		}

		if !pr.read(data) {
			continue
		}
		wd.Reset()
		if pr.id == ds.PeerFMS && from != "" {
			d.proto.LearnFMSAddress(from)
		}
	}
}

func (d *Driver) netconsole(ctx context.Context, r receiver) {
	for {
		data, _, err := r.Receive()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, errClosed) {
				return
			}
			continue
		}
		if len(data) > 0 {
			d.console(trimMessage(data))
		}
	}
}

func (d *Driver) publish(ctx context.Context) {
	ticker := time.NewTicker(d.publishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			counters := d.proto.Counters()
			sample := Sample{
				Time:       now,
				Counters:   counters,
				PacketLoss: counters.PacketLoss(),
			}
			for _, p := range d.publishers {
				p.Publish(sample)
			}
		}
	}
}

func trimMessage(data []byte) string {
	end := len(data)
	for end > 0 && (data[end-1] == '\n' || data[end-1] == '\r' || data[end-1] == 0) {
		end--
	}
	return string(data[:end])
}
