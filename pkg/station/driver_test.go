// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package station

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/dslink/pkg/ds"
	"github.com/Thermoquad/dslink/pkg/dsconfig"
	"github.com/Thermoquad/dslink/pkg/protocol"
)

// loopImpl is a minimal protocol bound to loopback ports
type loopImpl struct {
	protocol.Base
	robotIn, robotOut int
	fmsIn, fmsOut     int
	consoleIn         int
	robotHost         string
}

func (l *loopImpl) Name() string             { return "loopback" }
func (l *loopImpl) RobotFrequency() int      { return 100 }
func (l *loopImpl) RobotInputPort() int      { return l.robotIn }
func (l *loopImpl) RobotOutputPort() int     { return l.robotOut }
func (l *loopImpl) FMSInputPort() int        { return l.fmsIn }
func (l *loopImpl) FMSOutputPort() int       { return l.fmsOut }
func (l *loopImpl) NetconsoleInputPort() int { return l.consoleIn }

func (l *loopImpl) RobotAddress(team int) string { return l.robotHost }

func (l *loopImpl) RobotPacket(env protocol.Env) []byte {
	return []byte{byte(env.Sequence)}
}

func (l *loopImpl) InterpretRobotPacket(env protocol.Env, data []byte) bool {
	return len(data) > 0
}

func (l *loopImpl) InterpretFMSPacket(env protocol.Env, data []byte) bool {
	return len(data) > 0
}

func freePort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).Port
}

func newLoopImpl(t *testing.T) *loopImpl {
	return &loopImpl{
		robotIn:   freePort(t),
		robotOut:  freePort(t),
		fmsIn:     ds.DisabledPort,
		fmsOut:    ds.DisabledPort,
		consoleIn: ds.DisabledPort,
		robotHost: "127.0.0.1",
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func startDriver(t *testing.T, d *Driver) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run error: %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Error("driver did not stop")
		}
	})
}

// echoRobot answers every driver packet until stop is closed
func echoRobot(t *testing.T, impl *loopImpl, stop <-chan struct{}) {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:"+strconv.Itoa(impl.robotOut))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	reply, _ := net.ResolveUDPAddr("udp", "127.0.0.1:"+strconv.Itoa(impl.robotIn))
	go func() {
		buf := make([]byte, 64)
		for {
			n, _, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			select {
			case <-stop:
				continue
			default:
			}
			conn.WriteTo(buf[:n], reply)
		}
	}()
}

// ============================================================
// Driver Tests
// ============================================================

func TestDriverConnectsAndLosesRobot(t *testing.T) {
	impl := newLoopImpl(t)
	store := dsconfig.NewStore(118)
	proto := protocol.New(impl, store, nil)

	stop := make(chan struct{})
	echoRobot(t, impl, stop)
	startDriver(t, New(proto, WithWatchdogTimeout(150*time.Millisecond)))

	waitFor(t, "robot connection", store.IsConnectedToRobot)
	if proto.ReceivedRobotPackets() == 0 || proto.SentRobotPackets() == 0 {
		t.Error("counters did not move")
	}

	close(stop)
	waitFor(t, "robot loss", func() bool { return !store.IsConnectedToRobot() })
}

func TestDriverRobotAddressOverride(t *testing.T) {
	impl := newLoopImpl(t)
	store := dsconfig.NewStore(118)
	impl.robotHost = "192.0.2.1"
	proto := protocol.New(impl, store, nil)

	echoRobot(t, impl, make(chan struct{}))
	startDriver(t, New(proto, WithRobotAddress("127.0.0.1")))

	waitFor(t, "robot connection", store.IsConnectedToRobot)
}

func TestDriverLearnsFMSAddress(t *testing.T) {
	impl := newLoopImpl(t)
	impl.fmsIn = freePort(t)
	impl.fmsOut = freePort(t)
	store := dsconfig.NewStore(118)
	proto := protocol.New(impl, store, nil)

	startDriver(t, New(proto))

	conn, err := net.Dial("udp", "127.0.0.1:"+strconv.Itoa(impl.fmsIn))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	waitFor(t, "FMS address", func() bool {
		conn.Write([]byte{0x01})
		return proto.FMSAddress() == "127.0.0.1"
	})
	if !store.IsConnectedToFMS() {
		t.Error("FMS should be connected")
	}
}

func TestDriverNetconsole(t *testing.T) {
	impl := newLoopImpl(t)
	impl.consoleIn = freePort(t)
	proto := protocol.New(impl, dsconfig.NewStore(118), nil)

	var mu sync.Mutex
	var messages []string
	startDriver(t, New(proto, WithConsoleHandler(func(msg string) {
		mu.Lock()
		defer mu.Unlock()
		messages = append(messages, msg)
	})))

	conn, err := net.Dial("udp", "127.0.0.1:"+strconv.Itoa(impl.consoleIn))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	waitFor(t, "netconsole message", func() bool {
		conn.Write([]byte("Robot program starting\r\n"))
		mu.Lock()
		defer mu.Unlock()
		return len(messages) > 0
	})
	mu.Lock()
	defer mu.Unlock()
	if messages[0] != "Robot program starting" {
		t.Errorf("message = %q", messages[0])
	}
}

type samplePublisher struct {
	mu      sync.Mutex
	samples []Sample
}

func (s *samplePublisher) Publish(sample Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
}

func (s *samplePublisher) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

func TestDriverPublishes(t *testing.T) {
	impl := newLoopImpl(t)
	proto := protocol.New(impl, dsconfig.NewStore(118), nil)
	pub := &samplePublisher{}

	startDriver(t, New(proto, WithPublisher(pub), WithPublishInterval(10*time.Millisecond)))
	waitFor(t, "samples", func() bool { return pub.count() >= 3 })
}

func TestDriverPortInUse(t *testing.T) {
	impl := newLoopImpl(t)
	busy, err := net.ListenPacket("udp", ":"+strconv.Itoa(impl.robotIn))
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()

	d := New(protocol.New(impl, dsconfig.NewStore(118), nil))
	if err := d.Run(context.Background()); err == nil {
		t.Error("Run should fail when an input port is taken")
	}
}

func TestTCPReceiver(t *testing.T) {
	port := freePort(t)
	r, err := listen(ds.SocketTCP, port)
	if err != nil {
		t.Skipf("tcp listen: %v", err)
	}
	defer r.Close()

	s := newSender(ds.SocketTCP, port)
	defer s.Close()
	if err := s.Send("127.0.0.1", []byte("ping")); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	data, from, err := r.Receive()
	if err != nil {
		t.Fatalf("Receive error: %v", err)
	}
	if string(data) != "ping" || from != "127.0.0.1" {
		t.Errorf("got %q from %q", data, from)
	}

	r.Close()
	if _, _, err := r.Receive(); err == nil {
		t.Error("Receive after Close should fail")
	}
}

func TestTrimMessage(t *testing.T) {
	tests := map[string]string{
		"hello\n":       "hello",
		"hello\r\n\x00": "hello",
		"":              "",
		"\n":            "",
	}
	for in, want := range tests {
		if got := trimMessage([]byte(in)); got != want {
			t.Errorf("trimMessage(%q) = %q; want %q", in, got, want)
		}
	}
}
