// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package robotsim

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/Thermoquad/dslink/pkg/ds"
	"github.com/Thermoquad/dslink/pkg/dsconfig"
	"github.com/Thermoquad/dslink/pkg/protocol"
	"github.com/Thermoquad/dslink/pkg/protocol/frc2015"
)

func command(c frc2015.Command) []byte {
	return frc2015.EncodeCommand(c, frc2015.DefaultLimits)
}

// answer sends c to r at now and decodes the reply
func answer(t *testing.T, r *Robot, c frc2015.Command, now time.Time) frc2015.Status {
	t.Helper()
	data, ok := r.Handle(command(c), now)
	if !ok {
		t.Fatal("robot stayed silent")
	}
	s, err := frc2015.DecodeStatus(data)
	if err != nil {
		t.Fatalf("DecodeStatus error: %v", err)
	}
	return s
}

// ============================================================
// Handle Tests
// ============================================================

func TestHandleEchoesControl(t *testing.T) {
	r := New()
	now := time.Now()

	s := answer(t, r, frc2015.Command{
		Control: frc2015.Control{Mode: ds.ModeAutonomous, Enabled: true},
		Request: frc2015.RequestNormal,
	}, now)

	if s.Control.Mode != ds.ModeAutonomous || !s.Control.Enabled {
		t.Errorf("Control = %+v", s.Control)
	}
	if !s.HasCode() || s.Trace&frc2015.StatusAuto == 0 || s.Trace&frc2015.StatusDisabled != 0 {
		t.Errorf("Trace = 0x%02X", s.Trace)
	}
	if s.Sequence != 1 {
		t.Errorf("Sequence = %d", s.Sequence)
	}
	if len(s.Blocks) == 0 {
		t.Error("first status should carry diagnostics")
	}
}

func TestHandleIgnoresGarbage(t *testing.T) {
	r := New()
	if _, ok := r.Handle([]byte{1, 2}, time.Now()); ok {
		t.Error("garbage answered")
	}
	if r.State().Commands != 0 {
		t.Error("garbage counted as a command")
	}
}

func TestHandleRequestsDateUntilSent(t *testing.T) {
	r := New()
	now := time.Now()

	s := answer(t, r, frc2015.Command{}, now)
	if !s.RequestsTime() {
		t.Fatal("robot should ask for the date")
	}

	date := time.Date(2019, time.March, 1, 12, 0, 0, 0, time.UTC)
	s = answer(t, r, frc2015.Command{Date: date, Timezone: "UTC"}, now)
	if s.RequestsTime() {
		t.Error("robot should stop asking once it has the date")
	}
	if st := r.State(); !st.HaveDate || !st.Date.Equal(date) {
		t.Errorf("State = %+v", st)
	}
}

func TestHandleReboot(t *testing.T) {
	r := New(WithRebootTime(time.Second), WithRestartTime(time.Second))
	now := time.Now()

	if _, ok := r.Handle(command(frc2015.Command{Request: frc2015.RequestReboot}), now); ok {
		t.Fatal("rebooting robot answered")
	}
	if _, ok := r.Handle(command(frc2015.Command{}), now.Add(500*time.Millisecond)); ok {
		t.Error("robot answered while rebooting")
	}

	s := answer(t, r, frc2015.Command{}, now.Add(1500*time.Millisecond))
	if s.HasCode() {
		t.Error("code should still be starting after reboot")
	}
	s = answer(t, r, frc2015.Command{}, now.Add(2500*time.Millisecond))
	if !s.HasCode() {
		t.Error("code should be running again")
	}
}

func TestHandleRestartCode(t *testing.T) {
	r := New(WithRestartTime(time.Second))
	now := time.Now()

	s := answer(t, r, frc2015.Command{Request: frc2015.RequestRestartCode}, now)
	if s.HasCode() {
		t.Error("code should be restarting")
	}
	s = answer(t, r, frc2015.Command{}, now.Add(2*time.Second))
	if !s.HasCode() {
		t.Error("code should be back")
	}
}

func TestBatterySag(t *testing.T) {
	r := New(WithVoltage(12))
	now := time.Now()
	sticks := []ds.Joystick{{Axes: []float64{1, -1}}}

	idle := answer(t, r, frc2015.Command{Joysticks: sticks}, now)
	driving := answer(t, r, frc2015.Command{
		Control:   frc2015.Control{Enabled: true},
		Joysticks: sticks,
	}, now)

	if idle.Voltage != 12 {
		t.Errorf("idle voltage = %v", idle.Voltage)
	}
	if driving.Voltage >= idle.Voltage {
		t.Errorf("driving voltage %v should sag below %v", driving.Voltage, idle.Voltage)
	}
}

// ============================================================
// Protocol Integration Tests
// ============================================================

// TestDriverStationConversation runs the protocol against the simulator
// without sockets
func TestDriverStationConversation(t *testing.T) {
	store := dsconfig.NewStore(118)
	proto := protocol.New(frc2015.New(), store, nil)
	robot := New()
	now := time.Now()

	exchange := func() {
		reply, ok := robot.Handle(proto.GenerateRobotPacket(), now)
		if ok {
			proto.ReadRobotPacket(reply)
		}
	}

	exchange()
	if !store.IsConnectedToRobot() {
		t.Fatal("robot should connect after one exchange")
	}
	if d := store.Diagnostics(); d.CPUUsage != 27.5 || d.RAMFree != 128<<20 {
		t.Errorf("Diagnostics = %+v", d)
	}

	exchange()
	if !robot.State().HaveDate {
		t.Error("driver station should answer the time request")
	}

	proto.RebootRobot()
	exchange()
	if robot.State().Last.Request != frc2015.RequestReboot {
		t.Errorf("robot saw request 0x%02X", robot.State().Last.Request)
	}
	exchange()
	if proto.PacketLoss() == 0 {
		t.Error("silent reboot should show as packet loss")
	}
}

// ============================================================
// Network Tests
// ============================================================

func freePort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).Port
}

func TestRunAnswersOverUDP(t *testing.T) {
	ports := Ports{Listen: freePort(t), Netconsole: freePort(t)}
	station, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer station.Close()
	ports.Reply = station.LocalAddr().(*net.UDPAddr).Port

	robot := New(WithPorts(ports))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- robot.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	target, _ := net.ResolveUDPAddr("udp", "127.0.0.1:"+strconv.Itoa(ports.Listen))
	buf := make([]byte, 256)
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		station.WriteTo(command(frc2015.Command{Request: frc2015.RequestNormal}), target)
		station.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
		n, _, err := station.ReadFrom(buf)
		if err != nil {
			continue
		}
		if _, err := frc2015.DecodeStatus(buf[:n]); err != nil {
			t.Fatalf("bad reply: %v", err)
		}
		return
	}
	t.Fatal("no reply from simulator")
}

func TestPrint(t *testing.T) {
	console, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer console.Close()

	robot := New(WithPorts(Ports{Netconsole: console.LocalAddr().(*net.UDPAddr).Port}))
	defer robot.closeConsole()
	if err := robot.Print("127.0.0.1", "hello from the robot"); err != nil {
		t.Fatalf("Print error: %v", err)
	}

	console.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, _, err := console.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom error: %v", err)
	}
	if string(buf[:n]) != "hello from the robot\n" {
		t.Errorf("message = %q", buf[:n])
	}
}
