// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dsconfig

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/dslink/pkg/ds"
	"github.com/Thermoquad/dslink/pkg/protocol"
)

var _ protocol.Config = (*Store)(nil)

// ============================================================
// Store Tests
// ============================================================

func TestNewStoreDefaults(t *testing.T) {
	s := NewStore(118)
	if s.Team() != 118 {
		t.Errorf("Team = %d", s.Team())
	}
	if s.Alliance() != ds.AllianceRed || s.Position() != ds.Position1 {
		t.Errorf("station = %s %d", s.Alliance(), s.Position())
	}
	if s.IsEnabled() || s.IsConnectedToRobot() || s.IsConnectedToFMS() || s.IsConnectedToRadio() {
		t.Error("new store should be disabled and disconnected")
	}
}

func TestStatusListener(t *testing.T) {
	s := NewStore(118)

	var mu sync.Mutex
	var events []ds.Peer
	s.OnStatusChange(func(peer ds.Peer, status ds.CommStatus) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, peer)
	})

	s.UpdateRobotCommStatus(ds.CommsWorking)
	s.UpdateRobotCommStatus(ds.CommsWorking) // no transition
	s.UpdateFMSCommStatus(ds.CommsWorking)
	s.UpdateRobotCommStatus(ds.CommsFailing)

	if len(events) != 3 {
		t.Fatalf("expected 3 transitions, got %v", events)
	}
	if events[0] != ds.PeerRobot || events[1] != ds.PeerFMS || events[2] != ds.PeerRobot {
		t.Errorf("unexpected order %v", events)
	}
}

func TestRobotLossDisables(t *testing.T) {
	s := NewStore(118)
	s.UpdateRobotCommStatus(ds.CommsWorking)
	s.SetEnabled(true)
	s.UpdateRobotStatus(ds.RobotStatus{HasCode: true, Voltage: 12.4})

	s.UpdateRobotCommStatus(ds.CommsFailing)
	if s.IsEnabled() {
		t.Error("robot must be disabled when communications fail")
	}
	if s.Voltage() != 0 {
		t.Errorf("stale voltage %v should be cleared", s.Voltage())
	}
}

func TestEmergencyStopLatch(t *testing.T) {
	s := NewStore(118)
	s.SetEnabled(true)
	s.SetEmergencyStopped(true)
	if s.IsEnabled() {
		t.Error("e-stop must disable")
	}
	s.SetEnabled(true)
	if s.IsEnabled() {
		t.Error("cannot enable while e-stopped")
	}
	s.SetEmergencyStopped(false)
	s.SetEnabled(true)
	if !s.IsEnabled() {
		t.Error("should enable after clearing e-stop")
	}
}

func TestFMSLossDetaches(t *testing.T) {
	s := NewStore(118)
	s.UpdateFMSCommStatus(ds.CommsWorking)
	s.SetFMSAttached(true)
	s.UpdateFMSCommStatus(ds.CommsFailing)
	if s.IsFMSAttached() {
		t.Error("FMS should detach when communications fail")
	}
}

func TestSetPositionInvalid(t *testing.T) {
	s := NewStore(118)
	s.SetPosition(ds.Position3)
	s.SetPosition(9)
	if s.Position() != ds.Position1 {
		t.Errorf("invalid position should fall back to 1, got %d", s.Position())
	}
}

// ============================================================
// File Tests
// ============================================================

func TestParseFile(t *testing.T) {
	data := []byte(`
team: 118
alliance: Blue
position: 2
watchdog_ms: 250
robot_address: roborio-118-frc.local
feed:
  listen: ":8118"
  read_only: true
joystick:
  port: /dev/ttyACM0
`)
	f, err := ParseFile(data)
	if err != nil {
		t.Fatalf("ParseFile error: %v", err)
	}
	if f.Team != 118 || f.Position != 2 {
		t.Errorf("team=%d position=%d", f.Team, f.Position)
	}
	if f.Protocol != DefaultProtocol {
		t.Errorf("Protocol = %q; want default", f.Protocol)
	}
	if f.WatchdogTimeout() != 250*time.Millisecond {
		t.Errorf("WatchdogTimeout = %v", f.WatchdogTimeout())
	}
	if f.Joystick.Baud != DefaultJoystickBaud {
		t.Errorf("Joystick.Baud = %d", f.Joystick.Baud)
	}
	if f.Feed.Listen != ":8118" || !f.Feed.ReadOnly {
		t.Errorf("Feed = %+v", f.Feed)
	}

	s := NewStore(0)
	if err := f.Apply(s); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if s.Team() != 118 || s.Alliance() != ds.AllianceBlue || s.Position() != ds.Position2 {
		t.Errorf("store = %d %s %d", s.Team(), s.Alliance(), s.Position())
	}
}

func TestParseFileErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad alliance", "alliance: green\n"},
		{"bad position", "position: 4\n"},
		{"negative team", "team: -1\n"},
		{"zero watchdog", "watchdog_ms: 0\n"},
		{"unknown key", "colour: red\n"},
		{"not yaml", "team: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseFile([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dslink.yml")
	if err := os.WriteFile(path, []byte("team: 254\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if f.Team != 254 {
		t.Errorf("Team = %d", f.Team)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("missing file should fail")
	}
}
