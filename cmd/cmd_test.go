// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/dslink/pkg/ds"
	"github.com/Thermoquad/dslink/pkg/protocol/frc2015"
	"github.com/Thermoquad/dslink/pkg/statusfeed"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
)

// ============================================================
// Flag and Config Tests
// ============================================================

func resetRootFlags(t *testing.T) {
	t.Cleanup(func() {
		rootCmd.Flags().VisitAll(func(f *pflag.Flag) {
			f.Value.Set(f.DefValue)
			f.Changed = false
		})
	})
}

func TestLoadConfigOverrides(t *testing.T) {
	resetRootFlags(t)
	path := filepath.Join(t.TempDir(), "station.yaml")
	if err := os.WriteFile(path, []byte("team: 118\nalliance: red\nposition: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := rootCmd.ParseFlags([]string{"--config", path, "--alliance", "blue", "--position", "3"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(rootCmd)
	if err != nil {
		t.Fatalf("loadConfig error: %v", err)
	}
	if cfg.Team != 118 || cfg.Alliance != "blue" || cfg.Position != 3 {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.Protocol != frc2015.Name {
		t.Errorf("Protocol = %q", cfg.Protocol)
	}
}

func TestLoadConfigRejectsBadPosition(t *testing.T) {
	resetRootFlags(t)
	if err := rootCmd.ParseFlags([]string{"--position", "4"}); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(rootCmd); err == nil {
		t.Error("position 4 accepted")
	}
}

func TestNewLoggerLevels(t *testing.T) {
	defer func(level string) { logLevel = level }(logLevel)

	logLevel = "debug"
	if _, err := newLogger(); err != nil {
		t.Errorf("debug rejected: %v", err)
	}
	logLevel = "loud"
	if _, err := newLogger(); err == nil {
		t.Error("unknown level accepted")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		name string
		want ds.ControlMode
	}{
		{"teleop", ds.ModeTeleoperated},
		{"Autonomous", ds.ModeAutonomous},
		{"auto", ds.ModeAutonomous},
		{"TEST", ds.ModeTest},
	}
	for _, tt := range tests {
		got, err := parseMode(tt.name)
		if err != nil || got != tt.want {
			t.Errorf("parseMode(%q) = %v, %v", tt.name, got, err)
		}
	}
	if _, err := parseMode("practice"); err == nil {
		t.Error("unknown mode accepted")
	}
}

// ============================================================
// Decode Tests
// ============================================================

func TestParseHex(t *testing.T) {
	tests := []struct {
		input string
		want  []byte
	}{
		{"0001", []byte{0x00, 0x01}},
		{"00 01 ff", []byte{0x00, 0x01, 0xFF}},
		{"de:ad:be:ef", []byte{0xDE, 0xAD, 0xBE, 0xEF}},
		{"0x12 0x34", []byte{0x12, 0x34}},
	}
	for _, tt := range tests {
		got, err := parseHex(tt.input)
		if err != nil || !bytes.Equal(got, tt.want) {
			t.Errorf("parseHex(%q) = % X, %v", tt.input, got, err)
		}
	}
	if _, err := parseHex("0g"); err == nil {
		t.Error("bad hex accepted")
	}
}

func TestDecodeLine(t *testing.T) {
	var out bytes.Buffer
	if err := decodeLine(&out, frc2015.KindStatus, "00 01 01 00 31 0c 80 00"); err != nil {
		t.Fatalf("decodeLine error: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "STATUS seq=1") || !strings.Contains(text, "12.50 V") {
		t.Errorf("output = %q", text)
	}

	if err := decodeLine(&out, frc2015.KindStatus, "0001"); err == nil {
		t.Error("short packet accepted")
	}
	if err := decodeLine(&out, "bogus", "0001"); err == nil {
		t.Error("unknown kind accepted")
	}
}

// ============================================================
// Monitor Tests
// ============================================================

func TestMonitorTransitions(t *testing.T) {
	m := initialMonitorModel("ws://example/feed", nil)
	now := time.Now()

	m.applySnapshot(statusfeed.Snapshot{TimeMs: 0, Team: 118, Protocol: "FRC 2015-2019"}, now)
	m.applySnapshot(statusfeed.Snapshot{TimeMs: 1000, Team: 118, RobotConnected: true, HasCode: true, SentRobot: 50}, now)
	m.applySnapshot(statusfeed.Snapshot{TimeMs: 2000, Team: 118, EStopped: true, SentRobot: 100}, now)

	var messages []string
	for _, e := range m.eventLog {
		messages = append(messages, e.message)
	}
	joined := strings.Join(messages, "|")
	for _, want := range []string{"Connected to team 118", "Robot connected", "Robot lost", "EMERGENCY STOP"} {
		if !strings.Contains(joined, want) {
			t.Errorf("events %q missing %q", joined, want)
		}
	}
	if m.robotRate != 50 {
		t.Errorf("robotRate = %v; want 50", m.robotRate)
	}

	view := m.View()
	if !strings.Contains(view, "E-STOPPED") {
		t.Errorf("view missing e-stop state:\n%s", view)
	}
}

func keyPress(key string) tea.KeyMsg {
	if key == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
}

func TestMonitorActionKeys(t *testing.T) {
	tests := []struct {
		key  string
		want statusfeed.Action
	}{
		{"e", statusfeed.ActionEnable},
		{"d", statusfeed.ActionDisable},
		{" ", statusfeed.ActionEStop},
		{"c", statusfeed.ActionClearEStop},
		{"r", statusfeed.ActionRestartCode},
		{"R", statusfeed.ActionReboot},
	}

	for _, tt := range tests {
		var sent []statusfeed.Action
		m := initialMonitorModel("", func(a statusfeed.Action) error {
			sent = append(sent, a)
			return nil
		})

		model, cmd := m.Update(keyPress(tt.key))
		if cmd == nil {
			t.Fatalf("key %q produced no command", tt.key)
		}
		msg := cmd()
		if len(sent) != 1 || sent[0] != tt.want {
			t.Errorf("key %q sent %v; want %s", tt.key, sent, tt.want)
		}

		model, _ = model.Update(msg)
		log := model.(monitorModel).eventLog
		if len(log) != 1 || log[0].message != "Sent "+string(tt.want) || log[0].isError {
			t.Errorf("key %q log = %+v", tt.key, log)
		}
	}
}

func TestMonitorActionFailure(t *testing.T) {
	m := initialMonitorModel("", func(statusfeed.Action) error {
		return statusfeed.ErrConnectionClosed
	})

	model, cmd := m.Update(keyPress("R"))
	model, _ = model.Update(cmd())
	log := model.(monitorModel).eventLog
	if len(log) != 1 || !log[0].isError || !strings.Contains(log[0].message, "Failed to send reboot") {
		t.Errorf("log = %+v", log)
	}
}

func TestMonitorWatchOnly(t *testing.T) {
	m := initialMonitorModel("", nil)
	if _, cmd := m.Update(keyPress("e")); cmd != nil {
		t.Error("watch-only monitor produced a command")
	}

	sent := 0
	m = initialMonitorModel("", func(statusfeed.Action) error { sent++; return nil })
	m.closed = true
	if _, cmd := m.Update(keyPress("e")); cmd != nil {
		t.Error("closed feed produced a command")
	}
	if sent != 0 {
		t.Errorf("sent %d commands", sent)
	}
}

func TestMonitorLogLimit(t *testing.T) {
	m := initialMonitorModel("", nil)
	for i := 0; i < m.maxLogEntries+10; i++ {
		m.addLogEntry("event", false)
	}
	if len(m.eventLog) != m.maxLogEntries {
		t.Errorf("log length = %d", len(m.eventLog))
	}
}

// ============================================================
// Password Tests
// ============================================================

func TestFeedPassword(t *testing.T) {
	t.Setenv(PasswordEnv, "from-env")

	tests := []struct {
		username, configured, want string
	}{
		{"", "ignored", ""},
		{"drive", "configured", "configured"},
		{"drive", "", "from-env"},
	}
	for _, tt := range tests {
		got, err := feedPassword(tt.username, tt.configured)
		if err != nil || got != tt.want {
			t.Errorf("feedPassword(%q, %q) = %q, %v; want %q", tt.username, tt.configured, got, err, tt.want)
		}
	}
}

func TestPromptPasswordPipe(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	w.WriteString("team118  \n")
	w.Close()

	var out bytes.Buffer
	got, err := promptPassword(r, &out, "Password: ")
	if err != nil {
		t.Fatalf("promptPassword error: %v", err)
	}
	if got != "team118" {
		t.Errorf("password = %q", got)
	}
	if !strings.HasPrefix(out.String(), "Password: ") {
		t.Errorf("prompt = %q", out.String())
	}
}

func TestPromptPasswordEmptyInput(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	w.Close()

	if _, err := promptPassword(r, &bytes.Buffer{}, "Password: "); err == nil {
		t.Error("empty input accepted")
	}
}

func TestVoltageFraction(t *testing.T) {
	tests := []struct {
		voltage, nominal, want float64
	}{
		{12.8, 12.8, 1},
		{6.4, 12.8, 0.5},
		{14, 12.8, 1},
		{-1, 12.8, 0},
		{12, 0, 0},
	}
	for _, tt := range tests {
		if got := voltageFraction(tt.voltage, tt.nominal); got != tt.want {
			t.Errorf("voltageFraction(%v, %v) = %v; want %v", tt.voltage, tt.nominal, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[uint32]string{
		512:       "512 B",
		1536:      "1.5 KiB",
		128 << 20: "128.0 MiB",
	}
	for n, want := range tests {
		if got := formatBytes(n); got != want {
			t.Errorf("formatBytes(%d) = %q; want %q", n, got, want)
		}
	}
}
