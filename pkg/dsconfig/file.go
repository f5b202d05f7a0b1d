// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dsconfig

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Thermoquad/dslink/pkg/ds"
	"gopkg.in/yaml.v2"
)

// Defaults for values the file leaves out
const (
	DefaultProtocol        = "frc2015"
	DefaultWatchdogTimeout = time.Second
	DefaultJoystickBaud    = 115200
)

// FeedConfig configures the websocket status feed
type FeedConfig struct {
	Listen   string `yaml:"listen"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	ReadOnly bool   `yaml:"read_only"`
}

// JoystickConfig configures the serial joystick bridge
type JoystickConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// File is the on-disk driver station configuration
//
//	team: 118
//	alliance: red
//	position: 2
//	protocol: frc2015
//	watchdog_ms: 1000
//	robot_address: roborio-118-frc.local
//	record: session.db
//	feed:
//	  listen: :8118
//	  read_only: false
//	joystick:
//	  port: /dev/ttyACM0
type File struct {
	Team         int            `yaml:"team"`
	Alliance     string         `yaml:"alliance"`
	Position     int            `yaml:"position"`
	Protocol     string         `yaml:"protocol"`
	WatchdogMs   int            `yaml:"watchdog_ms"`
	RobotAddress string         `yaml:"robot_address"`
	Record       string         `yaml:"record"`
	Feed         FeedConfig     `yaml:"feed"`
	Joystick     JoystickConfig `yaml:"joystick"`
}

// DefaultFile returns the configuration used when no file is given
func DefaultFile() *File {
	return &File{
		Alliance:   "red",
		Position:   1,
		Protocol:   DefaultProtocol,
		WatchdogMs: int(DefaultWatchdogTimeout / time.Millisecond),
		Joystick:   JoystickConfig{Baud: DefaultJoystickBaud},
	}
}

// LoadFile reads a YAML configuration, filling unset values with defaults
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return ParseFile(data)
}

// ParseFile decodes YAML configuration bytes
func ParseFile(data []byte) (*File, error) {
	f := DefaultFile()
	if err := yaml.UnmarshalStrict(data, f); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks value ranges
func (f *File) Validate() error {
	if f.Team < 0 || f.Team > 25599 {
		return fmt.Errorf("team number out of range: %d", f.Team)
	}
	if _, err := ParseAlliance(f.Alliance); err != nil {
		return err
	}
	if !ds.Position(f.Position).Valid() {
		return fmt.Errorf("position out of range: %d (use 1-3)", f.Position)
	}
	if f.WatchdogMs <= 0 {
		return fmt.Errorf("watchdog_ms must be positive, got %d", f.WatchdogMs)
	}
	return nil
}

// WatchdogTimeout returns the watchdog window as a duration
func (f *File) WatchdogTimeout() time.Duration {
	return time.Duration(f.WatchdogMs) * time.Millisecond
}

// Apply copies the team and station into the store
func (f *File) Apply(s *Store) error {
	alliance, err := ParseAlliance(f.Alliance)
	if err != nil {
		return err
	}
	s.SetTeam(f.Team)
	s.SetAlliance(alliance)
	s.SetPosition(ds.Position(f.Position))
	return nil
}

// ParseAlliance accepts "red" or "blue" in any case
func ParseAlliance(name string) (ds.Alliance, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "red", "":
		return ds.AllianceRed, nil
	case "blue":
		return ds.AllianceBlue, nil
	default:
		return ds.AllianceRed, fmt.Errorf("unknown alliance %q (use red or blue)", name)
	}
}
