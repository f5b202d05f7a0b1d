// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/Thermoquad/dslink/pkg/dsconfig"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

var (
	// Station flags
	configPath     string
	teamNumber     int
	allianceName   string
	positionNumber int
	protocolName   string

	// Logging flags
	logLevel string
	logJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "dslink",
	Short: "FRC Driver Station Link",
	Long: `dslink - A driver station communication core for FRC robots.

Talks to the robot controller, the radio and the Field Management System
using a season protocol (FRC 2015-2019 by default), tracks packet loss across
robot connections and publishes its state to monitors and session logs.

Station settings come from a YAML file (--config) and may be overridden:
  dslink run --config station.yaml --team 118 --alliance blue --position 2

Monitors connect to the websocket feed served by "dslink run". When the feed
requires a password it is read from the DSLINK_PASSWORD environment variable,
or prompted interactively if not set.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
}

func init() {
	// Station flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML station configuration file")
	rootCmd.PersistentFlags().IntVarP(&teamNumber, "team", "t", 0, "Team number")
	rootCmd.PersistentFlags().StringVarP(&allianceName, "alliance", "a", "red", "Alliance (red or blue)")
	rootCmd.PersistentFlags().IntVarP(&positionNumber, "position", "p", 1, "Station position (1-3)")
	rootCmd.PersistentFlags().StringVar(&protocolName, "protocol", dsconfig.DefaultProtocol, "Communication protocol")

	// Logging flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Log as JSON")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger from the logging flags
func newLogger() (hclog.Logger, error) {
	level := hclog.LevelFromString(logLevel)
	if level == hclog.NoLevel {
		return nil, fmt.Errorf("unknown log level %q", logLevel)
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       "dslink",
		Level:      level,
		Output:     os.Stderr,
		JSONFormat: logJSON,
	}), nil
}

// loadConfig reads --config when given and applies station flag overrides
func loadConfig(cmd *cobra.Command) (*dsconfig.File, error) {
	cfg := dsconfig.DefaultFile()
	if configPath != "" {
		var err error
		cfg, err = dsconfig.LoadFile(configPath)
		if err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("team") {
		cfg.Team = teamNumber
	}
	if flags.Changed("alliance") {
		cfg.Alliance = allianceName
	}
	if flags.Changed("position") {
		cfg.Position = positionNumber
	}
	if flags.Changed("protocol") {
		cfg.Protocol = protocolName
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
