// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/dslink/pkg/robotsim"
	"github.com/spf13/cobra"
)

var (
	simVoltage float64
	simReboot  time.Duration
	simRestart time.Duration
)

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Run a simulated robot controller",
	Long: `Run a simulated roboRIO that answers FRC 2015-2019 driver station packets.

The simulator listens on the robot's command port, replies to the sending
host on the driver station's status port and honours reboot and code restart
requests. Point "dslink run --robot-address 127.0.0.1" at it to exercise the
driver station without hardware.`,
	RunE: runSim,
}

func init() {
	rootCmd.AddCommand(simCmd)
	simCmd.Flags().Float64Var(&simVoltage, "voltage", robotsim.DefaultVoltage, "Resting battery voltage")
	simCmd.Flags().DurationVar(&simReboot, "reboot-time", robotsim.DefaultRebootTime, "Silence after a reboot request")
	simCmd.Flags().DurationVar(&simRestart, "restart-time", robotsim.DefaultRestartTime, "No-code period after a restart request")
}

func runSim(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	robot := robotsim.New(
		robotsim.WithLogger(logger),
		robotsim.WithVoltage(simVoltage),
		robotsim.WithRebootTime(simReboot),
		robotsim.WithRestartTime(simRestart),
	)
	return robot.Run(ctx)
}
