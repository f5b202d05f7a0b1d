// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/Thermoquad/dslink/pkg/ds"
	"github.com/Thermoquad/dslink/pkg/dsconfig"
	"github.com/Thermoquad/dslink/pkg/joystick"
	"github.com/Thermoquad/dslink/pkg/protocol"
	"github.com/Thermoquad/dslink/pkg/sessionlog"
	"github.com/Thermoquad/dslink/pkg/station"
	"github.com/Thermoquad/dslink/pkg/statusfeed"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

var (
	runFeedListen   string
	runFeedUsername string
	runFeedReadOnly bool
	runRecord       string
	runJoystickPort string
	runJoystickBaud int
	runRobotAddress string
	runMode         string
	runEnable       bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the driver station",
	Long: `Run the driver station until interrupted.

Opens the protocol's input ports, sends control packets to the robot, radio
and FMS at the protocol's rates and watches each link with a watchdog. Robot
netconsole output is written to the log.

Optional services:
  --feed :8118            serve the websocket status feed for "dslink monitor";
                          monitors can enable, disable, e-stop, reboot and
                          restart code unless --feed-read-only is set
  --record session.db     record link events and samples (SQLite path or
                          postgres:// URL)
  --joystick /dev/ttyACM0 read controller frames from a serial bridge

--enable starts the robot enabled. Without it the robot stays disabled.`,
	RunE: runStation,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runFeedListen, "feed", "", "Status feed listen address")
	runCmd.Flags().StringVar(&runFeedUsername, "feed-username", "", "Require HTTP Basic auth on the feed")
	runCmd.Flags().BoolVar(&runFeedReadOnly, "feed-read-only", false, "Ignore commands from feed monitors")
	runCmd.Flags().StringVar(&runRecord, "record", "", "Session log target (SQLite path or postgres:// URL)")
	runCmd.Flags().StringVar(&runJoystickPort, "joystick", "", "Joystick bridge serial port")
	runCmd.Flags().IntVar(&runJoystickBaud, "joystick-baud", dsconfig.DefaultJoystickBaud, "Joystick bridge baud rate")
	runCmd.Flags().StringVar(&runRobotAddress, "robot-address", "", "Override the robot address")
	runCmd.Flags().StringVarP(&runMode, "mode", "m", "teleop", "Control mode (teleop, auto, test)")
	runCmd.Flags().BoolVar(&runEnable, "enable", false, "Start with the robot enabled")
}

// parseMode accepts the short and long control mode names
func parseMode(name string) (ds.ControlMode, error) {
	switch strings.ToLower(name) {
	case "teleop", "teleoperated":
		return ds.ModeTeleoperated, nil
	case "auto", "autonomous":
		return ds.ModeAutonomous, nil
	case "test":
		return ds.ModeTest, nil
	default:
		return ds.ModeTeleoperated, fmt.Errorf("unknown control mode %q (use teleop, auto or test)", name)
	}
}

func runStation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	mode, err := parseMode(runMode)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("feed") {
		cfg.Feed.Listen = runFeedListen
	}
	if flags.Changed("feed-username") {
		cfg.Feed.Username = runFeedUsername
	}
	if flags.Changed("feed-read-only") {
		cfg.Feed.ReadOnly = runFeedReadOnly
	}
	if flags.Changed("record") {
		cfg.Record = runRecord
	}
	if flags.Changed("joystick") {
		cfg.Joystick.Port = runJoystickPort
	}
	if flags.Changed("joystick-baud") {
		cfg.Joystick.Baud = runJoystickBaud
	}
	if flags.Changed("robot-address") {
		cfg.RobotAddress = runRobotAddress
	}

	impl, err := protocol.Lookup(cfg.Protocol)
	if err != nil {
		return err
	}

	store := dsconfig.NewStore(cfg.Team)
	if err := cfg.Apply(store); err != nil {
		return err
	}
	store.SetControlMode(mode)

	sticks := joystick.NewSet(impl.MaxJoystickCount())
	proto := protocol.New(impl, store, sticks, protocol.WithLogger(logger))

	opts := []station.Option{
		station.WithLogger(logger),
		station.WithWatchdogTimeout(cfg.WatchdogTimeout()),
	}
	if cfg.RobotAddress != "" {
		opts = append(opts, station.WithRobotAddress(cfg.RobotAddress))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		wg   sync.WaitGroup
		errs = make(chan error, 2)
	)
	background := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				errs <- fmt.Errorf("%s: %w", name, err)
				stop()
			}
		}()
	}

	if cfg.Record != "" {
		recorder, err := sessionlog.Open(cfg.Record, sessionlog.WithLogger(logger))
		if err != nil {
			return err
		}
		defer recorder.Close()
		store.OnStatusChange(recorder.RecordStatus)
		opts = append(opts, station.WithPublisher(recorder))
	}

	if cfg.Feed.Listen != "" {
		feed, err := newFeedServer(cfg, proto, store, logger)
		if err != nil {
			return err
		}
		opts = append(opts, station.WithPublisher(feed))
		background("status feed", func() error {
			return feed.ListenAndServe(ctx, cfg.Feed.Listen)
		})
	}

	if cfg.Joystick.Port != "" {
		port, err := joystick.OpenSerial(cfg.Joystick.Port, cfg.Joystick.Baud)
		if err != nil {
			return err
		}
		logger.Info("joystick bridge opened", "port", cfg.Joystick.Port, "baud", cfg.Joystick.Baud)
		bridge := joystick.NewFeed(sticks, logger)
		background("joystick bridge", func() error {
			return bridge.Run(ctx, port)
		})
	}

	if runEnable {
		logger.Warn("robot will be enabled once connected", "mode", mode.String())
		store.SetEnabled(true)
	}

	logger.Info("station configured",
		"team", cfg.Team,
		"alliance", store.Alliance().String(),
		"position", int(store.Position()),
		"protocol", proto.Name(),
		"robot", proto.RobotAddress())

	driverErr := station.New(proto, opts...).Run(ctx)
	stop()
	wg.Wait()
	close(errs)

	var all []error
	if driverErr != nil {
		all = append(all, driverErr)
	}
	for err := range errs {
		all = append(all, err)
	}
	return errors.Join(all...)
}

func newFeedServer(cfg *dsconfig.File, proto *protocol.Protocol, store *dsconfig.Store, logger hclog.Logger) (*statusfeed.Server, error) {
	opts := []statusfeed.Option{statusfeed.WithLogger(logger)}
	if cfg.Feed.Username != "" {
		password, err := feedPassword(cfg.Feed.Username, cfg.Feed.Password)
		if err != nil {
			return nil, err
		}
		opts = append(opts, statusfeed.WithBasicAuth(cfg.Feed.Username, password))
	}
	if cfg.Feed.ReadOnly {
		opts = append(opts, statusfeed.WithReadOnly())
	}
	return statusfeed.NewServer(proto, store, opts...), nil
}
