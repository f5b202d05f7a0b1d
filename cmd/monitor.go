// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/dslink/pkg/statusfeed"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	monitorURL         string
	monitorUsername    string
	monitorNoSSLVerify bool
	monitorWatchOnly   bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch a running driver station",
	Long: `Connect to the status feed of "dslink run" and display it in a terminal UI.

Shows the station, link status for the robot, radio and FMS, battery voltage
against the protocol's nominal voltage, packet loss for the current robot
connection and a log of link transitions.

Keys send operator commands to the station: e enable, d disable, space
e-stop, c clear e-stop, r restart robot code, R reboot the robot.
--watch-only turns them off.

For authenticated feeds the password is read from the DSLINK_PASSWORD
environment variable, or prompted interactively if not set.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVarP(&monitorURL, "url", "u", "ws://localhost:8118"+statusfeed.Path, "Feed URL (ws:// or wss://)")
	monitorCmd.Flags().StringVar(&monitorUsername, "username", "", "Username for HTTP Basic auth")
	monitorCmd.Flags().BoolVar(&monitorNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
	monitorCmd.Flags().BoolVar(&monitorWatchOnly, "watch-only", false, "Do not send operator commands")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	password, err := feedPassword(monitorUsername, "")
	if err != nil {
		return err
	}
	opts := statusfeed.DialOptions{
		Username:      monitorUsername,
		Password:      password,
		SkipSSLVerify: monitorNoSSLVerify,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	client, err := statusfeed.Dial(ctx, monitorURL, opts)
	if err != nil {
		return err
	}
	defer client.Close()

	var send actionSender
	if !monitorWatchOnly {
		send = client.Send
	}
	p := tea.NewProgram(initialMonitorModel(monitorURL, send), tea.WithAltScreen())

	go func() {
		for {
			snap, err := client.Next()
			if err != nil {
				if errors.Is(err, statusfeed.ErrConnectionClosed) {
					p.Send(feedClosedMsg{err: err})
					return
				}
				p.Send(feedErrorMsg{err: err})
				continue
			}
			p.Send(snapshotMsg(snap))
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
