// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/dslink/pkg/joystick"
	"github.com/Thermoquad/dslink/pkg/protocol"
	"github.com/spf13/cobra"
)

var protocolsCmd = &cobra.Command{
	Use:   "protocols",
	Short: "List available protocols and their ports",
	RunE:  runProtocols,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports for the joystick bridge",
	RunE:  runPorts,
}

func init() {
	rootCmd.AddCommand(protocolsCmd)
	rootCmd.AddCommand(portsCmd)
}

func runProtocols(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, name := range protocol.Names() {
		impl, err := protocol.Lookup(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s (%s)\n", name, impl.Name())
		fmt.Fprintf(out, "  Robot: in %d, out %d, %s @ %d Hz\n",
			impl.RobotInputPort(), impl.RobotOutputPort(), impl.RobotSocketType(), impl.RobotFrequency())
		fmt.Fprintf(out, "  FMS:   in %d, out %d, %s @ %d Hz\n",
			impl.FMSInputPort(), impl.FMSOutputPort(), impl.FMSSocketType(), impl.FMSFrequency())
		fmt.Fprintf(out, "  Radio: in %d, out %d, %s @ %d Hz\n",
			impl.RadioInputPort(), impl.RadioOutputPort(), impl.RadioSocketType(), impl.RadioFrequency())
		fmt.Fprintf(out, "  Netconsole: in %d, out %d\n", impl.NetconsoleInputPort(), impl.NetconsoleOutputPort())
		fmt.Fprintf(out, "  Joysticks: %d (axes %d, buttons %d, POVs %d)\n",
			impl.MaxJoystickCount(), impl.MaxAxisCount(), impl.MaxButtonCount(), impl.MaxPOVCount())
	}
	return nil
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := joystick.ListPorts()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(ports) == 0 {
		fmt.Fprintln(out, "No serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Fprintln(out, p)
	}
	return nil
}
