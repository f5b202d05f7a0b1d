// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Thermoquad/dslink/pkg/protocol/frc2015"
	"github.com/spf13/cobra"
)

var decodeKind string

var decodeCmd = &cobra.Command{
	Use:   "decode [hex...]",
	Short: "Decode FRC 2015-2019 packets from hex",
	Long: `Decode FRC 2015-2019 packets and display them in human-readable format.

Each argument is one packet in hex (spaces and colons are ignored). With no
arguments, packets are read from standard input, one per line, which makes
it easy to paste captures:

  dslink decode --kind status 00 01 01 00 31 0c 80 00
  tshark -T fields -e data ... | dslink decode --kind command

Kinds: command (DS to robot), status (robot to DS), fms-status (DS to FMS),
fms-command (FMS to DS).`,
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().StringVarP(&decodeKind, "kind", "k", string(frc2015.KindCommand), "Packet kind")
}

// parseHex reads a packet written as hex with optional separators
func parseHex(s string) ([]byte, error) {
	clean := strings.NewReplacer(" ", "", ":", "", "\t", "", "0x", "").Replace(s)
	data, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return data, nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	kind := frc2015.PacketKind(decodeKind)
	out := cmd.OutOrStdout()

	if len(args) > 0 {
		return decodeLine(out, kind, strings.Join(args, ""))
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := decodeLine(out, kind, line); err != nil {
			fmt.Fprintf(out, "[ERROR] %v\n", err)
		}
	}
	return scanner.Err()
}

func decodeLine(out io.Writer, kind frc2015.PacketKind, line string) error {
	data, err := parseHex(line)
	if err != nil {
		return err
	}
	text, err := frc2015.FormatPacket(kind, data)
	if err != nil {
		return err
	}
	fmt.Fprint(out, text)
	return nil
}
