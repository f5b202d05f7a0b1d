// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// dslink - FRC Driver Station Link
//
// A driver station communication core that exchanges control and status
// packets with the robot, the radio and the Field Management System.

package main

import (
	"os"

	"github.com/Thermoquad/dslink/cmd"
	_ "github.com/Thermoquad/dslink/pkg/protocol/frc2015"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
