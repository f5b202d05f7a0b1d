// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package statusfeed

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Action is an operator request a monitor sends back up the feed
type Action string

// Actions
const (
	ActionEnable      Action = "enable"
	ActionDisable     Action = "disable"
	ActionEStop       Action = "estop"
	ActionClearEStop  Action = "clear-estop"
	ActionReboot      Action = "reboot"
	ActionRestartCode Action = "restart-code"
)

// Actions lists every action the server accepts
var Actions = []Action{
	ActionEnable,
	ActionDisable,
	ActionEStop,
	ActionClearEStop,
	ActionReboot,
	ActionRestartCode,
}

// ErrUnknownAction is returned for an action the server does not accept
var ErrUnknownAction = errors.New("unknown action")

// Valid reports whether a is one of Actions
func (a Action) Valid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// Command is one monitor to station message
type Command struct {
	Action Action `cbor:"1,keyasint"`
}

// Encode returns the wire bytes for c
func (c Command) Encode() ([]byte, error) {
	if !c.Action.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, c.Action)
	}
	data, err := cbor.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode command: %w", err)
	}
	return data, nil
}

// DecodeCommand parses a command message
func DecodeCommand(data []byte) (Command, error) {
	var c Command
	if err := cbor.Unmarshal(data, &c); err != nil {
		return Command{}, fmt.Errorf("failed to decode command: %w", err)
	}
	if !c.Action.Valid() {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownAction, c.Action)
	}
	return c, nil
}
