// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package joystick keeps the joystick snapshot sent to the robot and feeds
// it from a USB-serial controller bridge.
package joystick

import (
	"sync"

	"github.com/Thermoquad/dslink/pkg/ds"
)

// Set is a fixed number of joystick slots. It is safe for concurrent use
// and satisfies protocol.JoystickSource.
type Set struct {
	mu    sync.RWMutex
	slots []ds.Joystick
	used  []bool
}

// NewSet creates a set with size slots
func NewSet(size int) *Set {
	if size < 0 {
		size = 0
	}
	return &Set{
		slots: make([]ds.Joystick, size),
		used:  make([]bool, size),
	}
}

// Size returns the number of slots
func (s *Set) Size() int {
	return len(s.slots)
}

// Update stores js in slot index. It reports false for an index outside the set.
func (s *Set) Update(index int, js ds.Joystick) bool {
	if index < 0 || index >= len(s.slots) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[index] = clone(js)
	s.used[index] = true
	return true
}

// Remove empties slot index
func (s *Set) Remove(index int) {
	if index < 0 || index >= len(s.slots) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[index] = ds.Joystick{}
	s.used[index] = false
}

// Clear empties every slot
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.slots {
		s.slots[i] = ds.Joystick{}
		s.used[i] = false
	}
}

// Joysticks returns a copy of the occupied slots up to the last occupied
// one. Empty slots before it are sent as joysticks with no inputs so the
// robot keeps seeing each device at its index.
func (s *Set) Joysticks() []ds.Joystick {
	s.mu.RLock()
	defer s.mu.RUnlock()

	last := -1
	for i, used := range s.used {
		if used {
			last = i
		}
	}
	if last < 0 {
		return nil
	}
	out := make([]ds.Joystick, last+1)
	for i := range out {
		out[i] = clone(s.slots[i])
	}
	return out
}

func clone(js ds.Joystick) ds.Joystick {
	return ds.Joystick{
		Axes:    append([]float64(nil), js.Axes...),
		Buttons: append([]bool(nil), js.Buttons...),
		POVs:    append([]int(nil), js.POVs...),
	}
}
