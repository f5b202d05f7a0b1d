// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frc2015

import (
	"encoding/binary"
	"math"

	"github.com/Thermoquad/dslink/pkg/ds"
)

// Joystick block payload (after size and tag):
//
//	[axis count][axis i8 ...][button count][button bits, ceil(n/8) bytes][pov count][pov i16 ...]
//
// Button bits are a big-endian integer with button 0 in the least
// significant bit.

func buttonBytes(count int) int {
	return (count + 7) / 8
}

func clampCount(n, limit int) int {
	if n > limit {
		n = limit
	}
	if n > 255 {
		n = 255
	}
	if n < 0 {
		n = 0
	}
	return n
}

// encodeAxis maps -1..1 onto -127..127
func encodeAxis(v float64) byte {
	if math.IsNaN(v) {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return byte(int8(math.Round(v * 127)))
}

func decodeAxis(b byte) float64 {
	return float64(int8(b)) / 127
}

// joystickPayload encodes one joystick, capped by limits
func joystickPayload(js ds.Joystick, limits Limits) []byte {
	axes := clampCount(len(js.Axes), limits.Axes)
	buttons := clampCount(len(js.Buttons), limits.Buttons)
	povs := clampCount(len(js.POVs), limits.POVs)

	payload := make([]byte, 0, 3+axes+buttonBytes(buttons)+2*povs)

	payload = append(payload, byte(axes))
	for _, v := range js.Axes[:axes] {
		payload = append(payload, encodeAxis(v))
	}

	payload = append(payload, byte(buttons))
	bits := make([]byte, buttonBytes(buttons))
	for i, pressed := range js.Buttons[:buttons] {
		if pressed {
			bits[len(bits)-1-i/8] |= 1 << (i % 8)
		}
	}
	payload = append(payload, bits...)

	payload = append(payload, byte(povs))
	for _, angle := range js.POVs[:povs] {
		if angle < povCentered || angle > 359 {
			angle = povCentered
		}
		payload = binary.BigEndian.AppendUint16(payload, uint16(int16(angle)))
	}

	return payload
}

// appendJoysticks appends one tagged block per joystick, up to the limit
func appendJoysticks(data []byte, joysticks []ds.Joystick, limits Limits) []byte {
	count := clampCount(len(joysticks), limits.Joysticks)
	for _, js := range joysticks[:count] {
		data = appendBlock(data, TagJoystick, joystickPayload(js, limits))
	}
	return data
}

// decodeJoystick parses a joystick block payload
func decodeJoystick(payload []byte) (ds.Joystick, bool) {
	var js ds.Joystick
	offset := 0

	if offset >= len(payload) {
		return js, false
	}
	axes := int(payload[offset])
	offset++
	if offset+axes > len(payload) {
		return js, false
	}
	js.Axes = make([]float64, axes)
	for i := range js.Axes {
		js.Axes[i] = decodeAxis(payload[offset+i])
	}
	offset += axes

	if offset >= len(payload) {
		return js, false
	}
	buttons := int(payload[offset])
	offset++
	n := buttonBytes(buttons)
	if offset+n > len(payload) {
		return js, false
	}
	bits := payload[offset : offset+n]
	js.Buttons = make([]bool, buttons)
	for i := range js.Buttons {
		js.Buttons[i] = bits[len(bits)-1-i/8]&(1<<(i%8)) != 0
	}
	offset += n

	if offset >= len(payload) {
		return js, false
	}
	povs := int(payload[offset])
	offset++
	if offset+2*povs > len(payload) {
		return js, false
	}
	js.POVs = make([]int, povs)
	for i := range js.POVs {
		js.POVs[i] = int(int16(binary.BigEndian.Uint16(payload[offset+2*i:])))
	}

	return js, true
}
