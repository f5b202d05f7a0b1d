// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package joystick

import (
	"encoding/binary"
	"fmt"
)

// Serial framing bytes. A frame on the wire is
//
//	START | stuffed(length:2 | payload | crc:2) | END
//
// where length and crc are big-endian and the CRC covers length and payload.
const (
	StartByte = 0x7E
	EndByte   = 0x7F
	EscByte   = 0x7D
	EscXor    = 0x20
)

// MaxPayloadSize bounds one CBOR frame
const MaxPayloadSize = 512

// CRC-16-CCITT configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

const maxBodySize = 2 + MaxPayloadSize + 2

// CalculateCRC computes CRC-16-CCITT checksum for the given data
func CalculateCRC(data []byte) uint16 {
	crc := uint16(crcInitial)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// frameBytes wraps payload in length, CRC, byte stuffing and framing
func frameBytes(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("payload too large: %d bytes (max %d)", len(payload), MaxPayloadSize)
	}

	body := binary.BigEndian.AppendUint16(make([]byte, 0, len(payload)+4), uint16(len(payload)))
	body = append(body, payload...)
	body = binary.BigEndian.AppendUint16(body, CalculateCRC(body))

	out := make([]byte, 0, len(body)*2+2)
	out = append(out, StartByte)
	for _, b := range body {
		if b == StartByte || b == EndByte || b == EscByte {
			out = append(out, EscByte, b^EscXor)
		} else {
			out = append(out, b)
		}
	}
	return append(out, EndByte), nil
}

// frameDecoder pulls payloads out of a byte stream. A START byte always
// begins a new frame, so a corrupted frame costs at most itself.
type frameDecoder struct {
	buf        []byte
	inFrame    bool
	escapeNext bool
}

func newFrameDecoder() *frameDecoder {
	return &frameDecoder{buf: make([]byte, 0, maxBodySize)}
}

func (d *frameDecoder) reset() {
	d.buf = d.buf[:0]
	d.inFrame = false
	d.escapeNext = false
}

// decodeByte returns a payload when b completes a valid frame. The payload
// is a copy the caller may keep.
func (d *frameDecoder) decodeByte(b byte) ([]byte, error) {
	switch {
	case b == StartByte:
		d.reset()
		d.inFrame = true
		return nil, nil

	case !d.inFrame:
		return nil, nil

	case b == EndByte:
		defer d.reset()
		if d.escapeNext {
			return nil, fmt.Errorf("incomplete escape sequence at end of frame")
		}
		return checkBody(d.buf)

	case b == EscByte && !d.escapeNext:
		d.escapeNext = true
		return nil, nil
	}

	if d.escapeNext {
		b ^= EscXor
		d.escapeNext = false
	}
	if len(d.buf) >= maxBodySize {
		d.reset()
		return nil, fmt.Errorf("frame exceeds %d bytes", maxBodySize)
	}
	d.buf = append(d.buf, b)
	return nil, nil
}

func checkBody(body []byte) ([]byte, error) {
	if len(body) < 4 {
		return nil, fmt.Errorf("frame too short: %d bytes", len(body))
	}
	length := int(binary.BigEndian.Uint16(body))
	if length != len(body)-4 {
		return nil, fmt.Errorf("length mismatch: header says %d, frame has %d", length, len(body)-4)
	}
	expected := CalculateCRC(body[:len(body)-2])
	got := binary.BigEndian.Uint16(body[len(body)-2:])
	if got != expected {
		return nil, fmt.Errorf("CRC mismatch: expected 0x%04X, got 0x%04X", expected, got)
	}
	return append([]byte(nil), body[2:len(body)-2]...), nil
}
