// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frc2015

import (
	"encoding/binary"
	"math"

	"github.com/Thermoquad/dslink/pkg/ds"
)

// appendBlock appends [size][tag][payload]. Payloads longer than 254 bytes
// are truncated so size fits its byte.
func appendBlock(data []byte, tag byte, payload []byte) []byte {
	if len(payload) > 254 {
		payload = payload[:254]
	}
	data = append(data, byte(len(payload)+1), tag)
	return append(data, payload...)
}

// readBlocks walks the tagged blocks in data and calls fn for each.
// A zero size or a block running past the end stops the walk; everything
// already visited is kept.
func readBlocks(data []byte, fn func(tag byte, payload []byte)) {
	offset := 0
	for offset < len(data) {
		size := int(data[offset])
		if size == 0 {
			return
		}
		end := offset + 1 + size
		if end > len(data) {
			return
		}
		fn(data[offset+1], data[offset+2:end])
		offset = end
	}
}

// applyDiagnostics folds one extended block into diag. It reports whether
// the tag is one this protocol knows; unknown tags are left to the caller
// to skip. Known blocks that are too short are ignored.
func applyDiagnostics(diag *ds.RobotDiagnostics, tag byte, payload []byte) bool {
	switch tag {
	case TagJoystickOutput:
		// outputs u32, left rumble u16, right rumble u16
		if len(payload) >= 8 {
			diag.RumbleLeft = binary.BigEndian.Uint16(payload[4:6])
			diag.RumbleRight = binary.BigEndian.Uint16(payload[6:8])
		}
	case TagDiskInfo:
		if len(payload) >= 4 {
			diag.DiskFree = binary.BigEndian.Uint32(payload[0:4])
		}
	case TagCPUInfo:
		// count, then one float32 usage per core
		if len(payload) >= 1 {
			count := int(payload[0])
			var total float64
			var seen int
			for i := 0; i < count && 1+(i+1)*4 <= len(payload); i++ {
				start := 1 + i*4
				total += float64(math.Float32frombits(binary.BigEndian.Uint32(payload[start : start+4])))
				seen++
			}
			if seen > 0 {
				diag.CPUUsage = total / float64(seen)
			}
		}
	case TagRAMInfo:
		// block u32, free u32
		if len(payload) >= 8 {
			diag.RAMFree = binary.BigEndian.Uint32(payload[4:8])
		}
	case TagCANMetrics:
		// utilization f32, bus off u32, tx full u32, rx errors u8, tx errors u8
		if len(payload) >= 4 {
			diag.CANUtilization = float64(math.Float32frombits(binary.BigEndian.Uint32(payload[0:4])))
		}
	case TagPDPLog:
		// recognised, not surfaced
	default:
		return false
	}
	return true
}
