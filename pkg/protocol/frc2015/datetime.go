// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frc2015

import (
	"encoding/binary"
	"time"
)

// dateSize is the date payload: usec u32, sec, min, hour, mday, month (0-11), year-1900
const dateSize = 10

func encodeDate(t time.Time) []byte {
	t = t.UTC()
	payload := make([]byte, dateSize)
	binary.BigEndian.PutUint32(payload[0:4], uint32(t.Nanosecond()/1000))
	payload[4] = byte(t.Second())
	payload[5] = byte(t.Minute())
	payload[6] = byte(t.Hour())
	payload[7] = byte(t.Day())
	payload[8] = byte(t.Month() - 1)
	payload[9] = byte(t.Year() - 1900)
	return payload
}

func decodeDate(payload []byte) (time.Time, bool) {
	if len(payload) < dateSize {
		return time.Time{}, false
	}
	usec := binary.BigEndian.Uint32(payload[0:4])
	return time.Date(
		1900+int(payload[9]),
		time.Month(payload[8])+1,
		int(payload[7]),
		int(payload[6]),
		int(payload[5]),
		int(payload[4]),
		int(usec)*1000,
		time.UTC,
	), true
}

// zoneName returns the name sent in the timezone block
func zoneName(t time.Time) string {
	if name := t.Location().String(); name != "" && name != "Local" {
		return name
	}
	name, _ := t.Zone()
	return name
}

// appendDate appends the date block followed by the timezone block
func appendDate(data []byte, t time.Time, timezone string) []byte {
	data = appendBlock(data, TagDate, encodeDate(t))
	if timezone == "" {
		timezone = zoneName(t)
	}
	return appendBlock(data, TagTimezone, []byte(timezone))
}
