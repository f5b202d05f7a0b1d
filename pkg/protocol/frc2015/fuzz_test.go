// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frc2015

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Thermoquad/dslink/pkg/ds"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

func randomJoystick(rng *rand.Rand) ds.Joystick {
	js := ds.Joystick{
		Axes:    make([]float64, rng.Intn(MaxAxes+1)),
		Buttons: make([]bool, rng.Intn(MaxButtons+1)),
		POVs:    make([]int, rng.Intn(MaxPOVs+1)),
	}
	for i := range js.Axes {
		// whole steps of 1/127 survive the i8 encoding exactly
		js.Axes[i] = float64(rng.Intn(255)-127) / 127
	}
	for i := range js.Buttons {
		js.Buttons[i] = rng.Intn(2) == 1
	}
	for i := range js.POVs {
		js.POVs[i] = rng.Intn(361) - 1
	}
	return js
}

// ============================================================
// Robustness Tests
// ============================================================

// TestFuzzRandomBytes feeds random data to every decoder and to the
// interpreters. Nothing may panic.
func TestFuzzRandomBytes(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()
	p, _, _ := newHarness(t, nil)

	for i := 0; i < rounds; i++ {
		data := make([]byte, rng.Intn(96))
		rng.Read(data)

		DecodeCommand(data)
		DecodeStatus(data)
		DecodeFMSStatus(data)
		DecodeFMSCommand(data)
		for _, kind := range Kinds {
			FormatPacket(kind, data)
		}

		okRobot := p.ReadRobotPacket(data)
		if okRobot != (len(data) >= StatusHeaderSize) {
			t.Fatalf("round %d: %d byte robot packet accepted=%v", i, len(data), okRobot)
		}
		okFMS := p.ReadFMSPacket(data)
		if okFMS != (len(data) >= FMSCommandSize) {
			t.Fatalf("round %d: %d byte FMS packet accepted=%v", i, len(data), okFMS)
		}
		p.GenerateRobotPacket()
	}
}

// TestFuzzMutatedStatus corrupts the block area of a valid status packet
func TestFuzzMutatedStatus(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	base := EncodeStatus(Status{
		Trace:   StatusHasCode,
		Voltage: 12,
		Blocks: []Block{
			{Tag: TagCPUInfo, Data: []byte{1, 0x42, 0x20, 0, 0}},
			{Tag: TagRAMInfo, Data: make([]byte, 8)},
		},
	})

	for i := 0; i < rounds; i++ {
		data := append([]byte(nil), base...)
		for n := rng.Intn(4) + 1; n > 0; n-- {
			pos := StatusHeaderSize + rng.Intn(len(data)-StatusHeaderSize)
			data[pos] = byte(rng.Intn(256))
		}
		if _, err := DecodeStatus(data); err != nil {
			t.Fatalf("round %d: header-valid packet failed: %v", i, err)
		}
	}
}

// ============================================================
// Round Trip Tests
// ============================================================

func TestFuzzCommandRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()
	modes := []ds.ControlMode{ds.ModeTeleoperated, ds.ModeAutonomous, ds.ModeTest}

	for i := 0; i < rounds; i++ {
		c := Command{
			Sequence: uint16(rng.Intn(1 << 16)),
			Control: Control{
				Mode:        modes[rng.Intn(len(modes))],
				Enabled:     rng.Intn(2) == 1,
				FMSAttached: rng.Intn(2) == 1,
				EStop:       rng.Intn(2) == 1,
			},
			Request: []byte{RequestUnconnected, RequestNormal, RequestReboot, RequestRestartCode}[rng.Intn(4)],
			Station: byte(rng.Intn(6)),
		}
		for n := rng.Intn(MaxJoysticks + 1); n > 0; n-- {
			c.Joysticks = append(c.Joysticks, randomJoystick(rng))
		}

		got, err := DecodeCommand(EncodeCommand(c, DefaultLimits))
		if err != nil {
			t.Fatalf("round %d: %v", i, err)
		}
		if got.Sequence != c.Sequence || got.Control != c.Control || got.Request != c.Request || got.Station != c.Station {
			t.Fatalf("round %d: header %+v -> %+v", i, c, got)
		}
		if StationCode(Alliance(got.Station), Position(got.Station)) != c.Station {
			t.Fatalf("round %d: station %d did not survive alliance/position", i, c.Station)
		}
		if len(got.Joysticks) != len(c.Joysticks) {
			t.Fatalf("round %d: %d joysticks -> %d", i, len(c.Joysticks), len(got.Joysticks))
		}
		for j, js := range c.Joysticks {
			assertJoystick(t, i, js, got.Joysticks[j])
		}
	}
}

func assertJoystick(t *testing.T, round int, want, got ds.Joystick) {
	t.Helper()
	if len(got.Axes) != len(want.Axes) || len(got.Buttons) != len(want.Buttons) || len(got.POVs) != len(want.POVs) {
		t.Fatalf("round %d: joystick shape changed", round)
	}
	for k := range want.Axes {
		if got.Axes[k] != want.Axes[k] {
			t.Fatalf("round %d: axis %d = %v; want %v", round, k, got.Axes[k], want.Axes[k])
		}
	}
	for k := range want.Buttons {
		if got.Buttons[k] != want.Buttons[k] {
			t.Fatalf("round %d: button %d = %v", round, k, got.Buttons[k])
		}
	}
	for k := range want.POVs {
		if got.POVs[k] != want.POVs[k] {
			t.Fatalf("round %d: pov %d = %d; want %d", round, k, got.POVs[k], want.POVs[k])
		}
	}
}
