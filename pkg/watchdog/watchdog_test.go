// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package watchdog

import (
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestExpires(t *testing.T) {
	var fired atomic.Int32
	w := New(20*time.Millisecond, func() { fired.Add(1) })
	defer w.Stop()

	waitFor(t, func() bool { return fired.Load() == 1 })
	if !w.Expired() {
		t.Error("Expired should be true after firing")
	}

	// stays quiet until fed again
	time.Sleep(60 * time.Millisecond)
	if fired.Load() != 1 {
		t.Errorf("fired %d times; want once per silence", fired.Load())
	}
}

func TestResetPostponesExpiry(t *testing.T) {
	var fired atomic.Int32
	w := New(80*time.Millisecond, func() { fired.Add(1) })
	defer w.Stop()

	for i := 0; i < 5; i++ {
		time.Sleep(20 * time.Millisecond)
		w.Reset()
	}
	if fired.Load() != 0 {
		t.Fatal("watchdog fired while being fed")
	}
	if w.Expired() {
		t.Error("Expired should be false while fed")
	}
}

func TestResetRearmsAfterExpiry(t *testing.T) {
	var fired atomic.Int32
	w := New(20*time.Millisecond, func() { fired.Add(1) })
	defer w.Stop()

	waitFor(t, func() bool { return fired.Load() == 1 })
	w.Reset()
	if w.Expired() {
		t.Error("Reset should clear Expired")
	}
	waitFor(t, func() bool { return fired.Load() == 2 })
}

func TestStop(t *testing.T) {
	var fired atomic.Int32
	w := New(20*time.Millisecond, func() { fired.Add(1) })
	w.Stop()
	w.Reset()

	time.Sleep(60 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("stopped watchdog fired")
	}
}

func TestNilCallback(t *testing.T) {
	w := New(10*time.Millisecond, nil)
	defer w.Stop()
	waitFor(t, w.Expired)
}
