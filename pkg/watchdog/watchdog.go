// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package watchdog provides a resettable timer that fires once when it is
// not fed within its timeout.
package watchdog

import (
	"sync"
	"time"
)

// Watchdog calls its expiry function when Reset is not called within the
// timeout. It fires once per silence: after expiring it stays quiet until
// the next Reset re-arms it.
type Watchdog struct {
	mu       sync.Mutex
	timeout  time.Duration
	onExpire func()
	timer    *time.Timer
	expired  bool
	stopped  bool
	gen      uint64
}

// New creates an armed watchdog
func New(timeout time.Duration, onExpire func()) *Watchdog {
	w := &Watchdog{
		timeout:  timeout,
		onExpire: onExpire,
	}
	w.mu.Lock()
	w.arm()
	w.mu.Unlock()
	return w
}

// arm starts a fresh timer. Caller holds mu.
func (w *Watchdog) arm() {
	w.gen++
	gen := w.gen
	w.timer = time.AfterFunc(w.timeout, func() { w.fire(gen) })
}

func (w *Watchdog) fire(gen uint64) {
	w.mu.Lock()
	// A Reset or Stop that raced the timer wins
	if w.stopped || gen != w.gen || w.expired {
		w.mu.Unlock()
		return
	}
	w.expired = true
	fn := w.onExpire
	w.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Reset feeds the watchdog and re-arms it after an expiry
func (w *Watchdog) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.timer.Stop()
	w.expired = false
	w.arm()
}

// Expired reports whether the watchdog has fired since the last Reset
func (w *Watchdog) Expired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.expired
}

// Timeout returns the expiry window
func (w *Watchdog) Timeout() time.Duration {
	return w.timeout
}

// Stop disarms the watchdog for good
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	w.timer.Stop()
}
