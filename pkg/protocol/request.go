// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

import "sync/atomic"

// RequestState is the state of a single-shot request
type RequestState int32

// Request states
const (
	RequestIdle RequestState = iota
	RequestPending
)

// Request is a single-shot flag: set by an operator action or a peer,
// consumed exactly once by the packet that carries it.
// The zero value is idle and safe for concurrent use.
type Request struct {
	state atomic.Int32
}

// Set marks the request pending
func (r *Request) Set() {
	r.state.Store(int32(RequestPending))
}

// State returns the current request state
func (r *Request) State() RequestState {
	return RequestState(r.state.Load())
}

// Pending reports whether the request is waiting to be consumed
func (r *Request) Pending() bool {
	return r.State() == RequestPending
}

// Take consumes a pending request. It returns true for exactly one caller
// per Set.
func (r *Request) Take() bool {
	return r.state.CompareAndSwap(int32(RequestPending), int32(RequestIdle))
}

// Clear drops a pending request without consuming it
func (r *Request) Clear() {
	r.state.Store(int32(RequestIdle))
}
