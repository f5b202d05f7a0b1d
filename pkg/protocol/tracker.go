// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

import "sync/atomic"

// CommsTracker counts packets exchanged with each peer.
// All fields are safe for concurrent access.
type CommsTracker struct {
	SentFMS       atomic.Uint64
	SentRadio     atomic.Uint64
	SentRobot     atomic.Uint64
	ReceivedFMS   atomic.Uint64
	ReceivedRadio atomic.Uint64
	ReceivedRobot atomic.Uint64

	// Robot counters for the current connection epoch, used for packet loss
	SentRobotSinceConnect     atomic.Uint64
	ReceivedRobotSinceConnect atomic.Uint64
}

// Counters is a plain-value copy of CommsTracker for reading
type Counters struct {
	SentFMS                   uint64
	SentRadio                 uint64
	SentRobot                 uint64
	ReceivedFMS               uint64
	ReceivedRadio             uint64
	ReceivedRobot             uint64
	SentRobotSinceConnect     uint64
	ReceivedRobotSinceConnect uint64
}

// Snapshot returns a point-in-time copy of all counters
func (c *CommsTracker) Snapshot() Counters {
	return Counters{
		SentFMS:                   c.SentFMS.Load(),
		SentRadio:                 c.SentRadio.Load(),
		SentRobot:                 c.SentRobot.Load(),
		ReceivedFMS:               c.ReceivedFMS.Load(),
		ReceivedRadio:             c.ReceivedRadio.Load(),
		ReceivedRobot:             c.ReceivedRobot.Load(),
		SentRobotSinceConnect:     c.SentRobotSinceConnect.Load(),
		ReceivedRobotSinceConnect: c.ReceivedRobotSinceConnect.Load(),
	}
}

// ResetSinceConnect starts a new robot connection epoch
func (c *CommsTracker) ResetSinceConnect() {
	c.SentRobotSinceConnect.Store(0)
	c.ReceivedRobotSinceConnect.Store(0)
}

// PacketLoss returns the fraction of robot packets lost in the current
// epoch, between 0 and 1. An epoch with nothing sent has no loss.
func (c Counters) PacketLoss() float64 {
	if c.SentRobotSinceConnect == 0 {
		return 0
	}
	if c.ReceivedRobotSinceConnect >= c.SentRobotSinceConnect {
		return 0
	}
	return 1 - float64(c.ReceivedRobotSinceConnect)/float64(c.SentRobotSinceConnect)
}
