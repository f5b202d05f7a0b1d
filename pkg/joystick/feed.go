// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package joystick

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/Thermoquad/dslink/pkg/ds"
	"github.com/fxamacker/cbor/v2"
	"github.com/hashicorp/go-hclog"
	"go.bug.st/serial"
)

// Frame is one controller update from the serial bridge. Its payload is a
// CBOR map with integer keys:
//
//	{1: index, 2: [axes...], 3: [buttons...], 4: [povs...], 5: detached}
type Frame struct {
	Index    int       `cbor:"1,keyasint"`
	Axes     []float64 `cbor:"2,keyasint,omitempty"`
	Buttons  []bool    `cbor:"3,keyasint,omitempty"`
	POVs     []int     `cbor:"4,keyasint,omitempty"`
	Detached bool      `cbor:"5,keyasint,omitempty"`
}

// Joystick returns the frame's inputs
func (f Frame) Joystick() ds.Joystick {
	return ds.Joystick{Axes: f.Axes, Buttons: f.Buttons, POVs: f.POVs}
}

// EncodeFrame returns the framed wire bytes for f
func EncodeFrame(f Frame) ([]byte, error) {
	data, err := cbor.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode joystick frame: %w", err)
	}
	return frameBytes(data)
}

// Feed applies frames read from a bridge to a Set
type Feed struct {
	set     *Set
	logger  hclog.Logger
	applied atomic.Uint64
	dropped atomic.Uint64
}

// NewFeed creates a feed writing into set
func NewFeed(set *Set, logger hclog.Logger) *Feed {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Feed{set: set, logger: logger.Named("joystick")}
}

// Apply stores one frame
func (f *Feed) Apply(frame Frame) error {
	if frame.Detached {
		f.set.Remove(frame.Index)
		f.logger.Debug("joystick detached", "index", frame.Index)
		return nil
	}
	if !f.set.Update(frame.Index, frame.Joystick()) {
		return fmt.Errorf("joystick index %d out of range (0-%d)", frame.Index, f.set.Size()-1)
	}
	return nil
}

// Applied returns how many frames have been stored
func (f *Feed) Applied() uint64 { return f.applied.Load() }

// Dropped returns how many frames failed framing, decoding or Apply
func (f *Feed) Dropped() uint64 { return f.dropped.Load() }

// Run decodes frames from r until it ends or ctx is cancelled. Bad frames
// are logged and skipped and the decoder resynchronises on the next START
// byte. Cancelling ctx closes r when it is an io.Closer.
func (f *Feed) Run(ctx context.Context, r io.Reader) error {
	if c, ok := r.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { c.Close() })
		defer stop()
	}

	br := bufio.NewReader(r)
	dec := newFrameDecoder()
	for {
		b, err := br.ReadByte()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("joystick bridge read failed: %w", err)
		}

		payload, err := dec.decodeByte(b)
		if err != nil {
			f.drop(err)
			continue
		}
		if payload == nil {
			continue
		}

		var frame Frame
		if err := cbor.Unmarshal(payload, &frame); err != nil {
			f.drop(fmt.Errorf("bad frame payload: %w", err))
			continue
		}
		if err := f.Apply(frame); err != nil {
			f.drop(err)
			continue
		}
		f.applied.Add(1)
	}
}

func (f *Feed) drop(err error) {
	f.dropped.Add(1)
	f.logger.Warn("dropping joystick frame", "error", err)
}

// OpenSerial opens a bridge's serial port in 8N1 at baudRate
func OpenSerial(portName string, baudRate int) (io.ReadCloser, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	return port, nil
}

// ListPorts returns the serial ports present on the system
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}
