// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package source provides CAN frame sources: SocketCAN interfaces, SLCAN
// adapters over serial or WebSocket links, and recorded capture files.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/Thermoquad/devdash/pkg/frame"
)

// Transport kinds
const (
	TransportSocketCAN = "socketcan"
	TransportSLCAN     = "slcan"
	TransportReplay    = "replay"
)

// ErrNotSupported is returned when a transport is not available on this platform
var ErrNotSupported = errors.New("transport not supported on this platform")

// Handler receives each frame read from a source. Exactly one of f and err is
// non-nil; err reports a line or bus error the source recovered from.
type Handler func(f *frame.Frame, err error)

// Source produces CAN frames
type Source interface {
	// Run delivers frames to handle until ctx is cancelled, the source is
	// exhausted, or the link fails. A cancelled context returns nil.
	Run(ctx context.Context, handle Handler) error
	// Description names the source for logs, e.g. "SocketCAN: vcan0"
	Description() string
	Close() error
}

// Sender transmits frames on sources that support it
type Sender interface {
	Send(f *frame.Frame) error
}

// Options selects and configures a source
type Options struct {
	Transport string

	// SocketCAN
	Interface string

	// SLCAN
	Port     string
	Baud     int
	Bitrate  int
	URL      string
	Username string
	Password string
	Insecure bool

	// Replay
	ReplayFile  string
	ReplaySpeed float64
	ReplayLoop  bool
}

// Open opens the source described by opts
func Open(opts Options) (Source, error) {
	switch opts.Transport {
	case TransportSocketCAN, "":
		return OpenSocketCAN(opts.Interface)
	case TransportSLCAN:
		s, err := OpenSLCAN(opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	case TransportReplay:
		r, err := OpenReplay(opts.ReplayFile, opts.ReplaySpeed, opts.ReplayLoop)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", opts.Transport)
	}
}
