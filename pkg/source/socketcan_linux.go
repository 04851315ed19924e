// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build linux

package source

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/brutella/can"

	"github.com/Thermoquad/devdash/pkg/frame"
)

// SocketCAN id flags carried in the raw frame id
const (
	effFlag = 0x80000000
	rtrFlag = 0x40000000
	errFlag = 0x20000000
)

// SocketCANSource reads frames from a Linux SocketCAN interface
type SocketCANSource struct {
	iface string
	bus   *can.Bus

	closeOnce sync.Once
	closeErr  error
}

// OpenSocketCAN opens a SocketCAN interface such as vcan0
func OpenSocketCAN(ifname string) (Source, error) {
	s, err := openSocketCAN(ifname)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openSocketCAN(ifname string) (*SocketCANSource, error) {
	iface, err := net.InterfaceByName(ifname)
	if err != nil {
		return nil, fmt.Errorf("could not find network interface %s: %w", ifname, err)
	}

	conn, err := can.NewReadWriteCloserForInterface(iface)
	if err != nil {
		return nil, fmt.Errorf("unable to open CAN bus %s: %w", ifname, err)
	}

	return &SocketCANSource{iface: ifname, bus: can.NewBus(conn)}, nil
}

// Description implements Source
func (s *SocketCANSource) Description() string {
	return fmt.Sprintf("SocketCAN: %s", s.iface)
}

// Run implements Source
func (s *SocketCANSource) Run(ctx context.Context, handle Handler) error {
	s.bus.SubscribeFunc(func(cf can.Frame) {
		handle(fromBrutella(cf), nil)
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.bus.ConnectAndPublish()
	}()

	select {
	case <-ctx.Done():
		s.Close()
		<-errCh
		return nil
	case err := <-errCh:
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			return fmt.Errorf("%s: bus disconnected", s.iface)
		}
		return fmt.Errorf("%s: %w", s.iface, err)
	}
}

// Send implements Sender
func (s *SocketCANSource) Send(f *frame.Frame) error {
	cf, err := toBrutella(f)
	if err != nil {
		return err
	}
	return s.bus.Publish(cf)
}

// Close disconnects from the bus
func (s *SocketCANSource) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.bus.Disconnect()
	})
	return s.closeErr
}

// fromBrutella converts a raw SocketCAN frame. Error frames become invalid
// frames.
func fromBrutella(cf can.Frame) *frame.Frame {
	if cf.ID&errFlag != 0 {
		return frame.InvalidFrame(cf.ID &^ (effFlag | rtrFlag | errFlag))
	}

	extended := cf.ID&effFlag != 0
	remote := cf.ID&rtrFlag != 0
	id := cf.ID & frame.ExtendedIDMask
	if !extended {
		id &= frame.StandardIDMask
	}

	length := int(cf.Length)
	if length > frame.MaxDataLength {
		length = frame.MaxDataLength
	}
	return frame.NewFrameWithFlags(id, length, cf.Data[:length], extended, remote, time.Now())
}

func toBrutella(f *frame.Frame) (can.Frame, error) {
	if !f.IsValid() {
		return can.Frame{}, fmt.Errorf("cannot send invalid frame 0x%X", f.ID())
	}

	cf := can.Frame{ID: f.ID(), Length: uint8(f.DLC())}
	if f.IsExtended() {
		cf.ID |= effFlag
	}
	if f.IsRemote() {
		cf.ID |= rtrFlag
	} else {
		copy(cf.Data[:], f.Data())
	}
	return cf, nil
}
