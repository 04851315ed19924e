// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/Thermoquad/devdash/pkg/frame"
)

const readBufferSize = 256

// SLCANSource reads SLCAN lines from a byte stream
type SLCANSource struct {
	conn        Connection
	description string
	decoder     *frame.SLCANDecoder

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// OpenSLCAN opens the serial or WebSocket link in opts and, when a bitrate is
// set, sends the adapter open sequence
func OpenSLCAN(opts Options) (*SLCANSource, error) {
	conn, desc, err := OpenConnection(opts)
	if err != nil {
		return nil, err
	}

	s := NewSLCANSource(conn, desc)
	if opts.Bitrate > 0 {
		if err := s.OpenChannel(opts.Bitrate); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewSLCANSource wraps an already open connection
func NewSLCANSource(conn Connection, description string) *SLCANSource {
	return &SLCANSource{
		conn:        conn,
		description: description,
		decoder:     frame.NewSLCANDecoder(),
	}
}

// OpenChannel configures the adapter bitrate and opens the CAN channel
func (s *SLCANSource) OpenChannel(bitrate int) error {
	seq, err := frame.OpenSequence(bitrate)
	if err != nil {
		return err
	}
	return s.write(seq)
}

// Description implements Source
func (s *SLCANSource) Description() string {
	return s.description
}

// Run implements Source
func (s *SLCANSource) Run(ctx context.Context, handle Handler) error {
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	buf := make([]byte, readBufferSize)
	for {
		n, err := s.conn.Read(buf)
		for i := 0; i < n; i++ {
			f, decodeErr := s.decoder.DecodeByte(buf[i])
			if decodeErr != nil {
				handle(nil, decodeErr)
				continue
			}
			if f != nil {
				handle(f, nil)
			}
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return fmt.Errorf("read failed: %w", err)
		}
	}
}

// Send implements Sender
func (s *SLCANSource) Send(f *frame.Frame) error {
	data, err := frame.EncodeSLCAN(f)
	if err != nil {
		return err
	}
	return s.write(data)
}

func (s *SLCANSource) write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.conn.Write(data); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

// Close sends the adapter close command and closes the link
func (s *SLCANSource) Close() error {
	s.closeOnce.Do(func() {
		s.write(frame.CloseCommand())
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
