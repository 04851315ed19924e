// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frame

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// captureRecord is one frame in a capture file:
// [timestamp_unix_micro, id, flags, dlc, data]
type captureRecord struct {
	_         struct{} `cbor:",toarray"`
	Timestamp int64
	ID        uint32
	Flags     uint8
	DLC       uint8
	Data      []byte
}

// CaptureWriter writes frames to a CBOR capture stream
type CaptureWriter struct {
	enc   *cbor.Encoder
	count int
}

// NewCaptureWriter creates a capture writer on w
func NewCaptureWriter(w io.Writer) *CaptureWriter {
	return &CaptureWriter{enc: cbor.NewEncoder(w)}
}

// Write appends one frame to the capture stream
func (c *CaptureWriter) Write(f *Frame) error {
	if f == nil {
		return fmt.Errorf("nil frame")
	}
	if f.DLC() < 0 || f.DLC() > MaxDataLength {
		return fmt.Errorf("frame length %d exceeds %d bytes", f.DLC(), MaxDataLength)
	}
	rec := captureRecord{
		Timestamp: f.Timestamp().UnixMicro(),
		ID:        f.ID(),
		Flags:     f.Flags(),
		DLC:       uint8(f.DLC()),
		Data:      f.Data(),
	}
	if err := c.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode capture record: %w", err)
	}
	c.count++
	return nil
}

// Count returns the number of frames written
func (c *CaptureWriter) Count() int {
	return c.count
}

// CaptureReader reads frames back from a CBOR capture stream
type CaptureReader struct {
	dec *cbor.Decoder
}

// NewCaptureReader creates a capture reader on r
func NewCaptureReader(r io.Reader) *CaptureReader {
	return &CaptureReader{dec: cbor.NewDecoder(r)}
}

// Read returns the next frame, or io.EOF at the end of the stream
func (c *CaptureReader) Read() (*Frame, error) {
	var rec captureRecord
	if err := c.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to decode capture record: %w", err)
	}
	if len(rec.Data) > MaxDataLength {
		return nil, fmt.Errorf("capture record data length %d exceeds %d bytes", len(rec.Data), MaxDataLength)
	}

	return NewFrameWithFlags(
		rec.ID,
		int(rec.DLC),
		rec.Data,
		rec.Flags&FlagExtended != 0,
		rec.Flags&FlagRemote != 0,
		time.UnixMicro(rec.Timestamp),
	), nil
}

// ReadAll reads every remaining frame from the stream
func (c *CaptureReader) ReadAll() ([]*Frame, error) {
	var frames []*Frame
	for {
		f, err := c.Read()
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
	}
}
