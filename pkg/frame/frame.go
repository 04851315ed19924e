// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frame

import "time"

// Frame is one CAN message: a numeric id and up to 8 payload bytes.
// Frames are immutable once constructed.
type Frame struct {
	id        uint32
	data      []byte
	length    int
	extended  bool
	remote    bool
	valid     bool
	timestamp time.Time
}

// NewFrame creates a data frame. Ids above the 11-bit range are treated as
// extended (29-bit) ids. The payload is copied.
func NewFrame(id uint32, data []byte) *Frame {
	return newFrame(id, data, id > StandardIDMask, false, time.Now())
}

// NewExtendedFrame creates a data frame with a 29-bit id
func NewExtendedFrame(id uint32, data []byte) *Frame {
	return newFrame(id, data, true, false, time.Now())
}

// NewRemoteFrame creates a remote transmission request with the given
// requested length and no payload
func NewRemoteFrame(id uint32, length int, extended bool) *Frame {
	return newRemoteFrame(id, length, extended, time.Now())
}

// NewFrameWithFlags creates a frame with explicit flags and timestamp,
// as read back from capture files and logs. For remote frames length is the
// requested DLC and data is ignored; for data frames length is ignored.
func NewFrameWithFlags(id uint32, length int, data []byte, extended, remote bool, timestamp time.Time) *Frame {
	if remote {
		return newRemoteFrame(id, length, extended, timestamp)
	}
	return newFrame(id, data, extended, false, timestamp)
}

func newRemoteFrame(id uint32, length int, extended bool, timestamp time.Time) *Frame {
	f := newFrame(id, nil, extended, true, timestamp)
	f.length = length
	if length < 0 || length > MaxDataLength {
		f.valid = false
	}
	return f
}

// InvalidFrame returns a frame marked invalid, used for bus error reports
func InvalidFrame(id uint32) *Frame {
	return &Frame{id: id, valid: false, timestamp: time.Now()}
}

func newFrame(id uint32, data []byte, extended, remote bool, timestamp time.Time) *Frame {
	payload := make([]byte, len(data))
	copy(payload, data)

	f := &Frame{
		id:        id,
		data:      payload,
		length:    len(payload),
		extended:  extended,
		remote:    remote,
		timestamp: timestamp,
	}
	f.valid = len(payload) <= MaxDataLength && id <= f.idMask()
	return f
}

func (f *Frame) idMask() uint32 {
	if f.extended {
		return ExtendedIDMask
	}
	return StandardIDMask
}

// ID returns the frame id
func (f *Frame) ID() uint32 {
	return f.id
}

// Data returns the payload bytes. Callers must not modify the slice.
func (f *Frame) Data() []byte {
	return f.data
}

// Len returns the payload length
func (f *Frame) Len() int {
	return len(f.data)
}

// DLC returns the data length code: the payload length of a data frame or
// the requested length of a remote frame
func (f *Frame) DLC() int {
	return f.length
}

// IsExtended returns true for 29-bit ids
func (f *Frame) IsExtended() bool {
	return f.extended
}

// IsRemote returns true for remote transmission requests
func (f *Frame) IsRemote() bool {
	return f.remote
}

// IsValid returns false for malformed frames and bus error reports
func (f *Frame) IsValid() bool {
	return f != nil && f.valid
}

// Timestamp returns the receive timestamp
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// Flags returns the capture flag bits for this frame
func (f *Frame) Flags() uint8 {
	var flags uint8
	if f.extended {
		flags |= FlagExtended
	}
	if f.remote {
		flags |= FlagRemote
	}
	return flags
}
