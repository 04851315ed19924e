// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frame

import (
	"errors"
	"fmt"
	"time"
)

// Decoder states
const (
	stateIdle = iota
	stateID
	stateLength
	stateData
	stateEnd
	stateSkip
)

// ErrAdapterError is returned when the adapter answers with a BEL byte
var ErrAdapterError = errors.New("slcan adapter reported an error")

// SLCANDecoder implements the SLCAN (Lawicel ASCII) line decoder state machine
type SLCANDecoder struct {
	state     int
	extended  bool
	remote    bool
	id        uint32
	idDigits  int
	length    int
	data      []byte
	nibbles   int
	tsDigits  int
	rawBuffer []byte // Raw bytes of the current line
}

// NewSLCANDecoder creates a new SLCAN decoder
func NewSLCANDecoder() *SLCANDecoder {
	return &SLCANDecoder{
		state:     stateIdle,
		data:      make([]byte, 0, MaxDataLength),
		rawBuffer: make([]byte, 0, maxLineLength),
	}
}

// Reset resets the decoder state to idle
func (d *SLCANDecoder) Reset() {
	d.state = stateIdle
	d.extended = false
	d.remote = false
	d.id = 0
	d.idDigits = 0
	d.length = 0
	d.data = d.data[:0]
	d.nibbles = 0
	d.tsDigits = 0
	d.rawBuffer = d.rawBuffer[:0]
}

// GetRawBytes returns the raw bytes of the line being decoded
func (d *SLCANDecoder) GetRawBytes() []byte {
	return d.rawBuffer
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a completed frame, or nil if the line is incomplete.
// Returns an error if the line is malformed; the decoder then skips to the
// next line terminator.
func (d *SLCANDecoder) DecodeByte(b byte) (*Frame, error) {
	if len(d.rawBuffer) < maxLineLength {
		d.rawBuffer = append(d.rawBuffer, b)
	}

	if b == BellByte {
		d.Reset()
		return nil, ErrAdapterError
	}

	if b == CR || b == LF {
		return d.finishLine()
	}

	switch d.state {
	case stateIdle:
		switch b {
		case CmdStandard:
			d.begin(false, false)
		case CmdExtended:
			d.begin(true, false)
		case CmdStandardRemote:
			d.begin(false, true)
		case CmdExtendedRemote:
			d.begin(true, true)
		default:
			// Command acknowledgements and status replies (z, Z, F, V, N)
			d.state = stateSkip
		}
		return nil, nil

	case stateID:
		n, ok := hexNibble(b)
		if !ok {
			return d.fail("invalid id digit %q", b)
		}
		d.id = d.id<<4 | uint32(n)
		d.idDigits++
		if d.idDigits >= d.idWidth() {
			d.state = stateLength
		}
		return nil, nil

	case stateLength:
		if b < '0' || b > '0'+MaxDataLength {
			return d.fail("invalid length digit %q", b)
		}
		d.length = int(b - '0')
		if d.remote || d.length == 0 {
			d.state = stateEnd
		} else {
			d.state = stateData
		}
		return nil, nil

	case stateData:
		n, ok := hexNibble(b)
		if !ok {
			return d.fail("invalid data digit %q", b)
		}
		if d.nibbles%2 == 0 {
			d.data = append(d.data, n<<4)
		} else {
			d.data[len(d.data)-1] |= n
		}
		d.nibbles++
		if d.nibbles >= d.length*2 {
			d.state = stateEnd
		}
		return nil, nil

	case stateEnd:
		// Optional 16-bit timestamp appended by adapters with timestamps enabled
		if _, ok := hexNibble(b); !ok || d.tsDigits >= timestampDigits {
			return d.fail("unexpected byte %q after data", b)
		}
		d.tsDigits++
		return nil, nil

	case stateSkip:
		return nil, nil

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", d.state)
	}
}

func (d *SLCANDecoder) begin(extended, remote bool) {
	d.extended = extended
	d.remote = remote
	d.state = stateID
}

func (d *SLCANDecoder) idWidth() int {
	if d.extended {
		return extendedIDDigits
	}
	return standardIDDigits
}

// finishLine handles a line terminator
func (d *SLCANDecoder) finishLine() (*Frame, error) {
	state := d.state

	switch state {
	case stateIdle, stateSkip:
		d.Reset()
		return nil, nil

	case stateEnd:
		if d.tsDigits != 0 && d.tsDigits != timestampDigits {
			d.Reset()
			return nil, fmt.Errorf("truncated timestamp (%d digits)", d.tsDigits)
		}
		var f *Frame
		if d.remote {
			f = newRemoteFrame(d.id, d.length, d.extended, time.Now())
		} else {
			f = newFrame(d.id, d.data, d.extended, false, time.Now())
		}
		d.Reset()
		return f, nil

	default:
		d.Reset()
		return nil, fmt.Errorf("truncated frame in state %d", state)
	}
}

// fail reports a malformed line and skips to the next terminator
func (d *SLCANDecoder) fail(format string, args ...interface{}) (*Frame, error) {
	d.state = stateSkip
	return nil, fmt.Errorf(format, args...)
}

func hexNibble(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	}
	return 0, false
}
