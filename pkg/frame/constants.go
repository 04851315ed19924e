// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package frame provides the CAN frame type shared by all frame sources and
// protocol decoders, along with the wire and file codecs used to move frames
// around: SLCAN (Lawicel ASCII), CBOR capture files and candump logs.
package frame

// CAN limits
const (
	MaxDataLength  = 8
	StandardIDMask = 0x7FF
	ExtendedIDMask = 0x1FFFFFFF
)

// SLCAN command bytes
const (
	CmdStandard       = 't'
	CmdExtended       = 'T'
	CmdStandardRemote = 'r'
	CmdExtendedRemote = 'R'
	CmdOpen           = 'O'
	CmdClose          = 'C'
	CmdBitrate        = 'S'
)

// SLCAN line terminators and responses
const (
	CR       = '\r'
	LF       = '\n'
	BellByte = 0x07 // Adapter error response
)

// SLCAN field widths (hex digits)
const (
	standardIDDigits = 3
	extendedIDDigits = 8
	timestampDigits  = 4
	maxLineLength    = 1 + extendedIDDigits + 1 + MaxDataLength*2 + timestampDigits + 1
)

// Capture record flags
const (
	FlagExtended = 1 << 0
	FlagRemote   = 1 << 1
)

// SLCAN bitrate codes (S0-S8)
var bitrateCodes = map[int]byte{
	10000:   '0',
	20000:   '1',
	50000:   '2',
	100000:  '3',
	125000:  '4',
	250000:  '5',
	500000:  '6',
	800000:  '7',
	1000000: '8',
}
