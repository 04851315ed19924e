// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frame

import "fmt"

const hexDigits = "0123456789ABCDEF"

// EncodeSLCAN encodes a frame as an SLCAN line, including the trailing CR.
// Returns the line bytes ready for transmission.
func EncodeSLCAN(f *Frame) ([]byte, error) {
	if f == nil {
		return nil, fmt.Errorf("nil frame")
	}
	if f.DLC() < 0 || f.DLC() > MaxDataLength {
		return nil, fmt.Errorf("frame length %d exceeds %d bytes", f.DLC(), MaxDataLength)
	}
	if f.ID() > f.idMask() {
		return nil, fmt.Errorf("frame id 0x%X out of range", f.ID())
	}

	var cmd byte
	digits := standardIDDigits
	switch {
	case f.IsExtended() && f.IsRemote():
		cmd = CmdExtendedRemote
	case f.IsExtended():
		cmd = CmdExtended
	case f.IsRemote():
		cmd = CmdStandardRemote
	default:
		cmd = CmdStandard
	}
	if f.IsExtended() {
		digits = extendedIDDigits
	}

	line := make([]byte, 0, maxLineLength)
	line = append(line, cmd)
	for shift := (digits - 1) * 4; shift >= 0; shift -= 4 {
		line = append(line, hexDigits[(f.ID()>>uint(shift))&0xF])
	}
	line = append(line, byte('0'+f.DLC()))
	if !f.IsRemote() {
		for _, b := range f.Data() {
			line = append(line, hexDigits[b>>4], hexDigits[b&0xF])
		}
	}
	line = append(line, CR)

	return line, nil
}

// EncodeFrame encodes a frame as an SLCAN line.
// Panics on encoding error (use EncodeSLCAN for error handling).
func EncodeFrame(f *Frame) []byte {
	line, err := EncodeSLCAN(f)
	if err != nil {
		panic(fmt.Sprintf("frame: encode error: %v", err))
	}
	return line
}

// OpenCommand returns the SLCAN command that opens the channel
func OpenCommand() []byte {
	return []byte{CmdOpen, CR}
}

// CloseCommand returns the SLCAN command that closes the channel
func CloseCommand() []byte {
	return []byte{CmdClose, CR}
}

// BitrateCommand returns the SLCAN command selecting a standard bitrate
func BitrateCommand(bitrate int) ([]byte, error) {
	code, ok := bitrateCodes[bitrate]
	if !ok {
		return nil, fmt.Errorf("unsupported SLCAN bitrate: %d", bitrate)
	}
	return []byte{CmdBitrate, code, CR}, nil
}

// OpenSequence returns the close, bitrate and open commands used to bring an
// adapter onto the bus
func OpenSequence(bitrate int) ([]byte, error) {
	rate, err := BitrateCommand(bitrate)
	if err != nil {
		return nil, err
	}
	seq := append(CloseCommand(), rate...)
	return append(seq, OpenCommand()...), nil
}
