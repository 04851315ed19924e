// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package pd16 decodes the multiplexed status frames broadcast by Haltech
// PD16 power distribution modules.
package pd16

import "fmt"

// Device addressing
const (
	BaseCANID       = 0x6D0
	DeviceIDOffset  = 8
	FramesPerDevice = 8
	DeviceCount     = 4
)

// Frame offsets from the device base id
const (
	OffsetInputStatus  = 3
	OffsetOutputStatus = 4
	OffsetDeviceStatus = 5
)

// Multiplexer byte layout: bits 7-5 IO type, bits 3-0 IO index
const (
	muxTypeShift = 5
	muxTypeMask  = 0x07
	muxIndexMask = 0x0F
)

// Minimum payload sizes
const (
	minStatusSize = 2
)

// Byte offsets
const (
	voltageOffset     = 2
	currentLowOffset  = 4
	currentHighOffset = 6
	statusByteOffset  = 7
	fwBugfixOffset    = 3
)

// Scaling
const (
	mvToV          = 1000.0
	maToA          = 1000.0
	dutyCycleScale = 10.0
	fwMinorScale   = 100.0
	fwBugfixScale  = 10000.0
)

// Status byte masks
const (
	stateBitMask       = 0x01
	fwMajorMask        = 0x03
	statusNibbleMask   = 0x0F
	statusNibbleShift  = 4
	retry25AShift      = 4
	retry25AMask       = 0x0F
	retry8AShift       = 3
	retry8AMask        = 0x1F
	pinState8AMask     = 0x07
	maxIOIndex         = 15
	deviceStatusMinLen = 1
	firmwareMinLen     = 4
)

// DeviceID selects one of the four PD16 identities
type DeviceID int

const (
	DeviceA DeviceID = iota
	DeviceB
	DeviceC
	DeviceD
)

// String returns the device letter
func (d DeviceID) String() string {
	if d < DeviceA || d > DeviceD {
		return fmt.Sprintf("DeviceID(%d)", int(d))
	}
	return string(rune('A' + int(d)))
}

// Valid reports whether d is one of A-D
func (d DeviceID) Valid() bool {
	return d >= DeviceA && d <= DeviceD
}

// ParseDeviceID parses a device letter (A-D, case insensitive)
func ParseDeviceID(s string) (DeviceID, error) {
	if len(s) == 1 {
		c := s[0]
		if c >= 'a' && c <= 'd' {
			c -= 'a' - 'A'
		}
		if c >= 'A' && c <= 'D' {
			return DeviceID(c - 'A'), nil
		}
	}
	return DeviceA, fmt.Errorf("invalid PD16 device %q (expected A-D)", s)
}

// IOType is the IO kind selected by a multiplexer byte
type IOType uint8

const (
	Output25A IOType = iota
	Output8A
	HalfBridge
	SpeedPulse
	AnalogVoltage
)

var ioTypeNames = [...]string{
	Output25A:     "25A",
	Output8A:      "8A",
	HalfBridge:    "HBO",
	SpeedPulse:    "SPI",
	AnalogVoltage: "AVI",
}

// IOTypeName returns the short channel-name form of an IO type
func IOTypeName(t IOType) string {
	if int(t) < len(ioTypeNames) {
		return ioTypeNames[t]
	}
	return "Unknown"
}

// String implements fmt.Stringer
func (t IOType) String() string {
	return IOTypeName(t)
}

// PackMux builds a multiplexer byte
func PackMux(t IOType, index uint8) byte {
	return byte(t&muxTypeMask)<<muxTypeShift | index&muxIndexMask
}

// UnpackType extracts the IO type from a multiplexer byte
func UnpackType(b byte) IOType {
	return IOType((b >> muxTypeShift) & muxTypeMask)
}

// UnpackIndex extracts the IO index from a multiplexer byte
func UnpackIndex(b byte) uint8 {
	return b & muxIndexMask
}
