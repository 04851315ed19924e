// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package haltech decodes Haltech ECU CAN broadcast frames using a JSON
// protocol definition.
package haltech

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/devdash/pkg/frame"
	"github.com/Thermoquad/devdash/pkg/logging"
	"github.com/Thermoquad/devdash/pkg/telemetry"
)

// Payload layout
const (
	MinPayloadSize = 2
	celsiusUnit    = "°C"
)

// ErrNoFrames is returned when a definition yields no usable frames
var ErrNoFrames = errors.New("protocol definition contains no frames")

type decodeFunc func(payload []byte) []telemetry.Update

// table is an immutable decode table built by Load
type table struct {
	frames   map[uint32]*FrameDefinition
	decoders map[uint32]decodeFunc
}

// Protocol decodes Haltech frames against a loaded definition.
// Decode is safe to call concurrently with Load.
type Protocol struct {
	table atomic.Pointer[table]
	log   *logrus.Entry
}

// NewProtocol creates a protocol with no definition loaded
func NewProtocol() *Protocol {
	return &Protocol{log: logging.For("haltech")}
}

// SetLogger replaces the logger used for load warnings
func (p *Protocol) SetLogger(logger *logrus.Logger) {
	p.log = logging.WithLogger(logger, "haltech")
}

// LoadFile loads a definition from a JSON file
func (p *Protocol) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to open protocol definition: %w", err)
	}
	if err := p.Load(data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// LoadDefault loads the bundled definition
func (p *Protocol) LoadDefault() error {
	return p.Load(DefaultDefinition)
}

// Load parses a definition and replaces the decode table. The existing table
// is kept when the document cannot be parsed.
func (p *Protocol) Load(data []byte) error {
	frames, err := parseDefinition(data, p.log)
	if err != nil {
		return err
	}

	t := &table{
		frames:   frames,
		decoders: make(map[uint32]decodeFunc, len(frames)),
	}
	for id, def := range frames {
		t.decoders[id] = newFrameDecoder(def.Channels)
	}
	p.table.Store(t)

	p.log.WithField("frames", len(frames)).Debug("Loaded protocol definition")
	if len(frames) == 0 {
		return ErrNoFrames
	}
	return nil
}

// IsLoaded reports whether a definition with at least one frame is loaded
func (p *Protocol) IsLoaded() bool {
	t := p.table.Load()
	return t != nil && len(t.frames) > 0
}

// FrameIDs returns the loaded frame ids in ascending order
func (p *Protocol) FrameIDs() []uint32 {
	t := p.table.Load()
	if t == nil {
		return nil
	}
	ids := make([]uint32, 0, len(t.frames))
	for id := range t.frames {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Definition returns the definition for a frame id
func (p *Protocol) Definition(id uint32) (*FrameDefinition, bool) {
	t := p.table.Load()
	if t == nil {
		return nil, false
	}
	def, ok := t.frames[id]
	return def, ok
}

// ChannelNames returns every channel name the loaded definition produces,
// sorted and without duplicates
func (p *Protocol) ChannelNames() []string {
	t := p.table.Load()
	if t == nil {
		return nil
	}
	seen := make(map[string]bool)
	for _, def := range t.frames {
		for _, ch := range def.Channels {
			seen[ch.Name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Decode decodes a frame into channel updates. Invalid frames, short payloads
// and unknown frame ids produce no updates.
func (p *Protocol) Decode(f *frame.Frame) []telemetry.Update {
	if !f.IsValid() || f.IsRemote() || f.Len() < MinPayloadSize {
		return nil
	}

	t := p.table.Load()
	if t == nil {
		return nil
	}
	decode, ok := t.decoders[f.ID()]
	if !ok {
		return nil
	}
	return decode(f.Data())
}

func newFrameDecoder(channels []ChannelDefinition) decodeFunc {
	return func(payload []byte) []telemetry.Update {
		var results []telemetry.Update
		for i := range channels {
			if u, ok := decodeChannel(&channels[i], payload); ok {
				results = append(results, u)
			}
		}
		return results
	}
}

func decodeChannel(ch *ChannelDefinition, payload []byte) (telemetry.Update, bool) {
	if len(ch.Bytes) == 0 || ch.maxIndex() >= len(payload) {
		return telemetry.Update{}, false
	}

	offset := ch.Bytes[0]
	var raw float64
	switch len(ch.Bytes) {
	case 2:
		if ch.Signed {
			raw = float64(DecodeInt16(payload, offset))
		} else {
			raw = float64(DecodeUint16(payload, offset))
		}
	case 1:
		if ch.Signed {
			raw = float64(int8(payload[offset]))
		} else {
			raw = float64(payload[offset])
		}
	default:
		return telemetry.Update{}, false
	}

	unit := ch.Units
	if ch.Conversion == KelvinToCelsius {
		unit = celsiusUnit
	}

	return telemetry.NewUpdate(ch.Name, ch.Conversion.Apply(raw), unit), true
}

// DecodeUint16 decodes a big-endian uint16 at offset, or 0 when out of range
func DecodeUint16(payload []byte, offset int) uint16 {
	if offset < 0 || offset+2 > len(payload) {
		return 0
	}
	return uint16(payload[offset])<<8 | uint16(payload[offset+1])
}

// DecodeInt16 decodes a big-endian int16 at offset, or 0 when out of range
func DecodeInt16(payload []byte, offset int) int16 {
	return int16(DecodeUint16(payload, offset))
}

// DecodeRPM decodes engine speed (1 RPM per bit)
func DecodeRPM(payload []byte, offset int) float64 {
	return float64(DecodeUint16(payload, offset))
}

// DecodeTemperature decodes a Kelvin x10 temperature to Celsius
func DecodeTemperature(payload []byte, offset int) float64 {
	return KelvinToCelsius.Apply(float64(DecodeUint16(payload, offset)))
}

// DecodePressure decodes a kPa x10 absolute pressure to kPa
func DecodePressure(payload []byte, offset int) float64 {
	return DivideBy10.Apply(float64(DecodeUint16(payload, offset)))
}
