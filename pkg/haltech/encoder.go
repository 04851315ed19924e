// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package haltech

import (
	"fmt"
	"math"

	"github.com/Thermoquad/devdash/pkg/frame"
)

// Invert maps an engineering value back to the raw value Apply expects
func (k ConversionKind) Invert(v float64) float64 {
	switch k {
	case DivideBy10:
		return v * 10
	case DivideBy1000:
		return v * 1000
	case GaugePressure:
		return (v + AtmosphericPressure) * 10
	case KelvinToCelsius:
		return (v + KelvinOffset) * 10
	default:
		return v
	}
}

// Encode builds the frame for id from channel values keyed by channel name.
// Channels without a value encode as raw zero; values outside the field range
// are clamped.
func (p *Protocol) Encode(id uint32, values map[string]float64) (*frame.Frame, error) {
	def, ok := p.Definition(id)
	if !ok {
		return nil, fmt.Errorf("frame 0x%X not in definition", id)
	}

	size := MinPayloadSize
	for i := range def.Channels {
		if n := def.Channels[i].maxIndex() + 1; n > size {
			size = n
		}
	}
	if size > frame.MaxDataLength {
		return nil, fmt.Errorf("frame 0x%X needs %d bytes", id, size)
	}

	payload := make([]byte, size)
	for i := range def.Channels {
		ch := &def.Channels[i]
		v, ok := values[ch.Name]
		if !ok {
			continue
		}
		encodeChannel(ch, payload, math.Round(ch.Conversion.Invert(v)))
	}

	return frame.NewFrame(id, payload), nil
}

func encodeChannel(ch *ChannelDefinition, payload []byte, raw float64) {
	offset := ch.Bytes[0]
	switch len(ch.Bytes) {
	case 2:
		var u uint16
		if ch.Signed {
			u = uint16(int16(clamp(raw, math.MinInt16, math.MaxInt16)))
		} else {
			u = uint16(clamp(raw, 0, math.MaxUint16))
		}
		payload[offset] = byte(u >> 8)
		payload[offset+1] = byte(u)
	case 1:
		if ch.Signed {
			payload[offset] = byte(int8(clamp(raw, math.MinInt8, math.MaxInt8)))
		} else {
			payload[offset] = byte(clamp(raw, 0, math.MaxUint8))
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
