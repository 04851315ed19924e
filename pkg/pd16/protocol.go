// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pd16

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/devdash/pkg/frame"
	"github.com/Thermoquad/devdash/pkg/logging"
	"github.com/Thermoquad/devdash/pkg/telemetry"
)

type frameHandler func(p *Protocol, payload []byte) []telemetry.Update
type ioHandler func(payload []byte, prefix string) []telemetry.Update

// handlers is an immutable dispatch table
type handlers struct {
	frames  map[int]frameHandler
	inputs  map[IOType]ioHandler
	outputs map[IOType]ioHandler
}

// Protocol decodes the status frames of one PD16 device
type Protocol struct {
	device DeviceID
	baseID uint32
	prefix string
	tables atomic.Pointer[handlers]
	loaded atomic.Bool
	log    *logrus.Entry
}

// New creates a protocol for the given device with the built-in handler tables
func New(device DeviceID) *Protocol {
	p := &Protocol{log: logging.For("pd16")}
	p.SetDevice(device)
	p.tables.Store(buildHandlers())
	return p
}

// NewProtocol creates a protocol for device A
func NewProtocol() *Protocol {
	return New(DeviceA)
}

// SetLogger replaces the logger
func (p *Protocol) SetLogger(logger *logrus.Logger) {
	p.log = logging.WithLogger(logger, "pd16")
}

// SetDevice fixes the base frame id and channel prefix. Must be called before
// decoding starts.
func (p *Protocol) SetDevice(device DeviceID) {
	if !device.Valid() {
		device = DeviceA
	}
	p.device = device
	p.baseID = BaseCANID + uint32(device)*DeviceIDOffset
	p.prefix = fmt.Sprintf("pd16_%s", device)
}

// LoadDefinition rebuilds the handler tables and marks the protocol loaded
func (p *Protocol) LoadDefinition() {
	p.tables.Store(buildHandlers())
	p.loaded.Store(true)
	p.log.WithField("device", p.device.String()).Debug("Loaded PD16 handler tables")
}

// IsLoaded reports whether LoadDefinition has been called
func (p *Protocol) IsLoaded() bool {
	return p.loaded.Load()
}

// Device returns the configured device
func (p *Protocol) Device() DeviceID {
	return p.device
}

// BaseID returns the first frame id owned by the device
func (p *Protocol) BaseID() uint32 {
	return p.baseID
}

// Prefix returns the channel name prefix, e.g. "pd16_A"
func (p *Protocol) Prefix() string {
	return p.prefix
}

// Accepts reports whether a frame id belongs to this device
func (p *Protocol) Accepts(id uint32) bool {
	return id >= p.baseID && id < p.baseID+FramesPerDevice
}

// FrameOffset returns the offset of id from the base id, or -1
func (p *Protocol) FrameOffset(id uint32) int {
	if !p.Accepts(id) {
		return -1
	}
	return int(id - p.baseID)
}

// DeviceForFrame finds the device that owns a frame id
func DeviceForFrame(id uint32) (DeviceID, bool) {
	if id < BaseCANID || id >= BaseCANID+DeviceCount*DeviceIDOffset {
		return DeviceA, false
	}
	return DeviceID((id - BaseCANID) / DeviceIDOffset), true
}

// Decode decodes a frame into channel updates. Frames for other devices,
// unhandled offsets and empty payloads produce no updates.
func (p *Protocol) Decode(f *frame.Frame) []telemetry.Update {
	if !f.IsValid() || f.IsRemote() || f.Len() == 0 {
		return nil
	}
	if !p.Accepts(f.ID()) {
		return nil
	}

	h, ok := p.tables.Load().frames[p.FrameOffset(f.ID())]
	if !ok {
		return nil
	}
	return h(p, f.Data())
}

// ChannelNames returns every channel name this device can produce
func (p *Protocol) ChannelNames() []string {
	names := []string{p.prefix + "_status", p.prefix + "_firmwareVersion"}

	fields := map[IOType][]string{
		Output25A:     {"load", "voltage", "currentLow", "currentHigh", "retries", "pinState"},
		Output8A:      {"retries", "pinState", "voltage", "current", "load"},
		SpeedPulse:    {"state", "voltage", "dutyCycle", "frequency"},
		AnalogVoltage: {"state", "voltage"},
	}
	for t, fs := range fields {
		for i := uint8(0); i <= maxIOIndex; i++ {
			for _, field := range fs {
				names = append(names, fmt.Sprintf("%s_%s", p.channelPrefix(t, i), field))
			}
		}
	}

	sort.Strings(names)
	return names
}

func (p *Protocol) channelPrefix(t IOType, index uint8) string {
	return fmt.Sprintf("%s_%s_%d", p.prefix, IOTypeName(t), index)
}

func buildHandlers() *handlers {
	return &handlers{
		frames: map[int]frameHandler{
			OffsetInputStatus:  (*Protocol).decodeInputStatus,
			OffsetOutputStatus: (*Protocol).decodeOutputStatus,
			OffsetDeviceStatus: (*Protocol).decodeDeviceStatus,
		},
		inputs: map[IOType]ioHandler{
			SpeedPulse:    decodeSpeedPulse,
			AnalogVoltage: decodeAnalogVoltage,
		},
		outputs: map[IOType]ioHandler{
			Output25A: decodeOutput25A,
			Output8A:  decodeOutput8A,
		},
	}
}

// ============================================================
// Frame Handlers
// ============================================================

func (p *Protocol) decodeInputStatus(payload []byte) []telemetry.Update {
	return p.dispatchMux(payload, p.tables.Load().inputs)
}

func (p *Protocol) decodeOutputStatus(payload []byte) []telemetry.Update {
	return p.dispatchMux(payload, p.tables.Load().outputs)
}

func (p *Protocol) dispatchMux(payload []byte, table map[IOType]ioHandler) []telemetry.Update {
	if len(payload) < minStatusSize {
		return nil
	}

	ioType := UnpackType(payload[0])
	h, ok := table[ioType]
	if !ok {
		return nil
	}
	return h(payload, p.channelPrefix(ioType, UnpackIndex(payload[0])))
}

func (p *Protocol) decodeDeviceStatus(payload []byte) []telemetry.Update {
	var results []telemetry.Update

	if len(payload) >= deviceStatusMinLen {
		status := (payload[0] >> statusNibbleShift) & statusNibbleMask
		results = append(results, telemetry.NewUpdate(p.prefix+"_status", float64(status), ""))
	}

	if len(payload) >= firmwareMinLen {
		major := float64(payload[1] & fwMajorMask)
		minor := float64(payload[2])
		bugfix := float64(payload[fwBugfixOffset])
		version := major + minor/fwMinorScale + bugfix/fwBugfixScale
		results = append(results, telemetry.NewUpdate(p.prefix+"_firmwareVersion", version, ""))
	}

	return results
}

// ============================================================
// IO Type Handlers
// ============================================================

func decodeOutput25A(payload []byte, prefix string) []telemetry.Update {
	var results []telemetry.Update

	if len(payload) >= 2 {
		results = append(results, telemetry.NewUpdate(prefix+"_load", float64(payload[1]), "%"))
	}
	if v, ok := uint16At(payload, voltageOffset); ok {
		results = append(results, telemetry.NewUpdate(prefix+"_voltage", float64(v)/mvToV, "V"))
	}
	if v, ok := uint16At(payload, currentLowOffset); ok {
		results = append(results, telemetry.NewUpdate(prefix+"_currentLow", float64(v)/maToA, "A"))
	}
	if len(payload) > currentHighOffset {
		results = append(results, telemetry.NewUpdate(prefix+"_currentHigh", float64(payload[currentHighOffset])/maToA, "A"))
	}
	if len(payload) > statusByteOffset {
		b := payload[statusByteOffset]
		results = append(results,
			telemetry.NewUpdate(prefix+"_retries", float64((b>>retry25AShift)&retry25AMask), ""),
			telemetry.NewUpdate(prefix+"_pinState", float64(b&statusNibbleMask), ""),
		)
	}

	return results
}

func decodeOutput8A(payload []byte, prefix string) []telemetry.Update {
	var results []telemetry.Update

	if len(payload) >= 2 {
		b := payload[1]
		results = append(results,
			telemetry.NewUpdate(prefix+"_retries", float64((b>>retry8AShift)&retry8AMask), ""),
			telemetry.NewUpdate(prefix+"_pinState", float64(b&pinState8AMask), ""),
		)
	}
	if v, ok := uint16At(payload, voltageOffset); ok {
		results = append(results, telemetry.NewUpdate(prefix+"_voltage", float64(v)/mvToV, "V"))
	}
	if v, ok := uint16At(payload, currentLowOffset); ok {
		results = append(results, telemetry.NewUpdate(prefix+"_current", float64(v)/maToA, "A"))
	}
	if len(payload) > currentHighOffset {
		results = append(results, telemetry.NewUpdate(prefix+"_load", float64(payload[currentHighOffset]), "%"))
	}

	return results
}

func decodeSpeedPulse(payload []byte, prefix string) []telemetry.Update {
	results := decodeAnalogVoltage(payload, prefix)

	if v, ok := uint16At(payload, currentLowOffset); ok {
		results = append(results, telemetry.NewUpdate(prefix+"_dutyCycle", float64(v)/dutyCycleScale, "%"))
	}
	if v, ok := uint16At(payload, currentHighOffset); ok {
		results = append(results, telemetry.NewUpdate(prefix+"_frequency", float64(v), "Hz"))
	}

	return results
}

func decodeAnalogVoltage(payload []byte, prefix string) []telemetry.Update {
	var results []telemetry.Update

	if len(payload) >= 2 {
		state := 0.0
		if payload[1]&stateBitMask != 0 {
			state = 1.0
		}
		results = append(results, telemetry.NewUpdate(prefix+"_state", state, ""))
	}
	if v, ok := uint16At(payload, voltageOffset); ok {
		results = append(results, telemetry.NewUpdate(prefix+"_voltage", float64(v)/mvToV, "V"))
	}

	return results
}

// uint16At decodes a big-endian uint16, reporting false when out of range
func uint16At(payload []byte, offset int) (uint16, bool) {
	if offset+2 > len(payload) {
		return 0, false
	}
	return uint16(payload[offset])<<8 | uint16(payload[offset+1]), true
}
