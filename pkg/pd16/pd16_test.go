// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pd16

import (
	"encoding/hex"
	"math"
	"sort"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/Thermoquad/devdash/pkg/frame"
	"github.com/Thermoquad/devdash/pkg/telemetry"
)

// ============================================================
// Test Helpers
// ============================================================

func testFrame(t *testing.T, id uint32, payload string) *frame.Frame {
	t.Helper()
	b, err := hex.DecodeString(payload)
	if err != nil {
		t.Fatalf("bad hex %q: %v", payload, err)
	}
	return frame.NewFrame(id, b)
}

func toMap(updates []telemetry.Update) map[string]telemetry.Value {
	m := make(map[string]telemetry.Value, len(updates))
	for _, u := range updates {
		m[u.Name] = u.Value
	}
	return m
}

func expectValue(t *testing.T, m map[string]telemetry.Value, name string, expected float64) {
	t.Helper()
	v, ok := m[name]
	if !ok {
		t.Errorf("Missing channel %q", name)
		return
	}
	if math.Abs(v.Value-expected) > 1e-6 {
		t.Errorf("%s: expected %v, got %v", name, expected, v.Value)
	}
	if !v.Valid {
		t.Errorf("%s: expected valid value", name)
	}
}

// ============================================================
// Device Configuration Tests
// ============================================================

func TestDeviceConfiguration(t *testing.T) {
	tests := []struct {
		device DeviceID
		base   uint32
		prefix string
	}{
		{DeviceA, 0x6D0, "pd16_A"},
		{DeviceB, 0x6D8, "pd16_B"},
		{DeviceC, 0x6E0, "pd16_C"},
		{DeviceD, 0x6E8, "pd16_D"},
	}

	for _, tt := range tests {
		t.Run(tt.device.String(), func(t *testing.T) {
			p := New(tt.device)
			if p.Device() != tt.device {
				t.Errorf("Device mismatch: got %s", p.Device())
			}
			if p.BaseID() != tt.base {
				t.Errorf("BaseID: expected 0x%X, got 0x%X", tt.base, p.BaseID())
			}
			if p.Prefix() != tt.prefix {
				t.Errorf("Prefix: expected %q, got %q", tt.prefix, p.Prefix())
			}
		})
	}

	p := NewProtocol()
	if p.Device() != DeviceA {
		t.Errorf("Default device should be A, got %s", p.Device())
	}
	p.SetDevice(DeviceC)
	if p.BaseID() != 0x6E0 {
		t.Errorf("SetDevice(C): expected base 0x6E0, got 0x%X", p.BaseID())
	}
}

func TestParseDeviceID(t *testing.T) {
	for s, expected := range map[string]DeviceID{"A": DeviceA, "b": DeviceB, "C": DeviceC, "d": DeviceD} {
		got, err := ParseDeviceID(s)
		if err != nil || got != expected {
			t.Errorf("ParseDeviceID(%q) = %s, %v", s, got, err)
		}
	}
	for _, s := range []string{"", "E", "AB", "1"} {
		if _, err := ParseDeviceID(s); err == nil {
			t.Errorf("ParseDeviceID(%q): expected error", s)
		}
	}
}

func TestDeviceRangesDoNotOverlap(t *testing.T) {
	owners := make(map[uint32]DeviceID)
	for d := DeviceA; d <= DeviceD; d++ {
		p := New(d)
		for k := uint32(0); k < FramesPerDevice; k++ {
			id := p.BaseID() + k
			if prev, ok := owners[id]; ok {
				t.Fatalf("Frame 0x%X claimed by %s and %s", id, prev, d)
			}
			owners[id] = d

			got, ok := DeviceForFrame(id)
			if !ok || got != d {
				t.Errorf("DeviceForFrame(0x%X) = %s, %v; expected %s", id, got, ok, d)
			}
		}
	}

	for _, id := range []uint32{0x6CF, 0x6F0, 0x360} {
		if _, ok := DeviceForFrame(id); ok {
			t.Errorf("DeviceForFrame(0x%X) should not match", id)
		}
	}
}

func TestAccepts(t *testing.T) {
	for d := DeviceA; d <= DeviceD; d++ {
		p := New(d)
		base := p.BaseID()
		for k := 0; k < FramesPerDevice; k++ {
			if !p.Accepts(base + uint32(k)) {
				t.Errorf("%s: frame base+%d should be accepted", d, k)
			}
		}
		if p.Accepts(base - 1) {
			t.Errorf("%s: frame base-1 should be rejected", d)
		}
		if p.Accepts(base + 8) {
			t.Errorf("%s: frame base+8 should be rejected", d)
		}
		if p.FrameOffset(base+8) != -1 || p.FrameOffset(base+5) != 5 {
			t.Errorf("%s: FrameOffset mismatch", d)
		}
	}
}

// ============================================================
// Mux Byte Tests
// ============================================================

func TestUnpackMux(t *testing.T) {
	types := []struct {
		b        byte
		expected IOType
	}{
		{0b00000000, Output25A},
		{0b00100000, Output8A},
		{0b01000000, HalfBridge},
		{0b01100000, SpeedPulse},
		{0b10000000, AnalogVoltage},
	}
	for _, tt := range types {
		if got := UnpackType(tt.b); got != tt.expected {
			t.Errorf("UnpackType(%08b) = %s, expected %s", tt.b, got, tt.expected)
		}
	}

	if UnpackIndex(0b00000101) != 5 || UnpackIndex(0b00001111) != 15 || UnpackIndex(0b11110011) != 3 {
		t.Error("UnpackIndex mismatch")
	}
	if UnpackType(0x62) != SpeedPulse || UnpackIndex(0x62) != 2 {
		t.Error("0x62 should unpack to SPI index 2")
	}
}

func TestPackMux_Inverse(t *testing.T) {
	for ty := Output25A; ty <= AnalogVoltage; ty++ {
		for idx := uint8(0); idx <= 15; idx++ {
			b := PackMux(ty, idx)
			if UnpackType(b) != ty || UnpackIndex(b) != idx {
				t.Errorf("PackMux(%s, %d) = 0x%02X does not round trip", ty, idx, b)
			}
		}
	}
}

func TestIOTypeName(t *testing.T) {
	expected := map[IOType]string{
		Output25A:     "25A",
		Output8A:      "8A",
		HalfBridge:    "HBO",
		SpeedPulse:    "SPI",
		AnalogVoltage: "AVI",
		IOType(5):     "Unknown",
		IOType(7):     "Unknown",
	}
	for ty, name := range expected {
		if got := IOTypeName(ty); got != name {
			t.Errorf("IOTypeName(%d) = %q, expected %q", ty, got, name)
		}
	}
}

// ============================================================
// Decode Tests
// ============================================================

func TestDecode_IgnoresOtherFrames(t *testing.T) {
	p := New(DeviceA)

	tests := []struct {
		name  string
		frame *frame.Frame
	}{
		{"device B frame", testFrame(t, 0x6D8+3, "6000000000000000")},
		{"ECU frame", testFrame(t, 0x360, "0DAC000000000000")},
		{"empty payload", testFrame(t, 0x6D3, "")},
		{"invalid frame", frame.InvalidFrame(0x6D3)},
		{"unhandled offset", testFrame(t, 0x6D0, "6101138802EE03E8")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Decode(tt.frame); len(got) != 0 {
				t.Errorf("Expected no updates, got %v", got)
			}
		})
	}
}

func TestDecode_SpeedPulseInput(t *testing.T) {
	p := New(DeviceA)
	// Mux 0x61: SPI index 1, state on, 5000 mV, 75.0%, 1000 Hz
	m := toMap(p.Decode(testFrame(t, 0x6D3, "6101138802EE03E8")))

	if len(m) != 4 {
		t.Errorf("Expected 4 channels, got %d: %v", len(m), m)
	}
	expectValue(t, m, "pd16_A_SPI_1_state", 1)
	expectValue(t, m, "pd16_A_SPI_1_voltage", 5.0)
	expectValue(t, m, "pd16_A_SPI_1_dutyCycle", 75.0)
	expectValue(t, m, "pd16_A_SPI_1_frequency", 1000)

	if m["pd16_A_SPI_1_frequency"].Unit != "Hz" {
		t.Errorf("Frequency unit: got %q", m["pd16_A_SPI_1_frequency"].Unit)
	}
}

func TestDecode_AnalogVoltageInput(t *testing.T) {
	p := New(DeviceA)
	mux := PackMux(AnalogVoltage, 7)
	f := frame.NewFrame(0x6D3, []byte{mux, 0x00, 0x09, 0xC4, 0xFF, 0xFF, 0xFF, 0xFF})
	m := toMap(p.Decode(f))

	if len(m) != 2 {
		t.Errorf("Expected 2 channels, got %d: %v", len(m), m)
	}
	expectValue(t, m, "pd16_A_AVI_7_state", 0)
	expectValue(t, m, "pd16_A_AVI_7_voltage", 2.5)
}

func TestDecode_Output25A(t *testing.T) {
	p := New(DeviceA)
	m := toMap(p.Decode(testFrame(t, 0x6D4, "00502EE03A983253")))

	expectValue(t, m, "pd16_A_25A_0_load", 80)
	expectValue(t, m, "pd16_A_25A_0_voltage", 12.0)
	expectValue(t, m, "pd16_A_25A_0_currentLow", 15.0)
	expectValue(t, m, "pd16_A_25A_0_currentHigh", 0.05)
	expectValue(t, m, "pd16_A_25A_0_retries", 5)
	expectValue(t, m, "pd16_A_25A_0_pinState", 3)
}

func TestDecode_Output8A(t *testing.T) {
	p := New(DeviceA)
	// Mux 0x23: 8A index 3; status 0b00011010 -> retries 3, pin state 2
	m := toMap(p.Decode(testFrame(t, 0x6D4, "231A2EE003E86400")))
	expectValue(t, m, "pd16_A_8A_3_retries", 3)
	expectValue(t, m, "pd16_A_8A_3_pinState", 2)
	expectValue(t, m, "pd16_A_8A_3_voltage", 12.0)
	expectValue(t, m, "pd16_A_8A_3_current", 1.0)
	expectValue(t, m, "pd16_A_8A_3_load", 100)
}

func TestDecode_UnhandledIOType(t *testing.T) {
	p := New(DeviceA)
	// Half bridge outputs and input-only types on the output frame are not decoded
	if got := p.Decode(testFrame(t, 0x6D4, "4050000000000000")); len(got) != 0 {
		t.Errorf("Half bridge should not decode, got %v", got)
	}
	if got := p.Decode(testFrame(t, 0x6D3, "0050000000000000")); len(got) != 0 {
		t.Errorf("25A on input status should not decode, got %v", got)
	}
}

func TestDecode_ShortPayloads(t *testing.T) {
	p := New(DeviceA)

	tests := []struct {
		name     string
		payload  string
		expected []string
	}{
		{"mux only", "61", nil},
		{"state only", "6101", []string{"pd16_A_SPI_1_state"}},
		{"through voltage", "61011388", []string{"pd16_A_SPI_1_state", "pd16_A_SPI_1_voltage"}},
		{"through duty", "6101138802EE", []string{"pd16_A_SPI_1_dutyCycle", "pd16_A_SPI_1_state", "pd16_A_SPI_1_voltage"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updates := p.Decode(testFrame(t, 0x6D3, tt.payload))
			names := telemetry.SortedNames(updates)
			sort.Strings(tt.expected)
			if len(names) != len(tt.expected) {
				t.Fatalf("Expected %v, got %v", tt.expected, names)
			}
			for i := range names {
				if names[i] != tt.expected[i] {
					t.Errorf("Expected %v, got %v", tt.expected, names)
					break
				}
			}
		})
	}
}

func TestDecode_DeviceStatus(t *testing.T) {
	p := New(DeviceB)
	m := toMap(p.Decode(testFrame(t, 0x6DD, "10020F0300000000")))

	expectValue(t, m, "pd16_B_status", 1)
	expectValue(t, m, "pd16_B_firmwareVersion", 2.1503)

	// Status nibble alone
	m = toMap(p.Decode(testFrame(t, 0x6DD, "F0")))
	expectValue(t, m, "pd16_B_status", 15)
	if _, ok := m["pd16_B_firmwareVersion"]; ok {
		t.Error("Firmware version needs 4 bytes")
	}
}

// ============================================================
// Table Tests
// ============================================================

func TestLoadDefinition(t *testing.T) {
	logger, _ := test.NewNullLogger()
	p := New(DeviceA)
	p.SetLogger(logger)

	if p.IsLoaded() {
		t.Error("New protocol should use the built-in tables without being loaded")
	}
	before := p.Decode(testFrame(t, 0x6D3, "6101138802EE03E8"))

	p.LoadDefinition()
	if !p.IsLoaded() {
		t.Error("Protocol should be loaded")
	}
	after := p.Decode(testFrame(t, 0x6D3, "6101138802EE03E8"))

	if len(before) != len(after) {
		t.Errorf("Loaded tables should decode the same: %d vs %d", len(before), len(after))
	}
}

func TestChannelNames(t *testing.T) {
	p := New(DeviceC)
	names := p.ChannelNames()

	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}

	for _, want := range []string{
		"pd16_C_status",
		"pd16_C_firmwareVersion",
		"pd16_C_25A_0_currentHigh",
		"pd16_C_8A_15_load",
		"pd16_C_SPI_3_frequency",
		"pd16_C_AVI_9_voltage",
	} {
		if !set[want] {
			t.Errorf("ChannelNames missing %q", want)
		}
	}

	// Every decoded name is listed
	for _, u := range p.Decode(testFrame(t, 0x6E3, "6F01138802EE03E8")) {
		if !set[u.Name] {
			t.Errorf("Decoded name %q not in ChannelNames", u.Name)
		}
	}
}
