// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frame

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

// ============================================================
// Test Helpers
// ============================================================

// decodeLine feeds a full line through the decoder and returns the last
// frame and error produced
func decodeLine(d *SLCANDecoder, line string) (*Frame, error) {
	var (
		f   *Frame
		err error
	)
	for i := 0; i < len(line); i++ {
		got, gotErr := d.DecodeByte(line[i])
		if got != nil {
			f = got
		}
		if gotErr != nil {
			err = gotErr
		}
	}
	return f, err
}

// ============================================================
// Frame Tests
// ============================================================

func TestNewFrame(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	f := NewFrame(0x360, data)

	if f.ID() != 0x360 {
		t.Errorf("ID mismatch: expected 0x360, got 0x%X", f.ID())
	}
	if f.Len() != 3 || f.DLC() != 3 {
		t.Errorf("Length mismatch: expected 3, got len=%d dlc=%d", f.Len(), f.DLC())
	}
	if f.IsExtended() {
		t.Error("11-bit id should not be extended")
	}
	if !f.IsValid() {
		t.Error("Frame should be valid")
	}

	// Payload is copied
	data[0] = 0xFF
	if f.Data()[0] != 0x01 {
		t.Error("Frame payload should not alias the caller's slice")
	}
}

func TestNewFrame_ExtendedByID(t *testing.T) {
	f := NewFrame(0x18FF50E5, []byte{0x00})
	if !f.IsExtended() {
		t.Error("29-bit id should be extended")
	}
	if !f.IsValid() {
		t.Error("Extended frame should be valid")
	}
	if f.Flags() != FlagExtended {
		t.Errorf("Flags mismatch: expected %d, got %d", FlagExtended, f.Flags())
	}
}

func TestFrame_Validity(t *testing.T) {
	tests := []struct {
		name  string
		frame *Frame
		valid bool
	}{
		{"empty payload", NewFrame(0x100, nil), true},
		{"full payload", NewFrame(0x100, make([]byte, 8)), true},
		{"oversize payload", NewFrame(0x100, make([]byte, 9)), false},
		{"extended id max", NewExtendedFrame(ExtendedIDMask, nil), true},
		{"extended id overflow", NewExtendedFrame(ExtendedIDMask+1, nil), false},
		{"remote frame", NewRemoteFrame(0x100, 4, false), true},
		{"remote bad length", NewRemoteFrame(0x100, 9, false), false},
		{"invalid frame", InvalidFrame(0x100), false},
		{"nil frame", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.frame.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, expected %v", got, tt.valid)
			}
		})
	}
}

func TestNewRemoteFrame(t *testing.T) {
	f := NewRemoteFrame(0x123, 4, false)
	if !f.IsRemote() {
		t.Error("Expected remote frame")
	}
	if f.Len() != 0 {
		t.Errorf("Remote frame should carry no data, got %d bytes", f.Len())
	}
	if f.DLC() != 4 {
		t.Errorf("DLC mismatch: expected 4, got %d", f.DLC())
	}
	if f.Flags() != FlagRemote {
		t.Errorf("Flags mismatch: expected %d, got %d", FlagRemote, f.Flags())
	}
}

// ============================================================
// Validator Tests
// ============================================================

func TestValidateFrame_Valid(t *testing.T) {
	errs := ValidateFrame(NewFrame(0x360, []byte{1, 2, 3, 4}))
	if len(errs) != 0 {
		t.Errorf("Expected no validation errors, got %v", errs)
	}
}

func TestValidateFrame_Anomalies(t *testing.T) {
	tests := []struct {
		name     string
		frame    *Frame
		expected AnomalyType
	}{
		{"oversize", NewFrame(0x100, make([]byte, 12)), AnomalyDataLength},
		{"id range", NewExtendedFrame(0x20000000, nil), AnomalyIDRange},
		{"remote", NewRemoteFrame(0x100, 2, false), AnomalyRemoteFrame},
		{"error frame", InvalidFrame(0x100), AnomalyErrorFrame},
		{"nil", nil, AnomalyErrorFrame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateFrame(tt.frame)
			if len(errs) == 0 {
				t.Fatal("Expected validation error")
			}
			if errs[0].Type != tt.expected {
				t.Errorf("Anomaly mismatch: expected %s, got %s", tt.expected, errs[0].Type)
			}
			if errs[0].Error() == "" {
				t.Error("Validation error should carry a message")
			}
		})
	}
}

// ============================================================
// SLCAN Decoder Tests
// ============================================================

func TestSLCANDecoder_StandardFrame(t *testing.T) {
	d := NewSLCANDecoder()

	f, err := decodeLine(d, "t3608DEADBEEF00112233\r")
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if f == nil {
		t.Fatal("Expected frame, got nil")
	}
	if f.ID() != 0x360 {
		t.Errorf("ID mismatch: expected 0x360, got 0x%X", f.ID())
	}
	expected := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x11, 0x22, 0x33}
	if !bytes.Equal(f.Data(), expected) {
		t.Errorf("Data mismatch: expected % X, got % X", expected, f.Data())
	}
	if f.IsExtended() || f.IsRemote() {
		t.Error("Expected standard data frame")
	}
}

func TestSLCANDecoder_ExtendedFrame(t *testing.T) {
	d := NewSLCANDecoder()

	f, err := decodeLine(d, "T18FF50E52abcd\r")
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if f == nil {
		t.Fatal("Expected frame, got nil")
	}
	if f.ID() != 0x18FF50E5 || !f.IsExtended() {
		t.Errorf("Expected extended id 0x18FF50E5, got 0x%X (extended=%v)", f.ID(), f.IsExtended())
	}
	if !bytes.Equal(f.Data(), []byte{0xAB, 0xCD}) {
		t.Errorf("Data mismatch: got % X", f.Data())
	}
}

func TestSLCANDecoder_RemoteFrame(t *testing.T) {
	d := NewSLCANDecoder()

	f, err := decodeLine(d, "r1234\r")
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if f == nil || !f.IsRemote() {
		t.Fatal("Expected remote frame")
	}
	if f.ID() != 0x123 || f.DLC() != 4 {
		t.Errorf("Expected id 0x123 dlc 4, got 0x%X dlc %d", f.ID(), f.DLC())
	}
}

func TestSLCANDecoder_Timestamp(t *testing.T) {
	d := NewSLCANDecoder()

	f, err := decodeLine(d, "t1002AABB1F40\r")
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if f == nil || !bytes.Equal(f.Data(), []byte{0xAA, 0xBB}) {
		t.Fatal("Expected frame with trailing timestamp to decode")
	}

	_, err = decodeLine(d, "t1002AABB1F\r")
	if err == nil {
		t.Error("Expected error for truncated timestamp")
	}
}

func TestSLCANDecoder_IgnoresAcknowledgements(t *testing.T) {
	d := NewSLCANDecoder()

	for _, line := range []string{"\r", "z\r", "V1013\r", "\n"} {
		f, err := decodeLine(d, line)
		if f != nil || err != nil {
			t.Errorf("Line %q: expected no frame and no error, got %v, %v", line, f, err)
		}
	}
}

func TestSLCANDecoder_BellByte(t *testing.T) {
	d := NewSLCANDecoder()

	d.DecodeByte('t')
	_, err := d.DecodeByte(BellByte)
	if !errors.Is(err, ErrAdapterError) {
		t.Errorf("Expected ErrAdapterError, got %v", err)
	}

	// Decoder is back in idle state
	f, err := decodeLine(d, "t1000\r")
	if err != nil || f == nil {
		t.Errorf("Expected frame after bell, got %v, %v", f, err)
	}
}

func TestSLCANDecoder_Resync(t *testing.T) {
	d := NewSLCANDecoder()

	tests := []string{
		"t36G1AA\r",   // bad id digit
		"t3609AA\r",   // bad length digit
		"t3602AZBB\r", // bad data digit
		"t3602AA\r",   // truncated data
		"t36\r",       // truncated id
	}

	for _, line := range tests {
		_, err := decodeLine(d, line)
		if err == nil {
			t.Errorf("Line %q: expected error", line)
		}

		// The next well-formed line decodes
		f, err := decodeLine(d, "t1231FF\r")
		if err != nil || f == nil {
			t.Fatalf("After %q: expected resync, got %v, %v", line, f, err)
		}
		if f.ID() != 0x123 {
			t.Errorf("After %q: ID mismatch 0x%X", line, f.ID())
		}
	}
}

func TestSLCANDecoder_Reset(t *testing.T) {
	d := NewSLCANDecoder()

	d.DecodeByte('t')
	d.DecodeByte('1')
	if len(d.GetRawBytes()) != 2 {
		t.Errorf("GetRawBytes should return accumulated bytes, got %d", len(d.GetRawBytes()))
	}

	d.Reset()
	if len(d.GetRawBytes()) != 0 {
		t.Error("Reset should clear raw bytes")
	}

	f, err := d.DecodeByte(CR)
	if f != nil || err != nil {
		t.Error("After reset, a bare CR should be ignored")
	}
}

// ============================================================
// SLCAN Encoder Tests
// ============================================================

func TestEncodeSLCAN(t *testing.T) {
	tests := []struct {
		name     string
		frame    *Frame
		expected string
	}{
		{"standard", NewFrame(0x360, []byte{0x0D, 0xAC}), "t36020DAC\r"},
		{"empty", NewFrame(0x001, nil), "t0010\r"},
		{"extended", NewExtendedFrame(0x18FF50E5, []byte{0x01}), "T18FF50E5101\r"},
		{"remote", NewRemoteFrame(0x7FF, 8, false), "r7FF8\r"},
		{"extended remote", NewRemoteFrame(0x100, 0, true), "R000001000\r"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := EncodeSLCAN(tt.frame)
			if err != nil {
				t.Fatalf("Encode error: %v", err)
			}
			if string(line) != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, string(line))
			}
		})
	}
}

func TestEncodeSLCAN_Invalid(t *testing.T) {
	if _, err := EncodeSLCAN(NewFrame(0x100, make([]byte, 9))); err == nil {
		t.Error("Expected error for oversize payload")
	}
	if _, err := EncodeSLCAN(NewExtendedFrame(0x20000000, nil)); err == nil {
		t.Error("Expected error for out of range id")
	}
	if _, err := EncodeSLCAN(nil); err == nil {
		t.Error("Expected error for nil frame")
	}
}

func TestSLCAN_RoundTrip(t *testing.T) {
	frames := []*Frame{
		NewFrame(0x360, []byte{0x0D, 0xAC, 0x00, 0x00, 0x01, 0x02, 0x03, 0x04}),
		NewFrame(0x6D3, []byte{0x61, 0x01}),
		NewExtendedFrame(0x1ABCDEF0, []byte{0xFF}),
		NewFrame(0x000, nil),
	}

	d := NewSLCANDecoder()
	for _, in := range frames {
		out, err := decodeLine(d, string(EncodeFrame(in)))
		if err != nil {
			t.Fatalf("Decode error for 0x%X: %v", in.ID(), err)
		}
		if out == nil {
			t.Fatalf("Expected frame for 0x%X", in.ID())
		}
		if out.ID() != in.ID() || out.IsExtended() != in.IsExtended() || !bytes.Equal(out.Data(), in.Data()) {
			t.Errorf("Round trip mismatch: in 0x%X % X, out 0x%X % X", in.ID(), in.Data(), out.ID(), out.Data())
		}
	}
}

func TestOpenSequence(t *testing.T) {
	seq, err := OpenSequence(500000)
	if err != nil {
		t.Fatalf("OpenSequence error: %v", err)
	}
	if string(seq) != "C\rS6\rO\r" {
		t.Errorf("Unexpected open sequence %q", string(seq))
	}

	if _, err := BitrateCommand(12345); err == nil {
		t.Error("Expected error for unsupported bitrate")
	}
}

// ============================================================
// Capture Tests
// ============================================================

func TestCapture_RoundTrip(t *testing.T) {
	ts := time.UnixMicro(1736000000123456)
	frames := []*Frame{
		NewFrameWithFlags(0x360, 0, []byte{0x0D, 0xAC}, false, false, ts),
		NewFrameWithFlags(0x18FF50E5, 0, []byte{0x01, 0x02, 0x03}, true, false, ts.Add(time.Millisecond)),
		NewFrameWithFlags(0x100, 4, nil, false, true, ts.Add(2*time.Millisecond)),
		NewFrameWithFlags(0x6D5, 0, nil, false, false, ts.Add(3*time.Millisecond)),
	}

	var buf bytes.Buffer
	w := NewCaptureWriter(&buf)
	for _, f := range frames {
		if err := w.Write(f); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}
	if w.Count() != len(frames) {
		t.Errorf("Count mismatch: expected %d, got %d", len(frames), w.Count())
	}

	got, err := NewCaptureReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll error: %v", err)
	}
	if len(got) != len(frames) {
		t.Fatalf("Expected %d frames, got %d", len(frames), len(got))
	}

	for i, in := range frames {
		out := got[i]
		if out.ID() != in.ID() {
			t.Errorf("Frame %d: ID mismatch 0x%X != 0x%X", i, out.ID(), in.ID())
		}
		if out.Flags() != in.Flags() {
			t.Errorf("Frame %d: flags mismatch %d != %d", i, out.Flags(), in.Flags())
		}
		if out.DLC() != in.DLC() {
			t.Errorf("Frame %d: DLC mismatch %d != %d", i, out.DLC(), in.DLC())
		}
		if !bytes.Equal(out.Data(), in.Data()) {
			t.Errorf("Frame %d: data mismatch % X != % X", i, out.Data(), in.Data())
		}
		if !out.Timestamp().Equal(in.Timestamp()) {
			t.Errorf("Frame %d: timestamp mismatch %v != %v", i, out.Timestamp(), in.Timestamp())
		}
	}
}

func TestCaptureReader_EOF(t *testing.T) {
	r := NewCaptureReader(bytes.NewReader(nil))
	if _, err := r.Read(); !errors.Is(err, io.EOF) {
		t.Errorf("Expected io.EOF on empty stream, got %v", err)
	}
}

func TestCaptureWriter_RejectsOversize(t *testing.T) {
	var buf bytes.Buffer
	if err := NewCaptureWriter(&buf).Write(NewFrame(0x100, make([]byte, 9))); err == nil {
		t.Error("Expected error for oversize frame")
	}
}

// ============================================================
// candump Tests
// ============================================================

func TestParseCandumpLine(t *testing.T) {
	entry, err := ParseCandumpLine("(1436509052.249713) vcan0 360#0DAC000000000000")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if entry.Interface != "vcan0" {
		t.Errorf("Interface mismatch: got %q", entry.Interface)
	}
	if entry.Frame.ID() != 0x360 {
		t.Errorf("ID mismatch: expected 0x360, got 0x%X", entry.Frame.ID())
	}
	if entry.Frame.Len() != 8 {
		t.Errorf("Length mismatch: expected 8, got %d", entry.Frame.Len())
	}
	if entry.Frame.Data()[0] != 0x0D || entry.Frame.Data()[1] != 0xAC {
		t.Errorf("Data mismatch: got % X", entry.Frame.Data())
	}
	if entry.Timestamp.Unix() != 1436509052 || entry.Timestamp.Nanosecond() != 249713000 {
		t.Errorf("Timestamp mismatch: got %v", entry.Timestamp)
	}
}

func TestParseCandumpLine_Invalid(t *testing.T) {
	tests := []string{
		"",
		"vcan0 360#00",
		"1436509052.249713 vcan0 360#00",
		"(1436509052) vcan0 360#00",
		"(1436509052.249713) vcan0 360-00",
		"(abc.def) vcan0 360#00",
	}

	for _, line := range tests {
		if _, err := ParseCandumpLine(line); err == nil {
			t.Errorf("Line %q: expected error", line)
		}
	}
}

func TestCandump_RoundTrip(t *testing.T) {
	f := NewFrameWithFlags(0x6D3, 0, []byte{0x61, 0x01, 0x13, 0x88}, false, false, time.Unix(1700000000, 5000))
	line := FormatCandumpLine("can0", f)

	entry, err := ParseCandumpLine(line)
	if err != nil {
		t.Fatalf("Parse error for %q: %v", line, err)
	}
	if entry.Frame.ID() != f.ID() || !bytes.Equal(entry.Frame.Data(), f.Data()) {
		t.Errorf("Round trip mismatch for %q", line)
	}
	if !entry.Timestamp.Equal(f.Timestamp()) {
		t.Errorf("Timestamp mismatch: %v != %v", entry.Timestamp, f.Timestamp())
	}
}

func TestReadCandump(t *testing.T) {
	log := strings.Join([]string{
		"# header",
		"(1436509052.249713) vcan0 360#0DAC000000000000",
		"garbage",
		"",
		"(1436509052.259713) vcan0 361#0102",
	}, "\n")

	entries, skipped, err := ReadCandump(strings.NewReader(log))
	if err != nil {
		t.Fatalf("ReadCandump error: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("Expected 2 entries, got %d", len(entries))
	}
	if skipped != 1 {
		t.Errorf("Expected 1 skipped line, got %d", skipped)
	}
}
