// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build linux

package source

import (
	"bytes"
	"testing"

	"github.com/brutella/can"

	"github.com/Thermoquad/devdash/pkg/frame"
)

func TestFromBrutella(t *testing.T) {
	tests := []struct {
		name     string
		in       can.Frame
		id       uint32
		extended bool
		remote   bool
		valid    bool
		data     []byte
	}{
		{
			name:  "standard",
			in:    can.Frame{ID: 0x360, Length: 2, Data: [8]uint8{0x0D, 0xAC}},
			id:    0x360,
			valid: true,
			data:  []byte{0x0D, 0xAC},
		},
		{
			name:     "extended",
			in:       can.Frame{ID: 0x18FEF100 | effFlag, Length: 1, Data: [8]uint8{0x42}},
			id:       0x18FEF100,
			extended: true,
			valid:    true,
			data:     []byte{0x42},
		},
		{
			name:   "remote",
			in:     can.Frame{ID: 0x123 | rtrFlag, Length: 4},
			id:     0x123,
			remote: true,
			valid:  true,
			data:   []byte{},
		},
		{
			name:  "error frame",
			in:    can.Frame{ID: 0x004 | errFlag, Length: 8},
			id:    0x004,
			valid: false,
		},
		{
			name:  "oversize length clamped",
			in:    can.Frame{ID: 0x100, Length: 15},
			id:    0x100,
			valid: true,
			data:  make([]byte, 8),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := fromBrutella(tt.in)
			if f.ID() != tt.id || f.IsValid() != tt.valid {
				t.Fatalf("got id 0x%X valid=%v, want 0x%X valid=%v", f.ID(), f.IsValid(), tt.id, tt.valid)
			}
			if !tt.valid {
				return
			}
			if f.IsExtended() != tt.extended || f.IsRemote() != tt.remote {
				t.Errorf("extended=%v remote=%v", f.IsExtended(), f.IsRemote())
			}
			if !bytes.Equal(f.Data(), tt.data) {
				t.Errorf("data = %X, want %X", f.Data(), tt.data)
			}
		})
	}
}

func TestToBrutella(t *testing.T) {
	cf, err := toBrutella(frame.NewExtendedFrame(0x6D5, []byte{1, 2, 3}))
	if err != nil {
		t.Fatalf("toBrutella: %v", err)
	}
	if cf.ID != 0x6D5|effFlag || cf.Length != 3 || cf.Data[2] != 3 {
		t.Errorf("unexpected frame %+v", cf)
	}

	cf, err = toBrutella(frame.NewRemoteFrame(0x360, 8, false))
	if err != nil {
		t.Fatalf("toBrutella: %v", err)
	}
	if cf.ID != 0x360|rtrFlag || cf.Length != 8 {
		t.Errorf("unexpected remote frame %+v", cf)
	}

	if _, err := toBrutella(frame.InvalidFrame(0x360)); err == nil {
		t.Error("expected error for invalid frame")
	}

	// Round trip
	in := frame.NewFrame(0x3E0, []byte{0x0E, 0x30, 0x0E, 0x10})
	cf, _ = toBrutella(in)
	out := fromBrutella(cf)
	if out.ID() != in.ID() || !bytes.Equal(out.Data(), in.Data()) {
		t.Errorf("round trip: %s != %s", frame.FormatFrame(out), frame.FormatFrame(in))
	}
}
