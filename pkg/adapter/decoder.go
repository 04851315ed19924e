// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package adapter

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/devdash/pkg/frame"
	"github.com/Thermoquad/devdash/pkg/haltech"
	"github.com/Thermoquad/devdash/pkg/pd16"
	"github.com/Thermoquad/devdash/pkg/telemetry"
)

// Decoder runs the Haltech decoder and one PD16 decoder per configured
// device over each frame
type Decoder struct {
	haltech *haltech.Protocol
	pd16    []*pd16.Protocol
}

// NewDecoder loads the Haltech definition at path, or the bundled definition
// when path is empty, and a PD16 decoder for each device
func NewDecoder(path string, devices []pd16.DeviceID, logger *logrus.Logger) (*Decoder, error) {
	d := &Decoder{haltech: haltech.NewProtocol()}
	if logger != nil {
		d.haltech.SetLogger(logger)
	}

	var err error
	if path == "" {
		err = d.haltech.LoadDefault()
	} else {
		err = d.haltech.LoadFile(path)
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[pd16.DeviceID]bool)
	for _, id := range devices {
		if seen[id] {
			continue
		}
		seen[id] = true

		p := pd16.New(id)
		if logger != nil {
			p.SetLogger(logger)
		}
		p.LoadDefinition()
		d.pd16 = append(d.pd16, p)
	}

	return d, nil
}

// Decode returns every channel update produced by any decoder
func (d *Decoder) Decode(f *frame.Frame) []telemetry.Update {
	updates := d.haltech.Decode(f)
	for _, p := range d.pd16 {
		if p.Accepts(f.ID()) {
			updates = append(updates, p.Decode(f)...)
		}
	}
	return updates
}

// Haltech returns the Haltech decoder
func (d *Decoder) Haltech() *haltech.Protocol {
	return d.haltech
}

// PD16 returns the PD16 decoders in configuration order
func (d *Decoder) PD16() []*pd16.Protocol {
	return d.pd16
}

// ChannelNames returns every channel name the decoders can produce, sorted
func (d *Decoder) ChannelNames() []string {
	names := d.haltech.ChannelNames()
	for _, p := range d.pd16 {
		names = append(names, p.ChannelNames()...)
	}
	sort.Strings(names)
	return names
}

// Knows reports whether any decoder owns the frame id
func (d *Decoder) Knows(id uint32) bool {
	if _, ok := d.haltech.Definition(id); ok {
		return true
	}
	for _, p := range d.pd16 {
		if p.Accepts(id) {
			return true
		}
	}
	return false
}
