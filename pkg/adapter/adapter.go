// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package adapter implements the protocol adapters that feed the broker: the
// Haltech CAN adapter, the simulator, and the factory that builds them from
// profiles and configuration.
package adapter

// FrameMetrics receives per-frame counters
type FrameMetrics interface {
	FrameReceived()
	FrameDecoded()
	FrameUnknown()
	FrameInvalid()
}

type nopFrameMetrics struct{}

func (nopFrameMetrics) FrameReceived() {}
func (nopFrameMetrics) FrameDecoded() {}
func (nopFrameMetrics) FrameUnknown() {}
func (nopFrameMetrics) FrameInvalid() {}
