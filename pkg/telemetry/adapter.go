// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

// Sink receives events from an adapter. ChannelUpdated is called on the
// adapter's producer goroutine and must not block.
type Sink interface {
	ChannelUpdated(name string, value Value)
	ConnectionStateChanged(connected bool)
	ErrorOccurred(err error)
}

// Adapter is a protocol adapter that produces channel updates
type Adapter interface {
	// Start begins producing updates into sink
	Start(sink Sink) error
	// Stop cancels the adapter's producers. Safe to call more than once.
	Stop()
	IsRunning() bool
	// Channel returns the last value seen for a protocol channel
	Channel(name string) (Value, bool)
	// AvailableChannels returns every protocol channel seen so far
	AvailableChannels() []string
	Name() string
}
