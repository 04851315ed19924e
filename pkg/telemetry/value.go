// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package telemetry defines the values that flow from protocol decoders to the
// channel router, the adapter contracts on either side of that flow, and the
// lock-free queue that carries updates between goroutines.
package telemetry

import "time"

// Value is a single decoded channel reading
type Value struct {
	Value     float64
	Unit      string
	Valid     bool
	Timestamp time.Time
}

// NewValue creates a valid reading stamped with the current time
func NewValue(value float64, unit string) Value {
	return Value{
		Value:     value,
		Unit:      unit,
		Valid:     true,
		Timestamp: time.Now(),
	}
}

// InvalidValue creates a reading that must not update router state
func InvalidValue(unit string) Value {
	return Value{Unit: unit, Timestamp: time.Now()}
}

// Update is a named channel reading produced by a decoder
type Update struct {
	Name  string
	Value Value
}

// NewUpdate creates a valid update for the named channel
func NewUpdate(name string, value float64, unit string) Update {
	return Update{Name: name, Value: NewValue(value, unit)}
}
