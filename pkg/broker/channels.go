// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package broker routes protocol channel updates onto the fixed set of
// standard dashboard channels.
package broker

import "fmt"

// StandardChannel is one of the dashboard channels a profile can map onto
type StandardChannel int

const (
	RPM StandardChannel = iota
	ThrottlePosition
	ManifoldPressure
	CoolantTemperature
	OilTemperature
	IntakeAirTemperature
	OilPressure
	FuelPressure
	FuelLevel
	AirFuelRatio
	BatteryVoltage
	VehicleSpeed
	Gear

	channelCount
)

type channelInfo struct {
	property string
	unit     string
}

var channels = [channelCount]channelInfo{
	RPM:                  {"rpm", "RPM"},
	ThrottlePosition:     {"throttlePosition", "%"},
	ManifoldPressure:     {"manifoldPressure", "kPa"},
	CoolantTemperature:   {"coolantTemperature", "°C"},
	OilTemperature:       {"oilTemperature", "°C"},
	IntakeAirTemperature: {"intakeAirTemperature", "°C"},
	OilPressure:          {"oilPressure", "kPa"},
	FuelPressure:         {"fuelPressure", "kPa"},
	FuelLevel:            {"fuelLevel", "%"},
	AirFuelRatio:         {"airFuelRatio", ""},
	BatteryVoltage:       {"batteryVoltage", "V"},
	VehicleSpeed:         {"vehicleSpeed", "km/h"},
	Gear:                 {"gear", ""},
}

var propertyToChannel = func() map[string]StandardChannel {
	m := make(map[string]StandardChannel, channelCount)
	for i, info := range channels {
		m[info.property] = StandardChannel(i)
	}
	return m
}()

// Valid reports whether c is a known channel
func (c StandardChannel) Valid() bool {
	return c >= 0 && c < channelCount
}

// PropertyName returns the profile name of the channel, e.g. "coolantTemperature"
func (c StandardChannel) PropertyName() string {
	if !c.Valid() {
		return ""
	}
	return channels[c].property
}

// NativeUnit returns the unit values are stored in
func (c StandardChannel) NativeUnit() string {
	if !c.Valid() {
		return ""
	}
	return channels[c].unit
}

// String implements fmt.Stringer
func (c StandardChannel) String() string {
	if !c.Valid() {
		return fmt.Sprintf("StandardChannel(%d)", int(c))
	}
	return channels[c].property
}

// ParseChannel looks up a channel by property name. Names are case sensitive.
func ParseChannel(property string) (StandardChannel, bool) {
	c, ok := propertyToChannel[property]
	return c, ok
}

// Channels returns every standard channel in declaration order
func Channels() []StandardChannel {
	all := make([]StandardChannel, channelCount)
	for i := range all {
		all[i] = StandardChannel(i)
	}
	return all
}
