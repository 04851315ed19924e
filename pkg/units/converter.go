// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package units

import "math"

// Conversion factors
const (
	// Pressure
	KPaToPSI  = 0.145038
	KPaToBar  = 0.01
	KPaToInHg = 0.2953
	PSIToBar  = 0.0689476
	PSIToInHg = 2.03602
	BarToInHg = 29.53

	// Speed
	KmhToMph = 0.621371
	KmhToMs  = 1.0 / 3.6
	MphToMs  = 0.44704

	// Distance
	KmToMi = 0.621371
	KmToM  = 1000.0
	KmToFt = 3280.84
	MiToM  = 1609.34
	MiToFt = 5280.0
	MToFt  = 3.28084
	MToMm  = 1000.0
	MToIn  = 39.3701
	FtToIn = 12.0
	MmToIn = 1.0 / 25.4
	InToMm = 25.4

	// Volume
	LToGalUS = 0.264172
	LToGalUK = 0.219969
	LToMl    = 1000.0

	// Temperature
	kelvinOffset = 273.15
)

// Unit identifiers understood by the converter
const (
	Kelvin     = "K"
	Celsius    = "C"
	Fahrenheit = "F"

	KPa  = "kPa"
	PSI  = "psi"
	Bar  = "bar"
	InHg = "inHg"

	Kmh = "km/h"
	Mph = "mph"
	Ms  = "m/s"

	Km = "km"
	Mi = "mi"
	M  = "m"
	Ft = "ft"
	Mm = "mm"
	In = "in"

	Rad = "rad"
	Deg = "deg"

	Liter  = "L"
	Gallon = "gal"
	GalUS  = "gal_us"
	GalUK  = "gal_uk"
	Milli  = "ml"
)

// aliases maps display spellings onto table keys
var aliases = map[string]string{
	"°C":  Celsius,
	"°F":  Fahrenheit,
	"°K":  Kelvin,
	"kph": Kmh,
	"kmh": Kmh,
}

type pair struct {
	from string
	to   string
}

// Converter converts scalar values between units.
// The table is built once by NewConverter and never modified.
type Converter struct {
	table map[pair]func(float64) float64
}

// NewConverter creates a converter with the default conversion table
func NewConverter() *Converter {
	c := &Converter{table: make(map[pair]func(float64) float64)}
	c.registerTemperature()
	c.registerPressure()
	c.registerSpeed()
	c.registerDistance()
	c.registerAngle()
	c.registerVolume()
	return c
}

// Convert converts value from one unit to another.
// Same-unit pairs are identity. Unregistered pairs return value unchanged;
// use CanConvert to detect them.
func (c *Converter) Convert(value float64, from, to string) float64 {
	from, to = normalize(from), normalize(to)
	if from == to {
		return value
	}
	if fn, ok := c.table[pair{from, to}]; ok {
		return fn(value)
	}
	return value
}

// CanConvert reports whether a conversion between the two units is registered
func (c *Converter) CanConvert(from, to string) bool {
	from, to = normalize(from), normalize(to)
	if from == to {
		return true
	}
	_, ok := c.table[pair{from, to}]
	return ok
}

func normalize(unit string) string {
	if alias, ok := aliases[unit]; ok {
		return alias
	}
	return unit
}

// register adds both directions of a conversion
func (c *Converter) register(a, b string, forward, reverse func(float64) float64) {
	c.table[pair{a, b}] = forward
	c.table[pair{b, a}] = reverse
}

// registerFactor adds a linear conversion a*factor = b
func (c *Converter) registerFactor(a, b string, factor float64) {
	c.register(a, b,
		func(v float64) float64 { return v * factor },
		func(v float64) float64 { return v / factor },
	)
}

func (c *Converter) registerTemperature() {
	c.register(Kelvin, Celsius,
		func(v float64) float64 { return v - kelvinOffset },
		func(v float64) float64 { return v + kelvinOffset },
	)
	c.register(Celsius, Fahrenheit,
		func(v float64) float64 { return v*9.0/5.0 + 32.0 },
		func(v float64) float64 { return (v - 32.0) * 5.0 / 9.0 },
	)
	c.register(Kelvin, Fahrenheit,
		func(v float64) float64 { return (v-kelvinOffset)*9.0/5.0 + 32.0 },
		func(v float64) float64 { return (v-32.0)*5.0/9.0 + kelvinOffset },
	)
}

func (c *Converter) registerPressure() {
	c.registerFactor(KPa, PSI, KPaToPSI)
	c.registerFactor(KPa, Bar, KPaToBar)
	c.registerFactor(KPa, InHg, KPaToInHg)
	c.registerFactor(PSI, Bar, PSIToBar)
	c.registerFactor(PSI, InHg, PSIToInHg)
	c.registerFactor(Bar, InHg, BarToInHg)
}

func (c *Converter) registerSpeed() {
	c.registerFactor(Kmh, Mph, KmhToMph)
	c.registerFactor(Kmh, Ms, KmhToMs)
	c.registerFactor(Mph, Ms, MphToMs)
}

func (c *Converter) registerDistance() {
	c.registerFactor(Km, Mi, KmToMi)
	c.registerFactor(Km, M, KmToM)
	c.registerFactor(Km, Ft, KmToFt)
	c.registerFactor(Mi, M, MiToM)
	c.registerFactor(Mi, Ft, MiToFt)
	c.registerFactor(M, Ft, MToFt)
	c.registerFactor(M, Mm, MToMm)
	c.registerFactor(M, In, MToIn)
	c.registerFactor(Ft, In, FtToIn)
	c.register(Mm, In,
		func(v float64) float64 { return v * MmToIn },
		func(v float64) float64 { return v * InToMm },
	)
}

func (c *Converter) registerAngle() {
	c.register(Rad, Deg,
		func(v float64) float64 { return v * 180.0 / math.Pi },
		func(v float64) float64 { return v * math.Pi / 180.0 },
	)
}

func (c *Converter) registerVolume() {
	c.registerFactor(Liter, Gallon, LToGalUS)
	c.registerFactor(Liter, GalUS, LToGalUS)
	c.registerFactor(Liter, GalUK, LToGalUK)
	c.registerFactor(Liter, Milli, LToMl)
}
