// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package haltech

import "strings"

// Physical constants
const (
	KelvinOffset        = 273.15
	AtmosphericPressure = 101.325 // kPa
)

// ConversionKind selects the formula applied to a raw channel value
type ConversionKind int

const (
	Identity ConversionKind = iota
	DivideBy10
	DivideBy1000
	GaugePressure
	KelvinToCelsius
)

// String returns the conversion name
func (k ConversionKind) String() string {
	switch k {
	case Identity:
		return "identity"
	case DivideBy10:
		return "x / 10"
	case DivideBy1000:
		return "x / 1000"
	case GaugePressure:
		return "gauge pressure"
	case KelvinToCelsius:
		return "kelvin to celsius"
	default:
		return "unknown"
	}
}

// ParseConversion maps a definition formula string to a conversion kind.
// Matching is done on the lowercased, whitespace-collapsed formula.
func ParseConversion(formula string) ConversionKind {
	normalized := strings.ToLower(strings.Join(strings.Fields(formula), " "))

	switch {
	case normalized == "" || normalized == "x":
		return Identity
	case normalized == "x / 10":
		return DivideBy10
	case normalized == "x / 1000":
		return DivideBy1000
	case strings.Contains(normalized, "101.3"):
		return GaugePressure
	case strings.Contains(normalized, "/ 10"):
		// Unrecognized formulas that divide by ten
		return DivideBy10
	default:
		return Identity
	}
}

// conversionFor resolves the conversion for a channel entry. Kelvin units
// always convert to Celsius regardless of the formula text.
func conversionFor(units, formula string) ConversionKind {
	if units == "K" {
		return KelvinToCelsius
	}
	return ParseConversion(formula)
}

// Apply applies the conversion formula to a raw value
func (k ConversionKind) Apply(raw float64) float64 {
	switch k {
	case DivideBy10:
		return raw / 10
	case DivideBy1000:
		return raw / 1000
	case GaugePressure:
		return raw/10 - AtmosphericPressure
	case KelvinToCelsius:
		return raw/10 - KelvinOffset
	default:
		return raw
	}
}
