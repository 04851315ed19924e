// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frame

import "fmt"

// AnomalyType represents different types of frame anomalies
type AnomalyType int

const (
	AnomalyDataLength AnomalyType = iota
	AnomalyIDRange
	AnomalyRemoteFrame
	AnomalyErrorFrame
	AnomalyDecodeError
)

// String returns a short name for the anomaly type
func (a AnomalyType) String() string {
	switch a {
	case AnomalyDataLength:
		return "DATA_LENGTH"
	case AnomalyIDRange:
		return "ID_RANGE"
	case AnomalyRemoteFrame:
		return "REMOTE_FRAME"
	case AnomalyErrorFrame:
		return "ERROR_FRAME"
	case AnomalyDecodeError:
		return "DECODE_ERROR"
	default:
		return "UNKNOWN"
	}
}

// ValidationError represents a frame validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateFrame checks frame structure and reports anomalies.
// Returns a slice of validation errors (empty if the frame is usable).
func ValidateFrame(f *Frame) []ValidationError {
	errors := []ValidationError{}

	if f == nil {
		return []ValidationError{{
			Type:    AnomalyErrorFrame,
			Message: "nil frame",
			Details: map[string]interface{}{},
		}}
	}

	if f.DLC() < 0 || f.DLC() > MaxDataLength {
		errors = append(errors, ValidationError{
			Type:    AnomalyDataLength,
			Message: fmt.Sprintf("Data length %d exceeds %d bytes", f.DLC(), MaxDataLength),
			Details: map[string]interface{}{"length": f.DLC(), "max": MaxDataLength},
		})
	}

	if f.ID() > f.idMask() {
		errors = append(errors, ValidationError{
			Type:    AnomalyIDRange,
			Message: fmt.Sprintf("Frame id 0x%X out of range (max 0x%X)", f.ID(), f.idMask()),
			Details: map[string]interface{}{"id": f.ID(), "max": f.idMask(), "extended": f.IsExtended()},
		})
	}

	if f.IsRemote() {
		errors = append(errors, ValidationError{
			Type:    AnomalyRemoteFrame,
			Message: fmt.Sprintf("Remote frame 0x%X carries no data", f.ID()),
			Details: map[string]interface{}{"id": f.ID(), "dlc": f.DLC()},
		})
	}

	// Marked invalid for a reason not covered above (bus error report)
	if len(errors) == 0 && !f.IsValid() {
		errors = append(errors, ValidationError{
			Type:    AnomalyErrorFrame,
			Message: fmt.Sprintf("Error frame 0x%X", f.ID()),
			Details: map[string]interface{}{"id": f.ID()},
		})
	}

	return errors
}
