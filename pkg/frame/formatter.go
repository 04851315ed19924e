// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frame

import (
	"fmt"
	"strings"
)

// FormatFrame formats a frame into a human-readable line
func FormatFrame(f *Frame) string {
	timestamp := f.Timestamp().Format("15:04:05.000")

	var kind string
	switch {
	case !f.IsValid():
		kind = " ERR"
	case f.IsRemote():
		kind = " RTR"
	}

	return fmt.Sprintf("[%s] %s [%d]%s %s", timestamp, FormatID(f), f.DLC(), kind, FormatData(f.Data()))
}

// FormatID formats a frame id as 3 hex digits for standard ids and 8 for
// extended ids
func FormatID(f *Frame) string {
	if f.IsExtended() {
		return fmt.Sprintf("0x%08X", f.ID())
	}
	return fmt.Sprintf("0x%03X", f.ID())
}

// FormatData formats payload bytes as space-separated hex
func FormatData(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}
