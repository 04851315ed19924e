// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"fmt"
	"sort"
	"strings"
)

// FormatValue formats a reading with its unit
func FormatValue(v Value) string {
	if !v.Valid {
		return "---"
	}
	if v.Unit == "" {
		return fmt.Sprintf("%.2f", v.Value)
	}
	return fmt.Sprintf("%.2f %s", v.Value, v.Unit)
}

// FormatUpdate formats a single update as "name = value unit"
func FormatUpdate(u Update) string {
	return fmt.Sprintf("%s = %s", u.Name, FormatValue(u.Value))
}

// FormatUpdates formats decoder output as an indented block, one channel per line
func FormatUpdates(updates []Update) string {
	if len(updates) == 0 {
		return ""
	}

	var b strings.Builder
	for _, u := range updates {
		b.WriteString("  ")
		b.WriteString(FormatUpdate(u))
		b.WriteString("\n")
	}
	return b.String()
}

// SortedNames returns the update names in lexical order
func SortedNames(updates []Update) []string {
	names := make([]string, 0, len(updates))
	for _, u := range updates {
		names = append(names, u.Name)
	}
	sort.Strings(names)
	return names
}
