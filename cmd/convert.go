// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/devdash/pkg/units"
)

var convertCmd = &cobra.Command{
	Use:   "convert <value> <from> <to>",
	Short: "Convert a value between units",
	Long: `Convert a value with the same unit table the dashboard uses.

Supported quantities: temperature (K, C, F), pressure (kPa, psi, bar, inHg),
speed (km/h, mph, m/s), distance (km, mi, m, ft, mm, in), angle (rad, deg)
and volume (L, gal, gal_us, gal_uk, ml).

Examples:
  devdash convert 90 C F
  devdash convert 250 kPa psi`,
	Args: cobra.ExactArgs(3),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	value, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid value %q: %w", args[0], err)
	}
	from, to := args[1], args[2]

	c := units.NewConverter()
	if !c.CanConvert(from, to) {
		return fmt.Errorf("cannot convert %s to %s", from, to)
	}

	fmt.Printf("%g %s = %.4f %s\n", value, from, c.Convert(value, from, to), to)
	return nil
}
