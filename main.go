// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// devdash - CAN telemetry dashboard backend
//
// Decodes Haltech ECU and PD16 frames from SocketCAN, SLCAN or capture files
// and routes them onto standard dashboard channels.

package main

import (
	"os"

	"github.com/Thermoquad/devdash/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
