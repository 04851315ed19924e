// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build !linux

package source

import "fmt"

// OpenSocketCAN is only available on Linux
func OpenSocketCAN(ifname string) (Source, error) {
	return nil, fmt.Errorf("SocketCAN %s: %w", ifname, ErrNotSupported)
}
