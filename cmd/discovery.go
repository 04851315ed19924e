// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/devdash/pkg/frame"
	"github.com/Thermoquad/devdash/pkg/haltech"
	"github.com/Thermoquad/devdash/pkg/pd16"
)

var (
	discoveryTimeout int
)

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Take a census of the frames on the bus",
	Long: `Listen to the bus for a period and report every frame id seen, which of
them the Haltech definition describes, and which PD16 devices are present.

Unlike the other commands, every PD16 device id (A-D) is detected regardless
of --pd16, so the output tells you which devices to configure.

Examples:
  devdash discovery --iface can0
  devdash discovery --port /dev/ttyACM0 --timeout 10

Exit codes:
  0 - At least one frame seen
  1 - No frames seen before timeout
  2 - Connection error`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().IntVar(&discoveryTimeout, "timeout", 5, "Listen period in seconds")
}

// busCensus counts frames per id
type busCensus struct {
	mu     sync.Mutex
	counts map[uint32]int
	errors int
}

func (c *busCensus) record(f *frame.Frame, readErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if readErr != nil || len(frame.ValidateFrame(f)) > 0 {
		c.errors++
		return
	}
	c.counts[f.ID()]++
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	definition := haltech.NewProtocol()
	var err error
	if cfg.Haltech.Definition != "" {
		err = definition.LoadFile(cfg.Haltech.Definition)
	} else {
		err = definition.LoadDefault()
	}
	if err != nil {
		return err
	}

	src, err := OpenSource()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(exitConnError)
	}
	defer src.Close()

	fmt.Printf("devdash - Bus Discovery\n")
	fmt.Printf("Source: %s\n", src.Description())
	fmt.Printf("Listening: %d seconds\n\n", discoveryTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(discoveryTimeout)*time.Second)
	defer cancel()

	census := &busCensus{counts: make(map[uint32]int)}
	if err := src.Run(ctx, census.record); err != nil {
		fmt.Fprintf(os.Stderr, "READ FAILED: %v\n", err)
		os.Exit(exitConnError)
	}

	census.mu.Lock()
	defer census.mu.Unlock()

	ids := make([]uint32, 0, len(census.counts))
	for id := range census.counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	known := 0
	devices := make(map[pd16.DeviceID]int)
	for _, id := range ids {
		desc := "unknown"
		if def, ok := definition.Definition(id); ok {
			desc = fmt.Sprintf("Haltech %s", def.Name)
			known++
		} else if dev, ok := pd16.DeviceForFrame(id); ok {
			desc = fmt.Sprintf("PD16 %s (offset %d)", dev, id-pd16.BaseCANID-uint32(dev)*pd16.DeviceIDOffset)
			devices[dev] += census.counts[id]
			known++
		}
		fmt.Printf("  0x%03X  %6d frames  %s\n", id, census.counts[id], desc)
	}

	fmt.Printf("\n--- Discovery summary ---\n")
	fmt.Printf("Frame ids seen: %d (%d known)\n", len(ids), known)
	if census.errors > 0 {
		fmt.Printf("Invalid frames or line errors: %d\n", census.errors)
	}
	for id := pd16.DeviceA; id <= pd16.DeviceD; id++ {
		if n, ok := devices[id]; ok {
			fmt.Printf("PD16 device %s present (%d frames)\n", id, n)
		}
	}

	if len(ids) == 0 {
		fmt.Printf("No frames seen. Check the bus connection and bitrate.\n")
		os.Exit(exitNotFound)
	}

	return nil
}
