// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/devdash/pkg/frame"
	"github.com/Thermoquad/devdash/pkg/telemetry"
)

var (
	framesRaw     bool
	framesCandump bool
	framesStats   bool
)

var framesCmd = &cobra.Command{
	Use:   "frames",
	Short: "Display received frames and their decoded channels",
	Long: `Continuously read CAN frames and display each one with the channels the
Haltech and PD16 decoders produce from it.

Use --raw to skip decoding, or --candump to print frames in candump log format
(suitable for replay with --replay).

Supports SocketCAN, SLCAN (serial or WebSocket) and replay sources.`,
	RunE: runFrames,
}

func init() {
	rootCmd.AddCommand(framesCmd)
	framesCmd.Flags().BoolVar(&framesRaw, "raw", false, "Print frames without decoding")
	framesCmd.Flags().BoolVar(&framesCandump, "candump", false, "Print frames as candump log lines")
	framesCmd.Flags().BoolVar(&framesStats, "stats", true, "Print statistics on exit")
}

func runFrames(cmd *cobra.Command, args []string) error {
	decoder, err := newDecoder()
	if err != nil {
		return err
	}

	src, err := OpenSource()
	if err != nil {
		return err
	}
	defer src.Close()

	ctx, stop := signalContext()
	defer stop()

	if !framesCandump {
		fmt.Printf("devdash - Frame Log\n")
		fmt.Printf("Source: %s\n", src.Description())
		fmt.Printf("Press Ctrl+C to exit\n\n")
	}

	stats := telemetry.NewStatistics()
	err = src.Run(ctx, func(f *frame.Frame, readErr error) {
		if readErr != nil {
			stats.Update(nil, readErr, nil, 0)
			if !framesCandump {
				fmt.Printf("[ERROR] %v\n", readErr)
			}
			return
		}

		if framesCandump {
			stats.Update(f, nil, nil, 0)
			fmt.Println(frame.FormatCandumpLine("devdash", f))
			return
		}

		verrs := frame.ValidateFrame(f)
		if len(verrs) > 0 || framesRaw {
			stats.Update(f, nil, verrs, 0)
			fmt.Println(frame.FormatFrame(f))
			for _, v := range verrs {
				fmt.Printf("  ! %s\n", v.Message)
			}
			return
		}

		updates := decoder.Decode(f)
		stats.Update(f, nil, nil, len(updates))
		fmt.Println(frame.FormatFrame(f))
		fmt.Print(telemetry.FormatUpdates(updates))
	})

	if framesStats && !framesCandump {
		fmt.Println()
		fmt.Print(stats.String())
	}
	return err
}
