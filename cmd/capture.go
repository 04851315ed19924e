// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/devdash/pkg/frame"
)

var (
	captureOutput   string
	captureDuration time.Duration
	captureInvalid  bool
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Record frames to a capture file",
	Long: `Record raw CAN frames from any source to a file for later replay with --replay.

Files ending in .cbor are written as CBOR capture streams (timestamps in
microseconds); any other name is written as a candump log.

Examples:
  devdash capture --iface can0 -o drive.cbor
  devdash capture --port /dev/ttyACM0 -o bench.log --duration 30s`,
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.Flags().StringVarP(&captureOutput, "output", "o", "capture.cbor", "Output file (.cbor or candump log)")
	captureCmd.Flags().DurationVar(&captureDuration, "duration", 0, "Stop after this long (0 = until Ctrl+C)")
	captureCmd.Flags().BoolVar(&captureInvalid, "invalid", false, "Also record frames that fail validation")
}

// frameWriter appends frames to an output file
type frameWriter interface {
	Write(f *frame.Frame) error
}

type candumpWriter struct {
	w *bufio.Writer
}

func (c *candumpWriter) Write(f *frame.Frame) error {
	_, err := fmt.Fprintln(c.w, frame.FormatCandumpLine("devdash", f))
	return err
}

func runCapture(cmd *cobra.Command, args []string) error {
	out, err := os.Create(captureOutput)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", captureOutput, err)
	}
	defer out.Close()

	buffered := bufio.NewWriter(out)
	defer buffered.Flush()

	var writer frameWriter
	if strings.HasSuffix(strings.ToLower(captureOutput), ".cbor") {
		writer = frame.NewCaptureWriter(buffered)
	} else {
		writer = &candumpWriter{w: buffered}
	}

	src, err := OpenSource()
	if err != nil {
		return err
	}
	defer src.Close()

	ctx, stop := signalContext()
	defer stop()
	if captureDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, captureDuration)
		defer cancel()
	}

	fmt.Printf("devdash - Capture\n")
	fmt.Printf("Source: %s\n", src.Description())
	fmt.Printf("Output: %s\n", captureOutput)
	fmt.Printf("Press Ctrl+C to stop\n\n")

	recorded, skipped := 0, 0
	var writeErr error
	err = src.Run(ctx, func(f *frame.Frame, readErr error) {
		if readErr != nil || writeErr != nil {
			skipped++
			return
		}
		if !captureInvalid && len(frame.ValidateFrame(f)) > 0 {
			skipped++
			return
		}
		if writeErr = writer.Write(f); writeErr != nil {
			stop()
			return
		}
		recorded++
		if recorded%1000 == 0 {
			fmt.Printf("\r%d frames recorded", recorded)
		}
	})

	fmt.Printf("\r%d frames recorded, %d skipped\n", recorded, skipped)
	if writeErr != nil {
		return writeErr
	}
	return err
}
