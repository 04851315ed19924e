// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/devdash/pkg/frame"
)

var (
	frameTestTimeout int
)

var frameTestCmd = &cobra.Command{
	Use:   "frame_test",
	Short: "Test the connection by waiting for a valid CAN frame",
	Long: `Wait for a valid CAN data frame on the configured source until timeout.

Line errors and invalid frames are counted and skipped; the command succeeds
on the first well-formed data frame.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error`,
	RunE: runFrameTest,
}

func init() {
	rootCmd.AddCommand(frameTestCmd)
	frameTestCmd.Flags().IntVar(&frameTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runFrameTest(cmd *cobra.Command, args []string) error {
	src, err := OpenSource()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(exitConnError)
	}
	defer src.Close()

	fmt.Printf("devdash - Frame Test\n")
	fmt.Printf("Source: %s\n", src.Description())
	fmt.Printf("Timeout: %d seconds\n", frameTestTimeout)
	fmt.Printf("Waiting for valid CAN frame...\n\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frameChan := make(chan *frame.Frame, 1)
	errChan := make(chan error, 1)

	go func() {
		skipped := 0
		err := src.Run(ctx, func(f *frame.Frame, readErr error) {
			if readErr != nil || len(frame.ValidateFrame(f)) > 0 {
				skipped++
				return
			}
			if skipped > 0 {
				fmt.Printf("(skipped %d invalid frames before sync)\n", skipped)
				skipped = 0
			}
			select {
			case frameChan <- f:
			default:
			}
			cancel()
		})
		if err != nil && ctx.Err() == nil {
			errChan <- err
		}
	}()

	select {
	case f := <-frameChan:
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  ID: %s\n", frame.FormatID(f))
		fmt.Printf("  Extended: %v\n", f.IsExtended())
		fmt.Printf("  Length: %d bytes\n", f.Len())
		fmt.Printf("  Data: %s\n", frame.FormatData(f.Data()))
		os.Exit(exitOK)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(exitConnError)

	case <-time.After(time.Duration(frameTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", frameTestTimeout)
		os.Exit(exitNotFound)
	}

	return nil
}
