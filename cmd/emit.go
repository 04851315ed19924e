// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/devdash/pkg/adapter"
	"github.com/Thermoquad/devdash/pkg/haltech"
	"github.com/Thermoquad/devdash/pkg/source"
	"github.com/Thermoquad/devdash/pkg/telemetry"
)

var (
	emitInterval time.Duration
	emitCount    int
	emitSeed     int64
)

// Simulator channels that the Haltech definition names differently
var emitAliases = map[string]string{
	"intakeAirTemperature": "airTemperature",
	"airFuelRatio":         "wideband1",
}

var emitCmd = &cobra.Command{
	Use:   "emit",
	Short: "Transmit simulated Haltech frames",
	Long: `Run the engine simulator and transmit its readings as Haltech CAN frames.

Frames are encoded with the loaded Haltech definition, so anything that
decodes the real ECU decodes the generated traffic. Useful for bench testing a
dashboard or an SLCAN bridge without a running engine.

Requires a source that can transmit: SocketCAN or SLCAN (serial or WebSocket).

Exit codes:
  0 - All frames sent
  1 - One or more sends failed
  2 - Connection error`,
	RunE: runEmit,
}

func init() {
	rootCmd.AddCommand(emitCmd)
	emitCmd.Flags().DurationVar(&emitInterval, "interval", 20*time.Millisecond, "Time between frame bursts")
	emitCmd.Flags().IntVar(&emitCount, "count", 0, "Number of bursts to send (0 = until Ctrl+C)")
	emitCmd.Flags().Int64Var(&emitSeed, "seed", 0, "Simulator random seed (0 = time based)")
}

// latestValues is a telemetry sink that keeps the last value per channel
type latestValues struct {
	mu     sync.Mutex
	values map[string]float64
}

func (l *latestValues) ChannelUpdated(name string, value telemetry.Value) {
	if alias, ok := emitAliases[name]; ok {
		name = alias
	}
	l.mu.Lock()
	l.values[name] = value.Value
	l.mu.Unlock()
}

func (l *latestValues) ConnectionStateChanged(bool) {}

func (l *latestValues) ErrorOccurred(error) {}

func (l *latestValues) snapshot() map[string]float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]float64, len(l.values))
	for k, v := range l.values {
		out[k] = v
	}
	return out
}

func runEmit(cmd *cobra.Command, args []string) error {
	decoder, err := newDecoder()
	if err != nil {
		return err
	}
	protocol := decoder.Haltech()

	src, sender, err := openSender()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(exitConnError)
	}
	defer src.Close()

	values := &latestValues{values: make(map[string]float64)}
	sim, err := startEmitSimulator(cfg.Simulator.UpdateInterval, emitSeed, values)
	if err != nil {
		return err
	}
	defer sim.Stop()

	fmt.Printf("devdash - Frame Emitter\n")
	fmt.Printf("Source: %s\n", src.Description())
	fmt.Printf("Interval: %s\n", emitInterval)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signalContext()
	defer stop()

	ticker := time.NewTicker(emitInterval)
	defer ticker.Stop()

	bursts, sent, failed := 0, 0, 0
loop:
	for emitCount == 0 || bursts < emitCount {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
		}

		s, f := emitBurst(protocol, sender, values.snapshot())
		sent += s
		failed += f
		bursts++
	}

	fmt.Printf("\n--- Emit statistics ---\n")
	fmt.Printf("%d bursts, %d frames sent, %d failed\n", bursts, sent, failed)

	if failed > 0 {
		os.Exit(exitNotFound)
	}
	return nil
}

// startEmitSimulator runs the engine simulator into values
func startEmitSimulator(interval time.Duration, seed int64, values *latestValues) (*adapter.SimulatorAdapter, error) {
	sim := adapter.NewSimulatorAdapter(interval)
	if seed != 0 {
		sim.SetSeed(seed)
	}
	if err := sim.Start(values); err != nil {
		return nil, fmt.Errorf("failed to start simulator: %w", err)
	}
	return sim, nil
}

// emitBurst encodes and sends one frame per definition frame id that has at
// least one simulated channel
func emitBurst(p *haltech.Protocol, sender source.Sender, values map[string]float64) (sent, failed int) {
	for _, id := range p.FrameIDs() {
		def, _ := p.Definition(id)
		if !hasAny(def, values) {
			continue
		}
		f, err := p.Encode(id, values)
		if err != nil {
			failed++
			continue
		}
		if err := sender.Send(f); err != nil {
			fmt.Fprintf(os.Stderr, "SEND FAILED 0x%03X: %v\n", id, err)
			failed++
			continue
		}
		sent++
	}
	return sent, failed
}

func hasAny(def *haltech.FrameDefinition, values map[string]float64) bool {
	for _, ch := range def.Channels {
		if _, ok := values[ch.Name]; ok {
			return true
		}
	}
	return false
}
