// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/devdash/pkg/adapter"
	"github.com/Thermoquad/devdash/pkg/broker"
	"github.com/Thermoquad/devdash/pkg/logging"
)

var checkCmd = &cobra.Command{
	Use:   "check [profile]",
	Short: "Verify a profile against the decoder channel names",
	Long: `Check that every channel mapping in a vehicle profile names a channel the
configured decoders can actually produce.

Channel names are matched exactly. A mapping whose name differs in case or
spelling from the decoder output would silently never update its dashboard
channel, so this command reports it and exits non-zero.

For simulator profiles the simulator's channels are used; otherwise the Haltech
definition plus the configured PD16 devices.

The profile defaults to the one named in the configuration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// checkResult is the outcome of matching a profile against decoder output
type checkResult struct {
	mapped   []string                 // protocol channels that exist
	unknown  []string                 // protocol channels no decoder produces
	unmapped []broker.StandardChannel // standard channels nothing maps to
}

// checkMappings matches profile mappings against the channel names a decoder
// can produce
func checkMappings(p *broker.Profile, names []string) checkResult {
	available := make(map[string]bool, len(names))
	for _, n := range names {
		available[n] = true
	}

	var res checkResult
	covered := make(map[broker.StandardChannel]bool)
	for name, ch := range p.ChannelMappings {
		if available[name] {
			res.mapped = append(res.mapped, name)
			covered[ch] = true
		} else {
			res.unknown = append(res.unknown, name)
		}
	}
	sort.Strings(res.mapped)
	sort.Strings(res.unknown)

	for _, ch := range broker.Channels() {
		if !covered[ch] {
			res.unmapped = append(res.unmapped, ch)
		}
	}
	return res
}

// profileChannelNames returns the channel names the profile's adapter produces
func profileChannelNames(p *broker.Profile) ([]string, error) {
	kind := p.Adapter
	if kind == "" {
		kind = cfg.Adapter
	}
	if kind == adapter.KindSimulator {
		return adapter.SimulatorChannels(), nil
	}

	decoder, err := newDecoder()
	if err != nil {
		return nil, err
	}
	return decoder.ChannelNames(), nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	path := cfg.Profile
	if len(args) > 0 {
		path = args[0]
	}

	profile, err := broker.ReadProfile(path, logging.For("check"))
	if err != nil {
		return err
	}
	names, err := profileChannelNames(profile)
	if err != nil {
		return err
	}

	res := checkMappings(profile, names)

	fmt.Printf("devdash - Profile Check\n")
	fmt.Printf("Profile: %s\n", path)
	fmt.Printf("Decoder channels: %d\n\n", len(names))

	for _, name := range res.mapped {
		fmt.Printf("  OK       %-28s -> %s\n", name, profile.ChannelMappings[name])
	}
	for _, name := range res.unknown {
		fmt.Printf("  UNKNOWN  %-28s -> %s\n", name, profile.ChannelMappings[name])
	}
	for _, ch := range res.unmapped {
		fmt.Printf("  UNUSED   %-28s    (no mapping)\n", ch)
	}

	fmt.Printf("\n%d mapped, %d unknown, %d standard channels unmapped\n",
		len(res.mapped), len(res.unknown), len(res.unmapped))

	if len(res.unknown) > 0 {
		return fmt.Errorf("%d channel mappings name channels no decoder produces", len(res.unknown))
	}
	return nil
}
