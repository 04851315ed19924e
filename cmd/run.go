// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/devdash/pkg/broker"
	"github.com/Thermoquad/devdash/pkg/logging"
)

var runFromProfile bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the decode and routing pipeline without a display",
	Long: `Run the full pipeline headless: the configured adapter feeds the channel
router, and every standard channel change is written to the log.

With --from-profile the adapter named in the vehicle profile is used instead
of the configuration file's adapter section.

When metrics are enabled in the configuration, Prometheus metrics are served
on the configured address for as long as the pipeline runs.

A non-looping replay stops the pipeline when the file is exhausted; every other
source runs until Ctrl+C.

Examples:
  devdash run --iface can0
  devdash run --replay drive.cbor --log-format json
  devdash run --from-profile`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runFromProfile, "from-profile", false, "Create the adapter from the profile instead of the config")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	p, err := newPipeline(runFromProfile)
	if err != nil {
		return err
	}

	log := logging.For("run")
	p.broker.OnChange(func(c broker.Change) {
		fields := logrus.Fields{"channel": c.Channel.String(), "value": c.Value}
		if c.Label != "" {
			fields["label"] = c.Label
		}
		log.WithFields(fields).Debug("channel changed")
	})
	p.broker.OnConnectionChange(func(connected bool) {
		log.WithField("connected", connected).Info("connection state changed")
	})
	p.broker.OnError(func(err error) {
		log.WithError(err).Warn("adapter error")
	})

	ctx, stop := signalContext()
	defer stop()

	if err := p.start(ctx); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"adapter":  p.adapter.Name(),
		"profile":  cfg.Profile,
		"channels": len(p.broker.MappedChannels()),
	}).Info("pipeline started")

	select {
	case <-ctx.Done():
	case <-p.finished():
		log.Info("replay finished")
	}

	p.stop()

	fmt.Printf("\n--- Final values ---\n")
	for _, ch := range broker.Channels() {
		if ch == broker.Gear {
			fmt.Printf("  %-22s %s\n", ch, p.broker.Gear())
			continue
		}
		fmt.Printf("  %-22s %.2f %s\n", ch, p.broker.Value(ch), ch.NativeUnit())
	}
	if stats, ok := p.statistics(); ok {
		fmt.Printf("\n%s", stats.String())
	}
	return nil
}
