// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/devdash/pkg/adapter"
	"github.com/Thermoquad/devdash/pkg/logging"
)

var (
	dashFromProfile bool
	dashImperial    bool
	dashLogFile     string
)

var dashCmd = &cobra.Command{
	Use:   "dash",
	Short: "Live dashboard of routed and raw channels",
	Long: `Run the pipeline and show an interactive terminal dashboard.

The left panel lists the standard dashboard channels as routed by the vehicle
profile. The right panel lists every raw channel the adapter has produced and
can be filtered with '/'. Connection changes, gear changes and adapter errors
appear in the event log.

Log output is discarded while the dashboard runs unless --log-file is given.

Keys:
  /      filter raw channels (Enter to keep, Esc to clear)
  u      toggle metric and imperial units
  q      quit

Examples:
  devdash dash --iface can0
  devdash dash --replay drive.cbor --imperial
  devdash dash --from-profile`,
	RunE: runDash,
}

func init() {
	rootCmd.AddCommand(dashCmd)
	dashCmd.Flags().BoolVar(&dashFromProfile, "from-profile", false, "Create the adapter from the profile instead of the config")
	dashCmd.Flags().BoolVar(&dashImperial, "imperial", false, "Start with imperial units")
	dashCmd.Flags().StringVar(&dashLogFile, "log-file", "", "Write log output to this file")
}

func runDash(cmd *cobra.Command, args []string) error {
	var logOut io.Writer = io.Discard
	if dashLogFile != "" {
		f, err := os.OpenFile(dashLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logging.SetOutput(logOut)
	defer logging.SetOutput(os.Stderr)

	p, err := newPipeline(dashFromProfile)
	if err != nil {
		return err
	}

	info := cfg.Adapter
	if p.adapter.Name() != adapter.SimulatorName {
		info = cfg.Haltech.Transport
	}
	feed := newDashFeed()
	wireDashFeed(p.broker, feed)
	prog := tea.NewProgram(initialDashModel(p, feed, info, dashImperial), tea.WithAltScreen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.start(ctx); err != nil {
		return err
	}

	_, err = prog.Run()
	p.stop()
	close(feed)
	if err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}
