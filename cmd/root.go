// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/devdash/pkg/config"
	"github.com/Thermoquad/devdash/pkg/logging"
	"github.com/Thermoquad/devdash/pkg/source"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	// SLCAN serial flags
	portName string
	baudRate int

	// SLCAN over WebSocket flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// SocketCAN flags
	canInterface string

	// Replay flags
	replayFile string

	// Decoder flags
	definitionPath string
	pd16Devices    []string

	// cfg is loaded before any command runs
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "devdash",
	Short: "CAN telemetry decoder and dashboard",
	Long: `devdash - decode Haltech ECU and PD16 telemetry from a CAN bus and route it to
standard dashboard channels.

Frame sources:
  SocketCAN: --iface can0
  SLCAN:     --port /dev/ttyACM0 [--baud 115200]
             --url ws://host/path [--username user]
  Replay:    --replay drive.cbor | --replay candump.log

Settings are read from --config (YAML) and overridden by flags.

For WebSocket authentication, the password is read from the ` + source.PasswordEnv + `
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (text, json)")

	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "SLCAN serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "SLCAN WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVarP(&canInterface, "iface", "i", "", "SocketCAN interface")
	rootCmd.PersistentFlags().StringVar(&replayFile, "replay", "", "Replay a CBOR capture or candump log")

	rootCmd.PersistentFlags().StringVar(&definitionPath, "definition", "", "Haltech definition file (default: bundled v2.35)")
	rootCmd.PersistentFlags().StringSliceVar(&pd16Devices, "pd16", nil, "PD16 device ids to decode (A-D)")
}

// loadConfig reads the configuration file and applies flag overrides
func loadConfig(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg = config.DefaultConfig()
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = logFormat
	}

	h := &cfg.Haltech
	if flags.Changed("iface") {
		h.Transport = config.TransportSocketCAN
		h.Interface = canInterface
	}
	if flags.Changed("port") {
		h.Transport = config.TransportSLCAN
		h.Port = portName
		h.URL = ""
	}
	if flags.Changed("baud") {
		h.Baud = baudRate
	}
	if flags.Changed("url") {
		h.Transport = config.TransportSLCAN
		h.URL = wsURL
	}
	if flags.Changed("username") {
		h.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		h.Insecure = wsNoSSLVerify
	}
	if flags.Changed("replay") {
		h.Transport = config.TransportReplay
		h.ReplayFile = replayFile
	}
	if flags.Changed("definition") {
		h.Definition = definitionPath
	}
	if flags.Changed("pd16") {
		h.PD16Devices = pd16Devices
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Setup(strings.ToLower(cfg.Log.Level), cfg.Log.Format)
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
