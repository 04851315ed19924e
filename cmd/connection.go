// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Thermoquad/devdash/pkg/adapter"
	"github.com/Thermoquad/devdash/pkg/config"
	"github.com/Thermoquad/devdash/pkg/logging"
	"github.com/Thermoquad/devdash/pkg/source"
)

// Exit codes for probe commands
const (
	exitOK        = 0
	exitNotFound  = 1
	exitConnError = 2
)

// password returns the WebSocket password when authentication is configured
func password() (string, error) {
	h := cfg.Haltech
	if h.Transport != config.TransportSLCAN || h.URL == "" || h.Username == "" {
		return "", nil
	}
	return source.GetPassword()
}

// sourceOptions builds source options from the configuration
func sourceOptions() (source.Options, error) {
	pw, err := password()
	if err != nil {
		return source.Options{}, err
	}
	return adapter.SourceOptions(cfg, pw), nil
}

// OpenSource opens the configured frame source
func OpenSource() (source.Source, error) {
	opts, err := sourceOptions()
	if err != nil {
		return nil, err
	}
	return source.Open(opts)
}

// openSender opens the configured source and checks it can transmit
func openSender() (source.Source, source.Sender, error) {
	src, err := OpenSource()
	if err != nil {
		return nil, nil, err
	}
	sender, ok := src.(source.Sender)
	if !ok {
		src.Close()
		return nil, nil, fmt.Errorf("%s cannot transmit frames", src.Description())
	}
	return src, sender, nil
}

// newDecoder loads the Haltech definition and configured PD16 devices
func newDecoder() (*adapter.Decoder, error) {
	devices, err := cfg.PD16Devices()
	if err != nil {
		return nil, err
	}
	return adapter.NewDecoder(cfg.Haltech.Definition, devices, logging.Logger)
}

// signalContext is cancelled on Ctrl+C or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
