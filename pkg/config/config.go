// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the devdash YAML configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/devdash/pkg/pd16"
)

// Adapter kinds
const (
	AdapterHaltech   = "haltech"
	AdapterSimulator = "simulator"
)

// Transport kinds for the Haltech adapter
const (
	TransportSocketCAN = "socketcan"
	TransportSLCAN     = "slcan"
	TransportReplay    = "replay"
)

type Config struct {
	Adapter   string          `yaml:"adapter"`
	Profile   string          `yaml:"profile"`
	Log       LogConfig       `yaml:"log"`
	Broker    BrokerConfig    `yaml:"broker"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Haltech   HaltechConfig   `yaml:"haltech"`
	Simulator SimulatorConfig `yaml:"simulator"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type BrokerConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	BulkSize     int           `yaml:"bulk_size"`
}

type MonitorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type HaltechConfig struct {
	Transport   string   `yaml:"transport"`
	Interface   string   `yaml:"interface"`
	Definition  string   `yaml:"definition"`
	PD16Devices []string `yaml:"pd16_devices"`

	// SLCAN over serial or WebSocket
	Port     string `yaml:"port"`
	Baud     int    `yaml:"baud"`
	Bitrate  int    `yaml:"bitrate"`
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Insecure bool   `yaml:"insecure"`

	ReplayFile  string  `yaml:"replay_file"`
	ReplaySpeed float64 `yaml:"replay_speed"`
	ReplayLoop  bool    `yaml:"replay_loop"`
}

type SimulatorConfig struct {
	UpdateInterval time.Duration `yaml:"update_interval"`
}

// LoadConfig reads a configuration file. Keys missing from the file keep
// their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		Adapter: AdapterHaltech,
		Profile: "profiles/haltech.json",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Broker: BrokerConfig{
			TickInterval: 16 * time.Millisecond,
			BulkSize:     256,
		},
		Monitor: MonitorConfig{
			Enabled: false,
			Addr:    ":9100",
		},
		Haltech: HaltechConfig{
			Transport:   TransportSocketCAN,
			Interface:   "vcan0",
			PD16Devices: []string{"A"},
			Port:        "/dev/ttyACM0",
			Baud:        115200,
			Bitrate:     1000000,
			ReplaySpeed: 1.0,
		},
		Simulator: SimulatorConfig{
			UpdateInterval: 50 * time.Millisecond,
		},
	}
}

// Validate checks values that cannot be corrected later
func (c *Config) Validate() error {
	switch c.Adapter {
	case AdapterHaltech, AdapterSimulator:
	default:
		return fmt.Errorf("unknown adapter %q (expected %s or %s)", c.Adapter, AdapterHaltech, AdapterSimulator)
	}

	if c.Broker.TickInterval <= 0 {
		return fmt.Errorf("broker.tick_interval must be positive, got %s", c.Broker.TickInterval)
	}
	if c.Broker.BulkSize < 0 {
		return fmt.Errorf("broker.bulk_size must not be negative, got %d", c.Broker.BulkSize)
	}
	if c.Simulator.UpdateInterval <= 0 {
		return fmt.Errorf("simulator.update_interval must be positive, got %s", c.Simulator.UpdateInterval)
	}

	switch c.Haltech.Transport {
	case TransportSocketCAN, TransportSLCAN, TransportReplay:
	default:
		return fmt.Errorf("unknown transport %q", c.Haltech.Transport)
	}
	if c.Haltech.Transport == TransportReplay && c.Haltech.ReplayFile == "" {
		return fmt.Errorf("replay transport requires haltech.replay_file")
	}
	if c.Haltech.ReplaySpeed < 0 {
		return fmt.Errorf("haltech.replay_speed must not be negative")
	}

	for _, id := range c.Haltech.PD16Devices {
		if _, err := pd16.ParseDeviceID(id); err != nil {
			return err
		}
	}

	return nil
}

// PD16Devices returns the configured PD16 device ids
func (c *Config) PD16Devices() ([]pd16.DeviceID, error) {
	devices := make([]pd16.DeviceID, 0, len(c.Haltech.PD16Devices))
	for _, s := range c.Haltech.PD16Devices {
		id, err := pd16.ParseDeviceID(s)
		if err != nil {
			return nil, err
		}
		devices = append(devices, id)
	}
	return devices, nil
}
