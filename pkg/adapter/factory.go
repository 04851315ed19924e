// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package adapter

import (
	"errors"
	"fmt"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/Thermoquad/devdash/pkg/config"
	"github.com/Thermoquad/devdash/pkg/logging"
	"github.com/Thermoquad/devdash/pkg/pd16"
	"github.com/Thermoquad/devdash/pkg/source"
	"github.com/Thermoquad/devdash/pkg/telemetry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Adapter kinds accepted by Create
const (
	KindHaltech   = config.AdapterHaltech
	KindSimulator = config.AdapterSimulator
)

// ErrUnknownAdapter is returned for an adapter kind the factory cannot build
var ErrUnknownAdapter = errors.New("unknown adapter type")

// Kinds returns the adapter kinds the factory can build
func Kinds() []string {
	return []string{KindHaltech, KindSimulator}
}

// Create builds an adapter of the given kind. opts holds the profile's
// adapterConfig object and may be nil.
func Create(kind string, opts map[string]interface{}) (telemetry.Adapter, error) {
	switch kind {
	case KindHaltech:
		cfg, err := haltechConfigFromOptions(opts)
		if err != nil {
			return nil, err
		}
		return NewHaltechAdapter(cfg)
	case KindSimulator:
		ms := optFloat(opts, "updateIntervalMs", float64(DefaultUpdateInterval/time.Millisecond))
		return NewSimulatorAdapter(time.Duration(ms * float64(time.Millisecond))), nil
	default:
		logging.For("adapter-factory").WithField("adapter", kind).Warn("Unknown adapter type")
		return nil, fmt.Errorf("%w: %q", ErrUnknownAdapter, kind)
	}
}

// CreateFromConfig builds the adapter named by a profile document's "adapter"
// and "adapterConfig" keys
func CreateFromConfig(doc map[string]interface{}) (telemetry.Adapter, error) {
	kind, _ := doc["adapter"].(string)
	if kind == "" {
		return nil, fmt.Errorf("%w: profile has no adapter", ErrUnknownAdapter)
	}
	opts, _ := doc["adapterConfig"].(map[string]interface{})
	return Create(kind, opts)
}

// CreateFromProfile reads a profile file and builds its adapter
func CreateFromProfile(path string) (telemetry.Adapter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	return CreateFromConfig(doc)
}

// FromConfig builds the adapter selected by a YAML configuration. password
// is used for SLCAN over WebSocket.
func FromConfig(cfg *config.Config, password string) (telemetry.Adapter, error) {
	switch cfg.Adapter {
	case config.AdapterHaltech:
		devices, err := cfg.PD16Devices()
		if err != nil {
			return nil, err
		}
		return NewHaltechAdapter(HaltechConfig{
			Source:      SourceOptions(cfg, password),
			Definition:  cfg.Haltech.Definition,
			PD16Devices: devices,
		})
	case config.AdapterSimulator:
		return NewSimulatorAdapter(cfg.Simulator.UpdateInterval), nil
	default:
		return Create(cfg.Adapter, nil)
	}
}

// SourceOptions maps the haltech section of a configuration to source options
func SourceOptions(cfg *config.Config, password string) source.Options {
	h := cfg.Haltech
	return source.Options{
		Transport:   h.Transport,
		Interface:   h.Interface,
		Port:        h.Port,
		Baud:        h.Baud,
		Bitrate:     h.Bitrate,
		URL:         h.URL,
		Username:    h.Username,
		Password:    password,
		Insecure:    h.Insecure,
		ReplayFile:  h.ReplayFile,
		ReplaySpeed: h.ReplaySpeed,
		ReplayLoop:  h.ReplayLoop,
	}
}

func haltechConfigFromOptions(opts map[string]interface{}) (HaltechConfig, error) {
	defaults := config.DefaultConfig().Haltech

	cfg := HaltechConfig{
		Source: source.Options{
			Transport:   optString(opts, "transport", defaults.Transport),
			Interface:   optString(opts, "interface", defaults.Interface),
			Port:        optString(opts, "port", defaults.Port),
			Baud:        int(optFloat(opts, "baud", float64(defaults.Baud))),
			Bitrate:     int(optFloat(opts, "bitrate", float64(defaults.Bitrate))),
			URL:         optString(opts, "url", ""),
			Username:    optString(opts, "username", ""),
			Insecure:    optBool(opts, "insecure", false),
			ReplayFile:  optString(opts, "replayFile", ""),
			ReplaySpeed: optFloat(opts, "replaySpeed", defaults.ReplaySpeed),
			ReplayLoop:  optBool(opts, "replayLoop", false),
		},
		Definition: optString(opts, "definition", ""),
	}

	if cfg.Source.URL != "" && cfg.Source.Username != "" {
		password, err := source.GetPassword()
		if err != nil {
			return cfg, err
		}
		cfg.Source.Password = password
	}

	if raw, ok := opts["pd16Devices"].([]interface{}); ok {
		for _, v := range raw {
			s, _ := v.(string)
			id, err := pd16.ParseDeviceID(s)
			if err != nil {
				return cfg, err
			}
			cfg.PD16Devices = append(cfg.PD16Devices, id)
		}
	}

	return cfg, nil
}

// JSON numbers decode as float64
func optFloat(opts map[string]interface{}, key string, def float64) float64 {
	if v, ok := opts[key].(float64); ok {
		return v
	}
	return def
}

func optString(opts map[string]interface{}, key, def string) string {
	if v, ok := opts[key].(string); ok && v != "" {
		return v
	}
	return def
}

func optBool(opts map[string]interface{}, key string, def bool) bool {
	if v, ok := opts[key].(bool); ok {
		return v
	}
	return def
}
