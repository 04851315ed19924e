// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"

	"github.com/Thermoquad/devdash/pkg/adapter"
	"github.com/Thermoquad/devdash/pkg/broker"
	"github.com/Thermoquad/devdash/pkg/logging"
	"github.com/Thermoquad/devdash/pkg/monitor"
	"github.com/Thermoquad/devdash/pkg/telemetry"
)

// pipeline is an adapter feeding a broker, with optional metrics
type pipeline struct {
	broker  *broker.Broker
	adapter telemetry.Adapter
	monitor *monitor.Monitor
}

// newPipeline builds the adapter and broker from the configuration. When
// fromProfile is set the adapter is taken from the profile's adapter section
// instead of the configuration file.
func newPipeline(fromProfile bool) (*pipeline, error) {
	var a telemetry.Adapter
	var err error
	if fromProfile {
		a, err = adapter.CreateFromProfile(cfg.Profile)
	} else {
		var pw string
		if pw, err = password(); err == nil {
			a, err = adapter.FromConfig(cfg, pw)
		}
	}
	if err != nil {
		return nil, err
	}

	b := broker.NewBroker()
	b.SetLogger(logging.Logger)
	b.SetTickInterval(cfg.Broker.TickInterval)
	b.SetBulkSize(cfg.Broker.BulkSize)
	if err := b.LoadProfileFile(cfg.Profile); err != nil {
		return nil, err
	}

	p := &pipeline{broker: b, adapter: a}

	switch impl := a.(type) {
	case *adapter.HaltechAdapter:
		impl.SetLogger(logging.Logger)
	case *adapter.SimulatorAdapter:
		impl.SetLogger(logging.Logger)
	}

	if cfg.Monitor.Enabled {
		p.monitor = monitor.NewMonitor()
		p.monitor.SetLogger(logging.Logger)
		b.SetMetrics(p.monitor)
		if h, ok := a.(*adapter.HaltechAdapter); ok {
			h.SetMetrics(p.monitor)
		}
	}

	b.SetAdapter(a)
	return p, nil
}

// start starts the metrics server, if enabled, and the broker
func (p *pipeline) start(ctx context.Context) error {
	if p.monitor != nil {
		p.monitor.StartServer(ctx, cfg.Monitor.Addr)
		p.monitor.StartRuntimeMonitor(ctx)
	}
	return p.broker.Start()
}

func (p *pipeline) stop() {
	p.broker.Stop()
}

// finished is closed when the adapter's reader exits on its own, which only
// happens when a non-looping replay runs out. It is nil, and blocks forever,
// for adapters that never finish.
func (p *pipeline) finished() <-chan struct{} {
	if h, ok := p.adapter.(*adapter.HaltechAdapter); ok {
		return h.Done()
	}
	return nil
}

// statistics returns decode statistics when the adapter tracks them
func (p *pipeline) statistics() (telemetry.Statistics, bool) {
	if h, ok := p.adapter.(*adapter.HaltechAdapter); ok {
		return h.Statistics(), true
	}
	return telemetry.Statistics{}, false
}
