// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package adapter

import (
	"context"
	"time"

	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/devdash/pkg/frame"
	"github.com/Thermoquad/devdash/pkg/logging"
	"github.com/Thermoquad/devdash/pkg/pd16"
	"github.com/Thermoquad/devdash/pkg/source"
	"github.com/Thermoquad/devdash/pkg/telemetry"
)

// HaltechName is reported by Name
const HaltechName = "Haltech CAN"

// Reconnect backoff
const (
	DefaultReconnectMin = time.Second
	DefaultReconnectMax = 30 * time.Second
)

// HaltechConfig configures a HaltechAdapter
type HaltechConfig struct {
	Source      source.Options
	Definition  string
	PD16Devices []pd16.DeviceID

	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// HaltechAdapter reads frames from a source and decodes them with the Haltech
// and PD16 decoders
type HaltechAdapter struct {
	cfg     HaltechConfig
	decoder *Decoder
	open    func(source.Options) (source.Source, error)
	cache   *channelCache
	metrics FrameMetrics

	statsMu deadlock.Mutex
	stats   *telemetry.Statistics

	mu      deadlock.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	log *logrus.Entry
}

// NewHaltechAdapter loads the decoders. A definition file that cannot be
// loaded fails construction.
func NewHaltechAdapter(cfg HaltechConfig) (*HaltechAdapter, error) {
	decoder, err := NewDecoder(cfg.Definition, cfg.PD16Devices, nil)
	if err != nil {
		return nil, err
	}

	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = DefaultReconnectMin
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = DefaultReconnectMax
	}

	return &HaltechAdapter{
		cfg:     cfg,
		decoder: decoder,
		open:    source.Open,
		cache:   newChannelCache(),
		metrics: nopFrameMetrics{},
		stats:   telemetry.NewStatistics(),
		log:     logging.For("haltech-adapter"),
	}, nil
}

// SetLogger replaces the logger
func (a *HaltechAdapter) SetLogger(logger *logrus.Logger) {
	a.log = logging.WithLogger(logger, "haltech-adapter")
}

// SetMetrics installs a frame metrics recorder. Must be called before Start.
func (a *HaltechAdapter) SetMetrics(m FrameMetrics) {
	if m == nil {
		m = nopFrameMetrics{}
	}
	a.metrics = m
}

// Decoder returns the frame decoder
func (a *HaltechAdapter) Decoder() *Decoder {
	return a.decoder
}

// Start starts reading frames in the background. Connection failures are
// reported through the sink and retried with exponential backoff.
func (a *HaltechAdapter) Start(sink telemetry.Sink) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})
	a.running = true

	go a.run(ctx, sink, a.done)

	a.log.WithField("transport", a.cfg.Source.Transport).Info("Adapter started")
	return nil
}

// Stop cancels the source and waits for the reader to exit
func (a *HaltechAdapter) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return
	}
	a.cancel()
	<-a.done
	a.running = false
	a.log.Info("Adapter stopped")
}

// IsRunning implements telemetry.Adapter
func (a *HaltechAdapter) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Done is closed when the reader exits, e.g. at the end of a replay
func (a *HaltechAdapter) Done() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.done
}

// Channel implements telemetry.Adapter
func (a *HaltechAdapter) Channel(name string) (telemetry.Value, bool) {
	return a.cache.get(name)
}

// AvailableChannels implements telemetry.Adapter
func (a *HaltechAdapter) AvailableChannels() []string {
	return a.cache.names()
}

// Name implements telemetry.Adapter
func (a *HaltechAdapter) Name() string {
	return HaltechName
}

// Statistics returns a snapshot of the decode statistics
func (a *HaltechAdapter) Statistics() telemetry.Statistics {
	a.statsMu.Lock()
	defer a.statsMu.Unlock()
	a.stats.CalculateRates()
	return *a.stats
}

func (a *HaltechAdapter) run(ctx context.Context, sink telemetry.Sink, done chan struct{}) {
	defer close(done)

	backoff := a.cfg.ReconnectMin
	for {
		src, err := a.open(a.cfg.Source)
		if err != nil {
			a.log.WithError(err).WithField("retry", backoff).Warn("Failed to open source")
			sink.ErrorOccurred(err)
			if !sleepContext(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, a.cfg.ReconnectMax)
			continue
		}

		a.log.WithField("source", src.Description()).Info("Source connected")
		sink.ConnectionStateChanged(true)
		backoff = a.cfg.ReconnectMin

		err = src.Run(ctx, func(f *frame.Frame, err error) {
			a.handleFrame(sink, f, err)
		})
		src.Close()
		sink.ConnectionStateChanged(false)

		if ctx.Err() != nil {
			return
		}
		if err == nil {
			a.log.WithField("source", src.Description()).Info("Source exhausted")
			return
		}

		a.log.WithError(err).WithField("retry", backoff).Warn("Source failed")
		sink.ErrorOccurred(err)
		if !sleepContext(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff, a.cfg.ReconnectMax)
	}
}

// handleFrame validates and decodes one frame and forwards its updates
func (a *HaltechAdapter) handleFrame(sink telemetry.Sink, f *frame.Frame, readErr error) {
	a.metrics.FrameReceived()

	if readErr != nil {
		a.recordStats(nil, readErr, nil, 0)
		a.metrics.FrameInvalid()
		a.log.WithError(readErr).Debug("Frame read error")
		return
	}

	if verrs := frame.ValidateFrame(f); len(verrs) > 0 {
		a.recordStats(f, nil, verrs, 0)
		a.metrics.FrameInvalid()
		return
	}

	updates := a.decoder.Decode(f)
	a.recordStats(f, nil, nil, len(updates))
	if len(updates) == 0 {
		a.metrics.FrameUnknown()
		return
	}
	a.metrics.FrameDecoded()

	for _, u := range updates {
		a.cache.set(u.Name, u.Value)
		sink.ChannelUpdated(u.Name, u.Value)
	}
}

func (a *HaltechAdapter) recordStats(f *frame.Frame, err error, verrs []frame.ValidationError, produced int) {
	a.statsMu.Lock()
	a.stats.Update(f, err, verrs, produced)
	a.statsMu.Unlock()
}

func nextBackoff(current, limit time.Duration) time.Duration {
	next := current * 2
	if next > limit {
		return limit
	}
	return next
}

// sleepContext waits for d, returning false if ctx is cancelled first
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
