// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package monitor exposes pipeline counters as Prometheus metrics.
package monitor

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/devdash/pkg/logging"
)

const (
	namespace            = "devdash"
	runtimeInterval      = 10 * time.Second
	serverShutdownPeriod = 5 * time.Second
)

// Monitor owns a private registry with the pipeline metrics. It implements
// the broker and adapter metric interfaces.
type Monitor struct {
	registry *prometheus.Registry

	framesReceived   prometheus.Counter
	framesDecoded    prometheus.Counter
	framesUnknown    prometheus.Counter
	framesInvalid    prometheus.Counter
	updatesProcessed prometheus.Counter
	updatesInvalid   prometheus.Counter
	updatesUnmapped  prometheus.Counter
	channelChanges   *prometheus.CounterVec
	queueDepth       prometheus.Gauge
	connected        prometheus.Gauge
	tickDuration     prometheus.Histogram
	goroutines       prometheus.Gauge
	memoryUsage      prometheus.Gauge

	log *logrus.Entry
}

func counter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	})
}

func gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	})
}

// NewMonitor creates and registers all metrics
func NewMonitor() *Monitor {
	m := &Monitor{
		registry: prometheus.NewRegistry(),

		framesReceived:   counter("frames_received_total", "CAN frames received from the source"),
		framesDecoded:    counter("frames_decoded_total", "Frames that produced at least one channel update"),
		framesUnknown:    counter("frames_unknown_total", "Valid frames no decoder recognized"),
		framesInvalid:    counter("frames_invalid_total", "Frames that failed validation"),
		updatesProcessed: counter("updates_processed_total", "Channel updates routed to a standard channel"),
		updatesInvalid:   counter("updates_invalid_total", "Channel updates dropped as invalid"),
		updatesUnmapped:  counter("updates_unmapped_total", "Channel updates with no profile mapping"),
		channelChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "channel_changes_total",
				Help:      "Value changes per standard channel",
			},
			[]string{"channel"},
		),
		queueDepth: gauge("queue_depth", "Approximate channel update queue depth"),
		connected:  gauge("connected", "1 when the adapter reports a connection"),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent applying queued updates per tick",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
		goroutines:  gauge("goroutines", "Current goroutine count"),
		memoryUsage: gauge("memory_usage_bytes", "Allocated heap bytes"),

		log: logging.For("monitor"),
	}

	m.registry.MustRegister(
		m.framesReceived,
		m.framesDecoded,
		m.framesUnknown,
		m.framesInvalid,
		m.updatesProcessed,
		m.updatesInvalid,
		m.updatesUnmapped,
		m.channelChanges,
		m.queueDepth,
		m.connected,
		m.tickDuration,
		m.goroutines,
		m.memoryUsage,
	)

	return m
}

// SetLogger replaces the logger
func (m *Monitor) SetLogger(logger *logrus.Logger) {
	m.log = logging.WithLogger(logger, "monitor")
}

// Registry returns the private registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves /metrics and /health
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// StartServer serves the metrics endpoints on addr until ctx is cancelled
func (m *Monitor) StartServer(ctx context.Context, addr string) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	m.log.WithField("addr", addr).Info("Metrics server starting")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.WithError(err).Error("Metrics server error")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownPeriod)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
}

// StartRuntimeMonitor samples goroutine and heap usage until ctx is cancelled
func (m *Monitor) StartRuntimeMonitor(ctx context.Context) {
	ticker := time.NewTicker(runtimeInterval)

	go func() {
		defer ticker.Stop()
		for {
			m.sampleRuntime()
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (m *Monitor) sampleRuntime() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.goroutines.Set(float64(runtime.NumGoroutine()))
	m.memoryUsage.Set(float64(memStats.Alloc))

	m.log.WithFields(logrus.Fields{
		"goroutines": runtime.NumGoroutine(),
		"alloc_mb":   float64(memStats.Alloc) / 1024 / 1024,
	}).Debug("Runtime sample")
}

// ============================================================
// Adapter metrics
// ============================================================

func (m *Monitor) FrameReceived() { m.framesReceived.Inc() }
func (m *Monitor) FrameDecoded() { m.framesDecoded.Inc() }
func (m *Monitor) FrameUnknown() { m.framesUnknown.Inc() }
func (m *Monitor) FrameInvalid() { m.framesInvalid.Inc() }

// ============================================================
// Broker metrics
// ============================================================

func (m *Monitor) UpdateProcessed() { m.updatesProcessed.Inc() }
func (m *Monitor) UpdateInvalid() { m.updatesInvalid.Inc() }
func (m *Monitor) UpdateUnmapped() { m.updatesUnmapped.Inc() }

func (m *Monitor) ChannelChanged(channel string) {
	m.channelChanges.WithLabelValues(channel).Inc()
}

func (m *Monitor) QueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}

func (m *Monitor) Connected(connected bool) {
	if connected {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}

func (m *Monitor) TickDuration(d time.Duration) {
	m.tickDuration.Observe(d.Seconds())
}
