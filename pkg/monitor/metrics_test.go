// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package monitor

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMonitor_Counters(t *testing.T) {
	m := NewMonitor()

	m.FrameReceived()
	m.FrameReceived()
	m.FrameDecoded()
	m.FrameUnknown()
	m.FrameInvalid()
	m.UpdateProcessed()
	m.UpdateInvalid()
	m.UpdateUnmapped()
	m.UpdateUnmapped()
	m.ChannelChanged("rpm")
	m.ChannelChanged("rpm")
	m.ChannelChanged("gear")

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"frames received", testutil.ToFloat64(m.framesReceived), 2},
		{"frames decoded", testutil.ToFloat64(m.framesDecoded), 1},
		{"frames unknown", testutil.ToFloat64(m.framesUnknown), 1},
		{"frames invalid", testutil.ToFloat64(m.framesInvalid), 1},
		{"updates processed", testutil.ToFloat64(m.updatesProcessed), 1},
		{"updates invalid", testutil.ToFloat64(m.updatesInvalid), 1},
		{"updates unmapped", testutil.ToFloat64(m.updatesUnmapped), 2},
		{"rpm changes", testutil.ToFloat64(m.channelChanges.WithLabelValues("rpm")), 2},
		{"gear changes", testutil.ToFloat64(m.channelChanges.WithLabelValues("gear")), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestMonitor_Gauges(t *testing.T) {
	m := NewMonitor()

	m.QueueDepth(42)
	if got := testutil.ToFloat64(m.queueDepth); got != 42 {
		t.Errorf("queue depth = %v, want 42", got)
	}

	m.Connected(true)
	if got := testutil.ToFloat64(m.connected); got != 1 {
		t.Errorf("connected = %v, want 1", got)
	}
	m.Connected(false)
	if got := testutil.ToFloat64(m.connected); got != 0 {
		t.Errorf("connected = %v, want 0", got)
	}

	m.TickDuration(250 * time.Microsecond)
	if n := testutil.CollectAndCount(m.tickDuration); n != 1 {
		t.Errorf("expected 1 histogram series, got %d", n)
	}

	m.sampleRuntime()
	if testutil.ToFloat64(m.goroutines) < 1 {
		t.Error("goroutine gauge not sampled")
	}
}

func TestMonitor_Registries(t *testing.T) {
	// Each monitor owns its registry, so constructing twice must not panic
	a := NewMonitor()
	b := NewMonitor()
	if a.Registry() == b.Registry() {
		t.Error("monitors share a registry")
	}
}

func TestMonitor_Handler(t *testing.T) {
	m := NewMonitor()
	m.FrameReceived()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Errorf("/health = %d %q", resp.StatusCode, body)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()

	for _, name := range []string{
		"devdash_frames_received_total 1",
		"devdash_queue_depth",
		"devdash_connected",
		"devdash_tick_duration_seconds_bucket",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("/metrics missing %q", name)
		}
	}
}
