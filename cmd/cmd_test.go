// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/devdash/pkg/adapter"
	"github.com/Thermoquad/devdash/pkg/broker"
	"github.com/Thermoquad/devdash/pkg/pd16"
)

// ============================================================
// Profile Check Tests
// ============================================================

func readTestProfile(t *testing.T, path string) *broker.Profile {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	p, err := broker.ReadProfile(path, logrus.NewEntry(log))
	if err != nil {
		t.Fatalf("ReadProfile(%s) failed: %v", path, err)
	}
	return p
}

func TestCheckMappings_HaltechProfile(t *testing.T) {
	profile := readTestProfile(t, "../profiles/haltech.json")
	decoder, err := adapter.NewDecoder("", []pd16.DeviceID{pd16.DeviceA}, nil)
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}

	res := checkMappings(profile, decoder.ChannelNames())
	if len(res.unknown) != 0 {
		t.Errorf("unknown mappings = %v, want none", res.unknown)
	}
	if len(res.mapped) != len(profile.ChannelMappings) {
		t.Errorf("mapped %d of %d", len(res.mapped), len(profile.ChannelMappings))
	}
	if len(res.unmapped) != 0 {
		t.Errorf("unmapped standard channels = %v, want none", res.unmapped)
	}
}

func TestCheckMappings_SimulatorProfile(t *testing.T) {
	profile := readTestProfile(t, "../profiles/simulator.json")

	res := checkMappings(profile, adapter.SimulatorChannels())
	if len(res.unknown) != 0 {
		t.Errorf("unknown mappings = %v, want none", res.unknown)
	}
}

func TestCheckMappings_ReportsUnknownAndUnmapped(t *testing.T) {
	profile := &broker.Profile{
		ChannelMappings: map[string]broker.StandardChannel{
			"rpm":  broker.RPM,
			"RPM2": broker.ThrottlePosition,
		},
	}

	res := checkMappings(profile, []string{"rpm", "coolantTemperature"})

	if len(res.mapped) != 1 || res.mapped[0] != "rpm" {
		t.Errorf("mapped = %v, want [rpm]", res.mapped)
	}
	if len(res.unknown) != 1 || res.unknown[0] != "RPM2" {
		t.Errorf("unknown = %v, want [RPM2]", res.unknown)
	}
	// Only RPM is covered; the unknown mapping does not count
	if len(res.unmapped) != len(broker.Channels())-1 {
		t.Errorf("unmapped = %d, want %d", len(res.unmapped), len(broker.Channels())-1)
	}
	for _, ch := range res.unmapped {
		if ch == broker.RPM {
			t.Error("RPM reported unmapped")
		}
	}
}

// ============================================================
// Dashboard Helper Tests
// ============================================================

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		ms   uint64
		want string
	}{
		{0, "0 seconds"},
		{1000, "1 second"},
		{45000, "45 seconds"},
		{60000, "1 minute"},
		{61000, "1 minute and 1 second"},
		{3 * 3600 * 1000, "3 hours"},
		{(26*3600 + 120 + 5) * 1000, "1 day, 2 hours, 2 minutes, and 5 seconds"},
	}

	for _, tt := range tests {
		if got := formatUptime(tt.ms); got != tt.want {
			t.Errorf("formatUptime(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestDisplayUnit(t *testing.T) {
	tests := []struct {
		ch       broker.StandardChannel
		imperial bool
		want     string
	}{
		{broker.CoolantTemperature, false, "°C"},
		{broker.CoolantTemperature, true, "F"},
		{broker.OilPressure, true, "psi"},
		{broker.VehicleSpeed, true, "mph"},
		{broker.RPM, true, "RPM"},
		{broker.BatteryVoltage, true, "V"},
	}

	for _, tt := range tests {
		if got := displayUnit(tt.ch, tt.imperial); got != tt.want {
			t.Errorf("displayUnit(%s, %v) = %q, want %q", tt.ch, tt.imperial, got, tt.want)
		}
	}
}

func TestFilterChannels(t *testing.T) {
	names := []string{"rpm", "coolantTemperature", "pd16A.output1Current", "oilTemperature"}

	all := filterChannels(names, "")
	if len(all) != 4 || all[0] != "coolantTemperature" {
		t.Errorf("empty filter = %v, want all names sorted", all)
	}

	temps := filterChannels(names, " TEMP ")
	if len(temps) != 2 || temps[0] != "coolantTemperature" || temps[1] != "oilTemperature" {
		t.Errorf("filter TEMP = %v", temps)
	}

	if got := filterChannels(names, "boost"); len(got) != 0 {
		t.Errorf("filter boost = %v, want none", got)
	}
}

// ============================================================
// Dashboard Model Tests
// ============================================================

func newTestDashModel() dashModel {
	p := &pipeline{
		broker:  broker.NewBroker(),
		adapter: adapter.NewSimulatorAdapter(0),
	}
	return initialDashModel(p, newDashFeed(), "simulator", false)
}

func TestDashModel_EventLog(t *testing.T) {
	m := newTestDashModel()
	m.maxLogEntries = 3

	var model tea.Model = m
	model, _ = model.Update(connectionMsg{connected: true})
	model, _ = model.Update(gearMsg{label: "N"})
	model, _ = model.Update(adapterErrorMsg{err: errors.New("bus off")})
	model, _ = model.Update(connectionMsg{connected: false})

	dm := model.(dashModel)
	if len(dm.events) != 3 {
		t.Fatalf("events = %d, want 3", len(dm.events))
	}
	if dm.events[0].message != "Gear N" {
		t.Errorf("oldest event = %q, want trimmed to Gear N", dm.events[0].message)
	}
	if !dm.events[1].isError || dm.events[1].message != "bus off" {
		t.Errorf("event 1 = %+v", dm.events[1])
	}
	if !dm.events[2].isError || dm.events[2].message != "Disconnected" {
		t.Errorf("event 2 = %+v", dm.events[2])
	}
}

func TestDashModel_Keys(t *testing.T) {
	var model tea.Model = newTestDashModel()

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'u'}})
	if !model.(dashModel).imperial {
		t.Error("u did not toggle imperial units")
	}

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'/'}})
	if !model.(dashModel).filter.Focused() {
		t.Fatal("/ did not focus the filter")
	}

	// q is typed into the filter while it has focus
	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if model.(dashModel).quitting {
		t.Error("q quit while filtering")
	}
	_ = cmd
	if got := model.(dashModel).filter.Value(); got != "q" {
		t.Errorf("filter value = %q, want q", got)
	}

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEsc})
	dm := model.(dashModel)
	if dm.filter.Focused() || dm.filter.Value() != "" {
		t.Error("esc did not clear and blur the filter")
	}

	model, cmd = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if !model.(dashModel).quitting || cmd == nil {
		t.Error("q did not quit")
	}
}

func TestDashModel_View(t *testing.T) {
	m := newTestDashModel()
	m.addLogEntry("Connected", false)

	view := m.View()
	for _, want := range []string{"DEVDASH", "coolantTemperature", "Waiting for data", "Connected", "(no channels)"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	m.quitting = true
	if m.View() != "Shutting down...\n" {
		t.Error("quitting view mismatch")
	}
}

func TestDashModel_FeedEventsKeepDraining(t *testing.T) {
	m := newTestDashModel()
	m.feed.post(gearMsg{label: "3"})

	model, cmd := m.Update(connectionMsg{connected: true})
	if cmd == nil {
		t.Fatal("event update did not wait for the next event")
	}
	if msg, ok := cmd().(gearMsg); !ok || msg.label != "3" {
		t.Errorf("next event = %#v, want gearMsg 3", msg)
	}
	if n := len(model.(dashModel).events); n != 1 {
		t.Errorf("events = %d, want 1", n)
	}
}

// ============================================================
// Event Feed Tests
// ============================================================

func TestDashFeed_PostNeverBlocks(t *testing.T) {
	feed := newDashFeed()

	done := make(chan struct{})
	go func() {
		for i := 0; i < feedSize+10; i++ {
			feed.post(gearMsg{label: "N"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("post blocked on a full feed")
	}

	close(feed)
	received := 0
	for msg := feed.next()(); msg != nil; msg = feed.next()() {
		received++
	}
	if received != feedSize {
		t.Errorf("received %d events, want %d", received, feedSize)
	}
}

// ============================================================
// Pipeline Tests
// ============================================================

func newSimulatorPipeline(t *testing.T) *pipeline {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	a, err := adapter.CreateFromProfile("../profiles/simulator.json")
	if err != nil {
		t.Fatalf("CreateFromProfile failed: %v", err)
	}
	b := broker.NewBroker()
	b.SetLogger(logger)
	if err := b.LoadProfileFile("../profiles/simulator.json"); err != nil {
		t.Fatalf("LoadProfileFile failed: %v", err)
	}
	b.SetAdapter(a)
	return &pipeline{broker: b, adapter: a}
}

func startWithin(t *testing.T, p *pipeline, limit time.Duration) {
	t.Helper()
	started := make(chan error, 1)
	go func() { started <- p.start(context.Background()) }()

	select {
	case err := <-started:
		if err != nil {
			t.Fatalf("start failed: %v", err)
		}
	case <-time.After(limit):
		t.Fatalf("start blocked for %s", limit)
	}
	t.Cleanup(p.stop)
}

func TestDashPipeline_StartsBeforeProgramRuns(t *testing.T) {
	p := newSimulatorPipeline(t)
	feed := newDashFeed()
	wireDashFeed(p.broker, feed)

	// The program is built but never run, as before prog.Run in runDash
	_ = tea.NewProgram(initialDashModel(p, feed, "simulator", false))

	startWithin(t, p, 2*time.Second)

	msg, ok := feed.next()().(connectionMsg)
	if !ok || !msg.connected {
		t.Errorf("first event = %#v, want connected", msg)
	}
}

func TestPipelineFinished_ReplayFromAdapterOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drive.log")
	log := "(1436509052.249713) vcan0 360#0DAC03E801F40000\n" +
		"(1436509052.259713) vcan0 360#0DAC03E801F40000\n"
	if err := os.WriteFile(path, []byte(log), 0o644); err != nil {
		t.Fatal(err)
	}

	// Replay settings come from adapter options only, not the config file
	a, err := adapter.Create(adapter.KindHaltech, map[string]interface{}{
		"transport":   "replay",
		"replayFile":  path,
		"replaySpeed": 0.0,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	b := broker.NewBroker()
	b.SetAdapter(a)
	p := &pipeline{broker: b, adapter: a}

	startWithin(t, p, 2*time.Second)

	select {
	case <-p.finished():
	case <-time.After(2 * time.Second):
		t.Fatal("finished not closed after the replay ran out")
	}
}

func TestPipelineFinished_SimulatorNeverFinishes(t *testing.T) {
	p := newSimulatorPipeline(t)
	if p.finished() != nil {
		t.Error("simulator pipeline reported a finish channel")
	}
}

// ============================================================
// Emit Tests
// ============================================================

func TestStartEmitSimulator(t *testing.T) {
	values := &latestValues{values: make(map[string]float64)}
	sim, err := startEmitSimulator(time.Millisecond, 7, values)
	if err != nil {
		t.Fatalf("startEmitSimulator failed: %v", err)
	}
	defer sim.Stop()

	if !sim.IsRunning() {
		t.Fatal("simulator not running")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		snap := values.snapshot()
		if _, ok := snap["rpm"]; ok {
			if _, ok := snap["airTemperature"]; !ok {
				t.Error("intake temperature not renamed to airTemperature")
			}
			if _, ok := snap["intakeAirTemperature"]; ok {
				t.Error("simulator name leaked past the alias table")
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("no simulated values received")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
