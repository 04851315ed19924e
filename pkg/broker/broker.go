// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package broker

import (
	"errors"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/devdash/pkg/logging"
	"github.com/Thermoquad/devdash/pkg/telemetry"
	"github.com/Thermoquad/devdash/pkg/units"
)

// Defaults
const (
	DefaultTickInterval = 16 * time.Millisecond
	neutralLabel        = "N"
)

// ErrNoAdapter is returned by Start when no adapter has been set
var ErrNoAdapter = errors.New("no adapter set")

// Change describes a standard channel whose value changed. Label is set for
// the gear channel only.
type Change struct {
	Channel StandardChannel
	Value   float64
	Label   string
}

// Metrics receives router counters. The zero Broker uses a no-op recorder.
type Metrics interface {
	UpdateProcessed()
	UpdateInvalid()
	UpdateUnmapped()
	ChannelChanged(channel string)
	QueueDepth(depth int)
	Connected(connected bool)
	TickDuration(d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) UpdateProcessed() {}
func (nopMetrics) UpdateInvalid() {}
func (nopMetrics) UpdateUnmapped() {}
func (nopMetrics) ChannelChanged(string) {}
func (nopMetrics) QueueDepth(int) {}
func (nopMetrics) Connected(bool) {}
func (nopMetrics) TickDuration(time.Duration) {}

// routes is an immutable routing table built from a profile
type routes struct {
	channels map[string]StandardChannel
	gears    map[int]string
}

// Broker receives channel updates from an adapter, queues them, and applies
// them to the standard channels on a single consumer goroutine.
//
// Adapters call the Sink methods from any goroutine. Getters are safe from
// any goroutine. Listeners must be registered before Start.
type Broker struct {
	queue     *telemetry.Queue
	routes    atomic.Pointer[routes]
	values    [channelCount]atomic.Uint64
	gear      atomic.Pointer[string]
	connected atomic.Bool
	converter *units.Converter

	mu       deadlock.Mutex
	adapter  telemetry.Adapter
	running  bool
	stopCh   chan struct{}
	done     chan struct{}
	interval time.Duration
	bulkSize int

	// owned by the consumer goroutine
	warned map[string]struct{}

	onChange     []func(Change)
	onConnection []func(bool)
	onError      []func(error)

	metrics Metrics
	log     *logrus.Entry
}

// NewBroker creates a broker with an empty profile
func NewBroker() *Broker {
	b := &Broker{
		queue:     telemetry.NewQueue(),
		converter: units.NewConverter(),
		interval:  DefaultTickInterval,
		bulkSize:  telemetry.DefaultBulkSize,
		warned:    make(map[string]struct{}),
		metrics:   nopMetrics{},
		log:       logging.For("broker"),
	}
	label := neutralLabel
	b.gear.Store(&label)
	b.routes.Store(&routes{
		channels: map[string]StandardChannel{},
		gears:    DefaultGearMapping(),
	})
	return b
}

// SetLogger replaces the logger
func (b *Broker) SetLogger(logger *logrus.Logger) {
	b.log = logging.WithLogger(logger, "broker")
}

// SetMetrics installs a metrics recorder. Must be called before Start.
func (b *Broker) SetMetrics(m Metrics) {
	if m == nil {
		m = nopMetrics{}
	}
	b.metrics = m
}

// SetTickInterval sets the consumer tick. Non-positive values are ignored.
func (b *Broker) SetTickInterval(d time.Duration) {
	if d > 0 {
		b.interval = d
	}
}

// SetBulkSize sets the maximum updates dequeued per batch
func (b *Broker) SetBulkSize(n int) {
	if n > 0 {
		b.bulkSize = n
	}
}

// ============================================================
// Profile
// ============================================================

// LoadProfile replaces the channel and gear mappings. A nil profile clears
// the channel mappings and restores the default gear labels.
func (b *Broker) LoadProfile(p *Profile) {
	if p == nil {
		p = &Profile{GearMapping: DefaultGearMapping()}
	}
	r := &routes{
		channels: make(map[string]StandardChannel, len(p.ChannelMappings)),
		gears:    make(map[int]string, len(p.GearMapping)),
	}
	for name, ch := range p.ChannelMappings {
		r.channels[name] = ch
	}
	for gear, label := range p.GearMapping {
		r.gears[gear] = label
	}
	b.routes.Store(r)
	b.log.WithField("mappings", len(r.channels)).Info("Profile applied")
}

// LoadProfileJSON parses and applies a profile document. The current mapping
// is kept when parsing fails.
func (b *Broker) LoadProfileJSON(data []byte) error {
	p, err := ParseProfile(data, b.log)
	if err != nil {
		return err
	}
	b.LoadProfile(p)
	return nil
}

// LoadProfileFile reads and applies a profile file
func (b *Broker) LoadProfileFile(path string) error {
	p, err := ReadProfile(path, b.log)
	if err != nil {
		return err
	}
	b.LoadProfile(p)
	return nil
}

// MappedChannels returns the protocol channel names in the current mapping
func (b *Broker) MappedChannels() []string {
	r := b.routes.Load()
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ============================================================
// Lifecycle
// ============================================================

// SetAdapter replaces the adapter. A previous adapter is stopped along with
// the consumer, and the broker is marked disconnected.
func (b *Broker) SetAdapter(a telemetry.Adapter) {
	b.mu.Lock()
	if b.adapter != nil {
		b.stopLocked()
	}
	b.adapter = a
	b.mu.Unlock()

	b.ConnectionStateChanged(false)
}

// Adapter returns the current adapter, or nil
func (b *Broker) Adapter() telemetry.Adapter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.adapter
}

// Start starts the consumer and the adapter
func (b *Broker) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.adapter == nil {
		b.log.Warn("Cannot start without an adapter")
		return ErrNoAdapter
	}
	if len(b.routes.Load().channels) == 0 {
		b.log.Warn("No channel mappings loaded, data will be ignored")
	}

	if !b.running {
		b.stopCh = make(chan struct{})
		b.done = make(chan struct{})
		b.running = true
		go b.loop(b.stopCh, b.done)
	}

	if err := b.adapter.Start(b); err != nil {
		b.stopLocked()
		return err
	}

	b.log.WithFields(logrus.Fields{
		"adapter":  b.adapter.Name(),
		"interval": b.interval,
	}).Info("Broker started")
	return nil
}

// Stop stops the consumer and the adapter. Queued updates are not drained.
func (b *Broker) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
}

func (b *Broker) stopLocked() {
	if b.running {
		close(b.stopCh)
		<-b.done
		b.running = false
	}
	if b.adapter != nil && b.adapter.IsRunning() {
		b.adapter.Stop()
	}
}

// IsRunning reports whether the consumer is running
func (b *Broker) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

func (b *Broker) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			b.processQueue()
		}
	}
}

// processQueue drains the queue in batches and applies each update.
// Must only be called from the consumer goroutine.
func (b *Broker) processQueue() {
	start := time.Now()
	processed := 0

	for {
		updates := b.queue.DequeueBulk(b.bulkSize)
		for i := range updates {
			b.apply(&updates[i])
		}
		processed += len(updates)
		if len(updates) < b.bulkSize {
			break
		}
	}

	b.metrics.QueueDepth(b.queue.ApproxSize())
	if processed > 0 {
		b.metrics.TickDuration(time.Since(start))
		b.log.WithField("updates", processed).Debug("Processed queue")
	}
}

func (b *Broker) apply(u *telemetry.Update) {
	if !u.Value.Valid {
		b.metrics.UpdateInvalid()
		return
	}

	r := b.routes.Load()
	ch, ok := r.channels[u.Name]
	if !ok {
		b.metrics.UpdateUnmapped()
		if _, seen := b.warned[u.Name]; !seen {
			b.warned[u.Name] = struct{}{}
			b.log.WithFields(logrus.Fields{
				"channel":  u.Name,
				"mappings": b.MappedChannels(),
			}).Error("Unmapped channel, check profile channelMappings")
		}
		return
	}
	b.metrics.UpdateProcessed()

	v := u.Value.Value
	if ch == Gear {
		b.applyGear(r, v)
		return
	}

	bits := math.Float64bits(v)
	if math.Float64frombits(b.values[ch].Load()) == v {
		return
	}
	b.values[ch].Store(bits)
	b.notifyChange(Change{Channel: ch, Value: v})
}

func (b *Broker) applyGear(r *routes, v float64) {
	b.values[Gear].Store(math.Float64bits(v))

	label, ok := r.gears[int(v)]
	if !ok {
		label = neutralLabel
	}
	if *b.gear.Load() == label {
		return
	}
	b.gear.Store(&label)
	b.notifyChange(Change{Channel: Gear, Value: v, Label: label})
}

func (b *Broker) notifyChange(c Change) {
	b.metrics.ChannelChanged(c.Channel.String())
	for _, fn := range b.onChange {
		fn(c)
	}
}

// ============================================================
// Sink
// ============================================================

// ChannelUpdated queues an update for the next tick
func (b *Broker) ChannelUpdated(name string, value telemetry.Value) {
	if !b.queue.Enqueue(name, value) {
		b.log.WithField("channel", name).Warn("Failed to enqueue update")
	}
}

// ConnectionStateChanged records the adapter connection state
func (b *Broker) ConnectionStateChanged(connected bool) {
	if b.connected.Swap(connected) == connected {
		return
	}
	b.metrics.Connected(connected)
	b.log.WithField("connected", connected).Info("Connection state changed")
	for _, fn := range b.onConnection {
		fn(connected)
	}
}

// ErrorOccurred logs an adapter error and forwards it to listeners
func (b *Broker) ErrorOccurred(err error) {
	b.log.WithError(err).Error("Adapter error")
	for _, fn := range b.onError {
		fn(err)
	}
}

// ============================================================
// Listeners
// ============================================================

// OnChange registers a listener called on the consumer goroutine
func (b *Broker) OnChange(fn func(Change)) {
	b.onChange = append(b.onChange, fn)
}

// OnConnectionChange registers a listener for connection state changes
func (b *Broker) OnConnectionChange(fn func(bool)) {
	b.onConnection = append(b.onConnection, fn)
}

// OnError registers a listener for adapter errors
func (b *Broker) OnError(fn func(error)) {
	b.onError = append(b.onError, fn)
}

// ============================================================
// Getters
// ============================================================

// Value returns the current value of a channel in its native unit. For the
// gear channel this is the last raw gear number.
func (b *Broker) Value(ch StandardChannel) float64 {
	if !ch.Valid() {
		return 0
	}
	return math.Float64frombits(b.values[ch].Load())
}

// ValueIn returns the current value converted to unit. Unsupported
// conversions return the native value.
func (b *Broker) ValueIn(ch StandardChannel, unit string) float64 {
	return b.converter.Convert(b.Value(ch), ch.NativeUnit(), unit)
}

// Gear returns the current gear label
func (b *Broker) Gear() string {
	return *b.gear.Load()
}

// IsConnected reports the last adapter connection state
func (b *Broker) IsConnected() bool {
	return b.connected.Load()
}

// QueueDepth returns the approximate number of queued updates
func (b *Broker) QueueDepth() int {
	return b.queue.ApproxSize()
}

// RPM returns the engine speed in RPM
func (b *Broker) RPM() float64 { return b.Value(RPM) }

// ThrottlePosition returns the throttle position in percent
func (b *Broker) ThrottlePosition() float64 { return b.Value(ThrottlePosition) }

// ManifoldPressure returns the manifold pressure in kPa
func (b *Broker) ManifoldPressure() float64 { return b.Value(ManifoldPressure) }

// CoolantTemperature returns the coolant temperature in °C
func (b *Broker) CoolantTemperature() float64 { return b.Value(CoolantTemperature) }

// OilTemperature returns the oil temperature in °C
func (b *Broker) OilTemperature() float64 { return b.Value(OilTemperature) }

// IntakeAirTemperature returns the intake air temperature in °C
func (b *Broker) IntakeAirTemperature() float64 { return b.Value(IntakeAirTemperature) }

// OilPressure returns the oil pressure in kPa
func (b *Broker) OilPressure() float64 { return b.Value(OilPressure) }

// FuelPressure returns the fuel pressure in kPa
func (b *Broker) FuelPressure() float64 { return b.Value(FuelPressure) }

// FuelLevel returns the fuel level in percent
func (b *Broker) FuelLevel() float64 { return b.Value(FuelLevel) }

// AirFuelRatio returns the air/fuel ratio
func (b *Broker) AirFuelRatio() float64 { return b.Value(AirFuelRatio) }

// BatteryVoltage returns the battery voltage in V
func (b *Broker) BatteryVoltage() float64 { return b.Value(BatteryVoltage) }

// VehicleSpeed returns the vehicle speed in km/h
func (b *Broker) VehicleSpeed() float64 { return b.Value(VehicleSpeed) }
