// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package adapter

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/devdash/pkg/logging"
	"github.com/Thermoquad/devdash/pkg/telemetry"
)

// SimulatorName is reported by Name
const SimulatorName = "Simulator"

// DefaultUpdateInterval is the simulator tick
const DefaultUpdateInterval = 50 * time.Millisecond

// Engine model
const (
	idleRPM        = 800.0
	maxRPM         = 8000.0
	rpmSpan        = maxRPM - idleRPM
	rpmLag         = 0.1
	maxSpeed       = 250.0
	kmhPerGear     = 40.0
	topGear        = 6
	neutralBelow   = 10.0
	toggleChance   = 5
	fuelBurnPerRev = 0.0000005
)

// SimulatorAdapter generates plausible engine data for bench testing
type SimulatorAdapter struct {
	interval time.Duration
	cache    *channelCache

	// engine state, owned by the generator goroutine
	rng          *rand.Rand
	rpm          float64
	rpmTarget    float64
	throttle     float64
	accelerating bool
	fuelLevel    float64

	mu      deadlock.Mutex
	running bool
	sink    telemetry.Sink
	cancel  context.CancelFunc
	done    chan struct{}

	log *logrus.Entry
}

// NewSimulatorAdapter creates a simulator that emits every interval
func NewSimulatorAdapter(interval time.Duration) *SimulatorAdapter {
	if interval <= 0 {
		interval = DefaultUpdateInterval
	}
	return &SimulatorAdapter{
		interval: interval,
		cache:    newChannelCache(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		log:      logging.For("simulator"),
	}
}

// SetSeed makes the generated sequence deterministic. Must be called before Start.
func (s *SimulatorAdapter) SetSeed(seed int64) {
	s.rng = rand.New(rand.NewSource(seed))
}

// SetLogger replaces the logger
func (s *SimulatorAdapter) SetLogger(logger *logrus.Logger) {
	s.log = logging.WithLogger(logger, "simulator")
}

// Interval returns the update interval
func (s *SimulatorAdapter) Interval() time.Duration {
	return s.interval
}

// Start resets the engine to idle and starts generating data
func (s *SimulatorAdapter) Start(sink telemetry.Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.reset()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.sink = sink
	s.running = true

	sink.ConnectionStateChanged(true)
	go s.loop(ctx, sink, s.done)

	s.log.WithField("interval", s.interval).Info("Simulator started")
	return nil
}

// Stop stops generating data
func (s *SimulatorAdapter) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cancel()
	<-s.done
	s.running = false
	s.sink.ConnectionStateChanged(false)
	s.log.Info("Simulator stopped")
}

// IsRunning implements telemetry.Adapter
func (s *SimulatorAdapter) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Channel implements telemetry.Adapter
func (s *SimulatorAdapter) Channel(name string) (telemetry.Value, bool) {
	return s.cache.get(name)
}

// AvailableChannels implements telemetry.Adapter
func (s *SimulatorAdapter) AvailableChannels() []string {
	return s.cache.names()
}

// Name implements telemetry.Adapter
func (s *SimulatorAdapter) Name() string {
	return SimulatorName
}

func (s *SimulatorAdapter) loop(ctx context.Context, sink telemetry.Sink, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, u := range s.step() {
				s.cache.set(u.Name, u.Value)
				sink.ChannelUpdated(u.Name, u.Value)
			}
		}
	}
}

func (s *SimulatorAdapter) reset() {
	s.rpm = idleRPM
	s.rpmTarget = idleRPM
	s.throttle = 0
	s.accelerating = false
	s.fuelLevel = 75
}

// uniform returns a value in [-spread/2, spread/2)
func (s *SimulatorAdapter) uniform(spread float64) float64 {
	return s.rng.Float64()*spread - spread/2
}

// step advances the engine model one tick and returns the new readings
func (s *SimulatorAdapter) step() []telemetry.Update {
	if s.rng.Intn(100) < toggleChance {
		s.accelerating = !s.accelerating
	}

	if s.accelerating {
		s.throttle = math.Min(100, s.throttle+s.rng.Float64()*5)
	} else {
		s.throttle = math.Max(0, s.throttle-s.rng.Float64()*3)
	}
	s.rpmTarget = idleRPM + s.throttle/100*rpmSpan

	// RPM follows the target with lag plus noise
	s.rpm += (s.rpmTarget - s.rpm) * rpmLag
	s.rpm += s.uniform(20)
	s.rpm = math.Max(0, math.Min(maxRPM, s.rpm))

	s.fuelLevel = math.Max(0, s.fuelLevel-s.rpm*fuelBurnPerRev)

	speed := math.Max(0, (s.rpm-idleRPM)/rpmSpan*maxSpeed)
	gear := 0
	if speed >= neutralBelow {
		gear = min(topGear, int(speed/kmhPerGear)+1)
	}

	return []telemetry.Update{
		telemetry.NewUpdate("rpm", s.rpm, "RPM"),
		telemetry.NewUpdate("throttlePosition", s.throttle, "%"),
		telemetry.NewUpdate("coolantTemperature", 85+s.uniform(5), "°C"),
		telemetry.NewUpdate("oilTemperature", 90+s.uniform(5), "°C"),
		telemetry.NewUpdate("intakeAirTemperature", 35+s.uniform(3), "°C"),
		telemetry.NewUpdate("oilPressure", 200+s.rpm/maxRPM*300+s.uniform(20), "kPa"),
		telemetry.NewUpdate("manifoldPressure", 30+s.throttle/100*170, "kPa"),
		telemetry.NewUpdate("fuelPressure", 300+s.uniform(10), "kPa"),
		telemetry.NewUpdate("fuelLevel", s.fuelLevel, "%"),
		telemetry.NewUpdate("airFuelRatio", 1.0-s.throttle/100*0.15+s.uniform(0.02), ""),
		telemetry.NewUpdate("batteryVoltage", 13.8+s.uniform(0.4), "V"),
		telemetry.NewUpdate("vehicleSpeed", speed, "km/h"),
		telemetry.NewUpdate("gear", float64(gear), ""),
	}
}

// SimulatorChannels returns the channel names the simulator produces, sorted
func SimulatorChannels() []string {
	s := NewSimulatorAdapter(0)
	s.reset()
	return telemetry.SortedNames(s.step())
}
