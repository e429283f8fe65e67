// v0
// internal/generator/generator.go
// Package generator produces synthetic sensor readings: random ones around
// indoor comfort values, caller-specified ones, and readings forced past a
// single threshold.
package generator

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adilblanco/Kafka-iot-poc/internal/sensor"
)

const (
	DefaultCustomSensorID = "sensor_custom"
	UnassignedLocation    = "unassigned"

	temperatureMean   = 22.0
	temperatureStdDev = 2.0
	humidityMean      = 50.0
	humidityStdDev    = 8.0
	pressureMean      = 1013.25
	pressureStdDev    = 5.0
	batteryMin        = 40.0
	batteryMax        = 100.0

	temperatureMargin = 3.0
	humidityMargin    = 5.0
	pressureMargin    = 8.0
	batteryMargin     = 5.0

	// jitter around band midpoints never exceeds this share of the half-width
	jitterShare = 0.25
)

// Recorder receives one call per successfully generated reading.
type Recorder interface {
	RecordReading()
}

// Options configures a Generator. Zero values fall back to defaults.
type Options struct {
	Thresholds sensor.Thresholds
	Recorder   Recorder
	Rand       *rand.Rand
	Clock      func() time.Time
	// Locations is used to pick a default location for custom readings.
	Locations []string
}

// Overrides selects the fields of a custom reading. Nil fields are drawn
// from the random distributions.
type Overrides struct {
	SensorID     string
	Location     string
	Temperature  *float64
	Humidity     *float64
	Pressure     *float64
	BatteryLevel *float64
}

// Generator is safe for concurrent use.
type Generator struct {
	th        sensor.Thresholds
	rec       Recorder
	clock     func() time.Time
	locations []string

	mu     sync.Mutex
	rng    *rand.Rand
	lastTS time.Time
}

// New validates the thresholds and returns a ready generator.
func New(opts Options) (*Generator, error) {
	th := opts.Thresholds
	if th == (sensor.Thresholds{}) {
		th = sensor.DefaultThresholds()
	}
	if err := th.Validate(); err != nil {
		return nil, err
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Generator{
		th:        th,
		rec:       opts.Recorder,
		clock:     clock,
		locations: append([]string(nil), opts.Locations...),
		rng:       rng,
	}, nil
}

// Thresholds returns the bands this generator was built with.
func (g *Generator) Thresholds() sensor.Thresholds { return g.th }

// GenerateRandom draws a reading for sensorID at a location picked uniformly
// from pool. An empty sensorID is replaced by a generated one.
func (g *Generator) GenerateRandom(sensorID string, pool []string) (sensor.Reading, error) {
	if len(pool) == 0 {
		return sensor.Reading{}, &sensor.ConfigurationError{Field: "generator.locations", Reason: "location pool is empty"}
	}
	sensorID = strings.TrimSpace(sensorID)
	if sensorID == "" {
		sensorID = newSensorID()
	}

	g.mu.Lock()
	r := sensor.Reading{
		SensorID:     sensorID,
		Location:     pool[g.rng.Intn(len(pool))],
		Timestamp:    g.nextTimestamp(),
		Temperature:  g.randTemperature(),
		Humidity:     g.randHumidity(),
		Pressure:     g.randPressure(),
		BatteryLevel: g.randBattery(),
	}
	g.mu.Unlock()

	return g.finish(r), nil
}

// GenerateCustom builds a reading from the given overrides. Humidity and
// battery are clamped to [0,100]; temperature and pressure are taken as is.
func (g *Generator) GenerateCustom(o Overrides) sensor.Reading {
	sensorID := strings.TrimSpace(o.SensorID)
	if sensorID == "" {
		sensorID = DefaultCustomSensorID
	}
	location := strings.TrimSpace(o.Location)
	if location == "" {
		location = g.defaultLocation()
	}

	g.mu.Lock()
	r := sensor.Reading{
		SensorID:     sensorID,
		Location:     location,
		Timestamp:    g.nextTimestamp(),
		Temperature:  pick(o.Temperature, g.randTemperature),
		Humidity:     pick(o.Humidity, g.randHumidity),
		Pressure:     pick(o.Pressure, g.randPressure),
		BatteryLevel: pick(o.BatteryLevel, g.randBattery),
	}
	g.mu.Unlock()

	return g.finish(r)
}

// GenerateForcedAnomaly returns a reading for which Classify yields exactly
// [kind]. The anomalous field is pushed past its threshold by a fixed
// margin; the other fields sit near the middle of their normal band.
func (g *Generator) GenerateForcedAnomaly(kind sensor.Kind, sensorID, location string) (sensor.Reading, error) {
	if !kind.Valid() {
		return sensor.Reading{}, fmt.Errorf("%w: %q", sensor.ErrUnknownAnomalyKind, kind)
	}
	sensorID = strings.TrimSpace(sensorID)
	if sensorID == "" {
		sensorID = "sensor_anomaly_" + string(kind)
	}
	location = strings.TrimSpace(location)
	if location == "" {
		location = g.defaultLocation()
	}

	g.mu.Lock()
	r := sensor.Reading{
		SensorID:     sensorID,
		Location:     location,
		Timestamp:    g.nextTimestamp(),
		Temperature:  g.midpoint(g.th.TemperatureLow, g.th.TemperatureHigh),
		Humidity:     g.midpoint(g.th.HumidityLow, g.th.HumidityHigh),
		Pressure:     g.midpoint(g.th.PressureLow, g.th.PressureHigh),
		BatteryLevel: g.midpoint(g.th.BatteryLow, 100),
	}
	g.mu.Unlock()

	switch kind {
	case sensor.HighTemperature:
		r.Temperature = g.th.TemperatureHigh + temperatureMargin
	case sensor.LowTemperature:
		r.Temperature = g.th.TemperatureLow - temperatureMargin
	case sensor.HighHumidity:
		r.Humidity = math.Min(g.th.HumidityHigh+humidityMargin, 100)
	case sensor.LowHumidity:
		r.Humidity = math.Max(g.th.HumidityLow-humidityMargin, 0)
	case sensor.AbnormalPressure:
		r.Pressure = g.th.PressureHigh + pressureMargin
	case sensor.LowBattery:
		r.BatteryLevel = math.Max(g.th.BatteryLow-batteryMargin, 0)
	}

	return g.finish(r), nil
}

func (g *Generator) finish(r sensor.Reading) sensor.Reading {
	r = r.Normalize()
	if g.rec != nil {
		g.rec.RecordReading()
	}
	return r
}

func (g *Generator) defaultLocation() string {
	if len(g.locations) > 0 {
		return g.locations[0]
	}
	return UnassignedLocation
}

// nextTimestamp must be called with g.mu held.
func (g *Generator) nextTimestamp() time.Time {
	ts := g.clock().UTC()
	if ts.Before(g.lastTS) {
		ts = g.lastTS
	}
	g.lastTS = ts
	return ts
}

// The rand helpers below must be called with g.mu held.

func (g *Generator) randTemperature() float64 {
	return temperatureMean + g.rng.NormFloat64()*temperatureStdDev
}

func (g *Generator) randHumidity() float64 {
	return humidityMean + g.rng.NormFloat64()*humidityStdDev
}

func (g *Generator) randPressure() float64 {
	p := pressureMean + g.rng.NormFloat64()*pressureStdDev
	return math.Min(math.Max(p, g.th.PressureLow), g.th.PressureHigh)
}

func (g *Generator) randBattery() float64 {
	return batteryMin + g.rng.Float64()*(batteryMax-batteryMin)
}

func (g *Generator) midpoint(low, high float64) float64 {
	mid := (low + high) / 2
	half := (high - low) / 2
	return mid + (g.rng.Float64()*2-1)*half*jitterShare
}

func pick(v *float64, fallback func() float64) float64 {
	if v != nil {
		return *v
	}
	return fallback()
}

func newSensorID() string {
	return "sensor-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
