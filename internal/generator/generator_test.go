// v0
// internal/generator/generator_test.go
package generator

import (
	"errors"
	"math/rand"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/adilblanco/Kafka-iot-poc/internal/sensor"
)

type countingRecorder struct{ n atomic.Int64 }

func (c *countingRecorder) RecordReading() { c.n.Add(1) }

func newTestGenerator(t *testing.T, rec Recorder) *Generator {
	t.Helper()
	g, err := New(Options{
		Recorder:  rec,
		Rand:      rand.New(rand.NewSource(42)),
		Locations: []string{"lobby", "server_room"},
	})
	require.NoError(t, err)
	return g
}

func ptr(v float64) *float64 { return &v }

func TestNewRejectsInvalidThresholds(t *testing.T) {
	th := sensor.DefaultThresholds()
	th.TemperatureLow = 40
	_, err := New(Options{Thresholds: th})
	var cfgErr *sensor.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
}

func TestGenerateRandomEmptyPool(t *testing.T) {
	rec := &countingRecorder{}
	g := newTestGenerator(t, rec)
	_, err := g.GenerateRandom("sensor_001", nil)
	var cfgErr *sensor.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	require.Zero(t, rec.n.Load())
}

func TestGenerateRandomBounds(t *testing.T) {
	rec := &countingRecorder{}
	g := newTestGenerator(t, rec)
	th := g.Thresholds()
	pool := []string{"lobby", "office_a", "office_b"}
	for range 500 {
		r, err := g.GenerateRandom("", pool)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(r.SensorID, "sensor-"))
		require.Len(t, r.SensorID, len("sensor-")+8)
		require.Contains(t, pool, r.Location)
		require.GreaterOrEqual(t, r.Humidity, 0.0)
		require.LessOrEqual(t, r.Humidity, 100.0)
		require.GreaterOrEqual(t, r.BatteryLevel, 40.0)
		require.LessOrEqual(t, r.BatteryLevel, 100.0)
		require.GreaterOrEqual(t, r.Pressure, th.PressureLow)
		require.LessOrEqual(t, r.Pressure, th.PressureHigh)
		require.Equal(t, time.UTC, r.Timestamp.Location())
	}
	require.EqualValues(t, 500, rec.n.Load())
}

func TestGenerateCustomClampsAndDefaults(t *testing.T) {
	g := newTestGenerator(t, nil)
	r := g.GenerateCustom(Overrides{Humidity: ptr(150), BatteryLevel: ptr(-5), Temperature: ptr(45.123)})
	require.Equal(t, DefaultCustomSensorID, r.SensorID)
	require.Equal(t, "lobby", r.Location)
	require.Equal(t, 100.0, r.Humidity)
	require.Equal(t, 0.0, r.BatteryLevel)
	require.Equal(t, 45.12, r.Temperature)

	r = g.GenerateCustom(Overrides{SensorID: "sensor_009", Location: "roof", Pressure: ptr(1100)})
	require.Equal(t, "sensor_009", r.SensorID)
	require.Equal(t, "roof", r.Location)
	require.Equal(t, 1100.0, r.Pressure)

	bare, err := New(Options{})
	require.NoError(t, err)
	require.Equal(t, UnassignedLocation, bare.GenerateCustom(Overrides{}).Location)
}

func TestGenerateForcedAnomalyYieldsExactlyKind(t *testing.T) {
	g := newTestGenerator(t, nil)
	th := g.Thresholds()
	for _, kind := range sensor.AllKinds() {
		for range 50 {
			r, err := g.GenerateForcedAnomaly(kind, "", "")
			require.NoError(t, err)
			require.Equal(t, []sensor.Kind{kind}, sensor.Classify(r, th), "kind %s reading %+v", kind, r)
		}
	}
}

func TestGenerateForcedAnomalyUnknownKind(t *testing.T) {
	rec := &countingRecorder{}
	g := newTestGenerator(t, rec)
	_, err := g.GenerateForcedAnomaly(sensor.Kind("smoke"), "sensor_001", "lobby")
	require.ErrorIs(t, err, sensor.ErrUnknownAnomalyKind)
	require.Zero(t, rec.n.Load())
}

func TestTimestampsNeverGoBackwards(t *testing.T) {
	base := time.Date(2025, 10, 29, 12, 0, 0, 0, time.UTC)
	steps := []time.Duration{0, 2 * time.Second, time.Second, 3 * time.Second, 0}
	var i int
	g, err := New(Options{
		Rand: rand.New(rand.NewSource(1)),
		Clock: func() time.Time {
			ts := base.Add(steps[i%len(steps)])
			i++
			return ts
		},
	})
	require.NoError(t, err)

	var last time.Time
	for range len(steps) {
		r, err := g.GenerateRandom("sensor_001", []string{"lobby"})
		require.NoError(t, err)
		require.False(t, r.Timestamp.Before(last))
		last = r.Timestamp
	}
}
