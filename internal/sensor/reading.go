// v0
// internal/sensor/reading.go
package sensor

import (
	"math"
	"time"
)

// Reading is a single synthetic measurement snapshot.
type Reading struct {
	SensorID     string    `json:"sensorId"`
	Location     string    `json:"location"`
	Timestamp    time.Time `json:"timestamp"`
	Temperature  float64   `json:"temperature"`
	Humidity     float64   `json:"humidity"`
	Pressure     float64   `json:"pressure"`
	BatteryLevel float64   `json:"batteryLevel"`
}

// ClampPercent bounds v to [0,100]. NaN is mapped to 0.
func ClampPercent(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// Round2 rounds to two decimals, the precision used on the wire.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return math.Round(v*100) / 100
}

// Normalize returns a copy with percent fields clamped, values rounded and
// the timestamp in UTC.
func (r Reading) Normalize() Reading {
	out := r
	out.Temperature = Round2(r.Temperature)
	out.Pressure = Round2(r.Pressure)
	out.Humidity = ClampPercent(Round2(r.Humidity))
	out.BatteryLevel = ClampPercent(Round2(r.BatteryLevel))
	if !out.Timestamp.IsZero() {
		out.Timestamp = out.Timestamp.UTC()
	}
	return out
}
