// v0
// internal/sensor/thresholds.go
package sensor

import (
	"fmt"
	"math"
)

// ConfigurationError reports a setting that prevents the pipeline from
// starting. It is raised at construction time, never per reading.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Thresholds holds the alert bands evaluated by Classify and the critical
// tiers used to grade alert severity.
type Thresholds struct {
	TemperatureHigh float64
	TemperatureLow  float64
	HumidityHigh    float64
	HumidityLow     float64
	PressureLow     float64
	PressureHigh    float64
	BatteryLow      float64

	TemperatureCriticalHigh float64
	TemperatureCriticalLow  float64
	HumidityCriticalHigh    float64
	HumidityCriticalLow     float64
	PressureCriticalLow     float64
	PressureCriticalHigh    float64
	BatteryCritical         float64
}

// DefaultThresholds returns the building comfort bands.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TemperatureHigh: 26.0,
		TemperatureLow:  18.0,
		HumidityHigh:    80.0,
		HumidityLow:     30.0,
		PressureLow:     980.0,
		PressureHigh:    1040.0,
		BatteryLow:      20.0,

		TemperatureCriticalHigh: 30.0,
		TemperatureCriticalLow:  15.0,
		HumidityCriticalHigh:    90.0,
		HumidityCriticalLow:     20.0,
		PressureCriticalLow:     960.0,
		PressureCriticalHigh:    1060.0,
		BatteryCritical:         10.0,
	}
}

// Validate rejects inconsistent bands.
func (t Thresholds) Validate() error {
	fields := map[string]float64{
		"temperature_high": t.TemperatureHigh, "temperature_low": t.TemperatureLow,
		"humidity_high": t.HumidityHigh, "humidity_low": t.HumidityLow,
		"pressure_low": t.PressureLow, "pressure_high": t.PressureHigh,
		"battery_low": t.BatteryLow,
		"temperature_critical_high": t.TemperatureCriticalHigh, "temperature_critical_low": t.TemperatureCriticalLow,
		"humidity_critical_high": t.HumidityCriticalHigh, "humidity_critical_low": t.HumidityCriticalLow,
		"pressure_critical_low": t.PressureCriticalLow, "pressure_critical_high": t.PressureCriticalHigh,
		"battery_critical": t.BatteryCritical,
	}
	for name, v := range fields {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ConfigurationError{Field: "thresholds." + name, Reason: "must be a finite number"}
		}
	}
	if t.TemperatureLow >= t.TemperatureHigh {
		return &ConfigurationError{Field: "thresholds.temperature", Reason: "low must be below high"}
	}
	if t.HumidityLow >= t.HumidityHigh {
		return &ConfigurationError{Field: "thresholds.humidity", Reason: "low must be below high"}
	}
	if t.HumidityLow <= 0 || t.HumidityHigh >= 100 {
		return &ConfigurationError{Field: "thresholds.humidity", Reason: "band must lie strictly inside (0,100)"}
	}
	if t.PressureLow >= t.PressureHigh {
		return &ConfigurationError{Field: "thresholds.pressure", Reason: "low must be below high"}
	}
	if t.BatteryLow <= 0 || t.BatteryLow >= 100 {
		return &ConfigurationError{Field: "thresholds.battery_low", Reason: "must lie strictly inside (0,100)"}
	}
	if t.TemperatureCriticalHigh < t.TemperatureHigh || t.TemperatureCriticalLow > t.TemperatureLow {
		return &ConfigurationError{Field: "thresholds.temperature_critical", Reason: "critical tier must lie outside the warning band"}
	}
	if t.HumidityCriticalHigh < t.HumidityHigh || t.HumidityCriticalLow > t.HumidityLow {
		return &ConfigurationError{Field: "thresholds.humidity_critical", Reason: "critical tier must lie outside the warning band"}
	}
	if t.PressureCriticalHigh < t.PressureHigh || t.PressureCriticalLow > t.PressureLow {
		return &ConfigurationError{Field: "thresholds.pressure_critical", Reason: "critical tier must lie outside the warning band"}
	}
	if t.BatteryCritical > t.BatteryLow || t.BatteryCritical < 0 {
		return &ConfigurationError{Field: "thresholds.battery_critical", Reason: "must lie in [0, battery_low]"}
	}
	return nil
}
