// v0
// internal/sensor/policy.go
package sensor

// Severity grades an alert.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Classify evaluates every check independently and returns the kinds that
// fire, in a fixed order. NaN inputs compare false and never classify.
func Classify(r Reading, t Thresholds) []Kind {
	var out []Kind
	if r.Temperature > t.TemperatureHigh {
		out = append(out, HighTemperature)
	}
	if r.Temperature < t.TemperatureLow {
		out = append(out, LowTemperature)
	}
	if r.Humidity > t.HumidityHigh {
		out = append(out, HighHumidity)
	}
	if r.Humidity < t.HumidityLow {
		out = append(out, LowHumidity)
	}
	if r.Pressure < t.PressureLow || r.Pressure > t.PressureHigh {
		out = append(out, AbnormalPressure)
	}
	if r.BatteryLevel < t.BatteryLow {
		out = append(out, LowBattery)
	}
	return out
}

// Grade returns critical when any classified field crossed its critical
// tier, warning otherwise.
func Grade(r Reading, kinds []Kind, t Thresholds) Severity {
	for _, k := range kinds {
		if isCritical(r, k, t) {
			return SeverityCritical
		}
	}
	return SeverityWarning
}

func isCritical(r Reading, k Kind, t Thresholds) bool {
	switch k {
	case HighTemperature:
		return r.Temperature >= t.TemperatureCriticalHigh
	case LowTemperature:
		return r.Temperature <= t.TemperatureCriticalLow
	case HighHumidity:
		return r.Humidity >= t.HumidityCriticalHigh
	case LowHumidity:
		return r.Humidity <= t.HumidityCriticalLow
	case AbnormalPressure:
		return r.Pressure <= t.PressureCriticalLow || r.Pressure >= t.PressureCriticalHigh
	case LowBattery:
		return r.BatteryLevel <= t.BatteryCritical
	}
	return false
}
