// v0
// internal/sensor/kind.go
package sensor

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies one anomaly condition a reading can trigger.
type Kind string

const (
	HighTemperature  Kind = "high_temperature"
	LowTemperature   Kind = "low_temperature"
	HighHumidity     Kind = "high_humidity"
	LowHumidity      Kind = "low_humidity"
	LowBattery       Kind = "low_battery"
	AbnormalPressure Kind = "abnormal_pressure"
)

// ErrUnknownAnomalyKind is returned when a caller names a kind outside the closed set.
var ErrUnknownAnomalyKind = errors.New("unknown anomaly kind")

var allKinds = []Kind{
	HighTemperature,
	LowTemperature,
	HighHumidity,
	LowHumidity,
	LowBattery,
	AbnormalPressure,
}

// AllKinds returns every supported kind in declaration order.
func AllKinds() []Kind {
	return append([]Kind(nil), allKinds...)
}

// ParseKind translates an external string into a Kind.
func ParseKind(raw string) (Kind, error) {
	candidate := Kind(strings.ToLower(strings.TrimSpace(raw)))
	for _, k := range allKinds {
		if k == candidate {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAnomalyKind, raw)
}

// Valid reports whether k belongs to the supported set.
func (k Kind) Valid() bool {
	for _, known := range allKinds {
		if k == known {
			return true
		}
	}
	return false
}

func (k Kind) String() string { return string(k) }

// KindStrings converts kinds to their wire names.
func KindStrings(kinds []Kind) []string {
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, string(k))
	}
	return out
}
