// v0
// internal/event/event.go
// Package event turns classified readings into publishable events and alerts.
package event

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adilblanco/Kafka-iot-poc/internal/sensor"
)

// SourceTag records how the underlying reading was produced.
type SourceTag string

const (
	SourceSimulated     SourceTag = "simulated"
	SourceCustom        SourceTag = "custom"
	SourceForcedAnomaly SourceTag = "forced-anomaly"
)

// Event is a reading plus its classifications. Build returns it by value
// and the classifications slice is never shared with the caller.
type Event struct {
	EventID         string
	Reading         sensor.Reading
	SourceTag       SourceTag
	Classifications []sensor.Kind
}

// Alert exists only for events with at least one classification.
type Alert struct {
	AlertID         string
	EventID         string
	SensorID        string
	Location        string
	Classifications []sensor.Kind
	Severity        sensor.Severity
	Timestamp       time.Time
}

// Build classifies r against t and returns the event plus an alert when any
// check fired. It performs no I/O.
func Build(r sensor.Reading, tag SourceTag, t sensor.Thresholds) (Event, *Alert) {
	r = r.Normalize()
	kinds := sensor.Classify(r, t)
	if strings.TrimSpace(string(tag)) == "" {
		tag = SourceSimulated
	}
	ev := Event{
		EventID:         uuid.NewString(),
		Reading:         r,
		SourceTag:       tag,
		Classifications: cloneKinds(kinds),
	}
	if len(kinds) == 0 {
		return ev, nil
	}
	return ev, &Alert{
		AlertID:         uuid.NewString(),
		EventID:         ev.EventID,
		SensorID:        r.SensorID,
		Location:        r.Location,
		Classifications: cloneKinds(kinds),
		Severity:        sensor.Grade(r, kinds, t),
		Timestamp:       r.Timestamp,
	}
}

// HasAnomaly reports whether the event carries any classification.
func (e Event) HasAnomaly() bool { return len(e.Classifications) > 0 }

func cloneKinds(in []sensor.Kind) []sensor.Kind {
	out := make([]sensor.Kind, len(in))
	copy(out, in)
	return out
}
