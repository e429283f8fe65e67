// v0
// internal/event/wire.go
package event

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/adilblanco/Kafka-iot-poc/internal/sensor"
)

const (
	// EventTypeReading identifies sensor reading payloads.
	EventTypeReading = "sensor.reading"
	// EventTypeAlert identifies alert payloads.
	EventTypeAlert = "sensor.alert"
	// SchemaVersionV1 is the initial version of both payload schemas.
	SchemaVersionV1 = "v1"
)

var errMissingID = errors.New("payload id must not be empty")

// EventPayload is the wire form of an Event.
type EventPayload struct {
	Type            string   `json:"type"`
	SchemaVersion   string   `json:"schemaVersion"`
	EventID         string   `json:"eventId"`
	SensorID        string   `json:"sensorId"`
	Location        string   `json:"location"`
	Timestamp       string   `json:"timestamp"`
	Temperature     float64  `json:"temperature"`
	Humidity        float64  `json:"humidity"`
	Pressure        float64  `json:"pressure"`
	BatteryLevel    float64  `json:"batteryLevel"`
	SourceTag       string   `json:"sourceTag"`
	Classifications []string `json:"classifications"`
}

// AlertPayload is the wire form of an Alert.
type AlertPayload struct {
	Type            string   `json:"type"`
	SchemaVersion   string   `json:"schemaVersion"`
	AlertID         string   `json:"alertId"`
	EventID         string   `json:"eventId"`
	SensorID        string   `json:"sensorId"`
	Location        string   `json:"location"`
	Classifications []string `json:"classifications"`
	Severity        string   `json:"severity"`
	Timestamp       string   `json:"timestamp"`
}

// EventToPayload maps an event onto its wire form.
func EventToPayload(e Event) EventPayload {
	return EventPayload{
		Type:            EventTypeReading,
		SchemaVersion:   SchemaVersionV1,
		EventID:         e.EventID,
		SensorID:        e.Reading.SensorID,
		Location:        e.Reading.Location,
		Timestamp:       formatTime(e.Reading.Timestamp),
		Temperature:     e.Reading.Temperature,
		Humidity:        e.Reading.Humidity,
		Pressure:        e.Reading.Pressure,
		BatteryLevel:    e.Reading.BatteryLevel,
		SourceTag:       string(e.SourceTag),
		Classifications: sensor.KindStrings(e.Classifications),
	}
}

// AlertToPayload maps an alert onto its wire form.
func AlertToPayload(a Alert) AlertPayload {
	return AlertPayload{
		Type:            EventTypeAlert,
		SchemaVersion:   SchemaVersionV1,
		AlertID:         a.AlertID,
		EventID:         a.EventID,
		SensorID:        a.SensorID,
		Location:        a.Location,
		Classifications: sensor.KindStrings(a.Classifications),
		Severity:        string(a.Severity),
		Timestamp:       formatTime(a.Timestamp),
	}
}

// EncodeEvent serialises an event as JSON.
func EncodeEvent(e Event) ([]byte, error) {
	if strings.TrimSpace(e.EventID) == "" {
		return nil, errMissingID
	}
	return json.Marshal(EventToPayload(e))
}

// EncodeAlert serialises an alert as JSON.
func EncodeAlert(a Alert) ([]byte, error) {
	if strings.TrimSpace(a.AlertID) == "" {
		return nil, errMissingID
	}
	return json.Marshal(AlertToPayload(a))
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}
