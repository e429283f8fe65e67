// v0
// internal/event/event_test.go
package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/adilblanco/Kafka-iot-poc/internal/sensor"
)

func reading() sensor.Reading {
	return sensor.Reading{
		SensorID:     "sensor_001",
		Location:     "server_room",
		Timestamp:    time.Date(2025, 10, 29, 14, 30, 0, 0, time.FixedZone("CET", 3600)),
		Temperature:  22,
		Humidity:     50,
		Pressure:     1013.25,
		BatteryLevel: 80,
	}
}

func TestBuildWithoutAnomaly(t *testing.T) {
	ev, alert := Build(reading(), SourceSimulated, sensor.DefaultThresholds())
	if alert != nil {
		t.Fatalf("expected no alert, got %+v", alert)
	}
	if _, err := uuid.Parse(ev.EventID); err != nil {
		t.Fatalf("event id is not a uuid: %v", err)
	}
	if ev.HasAnomaly() {
		t.Fatalf("expected no classifications, got %v", ev.Classifications)
	}
	if ev.Reading.Timestamp.Location() != time.UTC {
		t.Fatalf("expected UTC timestamp, got %v", ev.Reading.Timestamp.Location())
	}
}

func TestBuildWithAlert(t *testing.T) {
	r := reading()
	r.BatteryLevel = 12
	r.Temperature = 31
	ev, alert := Build(r, SourceCustom, sensor.DefaultThresholds())
	if alert == nil {
		t.Fatalf("expected alert")
	}
	if alert.EventID != ev.EventID {
		t.Fatalf("alert event id %q does not match %q", alert.EventID, ev.EventID)
	}
	if alert.AlertID == ev.EventID {
		t.Fatalf("alert and event ids must differ")
	}
	want := []sensor.Kind{sensor.HighTemperature, sensor.LowBattery}
	if len(alert.Classifications) != len(want) {
		t.Fatalf("expected %v, got %v", want, alert.Classifications)
	}
	for i := range want {
		if alert.Classifications[i] != want[i] || ev.Classifications[i] != want[i] {
			t.Fatalf("expected %v, got alert=%v event=%v", want, alert.Classifications, ev.Classifications)
		}
	}
	if alert.Severity != sensor.SeverityCritical {
		t.Fatalf("expected critical severity, got %s", alert.Severity)
	}

	alert.Classifications[0] = sensor.LowHumidity
	if ev.Classifications[0] != sensor.HighTemperature {
		t.Fatalf("alert and event must not share classifications")
	}
}

func TestEncodeEventSchema(t *testing.T) {
	r := reading()
	r.Humidity = 85
	ev, alert := Build(r, SourceForcedAnomaly, sensor.DefaultThresholds())

	raw, err := EncodeEvent(ev)
	if err != nil {
		t.Fatalf("encode event: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	for _, key := range []string{"schemaVersion", "eventId", "sensorId", "location", "timestamp", "temperature", "humidity", "pressure", "batteryLevel", "sourceTag", "classifications"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("event payload missing %q: %s", key, raw)
		}
	}
	if decoded["schemaVersion"] != SchemaVersionV1 {
		t.Fatalf("unexpected schema version %v", decoded["schemaVersion"])
	}
	if decoded["timestamp"] != "2025-10-29T13:30:00Z" {
		t.Fatalf("unexpected timestamp %v", decoded["timestamp"])
	}
	if decoded["sourceTag"] != "forced-anomaly" {
		t.Fatalf("unexpected source tag %v", decoded["sourceTag"])
	}

	raw, err = EncodeAlert(*alert)
	if err != nil {
		t.Fatalf("encode alert: %v", err)
	}
	var ap AlertPayload
	if err := json.Unmarshal(raw, &ap); err != nil {
		t.Fatalf("decode alert: %v", err)
	}
	if ap.EventID != ev.EventID || ap.Severity != "warning" || len(ap.Classifications) != 1 || ap.Classifications[0] != "high_humidity" {
		t.Fatalf("unexpected alert payload %+v", ap)
	}
}

func TestEncodeRejectsMissingIDs(t *testing.T) {
	if _, err := EncodeEvent(Event{}); err == nil {
		t.Fatalf("expected error for empty event id")
	}
	if _, err := EncodeAlert(Alert{}); err == nil {
		t.Fatalf("expected error for empty alert id")
	}
}
