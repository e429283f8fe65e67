// v0
// internal/dispatch/dispatcher.go
// Package dispatch publishes built events and alerts on a bus and keeps the
// statistics store in step with every attempt.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/adilblanco/Kafka-iot-poc/internal/event"
	"github.com/adilblanco/Kafka-iot-poc/internal/sensor"
	"github.com/adilblanco/Kafka-iot-poc/internal/stats"
)

// Bus delivers one payload to a topic. Implementations own delivery
// guarantees, retries and connection handling.
type Bus interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}

// Recorder is the subset of the statistics store the dispatcher writes to.
type Recorder interface {
	RecordEventPublished()
	RecordAlertPublished(kinds []sensor.Kind)
	RecordAttemptFailure(role, reason string)
	RecordOutcomeFailure()
}

// Attempt describes one publish call, successful or not.
type Attempt struct {
	Role            string
	Topic           string
	Key             string
	Payload         []byte
	Classifications []sensor.Kind
	Severity        sensor.Severity
	Err             error
	Duration        time.Duration
}

// Observer is notified after every attempt. Implementations must not block.
type Observer interface {
	ObservePublish(a Attempt)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(a Attempt)

// ObservePublish implements Observer.
func (f ObserverFunc) ObservePublish(a Attempt) { f(a) }

// Config names the destination topics.
type Config struct {
	EventsTopic string
	AlertsTopic string
}

// Status summarises an Outcome.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Outcome reports what happened to one event and its optional alert.
type Outcome struct {
	EventID         string          `json:"eventId"`
	SensorID        string          `json:"sensorId"`
	Location        string          `json:"location"`
	SourceTag       string          `json:"sourceTag"`
	Reading         sensor.Reading  `json:"reading"`
	Classifications []string        `json:"classifications"`
	Severity        sensor.Severity `json:"severity,omitempty"`
	EventPublished  bool            `json:"eventPublished"`
	AlertPresent    bool            `json:"alertPresent"`
	AlertPublished  bool            `json:"alertPublished"`
	Failures        []string        `json:"failures,omitempty"`
}

// Status is ok when every attempt succeeded, failed when nothing was
// delivered and partial otherwise.
func (o Outcome) Status() Status {
	if len(o.Failures) == 0 {
		return StatusOK
	}
	if !o.EventPublished && !o.AlertPublished {
		return StatusFailed
	}
	return StatusPartial
}

// Succeeded reports whether every attempt for this outcome was delivered.
func (o Outcome) Succeeded() bool { return o.Status() == StatusOK }

// FailedOutcome builds an outcome for an item that never reached the bus.
func FailedOutcome(sensorID string, err error) Outcome {
	reason := "unknown error"
	if err != nil {
		reason = err.Error()
	}
	return Outcome{SensorID: sensorID, Classifications: []string{}, Failures: []string{reason}}
}

// Dispatcher publishes events and alerts. It never retries.
type Dispatcher struct {
	bus       Bus
	rec       Recorder
	cfg       Config
	log       *slog.Logger
	observers []Observer
}

var errNilBus = errors.New("dispatcher requires a bus")

// New validates cfg and returns a dispatcher.
func New(bus Bus, rec Recorder, cfg Config, log *slog.Logger, observers ...Observer) (*Dispatcher, error) {
	if bus == nil {
		return nil, errNilBus
	}
	if rec == nil {
		return nil, errors.New("dispatcher requires a statistics recorder")
	}
	cfg.EventsTopic = strings.TrimSpace(cfg.EventsTopic)
	cfg.AlertsTopic = strings.TrimSpace(cfg.AlertsTopic)
	if cfg.EventsTopic == "" {
		return nil, &sensor.ConfigurationError{Field: "topics.events", Reason: "must not be empty"}
	}
	if cfg.AlertsTopic == "" {
		return nil, &sensor.ConfigurationError{Field: "topics.alerts", Reason: "must not be empty"}
	}
	if log == nil {
		log = slog.Default()
	}
	obs := make([]Observer, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			obs = append(obs, o)
		}
	}
	return &Dispatcher{
		bus:       bus,
		rec:       rec,
		cfg:       cfg,
		log:       log.With(slog.String("component", "dispatcher")),
		observers: obs,
	}, nil
}

// Topics returns the configured destinations.
func (d *Dispatcher) Topics() Config { return d.cfg }

// Publish sends ev to the events topic and alert, when present, to the
// alerts topic. Both attempts are made independently. Failures are
// reported in the Outcome and the statistics, never as an error.
func (d *Dispatcher) Publish(ctx context.Context, ev event.Event, alert *event.Alert) Outcome {
	out := Outcome{
		EventID:         ev.EventID,
		SensorID:        ev.Reading.SensorID,
		Location:        ev.Reading.Location,
		SourceTag:       string(ev.SourceTag),
		Reading:         ev.Reading,
		Classifications: sensor.KindStrings(ev.Classifications),
		AlertPresent:    alert != nil,
	}
	key := ev.Reading.SensorID

	payload, err := event.EncodeEvent(ev)
	if err == nil {
		err = d.send(ctx, stats.RoleEvents, d.cfg.EventsTopic, key, payload, ev.Classifications, "")
	} else {
		err = fmt.Errorf("encode event: %w", err)
		d.fail(stats.RoleEvents, d.cfg.EventsTopic, key, ev.Classifications, "", err, 0)
	}
	if err != nil {
		out.Failures = append(out.Failures, stats.RoleEvents+": "+err.Error())
	} else {
		out.EventPublished = true
		d.rec.RecordEventPublished()
	}

	if alert != nil {
		out.Severity = alert.Severity
		payload, err := event.EncodeAlert(*alert)
		if err == nil {
			err = d.send(ctx, stats.RoleAlerts, d.cfg.AlertsTopic, key, payload, alert.Classifications, alert.Severity)
		} else {
			err = fmt.Errorf("encode alert: %w", err)
			d.fail(stats.RoleAlerts, d.cfg.AlertsTopic, key, alert.Classifications, alert.Severity, err, 0)
		}
		if err != nil {
			out.Failures = append(out.Failures, stats.RoleAlerts+": "+err.Error())
		} else {
			out.AlertPublished = true
			d.rec.RecordAlertPublished(alert.Classifications)
		}
	}

	if len(out.Failures) > 0 {
		d.rec.RecordOutcomeFailure()
	}
	return out
}

func (d *Dispatcher) send(ctx context.Context, role, topic, key string, payload []byte, kinds []sensor.Kind, sev sensor.Severity) error {
	start := time.Now()
	err := d.bus.Publish(ctx, topic, key, payload)
	elapsed := time.Since(start)
	if err != nil {
		d.fail(role, topic, key, kinds, sev, err, elapsed)
		return err
	}
	d.log.Debug("publish_ok",
		slog.String("role", role),
		slog.String("topic", topic),
		slog.String("key", key),
		slog.Duration("elapsed", elapsed),
	)
	d.notify(Attempt{Role: role, Topic: topic, Key: key, Payload: payload, Classifications: kinds, Severity: sev, Duration: elapsed})
	return nil
}

func (d *Dispatcher) fail(role, topic, key string, kinds []sensor.Kind, sev sensor.Severity, err error, elapsed time.Duration) {
	d.rec.RecordAttemptFailure(role, err.Error())
	d.log.Warn("publish_failed",
		slog.String("role", role),
		slog.String("topic", topic),
		slog.String("key", key),
		slog.Any("err", err),
	)
	d.notify(Attempt{Role: role, Topic: topic, Key: key, Classifications: kinds, Severity: sev, Err: err, Duration: elapsed})
}

func (d *Dispatcher) notify(a Attempt) {
	for _, o := range d.observers {
		o.ObservePublish(a)
	}
}
