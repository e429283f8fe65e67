// v0
// internal/pipeline/service.go
// Package pipeline exposes the caller-facing operations: batch and single
// triggers, forced anomalies and statistics access.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/adilblanco/Kafka-iot-poc/internal/dispatch"
	"github.com/adilblanco/Kafka-iot-poc/internal/event"
	"github.com/adilblanco/Kafka-iot-poc/internal/generator"
	"github.com/adilblanco/Kafka-iot-poc/internal/sensor"
	"github.com/adilblanco/Kafka-iot-poc/internal/stats"
)

const (
	DefaultMaxBatch    = 100
	DefaultConcurrency = 8
)

// ErrInvalidCount is returned when a batch size falls outside [1, max batch].
var ErrInvalidCount = errors.New("invalid batch count")

// ReadingSource produces readings.
type ReadingSource interface {
	GenerateRandom(sensorID string, pool []string) (sensor.Reading, error)
	GenerateCustom(o generator.Overrides) sensor.Reading
	GenerateForcedAnomaly(kind sensor.Kind, sensorID, location string) (sensor.Reading, error)
	Thresholds() sensor.Thresholds
}

// Publisher delivers a built event and its optional alert.
type Publisher interface {
	Publish(ctx context.Context, ev event.Event, alert *event.Alert) dispatch.Outcome
}

// StatsStore is read and reset through the service.
type StatsStore interface {
	Snapshot() stats.Statistics
	Reset() stats.Statistics
}

// BatchResult aggregates the outcomes of one TriggerBatch call.
type BatchResult struct {
	Requested       int                `json:"requested"`
	Succeeded       int                `json:"succeeded"`
	Failed          int                `json:"failed"`
	AlertsPublished int                `json:"alertsPublished"`
	Failures        []string           `json:"failures,omitempty"`
	Outcomes        []dispatch.Outcome `json:"outcomes"`
	Elapsed         time.Duration      `json:"-"`
}

// Options tunes a Service.
type Options struct {
	MaxBatch    int
	Concurrency int
	// Locations is used when TriggerBatch receives a nil pool.
	Locations []string
	// OnBatch, when set, is called once per completed batch.
	OnBatch func(BatchResult)
}

// Service wires the generator, event builder and dispatcher together.
type Service struct {
	src   ReadingSource
	pub   Publisher
	store StatsStore
	opts  Options
	log   *slog.Logger
}

// New builds a Service. Zero option values fall back to defaults.
func New(src ReadingSource, pub Publisher, store StatsStore, opts Options, log *slog.Logger) (*Service, error) {
	if src == nil || pub == nil || store == nil {
		return nil, errors.New("pipeline requires a reading source, a publisher and a statistics store")
	}
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = DefaultMaxBatch
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	opts.Locations = append([]string(nil), opts.Locations...)
	if log == nil {
		log = slog.Default()
	}
	return &Service{src: src, pub: pub, store: store, opts: opts, log: log.With(slog.String("component", "pipeline"))}, nil
}

// MaxBatch returns the largest accepted batch size.
func (s *Service) MaxBatch() int { return s.opts.MaxBatch }

// Locations returns the default location pool.
func (s *Service) Locations() []string { return append([]string(nil), s.opts.Locations...) }

// Thresholds returns the bands readings are classified against.
func (s *Service) Thresholds() sensor.Thresholds { return s.src.Thresholds() }

// TriggerBatch generates count random readings for sensors sensor_001..N
// and publishes them concurrently. Items are independent: a failed item
// never aborts the others. When ctx is cancelled, items that have not
// started are reported as failed and leave the statistics untouched.
func (s *Service) TriggerBatch(ctx context.Context, count int, pool []string) (BatchResult, error) {
	if count < 1 || count > s.opts.MaxBatch {
		return BatchResult{}, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidCount, count, s.opts.MaxBatch)
	}
	if pool == nil {
		pool = s.opts.Locations
	}
	if len(pool) == 0 {
		return BatchResult{}, &sensor.ConfigurationError{Field: "generator.locations", Reason: "location pool is empty"}
	}

	start := time.Now()
	th := s.src.Thresholds()
	outcomes := make([]dispatch.Outcome, count)

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i := 0; i < count; i++ {
		sensorID := fmt.Sprintf("sensor_%03d", i+1)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i] = dispatch.FailedOutcome(sensorID, fmt.Errorf("not started: %w", err))
				return nil
			}
			r, err := s.src.GenerateRandom(sensorID, pool)
			if err != nil {
				outcomes[i] = dispatch.FailedOutcome(sensorID, err)
				return nil
			}
			ev, alert := event.Build(r, event.SourceSimulated, th)
			outcomes[i] = s.pub.Publish(ctx, ev, alert)
			return nil
		})
	}
	_ = g.Wait()

	res := BatchResult{Requested: count, Outcomes: outcomes, Elapsed: time.Since(start)}
	for _, o := range outcomes {
		if o.Succeeded() {
			res.Succeeded++
		} else {
			res.Failed++
			for _, f := range o.Failures {
				res.Failures = append(res.Failures, o.SensorID+": "+f)
			}
		}
		if o.AlertPublished {
			res.AlertsPublished++
		}
	}
	s.log.Info("batch_complete",
		slog.Int("requested", res.Requested),
		slog.Int("succeeded", res.Succeeded),
		slog.Int("failed", res.Failed),
		slog.Int("alerts", res.AlertsPublished),
		slog.Duration("elapsed", res.Elapsed),
	)
	if s.opts.OnBatch != nil {
		s.opts.OnBatch(res)
	}
	return res, nil
}

// TriggerSingle publishes one reading built from the given overrides.
func (s *Service) TriggerSingle(ctx context.Context, o generator.Overrides) dispatch.Outcome {
	r := s.src.GenerateCustom(o)
	ev, alert := event.Build(r, event.SourceCustom, s.src.Thresholds())
	out := s.pub.Publish(ctx, ev, alert)
	s.log.Info("single_complete", slog.String("sensor_id", out.SensorID), slog.String("status", string(out.Status())))
	return out
}

// SimulateAnomaly publishes a reading forced past the threshold of kind.
func (s *Service) SimulateAnomaly(ctx context.Context, kind string, sensorID string) (dispatch.Outcome, error) {
	return s.SimulateAnomalyAt(ctx, kind, sensorID, "")
}

// SimulateAnomalyAt is SimulateAnomaly with an explicit location.
func (s *Service) SimulateAnomalyAt(ctx context.Context, kind, sensorID, location string) (dispatch.Outcome, error) {
	k, err := sensor.ParseKind(kind)
	if err != nil {
		return dispatch.Outcome{}, err
	}
	r, err := s.src.GenerateForcedAnomaly(k, sensorID, location)
	if err != nil {
		return dispatch.Outcome{}, err
	}
	ev, alert := event.Build(r, event.SourceForcedAnomaly, s.src.Thresholds())
	out := s.pub.Publish(ctx, ev, alert)
	s.log.Info("anomaly_simulated",
		slog.String("kind", string(k)),
		slog.String("sensor_id", out.SensorID),
		slog.String("status", string(out.Status())),
	)
	return out, nil
}

// GetStatistics returns a consistent snapshot of the counters.
func (s *Service) GetStatistics() stats.Statistics { return s.store.Snapshot() }

// ResetStatistics zeroes the counters and returns their previous values.
func (s *Service) ResetStatistics() stats.Statistics {
	prev := s.store.Reset()
	s.log.Info("statistics_reset", slog.Uint64("previous_events", prev.EventsPublished))
	return prev
}
