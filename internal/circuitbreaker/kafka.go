// v0
// internal/circuitbreaker/kafka.go
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaSettings are the runtime tunables of a Kafka writer guard. They map
// onto the CB_ENABLED and CB_KAFKA_* environment variables.
type KafkaSettings struct {
	Enabled          bool
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
	AttemptTimeout   time.Duration
	Backoff          time.Duration
}

// DefaultKafkaSettings mirrors the defaults used across the platform services.
func DefaultKafkaSettings() KafkaSettings {
	return KafkaSettings{
		Enabled:          false,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
		AttemptTimeout:   3 * time.Second,
		Backoff:          200 * time.Millisecond,
	}
}

// Validate rejects nonsensical settings.
func (s KafkaSettings) Validate() error {
	switch {
	case s.FailureThreshold < 1:
		return fmt.Errorf("breaker failure threshold must be >= 1")
	case s.SuccessThreshold < 1:
		return fmt.Errorf("breaker success threshold must be >= 1")
	case s.OpenTimeout <= 0:
		return fmt.Errorf("breaker open timeout must be > 0")
	case s.AttemptTimeout < 0:
		return fmt.Errorf("breaker attempt timeout must be >= 0")
	case s.Backoff < 0:
		return fmt.Errorf("breaker backoff must be >= 0")
	}
	return nil
}

// kafkaMessageWriter mirrors the subset of kafka.Writer used by the wrapper.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaBreaker holds the retry policy and the breaker guarding Kafka writes.
type KafkaBreaker struct {
	settings KafkaSettings
	breaker  *Breaker
}

// NewKafkaBreaker validates s and allocates a breaker when enabled.
func NewKafkaBreaker(name string, s KafkaSettings, probe func(ctx context.Context) error, logger *slog.Logger) (*KafkaBreaker, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	kb := &KafkaBreaker{settings: s}
	if s.Enabled {
		kb.breaker = New(name, Config{
			MaxFailures:      s.FailureThreshold,
			ResetTimeout:     s.OpenTimeout,
			SuccessesToClose: s.SuccessThreshold,
		}, probe, logger)
	}
	return kb, nil
}

// Enabled reports whether breaker protections are active.
func (k *KafkaBreaker) Enabled() bool {
	return k != nil && k.settings.Enabled && k.breaker != nil
}

// Breaker exposes the underlying breaker for inspection and metrics.
func (k *KafkaBreaker) Breaker() *Breaker {
	if k == nil {
		return nil
	}
	return k.breaker
}

// CBKafkaWriter wraps a kafka writer with circuit-breaker protection.
type CBKafkaWriter struct {
	breaker *KafkaBreaker
	writer  kafkaMessageWriter
}

// NewCBKafkaWriter wires breaker protections around the provided writer.
func NewCBKafkaWriter(writer kafkaMessageWriter, breaker *KafkaBreaker) *CBKafkaWriter {
	return &CBKafkaWriter{writer: writer, breaker: breaker}
}

// WriteMessages publishes messages with per-attempt timeout and back-off
// retries. An open breaker fails fast with ErrOpen.
func (w *CBKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w == nil || w.writer == nil {
		return errors.New("nil kafka writer")
	}
	if !w.breaker.Enabled() {
		return w.writer.WriteMessages(ctx, msgs...)
	}
	return w.breaker.do(ctx, func(execCtx context.Context) error {
		return w.writer.WriteMessages(execCtx, msgs...)
	})
}

func (k *KafkaBreaker) do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		attempts++
		attemptCtx, cancel := k.withAttemptContext(ctx)
		err := k.breaker.Execute(attemptCtx, op)
		cancel()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrOpen) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempts >= k.settings.FailureThreshold || k.breaker.State() == Open {
			return err
		}
		if waitErr := k.waitBackoff(ctx); waitErr != nil {
			return waitErr
		}
	}
}

func (k *KafkaBreaker) withAttemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if k.settings.AttemptTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, k.settings.AttemptTimeout)
}

func (k *KafkaBreaker) waitBackoff(ctx context.Context) error {
	if k.settings.Backoff <= 0 {
		return nil
	}
	timer := time.NewTimer(k.settings.Backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
