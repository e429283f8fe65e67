// v0
// internal/bus/kafkabus/bus.go
// Package kafkabus publishes sensor payloads to Kafka through a single
// keyed writer guarded by the circuit breaker.
package kafkabus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/adilblanco/Kafka-iot-poc/internal/circuitbreaker"
)

const breakerName = "sensor-producer-writer"

// Config carries the producer settings.
type Config struct {
	Brokers      []string
	ClientID     string
	Acks         string
	Compression  string
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	DialTimeout  time.Duration
	Breaker      circuitbreaker.KafkaSettings
}

type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type kafkaWriteCloser interface {
	Close() error
}

// Bus implements the dispatcher's bus on top of kafka-go.
type Bus struct {
	cfg     Config
	log     *slog.Logger
	writer  kafkaMessageWriter
	closer  kafkaWriteCloser
	breaker *circuitbreaker.KafkaBreaker
	now     func() time.Time
}

var (
	errNoBrokers  = errors.New("at least one broker is required")
	errNilWriter  = errors.New("kafka bus requires a writer")
	errEmptyTopic = errors.New("topic must not be empty")
)

// New builds the writer, wraps it with the breaker and returns the bus.
// The writer has no default topic; every message names its own.
func New(cfg Config, log *slog.Logger, onBreakerChange func(name string, from, to circuitbreaker.State)) (*Bus, error) {
	if log == nil {
		log = slog.Default()
	}
	if len(cfg.Brokers) == 0 {
		return nil, errNoBrokers
	}
	acks, err := ParseAcks(cfg.Acks)
	if err != nil {
		return nil, err
	}
	codec, err := ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	base := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           acks,
		Compression:            codec,
		BatchTimeout:           cfg.BatchTimeout,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: false,
		Transport:              &kafka.Transport{ClientID: cfg.ClientID, DialTimeout: cfg.DialTimeout},
	}

	if cfg.Breaker == (circuitbreaker.KafkaSettings{}) {
		cfg.Breaker = circuitbreaker.DefaultKafkaSettings()
	}
	b := &Bus{cfg: cfg, log: log.With(slog.String("component", "kafka_bus"))}
	breaker, err := circuitbreaker.NewKafkaBreaker(breakerName, cfg.Breaker, b.Ping, log)
	if err != nil {
		return nil, fmt.Errorf("kafka breaker: %w", err)
	}
	if breaker.Enabled() {
		breaker.Breaker().OnStateChange = onBreakerChange
		b.log.Info("kafka_cb_enabled", slog.String("name", breakerName))
	} else {
		b.log.Info("kafka_cb_disabled", slog.String("name", breakerName))
	}
	b.breaker = breaker
	if err := b.attach(circuitbreaker.NewCBKafkaWriter(base, breaker), base); err != nil {
		return nil, err
	}
	b.log.Info("kafka_writer_ready",
		slog.Any("brokers", cfg.Brokers),
		slog.String("acks", cfg.Acks),
		slog.String("compression", cfg.Compression),
	)
	return b, nil
}

// newBusWithWriter wires the provided writer. It is used in tests.
func newBusWithWriter(cfg Config, log *slog.Logger, writer kafkaMessageWriter, closer kafkaWriteCloser) (*Bus, error) {
	if log == nil {
		log = slog.Default()
	}
	b := &Bus{cfg: cfg, log: log.With(slog.String("component", "kafka_bus"))}
	if err := b.attach(writer, closer); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bus) attach(writer kafkaMessageWriter, closer kafkaWriteCloser) error {
	if writer == nil {
		return errNilWriter
	}
	b.writer = writer
	b.closer = closer
	b.now = time.Now
	return nil
}

// Publish writes payload to topic keyed by key. The Hash balancer keeps
// every message of one sensor on the same partition.
func (b *Bus) Publish(ctx context.Context, topic, key string, payload []byte) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return errEmptyTopic
	}
	msg := kafka.Message{Topic: topic, Value: payload, Time: b.now().UTC()}
	if key != "" {
		msg.Key = []byte(key)
	}
	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", topic, err)
	}
	return nil
}

// Ping dials the first reachable broker and reads cluster metadata.
func (b *Bus) Ping(ctx context.Context) error {
	timeout := b.cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	var lastErr error
	for _, broker := range b.cfg.Brokers {
		dialCtx, cancel := context.WithTimeout(ctx, timeout)
		conn, err := kafka.DialContext(dialCtx, "tcp", broker)
		cancel()
		if err != nil {
			lastErr = fmt.Errorf("dial broker %s: %w", broker, err)
			continue
		}
		_, err = conn.Brokers()
		if cerr := conn.Close(); cerr != nil {
			b.log.Warn("broker_close", slog.Any("err", cerr))
		}
		if err != nil {
			lastErr = fmt.Errorf("read brokers from %s: %w", broker, err)
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = errNoBrokers
	}
	return lastErr
}

// Healthy reports broker reachability, short-circuiting on an open breaker.
func (b *Bus) Healthy(ctx context.Context) error {
	if br := b.breaker.Breaker(); br != nil && br.State() == circuitbreaker.Open {
		return circuitbreaker.ErrOpen
	}
	return b.Ping(ctx)
}

// Describe returns the non-secret settings for the info endpoint.
func (b *Bus) Describe() map[string]any {
	return map[string]any{
		"driver":         "kafka",
		"brokers":        b.cfg.Brokers,
		"clientId":       b.cfg.ClientID,
		"acks":           b.cfg.Acks,
		"compression":    b.cfg.Compression,
		"breakerEnabled": b.breaker.Enabled(),
		"batchTimeoutMs": b.cfg.BatchTimeout.Milliseconds(),
		"writeTimeoutMs": b.cfg.WriteTimeout.Milliseconds(),
	}
}

// Close flushes pending messages and releases the writer.
func (b *Bus) Close() error {
	if b.closer == nil {
		return nil
	}
	if err := b.closer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	b.log.Info("kafka_writer_closed")
	return nil
}

// ParseAcks maps all/-1, one/1 and none/0 to kafka.RequiredAcks.
func ParseAcks(raw string) (kafka.RequiredAcks, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "all", "-1":
		return kafka.RequireAll, nil
	case "one", "1", "leader":
		return kafka.RequireOne, nil
	case "none", "0":
		return kafka.RequireNone, nil
	}
	return 0, fmt.Errorf("unsupported acks value: %q", raw)
}

// ParseCompression maps a codec name to the kafka-go compression setting.
func ParseCompression(raw string) (kafka.Compression, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "none":
		return 0, nil
	case "gzip":
		return kafka.Gzip, nil
	case "snappy":
		return kafka.Snappy, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	default:
		return 0, fmt.Errorf("unsupported compression codec: %q", raw)
	}
}
