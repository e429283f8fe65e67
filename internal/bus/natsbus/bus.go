// v0
// internal/bus/natsbus/bus.go
// Package natsbus publishes sensor payloads to a NATS JetStream stream.
// Topic and key become subject tokens: <prefix>.<topic>.<key>.
package natsbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Config carries the connection and stream settings.
type Config struct {
	URL           string
	Stream        string
	SubjectPrefix string
	MaxAge        time.Duration
}

type streamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Bus implements the dispatcher's bus on top of JetStream.
type Bus struct {
	cfg Config
	nc  *nats.Conn
	js  streamPublisher
	log *slog.Logger
}

var subjectReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")

// New connects, declares the stream and returns the bus.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*Bus, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if strings.TrimSpace(cfg.Stream) == "" {
		return nil, errors.New("nats stream name must not be empty")
	}
	if strings.TrimSpace(cfg.SubjectPrefix) == "" {
		return nil, errors.New("nats subject prefix must not be empty")
	}
	l := log.With(slog.String("component", "nats_bus"))
	nc, err := nats.Connect(cfg.URL,
		nats.Name("sensor-producer"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			l.Warn("nats_disconnected", slog.Any("err", err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			l.Info("nats_reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", cfg.URL, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Stream,
		Retention: jetstream.LimitsPolicy,
		Subjects:  []string{cfg.SubjectPrefix + ".>"},
		MaxAge:    cfg.MaxAge,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("declare stream %s: %w", cfg.Stream, err)
	}
	l.Info("nats_stream_ready", slog.String("stream", cfg.Stream), slog.String("subjects", cfg.SubjectPrefix+".>"))
	return &Bus{cfg: cfg, nc: nc, js: js, log: l}, nil
}

// SubjectFor maps a logical topic and key onto a subject.
func (b *Bus) SubjectFor(topic, key string) string {
	parts := []string{b.cfg.SubjectPrefix, subjectReplacer.Replace(strings.TrimSpace(topic))}
	if k := strings.TrimSpace(key); k != "" {
		parts = append(parts, subjectReplacer.Replace(k))
	}
	return strings.Join(parts, ".")
}

// Publish stores payload in the stream and waits for the ack.
func (b *Bus) Publish(ctx context.Context, topic, key string, payload []byte) error {
	if strings.TrimSpace(topic) == "" {
		return errors.New("topic must not be empty")
	}
	subject := b.SubjectFor(topic, key)
	if _, err := b.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Healthy reports whether the connection is up.
func (b *Bus) Healthy(context.Context) error {
	if b.nc == nil || !b.nc.IsConnected() {
		return nats.ErrConnectionClosed
	}
	return nil
}

// Describe returns the non-secret settings for the info endpoint.
func (b *Bus) Describe() map[string]any {
	return map[string]any{
		"driver":        "nats",
		"url":           b.cfg.URL,
		"stream":        b.cfg.Stream,
		"subjectPrefix": b.cfg.SubjectPrefix,
	}
}

// Close drains pending publishes and closes the connection.
func (b *Bus) Close() error {
	if b.nc == nil {
		return nil
	}
	if err := b.nc.Drain(); err != nil {
		b.nc.Close()
		return fmt.Errorf("nats drain: %w", err)
	}
	b.log.Info("nats_drained")
	return nil
}
