// v0
// internal/bus/logbus/bus.go
// Package logbus is a bus that only logs, for local runs without a broker.
package logbus

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Bus writes one log line per payload.
type Bus struct {
	log   *slog.Logger
	level slog.Level
	count atomic.Uint64
}

// New returns a bus logging at the given level.
func New(log *slog.Logger, level slog.Level) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{log: log.With(slog.String("component", "log_bus")), level: level}
}

// Publish logs the message and never fails unless ctx is done.
func (b *Bus) Publish(ctx context.Context, topic, key string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.count.Add(1)
	b.log.Log(ctx, b.level, "bus_publish",
		slog.String("topic", topic),
		slog.String("key", key),
		slog.Int("bytes", len(payload)),
		slog.String("payload", string(payload)),
	)
	return nil
}

// Published returns how many payloads were logged.
func (b *Bus) Published() uint64 { return b.count.Load() }

// Healthy always succeeds.
func (b *Bus) Healthy(context.Context) error { return nil }

// Describe returns the driver name for the info endpoint.
func (b *Bus) Describe() map[string]any {
	return map[string]any{"driver": "log", "level": b.level.String()}
}

// Close is a no-op.
func (b *Bus) Close() error { return nil }
