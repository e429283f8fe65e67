// v0
// internal/bus/logbus/bus_test.go
package logbus

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestPublishLogs(t *testing.T) {
	var buf bytes.Buffer
	b := New(slog.New(slog.NewTextHandler(&buf, nil)), slog.LevelInfo)
	if err := b.Publish(context.Background(), "sensors", "sensor_001", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("publish error: %v", err)
	}
	if b.Published() != 1 {
		t.Fatalf("expected 1 published, got %d", b.Published())
	}
	out := buf.String()
	if !strings.Contains(out, "bus_publish") || !strings.Contains(out, "topic=sensors") {
		t.Fatalf("unexpected log output %q", out)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Publish(ctx, "sensors", "k", nil); err == nil {
		t.Fatalf("expected context error")
	}
}
