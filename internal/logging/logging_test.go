// v0
// internal/logging/logging_test.go
package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesConsoleAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "producer.log")
	var console bytes.Buffer
	log, closer, err := New(Options{Path: path, Level: "info", Format: "json", MaxSizeMB: 1, Console: &console})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	log.With(slog.String("component", "test")).Info("batch_complete", slog.Int("requested", 3))
	log.Debug("hidden")
	if err := closer.Close(); err != nil {
		t.Fatalf("close error: %v", err)
	}

	if !strings.Contains(console.String(), `"msg":"batch_complete"`) || !strings.Contains(console.String(), `"component":"test"`) {
		t.Fatalf("unexpected console output %q", console.String())
	}
	if strings.Contains(console.String(), "hidden") {
		t.Fatalf("debug record leaked at info level")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(raw), "batch_complete") {
		t.Fatalf("file sink missing record: %q", raw)
	}
}

func TestNewWithoutFile(t *testing.T) {
	var console bytes.Buffer
	log, closer, err := New(Options{Level: "debug", Console: &console})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer closer.Close()
	log.Debug("probe")
	if !strings.Contains(console.String(), "msg=probe") {
		t.Fatalf("expected text record, got %q", console.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"": slog.LevelInfo, "DEBUG": slog.LevelDebug, "warning": slog.LevelWarn, "error": slog.LevelError}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
