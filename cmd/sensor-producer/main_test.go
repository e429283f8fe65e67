// v0
// cmd/sensor-producer/main_test.go
package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adilblanco/Kafka-iot-poc/internal/logging"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd(logging.Discard())
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version error: %v", err)
	}
	if strings.TrimSpace(out.String()) != version {
		t.Fatalf("expected %q, got %q", version, out.String())
	}
}

func TestConfigCommand(t *testing.T) {
	t.Setenv("SENSOR_PRODUCER_PROPERTIES", filepath.Join(t.TempDir(), "absent.properties"))
	t.Setenv("KAFKA_BROKERS", "kafka-a:9092,kafka-b:9092")

	var out bytes.Buffer
	root := newRootCmd(logging.Discard())
	root.SetOut(&out)
	root.SetArgs([]string{"config"})
	if err := root.Execute(); err != nil {
		t.Fatalf("config error: %v", err)
	}
	if !strings.Contains(out.String(), "kafka-a:9092,kafka-b:9092") {
		t.Fatalf("summary missing brokers: %q", out.String())
	}
}

func TestConfigCommandReportsInvalidSettings(t *testing.T) {
	t.Setenv("SENSOR_PRODUCER_PROPERTIES", filepath.Join(t.TempDir(), "absent.properties"))
	t.Setenv("SENSOR_BUS_DRIVER", "carrier-pigeon")

	root := newRootCmd(logging.Discard())
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"config"})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected validation error")
	}
}
