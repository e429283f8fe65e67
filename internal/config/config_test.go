// v0
// internal/config/config_test.go
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adilblanco/Kafka-iot-poc/internal/sensor"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(propertiesEnv, filepath.Join(dir, "missing.properties"))
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":5001", cfg.HTTP.ListenAddress)
	assert.Equal(t, "IoT Sensor Producer", cfg.Service.Name)
	assert.Equal(t, []string{"127.0.0.1:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "sensors", cfg.Bus.EventsTopic)
	assert.Equal(t, "alerts", cfg.Bus.AlertsTopic)
	assert.Equal(t, "kafka", cfg.Bus.Driver)
	assert.Equal(t, 100, cfg.Generator.MaxBatch)
	assert.Equal(t, sensor.DefaultThresholds(), cfg.Thresholds)
	assert.Equal(t, 30*time.Second, cfg.Breaker.OpenTimeout)
	assert.Equal(t, 10*time.Millisecond, cfg.Kafka.BatchTimeout)
	assert.NotEmpty(t, cfg.Generator.Locations)
}

func TestLoadPropertiesThenEnv(t *testing.T) {
	dir := t.TempDir()
	props := filepath.Join(dir, "producer.properties")
	content := "listen_address=:6001\n" +
		"kafka_brokers=a:9092, b:9092\n" +
		"topic_events=readings\n" +
		"threshold_temperature_high=28.5\n" +
		"generator_locations=hall, roof\n"
	require.NoError(t, os.WriteFile(props, []byte(content), 0o600))
	t.Setenv(propertiesEnv, props)
	t.Setenv("SENSOR_LISTEN_ADDRESS", ":7001")
	t.Setenv("CB_ENABLED", "true")
	t.Setenv("CB_KAFKA_FAILURE_THRESHOLD", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, props, cfg.PropertiesPath)
	assert.Equal(t, ":7001", cfg.HTTP.ListenAddress, "env overrides properties")
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "readings", cfg.Bus.EventsTopic)
	assert.Equal(t, 28.5, cfg.Thresholds.TemperatureHigh)
	assert.Equal(t, []string{"hall", "roof"}, cfg.Generator.Locations)
	assert.True(t, cfg.Breaker.Enabled)
	assert.Equal(t, 3, cfg.Breaker.FailureThreshold)
}

func TestLoadBareKafkaBrokers(t *testing.T) {
	isolate(t)
	t.Setenv("KAFKA_BROKERS", "kafka:29092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka:29092"}, cfg.Kafka.Brokers)
}

func TestLoadRejectsMalformedNumber(t *testing.T) {
	isolate(t)
	t.Setenv("SENSOR_GENERATOR_MAX_BATCH", "lots")

	_, err := Load()
	var cfgErr *sensor.ConfigurationError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	assert.Equal(t, "generator_max_batch", cfgErr.Field)
}

func TestValidate(t *testing.T) {
	isolate(t)
	base, err := Load()
	require.NoError(t, err)

	cases := []struct {
		name  string
		mut   func(*Config)
		field string
	}{
		{"bad port", func(c *Config) { c.HTTP.ListenAddress = ":70000" }, "listen_address"},
		{"unknown driver", func(c *Config) { c.Bus.Driver = "amqp" }, "bus_driver"},
		{"same topics", func(c *Config) { c.Bus.AlertsTopic = c.Bus.EventsTopic }, "topic_alerts"},
		{"no brokers", func(c *Config) { c.Kafka.Brokers = nil }, "kafka_brokers"},
		{"empty pool", func(c *Config) { c.Generator.Locations = nil }, "generator_locations"},
		{"inverted band", func(c *Config) { c.Thresholds.TemperatureLow = 40 }, "thresholds.temperature"},
		{"bad qos", func(c *Config) { c.Bus.Driver = "mqtt"; c.MQTT.QoS = 3 }, "mqtt_qos"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log_format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			cfg.Kafka.Brokers = append([]string(nil), base.Kafka.Brokers...)
			tc.mut(&cfg)
			var cfgErr *sensor.ConfigurationError
			err := cfg.Validate()
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}
}

func TestSummaryMasksPassword(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	require.NoError(t, err)
	cfg.Bus.Driver = "mqtt"
	cfg.MQTT.Password = "hunter2"

	var sb strings.Builder
	require.NoError(t, cfg.Summary(&sb))
	assert.Contains(t, sb.String(), "mqtt_broker_url:")
	assert.NotContains(t, sb.String(), "hunter2")
}
