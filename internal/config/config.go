// v0
// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/adilblanco/Kafka-iot-poc/internal/bus"
	"github.com/adilblanco/Kafka-iot-poc/internal/circuitbreaker"
	"github.com/adilblanco/Kafka-iot-poc/internal/sensor"
)

// Config captures all runtime settings of the sensor producer. Values come
// from defaults, an optional properties file and environment variables, in
// that order of precedence.
type Config struct {
	// PropertiesPath records the path used to load property values.
	PropertiesPath string

	Service    Service
	HTTP       HTTP
	Log        Log
	Bus        Bus
	Kafka      Kafka
	Breaker    circuitbreaker.KafkaSettings
	MQTT       MQTT
	NATS       NATS
	Thresholds sensor.Thresholds
	Generator  Generator
}

// Service describes the running instance for the info endpoint.
type Service struct {
	Name        string
	Version     string
	Description string
}

// HTTP holds the API server settings.
type HTTP struct {
	ListenAddress   string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

// Log holds the logger settings. The file side rotates with lumberjack.
type Log struct {
	Path       string
	Level      string
	Format     string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Bus selects the broker adapter and the two logical topics.
type Bus struct {
	Driver      string
	EventsTopic string
	AlertsTopic string
}

// Kafka holds the producer and topic provisioning settings.
type Kafka struct {
	Brokers          []string
	ClientID         string
	Acks             string
	Compression      string
	BatchTimeout     time.Duration
	WriteTimeout     time.Duration
	DialTimeout      time.Duration
	AutoCreateTopics bool
	EventsPartitions int
	AlertsPartitions int
	Replication      int
}

// MQTT holds the broker settings of the MQTT adapter.
type MQTT struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	QoS         int
	TopicPrefix string
}

// NATS holds the JetStream adapter settings.
type NATS struct {
	URL           string
	Stream        string
	SubjectPrefix string
}

// Generator holds the simulation settings.
type Generator struct {
	Locations        []string
	MaxBatch         int
	BatchConcurrency int
}

const (
	envPrefix        = "SENSOR"
	propertiesEnv    = "SENSOR_PRODUCER_PROPERTIES"
	defaultPropsPath = "sensor-producer.properties"
)

// Load resolves configuration by layering defaults, an optional properties
// file and finally environment variables. Every key can be set through
// SENSOR_<KEY>; the platform-wide names KAFKA_BROKERS and CB_* are honoured
// too.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	propsPath := strings.TrimSpace(os.Getenv(propertiesEnv))
	if propsPath == "" {
		propsPath = defaultPropsPath
	}
	if err := readProperties(v, propsPath); err != nil {
		return Config{}, err
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, aliases := range envAliases {
		args := append([]string{key, envPrefix + "_" + strings.ToUpper(key)}, aliases...)
		if err := v.BindEnv(args...); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return Config{}, err
	}
	cfg.PropertiesPath = propsPath
	return cfg, nil
}

func readProperties(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat properties %s: %w", path, err)
	}
	v.SetConfigFile(path)
	v.SetConfigType("properties")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read properties %s: %w", path, err)
	}
	return nil
}

// envAliases lists bare environment names accepted besides SENSOR_<KEY>.
var envAliases = map[string][]string{
	"kafka_brokers":              {"KAFKA_BROKERS", "KAFKA_BOOTSTRAP_SERVERS"},
	"kafka_client_id":            {"KAFKA_CLIENT_ID"},
	"kafka_acks":                 {"KAFKA_ACKS"},
	"kafka_compression":          {"KAFKA_COMPRESSION_TYPE"},
	"topic_events":               {"KAFKA_SENSOR_TOPIC"},
	"topic_alerts":               {"KAFKA_ALERT_TOPIC"},
	"listen_address":             {"LISTEN_ADDRESS"},
	"log_level":                  {"LOG_LEVEL"},
	"service_name":               {"SERVICE_NAME"},
	"service_version":            {"SERVICE_VERSION"},
	"service_description":        {"SERVICE_DESCRIPTION"},
	"cb_enabled":                 {"CB_ENABLED"},
	"cb_kafka_failure_threshold": {"CB_KAFKA_FAILURE_THRESHOLD"},
	"cb_kafka_success_threshold": {"CB_KAFKA_SUCCESS_THRESHOLD"},
	"cb_kafka_open_seconds":      {"CB_KAFKA_OPEN_SECONDS"},
	"cb_kafka_timeout_ms":        {"CB_KAFKA_TIMEOUT_MS"},
	"cb_kafka_backoff_ms":        {"CB_KAFKA_BACKOFF_MS"},
}

func setDefaults(v *viper.Viper) {
	th := sensor.DefaultThresholds()
	cb := circuitbreaker.DefaultKafkaSettings()
	defaults := map[string]any{
		"service_name":        "IoT Sensor Producer",
		"service_version":     "2.0.0",
		"service_description": "Environmental sensor simulation for a smart building",

		"listen_address":        ":5001",
		"http_read_timeout_ms":  5000,
		"http_write_timeout_ms": 30000,
		"shutdown_timeout_ms":   5000,
		"cors_origins":          "*",

		"log_path":         filepath.Join("logs", "sensor-producer.log"),
		"log_level":        "info",
		"log_format":       "text",
		"log_max_size_mb":  50,
		"log_max_backups":  5,
		"log_max_age_days": 14,
		"log_compress":     true,

		"bus_driver":   bus.DriverKafka,
		"topic_events": "sensors",
		"topic_alerts": "alerts",

		"kafka_brokers":            "127.0.0.1:9092",
		"kafka_client_id":          "iot_producer",
		"kafka_acks":               "all",
		"kafka_compression":        "gzip",
		"kafka_batch_timeout_ms":   10,
		"kafka_write_timeout_ms":   10000,
		"kafka_dial_timeout_ms":    5000,
		"kafka_auto_create_topics": false,
		"kafka_events_partitions":  1,
		"kafka_alerts_partitions":  1,
		"kafka_replication":        1,

		"cb_enabled":                 cb.Enabled,
		"cb_kafka_failure_threshold": cb.FailureThreshold,
		"cb_kafka_success_threshold": cb.SuccessThreshold,
		"cb_kafka_open_seconds":      cb.OpenTimeout.Seconds(),
		"cb_kafka_timeout_ms":        cb.AttemptTimeout.Milliseconds(),
		"cb_kafka_backoff_ms":        cb.Backoff.Milliseconds(),

		"mqtt_broker_url":   "tcp://localhost:1883",
		"mqtt_client_id":    "sensor-producer",
		"mqtt_username":     "",
		"mqtt_password":     "",
		"mqtt_qos":          1,
		"mqtt_topic_prefix": "building",

		"nats_url":            "nats://127.0.0.1:4222",
		"nats_stream":         "SENSOR_EVENTS",
		"nats_subject_prefix": "iot",

		"threshold_temperature_high":          th.TemperatureHigh,
		"threshold_temperature_low":           th.TemperatureLow,
		"threshold_humidity_high":             th.HumidityHigh,
		"threshold_humidity_low":              th.HumidityLow,
		"threshold_pressure_low":              th.PressureLow,
		"threshold_pressure_high":             th.PressureHigh,
		"threshold_battery_low":               th.BatteryLow,
		"threshold_temperature_critical_high": th.TemperatureCriticalHigh,
		"threshold_temperature_critical_low":  th.TemperatureCriticalLow,
		"threshold_humidity_critical_high":    th.HumidityCriticalHigh,
		"threshold_humidity_critical_low":     th.HumidityCriticalLow,
		"threshold_pressure_critical_low":     th.PressureCriticalLow,
		"threshold_pressure_critical_high":    th.PressureCriticalHigh,
		"threshold_battery_critical":          th.BatteryCritical,

		"generator_locations":         "lobby,server_room,office_a,office_b,meeting_room,warehouse",
		"generator_max_batch":         100,
		"generator_batch_concurrency": 8,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

func decode(v *viper.Viper) (Config, error) {
	p := &parser{v: v}
	cfg := Config{
		Service: Service{
			Name:        p.str("service_name"),
			Version:     p.str("service_version"),
			Description: p.str("service_description"),
		},
		HTTP: HTTP{
			ListenAddress:   p.str("listen_address"),
			ReadTimeout:     p.millis("http_read_timeout_ms"),
			WriteTimeout:    p.millis("http_write_timeout_ms"),
			ShutdownTimeout: p.millis("shutdown_timeout_ms"),
			CORSOrigins:     splitAndTrim(p.str("cors_origins")),
		},
		Log: Log{
			Path:       filepath.Clean(p.str("log_path")),
			Level:      strings.ToLower(p.str("log_level")),
			Format:     strings.ToLower(p.str("log_format")),
			MaxSizeMB:  p.integer("log_max_size_mb"),
			MaxBackups: p.integer("log_max_backups"),
			MaxAgeDays: p.integer("log_max_age_days"),
			Compress:   p.boolean("log_compress"),
		},
		Bus: Bus{
			Driver:      strings.ToLower(p.str("bus_driver")),
			EventsTopic: p.str("topic_events"),
			AlertsTopic: p.str("topic_alerts"),
		},
		Kafka: Kafka{
			Brokers:          splitAndTrim(p.str("kafka_brokers")),
			ClientID:         p.str("kafka_client_id"),
			Acks:             p.str("kafka_acks"),
			Compression:      p.str("kafka_compression"),
			BatchTimeout:     p.millis("kafka_batch_timeout_ms"),
			WriteTimeout:     p.millis("kafka_write_timeout_ms"),
			DialTimeout:      p.millis("kafka_dial_timeout_ms"),
			AutoCreateTopics: p.boolean("kafka_auto_create_topics"),
			EventsPartitions: p.integer("kafka_events_partitions"),
			AlertsPartitions: p.integer("kafka_alerts_partitions"),
			Replication:      p.integer("kafka_replication"),
		},
		Breaker: circuitbreaker.KafkaSettings{
			Enabled:          p.boolean("cb_enabled"),
			FailureThreshold: p.integer("cb_kafka_failure_threshold"),
			SuccessThreshold: p.integer("cb_kafka_success_threshold"),
			OpenTimeout:      time.Duration(p.float("cb_kafka_open_seconds") * float64(time.Second)),
			AttemptTimeout:   p.millis("cb_kafka_timeout_ms"),
			Backoff:          p.millis("cb_kafka_backoff_ms"),
		},
		MQTT: MQTT{
			BrokerURL:   p.str("mqtt_broker_url"),
			ClientID:    p.str("mqtt_client_id"),
			Username:    p.str("mqtt_username"),
			Password:    p.str("mqtt_password"),
			QoS:         p.integer("mqtt_qos"),
			TopicPrefix: p.str("mqtt_topic_prefix"),
		},
		NATS: NATS{
			URL:           p.str("nats_url"),
			Stream:        p.str("nats_stream"),
			SubjectPrefix: p.str("nats_subject_prefix"),
		},
		Thresholds: sensor.Thresholds{
			TemperatureHigh:         p.float("threshold_temperature_high"),
			TemperatureLow:          p.float("threshold_temperature_low"),
			HumidityHigh:            p.float("threshold_humidity_high"),
			HumidityLow:             p.float("threshold_humidity_low"),
			PressureLow:             p.float("threshold_pressure_low"),
			PressureHigh:            p.float("threshold_pressure_high"),
			BatteryLow:              p.float("threshold_battery_low"),
			TemperatureCriticalHigh: p.float("threshold_temperature_critical_high"),
			TemperatureCriticalLow:  p.float("threshold_temperature_critical_low"),
			HumidityCriticalHigh:    p.float("threshold_humidity_critical_high"),
			HumidityCriticalLow:     p.float("threshold_humidity_critical_low"),
			PressureCriticalLow:     p.float("threshold_pressure_critical_low"),
			PressureCriticalHigh:    p.float("threshold_pressure_critical_high"),
			BatteryCritical:         p.float("threshold_battery_critical"),
		},
		Generator: Generator{
			Locations:        splitAndTrim(p.str("generator_locations")),
			MaxBatch:         p.integer("generator_max_batch"),
			BatchConcurrency: p.integer("generator_batch_concurrency"),
		},
	}
	if p.err != nil {
		return Config{}, p.err
	}
	return cfg, nil
}

// parser reads typed values from viper and keeps the first conversion error.
// Values are parsed from strings because properties files and environment
// variables carry no type information.
type parser struct {
	v   *viper.Viper
	err error
}

func (p *parser) str(key string) string {
	return strings.TrimSpace(p.v.GetString(key))
}

func (p *parser) fail(key, raw string, err error) {
	if p.err == nil {
		p.err = &sensor.ConfigurationError{Field: key, Reason: fmt.Sprintf("invalid value %q: %v", raw, err)}
	}
}

func (p *parser) integer(key string) int {
	raw := p.str(key)
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
	}
	return n
}

func (p *parser) float(key string) float64 {
	raw := p.str(key)
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, raw, err)
	}
	return f
}

func (p *parser) boolean(key string) bool {
	raw := strings.ToLower(p.str(key))
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off", "":
		return false
	}
	p.fail(key, raw, errors.New("not a boolean"))
	return false
}

func (p *parser) millis(key string) time.Duration {
	return time.Duration(p.integer(key)) * time.Millisecond
}

// Validate checks cross-field consistency and returns the first problem as
// a *sensor.ConfigurationError.
func (c Config) Validate() error {
	if _, port, err := net.SplitHostPort(c.HTTP.ListenAddress); err != nil {
		return &sensor.ConfigurationError{Field: "listen_address", Reason: err.Error()}
	} else if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		return &sensor.ConfigurationError{Field: "listen_address", Reason: "invalid port " + port}
	}
	for name, d := range map[string]time.Duration{
		"http_read_timeout_ms":  c.HTTP.ReadTimeout,
		"http_write_timeout_ms": c.HTTP.WriteTimeout,
		"shutdown_timeout_ms":   c.HTTP.ShutdownTimeout,
	} {
		if d <= 0 {
			return &sensor.ConfigurationError{Field: name, Reason: "must be positive"}
		}
	}
	if !bus.ValidDriver(c.Bus.Driver) {
		return &sensor.ConfigurationError{Field: "bus_driver", Reason: fmt.Sprintf("unknown driver %q, want one of %v", c.Bus.Driver, bus.Drivers())}
	}
	if c.Bus.EventsTopic == "" {
		return &sensor.ConfigurationError{Field: "topic_events", Reason: "must not be empty"}
	}
	if c.Bus.AlertsTopic == "" {
		return &sensor.ConfigurationError{Field: "topic_alerts", Reason: "must not be empty"}
	}
	if c.Bus.EventsTopic == c.Bus.AlertsTopic {
		return &sensor.ConfigurationError{Field: "topic_alerts", Reason: "must differ from topic_events"}
	}
	switch c.Bus.Driver {
	case bus.DriverKafka:
		if len(c.Kafka.Brokers) == 0 {
			return &sensor.ConfigurationError{Field: "kafka_brokers", Reason: "at least one broker is required"}
		}
		if c.Kafka.EventsPartitions < 1 || c.Kafka.AlertsPartitions < 1 || c.Kafka.Replication < 1 {
			return &sensor.ConfigurationError{Field: "kafka_partitions", Reason: "partitions and replication must be positive"}
		}
		if err := c.Breaker.Validate(); err != nil {
			return &sensor.ConfigurationError{Field: "cb_kafka", Reason: err.Error()}
		}
	case bus.DriverMQTT:
		if c.MQTT.BrokerURL == "" {
			return &sensor.ConfigurationError{Field: "mqtt_broker_url", Reason: "must not be empty"}
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			return &sensor.ConfigurationError{Field: "mqtt_qos", Reason: "must be 0, 1 or 2"}
		}
	case bus.DriverNATS:
		if c.NATS.Stream == "" || c.NATS.SubjectPrefix == "" {
			return &sensor.ConfigurationError{Field: "nats_stream", Reason: "stream and subject prefix must not be empty"}
		}
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if len(c.Generator.Locations) == 0 {
		return &sensor.ConfigurationError{Field: "generator_locations", Reason: "location pool is empty"}
	}
	if c.Generator.MaxBatch < 1 {
		return &sensor.ConfigurationError{Field: "generator_max_batch", Reason: "must be at least 1"}
	}
	if c.Generator.BatchConcurrency < 1 {
		return &sensor.ConfigurationError{Field: "generator_batch_concurrency", Reason: "must be at least 1"}
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return &sensor.ConfigurationError{Field: "log_format", Reason: "must be text or json"}
	}
	return nil
}

func splitAndTrim(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		v := strings.TrimSpace(p)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Summary writes a human readable overview of the effective settings.
// Secrets are masked.
func (c Config) Summary(w io.Writer) error {
	password := ""
	if c.MQTT.Password != "" {
		password = "****"
	}
	lines := [][2]string{
		{"service", fmt.Sprintf("%s v%s", c.Service.Name, c.Service.Version)},
		{"properties", c.PropertiesPath},
		{"listen_address", c.HTTP.ListenAddress},
		{"log", fmt.Sprintf("%s (%s, %s)", c.Log.Path, c.Log.Level, c.Log.Format)},
		{"bus_driver", c.Bus.Driver},
		{"topics", fmt.Sprintf("events=%s alerts=%s", c.Bus.EventsTopic, c.Bus.AlertsTopic)},
	}
	switch c.Bus.Driver {
	case bus.DriverKafka:
		lines = append(lines,
			[2]string{"kafka_brokers", strings.Join(c.Kafka.Brokers, ",")},
			[2]string{"kafka_client_id", c.Kafka.ClientID},
			[2]string{"kafka_acks", c.Kafka.Acks},
			[2]string{"kafka_compression", c.Kafka.Compression},
			[2]string{"circuit_breaker", fmt.Sprintf("enabled=%t failures=%d open=%s", c.Breaker.Enabled, c.Breaker.FailureThreshold, c.Breaker.OpenTimeout)},
		)
	case bus.DriverMQTT:
		lines = append(lines,
			[2]string{"mqtt_broker_url", c.MQTT.BrokerURL},
			[2]string{"mqtt_username", c.MQTT.Username},
			[2]string{"mqtt_password", password},
		)
	case bus.DriverNATS:
		lines = append(lines,
			[2]string{"nats_url", c.NATS.URL},
			[2]string{"nats_stream", c.NATS.Stream},
		)
	}
	lines = append(lines,
		[2]string{"locations", strings.Join(c.Generator.Locations, ",")},
		[2]string{"max_batch", strconv.Itoa(c.Generator.MaxBatch)},
	)
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "%-18s %s\n", l[0]+":", l[1]); err != nil {
			return err
		}
	}
	return nil
}
