// v0
// internal/bus/mqttbus/bus.go
// Package mqttbus publishes sensor payloads to an MQTT broker. Kafka keys
// become the last topic level so subscribers can filter per sensor.
package mqttbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Config carries the broker settings.
type Config struct {
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	QoS            byte
	Retained       bool
	TopicPrefix    string
	ConnectTimeout time.Duration
}

// client is the subset of mqtt.Client the bus relies on.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnectionOpen() bool
	Disconnect(quiesce uint)
}

// Bus implements the dispatcher's bus on top of paho.
type Bus struct {
	cfg    Config
	client client
	log    *slog.Logger
}

var (
	errNotConnected = errors.New("mqtt client not connected")
	topicReplacer   = strings.NewReplacer("/", "_", "+", "_", "#", "_", " ", "_")
)

// New connects to the broker and returns the bus.
func New(cfg Config, log *slog.Logger) (*Bus, error) {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(cfg.BrokerURL) == "" {
		return nil, errors.New("mqtt broker url must not be empty")
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", cfg.QoS)
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	l := log.With(slog.String("component", "mqtt_bus"))
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			l.Warn("mqtt_connection_lost", slog.Any("err", err))
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			l.Info("mqtt_connected", slog.String("broker", cfg.BrokerURL))
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}
	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect %s: timed out after %s", cfg.BrokerURL, cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.BrokerURL, err)
	}
	return newBusWithClient(cfg, c, log), nil
}

func newBusWithClient(cfg Config, c client, log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{cfg: cfg, client: c, log: log.With(slog.String("component", "mqtt_bus"))}
}

// TopicFor maps a logical topic and key onto an MQTT topic name.
func (b *Bus) TopicFor(topic, key string) string {
	parts := make([]string, 0, 3)
	if p := strings.Trim(strings.TrimSpace(b.cfg.TopicPrefix), "/"); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, topicReplacer.Replace(strings.TrimSpace(topic)))
	if k := strings.TrimSpace(key); k != "" {
		parts = append(parts, topicReplacer.Replace(k))
	}
	return strings.Join(parts, "/")
}

// Publish sends payload and waits for the broker acknowledgement required
// by the configured QoS, or for ctx to end.
func (b *Bus) Publish(ctx context.Context, topic, key string, payload []byte) error {
	if strings.TrimSpace(topic) == "" {
		return errors.New("topic must not be empty")
	}
	if !b.client.IsConnectionOpen() {
		return errNotConnected
	}
	name := b.TopicFor(topic, key)
	token := b.client.Publish(name, b.cfg.QoS, b.cfg.Retained, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("mqtt publish %s: %w", name, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", name, err)
	}
	return nil
}

// Healthy reports whether the client currently holds a connection.
func (b *Bus) Healthy(context.Context) error {
	if !b.client.IsConnectionOpen() {
		return errNotConnected
	}
	return nil
}

// Describe returns the non-secret settings for the info endpoint.
func (b *Bus) Describe() map[string]any {
	return map[string]any{
		"driver":      "mqtt",
		"broker":      b.cfg.BrokerURL,
		"clientId":    b.cfg.ClientID,
		"qos":         b.cfg.QoS,
		"topicPrefix": b.cfg.TopicPrefix,
	}
}

// Close disconnects after giving in-flight messages a short grace period.
func (b *Bus) Close() error {
	b.client.Disconnect(250)
	b.log.Info("mqtt_disconnected")
	return nil
}
