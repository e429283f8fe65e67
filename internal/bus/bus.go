// v0
// internal/bus/bus.go
// Package bus defines what the application needs from a broker adapter
// beyond publishing: health probing, a description and shutdown.
package bus

import (
	"context"
	"errors"
)

// Drivers understood by the application.
const (
	DriverKafka = "kafka"
	DriverMQTT  = "mqtt"
	DriverNATS  = "nats"
	DriverLog   = "log"
)

// ErrUnavailable marks a bus that cannot currently accept publishes.
var ErrUnavailable = errors.New("message bus unavailable")

// Bus is implemented by every adapter under internal/bus.
type Bus interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
	Healthy(ctx context.Context) error
	Describe() map[string]any
	Close() error
}

// Drivers lists the supported driver names.
func Drivers() []string {
	return []string{DriverKafka, DriverMQTT, DriverNATS, DriverLog}
}

// ValidDriver reports whether name is a supported driver.
func ValidDriver(name string) bool {
	for _, d := range Drivers() {
		if d == name {
			return true
		}
	}
	return false
}
