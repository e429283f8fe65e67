// v0
// internal/httpapi/respond.go
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/adilblanco/Kafka-iot-poc/internal/bus"
	"github.com/adilblanco/Kafka-iot-poc/internal/circuitbreaker"
	"github.com/adilblanco/Kafka-iot-poc/internal/pipeline"
	"github.com/adilblanco/Kafka-iot-poc/internal/sensor"
)

type errorBody struct {
	Error     string `json:"error"`
	Detail    string `json:"detail"`
	Field     string `json:"field,omitempty"`
	Timestamp string `json:"timestamp"`
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("write_response_failed", slog.Any("err", err))
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) (int, string) {
	var cfgErr *sensor.ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest, "configuration_error"
	case errors.Is(err, sensor.ErrUnknownAnomalyKind):
		return http.StatusBadRequest, "unknown_anomaly_kind"
	case errors.Is(err, pipeline.ErrInvalidCount):
		return http.StatusBadRequest, "invalid_count"
	case errors.Is(err, errBadParameter):
		return http.StatusBadRequest, "bad_parameter"
	case errors.Is(err, bus.ErrUnavailable), errors.Is(err, circuitbreaker.ErrOpen):
		return http.StatusServiceUnavailable, "bus_unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, code := statusFor(err)
	body := errorBody{Error: code, Detail: err.Error(), Timestamp: timestamp()}
	var cfgErr *sensor.ConfigurationError
	if errors.As(err, &cfgErr) {
		body.Field = cfgErr.Field
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request_failed", slog.String("code", code), slog.Any("err", err))
	}
	writeJSON(w, logger, status, body)
}
