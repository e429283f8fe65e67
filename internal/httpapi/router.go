// v0
// internal/httpapi/router.go
// Package httpapi exposes the pipeline operations, statistics, health
// probes, metrics and the live stream over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/adilblanco/Kafka-iot-poc/internal/dispatch"
	"github.com/adilblanco/Kafka-iot-poc/internal/generator"
	"github.com/adilblanco/Kafka-iot-poc/internal/metrics"
	"github.com/adilblanco/Kafka-iot-poc/internal/pipeline"
	"github.com/adilblanco/Kafka-iot-poc/internal/sensor"
	"github.com/adilblanco/Kafka-iot-poc/internal/stats"
)

// Pipeline is the subset of pipeline.Service used by the handlers.
type Pipeline interface {
	TriggerBatch(ctx context.Context, count int, pool []string) (pipeline.BatchResult, error)
	TriggerSingle(ctx context.Context, o generator.Overrides) dispatch.Outcome
	SimulateAnomalyAt(ctx context.Context, kind, sensorID, location string) (dispatch.Outcome, error)
	GetStatistics() stats.Statistics
	ResetStatistics() stats.Statistics
	MaxBatch() int
	Locations() []string
	Thresholds() sensor.Thresholds
}

// BusProbe reports broker reachability.
type BusProbe interface {
	Healthy(ctx context.Context) error
	Describe() map[string]any
}

// ServiceInfo identifies the running service.
type ServiceInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	EventsTopic string `json:"eventsTopic"`
	AlertsTopic string `json:"alertsTopic"`
}

// Deps are the collaborators of the router. Metrics and Stream are optional.
type Deps struct {
	Logger       *slog.Logger
	Pipeline     Pipeline
	Bus          BusProbe
	Health       *HealthState
	Info         ServiceInfo
	Metrics      *metrics.Metrics
	Stream       http.Handler
	ProbeTimeout time.Duration
}

type api struct {
	Deps
}

const defaultProbeTimeout = 2 * time.Second

// NewRouter wires every route.
func NewRouter(d Deps) *mux.Router {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Health == nil {
		d.Health = NewHealthState()
	}
	if d.ProbeTimeout <= 0 {
		d.ProbeTimeout = defaultProbeTimeout
	}
	a := &api{Deps: d}

	r := mux.NewRouter()
	handle := func(path string, h http.HandlerFunc, methods ...string) {
		r.Handle(path, d.Metrics.WrapHandler(path, h)).Methods(methods...)
	}

	handle("/", a.root, http.MethodGet)
	handle("/health", a.health, http.MethodGet)
	handle("/health/live", a.live, http.MethodGet)
	handle("/health/ready", a.ready, http.MethodGet)

	handle("/api/sensors/trigger", a.triggerBatch, http.MethodPost)
	handle("/api/sensors/trigger-single", a.triggerSingle, http.MethodPost)
	handle("/api/sensors/simulate-anomaly", a.simulateAnomaly, http.MethodGet, http.MethodPost)

	handle("/api/statistics", a.statistics, http.MethodGet)
	handle("/api/statistics/reset", a.resetStatistics, http.MethodDelete)
	handle("/api/info", a.info, http.MethodGet)
	handle("/api/simulator/config", a.simulatorConfig, http.MethodGet)

	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler()).Methods(http.MethodGet)
	}
	if d.Stream != nil {
		r.Handle("/ws", d.Stream).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, d.Logger, http.StatusNotFound, errorBody{Error: "not_found", Detail: req.URL.Path, Timestamp: timestamp()})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, d.Logger, http.StatusMethodNotAllowed, errorBody{Error: "method_not_allowed", Detail: req.Method + " " + req.URL.Path, Timestamp: timestamp()})
	})
	return r
}

// Wrap adds panic recovery, CORS and access logging around next. An empty
// origin list allows any origin.
func Wrap(logger *slog.Logger, corsOrigins []string, next http.Handler) http.Handler {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	recovered := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{log: logger}),
		handlers.PrintRecoveryStack(false),
	)(next)
	cors := handlers.CORS(
		handlers.AllowedOrigins(corsOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(recovered)
	return WrapWithLogging(logger, cors)
}
