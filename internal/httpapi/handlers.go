// v0
// internal/httpapi/handlers.go
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/adilblanco/Kafka-iot-poc/internal/bus"
	"github.com/adilblanco/Kafka-iot-poc/internal/dispatch"
	"github.com/adilblanco/Kafka-iot-poc/internal/generator"
	"github.com/adilblanco/Kafka-iot-poc/internal/pipeline"
	"github.com/adilblanco/Kafka-iot-poc/internal/sensor"
)

const (
	defaultBatchCount  = 3
	defaultAnomalyKind = sensor.HighTemperature
)

var errBadParameter = errors.New("bad parameter")

type triggerResponse struct {
	Status    string `json:"status"`
	Topic     string `json:"topic"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	pipeline.BatchResult
}

type outcomeResponse struct {
	Status    dispatch.Status  `json:"status"`
	Topic     string           `json:"topic"`
	Message   string           `json:"message"`
	Timestamp string           `json:"timestamp"`
	Outcome   dispatch.Outcome `json:"outcome"`
}

// busGate refuses work while the broker is unreachable.
func (a *api) busGate(ctx context.Context) error {
	if a.Bus == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, a.ProbeTimeout)
	defer cancel()
	if err := a.Bus.Healthy(ctx); err != nil {
		return fmt.Errorf("%w: %v", bus.ErrUnavailable, err)
	}
	return nil
}

func (a *api) triggerBatch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	count := defaultBatchCount
	if raw := strings.TrimSpace(q.Get("count")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, a.Logger, fmt.Errorf("%w: count %q is not an integer", pipeline.ErrInvalidCount, raw))
			return
		}
		count = n
	}
	var pool []string
	if q.Has("locations") {
		pool = splitList(q.Get("locations"))
		if pool == nil {
			pool = []string{}
		}
	}
	if err := a.busGate(r.Context()); err != nil {
		writeError(w, a.Logger, err)
		return
	}

	res, err := a.Pipeline.TriggerBatch(r.Context(), count, pool)
	if err != nil {
		writeError(w, a.Logger, err)
		return
	}
	status := "success"
	switch {
	case res.Failed == res.Requested:
		status = "failed"
	case res.Failed > 0:
		status = "partial"
	}
	msg := fmt.Sprintf("published %d/%d sensor events", res.Succeeded, res.Requested)
	if res.AlertsPublished > 0 {
		msg += fmt.Sprintf(" and %d alerts", res.AlertsPublished)
	}
	writeJSON(w, a.Logger, http.StatusOK, triggerResponse{
		Status:      status,
		Topic:       a.Info.EventsTopic,
		Message:     msg,
		Timestamp:   timestamp(),
		BatchResult: res,
	})
}

func (a *api) triggerSingle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	o := generator.Overrides{
		SensorID: strings.TrimSpace(q.Get("sensor_id")),
		Location: strings.TrimSpace(q.Get("location")),
	}
	var err error
	for name, dst := range map[string]**float64{
		"temperature":   &o.Temperature,
		"humidity":      &o.Humidity,
		"pressure":      &o.Pressure,
		"battery_level": &o.BatteryLevel,
	} {
		if *dst, err = optionalFloat(q.Get(name), name); err != nil {
			writeError(w, a.Logger, err)
			return
		}
	}
	if err := a.busGate(r.Context()); err != nil {
		writeError(w, a.Logger, err)
		return
	}
	out := a.Pipeline.TriggerSingle(r.Context(), o)
	a.writeOutcome(w, out, "custom sensor event")
}

func (a *api) simulateAnomaly(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind := strings.TrimSpace(q.Get("anomaly_type"))
	if kind == "" {
		kind = string(defaultAnomalyKind)
	}
	if _, err := sensor.ParseKind(kind); err != nil {
		writeError(w, a.Logger, err)
		return
	}
	if err := a.busGate(r.Context()); err != nil {
		writeError(w, a.Logger, err)
		return
	}
	out, err := a.Pipeline.SimulateAnomalyAt(r.Context(), kind, strings.TrimSpace(q.Get("sensor_id")), strings.TrimSpace(q.Get("location")))
	if err != nil {
		writeError(w, a.Logger, err)
		return
	}
	a.writeOutcome(w, out, fmt.Sprintf("anomaly %q simulated", kind))
}

// writeOutcome answers 200 unless nothing reached the bus, which is 502.
func (a *api) writeOutcome(w http.ResponseWriter, out dispatch.Outcome, what string) {
	code := http.StatusOK
	msg := what + " published"
	switch out.Status() {
	case dispatch.StatusFailed:
		code = http.StatusBadGateway
		msg = what + " not published"
	case dispatch.StatusPartial:
		msg = what + " partially published"
	}
	if out.AlertPublished {
		msg += fmt.Sprintf(" with %d alert classifications", len(out.Classifications))
	}
	writeJSON(w, a.Logger, code, outcomeResponse{
		Status:    out.Status(),
		Topic:     a.Info.EventsTopic,
		Message:   msg,
		Timestamp: timestamp(),
		Outcome:   out,
	})
}

func (a *api) statistics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, a.Logger, http.StatusOK, a.Pipeline.GetStatistics())
}

func (a *api) resetStatistics(w http.ResponseWriter, _ *http.Request) {
	prev := a.Pipeline.ResetStatistics()
	writeJSON(w, a.Logger, http.StatusOK, map[string]any{
		"status":        "success",
		"message":       "statistics reset",
		"previousStats": prev,
		"timestamp":     timestamp(),
	})
}

func (a *api) info(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{
		"service":    a.Info,
		"statistics": a.Pipeline.GetStatistics(),
		"thresholds": a.Pipeline.Thresholds(),
		"timestamp":  timestamp(),
	}
	if a.Bus != nil {
		body["bus"] = a.Bus.Describe()
	}
	writeJSON(w, a.Logger, http.StatusOK, body)
}

func (a *api) simulatorConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, a.Logger, http.StatusOK, map[string]any{
		"thresholds":   a.Pipeline.Thresholds(),
		"locations":    a.Pipeline.Locations(),
		"maxBatch":     a.Pipeline.MaxBatch(),
		"anomalyKinds": sensor.KindStrings(sensor.AllKinds()),
		"timestamp":    timestamp(),
	})
}

func (a *api) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, a.Logger, http.StatusOK, map[string]any{
		"service":     a.Info.Name,
		"version":     a.Info.Version,
		"description": a.Info.Description,
		"status":      "running",
		"links": map[string]string{
			"health":           "GET /health",
			"trigger_sensors":  "POST /api/sensors/trigger?count=5",
			"trigger_custom":   "POST /api/sensors/trigger-single?sensor_id=test&temperature=25",
			"simulate_anomaly": "GET /api/sensors/simulate-anomaly?anomaly_type=high_temperature",
			"statistics":       "GET /api/statistics",
			"service_info":     "GET /api/info",
			"metrics":          "GET /metrics",
			"stream":           "GET /ws",
		},
		"timestamp": timestamp(),
	})
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	err := a.busGate(r.Context())
	status := "healthy"
	body := map[string]any{
		"service":    a.Info.Name,
		"busHealthy": err == nil,
		"topics":     []string{a.Info.EventsTopic, a.Info.AlertsTopic},
		"timestamp":  timestamp(),
	}
	if err != nil {
		status = "unhealthy"
		body["detail"] = err.Error()
	}
	body["status"] = status
	writeJSON(w, a.Logger, http.StatusOK, body)
}

func (a *api) live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, a.Logger, http.StatusOK, map[string]string{"status": "alive", "timestamp": timestamp()})
}

func (a *api) ready(w http.ResponseWriter, r *http.Request) {
	if !a.Health.Ready() {
		writeJSON(w, a.Logger, http.StatusServiceUnavailable, map[string]string{"status": "not_ready", "detail": "server is not accepting traffic", "timestamp": timestamp()})
		return
	}
	if err := a.busGate(r.Context()); err != nil {
		writeJSON(w, a.Logger, http.StatusServiceUnavailable, map[string]string{"status": "not_ready", "detail": err.Error(), "timestamp": timestamp()})
		return
	}
	writeJSON(w, a.Logger, http.StatusOK, map[string]string{"status": "ready", "timestamp": timestamp()})
}

func optionalFloat(raw, name string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: %s=%q is not a finite number", errBadParameter, name, raw)
	}
	return &v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
