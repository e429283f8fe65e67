// v0
// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adilblanco/Kafka-iot-poc/internal/circuitbreaker"
	"github.com/adilblanco/Kafka-iot-poc/internal/dispatch"
)

const namespace = "sensor_producer"

type Metrics struct {
	registry          *prometheus.Registry
	publishTotal      *prometheus.CounterVec
	publishDuration   *prometheus.HistogramVec
	alertsByKind      *prometheus.CounterVec
	alertsBySeverity  *prometheus.CounterVec
	batchSize         prometheus.Histogram
	batchFailed       prometheus.Counter
	batchDuration     prometheus.Histogram
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	cbState           *prometheus.GaugeVec
}

// New registers every collector on a private registry, together with the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		publishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Publish attempts by topic role and result.",
		}, []string{"role", "result"}),
		publishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Histogram of bus publish latency by topic role.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"role"}),
		alertsByKind: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_published_total",
			Help:      "Delivered alerts per classification.",
		}, []string{"kind"}),
		alertsBySeverity: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_severity_total",
			Help:      "Delivered alerts per severity.",
		}, []string{"severity"}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Requested readings per batch trigger.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100},
		}),
		batchFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_items_failed_total",
			Help:      "Batch items whose outcome was not ok.",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Histogram of batch trigger durations.",
			Buckets:   prometheus.DefBuckets,
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		cbState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cb_state",
			Help: "Circuit breaker state gauge (0 closed, 1 half, 2 open).",
		}, []string{"target"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.publishTotal,
		m.publishDuration,
		m.alertsByKind,
		m.alertsBySeverity,
		m.batchSize,
		m.batchFailed,
		m.batchDuration,
		m.httpRequestsTotal,
		m.httpDuration,
		m.cbState,
	)
	return m
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObservePublish implements dispatch.Observer.
func (m *Metrics) ObservePublish(a dispatch.Attempt) {
	if m == nil {
		return
	}
	result := "ok"
	if a.Err != nil {
		result = "fail"
	}
	m.publishTotal.WithLabelValues(a.Role, result).Inc()
	m.publishDuration.WithLabelValues(a.Role).Observe(a.Duration.Seconds())
	if a.Err != nil || a.Severity == "" {
		return
	}
	for _, k := range a.Classifications {
		m.alertsByKind.WithLabelValues(string(k)).Inc()
	}
	m.alertsBySeverity.WithLabelValues(string(a.Severity)).Inc()
}

// ObserveBatch records one completed batch trigger.
func (m *Metrics) ObserveBatch(requested, failed int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.batchSize.Observe(float64(requested))
	m.batchFailed.Add(float64(failed))
	m.batchDuration.Observe(elapsed.Seconds())
}

// SetCircuitBreakerState maps breaker states onto the cb_state gauge.
func (m *Metrics) SetCircuitBreakerState(target string, state circuitbreaker.State) {
	if m == nil {
		return
	}
	var v float64
	switch state {
	case circuitbreaker.HalfOpen:
		v = 1
	case circuitbreaker.Open:
		v = 2
	}
	m.cbState.WithLabelValues(target).Set(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		duration := time.Since(start).Seconds()
		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(duration)
		}
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
