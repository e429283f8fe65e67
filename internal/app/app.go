// v0
// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/adilblanco/Kafka-iot-poc/internal/bus"
	"github.com/adilblanco/Kafka-iot-poc/internal/bus/kafkabus"
	"github.com/adilblanco/Kafka-iot-poc/internal/bus/logbus"
	"github.com/adilblanco/Kafka-iot-poc/internal/bus/mqttbus"
	"github.com/adilblanco/Kafka-iot-poc/internal/bus/natsbus"
	"github.com/adilblanco/Kafka-iot-poc/internal/circuitbreaker"
	"github.com/adilblanco/Kafka-iot-poc/internal/config"
	"github.com/adilblanco/Kafka-iot-poc/internal/dispatch"
	"github.com/adilblanco/Kafka-iot-poc/internal/generator"
	"github.com/adilblanco/Kafka-iot-poc/internal/httpapi"
	"github.com/adilblanco/Kafka-iot-poc/internal/logging"
	"github.com/adilblanco/Kafka-iot-poc/internal/metrics"
	"github.com/adilblanco/Kafka-iot-poc/internal/pipeline"
	"github.com/adilblanco/Kafka-iot-poc/internal/stats"
	"github.com/adilblanco/Kafka-iot-poc/internal/stream"
)

// Application wires configuration, logging, the message bus, the
// publication pipeline and the HTTP surface, and owns graceful shutdown.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	logCloser io.Closer
	bus       bus.Bus
	metrics   *metrics.Metrics
	hub       *stream.Hub
	service   *pipeline.Service
	health    *httpapi.HealthState
	server    *http.Server
}

// New validates cfg and builds a ready-to-run instance. ctx bounds the
// initial broker connection for drivers that need one.
func New(ctx context.Context, cfg config.Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, logCloser, err := logging.New(logging.Options{
		Path:       cfg.Log.Path,
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	m := metrics.New()
	b, err := newBus(ctx, cfg, logger, m)
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("init %s bus: %w", cfg.Bus.Driver, err)
	}
	logger.Info("bus_configured", slog.String("driver", cfg.Bus.Driver), slog.Any("bus", b.Describe()))

	a, err := assemble(cfg, logger, b, m)
	if err != nil {
		_ = b.Close()
		_ = logCloser.Close()
		return nil, err
	}
	a.logCloser = logCloser
	return a, nil
}

// assemble builds everything above the bus. Tests use it with a stub bus.
func assemble(cfg config.Config, logger *slog.Logger, b bus.Bus, m *metrics.Metrics) (*Application, error) {
	store := stats.New(nil)
	gen, err := generator.New(generator.Options{
		Thresholds: cfg.Thresholds,
		Recorder:   store,
		Locations:  cfg.Generator.Locations,
	})
	if err != nil {
		return nil, fmt.Errorf("generator init: %w", err)
	}

	hub := stream.NewHub(logger)
	disp, err := dispatch.New(b, store, dispatch.Config{
		EventsTopic: cfg.Bus.EventsTopic,
		AlertsTopic: cfg.Bus.AlertsTopic,
	}, logger, m, hub)
	if err != nil {
		return nil, fmt.Errorf("dispatcher init: %w", err)
	}

	svc, err := pipeline.New(gen, disp, store, pipeline.Options{
		MaxBatch:    cfg.Generator.MaxBatch,
		Concurrency: cfg.Generator.BatchConcurrency,
		Locations:   cfg.Generator.Locations,
		OnBatch: func(res pipeline.BatchResult) {
			m.ObserveBatch(res.Requested, res.Failed, res.Elapsed)
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("pipeline init: %w", err)
	}

	health := httpapi.NewHealthState()
	router := httpapi.NewRouter(httpapi.Deps{
		Logger:   logger,
		Pipeline: svc,
		Bus:      b,
		Health:   health,
		Metrics:  m,
		Stream:   hub.Handler(nil),
		Info: httpapi.ServiceInfo{
			Name:        cfg.Service.Name,
			Version:     cfg.Service.Version,
			Description: cfg.Service.Description,
			EventsTopic: cfg.Bus.EventsTopic,
			AlertsTopic: cfg.Bus.AlertsTopic,
		},
	})
	server := &http.Server{
		Addr:              cfg.HTTP.ListenAddress,
		Handler:           httpapi.Wrap(logger, cfg.HTTP.CORSOrigins, router),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.WriteTimeout,
	}

	logger.Info("pipeline_configured",
		slog.String("events_topic", cfg.Bus.EventsTopic),
		slog.String("alerts_topic", cfg.Bus.AlertsTopic),
		slog.String("locations", strings.Join(cfg.Generator.Locations, ",")),
		slog.Int("max_batch", svc.MaxBatch()),
	)

	return &Application{
		cfg:       cfg,
		logger:    logger,
		logCloser: nopCloser{},
		bus:       b,
		metrics:   m,
		hub:       hub,
		service:   svc,
		health:    health,
		server:    server,
	}, nil
}

func newBus(ctx context.Context, cfg config.Config, logger *slog.Logger, m *metrics.Metrics) (bus.Bus, error) {
	busLogger := logger.With(slog.String("component", "bus"))
	switch cfg.Bus.Driver {
	case bus.DriverKafka:
		m.SetCircuitBreakerState("kafka", circuitbreaker.Closed)
		return kafkabus.New(kafkabus.Config{
			Brokers:      cfg.Kafka.Brokers,
			ClientID:     cfg.Kafka.ClientID,
			Acks:         cfg.Kafka.Acks,
			Compression:  cfg.Kafka.Compression,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			WriteTimeout: cfg.Kafka.WriteTimeout,
			DialTimeout:  cfg.Kafka.DialTimeout,
			Breaker:      cfg.Breaker,
		}, busLogger, func(_ string, _, to circuitbreaker.State) {
			m.SetCircuitBreakerState("kafka", to)
		})
	case bus.DriverMQTT:
		return mqttbus.New(mqttbus.Config{
			BrokerURL:   cfg.MQTT.BrokerURL,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			QoS:         byte(cfg.MQTT.QoS),
			TopicPrefix: cfg.MQTT.TopicPrefix,
		}, busLogger)
	case bus.DriverNATS:
		return natsbus.New(ctx, natsbus.Config{
			URL:           cfg.NATS.URL,
			Stream:        cfg.NATS.Stream,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
		}, busLogger)
	case bus.DriverLog:
		return logbus.New(busLogger, slog.LevelInfo), nil
	}
	return nil, fmt.Errorf("unknown bus driver %q", cfg.Bus.Driver)
}

// Logger exposes the configured logger.
func (a *Application) Logger() *slog.Logger {
	return a.logger
}

// Handler returns the fully wrapped HTTP handler.
func (a *Application) Handler() http.Handler {
	return a.server.Handler
}

// Service returns the pipeline service.
func (a *Application) Service() *pipeline.Service {
	return a.service
}

// Run blocks until ctx is cancelled or the HTTP server fails, then shuts
// down gracefully.
func (a *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.HTTP.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.HTTP.ListenAddress, err)
	}
	return a.serve(ctx, ln)
}

func (a *Application) serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.cfg.Bus.Driver == bus.DriverKafka && a.cfg.Kafka.AutoCreateTopics {
		a.ensureTopics(ctx)
	}

	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		a.hub.Run(ctx)
	}()

	httpCh := make(chan error, 1)
	go func() {
		a.health.SetReady(true)
		a.logger.Info("http_server_listen", slog.String("address", ln.Addr().String()))
		httpCh <- a.server.Serve(ln)
	}()

	var httpErr error
	select {
	case err := <-httpCh:
		httpCh = nil
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http_server_error", slog.Any("err", err))
			httpErr = err
		}
	case <-ctx.Done():
		a.logger.Info("shutdown_signal")
	}

	a.health.SetReady(false)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	if err := a.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("server_shutdown_failed", slog.Any("err", err))
		if httpErr == nil {
			httpErr = fmt.Errorf("shutdown: %w", err)
		}
	}
	shutdownCancel()
	if httpCh != nil {
		if err := <-httpCh; err != nil && !errors.Is(err, http.ErrServerClosed) && httpErr == nil {
			httpErr = err
		}
	}
	cancel()
	<-hubDone

	if httpErr != nil {
		return httpErr
	}
	a.logger.Info("shutdown_complete")
	return nil
}

func (a *Application) ensureTopics(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	specs := []kafkabus.TopicSpec{
		{Name: a.cfg.Bus.EventsTopic, Partitions: a.cfg.Kafka.EventsPartitions, ReplicationFactor: a.cfg.Kafka.Replication},
		{Name: a.cfg.Bus.AlertsTopic, Partitions: a.cfg.Kafka.AlertsPartitions, ReplicationFactor: a.cfg.Kafka.Replication},
	}
	if err := kafkabus.EnsureTopics(ctx, a.logger, a.cfg.Kafka.Brokers, specs); err != nil {
		a.logger.Warn("topic_provisioning_failed", slog.Any("err", err))
	}
}

// Close releases the bus and the log file.
func (a *Application) Close() error {
	var firstErr error
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			firstErr = err
		}
		a.bus = nil
	}
	if a.logCloser != nil {
		if err := a.logCloser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.logCloser = nil
	}
	return firstErr
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
