// v0
// cmd/sensor-producer/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/adilblanco/Kafka-iot-poc/internal/app"
	"github.com/adilblanco/Kafka-iot-poc/internal/bus/kafkabus"
	"github.com/adilblanco/Kafka-iot-poc/internal/config"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	bootstrap := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(bootstrap).ExecuteContext(ctx); err != nil {
		bootstrap.Error("command_failed", slog.Any("err", err))
		stop()
		os.Exit(1)
	}
}

func newRootCmd(bootstrap *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "sensor-producer",
		Short:         "Simulated building sensors publishing readings and alerts to a message bus",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), bootstrap)
		},
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and publish on demand",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd.Context(), bootstrap)
			},
		},
		newTopicsCmd(bootstrap),
		&cobra.Command{
			Use:   "config",
			Short: "Print the resolved configuration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				if err := cfg.Summary(cmd.OutOrStdout()); err != nil {
					return err
				}
				if err := cfg.Validate(); err != nil {
					return fmt.Errorf("configuration is invalid: %w", err)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the build version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			},
		},
	)
	return root
}

func serve(ctx context.Context, bootstrap *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}
	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("app init: %w", err)
	}
	defer func() {
		if cerr := application.Close(); cerr != nil {
			bootstrap.Error("app_close_failed", slog.Any("err", cerr))
		}
	}()

	logger := application.Logger()
	logger.Info("service_boot",
		slog.String("version", version),
		slog.String("listen_address", cfg.HTTP.ListenAddress),
		slog.String("log_path", cfg.Log.Path),
		slog.String("properties_path", cfg.PropertiesPath),
		slog.String("bus_driver", cfg.Bus.Driver),
		slog.String("kafka_brokers", strings.Join(cfg.Kafka.Brokers, ",")),
	)
	if err := application.Run(ctx); err != nil {
		logger.Error("service_terminated", slog.Any("err", err))
		return err
	}
	logger.Info("service_stopped")
	return nil
}

func newTopicsCmd(bootstrap *slog.Logger) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Create the events and alerts topics on Kafka if missing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if len(cfg.Kafka.Brokers) == 0 {
				return fmt.Errorf("no kafka brokers configured")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			specs := []kafkabus.TopicSpec{
				{Name: cfg.Bus.EventsTopic, Partitions: cfg.Kafka.EventsPartitions, ReplicationFactor: cfg.Kafka.Replication},
				{Name: cfg.Bus.AlertsTopic, Partitions: cfg.Kafka.AlertsPartitions, ReplicationFactor: cfg.Kafka.Replication},
			}
			if err := kafkabus.EnsureTopics(ctx, bootstrap, cfg.Kafka.Brokers, specs); err != nil {
				return err
			}
			bootstrap.Info("topics_ready", slog.String("events", cfg.Bus.EventsTopic), slog.String("alerts", cfg.Bus.AlertsTopic))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall deadline for topic provisioning")
	return cmd
}
