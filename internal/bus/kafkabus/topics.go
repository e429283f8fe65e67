// v0
// internal/bus/kafkabus/topics.go
package kafkabus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// TopicSpec is the desired layout of one topic.
type TopicSpec struct {
	Name              string
	Partitions        int
	ReplicationFactor int
}

// Validate rejects empty names and non-positive counts.
func (s TopicSpec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errEmptyTopic
	}
	if s.Partitions < 1 {
		return fmt.Errorf("topic %s: partitions must be at least 1", s.Name)
	}
	if s.ReplicationFactor < 1 {
		return fmt.Errorf("topic %s: replication factor must be positive", s.Name)
	}
	return nil
}

// EnsureTopics creates the given topics through the controller, tolerating
// topics that already exist, then checks each one has at least the
// requested number of partitions.
func EnsureTopics(ctx context.Context, log *slog.Logger, brokers []string, specs []TopicSpec) error {
	if len(brokers) == 0 {
		return errNoBrokers
	}
	if log == nil {
		log = slog.Default()
	}
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return err
		}
	}

	broker := brokers[0]
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, err := kafka.DialContext(dialCtx, "tcp", broker)
	if err != nil {
		return fmt.Errorf("dial broker %s: %w", broker, err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Warn("broker_close", slog.Any("err", cerr))
		}
	}()
	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("fetch controller metadata: %w", err)
	}
	ctrlAddr := fmt.Sprintf("%s:%d", controller.Host, controller.Port)
	ctrlCtx, ctrlCancel := context.WithTimeout(ctx, 10*time.Second)
	defer ctrlCancel()
	admin, err := kafka.DialContext(ctrlCtx, "tcp", ctrlAddr)
	if err != nil {
		return fmt.Errorf("dial controller %s: %w", ctrlAddr, err)
	}
	defer func() {
		if cerr := admin.Close(); cerr != nil {
			log.Warn("controller_close", slog.Any("err", cerr))
		}
	}()
	if err := admin.SetDeadline(time.Now().Add(10 * time.Second)); err != nil {
		log.Warn("controller_deadline", slog.Any("err", err))
	}

	configs := make([]kafka.TopicConfig, 0, len(specs))
	for _, s := range specs {
		configs = append(configs, kafka.TopicConfig{Topic: s.Name, NumPartitions: s.Partitions, ReplicationFactor: s.ReplicationFactor})
	}
	if err := admin.CreateTopics(configs...); err != nil {
		if !isAlreadyExists(err) {
			return fmt.Errorf("create topics: %w", err)
		}
		log.Info("topics_exist", slog.Any("err", err))
	} else {
		log.Info("topics_created", slog.Int("count", len(configs)))
	}

	for _, s := range specs {
		count, err := readPartitions(admin, s.Name)
		if err != nil {
			return err
		}
		if count < s.Partitions {
			return fmt.Errorf("topic %s has %d partitions; expected at least %d", s.Name, count, s.Partitions)
		}
		log.Info("topic_ready",
			slog.String("topic", s.Name),
			slog.Int("partitions", count),
			slog.Int("replication", s.ReplicationFactor),
		)
	}
	return nil
}

func readPartitions(conn *kafka.Conn, topic string) (int, error) {
	partitions, err := conn.ReadPartitions(topic)
	if err != nil {
		return 0, fmt.Errorf("read partitions for %s: %w", topic, err)
	}
	return countPartitions(partitions, topic), nil
}

func countPartitions(partitions []kafka.Partition, topic string) int {
	seen := map[int]struct{}{}
	for _, part := range partitions {
		if part.Topic != topic {
			continue
		}
		seen[part.ID] = struct{}{}
	}
	return len(seen)
}

func isAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, kafka.TopicAlreadyExists) {
		return true
	}
	return strings.Contains(err.Error(), "Topic with this name already exists")
}
