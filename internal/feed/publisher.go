// Package feed publishes change classifications to a Kafka topic for
// downstream automation. The feed is optional: with no brokers configured
// the pipeline never touches Kafka, and publish failures are warnings,
// never run failures.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/roadwatch-io/roadwatch/internal/diff"
	"github.com/roadwatch-io/roadwatch/internal/roadmap"
)

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "roadmap-changes"

// Config holds change feed settings.
type Config struct {
	// Brokers is the Kafka broker list. Empty disables the feed.
	Brokers []string

	// Topic receives one message per new/changed/removed item.
	Topic string
}

// Enabled reports whether the feed is configured.
func (c Config) Enabled() bool {
	return len(c.Brokers) > 0
}

// Publisher writes change events to Kafka.
type Publisher struct {
	writer *kafka.Writer
	logger *slog.Logger
	now    func() time.Time
}

// changeEvent is the wire format of one feed message.
type changeEvent struct {
	ID            roadmap.ItemID     `json:"id"`
	Title         string             `json:"title"`
	Status        string             `json:"status"`
	ChangeType    roadmap.ChangeType `json:"changeType"`
	ChangedFields []string           `json:"changedFields"`
	Timestamp     time.Time          `json:"timestamp"`
	RunID         string             `json:"runId"`
}

// NewPublisher creates a publisher for the configured brokers.
func NewPublisher(cfg Config, logger *slog.Logger) *Publisher {
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	return &Publisher{
		writer: writer,
		logger: logger,
		now:    time.Now,
	}
}

// PublishChanges emits one message per new, changed, and removed item.
// Unchanged items are not published. Messages are keyed by item ID so a
// given item's events stay ordered within a partition.
func (p *Publisher) PublishChanges(ctx context.Context, runID string, result diff.Result) error {
	messages, err := changeMessages(runID, p.now().UTC(), result)
	if err != nil {
		return err
	}

	if len(messages) == 0 {
		p.logger.Debug("No changes to publish")

		return nil
	}

	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("publish %d change events: %w", len(messages), err)
	}

	p.logger.Info("Change events published",
		slog.Int("messages", len(messages)),
		slog.String("topic", p.writer.Topic),
	)

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// changeMessages maps a detection result onto Kafka messages.
func changeMessages(runID string, now time.Time, result diff.Result) ([]kafka.Message, error) {
	events := make([]roadmap.Item, 0, result.New+result.Changed+len(result.Removed))

	for _, item := range result.Items {
		if item.ChangeType == roadmap.ChangeTypeNew || item.ChangeType == roadmap.ChangeTypeChanged {
			events = append(events, item)
		}
	}

	events = append(events, result.Removed...)

	messages := make([]kafka.Message, 0, len(events))

	for _, item := range events {
		value, err := json.Marshal(changeEvent{
			ID:            item.ID,
			Title:         item.Title,
			Status:        item.Status,
			ChangeType:    item.ChangeType,
			ChangedFields: item.ChangedFields,
			Timestamp:     now,
			RunID:         runID,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal change event for item %s: %w", item.ID, err)
		}

		messages = append(messages, kafka.Message{
			Key:   []byte(item.ID),
			Value: value,
		})
	}

	return messages, nil
}
