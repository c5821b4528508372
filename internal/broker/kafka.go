package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
)

// KafkaConfig holds the connection settings shared by producer and consumers.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// KafkaPublisher publishes messages with a synchronous producer, so Publish
// returns only after all in-sync replicas acknowledged the write.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

// NewKafkaPublisher connects a sync producer to the cluster.
func NewKafkaPublisher(cfg KafkaConfig, logger *slog.Logger) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	p, err := sarama.NewSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewKafkaPublisherWithProducer(p, cfg.Topic, logger), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer.
// If logger is nil, a default logger will be used.
func NewKafkaPublisherWithProducer(p sarama.SyncProducer, topic string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{
		producer: p,
		topic:    topic,
		logger:   logger.With(slog.String("component", "kafka_publisher")),
	}
}

// Publish sends msg keyed by task id.
func (p *KafkaPublisher) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	data, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(msg.TaskID.String()),
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		return fmt.Errorf("publish task %s: %w", msg.TaskID, err)
	}

	p.logger.Debug("message published",
		slog.String("task_id", msg.TaskID.String()),
		slog.Int("partition", int(partition)),
		slog.Int64("offset", offset))
	return nil
}

// Close flushes and closes the producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// KafkaConsumer is one member of the worker consumer group.
type KafkaConsumer struct {
	group  sarama.ConsumerGroup
	topic  string
	logger *slog.Logger
}

// NewKafkaConsumer joins the configured consumer group as a new member.
// Create one per worker loop.
func NewKafkaConsumer(cfg KafkaConfig, logger *slog.Logger) (*KafkaConsumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	g, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer group: %w", err)
	}
	return NewKafkaConsumerWithGroup(g, cfg.Topic, logger), nil
}

// NewKafkaConsumerWithGroup wraps an existing consumer group.
// If logger is nil, a default logger will be used.
func NewKafkaConsumerWithGroup(g sarama.ConsumerGroup, topic string, logger *slog.Logger) *KafkaConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaConsumer{
		group:  g,
		topic:  topic,
		logger: logger.With(slog.String("component", "kafka_consumer")),
	}
}

// Consume joins the group session loop until ctx is cancelled or the group
// is closed. sarama returns from each session on rebalance, so the session is
// re-entered until then.
func (c *KafkaConsumer) Consume(ctx context.Context, handler Handler) error {
	h := &groupHandler{handler: handler, logger: c.logger}
	for {
		if err := c.group.Consume(ctx, []string{c.topic}, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return fmt.Errorf("consume %s: %w", c.topic, err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close leaves the group.
func (c *KafkaConsumer) Close() error {
	return c.group.Close()
}

type groupHandler struct {
	handler Handler
	logger  *slog.Logger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim marks every message after handling it. Handler failures are
// recorded on the task itself, so redelivery would only duplicate work.
func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil
		case raw, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			msg, err := Decode(raw.Value)
			if err != nil {
				h.logger.Error("dropping malformed message",
					slog.Int("partition", int(raw.Partition)),
					slog.Int64("offset", raw.Offset),
					slog.String("error", err.Error()))
				session.MarkMessage(raw, "")
				continue
			}

			if err := h.handler(session.Context(), msg); err != nil {
				h.logger.Error("message handler failed",
					slog.String("task_id", msg.TaskID.String()),
					slog.String("error", err.Error()))
			}
			session.MarkMessage(raw, "")
		}
	}
}
