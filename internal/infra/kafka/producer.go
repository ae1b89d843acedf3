package kafka

import (
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/arklim/expense-tracker-iam/internal/infra/config"
)

// Producer wraps a Sarama SyncProducer. Every send blocks until the brokers
// acknowledge the message or the retries are exhausted.
type Producer struct {
	producer sarama.SyncProducer
	logger   *zap.Logger
	cfg      config.KafkaSettings
}

// NewProducer connects a synchronous producer to the configured brokers.
func NewProducer(cfg config.KafkaSettings, logger *zap.Logger) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_5_0_0

	// Notification events carry one-time tokens; wait for all in-sync replicas.
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Flush.Frequency = 50 * time.Millisecond
	saramaConfig.Producer.Retry.Max = 5
	// Required by the sync producer.
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true

	saramaConfig.Metadata.Retry.Max = 3
	saramaConfig.Metadata.Retry.Backoff = 250 * time.Millisecond

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	logger.Info("kafka producer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic_prefix", cfg.TopicPrefix),
	)

	return &Producer{
		producer: producer,
		logger:   logger,
		cfg:      cfg,
	}, nil
}

// Send delivers msg and returns the broker's verdict.
func (p *Producer) Send(msg *sarama.ProducerMessage) (partition int32, offset int64, err error) {
	partition, offset, err = p.producer.SendMessage(msg)
	if err != nil {
		p.logger.Error("kafka delivery failed",
			zap.Error(err),
			zap.String("topic", msg.Topic),
		)
		return 0, 0, fmt.Errorf("deliver to %s: %w", msg.Topic, err)
	}
	return partition, offset, nil
}

// Close flushes in-flight messages and closes the producer.
func (p *Producer) Close() error {
	p.logger.Info("closing kafka producer")

	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}

	return nil
}

// TopicName returns the full topic name with prefix
func (p *Producer) TopicName(eventType string) string {
	if p.cfg.TopicPrefix == "" {
		return eventType
	}

	prefix := fmt.Sprintf("%s.", p.cfg.TopicPrefix)
	if strings.HasPrefix(eventType, prefix) {
		return eventType
	}

	return fmt.Sprintf("%s%s", prefix, eventType)
}
