package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"seatflow/pkg/logger"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Dispatcher hands notifications to the delivery system. The engine calls
// it fire-and-forget: delivery, retries, and templating are the delivery
// system's concern.
type Dispatcher interface {
	Send(ctx context.Context, userID uuid.UUID, kind string, payload map[string]interface{}) error
	Close() error
}

// Envelope is the message published for each notification
type Envelope struct {
	ID        uuid.UUID              `json:"id"`
	UserID    uuid.UUID              `json:"user_id"`
	Kind      string                 `json:"kind"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// KafkaConfig contains configuration for the Kafka dispatcher
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	RetryMax int
	Timeout  time.Duration
}

// DefaultKafkaConfig returns a default dispatcher configuration
func DefaultKafkaConfig() *KafkaConfig {
	return &KafkaConfig{
		Brokers:  []string{"localhost:9092"},
		Topic:    "waitlist-notifications",
		RetryMax: 3,
		Timeout:  10 * time.Second,
	}
}

// KafkaDispatcher publishes notification envelopes to Kafka
type KafkaDispatcher struct {
	producer sarama.SyncProducer
	config   *KafkaConfig
}

// NewKafkaDispatcher creates a Kafka-backed dispatcher
func NewKafkaDispatcher(config *KafkaConfig) (*KafkaDispatcher, error) {
	if config == nil {
		config = DefaultKafkaConfig()
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Retry.Max = config.RetryMax
	saramaConfig.Producer.Timeout = config.Timeout
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1

	// Hash partitioner keeps one user's notifications ordered.
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &KafkaDispatcher{
		producer: producer,
		config:   config,
	}, nil
}

// Send publishes one notification envelope
func (d *KafkaDispatcher) Send(ctx context.Context, userID uuid.UUID, kind string, payload map[string]interface{}) error {
	envelope := Envelope{
		ID:        uuid.New(),
		UserID:    userID,
		Kind:      kind,
		Payload:   payload,
		CreatedAt: time.Now(),
	}

	value, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic:     d.config.Topic,
		Key:       sarama.StringEncoder(userID.String()),
		Value:     sarama.ByteEncoder(value),
		Timestamp: envelope.CreatedAt,
	}

	if _, _, err := d.producer.SendMessage(message); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	return nil
}

// Close shuts down the underlying producer
func (d *KafkaDispatcher) Close() error {
	return d.producer.Close()
}

// LogDispatcher is a fallback that records notifications to the log only.
// Used when Kafka is disabled or unreachable at startup.
type LogDispatcher struct {
	log *logger.Logger
}

// NewLogDispatcher creates a log-only dispatcher
func NewLogDispatcher(log *logger.Logger) *LogDispatcher {
	if log == nil {
		log = logger.GetDefault()
	}
	return &LogDispatcher{log: log}
}

// Send logs the notification instead of delivering it
func (d *LogDispatcher) Send(ctx context.Context, userID uuid.UUID, kind string, payload map[string]interface{}) error {
	d.log.InfoContext(ctx, "notification (log only)",
		"user_id", userID.String(),
		"kind", kind,
	)
	return nil
}

// Close is a no-op for the log dispatcher
func (d *LogDispatcher) Close() error {
	return nil
}
