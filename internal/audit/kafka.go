package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"

	apperrors "github.com/tenantgate/tenant-gate/internal/pkg/errors"
)

// KafkaBus is a producer-only Kafka bus. The gateway only ever publishes
// decision events; consumption happens in downstream analytics services.
type KafkaBus struct {
	producer sarama.SyncProducer
	client   sarama.Client
}

// KafkaConfig holds Kafka connection settings.
type KafkaConfig struct {
	Brokers  []string // Kafka broker addresses
	ClientID string   // Client identifier
	Version  string   // Kafka version (e.g., "2.8.0")
}

// NewKafkaBus creates a Kafka-backed audit bus.
func NewKafkaBus(cfg KafkaConfig) (*KafkaBus, error) {
	if len(cfg.Brokers) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "kafka brokers cannot be empty")
	}

	// Set defaults
	if cfg.ClientID == "" {
		cfg.ClientID = "tenant-gate-audit"
	}
	if cfg.Version == "" {
		cfg.Version = "2.8.0"
	}

	version, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, "invalid kafka version", err)
	}

	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Version = version
	kafkaConfig.ClientID = cfg.ClientID
	kafkaConfig.Producer.Return.Successes = true
	kafkaConfig.Producer.Return.Errors = true
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Net.DialTimeout = 10 * time.Second
	kafkaConfig.Net.ReadTimeout = 10 * time.Second
	kafkaConfig.Net.WriteTimeout = 10 * time.Second

	client, err := sarama.NewClient(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnavailable, "failed to create kafka client", err)
	}

	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		client.Close()
		return nil, apperrors.Wrap(apperrors.CodeUnavailable, "failed to create kafka producer", err)
	}

	return &KafkaBus{
		producer: producer,
		client:   client,
	}, nil
}

// Publish publishes an event to a Kafka topic.
func (b *KafkaBus) Publish(_ context.Context, topic string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "failed to marshal event", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.ID),
		Value: sarama.ByteEncoder(data),
	}

	if _, _, err := b.producer.SendMessage(msg); err != nil {
		return apperrors.Wrap(apperrors.CodeUnavailable, "failed to publish event", err)
	}
	return nil
}

// Subscribe is not supported: this bus is producer-only.
func (b *KafkaBus) Subscribe(context.Context, string, Handler) error {
	return apperrors.New(apperrors.CodeValidation, "kafka audit bus is producer-only")
}

// Close closes the producer and the underlying client.
func (b *KafkaBus) Close() error {
	if err := b.producer.Close(); err != nil {
		b.client.Close()
		return err
	}
	return b.client.Close()
}
