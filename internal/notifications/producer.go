package notifications

import (
	"context"
	"fmt"
	"time"

	"eventreg/pkg/logger"

	"github.com/IBM/sarama"
)

// Publisher puts messages on the notifications topic
type Publisher interface {
	Publish(ctx context.Context, msg *Message) error
	Close() error
}

type ProducerConfig struct {
	Brokers         []string
	Topic           string
	RetryMax        int
	Timeout         time.Duration
	RequiredAcks    sarama.RequiredAcks
	Compression     sarama.CompressionCodec
	Idempotent      bool
	MaxMessageBytes int
}

func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		Brokers:         []string{"localhost:9092"},
		Topic:           "eventreg.notifications",
		RetryMax:        3,
		Timeout:         3 * time.Second,
		RequiredAcks:    sarama.WaitForAll,
		Compression:     sarama.CompressionSnappy,
		Idempotent:      true,
		MaxMessageBytes: 1000000,
	}
}

func (c ProducerConfig) sarama() *sarama.Config {
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.RequiredAcks = c.RequiredAcks
	sc.Producer.Compression = c.Compression
	sc.Producer.Retry.Max = c.RetryMax
	sc.Producer.Timeout = c.Timeout
	sc.Producer.Idempotent = c.Idempotent
	sc.Producer.MaxMessageBytes = c.MaxMessageBytes
	if c.Idempotent {
		sc.Net.MaxOpenRequests = 1
	}
	// Same recipient, same partition.
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	return sc
}

type KafkaProducer struct {
	producer sarama.SyncProducer
	topic    string
	log      *logger.Logger
}

func NewKafkaProducer(cfg ProducerConfig, log *logger.Logger) (*KafkaProducer, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, cfg.sarama())
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return NewKafkaProducerFrom(producer, cfg.Topic, log), nil
}

// NewKafkaProducerFrom wraps an existing sarama producer
func NewKafkaProducerFrom(producer sarama.SyncProducer, topic string, log *logger.Logger) *KafkaProducer {
	return &KafkaProducer{producer: producer, topic: topic, log: log.WithComponent("notifications")}
}

func (p *KafkaProducer) Publish(ctx context.Context, msg *Message) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(msg.PartitionKey()),
		Value:     sarama.ByteEncoder(body),
		Headers:   headers(msg),
		Timestamp: msg.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to send notification to Kafka: %w", err)
	}

	p.log.Debug("notification published", "type", msg.Type, "partition", partition, "offset", offset)
	return nil
}

func (p *KafkaProducer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}

func headers(msg *Message) []sarama.RecordHeader {
	h := []sarama.RecordHeader{
		{Key: []byte("notification_id"), Value: []byte(msg.ID.String())},
		{Key: []byte("notification_type"), Value: []byte(msg.Type)},
		{Key: []byte("producer"), Value: []byte("eventreg")},
		{Key: []byte("created_at"), Value: []byte(msg.CreatedAt.Format(time.RFC3339))},
	}
	if msg.EventID != nil {
		h = append(h, sarama.RecordHeader{Key: []byte("event_id"), Value: []byte(msg.EventID.String())})
	}
	return h
}
