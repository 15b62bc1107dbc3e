package broadcaster

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
)

// Publisher delivers one encoded event downstream. Publish returns only
// once the event is acknowledged.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
	Close() error
}

// SaramaPublisher publishes through a sarama SyncProducer.
type SaramaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func SaramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Version = sarama.V2_8_0_0
	return cfg
}

func NewSaramaPublisher(brokers []string, topic string) (*SaramaPublisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, SaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("broadcaster: sarama producer: %w", err)
	}
	return NewSaramaPublisherFrom(producer, topic), nil
}

// NewSaramaPublisherFrom wraps an existing producer.
func NewSaramaPublisherFrom(producer sarama.SyncProducer, topic string) *SaramaPublisher {
	return &SaramaPublisher{producer: producer, topic: topic}
}

// Publish ignores ctx once the message is handed to sarama; the producer
// applies its own timeouts.
func (p *SaramaPublisher) Publish(ctx context.Context, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("broadcaster: send to %s: %w", p.topic, err)
	}
	return nil
}

func (p *SaramaPublisher) Close() error {
	return p.producer.Close()
}
