package notify

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"carpoolbot/pkg/errs"
	"carpoolbot/pkg/models"
)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes group-formed events keyed by group id, so every
// event for a group lands on the same partition.
type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w}
}

func NewKafkaPublisherWithWriter(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (k *KafkaPublisher) GroupFormed(ctx context.Context, event models.GroupFormedEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return errs.Wrap(err, "encode group event")
	}
	if err := k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(event.GroupID), Value: b}); err != nil {
		return errs.Wrap(err, "publish group event")
	}
	return nil
}

func (k *KafkaPublisher) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
