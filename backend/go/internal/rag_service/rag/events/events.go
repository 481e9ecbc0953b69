// Package events publishes ingestion events.
package events

import (
	"Athena/backend/go/internal/rag_service/rag/interfaces"
	"Athena/backend/go/internal/rag_service/rag/schema"
	"Athena/backend/go/pkg/logger"
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one JSON message per ingested document, keyed by
// document id so events for a document stay in one partition.
type KafkaPublisher struct {
	writer MessageWriter
	topic  string
	log    *logger.Logger
}

// NewKafkaPublisher creates a new KafkaPublisher. The writer must not have a fixed topic.
func NewKafkaPublisher(writer MessageWriter, topic string, log *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, topic: topic, log: log}
}

func (p *KafkaPublisher) PublishIngested(ctx context.Context, event schema.IngestionEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal ingestion event: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.DocumentID),
		Value: value,
	})
	if err != nil {
		p.log.WithErr(err).With("topic", p.topic).Error("Failed to write message to Kafka")
		return err
	}
	return nil
}

// Close closes the underlying Kafka writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Noop drops every event.
type Noop struct{}

func (Noop) PublishIngested(ctx context.Context, event schema.IngestionEvent) error { return nil }
func (Noop) Close() error                                                           { return nil }

var (
	_ interfaces.EventPublisher = (*KafkaPublisher)(nil)
	_ interfaces.EventPublisher = Noop{}
)
