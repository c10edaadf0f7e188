package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/neuralforge/platform/pkg/common/logger"
	"github.com/neuralforge/platform/pkg/events"
	"github.com/segmentio/kafka-go"
)

// Producer publishes committed engine records. Every message carries the
// same key so the hash balancer keeps them on one partition in sequence
// order.
type Producer struct {
	writer *kafka.Writer
	source string
}

func NewProducer(brokers []string, topic, source string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{writer: writer, source: source}
}

// Message converts rec into the Kafka message Publish writes.
func Message(rec events.Record, source string) (kafka.Message, error) {
	event, err := rec.Envelope(source)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to build envelope: %w", err)
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(source),
		Value: eventBytes,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
			{Key: "event-seq", Value: []byte(strconv.FormatUint(event.Sequence, 10))},
			{Key: "source", Value: []byte(source)},
		},
	}, nil
}

// Publish implements events.Sink.
func (p *Producer) Publish(ctx context.Context, rec events.Record) error {
	message, err := Message(rec, p.source)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("publish seq %d: %w", rec.Seq, err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"seq":        rec.Seq,
		"event_type": rec.Type(),
		"topic":      p.writer.Topic,
	}).Debug("Event published")

	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
