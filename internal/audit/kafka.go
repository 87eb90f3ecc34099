package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// KafkaEmitter produces audit events to a Kafka topic. Events are keyed by
// subject id so one subject's history stays ordered within a partition.
type KafkaEmitter struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

// NewKafkaEmitter creates a Kafka-backed audit emitter.
func NewKafkaEmitter(brokers []string, topic, clientID string, logger zerolog.Logger) *KafkaEmitter {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 100 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Transport: &kafka.Transport{
			ClientID: clientID,
		},
	}
	return &KafkaEmitter{
		writer: writer,
		logger: logger.With().Str("component", "audit_kafka").Logger(),
	}
}

// NewKafkaEmitterFromConfig builds a KafkaEmitter from a comma-separated
// broker list. Returns (nil, nil) when no brokers are configured so the
// caller can fall back to the logger emitter.
func NewKafkaEmitterFromConfig(brokers, topic, clientID string, logger zerolog.Logger) (*KafkaEmitter, error) {
	brokers = strings.TrimSpace(brokers)
	if brokers == "" {
		return nil, nil
	}
	if topic == "" {
		return nil, fmt.Errorf("audit: kafka topic required when brokers are set")
	}
	return NewKafkaEmitter(strings.Split(brokers, ","), topic, clientID, logger), nil
}

// Emit produces the event to the topic.
func (e *KafkaEmitter) Emit(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit: encode event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.SubjectID),
		Value: payload,
		Time:  event.CreatedAt,
	}
	if err := e.writer.WriteMessages(ctx, msg); err != nil {
		e.logger.Warn().Err(err).Str("action", event.Action).Msg("failed to produce audit event")
		return fmt.Errorf("audit: produce event: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (e *KafkaEmitter) Close() error {
	return e.writer.Close()
}
