// Package events publishes job lifecycle events to Kafka so downstream
// consumers (analytics, notification fan-out) can follow submissions and
// terminal transitions without polling the database.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Event types emitted by the submitter and reconciler.
const (
	TypeTrainingSubmitted = "job.training.submitted"
	TypeTrainingGenerated = "job.training.generated"
	TypeTrainingFailed    = "job.training.failed"
	TypeImageSubmitted    = "job.image.submitted"
	TypeImageGenerated    = "job.image.generated"
	TypeImageFailed       = "job.image.failed"
)

type event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	TrackingID string         `json:"tracking_id"`
	OwnerID    string         `json:"owner_id"`
	Data       map[string]any `json:"data,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Publisher writes lifecycle events to a Kafka topic. A nil Publisher is
// valid and drops all events, which is how deployments without a broker run.
type Publisher struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

func NewPublisher(brokers []string, topic string, logger zerolog.Logger) *Publisher {
	if len(brokers) == 0 {
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Publisher{writer: writer, logger: logger}
}

// Publish emits one event. Failures are logged, never propagated: event
// delivery must not affect the job lifecycle itself.
func (p *Publisher) Publish(ctx context.Context, eventType, trackingID, ownerID string, data map[string]any) {
	if p == nil || p.writer == nil {
		return
	}
	ev := event{
		ID:         uuid.NewString(),
		Type:       eventType,
		TrackingID: trackingID,
		OwnerID:    ownerID,
		Data:       data,
		Timestamp:  time.Now().UTC(),
	}
	value, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error().Err(err).Str("event_type", eventType).Msg("events: marshal failed")
		return
	}
	msg := kafka.Message{
		Key:   []byte(trackingID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error().Err(err).Str("event_type", eventType).Str("tracking_id", trackingID).Msg("events: publish failed")
		return
	}
	p.logger.Debug().Str("event_type", eventType).Str("tracking_id", trackingID).Msg("events: published")
}

func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
