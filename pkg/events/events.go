// Package events publishes blood request lifecycle events so downstream
// consumers (donor notifications, analytics) can react to state changes.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"blood-connect/backend/config"
)

// Event types
const (
	TypeRequestCreated    = "request.created"
	TypeRequestUpdated    = "request.updated"
	TypeRequestFulfilled  = "request.fulfilled"
	TypeRequestCancelled  = "request.cancelled"
	TypeRequestDeleted    = "request.deleted"
	TypeRequestTrimmed    = "request.trimmed"
	TypeResponseSubmitted = "response.submitted"
	TypeResponseAccepted  = "response.accepted"
	TypeResponseDeclined  = "response.declined"
)

// Event is the JSON payload written to the topic. Messages are keyed by
// request id so all events of one request land on the same partition.
type Event struct {
	Type           string    `json:"type"`
	BloodRequestID string    `json:"blood_request_id"`
	HospitalID     string    `json:"hospital_id"`
	BloodType      string    `json:"blood_type,omitempty"`
	Urgency        string    `json:"urgency,omitempty"`
	Status         string    `json:"status,omitempty"`
	DonorID        string    `json:"donor_id,omitempty"`
	ResponseID     string    `json:"response_id,omitempty"`
	Count          int       `json:"count,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Publisher delivers lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// ── Kafka ──

// KafkaPublisher writes events to a Kafka topic.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaPublisher creates a writer for cfg.Topic. No connection is made
// until the first publish.
func NewKafkaPublisher(cfg *config.EventsConfig, logger *zap.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           5 * time.Second,
		AllowAutoTopicCreation: true,
	}
	logger.Info("kafka event publisher configured",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
	)
	return &KafkaPublisher{writer: w, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	msg, err := Encode(e)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Encode builds the Kafka message for e.
func Encode(e Event) (kafka.Message, error) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(e.BloodRequestID),
		Value: value,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}, nil
}

// ── no-op ──

// NopPublisher discards events; used when publishing is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }

// New returns the publisher selected by cfg.
func New(cfg *config.EventsConfig, logger *zap.Logger) Publisher {
	if !cfg.Enabled {
		logger.Info("event publishing disabled")
		return NopPublisher{}
	}
	return NewKafkaPublisher(cfg, logger)
}
