// Package publisher delivers committed inventory events to downstream
// transports. Every sink receives the same JSON envelope.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const Source = "inventory-service"

// Sink publishes one domain event. Implementations must be safe for
// concurrent use.
type Sink interface {
	Publish(ctx context.Context, event models.DomainEvent) error
}

// Envelope is the wire form of an event.
type Envelope struct {
	EventID    uuid.UUID       `json:"event_id"`
	EventType  string          `json:"event_type"`
	ItemID     uuid.UUID       `json:"item_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Source     string          `json:"source"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEnvelope wraps event with a fresh event id.
func NewEnvelope(event models.DomainEvent) (Envelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", event.EventType(), err)
	}
	meta := event.Meta()
	return Envelope{
		EventID:    uuid.New(),
		EventType:  string(event.EventType()),
		ItemID:     meta.ItemID,
		OccurredAt: meta.OccurredAt,
		Source:     Source,
		Payload:    payload,
	}, nil
}

func marshalEnvelope(event models.DomainEvent) (Envelope, []byte, error) {
	env, err := NewEnvelope(event)
	if err != nil {
		return Envelope{}, nil, err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return Envelope{}, nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return env, body, nil
}

// FanOut publishes to every sink and joins their errors. One failing sink
// does not stop the others.
type FanOut []Sink

func (f FanOut) Publish(ctx context.Context, event models.DomainEvent) error {
	var errs error
	for _, s := range f {
		if err := s.Publish(ctx, event); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}

// LogSink writes events to the service log.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(_ context.Context, event models.DomainEvent) error {
	env, err := NewEnvelope(event)
	if err != nil {
		return err
	}
	s.logger.Info("Inventory event",
		zap.String("event_type", env.EventType),
		zap.String("event_id", env.EventID.String()),
		zap.String("item_id", env.ItemID.String()),
		zap.ByteString("payload", env.Payload))
	return nil
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, models.DomainEvent) error { return nil }
