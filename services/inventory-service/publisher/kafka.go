package publisher

import (
	"context"
	"fmt"
	"time"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/models"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// MessageWriter writes one Kafka message.
type MessageWriter interface {
	WriteMessage(ctx context.Context, msg kafka.Message) error
	Close() error
}

// KafkaSink writes envelopes keyed by item id so events of one item stay
// ordered within a partition.
type KafkaSink struct {
	writer MessageWriter
}

func NewKafkaSink(writer MessageWriter) *KafkaSink {
	return &KafkaSink{writer: writer}
}

// NewTracedKafkaWriter builds a writer that injects the trace context into
// message headers.
func NewTracedKafkaWriter(brokers []string, topic, clientID string, tp trace.TracerProvider) (MessageWriter, error) {
	base := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	writer, err := otelkafka.NewWriter(base,
		otelkafka.WithTracerProvider(tp),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes(
			[]attribute.KeyValue{
				semconv.MessagingDestinationNameKey.String(topic),
				attribute.String("messaging.kafka.client_id", clientID),
			},
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka writer: %w", err)
	}
	return writer, nil
}

func (s *KafkaSink) Publish(ctx context.Context, event models.DomainEvent) error {
	env, body, err := marshalEnvelope(event)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(env.ItemID.String()),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(env.EventType)},
			{Key: "event_id", Value: []byte(env.EventID.String())},
		},
	}
	if err := s.writer.WriteMessage(ctx, msg); err != nil {
		return fmt.Errorf("kafka sink: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
