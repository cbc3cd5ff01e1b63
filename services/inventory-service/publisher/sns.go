package publisher

import (
	"context"
	"fmt"

	awspkg "github.com/aredondocharro/ClothingStore-sub001/pkg/aws"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/models"
)

// SNSSink publishes envelopes to one topic. event_type is also sent as a
// message attribute for subscription filter policies.
type SNSSink struct {
	publisher awspkg.SNSPublisher
	topicArn  string
}

func NewSNSSink(publisher awspkg.SNSPublisher, topicArn string) *SNSSink {
	return &SNSSink{publisher: publisher, topicArn: topicArn}
}

func (s *SNSSink) Publish(ctx context.Context, event models.DomainEvent) error {
	env, body, err := marshalEnvelope(event)
	if err != nil {
		return err
	}
	attrs := map[string]string{"event_type": env.EventType, "source": env.Source}
	if err := s.publisher.PublishWithAttributes(ctx, s.topicArn, body, attrs); err != nil {
		return fmt.Errorf("sns sink: %w", err)
	}
	return nil
}

// MessageSender sends one message body to a queue.
type MessageSender interface {
	SendMessage(ctx context.Context, body string) error
}

// SQSSink sends envelopes straight to a queue.
type SQSSink struct {
	sender MessageSender
}

func NewSQSSink(sender MessageSender) *SQSSink {
	return &SQSSink{sender: sender}
}

func (s *SQSSink) Publish(ctx context.Context, event models.DomainEvent) error {
	_, body, err := marshalEnvelope(event)
	if err != nil {
		return err
	}
	if err := s.sender.SendMessage(ctx, string(body)); err != nil {
		return fmt.Errorf("sqs sink: %w", err)
	}
	return nil
}
