package aws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"
)

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	SendMessageBatch(ctx context.Context, params *sqs.SendMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error)
}

// SQSClient sends to and consumes from a single SQS queue.
type SQSClient struct {
	client   sqsAPI
	queueURL string
	logger   *zap.Logger
}

func NewSQSClient(cfg aws.Config, queueURL string, logger *zap.Logger) *SQSClient {
	client := sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if ep := ServiceEndpoint("sqs"); ep != "" {
			o.BaseEndpoint = aws.String(ep)
		}
	})
	return &SQSClient{client: client, queueURL: queueURL, logger: logger}
}

// MessageHandler processes one message body. A returned error leaves the
// message on the queue so it is redelivered after the visibility timeout.
type MessageHandler func(ctx context.Context, body string) error

// StartPolling polls the queue until ctx is cancelled.
func (c *SQSClient) StartPolling(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("Starting SQS polling", zap.String("queue_url", c.queueURL))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("SQS polling stopped")
			return ctx.Err()
		default:
			if err := c.pollOnce(ctx, handler); err != nil {
				if errors.Is(err, context.Canceled) {
					continue
				}
				c.logger.Error("Error polling SQS", zap.Error(err))
				select {
				case <-ctx.Done():
				case <-time.After(time.Second):
				}
			}
		}
	}
}

func (c *SQSClient) pollOnce(ctx context.Context, handler MessageHandler) error {
	result, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            &c.queueURL,
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     20, // Long polling
		VisibilityTimeout:   30,
	})
	if err != nil {
		return fmt.Errorf("failed to receive messages: %w", err)
	}

	for _, msg := range result.Messages {
		if msg.Body == nil {
			continue
		}

		if err := handler(ctx, *msg.Body); err != nil {
			c.logger.Warn("Failed to process message",
				zap.String("message_id", aws.ToString(msg.MessageId)),
				zap.Error(err))
			continue
		}

		if _, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      &c.queueURL,
			ReceiptHandle: msg.ReceiptHandle,
		}); err != nil {
			c.logger.Error("Failed to delete message", zap.Error(err))
		}
	}

	return nil
}

// GetQueueURL retrieves the URL for a queue name
func GetQueueURL(ctx context.Context, cfg aws.Config, queueName string) (string, error) {
	client := sqs.NewFromConfig(cfg)
	result, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: &queueName,
	})
	if err != nil {
		return "", fmt.Errorf("failed to get queue URL: %w", err)
	}
	return *result.QueueUrl, nil
}

// SendMessage sends a single message to the queue
func (c *SQSClient) SendMessage(ctx context.Context, body string) error {
	_, err := c.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &c.queueURL,
		MessageBody: &body,
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendMessageBatch sends messages in batches of ten.
func (c *SQSClient) SendMessageBatch(ctx context.Context, messages []string) error {
	for i := 0; i < len(messages); i += 10 {
		end := i + 10
		if end > len(messages) {
			end = len(messages)
		}

		var entries []types.SendMessageBatchRequestEntry
		for j, msg := range messages[i:end] {
			entries = append(entries, types.SendMessageBatchRequestEntry{
				Id:          aws.String(fmt.Sprintf("msg-%d", j)),
				MessageBody: aws.String(msg),
			})
		}

		out, err := c.client.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
			QueueUrl: &c.queueURL,
			Entries:  entries,
		})
		if err != nil {
			return fmt.Errorf("failed to send batch: %w", err)
		}
		if len(out.Failed) > 0 {
			return fmt.Errorf("failed to send %d of %d messages: %s", len(out.Failed), len(entries), aws.ToString(out.Failed[0].Message))
		}
	}

	return nil
}
