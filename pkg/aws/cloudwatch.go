package aws

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
)

type cloudWatchLogsAPI interface {
	CreateLogGroup(ctx context.Context, params *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	PutRetentionPolicy(ctx context.Context, params *cloudwatchlogs.PutRetentionPolicyInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error)
	CreateLogStream(ctx context.Context, params *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
	PutLogEvents(ctx context.Context, params *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

// CloudWatchLogsClient ships log lines to one log stream. It is safe for
// concurrent use as a zap WriteSyncer target.
type CloudWatchLogsClient struct {
	client        cloudWatchLogsAPI
	logGroupName  string
	logStreamName string
	enabled       bool

	mu            sync.Mutex
	sequenceToken *string
}

// NewCloudWatchLogsClient creates the log group and a fresh stream named
// after serviceName when enabled.
func NewCloudWatchLogsClient(ctx context.Context, cfg aws.Config, logGroupName, serviceName string, enabled bool) (*CloudWatchLogsClient, error) {
	client := cloudwatchlogs.NewFromConfig(cfg, func(o *cloudwatchlogs.Options) {
		if ep := ServiceEndpoint("logs"); ep != "" {
			o.BaseEndpoint = aws.String(ep)
		}
	})
	return newCloudWatchLogsClient(ctx, client, logGroupName, serviceName, enabled)
}

func newCloudWatchLogsClient(ctx context.Context, client cloudWatchLogsAPI, logGroupName, serviceName string, enabled bool) (*CloudWatchLogsClient, error) {
	if logGroupName == "" {
		logGroupName = "/clothingstore/services"
	}

	cwClient := &CloudWatchLogsClient{
		client:        client,
		logGroupName:  logGroupName,
		logStreamName: fmt.Sprintf("%s-%d", serviceName, time.Now().Unix()),
		enabled:       enabled,
	}

	if enabled {
		if err := cwClient.ensureLogGroup(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure log group: %w", err)
		}
		if err := cwClient.createLogStream(ctx); err != nil {
			return nil, fmt.Errorf("failed to create log stream: %w", err)
		}
	}

	return cwClient, nil
}

func (c *CloudWatchLogsClient) ensureLogGroup(ctx context.Context) error {
	_, err := c.client.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(c.logGroupName),
	})
	if err != nil {
		var existsErr *types.ResourceAlreadyExistsException
		if !errors.As(err, &existsErr) {
			return err
		}
	}

	_, err = c.client.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
		LogGroupName:    aws.String(c.logGroupName),
		RetentionInDays: aws.Int32(30),
	})
	if err != nil {
		return fmt.Errorf("failed to set retention policy: %w", err)
	}

	return nil
}

func (c *CloudWatchLogsClient) createLogStream(ctx context.Context) error {
	_, err := c.client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(c.logGroupName),
		LogStreamName: aws.String(c.logStreamName),
	})
	return err
}

// PutLogEvents sends log events to CloudWatch Logs
func (c *CloudWatchLogsClient) PutLogEvents(ctx context.Context, events []types.InputLogEvent) error {
	if !c.enabled || len(events) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	output, err := c.client.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(c.logGroupName),
		LogStreamName: aws.String(c.logStreamName),
		LogEvents:     events,
		SequenceToken: c.sequenceToken,
	})
	if err != nil {
		return fmt.Errorf("failed to put log events: %w", err)
	}

	c.sequenceToken = output.NextSequenceToken
	return nil
}

// Write implements io.Writer. Shipping failures are reported on stderr and
// never fail the write.
func (c *CloudWatchLogsClient) Write(p []byte) (n int, err error) {
	if !c.enabled {
		return len(p), nil
	}

	event := types.InputLogEvent{
		Message:   aws.String(string(p)),
		Timestamp: aws.Int64(time.Now().UnixMilli()),
	}

	if err := c.PutLogEvents(context.Background(), []types.InputLogEvent{event}); err != nil {
		fmt.Fprintf(os.Stderr, "CloudWatch write error: %v\n", err)
	}

	return len(p), nil
}

// Sync implements zapcore.WriteSyncer; writes are unbuffered.
func (c *CloudWatchLogsClient) Sync() error { return nil }

func (c *CloudWatchLogsClient) IsEnabled() bool {
	return c.enabled
}
