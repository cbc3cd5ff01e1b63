package aws

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type cloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// MetricsClient wraps AWS CloudWatch Metrics operations. A disabled client
// accepts every call and sends nothing.
type MetricsClient struct {
	client    cloudWatchAPI
	namespace string
	enabled   bool
	now       func() time.Time
}

// NewMetricsClient creates a CloudWatch Metrics client for namespace.
func NewMetricsClient(cfg aws.Config, namespace string, enabled bool) *MetricsClient {
	if namespace == "" {
		namespace = "ClothingStore"
	}
	client := cloudwatch.NewFromConfig(cfg, func(o *cloudwatch.Options) {
		if ep := ServiceEndpoint("cloudwatch"); ep != "" {
			o.BaseEndpoint = aws.String(ep)
		}
	})
	return &MetricsClient{client: client, namespace: namespace, enabled: enabled, now: time.Now}
}

// PutMetric sends a single metric data point to CloudWatch
func (m *MetricsClient) PutMetric(ctx context.Context, metricName string, value float64, unit types.StandardUnit, dimensions map[string]string) error {
	if !m.enabled {
		return nil
	}

	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []types.MetricDatum{
			{
				MetricName: aws.String(metricName),
				Value:      aws.Float64(value),
				Unit:       unit,
				Timestamp:  aws.Time(m.now()),
				Dimensions: toDimensions(dimensions),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to put metric: %w", err)
	}
	return nil
}

// toDimensions orders dimensions by name so identical maps produce
// identical requests.
func toDimensions(dimensions map[string]string) []types.Dimension {
	names := make([]string, 0, len(dimensions))
	for k := range dimensions {
		names = append(names, k)
	}
	sort.Strings(names)
	dims := make([]types.Dimension, 0, len(names))
	for _, k := range names {
		dims = append(dims, types.Dimension{Name: aws.String(k), Value: aws.String(dimensions[k])})
	}
	return dims
}

// PutMetricBatch sends multiple metric data points to CloudWatch
func (m *MetricsClient) PutMetricBatch(ctx context.Context, metrics []types.MetricDatum) error {
	if !m.enabled || len(metrics) == 0 {
		return nil
	}

	batchSize := 20
	for i := 0; i < len(metrics); i += batchSize {
		end := i + batchSize
		if end > len(metrics) {
			end = len(metrics)
		}

		_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(m.namespace),
			MetricData: metrics[i:end],
		})
		if err != nil {
			return fmt.Errorf("failed to put metric batch: %w", err)
		}
	}

	return nil
}

// RecordCount increments a counter metric
func (m *MetricsClient) RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error {
	return m.PutMetric(ctx, metricName, 1, types.StandardUnitCount, dimensions)
}

// RecordLatency records a latency/duration metric in milliseconds
func (m *MetricsClient) RecordLatency(ctx context.Context, metricName string, duration time.Duration, dimensions map[string]string) error {
	return m.PutMetric(ctx, metricName, float64(duration.Milliseconds()), types.StandardUnitMilliseconds, dimensions)
}

// RecordValue records a generic value metric
func (m *MetricsClient) RecordValue(ctx context.Context, metricName string, value float64, dimensions map[string]string) error {
	return m.PutMetric(ctx, metricName, value, types.StandardUnitNone, dimensions)
}

func (m *MetricsClient) IsEnabled() bool {
	return m.enabled
}

// Common metric names for standardization
const (
	// HTTP metrics
	MetricHTTPRequests = "HTTPRequests"
	MetricHTTPErrors   = "HTTPErrors"
	MetricHTTPLatency  = "HTTPLatency"
	MetricHTTP4xx      = "HTTP4xxErrors"
	MetricHTTP5xx      = "HTTP5xxErrors"

	// Inventory metrics
	MetricItemsCreated       = "InventoryItemsCreated"
	MetricItemsDiscontinued  = "InventoryItemsDiscontinued"
	MetricStockAdjusted      = "InventoryStockAdjusted"
	MetricInventoryReserved  = "InventoryReserved"
	MetricInventoryReleased  = "InventoryReleased"
	MetricInventoryConsumed  = "InventoryConsumed"
	MetricInventoryLow       = "InventoryLowStock"
	MetricInventoryConflicts = "InventoryConcurrencyConflicts"

	// System metrics
	MetricDatabaseLatency = "DatabaseLatency"
	MetricCacheHits       = "CacheHits"
	MetricCacheMisses     = "CacheMisses"
	MetricSQSMessages     = "SQSMessagesProcessed"
)
