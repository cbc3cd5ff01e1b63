package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// NewClientFromConfig returns a DynamoDB client. A non-empty endpoint
// overrides the SDK default, e.g. for DynamoDB Local.
func NewClientFromConfig(cfg sdkaws.Config, endpoint string) *dynamodb.Client {
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = sdkaws.String(endpoint)
		}
	})
}

// TableAPI is the subset of the client needed to provision a table.
type TableAPI interface {
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// CreateTableIfNotExists creates an on-demand table keyed by string
// attributes "pk" (hash) and "sk" (range) and waits until it is active.
func CreateTableIfNotExists(ctx context.Context, client TableAPI, table string, wait time.Duration) error {
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: sdkaws.String(table)})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("describe table %s: %w", table, err)
	}

	_, err = client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   sdkaws.String(table),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: sdkaws.String("pk"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: sdkaws.String("sk"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: sdkaws.String("pk"), KeyType: types.KeyTypeHash},
			{AttributeName: sdkaws.String("sk"), KeyType: types.KeyTypeRange},
		},
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			return nil
		}
		return fmt.Errorf("create table %s: %w", table, err)
	}
	if wait <= 0 {
		return nil
	}

	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: sdkaws.String(table)}, wait); err != nil {
		return fmt.Errorf("wait for table %s: %w", table, err)
	}
	return nil
}
