package aws

import (
	"context"
	"fmt"
	"os"
	"strings"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

const defaultRegion = "us-east-1"

// LoadAWSConfig loads the default AWS config. When AWS_ENDPOINT is set
// (LocalStack and similar) every client built from the config targets it.
func LoadAWSConfig(ctx context.Context) (sdkaws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx, loadOptions(os.Getenv)...)
	if err != nil {
		return cfg, fmt.Errorf("failed to load aws config: %w", err)
	}
	if endpoint := os.Getenv("AWS_ENDPOINT"); endpoint != "" {
		cfg.BaseEndpoint = sdkaws.String(endpoint)
	}
	return cfg, nil
}

// loadOptions pins the region and, when access keys are given explicitly,
// uses them as static credentials instead of the default chain.
func loadOptions(getenv func(string) string) []func(*config.LoadOptions) error {
	region := getenv("AWS_REGION")
	if region == "" {
		region = defaultRegion
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}

	accessKey, secret := getenv("AWS_ACCESS_KEY_ID"), getenv("AWS_SECRET_ACCESS_KEY")
	if accessKey != "" || secret != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secret, getenv("AWS_SESSION_TOKEN")),
		))
	}
	return opts
}

// ServiceEndpoint returns the endpoint override for one service, read from
// AWS_<SERVICE>_ENDPOINT and falling back to AWS_ENDPOINT. Empty means the
// SDK default.
func ServiceEndpoint(service string) string {
	return serviceEndpoint(service, os.Getenv)
}

func serviceEndpoint(service string, getenv func(string) string) string {
	key := "AWS_" + strings.ToUpper(service) + "_ENDPOINT"
	if v := getenv(key); v != "" {
		return v
	}
	return getenv("AWS_ENDPOINT")
}
