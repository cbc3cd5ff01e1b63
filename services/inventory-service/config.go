package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	awspkg "github.com/aredondocharro/ClothingStore-sub001/pkg/aws"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/database"
	"github.com/joho/godotenv"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageDynamoDB = "dynamodb"

	SinkLog   = "log"
	SinkSNS   = "sns"
	SinkSQS   = "sqs"
	SinkKafka = "kafka"
	SinkMongo = "mongo"
)

// Config holds all configuration for the inventory-service.
type Config struct {
	Port      string // Service port (default: 8084)
	Env       string
	JWTSecret string

	StorageDriver string
	Postgres      database.PostgresConfig
	DDBTable      string // DynamoDB table name for inventory
	DDBEndpoint   string

	RedisAddr     string // empty disables the item cache
	RedisPassword string
	RedisDB       int
	ItemCacheTTL  time.Duration

	EventSinks     []string
	SNSTopicArn    string
	EventsQueueURL string
	KafkaBrokers   []string
	KafkaTopic     string
	MongoURI       string
	MongoDatabase  string

	OrderEventsQueueURL string // empty disables the consumer

	OtelEndpoint   string
	OtelAuthHeader string
	OtelInsecure   bool

	AllowedOrigins     string
	RateLimitPerMinute int
	CloudWatchEnabled  bool
	MetricsEnabled     bool
	UseSecrets         bool
}

// secretSource is satisfied by *awspkg.SecretsClient.
type secretSource interface {
	GetSecret(ctx context.Context, name string) (string, error)
	GetJSONSecret(ctx context.Context, name string, out interface{}) error
}

// dbCredentials is the JSON layout of the inventory/DB_CREDENTIALS secret.
type dbCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	DBName   string `json:"dbname"`
}

// LoadConfig loads environment variables into Config struct.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()
	cfg := configFromEnv()

	if cfg.UseSecrets {
		awsCfg, err := awspkg.LoadAWSConfig(context.Background())
		if err != nil {
			return nil, fmt.Errorf("load aws config for secrets: %w", err)
		}
		applySecrets(context.Background(), cfg, awspkg.NewSecretsClient(awsCfg))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configFromEnv() *Config {
	return &Config{
		Port:      getEnv("PORT", "8084"),
		Env:       getEnv("APP_ENV", "development"),
		JWTSecret: os.Getenv("JWT_SECRET"),

		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", StoragePostgres)),
		Postgres: database.PostgresConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DBName:   getEnv("POSTGRES_DB", "inventory"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			TimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),
		},
		DDBTable:    getEnv("DDB_TABLE_INVENTORY", "Inventory"),
		DDBEndpoint: os.Getenv("DYNAMODB_ENDPOINT"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		ItemCacheTTL:  getEnvDuration("ITEM_CACHE_TTL", 5*time.Minute),

		EventSinks:     splitList(strings.ToLower(getEnv("EVENT_SINKS", SinkLog))),
		SNSTopicArn:    os.Getenv("INVENTORY_SNS_TOPIC_ARN"),
		EventsQueueURL: os.Getenv("INVENTORY_EVENTS_QUEUE_URL"),
		KafkaBrokers:   splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:     getEnv("KAFKA_INVENTORY_TOPIC", "inventory-events"),
		MongoURI:       os.Getenv("MONGO_URI"),
		MongoDatabase:  getEnv("MONGO_DATABASE", "inventory"),

		OrderEventsQueueURL: os.Getenv("ORDER_EVENTS_QUEUE_URL"),

		OtelEndpoint:   os.Getenv("OTEL_ENDPOINT"),
		OtelAuthHeader: os.Getenv("OTEL_AUTH_HEADER"),
		OtelInsecure:   getEnvBool("OTEL_INSECURE", false),

		AllowedOrigins:     os.Getenv("ALLOWED_ORIGINS"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 100),
		CloudWatchEnabled:  getEnvBool("CLOUDWATCH_ENABLED", false),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", false),
		UseSecrets:         getEnvBool("AWS_USE_SECRETS", false),
	}
}

// applySecrets overrides values found in Secrets Manager. Missing secrets
// keep the environment values.
func applySecrets(ctx context.Context, cfg *Config, sm secretSource) {
	if jwt, err := sm.GetSecret(ctx, "inventory/JWT_SECRET"); err == nil && jwt != "" {
		cfg.JWTSecret = jwt
	}
	var creds dbCredentials
	if err := sm.GetJSONSecret(ctx, "inventory/DB_CREDENTIALS", &creds); err == nil {
		if creds.Username != "" {
			cfg.Postgres.User = creds.Username
		}
		if creds.Password != "" {
			cfg.Postgres.Password = creds.Password
		}
		if creds.Host != "" {
			cfg.Postgres.Host = creds.Host
		}
		if creds.Port != "" {
			cfg.Postgres.Port = creds.Port
		}
		if creds.DBName != "" {
			cfg.Postgres.DBName = creds.DBName
		}
	}
}

// HasSink reports whether name is listed in EVENT_SINKS.
func (c *Config) HasSink(name string) bool {
	for _, s := range c.EventSinks {
		if s == name {
			return true
		}
	}
	return false
}

// Validate checks that every enabled component has what it needs.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}

	switch c.StorageDriver {
	case StorageMemory, StorageDynamoDB:
	case StoragePostgres:
		if c.Postgres.User == "" || c.Postgres.Password == "" {
			errs = append(errs, errors.New("POSTGRES_USER and POSTGRES_PASSWORD are required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}

	for _, s := range c.EventSinks {
		switch s {
		case SinkLog:
		case SinkSNS:
			if c.SNSTopicArn == "" {
				errs = append(errs, errors.New("INVENTORY_SNS_TOPIC_ARN is required for the sns sink"))
			}
		case SinkSQS:
			if c.EventsQueueURL == "" {
				errs = append(errs, errors.New("INVENTORY_EVENTS_QUEUE_URL is required for the sqs sink"))
			}
		case SinkKafka:
			if len(c.KafkaBrokers) == 0 {
				errs = append(errs, errors.New("KAFKA_BROKERS is required for the kafka sink"))
			}
		case SinkMongo:
			if c.MongoURI == "" {
				errs = append(errs, errors.New("MONGO_URI is required for the mongo sink"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown event sink %q", s))
		}
	}
	return errors.Join(errs...)
}

// NeedsAWS reports whether any enabled component talks to AWS.
func (c *Config) NeedsAWS() bool {
	return c.StorageDriver == StorageDynamoDB || c.HasSink(SinkSNS) || c.HasSink(SinkSQS) ||
		c.OrderEventsQueueURL != "" || c.CloudWatchEnabled || c.MetricsEnabled
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
