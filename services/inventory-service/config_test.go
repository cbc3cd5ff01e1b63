package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("EVENT_SINKS", "")
	t.Setenv("PORT", "")
	t.Setenv("ITEM_CACHE_TTL", "")

	cfg := configFromEnv()
	assert.Equal(t, "8084", cfg.Port)
	assert.Equal(t, StoragePostgres, cfg.StorageDriver)
	assert.Equal(t, []string{SinkLog}, cfg.EventSinks)
	assert.Equal(t, 5*time.Minute, cfg.ItemCacheTTL)
	assert.Equal(t, 100, cfg.RateLimitPerMinute)
}

func TestConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "DynamoDB")
	t.Setenv("EVENT_SINKS", " Kafka, mongo ,,")
	t.Setenv("KAFKA_BROKERS", "Broker-1:9092, broker-2:9092")
	t.Setenv("ITEM_CACHE_TTL", "90s")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("CLOUDWATCH_ENABLED", "true")

	cfg := configFromEnv()
	assert.Equal(t, StorageDynamoDB, cfg.StorageDriver)
	assert.Equal(t, []string{SinkKafka, SinkMongo}, cfg.EventSinks)
	assert.Equal(t, []string{"Broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 90*time.Second, cfg.ItemCacheTTL)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.True(t, cfg.CloudWatchEnabled)
	assert.True(t, cfg.NeedsAWS())
	assert.True(t, cfg.HasSink(SinkMongo))
	assert.False(t, cfg.HasSink(SinkSNS))
}

func TestValidate(t *testing.T) {
	valid := Config{JWTSecret: "s", StorageDriver: StorageMemory, EventSinks: []string{SinkLog}}
	require.NoError(t, valid.Validate())
	assert.False(t, valid.NeedsAWS())

	cases := map[string]func(c *Config){
		"JWT_SECRET":              func(c *Config) { c.JWTSecret = "" },
		"POSTGRES_USER":           func(c *Config) { c.StorageDriver = StoragePostgres },
		"unknown STORAGE_DRIVER":  func(c *Config) { c.StorageDriver = "sqlite" },
		"INVENTORY_SNS_TOPIC_ARN": func(c *Config) { c.EventSinks = []string{SinkSNS} },
		"KAFKA_BROKERS":           func(c *Config) { c.EventSinks = []string{SinkKafka} },
		"MONGO_URI":               func(c *Config) { c.EventSinks = []string{SinkMongo} },
		"unknown event sink":      func(c *Config) { c.EventSinks = []string{"webhook"} },
	}
	for want, mutate := range cases {
		t.Run(want, func(t *testing.T) {
			c := valid
			mutate(&c)
			assert.ErrorContains(t, c.Validate(), want)
		})
	}
}

type fakeSecrets map[string]string

func (f fakeSecrets) GetSecret(_ context.Context, name string) (string, error) {
	if v, ok := f[name]; ok {
		return v, nil
	}
	return "", errors.New("secret not found")
}

func (f fakeSecrets) GetJSONSecret(ctx context.Context, name string, out interface{}) error {
	v, err := f.GetSecret(ctx, name)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(v), out)
}

func TestApplySecrets(t *testing.T) {
	cfg := &Config{JWTSecret: "from-env"}
	cfg.Postgres.Host = "localhost"
	cfg.Postgres.User = "env-user"

	applySecrets(context.Background(), cfg, fakeSecrets{
		"inventory/JWT_SECRET":     "from-sm",
		"inventory/DB_CREDENTIALS": `{"username":"inv","password":"pw","dbname":"stock"}`,
	})
	assert.Equal(t, "from-sm", cfg.JWTSecret)
	assert.Equal(t, "inv", cfg.Postgres.User)
	assert.Equal(t, "pw", cfg.Postgres.Password)
	assert.Equal(t, "stock", cfg.Postgres.DBName)
	assert.Equal(t, "localhost", cfg.Postgres.Host)

	untouched := &Config{JWTSecret: "from-env"}
	applySecrets(context.Background(), untouched, fakeSecrets{})
	assert.Equal(t, "from-env", untouched.JWTSecret)
}
