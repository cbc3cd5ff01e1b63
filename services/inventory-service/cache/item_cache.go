package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ItemCache is a read-through cache for item snapshots. Entries are
// invalidated after every committed mutation, never updated in place.
type ItemCache interface {
	Get(ctx context.Context, id uuid.UUID) (models.InventoryItem, bool, error)
	Set(ctx context.Context, item models.InventoryItem) error
	Invalidate(ctx context.Context, id uuid.UUID) error
}

type RedisItemCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisItemCache(client *redis.Client, ttl time.Duration) *RedisItemCache {
	return &RedisItemCache{client: client, ttl: ttl}
}

// NewRedisClient connects to addr and pings it once.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func itemKey(id uuid.UUID) string {
	return fmt.Sprintf("inventory:item:%s", id)
}

func (c *RedisItemCache) Get(ctx context.Context, id uuid.UUID) (models.InventoryItem, bool, error) {
	data, err := c.client.Get(ctx, itemKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.InventoryItem{}, false, nil
	}
	if err != nil {
		return models.InventoryItem{}, false, err
	}

	var item models.InventoryItem
	if err := json.Unmarshal(data, &item); err != nil {
		// A corrupt entry is a miss; drop it so the next read repopulates.
		_ = c.client.Del(ctx, itemKey(id)).Err()
		return models.InventoryItem{}, false, nil
	}
	return item, true, nil
}

func (c *RedisItemCache) Set(ctx context.Context, item models.InventoryItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, itemKey(item.ID), data, c.ttl).Err()
}

func (c *RedisItemCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	return c.client.Del(ctx, itemKey(id)).Err()
}

// NoopItemCache always misses.
type NoopItemCache struct{}

func (NoopItemCache) Get(context.Context, uuid.UUID) (models.InventoryItem, bool, error) {
	return models.InventoryItem{}, false, nil
}
func (NoopItemCache) Set(context.Context, models.InventoryItem) error { return nil }
func (NoopItemCache) Invalidate(context.Context, uuid.UUID) error     { return nil }
