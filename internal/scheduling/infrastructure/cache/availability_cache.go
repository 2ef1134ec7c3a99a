// Package cache holds the read-through availability cache. It is never
// consulted on the reservation path.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/queries"
)

// RedisAvailabilityCache stores slot listings per owner in a Redis hash, one
// field per queried window, so invalidating an owner is a single DEL.
type RedisAvailabilityCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisAvailabilityCache creates a cache whose entries expire after ttl.
func NewRedisAvailabilityCache(client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *RedisAvailabilityCache {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisAvailabilityCache{client: client, ttl: ttl, logger: logger}
}

func ownerKey(ownerID int64) string {
	return fmt.Sprintf("slotwise:availability:%d", ownerID)
}

func windowField(from, to time.Time) string {
	return fmt.Sprintf("%d:%d", from.Unix(), to.Unix())
}

// Get returns a cached listing. A miss is reported with ok=false.
func (c *RedisAvailabilityCache) Get(ctx context.Context, ownerID int64, from, to time.Time) ([]queries.SlotView, bool, error) {
	raw, err := c.client.HGet(ctx, ownerKey(ownerID), windowField(from, to)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("availability cache get: %w", err)
	}

	var views []queries.SlotView
	if err := json.Unmarshal(raw, &views); err != nil {
		// A corrupt entry is treated as a miss and dropped.
		c.logger.Warn("dropping unreadable availability cache entry", "owner_id", ownerID, "error", err)
		_ = c.client.HDel(ctx, ownerKey(ownerID), windowField(from, to)).Err()
		return nil, false, nil
	}
	return views, true, nil
}

// Set stores a listing and refreshes the owner's expiry.
func (c *RedisAvailabilityCache) Set(ctx context.Context, ownerID int64, from, to time.Time, views []queries.SlotView) error {
	raw, err := json.Marshal(views)
	if err != nil {
		return fmt.Errorf("availability cache encode: %w", err)
	}

	key := ownerKey(ownerID)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, windowField(from, to), raw)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("availability cache set: %w", err)
	}
	return nil
}

// Invalidate drops every cached window of the owner.
func (c *RedisAvailabilityCache) Invalidate(ctx context.Context, ownerID int64) error {
	if err := c.client.Del(ctx, ownerKey(ownerID)).Err(); err != nil {
		return fmt.Errorf("availability cache invalidate: %w", err)
	}
	return nil
}
