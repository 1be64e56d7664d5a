// Package cache keeps per-site status summaries in Redis.
//
// Entries are JSON under baes:summary:site:<id> with a short TTL.
// Writers of statuses and of the site structure invalidate them, and
// the TTL bounds staleness when an invalidation is missed.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/baes-monitor/baes-core/internal/infrastructure/config"
)

// KeyPrefix prefixes every summary key.
const KeyPrefix = "baes:summary:site:"

const (
	defaultTTL  = 30 * time.Second
	pingTimeout = 5 * time.Second
	scanBatch   = 100
)

// SummaryCache is a read-through cache for site summaries.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// Connect opens a Redis client from cfg and pings it.
func Connect(cfg config.RedisConfig) (*SummaryCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck
		return nil, fmt.Errorf("cache: ping %s: %w", cfg.Addr, err)
	}
	return New(client, cfg.SummaryTTLDuration()), nil
}

// New wraps an existing client. A non-positive ttl selects 30s.
func New(client *redis.Client, ttl time.Duration) *SummaryCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &SummaryCache{client: client, ttl: ttl}
}

func key(siteID int64) string {
	return KeyPrefix + strconv.FormatInt(siteID, 10)
}

// Load decodes the cached summary for siteID into dst.
// It reports false on a miss.
func (c *SummaryCache) Load(ctx context.Context, siteID int64, dst any) (bool, error) {
	raw, err := c.client.Get(ctx, key(siteID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache: get site %d: %w", siteID, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("cache: decode site %d: %w", siteID, err)
	}
	return true, nil
}

// Store caches v for siteID.
func (c *SummaryCache) Store(ctx context.Context, siteID int64, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encode site %d: %w", siteID, err)
	}
	if err := c.client.Set(ctx, key(siteID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set site %d: %w", siteID, err)
	}
	return nil
}

// Invalidate drops the entry for siteID.
func (c *SummaryCache) Invalidate(ctx context.Context, siteID int64) error {
	if err := c.client.Del(ctx, key(siteID)).Err(); err != nil {
		return fmt.Errorf("cache: del site %d: %w", siteID, err)
	}
	return nil
}

// InvalidateAll drops every summary entry. Used after structural changes
// that can move devices between sites.
func (c *SummaryCache) InvalidateAll(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, KeyPrefix+"*", scanBatch).Result()
		if err != nil {
			return fmt.Errorf("cache: scan: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("cache: del: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// HealthCheck pings Redis.
func (c *SummaryCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the client.
func (c *SummaryCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
