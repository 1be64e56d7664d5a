package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baes-monitor/baes-core/internal/infrastructure/config"
)

type summary struct {
	OK      int `json:"ok"`
	Unknown int `json:"unknown"`
}

func setupCache(t *testing.T) (*miniredis.Miniredis, *SummaryCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() }) //nolint:errcheck
	return mr, New(client, time.Minute)
}

func TestSummaryCache_LoadMiss(t *testing.T) {
	_, c := setupCache(t)

	var got summary
	hit, err := c.Load(context.Background(), 1, &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestSummaryCache_StoreLoad(t *testing.T) {
	mr, c := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.Store(ctx, 7, summary{OK: 3, Unknown: 1}))
	assert.True(t, mr.Exists("baes:summary:site:7"))

	var got summary
	hit, err := c.Load(ctx, 7, &got)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, summary{OK: 3, Unknown: 1}, got)

	mr.FastForward(2 * time.Minute)
	hit, err = c.Load(ctx, 7, &got)
	require.NoError(t, err)
	assert.False(t, hit, "entry should expire after the TTL")
}

func TestSummaryCache_Invalidate(t *testing.T) {
	mr, c := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.Store(ctx, 1, summary{OK: 1}))
	require.NoError(t, c.Store(ctx, 2, summary{OK: 2}))
	require.NoError(t, mr.Set("unrelated", "keep"))

	require.NoError(t, c.Invalidate(ctx, 1))
	assert.False(t, mr.Exists("baes:summary:site:1"))
	assert.True(t, mr.Exists("baes:summary:site:2"))

	require.NoError(t, c.InvalidateAll(ctx))
	assert.False(t, mr.Exists("baes:summary:site:2"))
	assert.True(t, mr.Exists("unrelated"))
}

func TestSummaryCache_CorruptEntry(t *testing.T) {
	mr, c := setupCache(t)
	require.NoError(t, mr.Set("baes:summary:site:3", "not-json"))

	var got summary
	_, err := c.Load(context.Background(), 3, &got)
	assert.Error(t, err)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := Connect(config.RedisConfig{Enabled: true, Addr: mr.Addr(), SummaryTTL: 5})
	require.NoError(t, err)
	defer c.Close() //nolint:errcheck

	assert.Equal(t, 5*time.Second, c.ttl)
	assert.NoError(t, c.HealthCheck(context.Background()))

	mr.Close()
	_, err = Connect(config.RedisConfig{Enabled: true, Addr: mr.Addr()})
	assert.Error(t, err)
}
