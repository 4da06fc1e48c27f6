package cache

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/agentswarm/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := DefaultConfig()
	cfg.Addr = mr.Addr()
	cfg.DefaultTTL = time.Minute
	cfg.HealthCheckInterval = 0

	m, err := NewManager(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return mr, m
}

func TestManager_SetGet(t *testing.T) {
	mr, m := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", "v", 0))
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
	assert.Equal(t, time.Minute, mr.TTL("k"))

	_, err = m.Get(ctx, "missing")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_TTLExpiry(t *testing.T) {
	mr, m := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "short", "v", 10*time.Second))
	mr.FastForward(11 * time.Second)
	_, err := m.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestManager_JSON(t *testing.T) {
	_, m := setupTestRedis(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	require.NoError(t, m.SetJSON(ctx, "p", payload{Name: "a", Count: 2}, 0))

	var out payload
	require.NoError(t, m.GetJSON(ctx, "p", &out))
	assert.Equal(t, payload{Name: "a", Count: 2}, out)

	require.NoError(t, m.Set(ctx, "bad", "{", 0))
	assert.ErrorContains(t, m.GetJSON(ctx, "bad", &out), "unmarshal")
}

func TestManager_Delete(t *testing.T) {
	_, m := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", "1", 0))
	require.NoError(t, m.Set(ctx, "b", "2", 0))
	require.NoError(t, m.Delete(ctx, "a", "b"))
	require.NoError(t, m.Delete(ctx))

	_, err := m.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestManager_ClientSharesConnection(t *testing.T) {
	mr, m := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, m.Client().RPush(ctx, "list", "x", "y").Err())
	items, err := mr.List("list")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, items)
}

func TestManager_Close(t *testing.T) {
	_, m := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Ping(ctx), ErrClosed)
	assert.ErrorIs(t, m.Set(ctx, "k", "v", 0), ErrClosed)
	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNewManager_Unreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.MaxRetries = -1
	_, err := NewManager(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "failed to connect to redis")
}

func TestFromRedisConfig(t *testing.T) {
	c := FromRedisConfig(config.RedisConfig{Addr: "redis:6379", Password: "pw", DB: 2})
	assert.Equal(t, "redis:6379", c.Addr)
	assert.Equal(t, "pw", c.Password)
	assert.Equal(t, 2, c.DB)
	assert.Equal(t, DefaultConfig().PoolSize, c.PoolSize)

	c = FromRedisConfig(config.RedisConfig{Addr: "x", PoolSize: 50, MinIdleConns: 7})
	assert.Equal(t, 50, c.PoolSize)
	assert.Equal(t, 7, c.MinIdleConns)
}
