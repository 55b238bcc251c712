package cache

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/agentlab/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 Manager 测试
// =============================================================================

type countingObserver struct {
	hits, misses int
}

func (o *countingObserver) RecordCacheHit(string)  { o.hits++ }
func (o *countingObserver) RecordCacheMiss(string) { o.misses++ }

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := DefaultConfig()
	cfg.Addr = mr.Addr()
	cfg.DefaultTTL = time.Minute
	cfg.HealthCheckInterval = 0

	manager, err := NewManager(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	return mr, manager
}

func TestConfigFromRedis(t *testing.T) {
	cfg := ConfigFromRedis(config.RedisConfig{Addr: "cache:6379", DB: 2, PoolSize: 0, DefaultTTL: time.Hour})
	assert.Equal(t, "cache:6379", cfg.Addr)
	assert.Equal(t, 2, cfg.DB)
	assert.Equal(t, 10, cfg.PoolSize)
	assert.Equal(t, time.Hour, cfg.DefaultTTL)
	assert.Equal(t, "agentlab:", cfg.KeyPrefix)
}

func TestNewManager_ConnectFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.MaxRetries = 0
	_, err := NewManager(cfg, nil)
	assert.Error(t, err)
}

func TestManager_SetAndGet(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "k", "v", 0))

	value, err := manager.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)

	// 键带前缀，默认 TTL 生效
	assert.True(t, mr.Exists("agentlab:k"))
	assert.Equal(t, time.Minute, mr.TTL("agentlab:k"))
}

func TestManager_Miss(t *testing.T) {
	_, manager := setupTestRedis(t)
	obs := &countingObserver{}
	manager.SetObserver(obs)

	_, err := manager.Get(context.Background(), "missing")
	assert.True(t, IsCacheMiss(err))

	require.NoError(t, manager.Set(context.Background(), "present", "1", time.Second))
	_, err = manager.Get(context.Background(), "present")
	require.NoError(t, err)

	assert.Equal(t, 1, obs.hits)
	assert.Equal(t, 1, obs.misses)
}

func TestManager_Expiry(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "short", "v", time.Second))
	mr.FastForward(2 * time.Second)

	_, err := manager.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestManager_JSON(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	type payload struct {
		Query   string   `json:"query"`
		Results []string `json:"results"`
	}
	in := payload{Query: "go", Results: []string{"a", "b"}}
	require.NoError(t, manager.SetJSON(ctx, "json", in, 0))

	var out payload
	require.NoError(t, manager.GetJSON(ctx, "json", &out))
	assert.Equal(t, in, out)

	require.NoError(t, manager.Set(ctx, "bad", "{", 0))
	assert.Error(t, manager.GetJSON(ctx, "bad", &out))
}

func TestManager_DeleteExists(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "a", "1", 0))
	require.NoError(t, manager.Set(ctx, "b", "2", 0))

	n, err := manager.Exists(ctx, "a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, manager.Delete(ctx, "a", "b"))
	require.NoError(t, manager.Delete(ctx))

	n, err = manager.Exists(ctx, "a", "b")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestManager_Closed(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Ping(ctx))
	require.NoError(t, manager.Close())
	require.NoError(t, manager.Close())

	assert.ErrorIs(t, manager.Ping(ctx), ErrClosed)
	assert.ErrorIs(t, manager.Set(ctx, "k", "v", 0), ErrClosed)
	_, err := manager.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestManager_HealthLoopStops(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := DefaultConfig()
	cfg.Addr = mr.Addr()
	cfg.HealthCheckInterval = 10 * time.Millisecond

	manager, err := NewManager(cfg, zap.NewNop())
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, manager.Close())
}
