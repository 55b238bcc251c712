package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/BaSui01/agentlab/internal/cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ResultCache 工具结果缓存（cache.Manager 实现了该接口）
type ResultCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// CacheOption 配置 CachedTool
type CacheOption func(*cachedTool)

// WithCacheFilter 只缓存 keep 返回 true 的结果（例如排除降级说明文本）
func WithCacheFilter(keep func(json.RawMessage) bool) CacheOption {
	return func(c *cachedTool) { c.keep = keep }
}

// WithCacheLogger 设置日志
func WithCacheLogger(logger *zap.Logger) CacheOption {
	return func(c *cachedTool) {
		if logger != nil {
			c.logger = logger
		}
	}
}

type cachedTool struct {
	name   string
	fn     ToolFunc
	store  ResultCache
	ttl    time.Duration
	keep   func(json.RawMessage) bool
	group  singleflight.Group
	logger *zap.Logger
}

// CachedTool 用缓存包装 fn：键为工具名 + 规范化参数的哈希。
// 并发的相同调用经 singleflight 合并；缓存读写失败时直接执行 fn。
func CachedTool(name string, fn ToolFunc, store ResultCache, ttl time.Duration, opts ...CacheOption) ToolFunc {
	if store == nil {
		return fn
	}
	c := &cachedTool{name: name, fn: fn, store: store, ttl: ttl, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c.call
}

func (c *cachedTool) call(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	key := CacheKey(c.name, args)

	if val, err := c.store.Get(ctx, key); err == nil {
		return json.RawMessage(val), nil
	} else if !cache.IsCacheMiss(err) {
		c.logger.Debug("tool cache unavailable", zap.String("tool", c.name), zap.Error(err))
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		res, err := c.fn(ctx, args)
		if err != nil {
			return nil, err
		}
		if c.keep == nil || c.keep(res) {
			if err := c.store.Set(ctx, key, string(res), c.ttl); err != nil {
				c.logger.Debug("tool cache write failed", zap.String("tool", c.name), zap.Error(err))
			}
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("tool call shared", zap.String("tool", c.name))
	}
	return v.(json.RawMessage), nil
}

// CacheKey 返回 "tool:<name>:<sha256(规范化参数)>"
func CacheKey(name string, args json.RawMessage) string {
	canonical := []byte(args)
	var v any
	if err := json.Unmarshal(args, &v); err == nil {
		if b, err := json.Marshal(v); err == nil {
			canonical = b
		}
	}
	sum := sha256.Sum256(canonical)
	return "tool:" + name + ":" + hex.EncodeToString(sum[:16])
}
