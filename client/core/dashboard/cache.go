package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/weisyn/esg-registry/client/core/config"
	"github.com/weisyn/esg-registry/client/core/registry"
)

// Cache 看板读缓存
//
// 读失败按未命中处理，写失败只影响性能。
type Cache interface {
	Get(ctx context.Context, key string) (*registry.Report, bool)
	Set(ctx context.Context, key string, report *registry.Report) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// CacheKey chainID:contract:owner:kpi:year，地址统一小写
func CacheKey(chainID uint64, contract, owner common.Address, kpiTypeID fmt.Stringer, year uint16) string {
	return strings.ToLower(fmt.Sprintf("%d:%s:%s:%s:%d", chainID, contract.Hex(), owner.Hex(), kpiTypeID.String(), year))
}

// NewCache 按配置选择缓存实现
//
// 配置 redis_addr 时使用 Redis，否则使用进程内 bigcache。
func NewCache(ctx context.Context, cfg config.CacheConfig) (Cache, error) {
	if cfg.Disabled {
		return NoopCache{}, nil
	}
	ttl := cfg.TTL.Std()
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("连接 Redis %s 失败: %w", cfg.RedisAddr, err)
		}
		return NewRedisCache(&goRedisClient{client: client}, "esg:dashboard:", ttl), nil
	}
	return NewBigCache(ctx, ttl)
}

// ==================== 进程内缓存 ====================

// BigCache 基于 bigcache 的进程内缓存
type BigCache struct {
	cache *bigcache.BigCache
}

// NewBigCache 创建进程内缓存
func NewBigCache(ctx context.Context, ttl time.Duration) (*BigCache, error) {
	cfg := bigcache.DefaultConfig(ttl)
	cfg.Shards = 64
	cfg.MaxEntrySize = 512
	cfg.CleanWindow = ttl
	cfg.Verbose = false

	cache, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("创建BigCache实例失败: %w", err)
	}
	return &BigCache{cache: cache}, nil
}

func (c *BigCache) Get(ctx context.Context, key string) (*registry.Report, bool) {
	data, err := c.cache.Get(key)
	if err != nil {
		return nil, false
	}
	var r registry.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, false
	}
	return &r, true
}

func (c *BigCache) Set(ctx context.Context, key string, report *registry.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return c.cache.Set(key, data)
}

func (c *BigCache) Delete(ctx context.Context, key string) error {
	if err := c.cache.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		return err
	}
	return nil
}

func (c *BigCache) Close() error {
	return c.cache.Close()
}

// ==================== Redis 缓存 ====================

// redisClient Redis 客户端接口（用于依赖注入和测试）
type redisClient interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Close() error
}

// goRedisClient go-redis 适配
type goRedisClient struct {
	client *redis.Client
}

func (c *goRedisClient) Get(ctx context.Context, key string) ([]byte, error) {
	return c.client.Get(ctx, key).Bytes()
}

func (c *goRedisClient) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

func (c *goRedisClient) Del(ctx context.Context, keys ...string) error {
	return c.client.Del(ctx, keys...).Err()
}

func (c *goRedisClient) Close() error {
	return c.client.Close()
}

// RedisCache 多个服务实例共享的缓存
type RedisCache struct {
	client    redisClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisCache 创建 Redis 缓存
func NewRedisCache(client redisClient, keyPrefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*registry.Report, bool) {
	data, err := c.client.Get(ctx, c.keyPrefix+key)
	if err != nil {
		return nil, false
	}
	var r registry.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, false
	}
	return &r, true
}

func (c *RedisCache) Set(ctx context.Context, key string, report *registry.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.keyPrefix+key, data, c.ttl)
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	err := c.client.Del(ctx, c.keyPrefix+key)
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// ==================== 空缓存 ====================

// NoopCache 不缓存
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*registry.Report, bool) { return nil, false }
func (NoopCache) Set(context.Context, string, *registry.Report) error  { return nil }
func (NoopCache) Delete(context.Context, string) error                 { return nil }
func (NoopCache) Close() error                                         { return nil }

var (
	_ Cache = (*BigCache)(nil)
	_ Cache = (*RedisCache)(nil)
	_ Cache = NoopCache{}
)
