package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Config 描述缓存使用的 Redis 连接。
type Config struct {
	Address  string        `json:"address"`
	Password string        `json:"password"`
	DB       int           `json:"db"`
	Prefix   string        `json:"prefix"`
	TTL      time.Duration `json:"ttl"`
}

const (
	defaultPrefix = "dotpilot:pools:"
	defaultTTL    = time.Minute
)

// PoolCache 以链名为键缓存提名池列表的序列化结果。
type PoolCache struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewPoolCache 建立连接并检查连通性。
func NewPoolCache(ctx context.Context, cfg Config) (*PoolCache, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return NewPoolCacheWithClient(client, cfg.Prefix, cfg.TTL), nil
}

// NewPoolCacheWithClient 复用已有客户端。prefix 与 ttl 为空时使用默认值。
func NewPoolCacheWithClient(client *goredis.Client, prefix string, ttl time.Duration) *PoolCache {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &PoolCache{client: client, prefix: prefix, ttl: ttl}
}

// Key 返回链名对应的完整缓存键。
func (c *PoolCache) Key(chain string) string {
	return c.prefix + strings.ToLower(strings.TrimSpace(chain))
}

// Get 读取缓存，未命中时返回 ok=false 且 err 为 nil。
func (c *PoolCache) Get(ctx context.Context, chain string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, c.Key(chain)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("读取池缓存失败: %w", err)
	}
	return value, true, nil
}

// Set 写入缓存并设置过期时间。
func (c *PoolCache) Set(ctx context.Context, chain string, value []byte) error {
	if err := c.client.Set(ctx, c.Key(chain), value, c.ttl).Err(); err != nil {
		return fmt.Errorf("写入池缓存失败: %w", err)
	}
	return nil
}

// Delete 删除链的缓存，键不存在时不报错。
func (c *PoolCache) Delete(ctx context.Context, chain string) error {
	if err := c.client.Del(ctx, c.Key(chain)).Err(); err != nil {
		return fmt.Errorf("删除池缓存失败: %w", err)
	}
	return nil
}

// TTL 返回写入时使用的过期时间。
func (c *PoolCache) TTL() time.Duration { return c.ttl }

// Close 关闭底层客户端。
func (c *PoolCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
