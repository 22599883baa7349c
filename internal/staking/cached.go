package staking

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"sync"

	"DotPilot/pkg/logger"
)

// PoolCache 保存序列化后的池列表，由 storage/redis.PoolCache 实现。
type PoolCache interface {
	Get(ctx context.Context, chain string) ([]byte, bool, error)
	Set(ctx context.Context, chain string, value []byte) error
	Delete(ctx context.Context, chain string) error
}

// CachedBackend 为 ListPools 增加缓存，交易成功后清除对应链的缓存。
// 缓存故障只记录日志，调用回落到底层后端。
type CachedBackend struct {
	Backend
	cache  PoolCache
	logger *slog.Logger

	mu    sync.RWMutex
	ready map[string]bool
}

// NewCachedBackend 包装 backend；cache 为 nil 时不做缓存。
func NewCachedBackend(backend Backend, cache PoolCache) *CachedBackend {
	return &CachedBackend{
		Backend: backend,
		cache:   cache,
		logger:  logger.Named("staking.cache"),
		ready:   make(map[string]bool),
	}
}

// EnsureAPI 初始化底层链连接并记录已就绪的链。
func (c *CachedBackend) EnsureAPI(ctx context.Context, chain string) error {
	if err := c.Backend.EnsureAPI(ctx, chain); err != nil {
		return err
	}
	c.mu.Lock()
	c.ready[chain] = true
	c.mu.Unlock()
	return nil
}

// ListPools 优先读取缓存。未初始化的链即使缓存命中也返回 ErrChainNotInitialized。
func (c *CachedBackend) ListPools(ctx context.Context, chain string) ([]Pool, error) {
	if c.cache == nil {
		return c.Backend.ListPools(ctx, chain)
	}
	c.mu.RLock()
	ready := c.ready[chain]
	c.mu.RUnlock()
	if !ready {
		return nil, ErrChainNotInitialized
	}

	data, hit, err := c.cache.Get(ctx, chain)
	switch {
	case err != nil:
		c.logger.Warn("读取池缓存失败", slog.String("chain", chain), slog.Any("error", err))
	case hit:
		var pools []Pool
		if err := json.Unmarshal(data, &pools); err == nil {
			return pools, nil
		}
		c.logger.Warn("池缓存内容损坏，重新查询", slog.String("chain", chain))
	}

	pools, err := c.Backend.ListPools(ctx, chain)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(pools)
	if err == nil {
		err = c.cache.Set(ctx, chain, encoded)
	}
	if err != nil {
		c.logger.Warn("写入池缓存失败", slog.String("chain", chain), slog.Any("error", err))
	}
	return pools, nil
}

// JoinPool 调用底层后端并使缓存失效。
func (c *CachedBackend) JoinPool(ctx context.Context, chain string, poolID uint32, amount *big.Int) (TxResult, error) {
	return c.invalidate(ctx, chain)(c.Backend.JoinPool(ctx, chain, poolID, amount))
}

// BondExtra 调用底层后端并使缓存失效。
func (c *CachedBackend) BondExtra(ctx context.Context, chain string, amount *big.Int) (TxResult, error) {
	return c.invalidate(ctx, chain)(c.Backend.BondExtra(ctx, chain, amount))
}

// Unbond 调用底层后端并使缓存失效。
func (c *CachedBackend) Unbond(ctx context.Context, chain string, amount *big.Int) (TxResult, error) {
	return c.invalidate(ctx, chain)(c.Backend.Unbond(ctx, chain, amount))
}

// WithdrawUnbonded 调用底层后端并使缓存失效。
func (c *CachedBackend) WithdrawUnbonded(ctx context.Context, chain string) (TxResult, error) {
	return c.invalidate(ctx, chain)(c.Backend.WithdrawUnbonded(ctx, chain))
}

func (c *CachedBackend) invalidate(ctx context.Context, chain string) func(TxResult, error) (TxResult, error) {
	return func(res TxResult, err error) (TxResult, error) {
		if err != nil || c.cache == nil {
			return res, err
		}
		if delErr := c.cache.Delete(ctx, chain); delErr != nil {
			c.logger.Warn("清除池缓存失败", slog.String("chain", chain), slog.Any("error", delErr))
		}
		return res, nil
	}
}
