package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"DotPilot/pkg/logger"
)

// RedisQueueConfig 描述运行队列使用的 Redis 连接。BlockWait 是单次 BRPOP 的最长阻塞时间。
type RedisQueueConfig struct {
	Address   string
	Password  string
	DB        int
	Queue     string
	BlockWait time.Duration
}

const defaultRedisQueue = "dotpilot:runs"

// RedisQueue 把运行投递保存在 Redis list 中，多实例可共享同一队列。
type RedisQueue struct {
	client *redis.Client
	queue  string
	wait   time.Duration
}

// NewRedisQueue 创建 Redis 队列实例并检查连通性。
func NewRedisQueue(ctx context.Context, cfg RedisQueueConfig) (*RedisQueue, error) {
	if cfg.Address == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return NewRedisQueueWithClient(client, cfg.Queue, cfg.BlockWait), nil
}

// NewRedisQueueWithClient 复用已有的 Redis 客户端，Close 时会一并关闭该客户端。
func NewRedisQueueWithClient(client *redis.Client, queue string, wait time.Duration) *RedisQueue {
	if queue == "" {
		queue = defaultRedisQueue
	}
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &RedisQueue{client: client, queue: queue, wait: wait}
}

// Publish 以 JSON 形式把投递压入 list 头部。
func (q *RedisQueue) Publish(ctx context.Context, d Delivery) error {
	body, err := d.encode()
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.queue, body).Err(); err != nil {
		return fmt.Errorf("Redis 投递运行 %s 失败: %w", d.RunID, err)
	}
	return nil
}

// Consume 通过 BRPOP 取出投递。处理器返回错误时原样放回队尾，
// 无法解析的消息记录日志后丢弃。
func (q *RedisQueue) Consume(ctx context.Context, workerCount int, handler Handler) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	log := logger.Named("redis_queue")
	errCh := make(chan error, workerCount)
	for range workerCount {
		go func() {
			for ctx.Err() == nil {
				values, err := q.client.BRPop(ctx, q.wait, q.queue).Result()
				switch {
				case errors.Is(err, redis.Nil):
					continue
				case err != nil:
					if ctx.Err() != nil || errors.Is(err, redis.ErrClosed) {
						errCh <- ctx.Err()
						return
					}
					errCh <- fmt.Errorf("Redis 取运行失败: %w", err)
					return
				case len(values) != 2:
					continue
				}
				raw := values[1]
				d, err := decodeDelivery([]byte(raw))
				if err != nil {
					log.Warn("丢弃无法解析的投递", slog.String("queue", q.queue), slog.Any("error", err))
					continue
				}
				if handlerErr := handler(ctx, d); handlerErr != nil {
					_ = q.client.RPush(ctx, q.queue, raw).Err()
				}
			}
			errCh <- ctx.Err()
		}()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Close 关闭 Redis 连接。
func (q *RedisQueue) Close() error {
	if q == nil || q.client == nil {
		return nil
	}
	return q.client.Close()
}
