package task

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// MemoryQueue 是进程内的运行队列，投递直接以结构体形式经过 channel。
type MemoryQueue struct {
	mu        sync.RWMutex
	deliverCh chan Delivery
	closed    bool
}

// NewMemoryQueue 创建容量为 size 的内存队列，size 非正时取 64。
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 64
	}
	return &MemoryQueue{deliverCh: make(chan Delivery, size)}
}

// Publish 投递一次运行；队列已满时阻塞直到 ctx 结束。
func (q *MemoryQueue) Publish(ctx context.Context, d Delivery) error {
	if strings.TrimSpace(d.RunID) == "" {
		return errEmptyRunID
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return errors.New("内存队列已关闭")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.deliverCh <- d:
		return nil
	}
}

// Consume 以 workerCount 个协程处理投递，直到 ctx 结束或队列关闭。
func (q *MemoryQueue) Consume(ctx context.Context, workerCount int, handler Handler) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	var wg sync.WaitGroup
	wg.Add(workerCount)
	for range workerCount {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-q.deliverCh:
					if !ok {
						return
					}
					_ = handler(ctx, d)
				}
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

// Len 返回尚未被消费的投递数量。
func (q *MemoryQueue) Len() int { return len(q.deliverCh) }

// Close 关闭队列，之后的 Publish 返回错误。
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.deliverCh)
	}
	return nil
}
