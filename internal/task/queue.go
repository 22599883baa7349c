package task

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Delivery 是队列中传递的一次运行投递。Attempt 从 1 开始，每次重投加一。
type Delivery struct {
	RunID      string    `json:"run_id"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Handler 处理一次投递。
type Handler func(ctx context.Context, d Delivery) error

// Producer 负责向队列投递运行。
type Producer interface {
	Publish(ctx context.Context, d Delivery) error
	Close() error
}

// Consumer 负责从队列中消费运行。
type Consumer interface {
	Consume(ctx context.Context, workerCount int, handler Handler) error
	Close() error
}

// Queue 同时具备生产者与消费者能力。
type Queue interface {
	Producer
	Consumer
}

var errEmptyRunID = errors.New("投递缺少运行 ID")

func newDelivery(runID string, attempt int) Delivery {
	if attempt <= 0 {
		attempt = 1
	}
	return Delivery{RunID: runID, Attempt: attempt, EnqueuedAt: time.Now().UTC()}
}

// Wait 返回投递在队列中等待的时长，未知入队时间时为 0。
func (d Delivery) Wait(now time.Time) time.Duration {
	if d.EnqueuedAt.IsZero() || now.Before(d.EnqueuedAt) {
		return 0
	}
	return now.Sub(d.EnqueuedAt)
}

func (d Delivery) encode() ([]byte, error) {
	if strings.TrimSpace(d.RunID) == "" {
		return nil, errEmptyRunID
	}
	return json.Marshal(d)
}

// decodeDelivery 解析消息体；不是 JSON 对象的消息体按裸运行 ID 处理。
func decodeDelivery(body []byte) (Delivery, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return Delivery{}, errEmptyRunID
	}
	if !strings.HasPrefix(trimmed, "{") {
		return Delivery{RunID: trimmed, Attempt: 1}, nil
	}
	var d Delivery
	if err := json.Unmarshal([]byte(trimmed), &d); err != nil {
		return Delivery{}, err
	}
	if strings.TrimSpace(d.RunID) == "" {
		return Delivery{}, errEmptyRunID
	}
	if d.Attempt <= 0 {
		d.Attempt = 1
	}
	return d, nil
}
