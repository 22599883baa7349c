package task

import (
	"context"

	xerrors "DotPilot/internal/errors"
)

// Store 抽象了任务状态的持久化接口。
//
// MarkFailed 的 terminal 为 true 时任务不再允许被领取，实现方通过把
// MaxRetries 收敛到当前 Attempts 来表达。
type Store interface {
	Create(ctx context.Context, task *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	Claim(ctx context.Context, id string) (*Task, error)
	MarkSucceeded(ctx context.Context, id string, result ExecutionResult) error
	MarkFailed(ctx context.Context, id string, code xerrors.Code, lastError string, terminal bool) error
	List(ctx context.Context, opts ListOptions) ([]*Task, error)
	Stats(ctx context.Context, opts ListOptions) (TaskStats, error)
	Close() error
}
