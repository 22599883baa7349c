package task

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"time"

	"DotPilot/internal/agent"
	xerrors "DotPilot/internal/errors"
	"DotPilot/internal/observability/alerting"
	"DotPilot/pkg/logger"
)

// Executor 是处理器执行一次运行所需的能力，由 agent.Orchestrator 实现。
type Executor interface {
	Run(ctx context.Context, query string) (*agent.RunResult, error)
}

// Processor 负责从队列消费任务并交给 Executor 执行。
type Processor struct {
	executor    Executor
	store       Store
	consumer    Consumer
	producer    Producer
	workerCount int
	runTimeout  time.Duration
	logger      *slog.Logger
	alerter     alerting.Dispatcher
}

// ProcessorOption 定义可选配置。
type ProcessorOption func(*Processor)

// WithProcessorLogger 指定日志输出。
func WithProcessorLogger(l *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithWorkerCount 设置消费协程数量。
func WithWorkerCount(workers int) ProcessorOption {
	return func(p *Processor) {
		if workers > 0 {
			p.workerCount = workers
		}
	}
}

// WithRunTimeout 限制单个任务的整体执行时间。
func WithRunTimeout(timeout time.Duration) ProcessorOption {
	return func(p *Processor) { p.runTimeout = timeout }
}

// WithAlertDispatcher 配置告警派发器。
func WithAlertDispatcher(dispatcher alerting.Dispatcher) ProcessorOption {
	return func(p *Processor) { p.alerter = dispatcher }
}

// NewProcessor 构造 Processor。
func NewProcessor(executor Executor, store Store, consumer Consumer, producer Producer, opts ...ProcessorOption) *Processor {
	p := &Processor{
		executor:    executor,
		store:       store,
		consumer:    consumer,
		producer:    producer,
		workerCount: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.logger == nil {
		p.logger = logger.Named("task.processor")
	}
	return p
}

// Start 启动任务处理循环，直到 ctx 结束或队列返回错误。
func (p *Processor) Start(ctx context.Context) error {
	if p.consumer == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置任务消费者")
	}
	return p.consumer.Consume(ctx, p.workerCount, p.handle)
}

func (p *Processor) handle(ctx context.Context, d Delivery) error {
	if p.store == nil || p.executor == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "处理器未初始化")
	}
	taskID := d.RunID
	task, err := p.store.Claim(ctx, taskID)
	if err != nil {
		if stdErrors.Is(err, ErrTaskNotFound) || stdErrors.Is(err, ErrTaskCompleted) || stdErrors.Is(err, ErrTaskExhausted) {
			p.logger.Debug("跳过任务", "task_id", taskID, "reason", err.Error())
			return nil
		}
		p.logger.Error("领取任务失败", "error", err, "task_id", taskID)
		p.emitAlert(ctx, &Task{ID: taskID}, CodeTaskProcessing, err, "claim")
		return err
	}

	if task.Attempts != d.Attempt {
		p.logger.Debug("投递次数与存储不一致", "task_id", taskID, "delivery_attempt", d.Attempt, "attempts", task.Attempts)
	}
	p.logger.Info("开始执行运行", "task_id", taskID, "attempt", task.Attempts, "queue_wait", d.Wait(time.Now().UTC()))

	runCtx := ctx
	if p.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.runTimeout)
		defer cancel()
	}
	result, execErr := p.executor.Run(runCtx, task.Query)
	if execErr != nil {
		return p.handleExecutionFailure(ctx, task, execErr)
	}

	record := summarize(result)
	if err := p.store.MarkSucceeded(ctx, task.ID, record); err != nil {
		p.logger.Error("标记任务成功状态失败", "error", err, "task_id", task.ID)
		if storeErr := p.store.MarkFailed(ctx, task.ID, xerrors.CodeStorageFailure, err.Error(), false); storeErr != nil {
			return storeErr
		}
		return p.requeue(ctx, task, "标记成功失败后")
	}
	logger.Audit().Info("任务执行成功",
		slog.String("task_id", task.ID),
		slog.String("run_id", record.RunID),
		slog.Int("iterations", record.Iterations),
		slog.Int("tool_calls", record.ToolCalls),
		slog.Bool("completed", record.Completed),
	)
	return nil
}

// handleExecutionFailure 记录失败；可重试且未耗尽次数时重新入队。
func (p *Processor) handleExecutionFailure(ctx context.Context, task *Task, execErr error) error {
	code := xerrors.CodeOf(execErr)
	if code == xerrors.CodeUnknown {
		code = CodeTaskProcessing
	}
	retryable := xerrors.RetryableError(execErr)
	terminal := !retryable || task.Attempts >= task.MaxRetries

	if err := p.store.MarkFailed(ctx, task.ID, code, execErr.Error(), terminal); err != nil {
		p.logger.Error("标记任务失败状态出错", "error", err, "task_id", task.ID)
		return err
	}
	logger.Audit().Warn("任务执行失败",
		slog.String("task_id", task.ID),
		slog.Bool("terminal", terminal),
		slog.String("error", execErr.Error()),
		slog.String("error_code", string(code)),
		slog.Int("attempts", task.Attempts),
		slog.Int("max_retries", task.MaxRetries),
	)

	stage := "retry"
	switch {
	case !retryable:
		stage = "non_retryable"
	case terminal:
		stage = "terminal"
		code = CodeTaskExhausted
	}
	if terminal || xerrors.ShouldAlert(execErr) {
		p.emitAlert(ctx, task, code, execErr, stage)
	}

	if terminal {
		return nil
	}
	return p.requeue(ctx, task, "重试")
}

func (p *Processor) requeue(ctx context.Context, task *Task, reason string) error {
	if p.producer == nil {
		return xerrors.New(CodeTaskPublish, fmt.Sprintf("任务 %s %s重投失败：未配置生产者", task.ID, reason))
	}
	if err := p.producer.Publish(ctx, newDelivery(task.ID, task.Attempts+1)); err != nil {
		return xerrors.Wrap(CodeTaskPublish, err, fmt.Sprintf("任务 %s %s重投失败", task.ID, reason))
	}
	p.logger.Debug("任务已重新排队", "task_id", task.ID, "attempts", task.Attempts)
	return nil
}

func (p *Processor) emitAlert(ctx context.Context, task *Task, code xerrors.Code, cause error, stage string) {
	if p.alerter == nil || task == nil {
		return
	}
	attrs := xerrors.AttributesOf(code)
	event := alerting.Event{
		Code:       code,
		Message:    attrs.Message,
		Severity:   attrs.Severity,
		TaskID:     task.ID,
		Query:      task.Query,
		Attempts:   task.Attempts,
		MaxRetries: task.MaxRetries,
		Metadata:   map[string]string{"stage": stage},
		OccurredAt: time.Now(),
	}
	if cause != nil {
		event.Message = cause.Error()
		event.Metadata["cause"] = cause.Error()
	}
	if err := p.alerter.Notify(ctx, event); err != nil {
		p.logger.Error("告警通知失败", "error", err, "task_id", task.ID, "stage", stage)
	}
}

func summarize(result *agent.RunResult) ExecutionResult {
	if result == nil {
		return ExecutionResult{}
	}
	return ExecutionResult{
		RunID:           result.ID,
		Output:          result.Output,
		Provider:        result.Provider,
		Model:           result.Model,
		Iterations:      result.Iterations,
		ToolCalls:       len(result.ToolResults),
		FailedToolCalls: result.FailedToolCalls(),
		Completed:       result.Completed,
	}
}
