package agent

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	xerrors "DotPilot/internal/errors"
	"DotPilot/internal/llm"
	"DotPilot/internal/llm/provider"
	"DotPilot/internal/observability/metrics"
	"DotPilot/internal/observability/tracing"
	"DotPilot/internal/storage/mysql"
	"DotPilot/internal/tool"
	"DotPilot/pkg/logger"
)

// binding 是 Init 之后不再变化的运行依赖，多个 Run 并发共享。
type binding struct {
	systemPrompt string
	registry     *tool.Registry
	tools        []llm.ToolDefinition
	model        llm.ChatModel
	cfg          llm.ModelConfig
}

// Orchestrator 驱动模型与工具之间的有界对话循环。
type Orchestrator struct {
	bound atomic.Pointer[binding]

	factory       llm.Factory
	maxIterations int
	llmTimeout    time.Duration
	temperature   *float64
	chain         string
	chainDisplay  string
	metrics       *metrics.Metrics
	runs          mysql.RunRepository
	log           *slog.Logger
}

// Option 定义可选的 Orchestrator 配置。
type Option func(*Orchestrator)

// WithModelFactory 替换默认的模型客户端工厂。
func WithModelFactory(factory llm.Factory) Option {
	return func(o *Orchestrator) {
		if factory != nil {
			o.factory = factory
		}
	}
}

// WithMaxIterations 设置单次运行的模型调用上限，非正数使用默认值。
func WithMaxIterations(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxIterations = n
		}
	}
}

// WithLLMTimeout 设置单次模型调用的超时时间。
func WithLLMTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) {
		if timeout < 0 {
			timeout = 0
		}
		o.llmTimeout = timeout
	}
}

// WithTemperature 设置采样温度。
func WithTemperature(t float64) Option {
	return func(o *Orchestrator) { o.temperature = &t }
}

// WithConnectedChain 记录当前连接的链及其展示名称。
func WithConnectedChain(chain, displayName string) Option {
	return func(o *Orchestrator) {
		o.chain = chain
		o.chainDisplay = displayName
	}
}

// WithMetrics 指定指标实例。
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithRunRepository 启用运行记录持久化。
func WithRunRepository(repo mysql.RunRepository) Option {
	return func(o *Orchestrator) { o.runs = repo }
}

// WithLogger 替换默认日志实例。
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// New 创建一个尚未初始化的 Orchestrator。
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		factory:       provider.New,
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.log == nil {
		o.log = logger.Named("agent")
	}
	return o
}

// Init 绑定系统提示词与工具集合，并创建模型客户端。
//
// 选中的提供方缺少凭证、提供方未知或模型名为空时返回 CodeConfiguration 错误。
// 重复调用会整体替换之前的绑定，正在执行的运行不受影响。
func (o *Orchestrator) Init(systemPrompt string, registry *tool.Registry, cfg llm.ModelConfig) error {
	if strings.TrimSpace(systemPrompt) == "" {
		return xerrors.New(xerrors.CodeConfiguration, "系统提示词不能为空")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg = cfg.Normalized()

	model, err := o.factory(cfg)
	if err != nil {
		if _, ok := xerrors.From(err); ok {
			return err
		}
		return xerrors.Wrap(xerrors.CodeConfiguration, err, "创建模型客户端失败")
	}

	o.bound.Store(&binding{
		systemPrompt: systemPrompt,
		registry:     registry,
		tools:        registry.Definitions(),
		model:        model,
		cfg:          cfg,
	})
	o.log.Info("orchestrator initialised",
		"provider", cfg.Provider, "model", cfg.Model, "tools", strings.Join(registry.Names(), ","))
	return nil
}

// Run 执行一次有界的工具调用循环。
//
// 只有未初始化、查询为空以及模型调用失败会返回错误；工具层面的失败会记录在
// RunResult.ToolResults 中并作为工具消息交还给模型。
func (o *Orchestrator) Run(ctx context.Context, query string) (*RunResult, error) {
	b := o.bound.Load()
	if b == nil {
		return nil, xerrors.New(xerrors.CodeNotInitialized, "Agent not initialized. Call Init first.")
	}
	if strings.TrimSpace(query) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "查询内容不能为空")
	}

	result := &RunResult{
		ID:        uuid.NewString(),
		Input:     query,
		Provider:  b.cfg.Provider,
		Model:     b.cfg.Model,
		StartedAt: time.Now(),
	}
	ctx, span := tracing.Start(ctx, "agent.run")
	defer span.End()
	span.SetAttributes(
		tracing.String("run_id", result.ID),
		tracing.String("provider", result.Provider),
		tracing.String("model", result.Model),
	)
	log := logger.FromContext(ctx, o.log).With("run_id", result.ID)

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: b.systemPrompt},
		{Role: llm.RoleUser, Content: query},
	}

	for result.Iterations < o.maxIterations {
		result.Iterations++

		resp, err := o.chat(ctx, b, messages)
		if err != nil {
			err = markCommitted(err, b.registry, result.ToolResults)
			tracing.Fail(span, err)
			o.metrics.ObserveRun(ctx, metrics.OutcomeFailed, result.Iterations)
			log.Error("model call failed", "iteration", result.Iterations, "error", err)
			return nil, err
		}
		reply := resp.Message
		reply.Role = llm.RoleAssistant
		result.Usage = addUsage(result.Usage, resp.Usage)
		result.IntermediateSteps = append(result.IntermediateSteps, Step{Iteration: result.Iterations, Response: &reply})

		if len(reply.ToolCalls) == 0 {
			messages = append(messages, reply)
			result.Output = finalizeOutput(reply.Content, result.ToolResults)
			result.Completed = true
			break
		}

		messages = append(messages, reply)
		for _, call := range reply.ToolCalls {
			record := o.invoke(ctx, b, call, log)
			result.ToolResults = append(result.ToolResults, record)
			result.IntermediateSteps = append(result.IntermediateSteps, Step{Iteration: result.Iterations, Tool: &record})
			messages = append(messages, toolMessage(call, record))
		}
	}

	if !result.Completed {
		result.Output = MaxIterationsOutput
		log.Warn("iteration limit reached", "iterations", result.Iterations, "tool_calls", len(result.ToolResults))
	}
	result.Messages = messages
	result.Duration = time.Since(result.StartedAt)

	outcome := metrics.OutcomeCompleted
	if !result.Completed {
		outcome = metrics.OutcomeMaxIterations
	}
	span.SetAttributes(tracing.Int("iterations", result.Iterations), tracing.Int("tool_calls", len(result.ToolResults)))
	o.metrics.ObserveRun(ctx, outcome, result.Iterations)
	o.persist(ctx, result, log)

	logger.Audit().Info("agent run finished",
		"run_id", result.ID,
		"provider", result.Provider,
		"model", result.Model,
		"outcome", outcome,
		"iterations", result.Iterations,
		"tool_calls", len(result.ToolResults),
		"failed_tool_calls", result.FailedToolCalls(),
		"duration", result.Duration,
	)
	return result, nil
}

func (o *Orchestrator) chat(ctx context.Context, b *binding, messages []llm.Message) (*llm.ChatResponse, error) {
	callCtx := ctx
	if o.llmTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.llmTimeout)
		defer cancel()
	}
	callCtx, span := tracing.Start(callCtx, "llm.chat")
	defer span.End()

	// 传入切片副本，模型实现不能篡改运行自身的消息序列。
	req := llm.ChatRequest{
		Messages:    append([]llm.Message(nil), messages...),
		Tools:       b.tools,
		Temperature: o.temperature,
	}
	start := time.Now()
	resp, err := b.model.Chat(callCtx, req)
	o.metrics.ObserveModelCall(ctx, b.cfg.Provider, b.cfg.Model, time.Since(start), err)

	if err != nil {
		tracing.Fail(span, err)
		if stdErrors.Is(err, context.DeadlineExceeded) {
			return nil, xerrors.Wrap(xerrors.CodeTimeout, err, "大模型推理超时")
		}
		return nil, xerrors.Wrap(xerrors.CodeExecutorFailure, err, "大模型推理失败")
	}
	if resp == nil {
		return nil, xerrors.New(xerrors.CodeExecutorFailure, "大模型返回了空响应")
	}
	return resp, nil
}

// invoke 顺序执行单个工具调用，任何失败都转成记录而不是错误。
func (o *Orchestrator) invoke(ctx context.Context, b *binding, call llm.ToolCall, log *slog.Logger) ToolInvocationRecord {
	record := ToolInvocationRecord{Tool: call.Name, CallID: call.ID, Args: decodeArgs(call.Arguments)}

	ctx, span := tracing.Start(ctx, "tool."+call.Name)
	defer span.End()

	start := time.Now()
	out, err := b.registry.Invoke(ctx, call.Name, json.RawMessage(call.Arguments))
	if err == nil {
		if _, merr := json.Marshal(out); merr != nil {
			err = xerrors.Wrap(xerrors.CodeToolInvocation, merr, "工具结果无法序列化")
		}
	}
	elapsed := time.Since(start)

	if err != nil {
		record.Error = errorText(err)
		tracing.Fail(span, err)
		log.Warn("tool failed", "tool", call.Name, "error", record.Error, "duration", elapsed)
	} else {
		record.Result = out
		record.Success = true
		log.Info("tool executed", "tool", call.Name, "duration", elapsed)
	}
	o.metrics.ObserveToolCall(ctx, call.Name, elapsed, record.Success)
	return record
}

func (o *Orchestrator) persist(ctx context.Context, result *RunResult, log *slog.Logger) {
	if o.runs == nil {
		return
	}
	trail, err := json.Marshal(result.ToolResults)
	if err != nil {
		trail = []byte("[]")
	}
	now := time.Now().Unix()
	record := &mysql.RunRecord{
		ID:              result.ID,
		Query:           result.Input,
		Output:          result.Output,
		Provider:        result.Provider,
		Model:           result.Model,
		Chain:           o.chain,
		Iterations:      result.Iterations,
		ToolCalls:       len(result.ToolResults),
		FailedToolCalls: result.FailedToolCalls(),
		Completed:       result.Completed,
		ToolResults:     string(trail),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := o.runs.Save(ctx, record); err != nil {
		log.Error("save run record failed", "error", err)
	}
}

// ListHistory 获取最近的运行记录。
func (o *Orchestrator) ListHistory(ctx context.Context, limit int) ([]RunSummary, error) {
	if o.runs == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置运行记录仓库")
	}
	records, err := o.runs.ListLatest(ctx, limit)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询运行记录失败")
	}
	out := make([]RunSummary, 0, len(records))
	for _, r := range records {
		out = append(out, RunSummary{
			ID:              r.ID,
			Query:           r.Query,
			Output:          r.Output,
			Provider:        r.Provider,
			Model:           r.Model,
			Iterations:      r.Iterations,
			ToolCalls:       r.ToolCalls,
			FailedToolCalls: r.FailedToolCalls,
			Completed:       r.Completed,
			CreatedAt:       r.CreatedAt,
		})
	}
	return out, nil
}

// IsReady 报告 Init 是否已成功执行。
func (o *Orchestrator) IsReady() bool { return o.bound.Load() != nil }

// AvailableTools 返回已注册的工具名称。
func (o *Orchestrator) AvailableTools() []string {
	if b := o.bound.Load(); b != nil {
		return b.registry.Names()
	}
	return nil
}

// Registry 返回已冻结的工具集合，未初始化时为 nil。
func (o *Orchestrator) Registry() *tool.Registry {
	if b := o.bound.Load(); b != nil {
		return b.registry
	}
	return nil
}

// ConnectedChain 返回当前连接链的 agent 链 ID。
func (o *Orchestrator) ConnectedChain() string { return o.chain }

// ConnectedChainDisplayName 返回当前连接链的展示名称。
func (o *Orchestrator) ConnectedChainDisplayName() string { return o.chainDisplay }

// Provider 返回当前模型提供方。
func (o *Orchestrator) Provider() string {
	if b := o.bound.Load(); b != nil {
		return b.cfg.Provider
	}
	return ""
}

// Model 返回当前模型名称。
func (o *Orchestrator) Model() string {
	if b := o.bound.Load(); b != nil {
		return b.cfg.Model
	}
	return ""
}

// finalizeOutput 处理最终回答：过短时用工具结果替代，未提及工具数据时追加渲染结果。
func finalizeOutput(output string, records []ToolInvocationRecord) string {
	if len(records) == 0 {
		return output
	}
	if len(strings.TrimSpace(output)) < minOutputLength {
		return FormatToolResults(records)
	}
	if !OutputContainsToolData(output, records) {
		return output + "\n\n" + FormatToolResults(records)
	}
	return output
}

// markCommitted 在运行中途失败且已有副作用工具成功执行时，把错误标记为不可重试，
// 调用方不能整体重放该运行。
func markCommitted(err error, registry *tool.Registry, records []ToolInvocationRecord) error {
	var committed []string
	for _, r := range records {
		if r.Success && registry.SideEffects(r.Tool) {
			committed = append(committed, r.Tool)
		}
	}
	if len(committed) == 0 {
		return err
	}
	return xerrors.Wrap(xerrors.CodeOf(err), err, "运行中断，已执行的操作不会自动重放",
		xerrors.WithRetryable(false),
		xerrors.WithMetadata("committed_tools", strings.Join(committed, ",")),
	)
}

func toolMessage(call llm.ToolCall, record ToolInvocationRecord) llm.Message {
	id := call.ID
	if id == "" {
		id = call.Name
	}
	content := "Error: " + record.Error
	if record.Success {
		encoded, _ := json.Marshal(record.Result)
		content = string(encoded)
	}
	return llm.Message{Role: llm.RoleTool, Content: content, ToolCallID: id, Name: call.Name}
}

// decodeArgs 尽量把参数解析为 JSON 值，无法解析时保留原始文本。
func decodeArgs(raw string) any {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// errorText 返回面向模型的错误描述，不带错误码前缀。
func errorText(err error) string {
	e, ok := xerrors.From(err)
	if !ok {
		return err.Error()
	}
	if cause := e.Unwrap(); cause != nil {
		return fmt.Sprintf("%s: %v", e.Message(), cause)
	}
	return e.Message()
}

func addUsage(a, b llm.Usage) llm.Usage {
	return llm.Usage{
		PromptTokens:     a.PromptTokens + b.PromptTokens,
		CompletionTokens: a.CompletionTokens + b.CompletionTokens,
		TotalTokens:      a.TotalTokens + b.TotalTokens,
	}
}
