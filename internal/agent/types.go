package agent

import (
	"time"

	"DotPilot/internal/llm"
)

const (
	// DefaultMaxIterations 是单次运行允许的模型调用上限。
	DefaultMaxIterations = 15

	// MaxIterationsOutput 是达到上限且模型仍未给出最终回答时的固定输出。
	MaxIterationsOutput = "Maximum iterations reached without completing the task."

	// minOutputLength 以下的最终回答被视为空回答，由工具结果渲染替代。
	minOutputLength = 20
)

// ToolInvocationRecord 记录一次工具调用的参数与结果，追加后不再修改。
type ToolInvocationRecord struct {
	Tool    string `json:"tool"`
	CallID  string `json:"call_id,omitempty"`
	Args    any    `json:"args,omitempty"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
	Success bool   `json:"success"`
}

// Step 是运行轨迹中的一步：一次模型响应或一次工具调用。
type Step struct {
	Iteration int                   `json:"iteration"`
	Response  *llm.Message          `json:"response,omitempty"`
	Tool      *ToolInvocationRecord `json:"tool,omitempty"`
}

// RunResult 汇总一次运行的输出与完整轨迹。
type RunResult struct {
	ID                string                 `json:"id"`
	Input             string                 `json:"input"`
	Output            string                 `json:"output"`
	Messages          []llm.Message          `json:"messages"`
	IntermediateSteps []Step                 `json:"intermediate_steps"`
	ToolResults       []ToolInvocationRecord `json:"tool_results"`
	Provider          string                 `json:"provider"`
	Model             string                 `json:"model"`
	Iterations        int                    `json:"iterations"`
	Completed         bool                   `json:"completed"`
	Usage             llm.Usage              `json:"usage"`
	StartedAt         time.Time              `json:"started_at"`
	Duration          time.Duration          `json:"duration"`
}

// FailedToolCalls 统计失败的工具调用数量。
func (r *RunResult) FailedToolCalls() int {
	n := 0
	for _, rec := range r.ToolResults {
		if !rec.Success {
			n++
		}
	}
	return n
}

// RunSummary 是持久化后的运行摘要。
type RunSummary struct {
	ID              string `json:"id"`
	Query           string `json:"query"`
	Output          string `json:"output"`
	Provider        string `json:"provider"`
	Model           string `json:"model"`
	Iterations      int    `json:"iterations"`
	ToolCalls       int    `json:"tool_calls"`
	FailedToolCalls int    `json:"failed_tool_calls"`
	Completed       bool   `json:"completed"`
	CreatedAt       int64  `json:"created_at"`
}
