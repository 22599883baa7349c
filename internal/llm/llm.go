package llm

import "context"

// Role 标识消息在对话中的角色。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall 是模型发起的一次工具调用请求，Arguments 保留模型给出的原始 JSON 文本。
type ToolCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message 是发送给模型或由模型返回的一条对话消息。
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolDefinition 描述暴露给模型的工具，Parameters 为 JSON Schema 对象。
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ChatRequest 是一次模型调用的输入。
type ChatRequest struct {
	Messages    []Message
	Tools       []ToolDefinition
	Temperature *float64
}

// Usage 记录 token 消耗，提供方未返回时为零值。
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResponse 是模型返回的助手消息。
type ChatResponse struct {
	Message Message
	Usage   Usage
}

// ChatModel 定义了调用大模型的统一接口。
type ChatModel interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Factory 根据模型配置构建 ChatModel。
type Factory func(cfg ModelConfig) (ChatModel, error)
