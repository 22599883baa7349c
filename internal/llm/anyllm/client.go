// Package anyllm adapts github.com/mozilla-ai/any-llm-go to llm.ChatModel so
// that Gemini, Ollama and OpenAI-compatible endpoints share one code path.
package anyllm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"DotPilot/internal/llm"
)

// Client 通过 any-llm-go 调用多家模型服务。
type Client struct {
	backend  anyllmlib.Provider
	provider string
	model    string
}

// NewClient 根据统一的模型配置创建客户端，cfg 应已通过 Validate。
func NewClient(cfg llm.ModelConfig) (*Client, error) {
	cfg = cfg.Normalized()
	if cfg.Model == "" {
		return nil, errors.New("anyllm: 未指定模型名称")
	}

	var opts []anyllmlib.Option
	if cfg.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(cfg.BaseURL))
	}

	backend, err := createBackend(cfg.Provider, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: 创建 %q 后端失败: %w", cfg.Provider, err)
	}
	return &Client{backend: backend, provider: cfg.Provider, model: cfg.Model}, nil
}

func createBackend(provider string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch provider {
	case llm.ProviderGemini:
		return gemini.New(opts...)
	case llm.ProviderOllama:
		return ollama.New(opts...)
	case llm.ProviderOpenAI:
		return anyllmoai.New(opts...)
	default:
		return nil, fmt.Errorf("不支持的提供方 %q", provider)
	}
}

// Provider 返回后端名称。
func (c *Client) Provider() string { return c.provider }

// Model 返回模型名称。
func (c *Client) Model() string { return c.model }

// Chat 实现 llm.ChatModel。
func (c *Client) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	resp, err := c.backend.Completion(ctx, c.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("anyllm: %s 调用失败: %w", c.provider, err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("anyllm: 响应中没有有效的 choices")
	}

	choice := resp.Choices[0].Message
	out := &llm.ChatResponse{
		Message: llm.Message{Role: llm.RoleAssistant, Content: choice.ContentString()},
	}
	if resp.Usage != nil {
		out.Usage = llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	for _, tc := range choice.ToolCalls {
		out.Message.ToolCalls = append(out.Message.ToolCalls, llm.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

func (c *Client) buildParams(req llm.ChatRequest) anyllmlib.CompletionParams {
	params := anyllmlib.CompletionParams{
		Model:       c.model,
		Messages:    make([]anyllmlib.Message, 0, len(req.Messages)),
		Temperature: req.Temperature,
	}
	for _, m := range req.Messages {
		params.Messages = append(params.Messages, convertMessage(m))
	}
	for _, td := range req.Tools {
		params.Tools = append(params.Tools, anyllmlib.Tool{
			Type: "function",
			Function: anyllmlib.Function{
				Name:        td.Name,
				Description: td.Description,
				Parameters:  td.Parameters,
			},
		})
	}
	return params
}

func convertMessage(m llm.Message) anyllmlib.Message {
	msg := anyllmlib.Message{
		Role:       strings.ToLower(string(m.Role)),
		Content:    m.Content,
		Name:       m.Name,
		ToolCallID: m.ToolCallID,
	}
	for _, tc := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, anyllmlib.ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: anyllmlib.FunctionCall{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}
	return msg
}
