package anyllm

import (
	"testing"

	"DotPilot/internal/llm"
)

func TestConvertMessageAssistantWithToolCalls(t *testing.T) {
	got := convertMessage(llm.Message{
		Role:      llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "check_user_pool", Arguments: `{"chain":"paseo"}`}},
	})
	if got.Role != "assistant" {
		t.Errorf("expected role assistant, got %q", got.Role)
	}
	if len(got.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(got.ToolCalls))
	}
	tc := got.ToolCalls[0]
	if tc.ID != "call_1" || tc.Type != "function" || tc.Function.Name != "check_user_pool" {
		t.Errorf("unexpected tool call: %+v", tc)
	}
	if tc.Function.Arguments != `{"chain":"paseo"}` {
		t.Errorf("unexpected arguments: %q", tc.Function.Arguments)
	}
}

func TestConvertMessageTool(t *testing.T) {
	got := convertMessage(llm.Message{Role: llm.RoleTool, Content: `{"ok":true}`, ToolCallID: "call_9"})
	if got.Role != "tool" || got.ToolCallID != "call_9" {
		t.Errorf("unexpected message: %+v", got)
	}
	if got.ContentString() != `{"ok":true}` {
		t.Errorf("unexpected content %q", got.ContentString())
	}
}

func TestBuildParamsForwardsTools(t *testing.T) {
	c := &Client{model: "gemini-2.0-flash"}
	temp := 0.1
	params := c.buildParams(llm.ChatRequest{
		Messages:    []llm.Message{{Role: llm.RoleSystem, Content: "sys"}, {Role: llm.RoleUser, Content: "q"}},
		Tools:       []llm.ToolDefinition{{Name: "unbond", Description: "Unbond funds", Parameters: map[string]any{"type": "object"}}},
		Temperature: &temp,
	})
	if params.Model != "gemini-2.0-flash" || len(params.Messages) != 2 {
		t.Fatalf("unexpected params: %+v", params)
	}
	if len(params.Tools) != 1 || params.Tools[0].Function.Name != "unbond" || params.Tools[0].Type != "function" {
		t.Fatalf("tools not converted: %+v", params.Tools)
	}
	if params.Temperature == nil || *params.Temperature != 0.1 {
		t.Fatalf("temperature not forwarded")
	}
}

func TestNewClientOllamaWithoutKey(t *testing.T) {
	c, err := NewClient(llm.ModelConfig{Provider: "ollama", Model: "llama3.1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Provider() != llm.ProviderOllama || c.Model() != "llama3.1" {
		t.Fatalf("unexpected client: %+v", c)
	}
}

func TestNewClientRejectsUnknownProvider(t *testing.T) {
	if _, err := NewClient(llm.ModelConfig{Provider: "bard", Model: "x", APIKey: "k"}); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
	if _, err := NewClient(llm.ModelConfig{Provider: "ollama"}); err == nil {
		t.Fatalf("expected error for empty model")
	}
}
