package provider

import (
	"testing"

	xerrors "DotPilot/internal/errors"
	"DotPilot/internal/llm"
	"DotPilot/internal/llm/anyllm"
	"DotPilot/internal/llm/openai"
)

func TestNewSelectsImplementation(t *testing.T) {
	model, err := New(llm.ModelConfig{Provider: "openai", Model: "gpt-4o-mini", APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := model.(*openai.Client); !ok {
		t.Fatalf("expected native openai client, got %T", model)
	}

	model, err = New(llm.ModelConfig{Provider: "ollama", Model: "llama3.1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := model.(*anyllm.Client); !ok {
		t.Fatalf("expected anyllm client, got %T", model)
	}
}

func TestNewMissingCredential(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	_, err := New(llm.ModelConfig{Provider: "gemini", Model: "gemini-2.0-flash"})
	if !xerrors.IsCode(err, xerrors.CodeConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
