package llm

import (
	"testing"

	xerrors "DotPilot/internal/errors"
)

func TestValidateRequiresCredential(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	for _, provider := range []string{ProviderOpenAI, ProviderGemini} {
		err := ModelConfig{Provider: provider, Model: "m"}.Validate()
		if !xerrors.IsCode(err, xerrors.CodeConfiguration) {
			t.Fatalf("%s: expected configuration error, got %v", provider, err)
		}
	}
}

func TestValidateOllamaWithoutKey(t *testing.T) {
	cfg := ModelConfig{Provider: " Ollama ", Model: "llama3.1"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("ollama needs no credential: %v", err)
	}
	n := cfg.Normalized()
	if n.Provider != ProviderOllama || n.BaseURL != DefaultOllamaBaseURL {
		t.Fatalf("unexpected normalized config: %+v", n)
	}
}

func TestResolveAPIKeyOrder(t *testing.T) {
	t.Setenv("CUSTOM_KEY", "from-custom")
	t.Setenv("GEMINI_API_KEY", "from-default")

	if got := (ModelConfig{Provider: "gemini", APIKey: "inline", APIKeyEnv: "CUSTOM_KEY"}).ResolveAPIKey(); got != "inline" {
		t.Fatalf("inline key should win, got %q", got)
	}
	if got := (ModelConfig{Provider: "gemini", APIKeyEnv: "CUSTOM_KEY"}).ResolveAPIKey(); got != "from-custom" {
		t.Fatalf("custom env should win, got %q", got)
	}
	if got := (ModelConfig{Provider: "gemini"}).ResolveAPIKey(); got != "from-default" {
		t.Fatalf("default env expected, got %q", got)
	}
}

func TestValidateRejectsUnknownProviderAndEmptyModel(t *testing.T) {
	if err := (ModelConfig{Provider: "bard", Model: "x"}).Validate(); !xerrors.IsCode(err, xerrors.CodeConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if err := (ModelConfig{Provider: "ollama"}).Validate(); !xerrors.IsCode(err, xerrors.CodeConfiguration) {
		t.Fatalf("expected configuration error for empty model, got %v", err)
	}
}
