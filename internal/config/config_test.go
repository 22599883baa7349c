package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "dotpilot.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{"staking":{"fixtures":"staking.yaml"},"logging":{"audit":{"enabled":true}}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	dir := filepath.Dir(path)

	if cfg.Server.Address != ":8080" || cfg.LLM.Provider != "ollama" || cfg.LLM.Timeout() != time.Minute {
		t.Fatalf("unexpected server/llm defaults: %+v %+v", cfg.Server, cfg.LLM)
	}
	if cfg.Agent.MaxIterations != 15 {
		t.Fatalf("unexpected iteration cap %d", cfg.Agent.MaxIterations)
	}
	if cfg.Staking.Fixtures != filepath.Join(dir, "staking.yaml") {
		t.Fatalf("relative fixtures path not resolved: %s", cfg.Staking.Fixtures)
	}
	if cfg.Storage.RunHistory.DataDir != filepath.Join(dir, "data") || cfg.Storage.TaskStore.Driver != "memory" {
		t.Fatalf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if cfg.Queue.Driver != "memory" || cfg.Queue.Workers != 2 || cfg.Queue.MaxRetries != 3 {
		t.Fatalf("unexpected queue defaults: %+v", cfg.Queue)
	}
	if cfg.MCP.Path != "/mcp" || cfg.Knowledge.MaxResults != 3 || cfg.Knowledge.Path != "" {
		t.Fatalf("unexpected mcp/knowledge defaults: %+v %+v", cfg.MCP, cfg.Knowledge)
	}
	if cfg.Logging.Audit.Path != filepath.Join(dir, "data", "audit.log") {
		t.Fatalf("unexpected audit path: %s", cfg.Logging.Audit.Path)
	}
}

func TestLoadKeepsExplicitValues(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"address": "127.0.0.1:9000"},
		"llm": {"provider": "openai", "model": "gpt-4o-mini", "timeout_seconds": 5},
		"web3": {"enabled": true, "chain_config": "/etc/dotpilot/chains.yaml"},
		"queue": {"driver": "redis", "workers": 8}
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != "127.0.0.1:9000" || cfg.LLM.Model != "gpt-4o-mini" || cfg.LLM.Timeout() != 5*time.Second {
		t.Fatalf("explicit values overwritten: %+v %+v", cfg.Server, cfg.LLM)
	}
	if cfg.Web3.ChainConfig != "/etc/dotpilot/chains.yaml" || cfg.Queue.Workers != 8 || cfg.Queue.Driver != "redis" {
		t.Fatalf("explicit values overwritten: %+v %+v", cfg.Web3, cfg.Queue)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, "{")); err == nil {
		t.Fatalf("expected error for malformed json")
	}
}

func TestResolveAuthTokenAndPath(t *testing.T) {
	t.Setenv("DOTPILOT_TEST_TOKEN", " secret ")
	if got := (ServerConfig{AuthTokenEnv: "DOTPILOT_TEST_TOKEN"}).ResolveAuthToken(); got != "secret" {
		t.Fatalf("unexpected token %q", got)
	}
	if got := (ServerConfig{AuthToken: "inline", AuthTokenEnv: "DOTPILOT_TEST_TOKEN"}).ResolveAuthToken(); got != "inline" {
		t.Fatalf("inline token should win, got %q", got)
	}

	t.Setenv(EnvConfigPath, "")
	if PathFromEnv() != DefaultPath {
		t.Fatalf("expected default path")
	}
	t.Setenv(EnvConfigPath, "/tmp/custom.json")
	if PathFromEnv() != "/tmp/custom.json" {
		t.Fatalf("expected env path")
	}
}
