package llm

import (
	"os"
	"strings"
	"time"

	xerrors "DotPilot/internal/errors"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"

	// DefaultOllamaBaseURL 是本地 Ollama 服务的默认地址。
	DefaultOllamaBaseURL = "http://localhost:11434"
)

var defaultKeyEnv = map[string]string{
	ProviderOpenAI: "OPENAI_API_KEY",
	ProviderGemini: "GEMINI_API_KEY",
}

// ModelConfig 选择模型提供方与模型。
type ModelConfig struct {
	Provider  string        `json:"provider"`
	Model     string        `json:"model"`
	APIKey    string        `json:"api_key,omitempty"`
	APIKeyEnv string        `json:"api_key_env,omitempty"`
	BaseURL   string        `json:"base_url,omitempty"`
	Timeout   time.Duration `json:"-"`
}

// Normalized 去除空白、统一大小写并补全 Ollama 地址与密钥。
func (c ModelConfig) Normalized() ModelConfig {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	c.Model = strings.TrimSpace(c.Model)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.APIKey = c.ResolveAPIKey()
	if c.Provider == ProviderOllama && c.BaseURL == "" {
		c.BaseURL = DefaultOllamaBaseURL
	}
	return c
}

// ResolveAPIKey 依次读取显式密钥、APIKeyEnv 指定的环境变量以及提供方默认环境变量。
func (c ModelConfig) ResolveAPIKey() string {
	if key := strings.TrimSpace(c.APIKey); key != "" {
		return key
	}
	if env := strings.TrimSpace(c.APIKeyEnv); env != "" {
		if key := strings.TrimSpace(os.Getenv(env)); key != "" {
			return key
		}
	}
	if env, ok := defaultKeyEnv[strings.ToLower(strings.TrimSpace(c.Provider))]; ok {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}

// RequiresAPIKey 报告提供方是否需要凭证。
func RequiresAPIKey(provider string) bool {
	_, ok := defaultKeyEnv[provider]
	return ok
}

// Validate 校验配置，失败时返回 CodeConfiguration 错误。
func (c ModelConfig) Validate() error {
	n := c.Normalized()
	switch n.Provider {
	case ProviderOpenAI, ProviderGemini, ProviderOllama:
	case "":
		return xerrors.New(xerrors.CodeConfiguration, "未指定模型提供方")
	default:
		return xerrors.New(xerrors.CodeConfiguration, "不支持的模型提供方: "+n.Provider,
			xerrors.WithMetadata("provider", n.Provider))
	}
	if n.Model == "" {
		return xerrors.New(xerrors.CodeConfiguration, "未指定模型名称",
			xerrors.WithMetadata("provider", n.Provider))
	}
	if RequiresAPIKey(n.Provider) && n.APIKey == "" {
		return xerrors.New(xerrors.CodeConfiguration, n.Provider+" 需要 API Key",
			xerrors.WithMetadata("provider", n.Provider))
	}
	return nil
}
