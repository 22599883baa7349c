// Package provider selects a concrete llm.ChatModel implementation from a
// model configuration.
package provider

import (
	"DotPilot/internal/llm"
	"DotPilot/internal/llm/anyllm"
	"DotPilot/internal/llm/openai"

	xerrors "DotPilot/internal/errors"
)

// New 校验配置并创建模型客户端：openai 走原生 SDK，gemini 与 ollama 走 any-llm-go。
func New(cfg llm.ModelConfig) (llm.ChatModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.Normalized()

	switch cfg.Provider {
	case llm.ProviderOpenAI:
		client, err := openai.NewClient(openai.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeConfiguration, err, "初始化 OpenAI 客户端失败")
		}
		return client, nil
	default:
		client, err := anyllm.NewClient(cfg)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeConfiguration, err, "初始化模型客户端失败",
				xerrors.WithMetadata("provider", cfg.Provider))
		}
		return client, nil
	}
}
