package staking

import (
	"log/slog"
	"strings"

	"DotPilot/pkg/logger"
)

// DefaultChain 是未指定链时使用的智能体链 ID。
const DefaultChain = "west_asset_hub"

// 直接映射表，键为小写化后的名称。
var chainAliases = map[string]string{
	"westend asset hub":  "west_asset_hub",
	"westend assethub":   "west_asset_hub",
	"westend-asset-hub":  "west_asset_hub",
	"west_asset_hub":     "west_asset_hub",
	"polkadot asset hub": "polkadot_asset_hub",
	"polkadot assethub":  "polkadot_asset_hub",
	"polkadot-asset-hub": "polkadot_asset_hub",
	"polkadot_asset_hub": "polkadot_asset_hub",
	"kusama asset hub":   "kusama_asset_hub",
	"kusama assethub":    "kusama_asset_hub",
	"kusama-asset-hub":   "kusama_asset_hub",
	"kusama_asset_hub":   "kusama_asset_hub",
	"paseo asset hub":    "paseo_asset_hub",
	"paseo assethub":     "paseo_asset_hub",
	"paseo-asset-hub":    "paseo_asset_hub",
	"paseo_asset_hub":    "paseo_asset_hub",
	"polkadot":           "polkadot",
	"kusama":             "kusama",
	"westend":            "west",
	"west":               "west",
	"paseo":              "paseo",
}

var relayOf = map[string]string{
	"paseo_asset_hub":    "paseo",
	"west_asset_hub":     "west",
	"polkadot_asset_hub": "polkadot",
	"kusama_asset_hub":   "kusama",
}

var displayNames = map[string]string{
	"paseo":              "Paseo",
	"west":               "Westend",
	"polkadot":           "Polkadot",
	"kusama":             "Kusama",
	"paseo_asset_hub":    "Paseo Asset Hub",
	"west_asset_hub":     "Westend Asset Hub",
	"polkadot_asset_hub": "Polkadot Asset Hub",
	"kusama_asset_hub":   "Kusama Asset Hub",
}

// AgentChainID 把展示名称或别名转换为智能体使用的链 ID。
//
// 先查直接映射，再按关键字推断资产中心链和中继链，都不匹配时回退到
// DefaultChain。
func AgentChainID(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return DefaultChain
	}
	if id, ok := chainAliases[normalized]; ok {
		return id
	}

	hub := strings.Contains(normalized, "asset") || strings.Contains(normalized, "hub")
	for _, relay := range []struct{ keyword, id string }{
		{"paseo", "paseo"},
		{"westend", "west"},
		{"polkadot", "polkadot"},
		{"kusama", "kusama"},
	} {
		if hub && strings.Contains(normalized, relay.keyword) {
			return relay.id + "_asset_hub"
		}
	}

	switch {
	case strings.Contains(normalized, "paseo"):
		return "paseo"
	case strings.Contains(normalized, "westend"), strings.Contains(normalized, "west"):
		return "west"
	case strings.Contains(normalized, "polkadot"):
		return "polkadot"
	case strings.Contains(normalized, "kusama"):
		return "kusama"
	}

	logger.L().Warn("无法识别链名称，使用默认链", slog.String("name", name), slog.String("default", DefaultChain))
	return DefaultChain
}

// RelayChain 返回资产中心链对应的中继链；其他 ID 原样返回。
func RelayChain(chainID string) string {
	if relay, ok := relayOf[chainID]; ok {
		return relay
	}
	return chainID
}

// IsRelayChain 报告 chainID 是否为已知的中继链。
func IsRelayChain(chainID string) bool {
	switch chainID {
	case "paseo", "west", "polkadot", "kusama":
		return true
	}
	return false
}

// IsKnownChain 报告 chainID 是否为支持的链。
func IsKnownChain(chainID string) bool {
	_, ok := displayNames[chainID]
	return ok
}

// DisplayName 返回链的可读名称，未知链返回原值。
func DisplayName(chainID string) string {
	if name, ok := displayNames[chainID]; ok {
		return name
	}
	return chainID
}
