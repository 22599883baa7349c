package web3

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ChainDefinitions models the structure of configs/chains.yaml.
type ChainDefinitions struct {
	Default string                     `yaml:"default"`
	Chains  map[string]ChainDefinition `yaml:"chains"`
}

// ChainDefinition describes a single EVM chain and the contracts the agent reads.
type ChainDefinition struct {
	Type           string            `yaml:"type"`
	ChainID        int64             `yaml:"chain_id"`
	RPCURL         string            `yaml:"rpc_url"`
	Description    string            `yaml:"description"`
	NativeSymbol   string            `yaml:"native_symbol"`
	NativeDecimals *uint8            `yaml:"native_decimals"`
	Factory        string            `yaml:"factory"`
	Router         string            `yaml:"router"`
	Tokens         map[string]string `yaml:"tokens"`
}

// Decimals returns the native token precision, 18 when unset.
func (d ChainDefinition) Decimals() uint8 {
	if d.NativeDecimals == nil {
		return 18
	}
	return *d.NativeDecimals
}

// TokenAddress resolves a token symbol (case-insensitive) to its configured
// address. Hex addresses are returned unchanged.
func (d ChainDefinition) TokenAddress(token string) (string, bool) {
	token = strings.TrimSpace(token)
	if strings.HasPrefix(token, "0x") || strings.HasPrefix(token, "0X") {
		return token, true
	}
	for symbol, addr := range d.Tokens {
		if strings.EqualFold(symbol, token) {
			return addr, true
		}
	}
	return "", false
}

// LoadChainDefinitions parses the YAML file containing chain metadata.
func LoadChainDefinitions(path string) (ChainDefinitions, error) {
	if strings.TrimSpace(path) == "" {
		return ChainDefinitions{Chains: map[string]ChainDefinition{}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return ChainDefinitions{}, fmt.Errorf("读取链配置失败: %w", err)
	}
	return ParseChainDefinitions(content)
}

// ParseChainDefinitions decodes chain definitions from YAML content.
func ParseChainDefinitions(content []byte) (ChainDefinitions, error) {
	var defs ChainDefinitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return ChainDefinitions{}, fmt.Errorf("解析链配置失败: %w", err)
	}
	if defs.Chains == nil {
		defs.Chains = map[string]ChainDefinition{}
	}
	return defs, nil
}
