package staking

import "testing"

func TestAgentChainID(t *testing.T) {
	cases := map[string]string{
		"":                        DefaultChain,
		"Westend Asset Hub":       "west_asset_hub",
		" polkadot-asset-hub ":    "polkadot_asset_hub",
		"kusama_asset_hub":        "kusama_asset_hub",
		"Paseo AssetHub":          "paseo_asset_hub",
		"Westend":                 "west",
		"PASEO":                   "paseo",
		"Paseo Hub Testnet":       "paseo_asset_hub",
		"polkadot relay chain":    "polkadot",
		"west testnet":            "west",
		"kusama canary":           "kusama",
		"something else entirely": DefaultChain,
	}
	for input, want := range cases {
		if got := AgentChainID(input); got != want {
			t.Errorf("AgentChainID(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestRelayChain(t *testing.T) {
	cases := map[string]string{
		"paseo_asset_hub":    "paseo",
		"west_asset_hub":     "west",
		"polkadot_asset_hub": "polkadot",
		"kusama_asset_hub":   "kusama",
		"paseo":              "paseo",
		"moonbeam":           "moonbeam",
	}
	for input, want := range cases {
		if got := RelayChain(input); got != want {
			t.Errorf("RelayChain(%q) = %q, want %q", input, got, want)
		}
	}
	if !IsRelayChain("kusama") || IsRelayChain("kusama_asset_hub") {
		t.Fatalf("unexpected relay classification")
	}
	if DisplayName("west_asset_hub") != "Westend Asset Hub" || DisplayName("custom") != "custom" {
		t.Fatalf("unexpected display names")
	}
}
