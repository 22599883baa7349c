package staking

import (
	"strings"
	"testing"
)

func TestSystemPrompt(t *testing.T) {
	prompt := SystemPrompt("paseo", "Paseo")
	if !strings.HasPrefix(prompt, "You are a Nomination Staking Agent for the Polkadot ecosystem.") {
		t.Fatalf("unexpected prompt prefix: %q", prompt[:60])
	}
	if !strings.Contains(prompt, "You are currently connected to: **Paseo** (chain ID: \"paseo\")") {
		t.Fatalf("connection block missing: %s", prompt)
	}
	for _, fragment := range []string{"list_nomination_pools", "ensure_chain_api then retry", "## CRITICAL INSTRUCTIONS"} {
		if !strings.Contains(prompt, fragment) {
			t.Fatalf("prompt missing %q", fragment)
		}
	}

	if strings.Contains(SystemPrompt("", ""), "CURRENT CONNECTION") {
		t.Fatalf("connection block should be omitted without a chain")
	}
	if !strings.Contains(SystemPrompt("west", ""), "**west** (chain ID: \"west\")") {
		t.Fatalf("display name should fall back to the chain id")
	}
}

func TestComposePrompt(t *testing.T) {
	if got := ComposePrompt("base", ""); got != "base" {
		t.Fatalf("unexpected prompt: %q", got)
	}
	if got := ComposePrompt("base", "Answer in French."); got != "base\n\nAdditional instructions: Answer in French." {
		t.Fatalf("unexpected prompt: %q", got)
	}
}
