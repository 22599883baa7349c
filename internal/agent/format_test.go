package agent

import (
	"strings"
	"testing"
)

type poolRoles struct {
	Depositor string `json:"depositor"`
	Root      string `json:"root,omitempty"`
}

type poolView struct {
	ID          int       `json:"id"`
	MemberCount int       `json:"memberCount"`
	State       string    `json:"state,omitempty"`
	Roles       poolRoles `json:"roles"`
}

type listingView struct {
	Chain     string     `json:"chain"`
	PoolCount int        `json:"poolCount"`
	Pools     []poolView `json:"pools"`
	Message   string     `json:"message,omitempty"`
}

func TestFormatPoolListingFromTypedResult(t *testing.T) {
	listing := listingView{
		Chain:     "paseo",
		PoolCount: 1,
		Pools: []poolView{{
			ID:          12,
			MemberCount: 5,
			State:       "Open",
			Roles:       poolRoles{Depositor: "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"},
		}},
		Message: "Found 1 nomination pool(s).",
	}
	out := FormatToolResults([]ToolInvocationRecord{{Tool: "list_nomination_pools", Result: listing, Success: true}})

	for _, want := range []string{
		"**Nomination Pools Information**",
		"Found **1** pool(s) on **paseo**:",
		"**Pool #12**",
		"- State: Open",
		"- Members: 5",
		"- Depositor: 5GrwvaEF...GKutQY",
		"*Found 1 nomination pool(s).*",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "- Root:") {
		t.Fatalf("empty root should be omitted:\n%s", out)
	}
}

func TestFormatEmptyPoolListing(t *testing.T) {
	out := FormatToolResults([]ToolInvocationRecord{{
		Tool:    "list_nomination_pools",
		Result:  map[string]any{"chain": "kusama", "pools": []any{}},
		Success: true,
	}})
	if out != "**Nomination Pools Information**\n\nNo nomination pools found on kusama." {
		t.Fatalf("unexpected rendering: %q", out)
	}
}

func TestFormatPoolErrorPayload(t *testing.T) {
	out := formatPoolInfo(map[string]any{"error": "rpc unavailable", "hint": "retry later"})
	if !strings.Contains(out, "**Error:** rpc unavailable") || !strings.Contains(out, "*Hint: retry later*") {
		t.Fatalf("unexpected rendering: %q", out)
	}
	if formatPoolInfo(nil) != "No pool information available." {
		t.Fatalf("nil pool info rendering changed")
	}
}

func TestFormatTransactionAndGenericResults(t *testing.T) {
	records := []ToolInvocationRecord{
		{
			Tool: "join_pool",
			Result: map[string]any{
				"status":    "InBlock",
				"blockHash": "0x1234567890abcdef1234567890abcdef",
				"events":    []any{"a", "b"},
			},
			Success: true,
		},
		{Tool: "claim_rewards", Success: true},
		{Tool: "ensure_chain_api", Result: map[string]any{"ready": true}, Success: true},
		{Tool: "unbond", Error: "insufficient bonded balance"},
	}
	out := FormatToolResults(records)
	for _, want := range []string{
		"**Pool Joined Successfully!**\n- Status: InBlock\n- Block Hash: 0x123456...abcdef\n- Events: 2 event(s)\n",
		"\n\n**Rewards Claimed!**\nTransaction completed.\n\n",
		"**Ensure Chain Api Result:**\n```json\n",
		`"ready": true`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if !strings.HasSuffix(out, "\n\n**Error in unbond:** insufficient bonded balance") {
		t.Fatalf("unexpected error rendering:\n%s", out)
	}
}

func TestTruncateAddress(t *testing.T) {
	if got := truncateAddress("short"); got != "short" {
		t.Fatalf("short values must be untouched, got %q", got)
	}
	if got := truncateAddress("0123456789abcdef"); got != "01234567...abcdef" {
		t.Fatalf("unexpected truncation: %q", got)
	}
}

func TestOutputContainsToolData(t *testing.T) {
	records := []ToolInvocationRecord{{
		Tool:    "list_nomination_pools",
		Result:  listingView{Chain: "paseo", Pools: []poolView{{ID: 314, MemberCount: 27}}},
		Success: true,
	}}
	if !OutputContainsToolData("Pool 314 looks healthy.", records) {
		t.Fatalf("pool id mention should count")
	}
	if !OutputContainsToolData("It has 27 members.", records) {
		t.Fatalf("member count mention should count")
	}
	if OutputContainsToolData("Everything looks healthy.", records) {
		t.Fatalf("missing mention should be reported")
	}

	others := []ToolInvocationRecord{
		{Tool: "claim_rewards", Result: map[string]any{"status": "ok"}, Success: true},
		{Tool: "list_nomination_pools", Error: "boom"},
		{Tool: "list_nomination_pools", Result: map[string]any{"pools": []any{}}, Success: true},
	}
	if !OutputContainsToolData("anything", others) {
		t.Fatalf("records without pool data should not trigger the check")
	}
}

func TestFinalizeOutput(t *testing.T) {
	if got := finalizeOutput("ok", nil); got != "ok" {
		t.Fatalf("answers without tool results must pass through, got %q", got)
	}
	records := []ToolInvocationRecord{{Tool: "withdraw_unbonded", Success: true}}
	if got := finalizeOutput("   done   ", records); got != "**Withdrawal Successful!**\nTransaction completed." {
		t.Fatalf("short answer should be replaced, got %q", got)
	}
}
