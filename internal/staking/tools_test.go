package staking

import (
	"context"
	"encoding/json"
	"testing"

	xerrors "DotPilot/internal/errors"
	"DotPilot/internal/tool"
)

func newToolRegistry(t *testing.T, backend Backend) *tool.Registry {
	t.Helper()
	registry, err := tool.NewRegistry(Tools(backend)...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return registry
}

func invoke(t *testing.T, registry *tool.Registry, name, args string) (any, error) {
	t.Helper()
	return registry.Invoke(context.Background(), name, json.RawMessage(args))
}

func TestToolsAreRegistered(t *testing.T) {
	registry := newToolRegistry(t, newTestBackend(t))
	want := []string{"list_nomination_pools", "check_user_pool", "ensure_chain_api", "join_pool", "bond_extra", "unbond", "withdraw_unbonded", "claim_rewards"}
	names := registry.Names()
	if len(names) != len(want) {
		t.Fatalf("unexpected tools: %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("tool %d = %s, want %s", i, names[i], want[i])
		}
	}
	for _, name := range want {
		writes := name != "list_nomination_pools" && name != "check_user_pool" && name != "ensure_chain_api"
		if registry.SideEffects(name) != writes {
			t.Fatalf("%s side effects = %v, want %v", name, registry.SideEffects(name), writes)
		}
	}
	params, _ := registry.Parameters("join_pool")
	required, _ := params["required"].([]any)
	if len(required) != 3 {
		t.Fatalf("join_pool should require chain, poolId and amount: %v", params)
	}
}

func TestListPoolsToolGuidesInitialisation(t *testing.T) {
	registry := newToolRegistry(t, newTestBackend(t))

	_, err := invoke(t, registry, "list_nomination_pools", `{"chain":"paseo"}`)
	want := `Chain API not initialized for "paseo". Please call ensure_chain_api first with chainId: "paseo"`
	if err == nil || err.Error() != want {
		t.Fatalf("unexpected error: %v", err)
	}

	status, err := invoke(t, registry, "ensure_chain_api", `{"chainId":"paseo"}`)
	if err != nil {
		t.Fatalf("ensure_chain_api: %v", err)
	}
	if got := status.(ChainAPIStatus); !got.Success || got.Message != "Initialized API for paseo" {
		t.Fatalf("unexpected status: %+v", got)
	}

	result, err := invoke(t, registry, "list_nomination_pools", `{"chain":"paseo"}`)
	if err != nil {
		t.Fatalf("list pools: %v", err)
	}
	listing := result.(PoolListing)
	if listing.PoolCount != 3 || listing.Message != "Found 3 nomination pool(s)." || listing.Pools[2].State != "Destroying" {
		t.Fatalf("unexpected listing: %+v", listing)
	}
	if listing.Pools[1].Roles.Root == nil || listing.Pools[0].Roles.Root != nil {
		t.Fatalf("optional roles should be preserved: %+v", listing.Pools)
	}

	_, _ = invoke(t, registry, "ensure_chain_api", `{"chainId":"paseo_asset_hub"}`)
	_, err = invoke(t, registry, "list_nomination_pools", `{"chain":"paseo_asset_hub"}`)
	if err == nil || err.Error() != "NominationPools pallet not available on paseo_asset_hub. Nomination pools only exist on relay chains." {
		t.Fatalf("unexpected asset hub error: %v", err)
	}
}

func TestCheckUserPoolTool(t *testing.T) {
	registry := newToolRegistry(t, newTestBackend(t))
	_, _ = invoke(t, registry, "ensure_chain_api", `{"chainId":"paseo"}`)

	result, err := invoke(t, registry, "check_user_pool", `{"chain":"paseo","account":"  `+testMember+` "}`)
	if err != nil {
		t.Fatalf("check_user_pool: %v", err)
	}
	membership := result.(Membership)
	if !membership.Joined || membership.PoolID == nil || *membership.PoolID != 2 || membership.Account != testMember {
		t.Fatalf("unexpected membership: %+v", membership)
	}

	result, err = invoke(t, registry, "check_user_pool", `{"chain":"paseo","account":"`+testSigner+`"}`)
	if err != nil {
		t.Fatalf("check_user_pool: %v", err)
	}
	encoded, _ := json.Marshal(result)
	var payload map[string]any
	_ = json.Unmarshal(encoded, &payload)
	if payload["joined"] != false || payload["message"] == nil {
		t.Fatalf("unexpected payload: %s", encoded)
	}
	if _, ok := payload["poolId"]; ok {
		t.Fatalf("poolId should be omitted when not joined: %s", encoded)
	}
}

func TestTransactionTools(t *testing.T) {
	registry := newToolRegistry(t, newTestBackend(t))
	_, _ = invoke(t, registry, "ensure_chain_api", `{"chainId":"paseo"}`)

	result, err := invoke(t, registry, "join_pool", `{"chain":"paseo","poolId":1,"amount":"1.5"}`)
	if err != nil {
		t.Fatalf("join_pool: %v", err)
	}
	if tx := result.(TxResult); tx.Status != "Finalized" || tx.BlockHash == "" {
		t.Fatalf("unexpected tx: %+v", tx)
	}
	if _, err := invoke(t, registry, "bond_extra", `{"chain":"paseo","amount":"0.00000000001"}`); err == nil {
		t.Fatalf("amounts finer than the chain precision should fail")
	}
	if _, err := invoke(t, registry, "unbond", `{"chain":"paseo","amount":"1.5"}`); err != nil {
		t.Fatalf("unbond: %v", err)
	}
	if _, err := invoke(t, registry, "withdraw_unbonded", `{"chain":"paseo"}`); err != nil {
		t.Fatalf("withdraw_unbonded: %v", err)
	}
	if _, err := invoke(t, registry, "claim_rewards", `{"chain":"paseo"}`); err == nil {
		t.Fatalf("claim without membership should fail")
	}
	_, err = invoke(t, registry, "bond_extra", `{"chain":"west","amount":"1"}`)
	if err == nil || err.Error() != `Chain API not initialized for "west". Please call ensure_chain_api first with chainId: "west"` {
		t.Fatalf("uninitialised chain should be reported, got %v", err)
	}
}

func TestToolArgumentValidation(t *testing.T) {
	registry := newToolRegistry(t, newTestBackend(t))
	if _, err := invoke(t, registry, "join_pool", `{"chain":"paseo","amount":"1"}`); !xerrors.IsCode(err, xerrors.CodeToolInvocation) {
		t.Fatalf("missing poolId should fail validation, got %v", err)
	}
	if _, err := invoke(t, registry, "list_nomination_pools", `{"chain":"  "}`); err == nil || err.Error() != "chain is required" {
		t.Fatalf("blank chain should be rejected, got %v", err)
	}
}

func TestUndeclaredArgumentsAreIgnored(t *testing.T) {
	registry := newToolRegistry(t, newTestBackend(t))
	if _, err := invoke(t, registry, "ensure_chain_api", `{"chainId":"paseo"}`); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	out, err := invoke(t, registry, "list_nomination_pools", `{"chain":"paseo","limit":5}`)
	if err != nil {
		t.Fatalf("extra limit argument should not fail the call: %v", err)
	}
	if _, ok := out.(PoolListing); !ok {
		t.Fatalf("unexpected result type %T", out)
	}
}
