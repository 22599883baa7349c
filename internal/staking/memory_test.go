package staking

import (
	"context"
	"errors"
	"math/big"
	"slices"
	"strings"
	"testing"
)

func TestMemoryBackendRequiresInitialisedChain(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	if _, err := backend.ListPools(ctx, "paseo"); !errors.Is(err, ErrChainNotInitialized) {
		t.Fatalf("expected ErrChainNotInitialized, got %v", err)
	}
	if _, _, err := backend.MemberPool(ctx, "paseo", testMember); !errors.Is(err, ErrChainNotInitialized) {
		t.Fatalf("expected ErrChainNotInitialized, got %v", err)
	}
	if err := backend.EnsureAPI(ctx, "paseo"); err != nil {
		t.Fatalf("ensure api: %v", err)
	}
	pools, err := backend.ListPools(ctx, "paseo")
	if err != nil {
		t.Fatalf("list pools: %v", err)
	}
	if len(pools) != 3 || pools[0].ID != 1 || pools[2].ID != 3 {
		t.Fatalf("pools should be sorted by id: %+v", pools)
	}

	if err := backend.EnsureAPI(ctx, "paseo_asset_hub"); err != nil {
		t.Fatalf("ensure asset hub: %v", err)
	}
	if _, err := backend.ListPools(ctx, "paseo_asset_hub"); !errors.Is(err, ErrPalletUnavailable) {
		t.Fatalf("asset hub should not expose pools, got %v", err)
	}
	if err := backend.EnsureAPI(ctx, "nowhere"); !errors.Is(err, ErrUnknownChain) {
		t.Fatalf("expected ErrUnknownChain, got %v", err)
	}

	if err := backend.EnsureAPI(ctx, "kusama"); err != nil {
		t.Fatalf("ensure kusama: %v", err)
	}
	if decimals, _ := backend.Decimals(ctx, "kusama"); decimals != 12 {
		t.Fatalf("kusama should default to 12 decimals, got %d", decimals)
	}
	if empty, err := backend.ListPools(ctx, "kusama"); err != nil || len(empty) != 0 {
		t.Fatalf("kusama has no pools: %v, %v", empty, err)
	}
}

func TestMemoryBackendPoolLifecycle(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()
	if err := backend.EnsureAPI(ctx, "paseo"); err != nil {
		t.Fatalf("ensure api: %v", err)
	}

	if _, err := backend.BondExtra(ctx, "paseo", big.NewInt(1)); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
	if _, err := backend.JoinPool(ctx, "paseo", 3, big.NewInt(10)); err == nil || !strings.Contains(err.Error(), "not open") {
		t.Fatalf("destroying pool should reject joins, got %v", err)
	}
	if _, err := backend.JoinPool(ctx, "paseo", 9, big.NewInt(10)); err == nil {
		t.Fatalf("expected missing pool error")
	}

	joined, err := backend.JoinPool(ctx, "paseo", 1, big.NewInt(15_000_000_000))
	if err != nil {
		t.Fatalf("join pool: %v", err)
	}
	if joined.Status != "Finalized" || !strings.HasPrefix(joined.TxHash, "0x") || len(joined.TxHash) != 66 {
		t.Fatalf("unexpected receipt: %+v", joined)
	}
	if !slices.Contains(joined.Events, "NominationPools.Bonded") {
		t.Fatalf("missing bonded event: %v", joined.Events)
	}
	if _, err := backend.JoinPool(ctx, "paseo", 2, big.NewInt(1)); err == nil {
		t.Fatalf("members cannot join a second pool")
	}

	poolID, member, err := backend.MemberPool(ctx, "paseo", testSigner)
	if err != nil || !member || poolID != 1 {
		t.Fatalf("unexpected membership: %d %v %v", poolID, member, err)
	}
	pools, _ := backend.ListPools(ctx, "paseo")
	if pools[0].MemberCount != 3 || pools[0].Points != "65000000000" {
		t.Fatalf("join should update pool: %+v", pools[0])
	}

	extra, err := backend.BondExtra(ctx, "paseo", big.NewInt(5_000_000_000))
	if err != nil {
		t.Fatalf("bond extra: %v", err)
	}
	if extra.TxHash == joined.TxHash {
		t.Fatalf("transaction hashes must differ")
	}
	if _, err := backend.Unbond(ctx, "paseo", big.NewInt(30_000_000_000)); err == nil {
		t.Fatalf("unbonding more than bonded should fail")
	}
	if _, err := backend.WithdrawUnbonded(ctx, "paseo"); err == nil {
		t.Fatalf("nothing to withdraw yet")
	}
	if _, err := backend.Unbond(ctx, "paseo", big.NewInt(20_000_000_000)); err != nil {
		t.Fatalf("unbond: %v", err)
	}
	withdrawn, err := backend.WithdrawUnbonded(ctx, "paseo")
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !slices.Contains(withdrawn.Events, "NominationPools.MemberRemoved") {
		t.Fatalf("fully withdrawn member should leave the pool: %v", withdrawn.Events)
	}
	if _, member, _ := backend.MemberPool(ctx, "paseo", testSigner); member {
		t.Fatalf("member should have left")
	}
	pools, _ = backend.ListPools(ctx, "paseo")
	if pools[0].MemberCount != 2 || pools[0].Points != "50000000000" {
		t.Fatalf("pool should be restored: %+v", pools[0])
	}
}

func TestMemoryBackendClaimRewards(t *testing.T) {
	backend := newBackendAs(t, testMember)
	ctx := context.Background()
	if err := backend.EnsureAPI(ctx, "paseo"); err != nil {
		t.Fatalf("ensure api: %v", err)
	}
	if _, err := backend.ClaimRewards(ctx, "paseo"); err != nil {
		t.Fatalf("claim rewards: %v", err)
	}
	if _, err := backend.ClaimRewards(ctx, "paseo"); err == nil {
		t.Fatalf("second claim should find nothing pending")
	}
}

func TestMemoryBackendRejectsBrokenFixtures(t *testing.T) {
	fixtures := Fixtures{Chains: map[string]ChainFixture{
		"paseo": {Pools: []Pool{{ID: 1}}, Members: []MemberFixture{{Account: "a", PoolID: 2}}},
	}}
	if _, err := NewMemoryBackend(fixtures); err == nil {
		t.Fatalf("member of unknown pool should be rejected")
	}
	fixtures.Chains["paseo"] = ChainFixture{Pools: []Pool{{ID: 1}}, Members: []MemberFixture{{Account: "a", PoolID: 1, Bonded: "-5"}}}
	if _, err := NewMemoryBackend(fixtures); err == nil {
		t.Fatalf("negative balances should be rejected")
	}
	if _, err := ParseFixtures([]byte("chains: [")); err == nil {
		t.Fatalf("invalid yaml should fail")
	}
	if _, err := NewMemoryBackend(Fixtures{}); err != nil {
		t.Fatalf("empty fixtures are valid: %v", err)
	}
}

func TestMemoryBackendWithoutSigner(t *testing.T) {
	backend := newBackendAs(t, "")
	ctx := context.Background()
	_ = backend.EnsureAPI(ctx, "paseo")
	if _, err := backend.JoinPool(ctx, "paseo", 1, big.NewInt(1)); err == nil || !strings.Contains(err.Error(), "signer") {
		t.Fatalf("expected signer error, got %v", err)
	}
}
