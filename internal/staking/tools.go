package staking

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"DotPilot/internal/tool"
)

type listPoolsArgs struct {
	Chain string `json:"chain" jsonschema:"The relay chain to query pools from (e.g., 'paseo', 'west', 'polkadot', 'kusama'). Nomination pools exist on relay chains, not asset hub chains."`
}

type checkUserPoolArgs struct {
	Chain   string `json:"chain" jsonschema:"Chain to query (e.g., 'paseo', 'west', 'polkadot')"`
	Account string `json:"account" jsonschema:"Account address to check (SS58)"`
}

type ensureChainArgs struct {
	ChainID string `json:"chainId" jsonschema:"The chain ID to initialize (e.g., 'paseo', 'west_asset_hub', 'polkadot_asset_hub')"`
}

type joinPoolArgs struct {
	Chain  string `json:"chain" jsonschema:"The relay chain hosting the pool (e.g., 'paseo', 'west')"`
	PoolID uint32 `json:"poolId" jsonschema:"ID of the nomination pool to join"`
	Amount string `json:"amount" jsonschema:"Amount to bond in whole tokens, decimals allowed (e.g., '1.5')"`
}

type amountArgs struct {
	Chain  string `json:"chain" jsonschema:"The relay chain of the pool the account belongs to"`
	Amount string `json:"amount" jsonschema:"Amount in whole tokens, decimals allowed (e.g., '10')"`
}

type chainOnlyArgs struct {
	Chain string `json:"chain" jsonschema:"The relay chain of the pool the account belongs to"`
}

// Tools 返回基于 backend 的全部提名池工具，提交交易的工具标记为有副作用。
func Tools(backend Backend) []tool.Descriptor {
	t := &tools{backend: backend}
	return []tool.Descriptor{
		tool.MustNew("list_nomination_pools",
			"Get information about all nomination pools on a specific relay chain. Returns pool IDs, states, member counts, and other details. Nomination pools exist on RELAY chains like 'paseo', 'west', 'polkadot', 'kusama', NOT on asset hub chains.",
			t.listPools),
		tool.MustNew("check_user_pool",
			"Check which nomination pool (if any) an account has joined on a given chain.",
			t.checkUserPool),
		tool.MustNew("ensure_chain_api",
			"Initialize the API connection for a specific chain. Call this when you encounter 'API not found' or 'chain not initialized' errors.",
			t.ensureChainAPI),
		tool.MustNew("join_pool",
			"Join a nomination pool by bonding the given amount from the connected account.",
			t.joinPool).WithSideEffects(),
		tool.MustNew("bond_extra",
			"Bond additional funds into the nomination pool the connected account already belongs to.",
			t.bondExtra).WithSideEffects(),
		tool.MustNew("unbond",
			"Start unbonding part of the connected account's stake in its nomination pool.",
			t.unbond).WithSideEffects(),
		tool.MustNew("withdraw_unbonded",
			"Withdraw funds that have finished unbonding from the nomination pool.",
			t.withdrawUnbonded).WithSideEffects(),
		tool.MustNew("claim_rewards",
			"Claim pending nomination pool rewards for the connected account.",
			t.claimRewards).WithSideEffects(),
	}
}

type tools struct {
	backend Backend
}

func requireChain(chain string) (string, error) {
	chain = strings.TrimSpace(chain)
	if chain == "" {
		return "", fmt.Errorf("chain is required")
	}
	return chain, nil
}

func (t *tools) listPools(ctx context.Context, args listPoolsArgs) (PoolListing, error) {
	chain, err := requireChain(args.Chain)
	if err != nil {
		return PoolListing{}, err
	}
	pools, err := t.backend.ListPools(ctx, chain)
	if err != nil {
		return PoolListing{}, describeChainError(chain, err)
	}
	return NewPoolListing(chain, pools), nil
}

func (t *tools) checkUserPool(ctx context.Context, args checkUserPoolArgs) (Membership, error) {
	chain, err := requireChain(args.Chain)
	if err != nil {
		return Membership{}, err
	}
	account := strings.TrimSpace(args.Account)
	if account == "" {
		return Membership{}, fmt.Errorf("account is required")
	}
	poolID, joined, err := t.backend.MemberPool(ctx, chain, account)
	if err != nil {
		return Membership{}, describeChainError(chain, err)
	}
	if !joined {
		return Membership{
			Chain:   chain,
			Account: account,
			Message: "Account is not a member of any nomination pool, or membership storage layout couldn't be detected.",
		}, nil
	}
	return Membership{Chain: chain, Account: account, Joined: true, PoolID: &poolID}, nil
}

func (t *tools) ensureChainAPI(ctx context.Context, args ensureChainArgs) (ChainAPIStatus, error) {
	chainID := strings.TrimSpace(args.ChainID)
	if chainID == "" {
		return ChainAPIStatus{}, fmt.Errorf("chainId is required")
	}
	if err := t.backend.EnsureAPI(ctx, chainID); err != nil {
		return ChainAPIStatus{}, fmt.Errorf("failed to initialize API for %s: %w", chainID, err)
	}
	return ChainAPIStatus{Success: true, ChainID: chainID, Message: "Initialized API for " + chainID}, nil
}

// planck 按链精度换算金额。
func (t *tools) planck(ctx context.Context, chain, amount string) (*big.Int, error) {
	decimals, err := t.backend.Decimals(ctx, chain)
	if err != nil {
		return nil, describeChainError(chain, err)
	}
	return ParseAmount(amount, decimals)
}

func (t *tools) joinPool(ctx context.Context, args joinPoolArgs) (TxResult, error) {
	chain, err := requireChain(args.Chain)
	if err != nil {
		return TxResult{}, err
	}
	value, err := t.planck(ctx, chain, args.Amount)
	if err != nil {
		return TxResult{}, err
	}
	res, err := t.backend.JoinPool(ctx, chain, args.PoolID, value)
	return res, describeChainError(chain, err)
}

func (t *tools) bondExtra(ctx context.Context, args amountArgs) (TxResult, error) {
	chain, err := requireChain(args.Chain)
	if err != nil {
		return TxResult{}, err
	}
	value, err := t.planck(ctx, chain, args.Amount)
	if err != nil {
		return TxResult{}, err
	}
	res, err := t.backend.BondExtra(ctx, chain, value)
	return res, describeChainError(chain, err)
}

func (t *tools) unbond(ctx context.Context, args amountArgs) (TxResult, error) {
	chain, err := requireChain(args.Chain)
	if err != nil {
		return TxResult{}, err
	}
	value, err := t.planck(ctx, chain, args.Amount)
	if err != nil {
		return TxResult{}, err
	}
	res, err := t.backend.Unbond(ctx, chain, value)
	return res, describeChainError(chain, err)
}

func (t *tools) withdrawUnbonded(ctx context.Context, args chainOnlyArgs) (TxResult, error) {
	chain, err := requireChain(args.Chain)
	if err != nil {
		return TxResult{}, err
	}
	res, err := t.backend.WithdrawUnbonded(ctx, chain)
	return res, describeChainError(chain, err)
}

func (t *tools) claimRewards(ctx context.Context, args chainOnlyArgs) (TxResult, error) {
	chain, err := requireChain(args.Chain)
	if err != nil {
		return TxResult{}, err
	}
	res, err := t.backend.ClaimRewards(ctx, chain)
	return res, describeChainError(chain, err)
}
