package staking

import (
	"context"
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrChainNotInitialized 表示链 API 尚未通过 EnsureAPI 初始化。
	ErrChainNotInitialized = errors.New("chain api not initialized")
	// ErrPalletUnavailable 表示链上没有 NominationPools 模块。
	ErrPalletUnavailable = errors.New("nomination pools pallet not available")
	// ErrUnknownChain 表示链 ID 不受支持。
	ErrUnknownChain = errors.New("unknown chain")
	// ErrNotMember 表示签名账户不在任何提名池中。
	ErrNotMember = errors.New("account is not a pool member")
)

// Backend 抽象了提名池所需的链上读写能力。
//
// 除 EnsureAPI 外，所有方法在链未初始化时返回 ErrChainNotInitialized。
// 交易类方法由后端持有的签名账户发起，amount 以最小单位计。
type Backend interface {
	EnsureAPI(ctx context.Context, chain string) error
	ListPools(ctx context.Context, chain string) ([]Pool, error)
	MemberPool(ctx context.Context, chain, account string) (poolID uint32, joined bool, err error)
	Decimals(ctx context.Context, chain string) (uint8, error)
	JoinPool(ctx context.Context, chain string, poolID uint32, amount *big.Int) (TxResult, error)
	BondExtra(ctx context.Context, chain string, amount *big.Int) (TxResult, error)
	Unbond(ctx context.Context, chain string, amount *big.Int) (TxResult, error)
	WithdrawUnbonded(ctx context.Context, chain string) (TxResult, error)
	ClaimRewards(ctx context.Context, chain string) (TxResult, error)
}

// describeChainError 把后端错误转换成面向模型的提示文本。
func describeChainError(chain string, err error) error {
	switch {
	case errors.Is(err, ErrChainNotInitialized):
		return fmt.Errorf("Chain API not initialized for %q. Please call ensure_chain_api first with chainId: %q", chain, chain)
	case errors.Is(err, ErrPalletUnavailable):
		return fmt.Errorf("NominationPools pallet not available on %s. Nomination pools only exist on relay chains.", chain)
	default:
		return err
	}
}
