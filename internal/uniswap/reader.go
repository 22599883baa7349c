package uniswap

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrPairNotFound 表示工厂合约中不存在该交易对。
	ErrPairNotFound = errors.New("pair not found")
	// ErrNoCode 表示目标地址没有部署合约。
	ErrNoCode = errors.New("no contract code at address")
	// ErrNoRouter 表示链配置中缺少路由合约地址。
	ErrNoRouter = errors.New("router address not configured")
	// ErrNoFactory 表示链配置中缺少工厂合约地址。
	ErrNoFactory = errors.New("factory address not configured")
)

// SlippageBasisPoints 是 MinOut 使用的滑点，100 即 1%。
const SlippageBasisPoints = 100

// TokenInfo 是 ERC-20 的元数据。
type TokenInfo struct {
	Address  common.Address `json:"address"`
	Name     string         `json:"name"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}

// Reserves 是交易对的储备量。
type Reserves struct {
	Pair               common.Address `json:"pair"`
	Token0             common.Address `json:"token0"`
	Token1             common.Address `json:"token1"`
	Reserve0           *big.Int       `json:"reserve0"`
	Reserve1           *big.Int       `json:"reserve1"`
	BlockTimestampLast uint32         `json:"blockTimestampLast"`
}

// Reader 通过 eth_call 读取 UniswapV2 工厂、交易对、路由与 ERC-20 合约。
type Reader struct {
	caller  bind.ContractCaller
	factory common.Address
	router  common.Address
}

// NewReader 创建 Reader。factory 或 router 为零地址时相应的方法返回错误。
func NewReader(caller bind.ContractCaller, factory, router common.Address) (*Reader, error) {
	if caller == nil {
		return nil, errors.New("缺少合约调用后端")
	}
	return &Reader{caller: caller, factory: factory, router: router}, nil
}

// call 打包参数、执行 eth_call 并解包结果。空返回时检查目标地址是否有代码。
func (r *Reader) call(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("打包 %s 参数失败: %w", method, err)
	}
	out, err := r.caller.CallContract(ctx, gethcore.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("调用 %s 失败: %w", method, err)
	}
	if len(out) == 0 {
		code, err := r.caller.CodeAt(ctx, to, nil)
		if err != nil {
			return nil, fmt.Errorf("查询合约代码失败: %w", err)
		}
		if len(code) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoCode, to.Hex())
		}
	}
	values, err := contract.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("解析 %s 返回值失败: %w", method, err)
	}
	return values, nil
}

// PairFor 返回两个代币的交易对地址。
func (r *Reader) PairFor(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error) {
	if r.factory == (common.Address{}) {
		return common.Address{}, ErrNoFactory
	}
	values, err := r.call(ctx, factoryABI, r.factory, "getPair", tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}
	pair := *abi.ConvertType(values[0], new(common.Address)).(*common.Address)
	if pair == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: %s/%s", ErrPairNotFound, tokenA.Hex(), tokenB.Hex())
	}
	return pair, nil
}

// Reserves 读取交易对的代币与储备量。
func (r *Reader) Reserves(ctx context.Context, pair common.Address) (Reserves, error) {
	res := Reserves{Pair: pair}
	values, err := r.call(ctx, pairABI, pair, "getReserves")
	if err != nil {
		return Reserves{}, err
	}
	res.Reserve0 = *abi.ConvertType(values[0], new(*big.Int)).(**big.Int)
	res.Reserve1 = *abi.ConvertType(values[1], new(*big.Int)).(**big.Int)
	res.BlockTimestampLast = *abi.ConvertType(values[2], new(uint32)).(*uint32)

	if res.Token0, err = r.address(ctx, pair, "token0"); err != nil {
		return Reserves{}, err
	}
	if res.Token1, err = r.address(ctx, pair, "token1"); err != nil {
		return Reserves{}, err
	}
	return res, nil
}

func (r *Reader) address(ctx context.Context, pair common.Address, method string) (common.Address, error) {
	values, err := r.call(ctx, pairABI, pair, method)
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(values[0], new(common.Address)).(*common.Address), nil
}

// AmountsOut 通过路由合约报价，返回路径上每一跳的数量。
func (r *Reader) AmountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	if r.router == (common.Address{}) {
		return nil, ErrNoRouter
	}
	if len(path) < 2 {
		return nil, errors.New("swap path needs at least two tokens")
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, errors.New("amountIn must be positive")
	}
	values, err := r.call(ctx, routerABI, r.router, "getAmountsOut", amountIn, path)
	if err != nil {
		return nil, err
	}
	amounts := *abi.ConvertType(values[0], new([]*big.Int)).(*[]*big.Int)
	if len(amounts) != len(path) {
		return nil, fmt.Errorf("router returned %d amounts for a %d-token path", len(amounts), len(path))
	}
	return amounts, nil
}

// TokenInfo 读取代币名称、符号与精度。
func (r *Reader) TokenInfo(ctx context.Context, token common.Address) (TokenInfo, error) {
	info := TokenInfo{Address: token}
	values, err := r.call(ctx, erc20ABI, token, "name")
	if err != nil {
		return TokenInfo{}, err
	}
	info.Name = *abi.ConvertType(values[0], new(string)).(*string)
	if values, err = r.call(ctx, erc20ABI, token, "symbol"); err != nil {
		return TokenInfo{}, err
	}
	info.Symbol = *abi.ConvertType(values[0], new(string)).(*string)
	if values, err = r.call(ctx, erc20ABI, token, "decimals"); err != nil {
		return TokenInfo{}, err
	}
	info.Decimals = *abi.ConvertType(values[0], new(uint8)).(*uint8)
	return info, nil
}

// BalanceOf 返回 owner 持有的代币数量（最小单位）。
func (r *Reader) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	values, err := r.call(ctx, erc20ABI, token, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(values[0], new(*big.Int)).(**big.Int), nil
}

// Allowance 返回 owner 授权给 spender 的额度。
func (r *Reader) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	values, err := r.call(ctx, erc20ABI, token, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(values[0], new(*big.Int)).(**big.Int), nil
}

// MinOut 按 1% 滑点计算最少到手数量，即 amount×99/100。
func MinOut(amount *big.Int) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amount, big.NewInt(10_000-SlippageBasisPoints))
	return out.Quo(out, big.NewInt(10_000))
}
