package uniswap

import (
	"context"
	"math/big"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var (
	wpasAddr    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	usdtAddr    = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	dotAddr     = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	factoryAddr = common.HexToAddress("0x0000000000000000000000000000000000000f01")
	routerAddr  = common.HexToAddress("0x0000000000000000000000000000000000000f02")
	pairAddr    = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	holderAddr  = common.HexToAddress("0x0000000000000000000000000000000000000c01")
)

type fakeContract struct {
	abi abi.ABI
	fn  func(method string, args []any) []any
}

// fakeCaller 按 ABI 解码 eth_call 并返回预设结果。
type fakeCaller struct {
	contracts map[common.Address]fakeContract
}

func (f *fakeCaller) CodeAt(_ context.Context, addr common.Address, _ *big.Int) ([]byte, error) {
	if _, ok := f.contracts[addr]; ok {
		return []byte{0x60, 0x80}, nil
	}
	return nil, nil
}

func (f *fakeCaller) CallContract(_ context.Context, msg gethcore.CallMsg, _ *big.Int) ([]byte, error) {
	c, ok := f.contracts[*msg.To]
	if !ok {
		return nil, nil
	}
	method, err := c.abi.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(c.fn(method.Name, args)...)
}

func erc20(name, symbol string, decimals uint8, balances map[common.Address]*big.Int) fakeContract {
	return fakeContract{abi: erc20ABI, fn: func(method string, args []any) []any {
		switch method {
		case "name":
			return []any{name}
		case "symbol":
			return []any{symbol}
		case "decimals":
			return []any{decimals}
		case "balanceOf":
			if v, ok := balances[args[0].(common.Address)]; ok {
				return []any{v}
			}
			return []any{new(big.Int)}
		case "allowance":
			return []any{big.NewInt(42)}
		}
		return []any{new(big.Int)}
	}}
}

func units(whole int64, decimals int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), new(big.Int).Exp(big.NewInt(10), big.NewInt(decimals), nil))
}

// newFakeDEX 构造 WPAS(18)/USDT(6) 交易对，储备 1000 WPAS 与 5000 USDT，
// 路由按 1 WPAS = 5 USDT 报价。
func newFakeDEX() *fakeCaller {
	return &fakeCaller{contracts: map[common.Address]fakeContract{
		wpasAddr: erc20("Wrapped PAS", "WPAS", 18, nil),
		usdtAddr: erc20("Tether USD", "USDT", 6, map[common.Address]*big.Int{holderAddr: big.NewInt(12_500_000)}),
		factoryAddr: {abi: factoryABI, fn: func(method string, args []any) []any {
			a, b := args[0].(common.Address), args[1].(common.Address)
			if (a == wpasAddr && b == usdtAddr) || (a == usdtAddr && b == wpasAddr) {
				return []any{pairAddr}
			}
			return []any{common.Address{}}
		}},
		pairAddr: {abi: pairABI, fn: func(method string, _ []any) []any {
			switch method {
			case "token0":
				return []any{wpasAddr}
			case "token1":
				return []any{usdtAddr}
			}
			return []any{units(1000, 18), units(5000, 6), uint32(1_700_000_000)}
		}},
		routerAddr: {abi: routerABI, fn: func(_ string, args []any) []any {
			in := args[0].(*big.Int)
			out := new(big.Int).Mul(in, big.NewInt(5_000_000))
			out.Quo(out, units(1, 18))
			return []any{[]*big.Int{in, out}}
		}},
	}}
}
