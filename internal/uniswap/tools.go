package uniswap

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"DotPilot/internal/tool"
	"DotPilot/internal/web3"
)

// ChainSource 提供链客户端与链配置，由 web3/provider.Registry 实现。
type ChainSource interface {
	Client(name string) (web3.Client, bool)
	Definition(name string) (web3.ChainDefinition, bool)
	DefaultChain() string
	Chains() []string
}

type nativeBalanceArgs struct {
	Chain   string `json:"chain,omitempty" jsonschema:"EVM chain name from the chain configuration; defaults to the configured default chain"`
	Address string `json:"address" jsonschema:"Account address (0x-prefixed hex)"`
}

type tokenBalanceArgs struct {
	Chain string `json:"chain,omitempty" jsonschema:"EVM chain name; defaults to the configured default chain"`
	Token string `json:"token" jsonschema:"Token contract address or configured symbol (e.g., 'WPAS')"`
	Owner string `json:"owner" jsonschema:"Holder address (0x-prefixed hex)"`
}

type pairReservesArgs struct {
	Chain  string `json:"chain,omitempty" jsonschema:"EVM chain name; defaults to the configured default chain"`
	TokenA string `json:"tokenA" jsonschema:"First token address or symbol"`
	TokenB string `json:"tokenB" jsonschema:"Second token address or symbol"`
}

type quoteSwapArgs struct {
	Chain    string   `json:"chain,omitempty" jsonschema:"EVM chain name; defaults to the configured default chain"`
	AmountIn string   `json:"amountIn" jsonschema:"Input amount in whole tokens of the first path entry (e.g., '1.5')"`
	Path     []string `json:"path" jsonschema:"Swap route as token addresses or symbols, input token first"`
}

// NativeBalance 是 get_native_balance 的返回结构。
type NativeBalance struct {
	Chain   string `json:"chain"`
	Address string `json:"address"`
	Symbol  string `json:"symbol,omitempty"`
	Balance string `json:"balance"`
	Raw     string `json:"raw"`
}

// TokenBalance 是 get_token_balance 的返回结构。
type TokenBalance struct {
	Chain   string    `json:"chain"`
	Token   TokenInfo `json:"token"`
	Owner   string    `json:"owner"`
	Balance string    `json:"balance"`
	Raw     string    `json:"raw"`
}

// PairReserves 是 get_pair_reserves 的返回结构。
type PairReserves struct {
	Chain              string    `json:"chain"`
	Pair               string    `json:"pair"`
	Token0             TokenInfo `json:"token0"`
	Token1             TokenInfo `json:"token1"`
	Reserve0           string    `json:"reserve0"`
	Reserve1           string    `json:"reserve1"`
	BlockTimestampLast uint32    `json:"blockTimestampLast"`
}

// SwapQuote 是 quote_swap 的返回结构。
type SwapQuote struct {
	Chain           string   `json:"chain"`
	Path            []string `json:"path"`
	AmountIn        string   `json:"amountIn"`
	AmountOut       string   `json:"amountOut"`
	MinAmountOut    string   `json:"minAmountOut"`
	SlippagePercent float64  `json:"slippagePercent"`
}

// Tools 返回 EVM 只读工具。
func Tools(chains ChainSource) []tool.Descriptor {
	t := &tools{chains: chains}
	return []tool.Descriptor{
		tool.MustNew("get_native_balance",
			"Get the native token balance of an address on an EVM-compatible chain such as Paseo Asset Hub.",
			t.nativeBalance),
		tool.MustNew("get_token_balance",
			"Get the ERC-20 token balance of an owner address.",
			t.tokenBalance),
		tool.MustNew("get_pair_reserves",
			"Get the reserves of the UniswapV2-style pair for two tokens.",
			t.pairReserves),
		tool.MustNew("quote_swap",
			"Quote a token swap through the UniswapV2-style router. Returns the expected output and the minimum output with 1% slippage. Does not execute the swap.",
			t.quoteSwap),
	}
}

type tools struct {
	chains ChainSource
}

type chainContext struct {
	name   string
	client web3.Client
	def    web3.ChainDefinition
}

func (t *tools) chain(name string) (chainContext, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = t.chains.DefaultChain()
	}
	client, ok := t.chains.Client(name)
	if !ok {
		return chainContext{}, fmt.Errorf("unknown EVM chain %q (available: %s)", name, strings.Join(t.chains.Chains(), ", "))
	}
	def, _ := t.chains.Definition(name)
	return chainContext{name: name, client: client, def: def}, nil
}

func (c chainContext) reader() (*Reader, error) {
	return NewReader(c.client.Caller(), hexOrZero(c.def.Factory), hexOrZero(c.def.Router))
}

func (c chainContext) token(ref string) (common.Address, error) {
	addr, ok := c.def.TokenAddress(ref)
	if !ok {
		return common.Address{}, fmt.Errorf("unknown token %q on %s", ref, c.name)
	}
	if !common.IsHexAddress(addr) {
		return common.Address{}, fmt.Errorf("invalid token address %q", addr)
	}
	return common.HexToAddress(addr), nil
}

func hexOrZero(addr string) common.Address {
	if common.IsHexAddress(addr) {
		return common.HexToAddress(addr)
	}
	return common.Address{}
}

func parseAccount(addr string) (common.Address, error) {
	addr = strings.TrimSpace(addr)
	if !common.IsHexAddress(addr) {
		return common.Address{}, fmt.Errorf("invalid address %q", addr)
	}
	return common.HexToAddress(addr), nil
}

func (t *tools) nativeBalance(ctx context.Context, args nativeBalanceArgs) (NativeBalance, error) {
	c, err := t.chain(args.Chain)
	if err != nil {
		return NativeBalance{}, err
	}
	addr, err := parseAccount(args.Address)
	if err != nil {
		return NativeBalance{}, err
	}
	hexBalance, err := c.client.ExecuteAction(ctx, "eth_getBalance", addr.Hex())
	if err != nil {
		return NativeBalance{}, err
	}
	wei, ok := new(big.Int).SetString(strings.TrimPrefix(hexBalance, "0x"), 16)
	if !ok {
		return NativeBalance{}, fmt.Errorf("unexpected balance encoding %q", hexBalance)
	}
	return NativeBalance{
		Chain:   c.name,
		Address: addr.Hex(),
		Symbol:  c.def.NativeSymbol,
		Balance: web3.FormatUnits(wei, c.def.Decimals()),
		Raw:     wei.String(),
	}, nil
}

func (t *tools) tokenBalance(ctx context.Context, args tokenBalanceArgs) (TokenBalance, error) {
	c, err := t.chain(args.Chain)
	if err != nil {
		return TokenBalance{}, err
	}
	token, err := c.token(args.Token)
	if err != nil {
		return TokenBalance{}, err
	}
	owner, err := parseAccount(args.Owner)
	if err != nil {
		return TokenBalance{}, err
	}
	reader, err := c.reader()
	if err != nil {
		return TokenBalance{}, err
	}
	info, err := reader.TokenInfo(ctx, token)
	if err != nil {
		return TokenBalance{}, err
	}
	balance, err := reader.BalanceOf(ctx, token, owner)
	if err != nil {
		return TokenBalance{}, err
	}
	return TokenBalance{
		Chain:   c.name,
		Token:   info,
		Owner:   owner.Hex(),
		Balance: web3.FormatUnits(balance, info.Decimals),
		Raw:     balance.String(),
	}, nil
}

func (t *tools) pairReserves(ctx context.Context, args pairReservesArgs) (PairReserves, error) {
	c, err := t.chain(args.Chain)
	if err != nil {
		return PairReserves{}, err
	}
	tokenA, err := c.token(args.TokenA)
	if err != nil {
		return PairReserves{}, err
	}
	tokenB, err := c.token(args.TokenB)
	if err != nil {
		return PairReserves{}, err
	}
	reader, err := c.reader()
	if err != nil {
		return PairReserves{}, err
	}
	pair, err := reader.PairFor(ctx, tokenA, tokenB)
	if err != nil {
		return PairReserves{}, err
	}
	reserves, err := reader.Reserves(ctx, pair)
	if err != nil {
		return PairReserves{}, err
	}
	token0, err := reader.TokenInfo(ctx, reserves.Token0)
	if err != nil {
		return PairReserves{}, err
	}
	token1, err := reader.TokenInfo(ctx, reserves.Token1)
	if err != nil {
		return PairReserves{}, err
	}
	return PairReserves{
		Chain:              c.name,
		Pair:               pair.Hex(),
		Token0:             token0,
		Token1:             token1,
		Reserve0:           web3.FormatUnits(reserves.Reserve0, token0.Decimals),
		Reserve1:           web3.FormatUnits(reserves.Reserve1, token1.Decimals),
		BlockTimestampLast: reserves.BlockTimestampLast,
	}, nil
}

func (t *tools) quoteSwap(ctx context.Context, args quoteSwapArgs) (SwapQuote, error) {
	c, err := t.chain(args.Chain)
	if err != nil {
		return SwapQuote{}, err
	}
	if len(args.Path) < 2 {
		return SwapQuote{}, fmt.Errorf("path needs at least two tokens")
	}
	path := make([]common.Address, 0, len(args.Path))
	for _, ref := range args.Path {
		addr, err := c.token(ref)
		if err != nil {
			return SwapQuote{}, err
		}
		path = append(path, addr)
	}
	reader, err := c.reader()
	if err != nil {
		return SwapQuote{}, err
	}
	tokenIn, err := reader.TokenInfo(ctx, path[0])
	if err != nil {
		return SwapQuote{}, err
	}
	tokenOut, err := reader.TokenInfo(ctx, path[len(path)-1])
	if err != nil {
		return SwapQuote{}, err
	}
	amountIn, err := web3.ParseUnits(args.AmountIn, tokenIn.Decimals)
	if err != nil {
		return SwapQuote{}, err
	}
	amounts, err := reader.AmountsOut(ctx, amountIn, path)
	if err != nil {
		return SwapQuote{}, err
	}
	out := amounts[len(amounts)-1]

	symbols := make([]string, 0, len(args.Path))
	for _, ref := range args.Path {
		symbols = append(symbols, strings.TrimSpace(ref))
	}
	symbols[0], symbols[len(symbols)-1] = tokenIn.Symbol, tokenOut.Symbol
	return SwapQuote{
		Chain:           c.name,
		Path:            symbols,
		AmountIn:        web3.FormatUnits(amountIn, tokenIn.Decimals),
		AmountOut:       web3.FormatUnits(out, tokenOut.Decimals),
		MinAmountOut:    web3.FormatUnits(MinOut(out), tokenOut.Decimals),
		SlippagePercent: float64(SlippageBasisPoints) / 100,
	}, nil
}
