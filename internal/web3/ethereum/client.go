package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"DotPilot/internal/web3"
)

// Config describes how to construct an EVM compatible client.
type Config struct {
	Name   string
	RPCURL string
	Notes  string
}

// Backend is the subset of go-ethereum client methods the agent relies on.
// Both *ethclient.Client and the simulated backend client satisfy it.
type Backend interface {
	bind.ContractCaller
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// Client implements the web3.Client interface for EVM compatible chains.
type Client struct {
	name    string
	notes   string
	backend Backend

	mu      sync.Mutex
	closers []func()
}

// NewClient dials the configured RPC endpoint and returns a ready-to-use client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("未配置 EVM RPC 地址")
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接 EVM 节点失败: %w", err)
	}
	eth := ethclient.NewClient(rpcClient)
	client := NewBackendClient(cfg.Name, cfg.Notes, eth)
	client.closers = append(client.closers, eth.Close)
	return client, nil
}

// NewBackendClient wraps an existing backend, for example a simulated chain in tests.
func NewBackendClient(name, notes string, backend Backend) *Client {
	return &Client{name: name, notes: notes, backend: backend}
}

// Name returns the chain name the client was registered under.
func (c *Client) Name() string { return c.name }

// Caller exposes eth_call access for contract readers.
func (c *Client) Caller() bind.ContractCaller {
	if c == nil {
		return nil
	}
	return c.backend
}

// Close releases network connections held by the client.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, closeFn := range c.closers {
		closeFn()
	}
	c.closers = nil
}

// FetchChainSnapshot gathers lightweight metadata from the chain.
func (c *Client) FetchChainSnapshot(ctx context.Context) (web3.ChainSnapshot, error) {
	if c == nil || c.backend == nil {
		return web3.ChainSnapshot{}, errors.New("未初始化的 EVM 客户端")
	}
	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return web3.ChainSnapshot{}, fmt.Errorf("获取链 ID 失败: %w", err)
	}
	blockNumber, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return web3.ChainSnapshot{}, fmt.Errorf("获取最新区块高度失败: %w", err)
	}
	return web3.ChainSnapshot{
		ChainID:     toHexBig(chainID),
		BlockNumber: fmt.Sprintf("0x%x", blockNumber),
		Notes:       c.notes,
	}, nil
}

// ExecuteAction runs small helper RPC calls for the agent layer.
func (c *Client) ExecuteAction(ctx context.Context, action, address string) (string, error) {
	if c == nil || c.backend == nil {
		return "", errors.New("未初始化的 EVM 客户端")
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return "", errors.New("链上操作不能为空")
	}

	switch action {
	case "eth_chainId":
		id, err := c.backend.ChainID(ctx)
		if err != nil {
			return "", fmt.Errorf("获取链 ID 失败: %w", err)
		}
		return toHexBig(id), nil
	case "eth_blockNumber":
		n, err := c.backend.BlockNumber(ctx)
		if err != nil {
			return "", fmt.Errorf("获取最新区块高度失败: %w", err)
		}
		return fmt.Sprintf("0x%x", n), nil
	case "eth_getBalance":
		addr, err := parseAddress(action, address)
		if err != nil {
			return "", err
		}
		balance, err := c.backend.BalanceAt(ctx, addr, nil)
		if err != nil {
			return "", fmt.Errorf("查询余额失败: %w", err)
		}
		return toHexBig(balance), nil
	case "eth_getTransactionCount":
		addr, err := parseAddress(action, address)
		if err != nil {
			return "", err
		}
		nonce, err := c.backend.PendingNonceAt(ctx, addr)
		if err != nil {
			return "", fmt.Errorf("查询交易计数失败: %w", err)
		}
		return fmt.Sprintf("0x%x", nonce), nil
	default:
		return "", fmt.Errorf("暂不支持的链上操作: %s", action)
	}
}

func parseAddress(action, address string) (common.Address, error) {
	addr := strings.TrimSpace(address)
	if addr == "" {
		return common.Address{}, fmt.Errorf("%s 需要提供地址", action)
	}
	if !common.IsHexAddress(addr) {
		return common.Address{}, fmt.Errorf("非法的 EVM 地址: %s", addr)
	}
	return common.HexToAddress(addr), nil
}

func toHexBig(n *big.Int) string {
	if n == nil {
		return "0x0"
	}
	return "0x" + n.Text(16)
}

var _ web3.Client = (*Client)(nil)
