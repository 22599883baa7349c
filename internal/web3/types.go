package web3

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
)

// ChainSnapshot represents summarized network metadata for UI/reporting.
type ChainSnapshot struct {
	ChainID     string `json:"chainId"`
	BlockNumber string `json:"blockNumber"`
	Notes       string `json:"notes,omitempty"`
}

// Client defines the read-only interface the agent tools need from a chain.
type Client interface {
	FetchChainSnapshot(ctx context.Context) (ChainSnapshot, error)
	// ExecuteAction runs a single JSON-RPC style query such as eth_getBalance
	// and returns the hex encoded result.
	ExecuteAction(ctx context.Context, action, address string) (string, error)
	// Caller exposes eth_call access for contract bindings.
	Caller() bind.ContractCaller
	Close()
}
