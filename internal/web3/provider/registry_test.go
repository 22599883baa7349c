package provider

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"

	"DotPilot/internal/config"
	"DotPilot/internal/web3"
)

type stubClient struct{ closed bool }

func (s *stubClient) FetchChainSnapshot(context.Context) (web3.ChainSnapshot, error) {
	return web3.ChainSnapshot{}, nil
}
func (s *stubClient) ExecuteAction(context.Context, string, string) (string, error) { return "0x0", nil }
func (s *stubClient) Caller() bind.ContractCaller                                   { return nil }
func (s *stubClient) Close()                                                        { s.closed = true }

func TestStaticRegistry(t *testing.T) {
	a, b := &stubClient{}, &stubClient{}
	registry, err := NewStaticRegistry("", map[string]web3.Client{"zeta": a, "alpha": b},
		map[string]web3.ChainDefinition{"alpha": {ChainID: 7}})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if registry.DefaultChain() != "alpha" {
		t.Fatalf("default should be the first chain alphabetically, got %s", registry.DefaultChain())
	}
	if client, ok := registry.Client(""); !ok || client != b {
		t.Fatalf("empty name should resolve the default client")
	}
	if def, ok := registry.Definition(""); !ok || def.ChainID != 7 {
		t.Fatalf("unexpected default definition: %+v %v", def, ok)
	}
	if _, ok := registry.Definition("zeta"); ok {
		t.Fatalf("zeta has no definition")
	}
	if got := registry.Chains(); len(got) != 2 || got[0] != "alpha" {
		t.Fatalf("unexpected chains %v", got)
	}
	registry.Close()
	if !a.closed || !b.closed || len(registry.Chains()) != 0 {
		t.Fatalf("close should release every client")
	}
}

func TestStaticRegistryErrors(t *testing.T) {
	if _, err := NewStaticRegistry("", nil, nil); err == nil {
		t.Fatalf("expected error without clients")
	}
	c := &stubClient{}
	if _, err := NewStaticRegistry("missing", map[string]web3.Client{"alpha": c}, nil); err == nil || !c.closed {
		t.Fatalf("unknown default should fail and close clients, err=%v", err)
	}
}

func TestNewRegistryWithoutEndpoints(t *testing.T) {
	if _, err := NewRegistry(context.Background(), config.Web3Config{}); err == nil {
		t.Fatalf("expected error when no chain is configured")
	}
}
