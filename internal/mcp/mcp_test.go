package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"DotPilot/internal/config"
	xerrors "DotPilot/internal/errors"
	"DotPilot/internal/tool"
)

type greetArgs struct {
	Name string `json:"name" jsonschema:"Who to greet"`
}

type greeting struct {
	Message string `json:"message"`
	Length  int    `json:"length"`
}

func localRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	registry, err := tool.NewRegistry(
		tool.MustNew("greet", "Greets someone", func(_ context.Context, args greetArgs) (greeting, error) {
			return greeting{Message: "hello " + args.Name, Length: len(args.Name)}, nil
		}),
		tool.MustNew("explode", "Always fails", func(context.Context, struct{}) (string, error) {
			return "", errors.New("pallet unavailable")
		}).WithSideEffects(),
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return registry
}

// connectLocal 通过内存传输把 registry 的 MCP 服务端与一个 Remote 连接起来。
func connectLocal(t *testing.T, registry *tool.Registry) *Remote {
	t.Helper()
	ctx := context.Background()
	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	session, err := NewServer(registry, "test").Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	remote, err := Connect(ctx, "local", clientTransport)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() {
		_ = remote.Close()
		_ = session.Close()
	})
	return remote
}

func TestRemoteImportsServedTools(t *testing.T) {
	remote := connectLocal(t, localRegistry(t))
	ctx := context.Background()

	descs, err := remote.Tools(ctx)
	if err != nil {
		t.Fatalf("tools: %v", err)
	}
	if len(descs) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(descs))
	}
	imported, err := tool.NewRegistry(descs...)
	if err != nil {
		t.Fatalf("imported registry: %v", err)
	}
	if imported.SideEffects("greet") || !imported.SideEffects("explode") {
		t.Fatalf("read-only hints should survive the round trip")
	}
	params, ok := imported.Parameters("greet")
	if !ok || params["type"] != "object" {
		t.Fatalf("schema not carried over: %v", params)
	}

	result, err := imported.Invoke(ctx, "greet", json.RawMessage(`{"name":"alice"}`))
	if err != nil {
		t.Fatalf("invoke greet: %v", err)
	}
	decoded, ok := result.(map[string]any)
	if !ok || decoded["message"] != "hello alice" || decoded["length"] != float64(5) {
		t.Fatalf("unexpected result: %#v", result)
	}

	if _, err := imported.Invoke(ctx, "explode", nil); err == nil || !strings.Contains(err.Error(), "pallet unavailable") {
		t.Fatalf("remote failure should surface its message, got %v", err)
	}
	if _, err := imported.Invoke(ctx, "greet", json.RawMessage(`{}`)); !xerrors.IsCode(err, xerrors.CodeToolInvocation) {
		t.Fatalf("imported schema should reject missing name, got %v", err)
	}
}

func TestServerMarksToolErrors(t *testing.T) {
	ctx := context.Background()
	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	session, err := NewServer(localRegistry(t), "").Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	defer session.Close()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test", Version: "test"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer cs.Close()

	res, err := cs.CallTool(ctx, &mcpsdk.CallToolParams{Name: "greet", Arguments: map[string]any{"name": 7}})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !res.IsError || !strings.Contains(joinText(res.Content), "invalid arguments for greet") {
		t.Fatalf("schema violation should be an error result: %+v", res)
	}

	res, err = cs.CallTool(ctx, &mcpsdk.CallToolParams{Name: "greet", Arguments: map[string]any{"name": "bob"}})
	if err != nil || res.IsError {
		t.Fatalf("greet failed: %+v, %v", res, err)
	}
	if got := joinText(res.Content); got != `{"message":"hello bob","length":3}` {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestConnectAllRequiresURL(t *testing.T) {
	if _, err := ConnectAll(context.Background(), nil); err != nil {
		t.Fatalf("no servers should not fail: %v", err)
	}
	_, err := ConnectAll(context.Background(), []config.MCPServerConfig{{Name: "docs"}})
	if err == nil || !strings.Contains(err.Error(), "docs") {
		t.Fatalf("missing url should fail, got %v", err)
	}
}
