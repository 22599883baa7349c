package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	xerrors "DotPilot/internal/errors"
)

type echoArgs struct {
	Chain string `json:"chain" jsonschema:"relay chain name"`
	Limit int    `json:"limit,omitempty"`
}

func echoTool(t *testing.T) Descriptor {
	t.Helper()
	d, err := New("echo", "Echo the chain", func(_ context.Context, args echoArgs) (map[string]any, error) {
		if args.Chain == "boom" {
			return nil, errors.New("chain exploded")
		}
		return map[string]any{"chain": args.Chain, "limit": args.Limit}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return d
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	if _, err := NewRegistry(echoTool(t), echoTool(t)); !xerrors.IsCode(err, xerrors.CodeConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := NewRegistry(Descriptor{Name: "nohandler"}); err == nil {
		t.Fatalf("expected error for missing handler")
	}
}

func TestRegistryDefinitionsCarrySchema(t *testing.T) {
	r, err := NewRegistry(echoTool(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defs := r.Definitions()
	if len(defs) != 1 || defs[0].Name != "echo" {
		t.Fatalf("unexpected definitions: %+v", defs)
	}
	props, ok := defs[0].Parameters["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema properties missing: %+v", defs[0].Parameters)
	}
	if _, ok := props["chain"]; !ok {
		t.Fatalf("chain property missing: %+v", props)
	}
	if names := r.Names(); len(names) != 1 || names[0] != "echo" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestInvokeDecodesArguments(t *testing.T) {
	r, _ := NewRegistry(echoTool(t))
	out, err := r.Invoke(context.Background(), "echo", json.RawMessage(`{"chain":"paseo","limit":3}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result := out.(map[string]any)
	if result["chain"] != "paseo" || result["limit"] != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestInvokeFailures(t *testing.T) {
	r, _ := NewRegistry(echoTool(t))
	ctx := context.Background()

	_, err := r.Invoke(ctx, "missing", nil)
	if !xerrors.IsCode(err, xerrors.CodeToolNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if e, _ := xerrors.From(err); e.Message() != "Tool missing not found" {
		t.Fatalf("unexpected message: %q", e.Message())
	}

	if _, err := r.Invoke(ctx, "echo", json.RawMessage(`{"chain":`)); !xerrors.IsCode(err, xerrors.CodeToolInvocation) {
		t.Fatalf("expected invocation error for bad json, got %v", err)
	}
	if _, err := r.Invoke(ctx, "echo", json.RawMessage(`{}`)); !xerrors.IsCode(err, xerrors.CodeToolInvocation) {
		t.Fatalf("expected schema violation for missing chain, got %v", err)
	}
	if _, err := r.Invoke(ctx, "echo", json.RawMessage(`{"chain":"boom"}`)); err == nil || err.Error() != "chain exploded" {
		t.Fatalf("handler errors should pass through, got %v", err)
	}
}

func TestInvokeIgnoresUndeclaredArguments(t *testing.T) {
	r, _ := NewRegistry(echoTool(t))
	out, err := r.Invoke(context.Background(), "echo", json.RawMessage(`{"chain":"paseo","verbose":true}`))
	if err != nil {
		t.Fatalf("undeclared arguments should be ignored, got %v", err)
	}
	if out.(map[string]any)["chain"] != "paseo" {
		t.Fatalf("unexpected result: %+v", out)
	}
	if _, err := r.Invoke(context.Background(), "echo", json.RawMessage(`{"chain":7}`)); !xerrors.IsCode(err, xerrors.CodeToolInvocation) {
		t.Fatalf("declared properties are still validated, got %v", err)
	}
}

func TestInvokeRecoversHandlerPanic(t *testing.T) {
	crash := MustNew("crash", "Writes to a nil map", func(_ context.Context, args echoArgs) (string, error) {
		var counts map[string]int
		counts[args.Chain]++
		return "unreachable", nil
	})
	r, err := NewRegistry(crash)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	out, err := r.Invoke(context.Background(), "crash", json.RawMessage(`{"chain":"paseo"}`))
	if out != nil {
		t.Fatalf("panicking handler should not return a result, got %v", out)
	}
	if !xerrors.IsCode(err, xerrors.CodeToolInvocation) {
		t.Fatalf("expected invocation error, got %v", err)
	}
	if e, _ := xerrors.From(err); e.Message() != "tool crash panicked: assignment to entry in nil map" {
		t.Fatalf("unexpected message: %q", e.Message())
	}
}

func TestSideEffects(t *testing.T) {
	write := MustNew("join", "Join a pool", func(context.Context, echoArgs) (string, error) {
		return "ok", nil
	}).WithSideEffects()
	r, err := NewRegistry(echoTool(t), write)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if !r.SideEffects("join") || r.SideEffects("echo") || r.SideEffects("missing") {
		t.Fatalf("unexpected side effect flags")
	}
	var nilRegistry *Registry
	if nilRegistry.SideEffects("join") {
		t.Fatalf("nil registry has no tools")
	}
}
