package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestInitWritesJSONToFile(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "app.log")
	audit := filepath.Join(dir, "audit", "runs.log")

	if err := Init(Config{Level: "debug", OutputPaths: []string{out}, Audit: AuditConfig{Enabled: true, Path: audit}}); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	Named("agent").Debug("model call", slog.Int("iteration", 1))
	Audit().Info("run finished", slog.String("run_id", "r-1"))
	if err := Sync(); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, data)
	}
	if entry["component"] != "agent" || entry["msg"] != "model call" {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	auditData, err := os.ReadFile(audit)
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	if !strings.Contains(string(auditData), `"run_id":"r-1"`) {
		t.Fatalf("audit entry missing: %s", auditData)
	}
	t.Cleanup(func() { _ = Init(Config{}) })
}

func TestAuditRequiresPath(t *testing.T) {
	if err := Init(Config{Audit: AuditConfig{Enabled: true}}); err == nil {
		t.Fatalf("expected error when audit path is empty")
	}
}

func TestFromContextAddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	FromContext(context.Background(), base).Info("plain")
	if strings.Contains(buf.String(), "trace_id") {
		t.Fatalf("no span, no trace id expected: %s", buf.String())
	}

	buf.Reset()
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	FromContext(ctx, base).Info("traced")
	if !strings.Contains(buf.String(), sc.TraceID().String()) || !strings.Contains(buf.String(), sc.SpanID().String()) {
		t.Fatalf("trace ids missing: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"debug": slog.LevelDebug, "WARN": slog.LevelWarn, "error": slog.LevelError, "": slog.LevelInfo}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
