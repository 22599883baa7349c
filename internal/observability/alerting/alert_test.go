package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	xerrors "DotPilot/internal/errors"
)

type recordingNotifier struct {
	channel Channel
	calls   atomic.Int32
	err     error
}

func (r *recordingNotifier) Channel() Channel { return r.channel }

func (r *recordingNotifier) Notify(context.Context, Event) error {
	r.calls.Add(1)
	return r.err
}

func TestFanoutJoinsErrors(t *testing.T) {
	ok := &recordingNotifier{channel: ChannelLog}
	bad := &recordingNotifier{channel: ChannelWebhook, err: errors.New("down")}
	err := NewFanout(ok, nil, bad).Notify(context.Background(), Event{Code: xerrors.CodeTimeout})
	if err == nil || !strings.Contains(err.Error(), "channel webhook: down") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if ok.calls.Load() != 1 || bad.calls.Load() != 1 {
		t.Fatalf("every notifier should be called once")
	}

	var nilDispatcher *FanoutDispatcher
	if err := nilDispatcher.Notify(context.Background(), Event{}); err != nil {
		t.Fatalf("nil dispatcher must be a no-op: %v", err)
	}
}

func TestWebhookNotifier(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := &WebhookNotifier{URL: srv.URL, Client: srv.Client()}
	event := Event{
		Code:       "TASK_RETRIES_EXHAUSTED",
		Severity:   xerrors.SeverityCritical,
		TaskID:     "task-1",
		Attempts:   3,
		MaxRetries: 3,
		Message:    "boom",
		Metadata:   map[string]string{"stage": "terminal", "cause": "boom"},
	}
	if err := n.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}
	text, _ := got["text"].(string)
	if text != "[critical] TASK_RETRIES_EXHAUSTED task=task-1 attempts=3/3: boom cause=boom stage=terminal" {
		t.Fatalf("unexpected summary: %q", text)
	}
}

func TestWebhookNotifierStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := &WebhookNotifier{URL: srv.URL, Client: srv.Client()}
	if err := n.Notify(context.Background(), Event{}); err == nil {
		t.Fatalf("expected error for non-2xx status")
	}
	if err := (&WebhookNotifier{}).Notify(context.Background(), Event{}); err != nil {
		t.Fatalf("unconfigured webhook should be skipped: %v", err)
	}
}

func TestLogNotifier(t *testing.T) {
	if err := (&LogNotifier{}).Notify(context.Background(), Event{Code: xerrors.CodeTimeout, Severity: xerrors.SeverityWarning}); err != nil {
		t.Fatalf("log notifier failed: %v", err)
	}
}
