package task

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDecodeDelivery(t *testing.T) {
	d, err := decodeDelivery([]byte(`{"run_id":"run-1","attempt":3,"enqueued_at":"2024-05-01T10:00:00Z"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.RunID != "run-1" || d.Attempt != 3 || d.EnqueuedAt.IsZero() {
		t.Fatalf("unexpected delivery %+v", d)
	}

	legacy, err := decodeDelivery([]byte(" run-2 \n"))
	if err != nil || legacy.RunID != "run-2" || legacy.Attempt != 1 {
		t.Fatalf("bare ids should decode as first attempt, got %+v err=%v", legacy, err)
	}

	for _, body := range []string{"", "  ", `{"attempt":2}`, `{"run_id":`} {
		if _, err := decodeDelivery([]byte(body)); err == nil {
			t.Fatalf("expected error for %q", body)
		}
	}
}

func TestDeliveryEncodeAndWait(t *testing.T) {
	if _, err := (Delivery{}).encode(); !errors.Is(err, errEmptyRunID) {
		t.Fatalf("expected errEmptyRunID, got %v", err)
	}

	d := newDelivery("run-3", 0)
	if d.Attempt != 1 {
		t.Fatalf("attempt should default to 1, got %d", d.Attempt)
	}
	body, err := d.encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := decodeDelivery(body)
	if err != nil || back.RunID != "run-3" || !back.EnqueuedAt.Equal(d.EnqueuedAt) {
		t.Fatalf("unexpected decoded delivery %+v err=%v", back, err)
	}

	if got := d.Wait(d.EnqueuedAt.Add(2 * time.Second)); got != 2*time.Second {
		t.Fatalf("unexpected wait %v", got)
	}
	if got := d.Wait(d.EnqueuedAt.Add(-time.Second)); got != 0 {
		t.Fatalf("clock skew should not produce negative waits, got %v", got)
	}
	if got := (Delivery{RunID: "x"}).Wait(time.Now()); got != 0 {
		t.Fatalf("unknown enqueue time should yield zero, got %v", got)
	}
}

func TestMemoryQueueDeliversAndCloses(t *testing.T) {
	q := NewMemoryQueue(2)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := q.Publish(ctx, Delivery{}); !errors.Is(err, errEmptyRunID) {
		t.Fatalf("expected errEmptyRunID, got %v", err)
	}
	if err := q.Publish(ctx, newDelivery("run-a", 1)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := q.Publish(ctx, newDelivery("run-b", 2)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if q.Len() != 2 {
		t.Fatalf("expected 2 pending deliveries, got %d", q.Len())
	}

	got := make(chan Delivery, 2)
	done := make(chan error, 1)
	go func() {
		done <- q.Consume(ctx, 1, func(_ context.Context, d Delivery) error {
			got <- d
			return nil
		})
	}()

	first, second := <-got, <-got
	if first.RunID != "run-a" || second.RunID != "run-b" || second.Attempt != 2 {
		t.Fatalf("unexpected deliveries %+v %+v", first, second)
	}

	_ = q.Close()
	if err := <-done; err != nil {
		t.Fatalf("consume should return cleanly after close, got %v", err)
	}
	if err := q.Publish(ctx, newDelivery("run-c", 1)); err == nil {
		t.Fatalf("publish after close should fail")
	}
}
