package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartAndFailRecordSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := Start(context.Background(), "agent.run")
	span.SetAttributes(String("provider", "ollama"), Int("iterations", 2))
	Fail(span, errors.New("model unavailable"))
	Fail(span, nil)
	span.End()

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected one span, got %d", len(ended))
	}
	if ended[0].Name() != "agent.run" || ended[0].Status().Code != codes.Error {
		t.Fatalf("unexpected span: %s %+v", ended[0].Name(), ended[0].Status())
	}
	if len(ended[0].Events()) != 1 {
		t.Fatalf("expected one error event, got %d", len(ended[0].Events()))
	}
}
