// Package tracing wraps the global OpenTelemetry tracer used across agent
// runs, model calls and tool invocations.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "DotPilot"

// Start 在全局 TracerProvider 上开启 span，调用方负责 span.End()。
func Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}

// Fail 在 span 上记录错误并标记状态。
func Fail(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// String 是 attribute.String 的简写。
func String(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// Int 是 attribute.Int 的简写。
func Int(key string, value int) attribute.KeyValue {
	return attribute.Int(key, value)
}
