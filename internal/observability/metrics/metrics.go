// Package metrics records agent, tool, model and HTTP metrics through the
// OpenTelemetry Metrics API and exposes them in Prometheus text format.
//
// Tests should build instruments with New and a ManualReader-backed
// MeterProvider; production code uses Default, which binds to the global
// provider installed by InitProvider.
package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "DotPilot"

// 运行结果标签。
const (
	OutcomeCompleted     = "completed"
	OutcomeMaxIterations = "max_iterations"
	OutcomeFailed        = "failed"
)

// 模型调用一般在秒级，工具调用可能包含链上 RPC。
var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

var iterationBuckets = []float64{1, 2, 3, 4, 5, 6, 8, 10, 12, 15, 20}

// Metrics 保存全部指标仪表，方法均可并发调用，nil 接收者为空操作。
type Metrics struct {
	LLMDuration  metric.Float64Histogram
	LLMRequests  metric.Int64Counter
	ToolDuration metric.Float64Histogram
	ToolCalls    metric.Int64Counter
	Runs         metric.Int64Counter
	Iterations   metric.Int64Histogram
	HTTPDuration metric.Float64Histogram
	TasksQueued  metric.Int64Counter
}

// New 在给定的 MeterProvider 上创建全部仪表。
func New(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	out := &Metrics{}

	if out.LLMDuration, err = m.Float64Histogram("dotpilot.llm.duration",
		metric.WithDescription("Latency of chat model calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if out.LLMRequests, err = m.Int64Counter("dotpilot.llm.requests",
		metric.WithDescription("Chat model calls by provider, model and status."),
	); err != nil {
		return nil, err
	}
	if out.ToolDuration, err = m.Float64Histogram("dotpilot.tool.duration",
		metric.WithDescription("Latency of tool invocations."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if out.ToolCalls, err = m.Int64Counter("dotpilot.tool.calls",
		metric.WithDescription("Tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if out.Runs, err = m.Int64Counter("dotpilot.runs",
		metric.WithDescription("Agent runs by outcome."),
	); err != nil {
		return nil, err
	}
	if out.Iterations, err = m.Int64Histogram("dotpilot.run.iterations",
		metric.WithDescription("Model calls per agent run."),
		metric.WithExplicitBucketBoundaries(iterationBuckets...),
	); err != nil {
		return nil, err
	}
	if out.HTTPDuration, err = m.Float64Histogram("dotpilot.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if out.TasksQueued, err = m.Int64Counter("dotpilot.tasks.submitted",
		metric.WithDescription("Asynchronous runs accepted by the task service."),
	); err != nil {
		return nil, err
	}
	return out, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// Default 返回绑定全局 MeterProvider 的实例。
func Default() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = New(otel.GetMeterProvider())
		if err != nil {
			panic("metrics: failed to create default instruments: " + err.Error())
		}
	})
	return defaultMetrics
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// ObserveModelCall 记录一次模型调用。
func (m *Metrics) ObserveModelCall(ctx context.Context, provider, model string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("model", model),
		attribute.String("status", status(err == nil)),
	)
	m.LLMDuration.Record(ctx, elapsed.Seconds(), attrs)
	m.LLMRequests.Add(ctx, 1, attrs)
}

// ObserveToolCall 记录一次工具调用。
func (m *Metrics) ObserveToolCall(ctx context.Context, tool string, elapsed time.Duration, success bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status(success)),
	)
	m.ToolDuration.Record(ctx, elapsed.Seconds(), attrs)
	m.ToolCalls.Add(ctx, 1, attrs)
}

// ObserveRun 记录一次运行的结果与迭代次数。
func (m *Metrics) ObserveRun(ctx context.Context, outcome string, iterations int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.Runs.Add(ctx, 1, attrs)
	m.Iterations.Record(ctx, int64(iterations), attrs)
}

// ObserveHTTPRequest 记录一次 HTTP 请求。
func (m *Metrics) ObserveHTTPRequest(ctx context.Context, route, method string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("method", method),
		attribute.Int("code", code),
	))
}

// ObserveTaskSubmitted 记录一次异步运行入队。
func (m *Metrics) ObserveTaskSubmitted(ctx context.Context, queue string) {
	if m == nil {
		return
	}
	m.TasksQueued.Add(ctx, 1, metric.WithAttributes(attribute.String("queue", queue)))
}
