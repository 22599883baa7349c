package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"DotPilot/internal/agent"
	"DotPilot/internal/api"
	"DotPilot/internal/config"
	"DotPilot/internal/llm"
	"DotPilot/internal/mcp"
	"DotPilot/internal/observability/metrics"
	"DotPilot/internal/staking"
	"DotPilot/internal/task"
	"DotPilot/pkg/logger"
)

// version 在构建时通过 -ldflags 注入。
var version = "dev"

// main 是 DotPilot 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("dotpilotd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		return err
	}
	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		Audit:       logger.AuditConfig(cfg.Logging.Audit),
	}); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	lg := logger.Named("dotpilotd")

	shutdownTelemetry, err := metrics.InitProvider(ctx, metrics.ProviderConfig{
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("初始化 OpenTelemetry 失败: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(shutdownCtx)
	}()
	m := metrics.Default()

	var closers closerStack
	defer closers.closeAll(lg)

	registry, err := buildTools(ctx, cfg, &closers)
	if err != nil {
		return err
	}

	runs, err := openRunRepository(ctx, cfg.Storage.RunHistory)
	if err != nil {
		return err
	}
	if c, ok := runs.(io.Closer); ok {
		closers.push("run history", c)
	}

	var chain string
	if cfg.Agent.ConnectedChain != "" {
		chain = staking.AgentChainID(cfg.Agent.ConnectedChain)
	}
	display := cfg.Agent.ChainDisplayName
	if display == "" && chain != "" {
		display = staking.DisplayName(chain)
	}

	opts := []agent.Option{
		agent.WithMaxIterations(cfg.Agent.MaxIterations),
		agent.WithLLMTimeout(cfg.LLM.Timeout()),
		agent.WithConnectedChain(chain, display),
		agent.WithMetrics(m),
		agent.WithRunRepository(runs),
	}
	if cfg.LLM.Temperature != nil {
		opts = append(opts, agent.WithTemperature(*cfg.LLM.Temperature))
	}
	orchestrator := agent.New(opts...)

	prompt := staking.ComposePrompt(staking.SystemPrompt(chain, display), cfg.Agent.CustomInstructions)
	if err := orchestrator.Init(prompt, registry, llm.ModelConfig{
		Provider:  cfg.LLM.Provider,
		Model:     cfg.LLM.Model,
		APIKey:    cfg.LLM.APIKey,
		APIKeyEnv: cfg.LLM.APIKeyEnv,
		BaseURL:   cfg.LLM.BaseURL,
		Timeout:   cfg.LLM.Timeout(),
	}); err != nil {
		return err
	}
	lg.Info("agent initialized",
		slog.String("provider", orchestrator.Provider()),
		slog.String("model", orchestrator.Model()),
		slog.String("chain", chain),
		slog.Any("tools", orchestrator.AvailableTools()),
	)

	store, err := openTaskStore(ctx, cfg.Storage.TaskStore)
	if err != nil {
		return err
	}
	queue, err := openQueue(ctx, cfg.Queue)
	if err != nil {
		_ = store.Close()
		return err
	}
	taskService := task.NewService(store, queue, cfg.Queue.MaxRetries,
		task.WithServiceMetrics(m, cfg.Queue.Driver))
	closers.push("task service", taskService)

	processor := task.NewProcessor(orchestrator, store, queue, queue,
		task.WithWorkerCount(cfg.Queue.Workers),
		task.WithRunTimeout(time.Duration(cfg.Queue.RunTimeoutSeconds)*time.Second),
		task.WithAlertDispatcher(buildAlerting(cfg.Observability.Alerting)),
	)

	serverOpts := []api.Option{
		api.WithTaskService(taskService),
		api.WithMetrics(m),
		api.WithAuthToken(cfg.Server.ResolveAuthToken()),
		api.WithTimeouts(
			time.Duration(cfg.Server.ReadTimeoutSeconds)*time.Second,
			time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second,
		),
	}
	if cfg.MCP.Enabled {
		serverOpts = append(serverOpts, api.WithMCPHandler(cfg.MCP.Path, mcp.Handler(mcp.NewServer(registry, version))))
	}
	server := api.NewServer(cfg.Server.Address, orchestrator, serverOpts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(processor.Start(gctx))
	})
	g.Go(func() error {
		lg.Info("API server listening", slog.String("address", cfg.Server.Address))
		return ignoreCanceled(server.Start(gctx))
	})
	if cfg.Observability.MetricsEnabled && cfg.Observability.MetricsAddress != "" {
		g.Go(func() error {
			return ignoreCanceled(metrics.StartServer(gctx, cfg.Observability.MetricsAddress))
		})
	}
	err = g.Wait()
	lg.Info("dotpilotd stopped")
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
