package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"DotPilot/internal/config"
	"DotPilot/internal/knowledge"
	"DotPilot/internal/mcp"
	"DotPilot/internal/observability/alerting"
	"DotPilot/internal/staking"
	"DotPilot/internal/storage/mysql"
	rediscache "DotPilot/internal/storage/redis"
	"DotPilot/internal/task"
	"DotPilot/internal/tool"
	"DotPilot/internal/uniswap"
	"DotPilot/internal/web3/provider"
	"DotPilot/pkg/logger"
)

type namedCloser struct {
	name   string
	closer io.Closer
}

// closerStack 按注册的逆序关闭资源。
type closerStack []namedCloser

func (s *closerStack) push(name string, c io.Closer) {
	if c != nil {
		*s = append(*s, namedCloser{name: name, closer: c})
	}
}

func (s *closerStack) closeAll(log *slog.Logger) {
	for i := len(*s) - 1; i >= 0; i-- {
		c := (*s)[i]
		if err := c.closer.Close(); err != nil {
			log.Warn("关闭资源失败", slog.String("resource", c.name), slog.Any("error", err))
		}
	}
}

type closeFunc func()

func (f closeFunc) Close() error {
	f()
	return nil
}

// buildTools 组装质押、知识库、EVM 以及远端 MCP 工具，并冻结为 Registry。
func buildTools(ctx context.Context, cfg *config.Config, closers *closerStack) (*tool.Registry, error) {
	log := logger.Named("dotpilotd")

	fixtures := staking.Fixtures{}
	if cfg.Staking.Fixtures != "" {
		loaded, err := staking.LoadFixtures(cfg.Staking.Fixtures)
		if err != nil {
			return nil, err
		}
		fixtures = loaded
	}
	memory, err := staking.NewMemoryBackend(fixtures)
	if err != nil {
		return nil, err
	}
	var backend staking.Backend = memory
	if cache := cfg.Staking.Cache; cache.Enabled {
		poolCache, err := rediscache.NewPoolCache(ctx, rediscache.Config{
			Address:  cache.Address,
			Password: cache.Password,
			DB:       cache.DB,
			Prefix:   cache.Prefix,
			TTL:      time.Duration(cache.TTLSeconds) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		closers.push("pool cache", poolCache)
		backend = staking.NewCachedBackend(memory, poolCache)
	}
	descs := staking.Tools(backend)

	if cfg.Knowledge.Path != "" {
		docs, err := knowledge.LoadStaticProvider(cfg.Knowledge.Path, cfg.Knowledge.MaxResults)
		if err != nil {
			return nil, err
		}
		descs = append(descs, knowledge.SearchTool(docs))
	}

	if cfg.Web3.Enabled {
		chains, err := provider.NewRegistry(ctx, cfg.Web3)
		if err != nil {
			return nil, err
		}
		closers.push("evm clients", closeFunc(chains.Close))
		descs = append(descs, uniswap.Tools(chains)...)
		log.Info("EVM tools enabled", slog.Any("chains", chains.Chains()))
	}

	remotes, err := mcp.ConnectAll(ctx, cfg.MCP.Servers)
	if err != nil {
		return nil, err
	}
	for _, remote := range remotes {
		closers.push("mcp "+remote.Name(), remote)
		imported, err := remote.Tools(ctx)
		if err != nil {
			return nil, err
		}
		descs = append(descs, imported...)
	}

	return tool.NewRegistry(descs...)
}

func openRunRepository(ctx context.Context, cfg config.RunHistoryConfig) (mysql.RunRepository, error) {
	switch cfg.Driver {
	case "", "memory":
		repo, err := mysql.NewMemoryRunRepository(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case "mysql":
		repo, err := mysql.NewSQLRunRepository(ctx, mysql.Config{DSN: cfg.DSN})
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, mysql.ErrUnsupportedDriver
	}
}

func openTaskStore(ctx context.Context, cfg config.TaskStoreConfig) (task.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return task.NewMemoryStore(), nil
	case "mysql":
		return task.NewMySQLStore(ctx, cfg.DSN)
	default:
		return nil, mysql.ErrUnsupportedDriver
	}
}

func openQueue(ctx context.Context, cfg config.QueueConfig) (task.Queue, error) {
	switch cfg.Driver {
	case "", "memory":
		return task.NewMemoryQueue(cfg.Buffer), nil
	case "redis":
		return task.NewRedisQueue(ctx, task.RedisQueueConfig{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			Queue:     cfg.Redis.Queue,
			BlockWait: time.Duration(cfg.Redis.BlockWaitSeconds) * time.Second,
		})
	case "rabbitmq":
		return task.NewRabbitMQQueue(task.RabbitMQConfig{
			URL:      cfg.RabbitMQ.URL,
			Queue:    cfg.RabbitMQ.Queue,
			Prefetch: cfg.RabbitMQ.Prefetch,
			Durable:  cfg.RabbitMQ.Durable,
		})
	default:
		return nil, fmt.Errorf("未知的队列驱动: %s", cfg.Driver)
	}
}

func buildAlerting(cfg config.AlertingConfig) alerting.Dispatcher {
	var notifiers []alerting.Notifier
	if cfg.Log {
		notifiers = append(notifiers, &alerting.LogNotifier{})
	}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, &alerting.WebhookNotifier{URL: cfg.WebhookURL})
	}
	if len(notifiers) == 0 {
		return nil
	}
	return alerting.NewFanout(notifiers...)
}
