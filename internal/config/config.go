package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// EnvConfigPath 指定配置文件路径的环境变量。
const EnvConfigPath = "DOTPILOT_CONFIG"

// DefaultPath 是未设置环境变量时读取的配置文件。
const DefaultPath = "configs/dotpilot.json"

// Config 描述了 DotPilot 在启动阶段需要加载的核心配置。
type Config struct {
	Server        ServerConfig        `json:"server"`
	LLM           LLMConfig           `json:"llm"`
	Agent         AgentConfig         `json:"agent"`
	Staking       StakingConfig       `json:"staking"`
	Web3          Web3Config          `json:"web3"`
	Knowledge     KnowledgeConfig     `json:"knowledge"`
	Storage       StorageConfig       `json:"storage"`
	Queue         QueueConfig         `json:"queue"`
	MCP           MCPConfig           `json:"mcp"`
	Observability ObservabilityConfig `json:"observability"`
	Logging       LoggingConfig       `json:"logging"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address                string `json:"address"`
	AuthToken              string `json:"auth_token"`
	AuthTokenEnv           string `json:"auth_token_env"`
	ReadTimeoutSeconds     int    `json:"read_timeout_seconds"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds"`
}

// ResolveAuthToken 返回显式配置的令牌，否则读取 AuthTokenEnv 指定的环境变量。
func (s ServerConfig) ResolveAuthToken() string {
	if token := strings.TrimSpace(s.AuthToken); token != "" {
		return token
	}
	if env := strings.TrimSpace(s.AuthTokenEnv); env != "" {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}

// LLMConfig 用于配置大模型推理的调用方式。
type LLMConfig struct {
	Provider       string   `json:"provider"`
	Model          string   `json:"model"`
	APIKey         string   `json:"api_key"`
	APIKeyEnv      string   `json:"api_key_env"`
	BaseURL        string   `json:"base_url"`
	TimeoutSeconds int      `json:"timeout_seconds"`
	Temperature    *float64 `json:"temperature"`
}

// Timeout 返回单次模型调用的超时时间。
func (l LLMConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// AgentConfig 控制编排循环与系统提示词。
type AgentConfig struct {
	MaxIterations      int    `json:"max_iterations"`
	ConnectedChain     string `json:"connected_chain"`
	ChainDisplayName   string `json:"chain_display_name"`
	CustomInstructions string `json:"custom_instructions"`
}

// StakingConfig 指定质押模拟数据与池列表缓存。
type StakingConfig struct {
	Fixtures string          `json:"fixtures"`
	Cache    PoolCacheConfig `json:"cache"`
}

// PoolCacheConfig 描述基于 Redis 的池列表缓存。
type PoolCacheConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	Prefix     string `json:"prefix"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// Web3Config 包含访问 EVM 节点所需的配置。
type Web3Config struct {
	Enabled      bool   `json:"enabled"`
	RPCURL       string `json:"rpc_url"`
	ChainConfig  string `json:"chain_config"`
	DefaultChain string `json:"default_chain"`
}

// KnowledgeConfig 指定静态知识库文件。
type KnowledgeConfig struct {
	Path       string `json:"path"`
	MaxResults int    `json:"max_results"`
}

// StorageConfig 统一描述运行历史与任务存储。
type StorageConfig struct {
	RunHistory RunHistoryConfig `json:"run_history"`
	TaskStore  TaskStoreConfig  `json:"task_store"`
}

// RunHistoryConfig 选择运行历史的存储方式，memory 驱动写入 DataDir 下的文件。
type RunHistoryConfig struct {
	Driver  string `json:"driver"`
	DSN     string `json:"dsn"`
	DataDir string `json:"data_dir"`
}

// TaskStoreConfig 选择任务状态的存储方式。
type TaskStoreConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// QueueConfig 控制异步运行的队列与工作协程。
type QueueConfig struct {
	Driver            string        `json:"driver"`
	Buffer            int           `json:"buffer"`
	Workers           int           `json:"workers"`
	MaxRetries        int           `json:"max_retries"`
	RunTimeoutSeconds int           `json:"run_timeout_seconds"`
	Redis             RedisQueue    `json:"redis"`
	RabbitMQ          RabbitMQQueue `json:"rabbitmq"`
}

// RedisQueue 描述 Redis list 队列。
type RedisQueue struct {
	Address          string `json:"address"`
	Password         string `json:"password"`
	DB               int    `json:"db"`
	Queue            string `json:"queue"`
	BlockWaitSeconds int    `json:"block_wait_seconds"`
}

// RabbitMQQueue 描述 RabbitMQ 队列。
type RabbitMQQueue struct {
	URL      string `json:"url"`
	Queue    string `json:"queue"`
	Prefetch int    `json:"prefetch"`
	Durable  bool   `json:"durable"`
}

// MCPConfig 控制 MCP 服务端与需要导入工具的远端 MCP 服务。
type MCPConfig struct {
	Enabled bool              `json:"enabled"`
	Path    string            `json:"path"`
	Servers []MCPServerConfig `json:"servers"`
}

// MCPServerConfig 是一个远端 MCP 服务（Streamable HTTP）。
type MCPServerConfig struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ObservabilityConfig 控制指标与告警。
type ObservabilityConfig struct {
	ServiceName    string         `json:"service_name"`
	MetricsEnabled bool           `json:"metrics_enabled"`
	MetricsAddress string         `json:"metrics_address"`
	Alerting       AlertingConfig `json:"alerting"`
}

// AlertingConfig 选择告警渠道。
type AlertingConfig struct {
	Log        bool   `json:"log"`
	WebhookURL string `json:"webhook_url"`
}

// LoggingConfig 对应 pkg/logger 的配置。
type LoggingConfig struct {
	Level       string      `json:"level"`
	Format      string      `json:"format"`
	OutputPaths []string    `json:"output_paths"`
	Audit       AuditConfig `json:"audit"`
}

// AuditConfig 控制审计日志轮转。
type AuditConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// PathFromEnv 返回 DOTPILOT_CONFIG 指定的路径，未设置时返回 DefaultPath。
func PathFromEnv() string {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p
	}
	return DefaultPath
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值，相对路径以配置文件所在目录为基准。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ReadTimeoutSeconds <= 0 {
		c.Server.ReadTimeoutSeconds = 15
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		c.Server.ShutdownTimeoutSeconds = 10
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "ollama"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "llama3.1"
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = 60
	}

	if c.Agent.MaxIterations <= 0 {
		c.Agent.MaxIterations = 15
	}

	c.Staking.Fixtures = resolve(baseDir, c.Staking.Fixtures)
	if c.Staking.Cache.TTLSeconds <= 0 {
		c.Staking.Cache.TTLSeconds = 60
	}

	c.Web3.ChainConfig = resolve(baseDir, c.Web3.ChainConfig)
	c.Knowledge.Path = resolve(baseDir, c.Knowledge.Path)
	if c.Knowledge.MaxResults <= 0 {
		c.Knowledge.MaxResults = 3
	}

	if c.Storage.RunHistory.Driver == "" {
		c.Storage.RunHistory.Driver = "memory"
	}
	if c.Storage.RunHistory.DataDir == "" {
		c.Storage.RunHistory.DataDir = filepath.Join(baseDir, "data")
	} else {
		c.Storage.RunHistory.DataDir = resolve(baseDir, c.Storage.RunHistory.DataDir)
	}
	if c.Storage.TaskStore.Driver == "" {
		c.Storage.TaskStore.Driver = "memory"
	}

	if c.Queue.Driver == "" {
		c.Queue.Driver = "memory"
	}
	if c.Queue.Buffer <= 0 {
		c.Queue.Buffer = 64
	}
	if c.Queue.Workers <= 0 {
		c.Queue.Workers = 2
	}
	if c.Queue.MaxRetries <= 0 {
		c.Queue.MaxRetries = 3
	}
	if c.Queue.RunTimeoutSeconds <= 0 {
		c.Queue.RunTimeoutSeconds = 300
	}

	if c.MCP.Path == "" {
		c.MCP.Path = "/mcp"
	}

	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = "dotpilotd"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Audit.Enabled {
		if c.Logging.Audit.Path == "" {
			c.Logging.Audit.Path = filepath.Join(c.Storage.RunHistory.DataDir, "audit.log")
		} else {
			c.Logging.Audit.Path = resolve(baseDir, c.Logging.Audit.Path)
		}
	}
}

func resolve(baseDir, path string) string {
	path = strings.TrimSpace(path)
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
