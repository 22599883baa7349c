package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"DotPilot/internal/agent"
	"DotPilot/internal/observability/metrics"
	"DotPilot/internal/task"
	"DotPilot/internal/tool"
)

// Agent 是 API 需要的编排器能力，由 agent.Orchestrator 实现。
type Agent interface {
	Run(ctx context.Context, query string) (*agent.RunResult, error)
	ListHistory(ctx context.Context, limit int) ([]agent.RunSummary, error)
	Registry() *tool.Registry
	IsReady() bool
}

// Server 负责暴露 REST 接口，供外部驱动智能体执行。
type Server struct {
	addr            string
	agent           Agent
	tasks           *task.Service
	metrics         *metrics.Metrics
	authToken       string
	mcpPath         string
	mcpHandler      http.Handler
	readTimeout     time.Duration
	shutdownTimeout time.Duration
}

// Option 定义 Server 的可选配置。
type Option func(*Server)

// WithTaskService 启用 /api/v1/runs 异步接口。
func WithTaskService(svc *task.Service) Option {
	return func(s *Server) { s.tasks = svc }
}

// WithMetrics 记录请求耗时。
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithAuthToken 要求 /api 与 MCP 请求携带 Bearer 令牌，空字符串表示不鉴权。
func WithAuthToken(token string) Option {
	return func(s *Server) { s.authToken = token }
}

// WithMCPHandler 在 path 上挂载 MCP 端点。
func WithMCPHandler(path string, h http.Handler) Option {
	return func(s *Server) {
		s.mcpPath = path
		s.mcpHandler = h
	}
}

// WithTimeouts 设置读取超时与优雅关闭的等待时间。
func WithTimeouts(read, shutdown time.Duration) Option {
	return func(s *Server) {
		if read > 0 {
			s.readTimeout = read
		}
		if shutdown > 0 {
			s.shutdownTimeout = shutdown
		}
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, ag Agent, opts ...Option) *Server {
	s := &Server{
		addr:            addr,
		agent:           ag,
		readTimeout:     15 * time.Second,
		shutdownTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler 构建完整的路由。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, "POST /api/v1/ask", "/api/v1/ask", s.handleAsk)
	s.route(mux, "POST /api/v1/runs", "/api/v1/runs", s.handleSubmitRun)
	s.route(mux, "GET /api/v1/runs", "/api/v1/runs", s.handleListRuns)
	s.route(mux, "GET /api/v1/runs/stats", "/api/v1/runs/stats", s.handleRunStats)
	s.route(mux, "GET /api/v1/runs/{id}", "/api/v1/runs/{id}", s.handleRunDetail)
	s.route(mux, "GET /api/v1/history", "/api/v1/history", s.handleHistory)
	s.route(mux, "GET /api/v1/tools", "/api/v1/tools", s.handleTools)
	mux.Handle("GET /healthz", metrics.Middleware(s.metrics, "/healthz", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /metrics", metrics.Handler())
	if s.mcpHandler != nil && s.mcpPath != "" {
		mux.Handle(s.mcpPath, metrics.Middleware(s.metrics, s.mcpPath, s.requireToken(s.mcpHandler)))
	}
	return mux
}

func (s *Server) route(mux *http.ServeMux, pattern, label string, h http.HandlerFunc) {
	mux.Handle(pattern, metrics.Middleware(s.metrics, label, s.requireToken(h)))
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.readTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
