package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/BaSui01/agentlab/agent"
	"github.com/BaSui01/agentlab/agent/catalog"
	"github.com/BaSui01/agentlab/agent/sandbox"
	"github.com/BaSui01/agentlab/api/handlers"
	"github.com/BaSui01/agentlab/auth"
	"github.com/BaSui01/agentlab/blog"
	"github.com/BaSui01/agentlab/config"
	"github.com/BaSui01/agentlab/internal/cache"
	"github.com/BaSui01/agentlab/internal/database"
	"github.com/BaSui01/agentlab/internal/metrics"
	"github.com/BaSui01/agentlab/internal/server"
	"github.com/BaSui01/agentlab/internal/telemetry"
	"github.com/BaSui01/agentlab/llm"
	llmmw "github.com/BaSui01/agentlab/llm/middleware"
	"github.com/BaSui01/agentlab/llm/providers/gemini"
	"github.com/BaSui01/agentlab/llm/providers/openaicompat"
	"github.com/BaSui01/agentlab/llm/tools"
	"github.com/BaSui01/agentlab/sources"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// =============================================================================
// 🖥️ Server 组装全部组件
// =============================================================================

// Server 持有 HTTP / Metrics 服务器与共享依赖
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	otel  *telemetry.Providers
	pool  *database.PoolManager // 可以为 nil
	cache *cache.Manager        // 可以为 nil

	collector *metrics.Collector
	manager   *agent.Manager
	handler   http.Handler

	httpManager    *server.Manager
	metricsManager *server.Manager

	rateLimiterCancel context.CancelFunc
}

// NewServer 创建 Server；pool 与 cacheMgr 可以为 nil
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers, pool *database.PoolManager, cacheMgr *cache.Manager) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		otel:   otelProviders,
		pool:   pool,
		cache:  cacheMgr,
	}
}

// Start 初始化 handler 并启动 HTTP 与 Metrics 服务器（非阻塞）
func (s *Server) Start() error {
	s.collector = metrics.NewCollector("agentlab", s.logger)
	if s.pool != nil {
		s.pool.SetObserver(s.collector)
	}
	if s.cache != nil {
		s.cache.SetObserver(s.collector)
	}

	if err := s.initHandler(); err != nil {
		return fmt.Errorf("init handlers: %w", err)
	}
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}
	return nil
}

// =============================================================================
// 🔧 组件装配
// =============================================================================

// llmChain 为 provider 创建 Completion 中间件链
func (s *Server) llmChain(provider, defaultModel string) *llmmw.Chain {
	return llmmw.NewChain(
		llmmw.RecoveryMiddleware(s.logger),
		llmmw.MetricsMiddleware(s.collector, provider),
		llmmw.TracingMiddleware(otel.Tracer("agentlab/llm"), provider),
		llmmw.LoggingMiddleware(s.logger.With(zap.String("provider", provider))),
		llmmw.RewriteMiddleware(llmmw.NewEmptyToolsCleaner(), llmmw.DefaultModel{Model: defaultModel}),
	)
}

// newAgentManager 组装 provider、内置工具、Agent 注册表与 Manager
func (s *Server) newAgentManager() *agent.Manager {
	cfg := s.cfg
	groqChain := s.llmChain("groq", cfg.LLM.Groq.Model)
	chatProvider := func(apiKey string) (llm.Provider, error) {
		p := openaicompat.NewGroq(cfg.LLM.Groq, apiKey, cfg.LLM.Timeout, s.logger)
		return llmmw.Wrap(p, groqChain), nil
	}

	var researchProvider llm.Provider
	if g, err := gemini.New(cfg.LLM.Gemini, cfg.LLM.Timeout, s.logger); err != nil {
		s.logger.Warn("gemini provider unavailable, researcher falls back to groq", zap.Error(err))
	} else {
		researchProvider = llmmw.Wrap(g, s.llmChain("gemini", cfg.LLM.Gemini.Model))
	}

	var resultCache tools.ResultCache
	if s.cache != nil {
		resultCache = s.cache
	}
	papers := sources.NewArxivSource(sources.DefaultArxivConfig(), s.logger)
	builtins := tools.NewBuiltins(cfg.Search, papers, resultCache, s.logger)

	factory := agent.NewFactory(catalog.NewRegistry(s.logger), agent.FactoryOptions{
		ChatProvider:     chatProvider,
		ResearchProvider: researchProvider,
		Model:            cfg.LLM.Groq.Model,
		AutonomousModel:  cfg.LLM.Groq.AutonomousModel,
		MaxHistoryTokens: cfg.LLM.MaxHistoryTokens,
		Builtins:         builtins,
		Research:         cfg.Research,
		Observer:         s.collector,
	}, s.logger)

	opts := []agent.ManagerOption{agent.WithCountGauge(s.collector.SetActiveAgents)}
	if s.pool != nil {
		opts = append(opts, agent.WithRecorder(database.NewAgentStore(s.pool)))
	}
	return agent.NewManager(factory, s.logger, opts...)
}

// newBlogStore 创建博客存储，按配置写入示例文章
func (s *Server) newBlogStore() *blog.Store {
	store := blog.NewStore(blog.Config{MaxContentLength: s.cfg.Content.MaxBlogContentLength}, s.logger)
	if s.cfg.Content.SeedBlog {
		if err := blog.Seed(store, s.logger); err != nil {
			s.logger.Warn("failed to seed blog", zap.Error(err))
		}
	}
	return store
}

// initHandler 创建所有 handler、注册路由并组装中间件链
func (s *Server) initHandler() error {
	cfg := s.cfg
	s.manager = s.newAgentManager()

	toolHandler := handlers.NewToolHandler(s.manager, sandbox.DefaultExecutorConfig(), s.logger)
	onDelete := []func(ctx context.Context, id string){toolHandler.Forget}

	chatOpts := []handlers.ChatOption{handlers.WithChatObserver(s.collector)}
	if s.pool != nil {
		sessions := database.NewChatSessionStore(s.pool)
		chatOpts = append(chatOpts, handlers.WithSessionStore(sessions))
		onDelete = append(onDelete, func(ctx context.Context, id string) {
			if err := sessions.DeleteForAgent(ctx, id); err != nil {
				s.logger.Warn("failed to delete chat sessions", zap.String("agent_id", id), zap.Error(err))
			}
		})
	}

	agentHandler := handlers.NewAgentHandler(s.manager, s.logger, onDelete...)
	chatHandler := handlers.NewChatHandler(s.manager, handlers.ChatConfig{
		MaxMessageLength: cfg.Content.MaxChatMessageLength,
		ChunkDelay:       cfg.Server.StreamChunkDelay,
		AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
	}, s.logger, chatOpts...)
	blogHandler := handlers.NewBlogHandler(s.newBlogStore(), cfg.Content.BlogBaseURL, s.logger)

	healthHandler := handlers.NewHealthHandler(s.manager, Version, s.logger)
	if s.pool != nil {
		healthHandler.RegisterCheck(handlers.NewPingCheck("database", s.pool.Ping))
	}
	if s.cache != nil {
		healthHandler.RegisterCheck(handlers.NewPingCheck("redis", s.cache.Ping))
	}

	tokens, err := auth.NewTokenManager(cfg.Auth)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()

	// ========================================
	// 健康检查与 API 索引
	// ========================================
	mux.HandleFunc("GET /{$}", healthHandler.HandleIndex)
	mux.HandleFunc("GET /health", healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", healthHandler.HandleHealthz)
	mux.HandleFunc("GET /ready", healthHandler.HandleReady)
	mux.HandleFunc("GET /version", healthHandler.HandleVersion(BuildTime, GitCommit))

	// ========================================
	// Agent 与对话
	// ========================================
	mux.HandleFunc("POST /agents", agentHandler.HandleCreate)
	mux.HandleFunc("GET /agents", agentHandler.HandleList)
	mux.HandleFunc("GET /agents/{id}", agentHandler.HandleGet)
	mux.HandleFunc("DELETE /agents/{id}", agentHandler.HandleDelete)
	mux.HandleFunc("POST /agents/{id}/chat", chatHandler.HandleChat)
	mux.HandleFunc("POST /agents/{id}/chat/stream", chatHandler.HandleStream)
	mux.HandleFunc("GET /agents/{id}/chat/ws", chatHandler.HandleWebSocket)
	mux.HandleFunc("POST /agents/{id}/clear-history", chatHandler.HandleClearHistory)
	mux.HandleFunc("GET /agents/{id}/tools", toolHandler.HandleList)
	mux.HandleFunc("POST /agents/{id}/tools", toolHandler.HandleRegister)
	for pattern, h := range agentHandler.DemoRoutes() {
		mux.HandleFunc(pattern, h)
	}

	// ========================================
	// 博客
	// ========================================
	for pattern, h := range blogHandler.Routes() {
		mux.HandleFunc(pattern, h)
	}

	// ========================================
	// 用户认证（需要数据库）
	// ========================================
	if s.pool != nil {
		authHandler := handlers.NewAuthHandler(auth.NewService(database.NewUserStore(s.pool), tokens, s.logger), s.logger)
		mux.HandleFunc("POST /auth/register", authHandler.HandleRegister)
		mux.HandleFunc("POST /auth/login", authHandler.HandleLogin)
		mux.HandleFunc("GET /auth/me", authHandler.HandleMe)
	} else {
		s.logger.Warn("database not available, /auth endpoints disabled")
	}

	// 中间件链（第一个在最外层）
	rlCtx, rlCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rlCancel
	s.handler = Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		OTelTracing(),
		CORS(CORSConfig{
			AllowedOrigins: cfg.Server.CORSAllowedOrigins,
			AllowedMethods: cfg.Server.CORSAllowedMethods,
			AllowedHeaders: cfg.Server.CORSAllowedHeaders,
		}),
		RateLimiter(rlCtx, cfg.Server.RateLimitRequests, cfg.Server.RateLimitWindow, s.logger),
		OptionalJWT(tokens, s.logger),
	)

	s.logger.Info("handlers initialized",
		zap.Strings("agent_types", agentTypeNames()),
		zap.Bool("database", s.pool != nil),
		zap.Bool("redis", s.cache != nil),
	)
	return nil
}

func agentTypeNames() []string {
	names := make([]string, 0, 4)
	for _, t := range agent.Types() {
		names = append(names, string(t))
	}
	return names
}

// =============================================================================
// 🌐 HTTP / Metrics 服务器
// =============================================================================

func (s *Server) startHTTPServer() error {
	s.httpManager = server.NewManager(s.handler, server.ConfigFromServer(s.cfg.Server), s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}
	s.logger.Info("HTTP server started", zap.String("addr", s.cfg.Server.Addr()))
	return nil
}

func (s *Server) startMetricsServer() error {
	if s.cfg.Server.MetricsPort <= 0 {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", s.collector.Handler())

	s.metricsManager = server.NewManager(mux, server.MetricsConfig(s.cfg.Server), s.logger.With(zap.String("server", "metrics")))
	if err := s.metricsManager.Start(); err != nil {
		return err
	}
	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 优雅关闭
// =============================================================================

// WaitForShutdown 阻塞直到收到关闭信号，然后释放全部资源
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		if err := s.httpManager.WaitForShutdown(context.Background()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	s.Shutdown()
}

// Shutdown 关闭 Metrics 服务器、缓存、数据库与遥测
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Error("Cache close error", zap.Error(err))
		}
	}
	if s.pool != nil {
		if err := s.pool.Close(); err != nil {
			s.logger.Error("Database close error", zap.Error(err))
		}
	}
	if s.otel != nil {
		if err := s.otel.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
