package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/webbridge/api/handlers"
	"github.com/BaSui01/webbridge/auth"
	"github.com/BaSui01/webbridge/bridge"
	"github.com/BaSui01/webbridge/browser"
	"github.com/BaSui01/webbridge/cache"
	"github.com/BaSui01/webbridge/config"
	"github.com/BaSui01/webbridge/internal/database"
	"github.com/BaSui01/webbridge/internal/metrics"
	"github.com/BaSui01/webbridge/internal/server"
	"github.com/BaSui01/webbridge/internal/telemetry"
	"github.com/BaSui01/webbridge/internal/tokenizer"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 WebBridge 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	otel   *telemetry.Providers
	db     *gorm.DB

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 会话缓存
	store         cache.Store
	storePing     func(ctx context.Context) error
	dbPool        *database.PoolManager
	sweeperCancel context.CancelFunc

	// 浏览器桥接
	bridgeManager *bridge.Manager

	// Handlers
	chatHandler   *handlers.ChatHandler
	modelsHandler *handlers.ModelsHandler
	healthHandler *handlers.HealthHandler

	// 指标收集器
	metricsCollector *metrics.Collector

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc

	wg sync.WaitGroup
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, otel *telemetry.Providers, db *gorm.DB) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		otel:   otel,
		db:     db,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 初始化指标收集器
	s.metricsCollector = metrics.NewCollector("webbridge", s.logger)

	// 2. 初始化会话缓存
	if err := s.initCacheStore(); err != nil {
		return fmt.Errorf("failed to init cache store: %w", err)
	}

	// 3. 初始化浏览器桥接（登录两侧 Web UI）
	if err := s.initBridge(); err != nil {
		return fmt.Errorf("failed to init bridge: %w", err)
	}

	// 4. 初始化 Handlers
	s.initHandlers()

	// 5. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 6. 启动 Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("cache_driver", s.cfg.Cache.Driver),
	)

	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initCacheStore 构建会话缓存后端并启动过期清理
func (s *Server) initCacheStore() error {
	switch s.cfg.Cache.Driver {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:         s.cfg.Redis.Addr,
			Password:     s.cfg.Redis.Password,
			DB:           s.cfg.Redis.DB,
			PoolSize:     s.cfg.Redis.PoolSize,
			MinIdleConns: s.cfg.Redis.MinIdleConns,
		})
		store, err := cache.NewRedisStore(context.Background(), client, s.cfg.Cache.MaxAge, s.logger)
		if err != nil {
			return err
		}
		s.store = store
		s.storePing = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}

	default:
		pool, err := database.NewPoolManager(s.db, database.DefaultPoolConfig(), s.logger)
		if err != nil {
			return err
		}
		driver := s.cfg.Cache.Driver
		pool.OnStats(func(stats sql.DBStats) {
			s.metricsCollector.RecordDBConnections(driver, stats.OpenConnections, stats.Idle)
		})
		store, err := cache.NewSQLStore(pool.DB(), s.logger)
		if err != nil {
			return err
		}
		s.dbPool = pool
		s.store = store
		s.storePing = pool.Ping
	}

	// 过期会话后台清理
	sweeper := cache.NewSweeper(s.store, s.cfg.Cache.CleanupInterval, s.cfg.Cache.MaxAge, s.logger)
	ctx, cancel := context.WithCancel(context.Background())
	s.sweeperCancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sweeper.Run(ctx)
	}()

	return nil
}

// initBridge 构建两侧浏览器会话并执行初始登录。
// 任一侧登录失败即中止启动：半登录状态下对外服务没有意义，
// 服务中途失败的会话则进入 error 状态并快速拒绝后续请求。
func (s *Server) initBridge() error {
	sessions := make([]*bridge.Session, 0, 2)

	for _, p := range []struct {
		service string
		surface *bridge.Surface
		cfg     config.ProviderConfig
	}{
		{"claude", bridge.ClaudeSurface(), s.cfg.Claude},
		{"chatgpt", bridge.ChatGPTSurface(), s.cfg.ChatGPT},
	} {
		drv, err := browser.NewChromeDPDriver(browserConfig(s.cfg.Browser), s.logger)
		if err != nil {
			return fmt.Errorf("create browser driver for %s: %w", p.service, err)
		}

		var ga *auth.GoogleAuthenticator
		if p.cfg.AuthMethod == "google" {
			sessionStore := auth.NewSessionStore(p.cfg.SessionDir, p.service, s.logger)
			ga = auth.NewGoogleAuthenticator(p.service, sessionStore, s.logger)
		}

		sessions = append(sessions, bridge.NewSession(p.surface, drv, p.cfg, ga, s.logger))
	}

	s.bridgeManager = bridge.NewManager(sessions, s.store, s.logger)
	s.bridgeManager.SetObserver(s.metricsCollector.Observer())

	if err := s.bridgeManager.Initialize(context.Background()); err != nil {
		return fmt.Errorf("bridge initialization failed: %w", err)
	}

	return nil
}

// initHandlers 初始化所有 handlers
func (s *Server) initHandlers() {
	tokens := tokenizer.NewEstimator("", s.logger)

	s.chatHandler = handlers.NewChatHandler(s.bridgeManager, tokens, s.logger)
	s.modelsHandler = handlers.NewModelsHandler(s.bridgeManager, s.logger)

	s.healthHandler = handlers.NewHealthHandler(s.bridgeManager, s.logger)
	s.healthHandler.RegisterCheck(handlers.NewStoreHealthCheck("cache", s.storePing))

	s.logger.Info("Handlers initialized", zap.String("tokenizer", tokens.Name()))
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// ========================================
	// 健康检查端点
	// ========================================
	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)

	// 版本信息端点
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// ========================================
	// OpenAI 兼容 API 路由
	// ========================================
	mux.HandleFunc("/v1/chat/completions", s.chatHandler.HandleCompletion)
	mux.HandleFunc("/v1/models", s.modelsHandler.HandleList)

	// ========================================
	// 构建中间件链
	// ========================================
	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics"}
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		OTelTracing(),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
		APIKeyAuth(s.cfg.Server.APIKeys, skipAuthPaths, s.logger),
	)

	// ========================================
	// 使用 internal/server.Manager
	// ========================================
	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout, // 流式补全可能持续数分钟
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	// 启动服务器（非阻塞），配置了证书时走 HTTPS
	if s.cfg.Server.TLSCertFile != "" && s.cfg.Server.TLSKeyFile != "" {
		if err := s.httpManager.StartTLS(s.cfg.Server.TLSCertFile, s.cfg.Server.TLSKeyFile); err != nil {
			return err
		}
	} else if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.ReadTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	// 启动服务器（非阻塞）
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}

	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	// 0. 停止 rate limiter 清理 goroutine
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	// 1. 关闭 HTTP 服务器（不再接受新的补全请求）
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 2. 关闭 Metrics 服务器
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// 3. 关闭浏览器会话
	if s.bridgeManager != nil {
		if err := s.bridgeManager.Close(); err != nil {
			s.logger.Error("Bridge shutdown error", zap.Error(err))
		}
	}

	// 4. 停止缓存清理并关闭缓存后端
	if s.sweeperCancel != nil {
		s.sweeperCancel()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("Cache store shutdown error", zap.Error(err))
		}
	}
	if s.dbPool != nil {
		if err := s.dbPool.Close(); err != nil {
			s.logger.Error("Database pool shutdown error", zap.Error(err))
		}
	}

	// 5. 关闭遥测
	if s.otel != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.otel.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	// 6. 等待所有 goroutine 完成
	s.wg.Wait()

	s.logger.Info("Graceful shutdown completed")
}

// browserConfig 将配置映射为浏览器驱动配置
func browserConfig(cfg config.BrowserConfig) browser.Config {
	return browser.Config{
		Headless:       cfg.Headless,
		Debug:          cfg.Debug,
		SlowMo:         cfg.SlowMo,
		ViewportWidth:  cfg.ViewportWidth,
		ViewportHeight: cfg.ViewportHeight,
		UserAgent:      cfg.UserAgent,
		ProxyURL:       cfg.ProxyURL,
		Timeout:        cfg.Timeout,
		ScreenshotDir:  cfg.ScreenshotDir,
	}
}
