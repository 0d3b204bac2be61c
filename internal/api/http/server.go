package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/weisyn/esg-registry/client/core/config"
	"github.com/weisyn/esg-registry/internal/api/http/handlers"
	"github.com/weisyn/esg-registry/internal/api/http/middleware"
	"github.com/weisyn/esg-registry/internal/api/websocket"
	"github.com/weisyn/esg-registry/internal/core/infrastructure/metrics"
)

// RouterConfig 路由依赖
type RouterConfig struct {
	Profile   *config.Profile
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Reader    handlers.DashboardReader
	Chain     handlers.ChainStatus
	WebSocket *websocket.Server // 可选
}

// NewRouter 创建路由引擎
//
// /health 与 /metrics 不限流；/api/v1 下为看板只读接口。
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	p := cfg.Profile

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(logger),
	)
	if cfg.Metrics != nil {
		router.Use(middleware.NewMetrics(cfg.Metrics.Registry()).Middleware())
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}
	router.Use(middleware.ErrorHandler(logger))

	router.GET("/health", handlers.NewHealthHandler(cfg.Chain, p.ChainID).Health)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.NewRateLimit(logger, p.Server.RateLimit, p.Server.Burst).Middleware())
	handlers.NewKPIHandlers(p.KPIs).RegisterRoutes(v1)
	handlers.NewReportHandlers(cfg.Reader, p.KPIs, p.YearFrom, p.YearTo, logger).RegisterRoutes(v1)

	if cfg.WebSocket != nil {
		cfg.WebSocket.RegisterRoutes(router)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "path": c.Request.URL.Path})
	})
	return router
}

// ServerParams HTTP服务器依赖
type ServerParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Profile   *config.Profile
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Reader    handlers.DashboardReader
	Chain     handlers.ChainStatus
	WebSocket *websocket.Server `optional:"true"`
}

// Server HTTP服务器
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	logger     *zap.Logger
	ws         *websocket.Server
	listen     string

	mu   sync.Mutex
	addr net.Addr
}

// NewServer 创建HTTP服务器并注册生命周期钩子
func NewServer(p ServerParams) *Server {
	s := New(RouterConfig{
		Profile:   p.Profile,
		Logger:    p.Logger,
		Metrics:   p.Metrics,
		Reader:    p.Reader,
		Chain:     p.Chain,
		WebSocket: p.WebSocket,
	}, p.Profile.Server.Listen)

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Start()
		},
		OnStop: func(ctx context.Context) error {
			return s.Stop(ctx)
		},
	})
	return s
}

// New 创建未启动的服务器
func New(cfg RouterConfig, listen string) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	router := NewRouter(cfg)
	return &Server{
		router: router,
		logger: logger,
		ws:     cfg.WebSocket,
		listen: listen,
		httpServer: &http.Server{
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Router 返回路由引擎
func (s *Server) Router() *gin.Engine { return s.router }

// Addr 返回实际监听地址，未启动时为空
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addr == nil {
		return ""
	}
	return s.addr.String()
}

// Start 监听端口并在后台提供服务
//
// 端口被占用时直接返回错误。
func (s *Server) Start() error {
	if s.ws != nil {
		if err := s.ws.Start(); err != nil {
			return err
		}
	}

	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("HTTP服务器监听 %s 失败: %w", s.listen, err)
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP服务器运行失败", zap.Error(err))
		}
	}()

	addr := ln.Addr().String()
	s.logger.Info("HTTP服务器启动成功",
		zap.String("addr", addr),
		zap.String("api", "http://"+addr+"/api/v1/"),
		zap.String("ws", "ws://"+addr+"/ws"))
	return nil
}

// Stop 停止HTTP服务器
//
// 等待活跃请求完成，最多 5 秒。
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("正在关闭HTTP服务器")
	if s.ws != nil {
		s.ws.Stop()
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(stopCtx); err != nil {
		s.logger.Error("HTTP服务器关闭出错", zap.Error(err))
		return err
	}
	s.logger.Info("HTTP服务器已关闭")
	return nil
}
