// Package api exposes the control surface: REST endpoints for patterns,
// the orchestrator, behavior scores and baits, plus a websocket stream
// of bus events.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"dex-market-bot/internal/auth"
	"dex-market-bot/internal/engine"
	"dex-market-bot/internal/events"
	"dex-market-bot/internal/logging"
)

// RateLimiter provides simple in-memory rate limiting per endpoint
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

// NewRateLimiter creates a rate limiter allowing limit requests per window
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// ServerConfig holds API server configuration
type ServerConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	ProductionMode bool     `json:"production_mode"`
	AllowedOrigins []string `json:"allowed_origins"`
	RateLimit      int      `json:"rate_limit"` // requests per minute per endpoint
}

// Server is the HTTP control API
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	engine      *engine.Engine
	authManager *auth.Manager // nil disables authentication
	bus         *events.Bus
	logger      *logging.Logger
	rateLimiter *RateLimiter
	hub         *Hub
	config      ServerConfig
}

// NewServer creates the control API server
func NewServer(cfg ServerConfig, eng *engine.Engine, authManager *auth.Manager, bus *events.Bus, logger *logging.Logger) *Server {
	if cfg.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 120
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:      router,
		engine:      eng,
		authManager: authManager,
		bus:         bus,
		logger:      logger.WithComponent("api"),
		rateLimiter: NewRateLimiter(cfg.RateLimit, time.Minute),
		hub:         NewHub(logger),
		config:      cfg,
	}
	s.hub.BridgeBus(bus)
	s.setupRoutes()
	return s
}

// rateLimitMiddleware limits requests per endpoint path
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.rateLimiter.Allow(c.FullPath()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.POST("/api/auth/login", s.handleLogin)

	protected := s.router.Group("/api")
	protected.Use(s.rateLimitMiddleware())
	if s.authManager != nil {
		protected.Use(auth.Middleware(s.authManager))
	}

	protected.POST("/patterns", s.handleStartPattern)
	protected.GET("/patterns", s.handleListPatterns)
	protected.GET("/patterns/:id", s.handlePatternStatus)
	protected.GET("/patterns/:id/trades", s.handlePatternTrades)
	protected.POST("/patterns/:id/stop", s.handleStopPattern)

	protected.POST("/orchestrator/start", s.handleStartOrchestrator)
	protected.POST("/orchestrator/stop", s.handleStopOrchestrator)
	protected.GET("/orchestrator/status", s.handleOrchestratorStatus)

	protected.GET("/behavior/flagged", s.handleFlaggedWallets)
	protected.GET("/behavior/:wallet", s.handleBehaviorProfile)
	protected.POST("/baits", s.handleDeployBait)

	protected.GET("/safety/constants", s.handleConstants)
	protected.POST("/safety/refresh", s.handleRefreshConstants)
	protected.GET("/metrics", s.handleMetrics)
	protected.GET("/wallets", s.handleWallets)

	protected.GET("/ws", s.hub.HandleWS)
}

// Start runs the HTTP server until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Control API listening", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.hub.Close()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// Router exposes the gin router (tests)
func (s *Server) Router() *gin.Engine {
	return s.router
}
