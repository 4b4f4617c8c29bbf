package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dex-market-bot/internal/auth"
	"dex-market-bot/internal/detector"
	"dex-market-bot/internal/market"
	"dex-market-bot/internal/pattern"
	"dex-market-bot/internal/safety"
	"dex-market-bot/internal/wallet"
)

// respondError maps trading error codes onto HTTP statuses
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch market.CodeOf(err) {
	case market.CodeConfiguration:
		status = http.StatusBadRequest
	case market.CodeWalletUnavailable:
		status = http.StatusConflict
	case market.CodeSafetyLimit:
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": string(market.CodeOf(err))})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"time":    time.Now().UTC(),
		"metrics": s.engine.Metrics(),
	})
}

// ============================================================================
// AUTH
// ============================================================================

type loginRequest struct {
	Operator string `json:"operator" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	if s.authManager == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "authentication is disabled"})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "operator and password are required"})
		return
	}

	token, err := s.authManager.Login(req.Operator, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   s.authManager.TokenDuration(),
	})
}

// ============================================================================
// PATTERNS
// ============================================================================

type startPatternRequest struct {
	Type            string  `json:"type" binding:"required"`
	BaseAmount      float64 `json:"base_amount"`
	Intensity       int     `json:"intensity"`
	DurationSeconds int     `json:"duration_seconds"`
	CycleDelayMs    int     `json:"cycle_delay_ms"`
	StopLoss        float64 `json:"stop_loss"`
	TakeProfit      float64 `json:"take_profit"`
	WalletKind      string  `json:"wallet_kind"`
}

func (s *Server) handleStartPattern(c *gin.Context) {
	var req startPatternRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := s.engine.StartPattern(pattern.Config{
		Type:       pattern.Type(req.Type),
		BaseAmount: req.BaseAmount,
		Intensity:  req.Intensity,
		Duration:   time.Duration(req.DurationSeconds) * time.Second,
		CycleDelay: time.Duration(req.CycleDelayMs) * time.Millisecond,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		WalletKind: wallet.Kind(req.WalletKind),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"pattern_id": id})
}

func (s *Server) handleListPatterns(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"patterns": s.engine.ListPatterns()})
}

func (s *Server) handlePatternStatus(c *gin.Context) {
	st, err := s.engine.PatternStatus(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handlePatternTrades(c *gin.Context) {
	trades, err := s.engine.PatternTrades(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

func (s *Server) handleStopPattern(c *gin.Context) {
	if err := s.engine.StopPattern(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": c.Param("id")})
}

// ============================================================================
// ORCHESTRATOR
// ============================================================================

func (s *Server) handleStartOrchestrator(c *gin.Context) {
	if err := s.engine.StartOrchestrator(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"running": true})
}

func (s *Server) handleStopOrchestrator(c *gin.Context) {
	s.engine.StopOrchestrator()
	c.JSON(http.StatusOK, gin.H{"running": false})
}

func (s *Server) handleOrchestratorStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.OrchestratorStatus())
}

// ============================================================================
// BEHAVIOR
// ============================================================================

func (s *Server) handleFlaggedWallets(c *gin.Context) {
	flagged := s.engine.FlaggedWallets()
	c.JSON(http.StatusOK, gin.H{"flagged": flagged, "count": len(flagged)})
}

func (s *Server) handleBehaviorProfile(c *gin.Context) {
	p := s.engine.BehaviorProfile(c.Param("wallet"))
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no trades recorded for wallet"})
		return
	}
	c.JSON(http.StatusOK, p)
}

type deployBaitRequest struct {
	Kind              string  `json:"kind" binding:"required"`
	TargetAmount      float64 `json:"target_amount"`
	MinOrders         int     `json:"min_orders"`
	MaxOrders         int     `json:"max_orders"`
	SizeJitterPercent float64 `json:"size_jitter_percent"`
}

func (s *Server) handleDeployBait(c *gin.Context) {
	var req deployBaitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := detector.DefaultBaitConfig()
	if req.TargetAmount > 0 {
		cfg.TargetAmount = req.TargetAmount
	}
	if req.MinOrders > 0 {
		cfg.MinOrders = req.MinOrders
	}
	if req.MaxOrders > 0 {
		cfg.MaxOrders = req.MaxOrders
	}
	if req.SizeJitterPercent > 0 {
		cfg.SizeJitterPercent = req.SizeJitterPercent
	}

	report, err := s.engine.DeployBait(c.Request.Context(), detector.BaitKind(req.Kind), cfg)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ============================================================================
// SAFETY, METRICS, WALLETS
// ============================================================================

func (s *Server) handleConstants(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Constants())
}

type refreshConstantsRequest struct {
	TotalFunding   float64 `json:"total_funding"`
	MarketCap      float64 `json:"market_cap"`
	Liquidity      float64 `json:"liquidity"`
	AverageBalance float64 `json:"average_balance"`
}

func (s *Server) handleRefreshConstants(c *gin.Context) {
	var req refreshConstantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	constants, err := s.engine.RefreshConstants(safety.FundingMetrics{
		TotalFunding:   req.TotalFunding,
		MarketCap:      req.MarketCap,
		Liquidity:      req.Liquidity,
		AverageBalance: req.AverageBalance,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, constants)
}

func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Metrics())
}

func (s *Server) handleWallets(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.WalletSummary())
}
