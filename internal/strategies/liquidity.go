package strategies

import (
	"context"
	"time"

	"dex-market-bot/internal/market"
)

// LiquidityConfig parameterizes the liquidity strategy
type LiquidityConfig struct {
	InitialAmount           float64       `json:"initial_amount"`            // one-time seed, 0 skips
	RemovalThresholdPercent float64       `json:"removal_threshold_percent"` // price rise since last check that triggers removal
	RemovalAmountPercent    float64       `json:"removal_amount_percent"`    // share of current liquidity to remove
	DipThresholdPercent     float64       `json:"dip_threshold_percent"`     // price drop that triggers a re-add
	AddAmountPercent        float64       `json:"add_amount_percent"`        // share of current liquidity to add back
	CheckInterval           time.Duration `json:"check_interval"`
	MinPrice                float64       `json:"min_price"`
	MaxPrice                float64       `json:"max_price"`
}

// DefaultLiquidityConfig returns liquidity strategy defaults
func DefaultLiquidityConfig() LiquidityConfig {
	return LiquidityConfig{
		InitialAmount:           10000,
		RemovalThresholdPercent: 5,
		RemovalAmountPercent:    10,
		DipThresholdPercent:     3,
		AddAmountPercent:        8,
		CheckInterval:           30 * time.Second,
	}
}

// LiquidityStrategy manages pooled depth: a one-time seed, removals when
// price runs up and re-adds on dips. It has no directional trading.
type LiquidityStrategy struct {
	*BaseStrategy
	cfg LiquidityConfig

	seeded         bool
	lastCheckPrice float64
}

// NewLiquidityStrategy creates a liquidity strategy
func NewLiquidityStrategy(cfg LiquidityConfig, deps Deps) *LiquidityStrategy {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultLiquidityConfig().CheckInterval
	}
	return &LiquidityStrategy{
		BaseStrategy: newBase("liquidity", deps, cfg.MinPrice, cfg.MaxPrice),
		cfg:          cfg,
	}
}

// Initialize seeds the pool with the configured initial amount once
func (s *LiquidityStrategy) Initialize(ctx context.Context) error {
	if err := s.BaseStrategy.Initialize(ctx); err != nil {
		return err
	}
	if s.seeded || s.cfg.InitialAmount <= 0 {
		return nil
	}

	m, err := s.executor.AdjustLiquidity(ctx, s.cfg.InitialAmount, true, "strategy:liquidity:seed")
	if err != nil {
		return err
	}
	s.seeded = true
	s.OnLiquidityChange(m.Liquidity)
	s.lastCheckPrice = s.snapshotLocal().Price
	s.logger.Info("Initial liquidity seeded", "amount", s.cfg.InitialAmount, "liquidity", m.Liquidity)
	return nil
}

// Run watches price movement and rebalances pooled liquidity
func (s *LiquidityStrategy) Run(ctx context.Context) error {
	s.activate("orchestrator")
	defer s.Stop()

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for s.active() {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.cycle(ctx); err != nil {
				if market.IsRecoverable(err) {
					s.logger.Debug("Liquidity cycle skipped", "reason", err.Error())
					continue
				}
				s.onError(err)
				return err
			}
		}
	}
	return nil
}

func (s *LiquidityStrategy) cycle(ctx context.Context) error {
	m := s.snapshotLocal()
	if s.lastCheckPrice <= 0 {
		s.lastCheckPrice = m.Price
		return nil
	}
	if m.Price <= 0 {
		return nil
	}

	changePercent := (m.Price - s.lastCheckPrice) / s.lastCheckPrice * 100
	switch {
	case changePercent >= s.cfg.RemovalThresholdPercent:
		s.setPhase("removing")
		amount := m.Liquidity * s.cfg.RemovalAmountPercent / 100
		if err := s.AdjustLiquidity(ctx, amount, false); err != nil {
			return err
		}
		s.lastCheckPrice = m.Price

	case changePercent <= -s.cfg.DipThresholdPercent:
		s.setPhase("adding")
		amount := m.Liquidity * s.cfg.AddAmountPercent / 100
		if err := s.AdjustLiquidity(ctx, amount, true); err != nil {
			return err
		}
		s.lastCheckPrice = m.Price

	default:
		s.setPhase("watching")
	}
	return nil
}

// AdjustLiquidity runs one gated pool adjustment
func (s *LiquidityStrategy) AdjustLiquidity(ctx context.Context, amount float64, isAdd bool) error {
	if amount <= 0 {
		return market.Errorf(market.CodeConfiguration, "liquidity.AdjustLiquidity", "amount must be positive, got %f", amount)
	}
	if err := s.CheckSafetyLimits(); err != nil {
		return err
	}

	m, err := s.executor.AdjustLiquidity(ctx, amount, isAdd, "strategy:liquidity")
	if err != nil {
		return err
	}
	s.OnLiquidityChange(m.Liquidity)
	return nil
}
