package strategies

import (
	"context"
	"time"

	"dex-market-bot/internal/market"
	"dex-market-bot/internal/wallet"
)

// PriceActionConfig parameterizes the stair-step price walk
type PriceActionConfig struct {
	MaxCycles             int           `json:"max_cycles"`
	UpMovePercent         float64       `json:"up_move_percent"`         // rise per cycle before retracing
	RetracePercent        float64       `json:"retrace_percent"`         // pullback from the cycle high
	TargetIncreasePercent float64       `json:"target_increase_percent"` // cumulative rise that ends the walk
	TradeAmount           float64       `json:"trade_amount"`            // token units per step
	StepInterval          time.Duration `json:"step_interval"`
	MinPrice              float64       `json:"min_price"`
	MaxPrice              float64       `json:"max_price"`
}

// DefaultPriceActionConfig returns price-action defaults
func DefaultPriceActionConfig() PriceActionConfig {
	return PriceActionConfig{
		MaxCycles:             8,
		UpMovePercent:         3,
		RetracePercent:        1.2,
		TargetIncreasePercent: 15,
		TradeAmount:           50,
		StepInterval:          15 * time.Second,
	}
}

// PriceActionStrategy walks price in stair-steps: buy pushes up to a
// per-cycle target, a partial sell retracement, repeat up to the cycle
// cap or until the cumulative increase target is reached.
type PriceActionStrategy struct {
	*BaseStrategy
	cfg PriceActionConfig

	walkStartPrice float64
	cycleBasePrice float64
	highestPrice   float64
	cyclesDone     int
	retracing      bool
}

// NewPriceActionStrategy creates a price-action strategy
func NewPriceActionStrategy(cfg PriceActionConfig, deps Deps) *PriceActionStrategy {
	d := DefaultPriceActionConfig()
	if cfg.MaxCycles <= 0 {
		cfg.MaxCycles = d.MaxCycles
	}
	if cfg.UpMovePercent <= 0 {
		cfg.UpMovePercent = d.UpMovePercent
	}
	if cfg.RetracePercent <= 0 {
		cfg.RetracePercent = d.RetracePercent
	}
	if cfg.TradeAmount <= 0 {
		cfg.TradeAmount = d.TradeAmount
	}
	if cfg.StepInterval <= 0 {
		cfg.StepInterval = d.StepInterval
	}
	return &PriceActionStrategy{
		BaseStrategy: newBase("price-action", deps, cfg.MinPrice, cfg.MaxPrice),
		cfg:          cfg,
	}
}

// Run drives the stair-step walk until the target, the cycle cap or a stop
func (s *PriceActionStrategy) Run(ctx context.Context) error {
	s.activate("orchestrator")
	defer s.Stop()

	ticker := time.NewTicker(s.cfg.StepInterval)
	defer ticker.Stop()

	for s.active() {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			done, err := s.step(ctx)
			if err != nil {
				if market.IsRecoverable(err) {
					s.logger.Debug("Price-action step skipped", "reason", err.Error())
					continue
				}
				s.onError(err)
				return err
			}
			if done {
				s.setPhase("target-reached")
				s.logger.Info("Price walk finished", "cycles", s.cyclesDone, "high", s.highestPrice)
				return nil
			}
		}
	}
	return nil
}

// step executes one stair-step action and reports whether the walk is done
func (s *PriceActionStrategy) step(ctx context.Context) (bool, error) {
	price := s.snapshotLocal().Price
	if price <= 0 {
		return false, nil
	}

	if s.walkStartPrice == 0 {
		s.walkStartPrice = price
		s.cycleBasePrice = price
		s.highestPrice = price
	}
	if price > s.highestPrice {
		s.highestPrice = price
	}

	// Cumulative target ends the walk regardless of cycle position
	if gain := (price - s.walkStartPrice) / s.walkStartPrice * 100; gain >= s.cfg.TargetIncreasePercent {
		return true, nil
	}
	if s.cyclesDone >= s.cfg.MaxCycles {
		return true, nil
	}

	if !s.retracing {
		cycleTarget := s.cycleBasePrice * (1 + s.cfg.UpMovePercent/100)
		if price >= cycleTarget {
			s.retracing = true
			s.setPhase("retracing")
			return false, nil
		}
		s.setPhase("pushing")
		if _, err := s.trade(ctx, market.SideBuy, s.cfg.TradeAmount, wallet.KindAny); err != nil {
			return false, err
		}
		return false, nil
	}

	retraceFloor := s.highestPrice * (1 - s.cfg.RetracePercent/100)
	if price <= retraceFloor {
		s.retracing = false
		s.cyclesDone++
		s.cycleBasePrice = price
		s.setPhase("pushing")
		return false, nil
	}
	if _, err := s.trade(ctx, market.SideSell, s.cfg.TradeAmount*0.6, wallet.KindAny); err != nil {
		return false, err
	}
	return false, nil
}
