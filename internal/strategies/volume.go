package strategies

import (
	"context"
	"sync"
	"time"

	"dex-market-bot/internal/market"
	"dex-market-bot/internal/wallet"
)

// VolumeConfig parameterizes the volume strategy
type VolumeConfig struct {
	DailyTarget      float64       `json:"daily_target"` // quote currency, 0 = derive from safety constants
	OffPeakPercent   float64       `json:"off_peak_percent"`
	BuySplitPercent  float64       `json:"buy_split_percent"` // share of volume executed as buys
	GrowthMultiplier float64       `json:"growth_multiplier"`
	GrowthHours      int           `json:"growth_hours"` // consecutive hours the multiplier applies
	CycleInterval    time.Duration `json:"cycle_interval"`
	SliceFraction    float64       `json:"slice_fraction"` // share of remaining hourly need per trade
	MinPrice         float64       `json:"min_price"`
	MaxPrice         float64       `json:"max_price"`
}

// DefaultVolumeConfig returns volume strategy defaults
func DefaultVolumeConfig() VolumeConfig {
	return VolumeConfig{
		OffPeakPercent:   15,
		BuySplitPercent:  55,
		GrowthMultiplier: 1.5,
		GrowthHours:      6,
		CycleInterval:    20 * time.Second,
		SliceFraction:    0.1,
	}
}

// VolumeStrategy fills hourly volume targets derived from the peak-window
// share table, splitting the needed volume into buy and sell legs.
type VolumeStrategy struct {
	*BaseStrategy
	cfg     VolumeConfig
	windows []TimeWindow

	volMu           sync.Mutex
	hourlyVolume    float64
	hourlyBuyVolume float64
	dailyVolume     float64
	currentHour     int
	currentDay      int
	growthHoursLeft int
}

// NewVolumeStrategy creates a volume strategy over the given window table
func NewVolumeStrategy(cfg VolumeConfig, windows []TimeWindow, deps Deps) *VolumeStrategy {
	d := DefaultVolumeConfig()
	if cfg.OffPeakPercent <= 0 {
		cfg.OffPeakPercent = d.OffPeakPercent
	}
	if cfg.BuySplitPercent <= 0 {
		cfg.BuySplitPercent = d.BuySplitPercent
	}
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = d.CycleInterval
	}
	if cfg.SliceFraction <= 0 || cfg.SliceFraction > 1 {
		cfg.SliceFraction = d.SliceFraction
	}
	if len(windows) == 0 {
		windows = DefaultWindows()
	}
	return &VolumeStrategy{
		BaseStrategy:    newBase("volume", deps, cfg.MinPrice, cfg.MaxPrice),
		cfg:             cfg,
		windows:         windows,
		currentHour:     -1,
		currentDay:      -1,
		growthHoursLeft: cfg.GrowthHours,
	}
}

// Run fills hourly targets until stopped
func (s *VolumeStrategy) Run(ctx context.Context) error {
	s.activate("orchestrator")
	defer s.Stop()

	ticker := time.NewTicker(s.cfg.CycleInterval)
	defer ticker.Stop()

	for s.active() {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.cycle(ctx, time.Now().UTC()); err != nil {
				if market.IsRecoverable(err) {
					s.logger.Debug("Volume cycle skipped", "reason", err.Error())
					continue
				}
				s.onError(err)
				return err
			}
		}
	}
	return nil
}

// cycle rolls the counters and executes one slice of the remaining need
func (s *VolumeStrategy) cycle(ctx context.Context, now time.Time) error {
	s.rollover(now)

	target := s.hourlyTarget(now)
	s.volMu.Lock()
	needed := target - s.hourlyVolume
	// An empty hour starts on the buy leg
	buyShare := 0.0
	if s.hourlyVolume > 0 {
		buyShare = s.hourlyBuyVolume / s.hourlyVolume * 100
	}
	s.volMu.Unlock()

	if needed <= 0 {
		s.setPhase("on-target")
		return nil
	}
	s.setPhase("filling")

	price := s.snapshotLocal().Price
	if price <= 0 {
		return nil
	}

	slice := needed * s.cfg.SliceFraction
	isBuy := buyShare <= s.cfg.BuySplitPercent
	return s.ExecuteTrade(ctx, slice/price, isBuy)
}

// rollover resets the hourly and daily counters on boundary crossings
func (s *VolumeStrategy) rollover(now time.Time) {
	s.volMu.Lock()
	defer s.volMu.Unlock()

	if now.Hour() != s.currentHour {
		if s.currentHour >= 0 {
			s.logger.Info("Hourly volume rollover", "hour", s.currentHour, "volume", s.hourlyVolume)
			if s.growthHoursLeft > 0 {
				s.growthHoursLeft--
			}
		}
		s.currentHour = now.Hour()
		s.hourlyVolume = 0
		s.hourlyBuyVolume = 0
	}
	if now.YearDay() != s.currentDay {
		if s.currentDay >= 0 {
			s.logger.Info("Daily volume rollover", "volume", s.dailyVolume)
		}
		s.currentDay = now.YearDay()
		s.dailyVolume = 0
		s.growthHoursLeft = s.cfg.GrowthHours
	}
}

// hourlyTarget derives the current hour's volume target from the active
// window's share, the off-peak share otherwise, times the growth
// multiplier while growth hours remain.
func (s *VolumeStrategy) hourlyTarget(now time.Time) float64 {
	daily := s.cfg.DailyTarget
	if daily <= 0 {
		daily = s.table.Current().TargetDailyVolume
	}

	share := s.cfg.OffPeakPercent
	hours := offPeakHours(s.windows)
	if w, ok := ActiveWindow(s.windows, now); ok {
		share = w.VolumePercent
		hours = w.Hours()
	}
	if hours <= 0 {
		hours = 1
	}

	target := daily * share / 100 / float64(hours)

	s.volMu.Lock()
	growing := s.growthHoursLeft > 0 && s.cfg.GrowthMultiplier > 1
	s.volMu.Unlock()
	if growing {
		target *= s.cfg.GrowthMultiplier
	}
	return target
}

// ExecuteTrade runs one gated volume trade and counts the filled amount.
// Also the orchestrator's delegation target for directional trades.
func (s *VolumeStrategy) ExecuteTrade(ctx context.Context, amount float64, isBuy bool) error {
	if amount <= 0 {
		return market.Errorf(market.CodeConfiguration, "volume.ExecuteTrade", "amount must be positive, got %f", amount)
	}

	side := market.SideSell
	if isBuy {
		side = market.SideBuy
	}
	tm, err := s.trade(ctx, side, amount, wallet.KindAny)
	if err != nil {
		return err
	}

	s.volMu.Lock()
	s.hourlyVolume += tm.QuoteAmount
	s.dailyVolume += tm.QuoteAmount
	if isBuy {
		s.hourlyBuyVolume += tm.QuoteAmount
	}
	s.volMu.Unlock()
	return nil
}

// Counters returns the current hourly and daily filled volume
func (s *VolumeStrategy) Counters() (hourly, daily float64) {
	s.volMu.Lock()
	defer s.volMu.Unlock()
	return s.hourlyVolume, s.dailyVolume
}
