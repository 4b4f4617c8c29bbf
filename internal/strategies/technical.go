package strategies

import (
	"context"
	"time"

	"dex-market-bot/internal/market"
	"dex-market-bot/internal/wallet"
)

// TechnicalConfig parameterizes the indicator-driven strategy
type TechnicalConfig struct {
	RSIPeriod     int `json:"rsi_period"`
	ShortMAPeriod int `json:"short_ma_period"`
	LongMAPeriod  int `json:"long_ma_period"`
	MACDFast      int `json:"macd_fast"`
	MACDSlow      int `json:"macd_slow"`
	MACDSignal    int `json:"macd_signal"`

	RSITarget    float64 `json:"rsi_target"`
	RSITolerance float64 `json:"rsi_tolerance"`
	NudgeAmount  float64 `json:"nudge_amount"` // token units per corrective trade

	CrossoverInterval   time.Duration `json:"crossover_interval"` // min spacing between engineered crossovers
	CrossoverBurstSize  int           `json:"crossover_burst_size"`
	CrossoverBurstDelay time.Duration `json:"crossover_burst_delay"`
	BurstAmount         float64       `json:"burst_amount"`

	CycleInterval time.Duration `json:"cycle_interval"`
	MinPrice      float64       `json:"min_price"`
	MaxPrice      float64       `json:"max_price"`
}

// DefaultTechnicalConfig returns technical strategy defaults
func DefaultTechnicalConfig() TechnicalConfig {
	return TechnicalConfig{
		RSIPeriod:           14,
		ShortMAPeriod:       10,
		LongMAPeriod:        50,
		MACDFast:            12,
		MACDSlow:            26,
		MACDSignal:          9,
		RSITarget:           55,
		RSITolerance:        8,
		NudgeAmount:         25,
		CrossoverInterval:   4 * time.Hour,
		CrossoverBurstSize:  5,
		CrossoverBurstDelay: time.Second,
		BurstAmount:         40,
		CycleInterval:       30 * time.Second,
	}
}

type pricePoint struct {
	price float64
	at    time.Time
}

// TechnicalStrategy maintains a 24h rolling price history, recomputes
// RSI / moving averages / MACD each cycle, nudges price toward the RSI
// target and periodically engineers a MACD crossover with a buy burst.
type TechnicalStrategy struct {
	*BaseStrategy
	cfg TechnicalConfig

	history       []pricePoint
	lastCrossover time.Time
}

// NewTechnicalStrategy creates a technical strategy
func NewTechnicalStrategy(cfg TechnicalConfig, deps Deps) *TechnicalStrategy {
	d := DefaultTechnicalConfig()
	if cfg.RSIPeriod <= 0 {
		cfg.RSIPeriod = d.RSIPeriod
	}
	if cfg.ShortMAPeriod <= 0 {
		cfg.ShortMAPeriod = d.ShortMAPeriod
	}
	if cfg.LongMAPeriod <= cfg.ShortMAPeriod {
		cfg.LongMAPeriod = d.LongMAPeriod
	}
	if cfg.MACDFast <= 0 {
		cfg.MACDFast = d.MACDFast
	}
	if cfg.MACDSlow <= cfg.MACDFast {
		cfg.MACDSlow = d.MACDSlow
	}
	if cfg.MACDSignal <= 0 {
		cfg.MACDSignal = d.MACDSignal
	}
	if cfg.RSITarget <= 0 {
		cfg.RSITarget = d.RSITarget
	}
	if cfg.RSITolerance <= 0 {
		cfg.RSITolerance = d.RSITolerance
	}
	if cfg.NudgeAmount <= 0 {
		cfg.NudgeAmount = d.NudgeAmount
	}
	if cfg.CrossoverInterval <= 0 {
		cfg.CrossoverInterval = d.CrossoverInterval
	}
	if cfg.CrossoverBurstSize <= 0 {
		cfg.CrossoverBurstSize = d.CrossoverBurstSize
	}
	if cfg.CrossoverBurstDelay <= 0 {
		cfg.CrossoverBurstDelay = d.CrossoverBurstDelay
	}
	if cfg.BurstAmount <= 0 {
		cfg.BurstAmount = d.BurstAmount
	}
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = d.CycleInterval
	}
	return &TechnicalStrategy{
		BaseStrategy: newBase("technical", deps, cfg.MinPrice, cfg.MaxPrice),
		cfg:          cfg,
	}
}

// Run recomputes indicators and nudges price until stopped
func (s *TechnicalStrategy) Run(ctx context.Context) error {
	s.activate("orchestrator")
	defer s.Stop()

	ticker := time.NewTicker(s.cfg.CycleInterval)
	defer ticker.Stop()

	for s.active() {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.cycle(ctx, time.Now()); err != nil {
				if market.IsRecoverable(err) {
					s.logger.Debug("Technical cycle skipped", "reason", err.Error())
					continue
				}
				s.onError(err)
				return err
			}
		}
	}
	return nil
}

func (s *TechnicalStrategy) cycle(ctx context.Context, now time.Time) error {
	price := s.snapshotLocal().Price
	if price <= 0 {
		return nil
	}

	s.record(price, now)
	rsi, macd := s.recompute()

	// Nudge toward the RSI target band
	switch {
	case rsi < s.cfg.RSITarget-s.cfg.RSITolerance:
		s.setPhase("nudging-up")
		if _, err := s.trade(ctx, market.SideBuy, s.cfg.NudgeAmount, wallet.KindRetail); err != nil {
			return err
		}
	case rsi > s.cfg.RSITarget+s.cfg.RSITolerance:
		s.setPhase("nudging-down")
		if _, err := s.trade(ctx, market.SideSell, s.cfg.NudgeAmount, wallet.KindRetail); err != nil {
			return err
		}
	default:
		s.setPhase("on-target")
	}

	// Engineer a MACD crossover when the histogram sits negative and the
	// spacing gate allows another one
	if macd.Histogram < 0 && now.Sub(s.lastCrossover) >= s.cfg.CrossoverInterval {
		s.lastCrossover = now
		if err := s.crossoverBurst(ctx); err != nil {
			return err
		}
	}
	return nil
}

// record appends the price point and prunes history beyond 24 hours
func (s *TechnicalStrategy) record(price float64, now time.Time) {
	s.history = append(s.history, pricePoint{price: price, at: now})
	cutoff := now.Add(-24 * time.Hour)
	for len(s.history) > 0 && s.history[0].at.Before(cutoff) {
		s.history = s.history[1:]
	}
}

// recompute derives the indicator set and publishes it to the shared book
func (s *TechnicalStrategy) recompute() (float64, market.MACD) {
	prices := make([]float64, len(s.history))
	for i, p := range s.history {
		prices[i] = p.price
	}

	rsi := CalculateRSI(prices, s.cfg.RSIPeriod)
	mas := market.MovingAverages{
		Short: CalculateSMA(prices, s.cfg.ShortMAPeriod),
		Long:  CalculateSMA(prices, s.cfg.LongMAPeriod),
	}
	macd := CalculateMACD(prices, s.cfg.MACDFast, s.cfg.MACDSlow, s.cfg.MACDSignal)

	s.book.Update(func(m *market.Metrics) {
		m.RSI = rsi
		m.MovingAverages = mas
		m.MACD = macd
	})
	s.mu.Lock()
	s.metrics.RSI = rsi
	s.metrics.MovingAverages = mas
	s.metrics.MACD = macd
	s.mu.Unlock()

	return rsi, macd
}

// crossoverBurst issues a spaced run of buys from rotating wallets to
// push the fast EMA through the slow one
func (s *TechnicalStrategy) crossoverBurst(ctx context.Context) error {
	s.setPhase("engineering-crossover")
	s.logger.Info("Engineering MACD crossover", "burst_size", s.cfg.CrossoverBurstSize)

	for i := 0; i < s.cfg.CrossoverBurstSize; i++ {
		if i > 0 {
			timer := time.NewTimer(s.cfg.CrossoverBurstDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
		if _, err := s.trade(ctx, market.SideBuy, s.cfg.BurstAmount, wallet.KindAny); err != nil {
			if market.IsRecoverable(err) {
				continue
			}
			return err
		}
	}
	return nil
}
