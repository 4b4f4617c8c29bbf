package safety

import (
	"math"
	"sync"
	"time"

	"dex-market-bot/internal/market"
)

// FundingMetrics are the four inputs the constants table is derived from
type FundingMetrics struct {
	TotalFunding   float64 `json:"total_funding"`   // quote currency committed to the run
	MarketCap      float64 `json:"market_cap"`      // token market cap in quote currency
	Liquidity      float64 `json:"liquidity"`       // pooled liquidity in quote currency
	AverageBalance float64 `json:"average_balance"` // mean wallet balance in quote currency
}

// Constants bounds every trading parameter in the system. All values are
// deterministic functions of FundingMetrics, each clamped to a sane range.
type Constants struct {
	MaxSlippagePercent    float64       `json:"max_slippage_percent"`     // [0.5, 2.0]
	MinLiquidityFloor     float64       `json:"min_liquidity_floor"`      // 10% of total funding
	MaxSingleTrade        float64       `json:"max_single_trade"`         // quote currency
	TargetDailyVolume     float64       `json:"target_daily_volume"`      // quote currency
	MinTradeInterval      time.Duration `json:"min_trade_interval"`       // [2s, 5m]
	MaxTradeInterval      time.Duration `json:"max_trade_interval"`       // [30s, 30m]
	MaxPriceImpactPercent float64       `json:"max_price_impact_percent"` // [0.1, 1.0]
	RSICeiling            float64       `json:"rsi_ceiling"`              // [70, 85]
	PriceBandPercent      float64       `json:"price_band_percent"`       // [5, 50]
	DerivedAt             time.Time     `json:"derived_at"`
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampD(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DeriveConstants computes the bounded trading parameters from funding and
// market metrics. Pure: no state, no side effects. Callers must re-derive
// whenever any input changes; acting on a stale table is a correctness bug.
func DeriveConstants(fm FundingMetrics) (Constants, error) {
	inputs := []float64{fm.TotalFunding, fm.MarketCap, fm.Liquidity, fm.AverageBalance}
	for _, v := range inputs {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return Constants{}, market.Errorf(market.CodeConfiguration, "safety.DeriveConstants",
				"funding metrics must be positive and finite, got %+v", fm)
		}
	}

	// Deeper liquidity relative to market cap tolerates tighter slippage.
	depthRatio := fm.Liquidity / fm.MarketCap
	maxSlippage := clampF(2.0-15.0*depthRatio, 0.5, 2.0)

	minLiquidityFloor := 0.10 * fm.TotalFunding

	maxSingleTrade := math.Min(0.01*fm.Liquidity, 0.20*fm.AverageBalance)

	targetDailyVolume := clampF(4.0*fm.Liquidity, 0.5*fm.TotalFunding, 10.0*fm.TotalFunding)

	// Pace trades so the per-trade cap times the trade rate roughly meets
	// the daily volume target.
	secondsPerDay := 24.0 * 3600.0
	interval := time.Duration(secondsPerDay * maxSingleTrade / targetDailyVolume * float64(time.Second))
	minInterval := clampD(interval, 2*time.Second, 5*time.Minute)
	maxInterval := clampD(4*interval, 30*time.Second, 30*time.Minute)

	maxPriceImpact := clampF(maxSlippage/2.0, 0.1, 1.0)

	rsiCeiling := clampF(70.0+15.0*math.Min(1.0, fm.Liquidity/fm.TotalFunding), 70.0, 85.0)

	priceBand := clampF(100.0*20.0*maxSingleTrade/fm.Liquidity, 5.0, 50.0)

	return Constants{
		MaxSlippagePercent:    maxSlippage,
		MinLiquidityFloor:     minLiquidityFloor,
		MaxSingleTrade:        maxSingleTrade,
		TargetDailyVolume:     targetDailyVolume,
		MinTradeInterval:      minInterval,
		MaxTradeInterval:      maxInterval,
		MaxPriceImpactPercent: maxPriceImpact,
		RSICeiling:            rsiCeiling,
		PriceBandPercent:      priceBand,
		DerivedAt:             time.Now(),
	}, nil
}

// Table holds the current constants so every component checks the same
// refreshed values. Refresh replaces the whole table atomically.
type Table struct {
	mu       sync.RWMutex
	current  Constants
	funding  FundingMetrics
	refreshN int
}

// NewTable derives an initial constants table
func NewTable(fm FundingMetrics) (*Table, error) {
	c, err := DeriveConstants(fm)
	if err != nil {
		return nil, err
	}
	return &Table{current: c, funding: fm, refreshN: 1}, nil
}

// Current returns the latest derived constants
func (t *Table) Current() Constants {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Funding returns the inputs the current table was derived from
func (t *Table) Funding() FundingMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.funding
}

// Refresh re-derives the table from updated funding metrics
func (t *Table) Refresh(fm FundingMetrics) (Constants, error) {
	c, err := DeriveConstants(fm)
	if err != nil {
		return Constants{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = c
	t.funding = fm
	t.refreshN++
	return c, nil
}
