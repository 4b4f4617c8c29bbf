package safety

import (
	"math"
	"testing"
	"time"

	"dex-market-bot/internal/market"
)

// floatEquals compares two floats with tolerance
func floatEquals(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

// ============================================================================
// TEST: Clamp ranges hold for arbitrary positive finite inputs
// ============================================================================

func TestDeriveConstants_ClampRanges(t *testing.T) {
	testCases := []struct {
		name string
		fm   FundingMetrics
	}{
		{"tiny market", FundingMetrics{TotalFunding: 10, MarketCap: 100, Liquidity: 5, AverageBalance: 1}},
		{"balanced market", FundingMetrics{TotalFunding: 50000, MarketCap: 2000000, Liquidity: 200000, AverageBalance: 500}},
		{"deep liquidity", FundingMetrics{TotalFunding: 1000, MarketCap: 10000, Liquidity: 9000, AverageBalance: 100}},
		{"thin liquidity", FundingMetrics{TotalFunding: 1e6, MarketCap: 1e9, Liquidity: 1000, AverageBalance: 1e5}},
		{"huge everything", FundingMetrics{TotalFunding: 1e12, MarketCap: 1e15, Liquidity: 1e13, AverageBalance: 1e9}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := DeriveConstants(tc.fm)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if c.MaxSlippagePercent < 0.5 || c.MaxSlippagePercent > 2.0 {
				t.Errorf("MaxSlippagePercent %.4f outside [0.5, 2.0]", c.MaxSlippagePercent)
			}
			if !floatEquals(c.MinLiquidityFloor, 0.10*tc.fm.TotalFunding, 1e-9*tc.fm.TotalFunding) {
				t.Errorf("MinLiquidityFloor %.4f != 10%% of funding", c.MinLiquidityFloor)
			}
			wantCap := math.Min(0.01*tc.fm.Liquidity, 0.20*tc.fm.AverageBalance)
			if !floatEquals(c.MaxSingleTrade, wantCap, 1e-9*wantCap+1e-12) {
				t.Errorf("MaxSingleTrade %.6f, want %.6f", c.MaxSingleTrade, wantCap)
			}
			if c.MinTradeInterval < 2*time.Second || c.MinTradeInterval > 5*time.Minute {
				t.Errorf("MinTradeInterval %v outside [2s, 5m]", c.MinTradeInterval)
			}
			if c.MaxTradeInterval < 30*time.Second || c.MaxTradeInterval > 30*time.Minute {
				t.Errorf("MaxTradeInterval %v outside [30s, 30m]", c.MaxTradeInterval)
			}
			if c.MaxPriceImpactPercent < 0.1 || c.MaxPriceImpactPercent > 1.0 {
				t.Errorf("MaxPriceImpactPercent %.4f outside [0.1, 1.0]", c.MaxPriceImpactPercent)
			}
			if c.RSICeiling < 70 || c.RSICeiling > 85 {
				t.Errorf("RSICeiling %.2f outside [70, 85]", c.RSICeiling)
			}
			if c.PriceBandPercent < 5 || c.PriceBandPercent > 50 {
				t.Errorf("PriceBandPercent %.2f outside [5, 50]", c.PriceBandPercent)
			}
		})
	}
}

// ============================================================================
// TEST: Determinism — same inputs, same outputs
// ============================================================================

func TestDeriveConstants_Deterministic(t *testing.T) {
	fm := FundingMetrics{TotalFunding: 75000, MarketCap: 3e6, Liquidity: 400000, AverageBalance: 900}

	a, err := DeriveConstants(fm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := DeriveConstants(fm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a.MaxSlippagePercent != b.MaxSlippagePercent ||
		a.MaxSingleTrade != b.MaxSingleTrade ||
		a.TargetDailyVolume != b.TargetDailyVolume ||
		a.MinTradeInterval != b.MinTradeInterval {
		t.Errorf("derivation not deterministic: %+v vs %+v", a, b)
	}
}

// ============================================================================
// TEST: Invalid inputs are configuration errors
// ============================================================================

func TestDeriveConstants_InvalidInputs(t *testing.T) {
	testCases := []struct {
		name string
		fm   FundingMetrics
	}{
		{"zero funding", FundingMetrics{TotalFunding: 0, MarketCap: 1, Liquidity: 1, AverageBalance: 1}},
		{"negative liquidity", FundingMetrics{TotalFunding: 1, MarketCap: 1, Liquidity: -5, AverageBalance: 1}},
		{"NaN market cap", FundingMetrics{TotalFunding: 1, MarketCap: math.NaN(), Liquidity: 1, AverageBalance: 1}},
		{"infinite balance", FundingMetrics{TotalFunding: 1, MarketCap: 1, Liquidity: 1, AverageBalance: math.Inf(1)}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DeriveConstants(tc.fm)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if market.CodeOf(err) != market.CodeConfiguration {
				t.Errorf("expected CONFIGURATION_ERROR, got %s", market.CodeOf(err))
			}
		})
	}
}

// ============================================================================
// TEST: Table refresh replaces constants atomically
// ============================================================================

func TestTable_Refresh(t *testing.T) {
	table, err := NewTable(FundingMetrics{TotalFunding: 10000, MarketCap: 1e6, Liquidity: 50000, AverageBalance: 200})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	before := table.Current()

	_, err = table.Refresh(FundingMetrics{TotalFunding: 20000, MarketCap: 1e6, Liquidity: 50000, AverageBalance: 200})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	after := table.Current()
	if !floatEquals(after.MinLiquidityFloor, 2*before.MinLiquidityFloor, 1e-6) {
		t.Errorf("expected floor to double after funding doubled: before %.2f after %.2f",
			before.MinLiquidityFloor, after.MinLiquidityFloor)
	}

	if _, err := table.Refresh(FundingMetrics{}); err == nil {
		t.Error("expected refresh with zero metrics to fail")
	}
	if table.Current() != after {
		t.Error("failed refresh must not replace the current table")
	}
}
