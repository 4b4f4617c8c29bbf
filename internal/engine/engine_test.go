package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"dex-market-bot/internal/detector"
	"dex-market-bot/internal/dex"
	"dex-market-bot/internal/events"
	"dex-market-bot/internal/logging"
	"dex-market-bot/internal/market"
	"dex-market-bot/internal/pattern"
	"dex-market-bot/internal/safety"
	"dex-market-bot/internal/strategies"
	"dex-market-bot/internal/trader"
	"dex-market-bot/internal/wallet"
)

func testLogger() *logging.Logger {
	return logging.New(&logging.Config{Level: "ERROR", Output: "stderr"})
}

func testWallets() []wallet.Info {
	out := make([]wallet.Info, 0, 12)
	for i := 0; i < 6; i++ {
		out = append(out, wallet.Info{
			PublicKey: fmt.Sprintf("whale-%d", i), Kind: wallet.KindWhale,
			Balance: 500, TokenBalance: 10000,
		})
	}
	for i := 0; i < 3; i++ {
		out = append(out, wallet.Info{
			PublicKey: fmt.Sprintf("retail-%d", i), Kind: wallet.KindRetail,
			Balance: 100, TokenBalance: 2000,
		})
	}
	for i := 0; i < 3; i++ {
		out = append(out, wallet.Info{
			PublicKey: fmt.Sprintf("bot-%d", i), Kind: wallet.KindBot,
			Balance: 50, TokenBalance: 1000,
		})
	}
	return out
}

func buildTestEngine(t *testing.T) (*Engine, *dex.MockClient) {
	t.Helper()

	logger := testLogger()
	bus := events.NewBus()
	book := market.NewBook(market.Metrics{Price: 1.0, Liquidity: 200000})

	table, err := safety.NewTable(safety.FundingMetrics{
		TotalFunding:   100000,
		MarketCap:      1000000,
		Liquidity:      200000,
		AverageBalance: 500,
	})
	if err != nil {
		t.Fatalf("table: %v", err)
	}

	mock := dex.NewMockClient(1.0, 200000)
	allocator := wallet.NewAllocator(testWallets(), logger)
	analyzer := detector.NewAnalyzer(detector.DefaultConfig(), bus, logger)

	tr := trader.New(trader.Config{
		Client:     mock,
		Clock:      mock,
		Allocator:  allocator,
		Table:      table,
		Book:       book,
		Recorder:   analyzer,
		Bus:        bus,
		Logger:     logger,
		InputMint:  "USDC",
		OutputMint: "TOKEN",
	})

	baits := detector.NewBaitRunner(tr, mock, bus, logger, "USDC", "TOKEN")

	deps := strategies.Deps{Executor: tr, Book: book, Table: table, Bus: bus, Logger: logger}
	orch := strategies.NewOrchestrator(
		strategies.OrchestratorConfig{MetricsInterval: 10 * time.Millisecond},
		strategies.NewLiquidityStrategy(strategies.LiquidityConfig{CheckInterval: time.Hour}, deps),
		strategies.NewVolumeStrategy(strategies.VolumeConfig{CycleInterval: time.Hour}, nil, deps),
		strategies.NewPriceActionStrategy(strategies.PriceActionConfig{StepInterval: time.Hour}, deps),
		strategies.NewTechnicalStrategy(strategies.TechnicalConfig{CycleInterval: time.Hour}, deps),
		book, bus, logger,
	)

	e := New(Config{
		Book:         book,
		Table:        table,
		Allocator:    allocator,
		Analyzer:     analyzer,
		Baits:        baits,
		Trader:       tr,
		Orchestrator: orch,
		Bus:          bus,
		Logger:       logger,
	})
	t.Cleanup(e.Close)
	return e, mock
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

// ============================================================================
// TEST: Pattern lifecycle through the facade
// ============================================================================

func TestEngine_PatternLifecycle(t *testing.T) {
	e, _ := buildTestEngine(t)

	id, err := e.StartPattern(pattern.Config{
		Type:       pattern.TypeCrossover,
		BaseAmount: 10,
		Intensity:  5,
		Duration:   100 * time.Millisecond,
		CycleDelay: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated pattern id")
	}

	waitFor(t, 2*time.Second, func() bool {
		st, err := e.PatternStatus(id)
		return err == nil && st.Status == pattern.StatusCompleted
	}, "pattern did not complete")

	if got := len(e.ListPatterns()); got != 1 {
		t.Errorf("pattern list length = %d, want 1", got)
	}

	// Invalid config is rejected up front
	if _, err := e.StartPattern(pattern.Config{Type: pattern.TypeCrossover}); market.CodeOf(err) != market.CodeConfiguration {
		t.Errorf("expected CONFIGURATION_ERROR, got %v", err)
	}

	// Unknown ids are configuration errors
	if err := e.StopPattern("no-such-id"); market.CodeOf(err) != market.CodeConfiguration {
		t.Errorf("expected CONFIGURATION_ERROR for unknown id, got %v", err)
	}
}

func TestEngine_StopPattern(t *testing.T) {
	e, _ := buildTestEngine(t)

	id, err := e.StartPattern(pattern.Config{
		Type:       pattern.TypeFibonacci,
		BaseAmount: 10,
		Intensity:  3,
		Duration:   time.Hour,
		CycleDelay: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		st, err := e.PatternStatus(id)
		return err == nil && st.Status == pattern.StatusRunning
	}, "pattern did not start")

	if err := e.StopPattern(id); err != nil {
		t.Fatalf("stop: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		st, _ := e.PatternStatus(id)
		return st.Status == pattern.StatusStopped
	}, "pattern did not stop")
}

// ============================================================================
// TEST: Bait deployment feeds the behavior analyzer
// ============================================================================

func TestEngine_DeployBaitRecordsBehavior(t *testing.T) {
	e, _ := buildTestEngine(t)

	cfg := detector.DefaultBaitConfig()
	cfg.TargetAmount = 60
	cfg.MinOrders, cfg.MaxOrders = 3, 3
	cfg.MinDelay, cfg.MaxDelay = time.Millisecond, 2*time.Millisecond
	cfg.ObserveDelay = time.Millisecond

	report, err := e.DeployBait(context.Background(), detector.BaitBuyWall, cfg)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if report.Orders != 3 {
		t.Errorf("orders = %d, want 3", report.Orders)
	}

	// Executed bait trades reach the analyzer through the trade path
	p := e.BehaviorProfile(report.Trades[0].Wallet)
	if p == nil || p.TradeCount == 0 {
		t.Error("expected the traded wallet to have a behavior profile")
	}
	if score, _ := e.BehaviorScore(report.Trades[0].Wallet); score <= 0 {
		t.Errorf("expected a positive consistency score, got %.4f", score)
	}
}

// ============================================================================
// TEST: Orchestrator control through the facade
// ============================================================================

func TestEngine_OrchestratorControl(t *testing.T) {
	e, _ := buildTestEngine(t)

	if err := e.StartOrchestrator(); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool {
		return e.OrchestratorStatus().Running
	}, "orchestrator did not start")

	if err := e.StartOrchestrator(); market.CodeOf(err) != market.CodeConfiguration {
		t.Errorf("double start should be a configuration error, got %v", err)
	}

	st := e.OrchestratorStatus()
	if len(st.Strategies) != 4 {
		t.Errorf("expected 4 strategy views, got %d", len(st.Strategies))
	}

	e.StopOrchestrator()
	waitFor(t, 2*time.Second, func() bool {
		return !e.OrchestratorStatus().Running
	}, "orchestrator did not stop")
}

// ============================================================================
// TEST: Constants refresh flows into later safety checks
// ============================================================================

func TestEngine_RefreshConstants(t *testing.T) {
	e, _ := buildTestEngine(t)

	before := e.Constants()
	after, err := e.RefreshConstants(safety.FundingMetrics{
		TotalFunding:   200000,
		MarketCap:      1000000,
		Liquidity:      200000,
		AverageBalance: 500,
	})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if after.MinLiquidityFloor != 2*before.MinLiquidityFloor {
		t.Errorf("doubling funding should double the floor: %.2f -> %.2f", before.MinLiquidityFloor, after.MinLiquidityFloor)
	}
	if got := e.Constants(); got != after {
		t.Error("Constants() should return the refreshed table")
	}

	// Invalid metrics leave the table untouched
	if _, err := e.RefreshConstants(safety.FundingMetrics{}); market.CodeOf(err) != market.CodeConfiguration {
		t.Errorf("expected CONFIGURATION_ERROR, got %v", err)
	}
	if got := e.Constants(); got != after {
		t.Error("failed refresh must not replace the table")
	}
}
