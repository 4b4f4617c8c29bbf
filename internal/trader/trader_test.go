package trader

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"dex-market-bot/internal/dex"
	"dex-market-bot/internal/events"
	"dex-market-bot/internal/logging"
	"dex-market-bot/internal/market"
	"dex-market-bot/internal/safety"
	"dex-market-bot/internal/wallet"
)

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

type captureRecorder struct {
	wallets []string
	amounts []float64
}

func (r *captureRecorder) RecordTrade(walletPubkey string, amount float64, at time.Time) {
	r.wallets = append(r.wallets, walletPubkey)
	r.amounts = append(r.amounts, amount)
}

func testTable(t *testing.T) *safety.Table {
	t.Helper()
	table, err := safety.NewTable(safety.FundingMetrics{
		TotalFunding:   100000,
		MarketCap:      1000000,
		Liquidity:      200000,
		AverageBalance: 500,
	})
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	return table
}

func buildTrader(t *testing.T, mockLiquidity float64) (*Trader, *dex.MockClient, *market.Book, *captureRecorder) {
	t.Helper()

	logger := logging.New(&logging.Config{Level: "ERROR", Output: "stderr"})
	mock := dex.NewMockClient(1.0, mockLiquidity)
	book := market.NewBook(market.Metrics{Price: 1.0, Liquidity: 200000})
	recorder := &captureRecorder{}

	wallets := []wallet.Info{
		{PublicKey: "whale-1", Kind: wallet.KindWhale, Balance: 500, TokenBalance: 10000},
		{PublicKey: "whale-2", Kind: wallet.KindWhale, Balance: 500, TokenBalance: 10000},
	}

	tr := New(Config{
		Client:     mock,
		Clock:      mock,
		Allocator:  wallet.NewAllocator(wallets, logger),
		Table:      testTable(t),
		Book:       book,
		Recorder:   recorder,
		Bus:        events.NewBus(),
		Logger:     logger,
		InputMint:  "USDC",
		OutputMint: "TOKEN",
	})
	return tr, mock, book, recorder
}

// ============================================================================
// TEST: Oversized requests are clamped to the single-trade cap
// ============================================================================

func TestExecute_ClampsToSingleTradeCap(t *testing.T) {
	tr, _, book, recorder := buildTrader(t, 200000)

	// MaxSingleTrade = min(1% of 200000, 20% of 500) = 100 quote units
	tm, err := tr.Execute(context.Background(), Request{
		Side:   market.SideBuy,
		Amount: 1000,
		Source: "test",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !floatEquals(tm.Amount, 100) {
		t.Errorf("filled amount = %.4f, want 100 (clamped)", tm.Amount)
	}

	if len(recorder.wallets) != 1 {
		t.Fatalf("recorder calls = %d, want 1", len(recorder.wallets))
	}
	if snap := book.Snapshot(); snap.Volume24h <= 0 {
		t.Error("executed trade should add to 24h volume")
	}
}

func TestExecute_RejectsNonPositiveAmount(t *testing.T) {
	tr, _, _, _ := buildTrader(t, 200000)

	_, err := tr.Execute(context.Background(), Request{Side: market.SideBuy, Amount: 0, Source: "test"})
	if market.CodeOf(err) != market.CodeConfiguration {
		t.Errorf("expected CONFIGURATION_ERROR, got %v", err)
	}
}

// ============================================================================
// TEST: Price impact above the cap trips the safety limit
// ============================================================================

func TestExecute_PriceImpactCap(t *testing.T) {
	// Thin venue: 100 quote against 1000 liquidity is a 5% impact, far
	// above the derived cap.
	tr, _, _, _ := buildTrader(t, 1000)

	_, err := tr.Execute(context.Background(), Request{
		Side:   market.SideBuy,
		Amount: 100,
		Source: "test",
	})
	if market.CodeOf(err) != market.CodeSafetyLimit {
		t.Fatalf("expected SAFETY_LIMIT_EXCEEDED, got %v", err)
	}
	if !errors.Is(err, market.ErrSafetyLimit) {
		t.Error("error should wrap ErrSafetyLimit")
	}
	if !market.IsRecoverable(err) {
		t.Error("safety limit rejections are recoverable")
	}
}

// ============================================================================
// TEST: Wallet exhaustion and submission failure error paths
// ============================================================================

func TestExecute_NoEligibleWallet(t *testing.T) {
	tr, _, _, _ := buildTrader(t, 200000)

	// The fixture holds no bot wallets
	_, err := tr.Execute(context.Background(), Request{
		Side:       market.SideSell,
		Amount:     10,
		WalletKind: wallet.KindBot,
		Source:     "test",
	})
	if !errors.Is(err, market.ErrNoEligibleWallet) {
		t.Fatalf("expected ErrNoEligibleWallet, got %v", err)
	}
	if !market.IsRecoverable(err) {
		t.Error("missing wallet should be recoverable")
	}
}

func TestExecute_SubmitFailure(t *testing.T) {
	tr, mock, _, recorder := buildTrader(t, 200000)
	mock.SetFailSwaps(true)

	_, err := tr.Execute(context.Background(), Request{
		Side:   market.SideBuy,
		Amount: 10,
		Source: "test",
	})
	if market.CodeOf(err) != market.CodeTransactionFailed {
		t.Fatalf("expected TRANSACTION_FAILED, got %v", err)
	}
	if market.IsRecoverable(err) {
		t.Error("failed submissions are not recoverable")
	}
	if len(recorder.wallets) != 0 {
		t.Error("failed trades must not reach the recorder")
	}
}

// ============================================================================
// TEST: Liquidity adjustments respect the floor
// ============================================================================

func TestAdjustLiquidity(t *testing.T) {
	tr, _, book, _ := buildTrader(t, 200000)

	m, err := tr.AdjustLiquidity(context.Background(), 5000, true, "test")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !floatEquals(m.Liquidity, 205000) {
		t.Errorf("liquidity after add = %.2f, want 205000", m.Liquidity)
	}

	m, err = tr.AdjustLiquidity(context.Background(), 100000, false, "test")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !floatEquals(m.Liquidity, 105000) {
		t.Errorf("liquidity after remove = %.2f, want 105000", m.Liquidity)
	}

	// MinLiquidityFloor = 10% of 100000 funding = 10000. Removing 100000
	// from 105000 would land below it.
	if _, err := tr.AdjustLiquidity(context.Background(), 100000, false, "test"); market.CodeOf(err) != market.CodeSafetyLimit {
		t.Errorf("floor breach should trip the safety limit, got %v", err)
	}
	if snap := book.Snapshot(); !floatEquals(snap.Liquidity, 105000) {
		t.Errorf("rejected removal must not change liquidity, got %.2f", snap.Liquidity)
	}

	if _, err := tr.AdjustLiquidity(context.Background(), -5, true, "test"); market.CodeOf(err) != market.CodeConfiguration {
		t.Errorf("negative amount should be a configuration error, got %v", err)
	}
}

// ============================================================================
// TEST: Sink receives executed trades
// ============================================================================

func TestExecute_Sink(t *testing.T) {
	tr, _, _, _ := buildTrader(t, 200000)

	var sunk []market.TradeMetrics
	tr.SetSink(func(tm market.TradeMetrics) { sunk = append(sunk, tm) })

	if _, err := tr.Execute(context.Background(), Request{Side: market.SideBuy, Amount: 10, Source: "test"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(sunk) != 1 {
		t.Fatalf("sink calls = %d, want 1", len(sunk))
	}
	if sunk[0].Source != "test" || sunk[0].Wallet == "" {
		t.Errorf("sink received incomplete record: %+v", sunk[0])
	}
}
