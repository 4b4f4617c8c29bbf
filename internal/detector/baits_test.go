package detector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dex-market-bot/internal/dex"
	"dex-market-bot/internal/events"
	"dex-market-bot/internal/market"
	"dex-market-bot/internal/trader"
)

type fakeExecutor struct {
	mu      sync.Mutex
	reqs    []trader.Request
	failAt  int // 1-based order index to fail at, 0 = never
	counter int
}

func (f *fakeExecutor) Execute(_ context.Context, req trader.Request) (*market.TradeMetrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counter++
	if f.failAt > 0 && f.counter >= f.failAt {
		return nil, errors.New("swap rejected")
	}
	f.reqs = append(f.reqs, req)
	return &market.TradeMetrics{
		Wallet:    "fake-wallet",
		Side:      req.Side,
		Amount:    req.Amount,
		Price:     1.5,
		TxID:      "tx",
		Source:    req.Source,
		Timestamp: time.Now(),
	}, nil
}

type fakeBooks struct {
	depths []float64
	calls  int
}

func (f *fakeBooks) GetOrderBook(context.Context, string, string) (*dex.OrderBookSnapshot, error) {
	depth := f.depths[f.calls%len(f.depths)]
	f.calls++
	return &dex.OrderBookSnapshot{
		Bids: []dex.OrderBookLevel{{Price: 1.0, Size: depth}},
	}, nil
}

func fastBaitConfig() BaitConfig {
	cfg := DefaultBaitConfig()
	cfg.MinDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	cfg.ObserveDelay = time.Millisecond
	return cfg
}

// ============================================================================
// TEST: Deployment submits a randomized sequence and reports reaction
// ============================================================================

func TestBaitRunner_Deploy(t *testing.T) {
	exec := &fakeExecutor{}
	books := &fakeBooks{depths: []float64{1000, 1400}}
	r := NewBaitRunner(exec, books, events.NewBus(), testLogger(), "USDC", "TOKEN")

	cfg := fastBaitConfig()
	report, err := r.Deploy(context.Background(), BaitBuyWall, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Orders < cfg.MinOrders || report.Orders > cfg.MaxOrders {
		t.Errorf("order count %d outside [%d, %d]", report.Orders, cfg.MinOrders, cfg.MaxOrders)
	}
	if report.TotalFilled <= 0 {
		t.Error("expected a positive filled total")
	}
	if report.ReactionDelta != 400 {
		t.Errorf("reaction delta = %.2f, want 400", report.ReactionDelta)
	}
	for _, req := range exec.reqs {
		if req.Side != market.SideBuy {
			t.Errorf("buy wall submitted a %s order", req.Side)
		}
		if req.Source != "bait:BUY_WALL" {
			t.Errorf("unexpected source %q", req.Source)
		}
	}
}

// ============================================================================
// TEST: Order sizes are jittered, not uniform
// ============================================================================

func TestBaitRunner_SizeJitter(t *testing.T) {
	exec := &fakeExecutor{}
	books := &fakeBooks{depths: []float64{0}}
	r := NewBaitRunner(exec, books, events.NewBus(), testLogger(), "USDC", "TOKEN")

	cfg := fastBaitConfig()
	cfg.MinOrders, cfg.MaxOrders = 6, 6
	if _, err := r.Deploy(context.Background(), BaitBuyWall, cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	distinct := make(map[float64]bool)
	for _, req := range exec.reqs {
		distinct[req.Amount] = true
	}
	if len(distinct) < 2 {
		t.Error("jittered sizes should not all be identical")
	}
}

// ============================================================================
// TEST: HFT pair alternates sides; insider phases buys then sells
// ============================================================================

func TestBaitRunner_SequenceShapes(t *testing.T) {
	for _, kind := range []BaitKind{BaitHFTPair, BaitInsiderPhases} {
		exec := &fakeExecutor{}
		books := &fakeBooks{depths: []float64{0}}
		r := NewBaitRunner(exec, books, events.NewBus(), testLogger(), "USDC", "TOKEN")

		cfg := fastBaitConfig()
		cfg.MinOrders, cfg.MaxOrders = 4, 4
		if _, err := r.Deploy(context.Background(), kind, cfg); err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}

		switch kind {
		case BaitHFTPair:
			if len(exec.reqs) != 8 {
				t.Fatalf("HFT pair should submit 8 orders for 4 pairs, got %d", len(exec.reqs))
			}
			for i, req := range exec.reqs {
				want := market.SideBuy
				if i%2 == 1 {
					want = market.SideSell
				}
				if req.Side != want {
					t.Errorf("HFT order %d side = %s, want %s", i, req.Side, want)
				}
			}
		case BaitInsiderPhases:
			if exec.reqs[0].Side != market.SideBuy || exec.reqs[len(exec.reqs)-1].Side != market.SideSell {
				t.Error("insider phases should accumulate first and distribute last")
			}
		}
	}
}

// ============================================================================
// TEST: A failed order aborts the sequence and propagates the error
// ============================================================================

func TestBaitRunner_AbortOnFailure(t *testing.T) {
	exec := &fakeExecutor{failAt: 2}
	books := &fakeBooks{depths: []float64{0}}
	r := NewBaitRunner(exec, books, events.NewBus(), testLogger(), "USDC", "TOKEN")

	report, err := r.Deploy(context.Background(), BaitBreakoutTrap, fastBaitConfig())
	if err == nil {
		t.Fatal("expected the sequence to abort with an error")
	}
	if report != nil {
		t.Error("aborted sequence must not return a partial report")
	}
	if len(exec.reqs) != 1 {
		t.Errorf("expected exactly one successful order before the abort, got %d", len(exec.reqs))
	}
}

// ============================================================================
// TEST: Unknown bait kinds are configuration errors
// ============================================================================

func TestBaitRunner_UnknownKind(t *testing.T) {
	r := NewBaitRunner(&fakeExecutor{}, &fakeBooks{depths: []float64{0}}, events.NewBus(), testLogger(), "USDC", "TOKEN")

	_, err := r.Deploy(context.Background(), BaitKind("MYSTERY"), fastBaitConfig())
	if market.CodeOf(err) != market.CodeConfiguration {
		t.Errorf("expected CONFIGURATION_ERROR, got %v", err)
	}
}
