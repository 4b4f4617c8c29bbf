package wallet

import (
	"errors"
	"sync"
	"testing"

	"dex-market-bot/internal/logging"
	"dex-market-bot/internal/market"
)

func testLogger() *logging.Logger {
	return logging.New(&logging.Config{Level: "ERROR", Output: "stderr"})
}

func testWallets() []Info {
	return []Info{
		{PublicKey: "whale-1", Kind: KindWhale, Balance: 500, TokenBalance: 10000},
		{PublicKey: "whale-2", Kind: KindWhale, Balance: 800, TokenBalance: 20000},
		{PublicKey: "retail-1", Kind: KindRetail, Balance: 20, TokenBalance: 150},
		{PublicKey: "retail-2", Kind: KindRetail, Balance: 35, TokenBalance: 0},
		{PublicKey: "bot-1", Kind: KindBot, Balance: 5, TokenBalance: 50},
	}
}

// ============================================================================
// TEST: Window exclusivity — no wallet selected twice in one slot
// ============================================================================

func TestSelectWallet_WindowExclusivity(t *testing.T) {
	a := NewAllocator(testWallets(), testLogger())
	const slot = uint64(42)

	seen := make(map[string]bool)
	for {
		w, err := a.SelectWallet(KindAny, 0, 0, slot)
		if err != nil {
			if !errors.Is(err, market.ErrNoEligibleWallet) {
				t.Fatalf("expected ErrNoEligibleWallet once exhausted, got %v", err)
			}
			break
		}
		if seen[w.PublicKey] {
			t.Fatalf("wallet %s selected twice in slot %d", w.PublicKey, slot)
		}
		seen[w.PublicKey] = true
	}

	if len(seen) != 5 {
		t.Errorf("expected all 5 wallets to be selectable once, got %d", len(seen))
	}

	// Next window clears usage implicitly
	if _, err := a.SelectWallet(KindAny, 0, 0, slot+1); err != nil {
		t.Errorf("expected selection to succeed in a new window: %v", err)
	}
}

// ============================================================================
// TEST: Concurrent selection cannot double-pick within a window
// ============================================================================

func TestSelectWallet_ConcurrentNoDoublePick(t *testing.T) {
	a := NewAllocator(testWallets(), testLogger())
	const slot = uint64(7)

	var mu sync.Mutex
	picked := make(map[string]int)
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := a.SelectWallet(KindAny, 0, 0, slot)
			if err != nil {
				return
			}
			mu.Lock()
			picked[w.PublicKey]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	for pk, n := range picked {
		if n > 1 {
			t.Errorf("wallet %s picked %d times in the same window", pk, n)
		}
	}
}

// ============================================================================
// TEST: Type and balance filters
// ============================================================================

func TestSelectWallet_Filters(t *testing.T) {
	testCases := []struct {
		name       string
		kind       Kind
		minBalance float64
		minTokens  float64
		want       map[string]bool // acceptable picks
		wantErr    bool
	}{
		{
			name: "whales only",
			kind: KindWhale,
			want: map[string]bool{"whale-1": true, "whale-2": true},
		},
		{
			name:       "high balance floor",
			kind:       KindAny,
			minBalance: 600,
			want:       map[string]bool{"whale-2": true},
		},
		{
			name:      "token floor excludes empty retail",
			kind:      KindRetail,
			minTokens: 1,
			want:      map[string]bool{"retail-1": true},
		},
		{
			name:       "nothing eligible",
			kind:       KindBot,
			minBalance: 1000,
			wantErr:    true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAllocator(testWallets(), testLogger())
			w, err := a.SelectWallet(tc.kind, tc.minBalance, tc.minTokens, 1)
			if tc.wantErr {
				if !errors.Is(err, market.ErrNoEligibleWallet) {
					t.Fatalf("expected ErrNoEligibleWallet, got %v", err)
				}
				if market.CodeOf(err) != market.CodeWalletUnavailable {
					t.Errorf("expected WALLET_UNAVAILABLE code, got %s", market.CodeOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.want[w.PublicKey] {
				t.Errorf("unexpected pick %s", w.PublicKey)
			}
		})
	}
}

// ============================================================================
// TEST: Availability and explicit marking
// ============================================================================

func TestIsAvailableForWindow(t *testing.T) {
	a := NewAllocator(testWallets(), testLogger())

	if !a.IsAvailableForWindow("whale-1", 5) {
		t.Error("unused wallet should be available")
	}

	a.MarkUsed("whale-1", 5)
	if a.IsAvailableForWindow("whale-1", 5) {
		t.Error("marked wallet must not be available in the same window")
	}
	if !a.IsAvailableForWindow("whale-1", 6) {
		t.Error("wallet should be available again in the next window")
	}

	if a.IsAvailableForWindow("unknown", 5) {
		t.Error("unknown wallet must not be available")
	}
}

// ============================================================================
// TEST: Advisory balance adjustments
// ============================================================================

func TestApplyTrade(t *testing.T) {
	a := NewAllocator(testWallets(), testLogger())

	a.ApplyTrade("retail-1", market.SideBuy, 10, 15)
	w, err := a.SelectWallet(KindRetail, 0, 160, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.PublicKey != "retail-1" {
		t.Fatalf("expected retail-1 with topped-up tokens, got %s", w.PublicKey)
	}
	if w.Balance != 5 || w.TokenBalance != 160 {
		t.Errorf("expected balance 5 / tokens 160, got %.2f / %.2f", w.Balance, w.TokenBalance)
	}

	// Sells never drive advisory balances below zero
	a.ApplyTrade("bot-1", market.SideSell, 1000, 1)
	if a.WalletCount(KindBot) != 1 {
		t.Fatal("bot wallet should still exist")
	}
}

func TestCountsAndTotals(t *testing.T) {
	a := NewAllocator(testWallets(), testLogger())

	if got := a.WalletCount(KindWhale); got != 2 {
		t.Errorf("whale count = %d, want 2", got)
	}
	if got := a.WalletCount(KindAny); got != 5 {
		t.Errorf("total count = %d, want 5", got)
	}
	if got := a.TotalBalance(); got != 1360 {
		t.Errorf("total balance = %.2f, want 1360", got)
	}
	if got := a.AverageBalance(); got != 272 {
		t.Errorf("average balance = %.2f, want 272", got)
	}
}
