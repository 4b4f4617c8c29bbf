package wallet

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"dex-market-bot/internal/logging"
	"dex-market-bot/internal/market"
)

// Kind classifies wallets by the role they play in generated activity
type Kind string

const (
	KindWhale  Kind = "WHALE"
	KindRetail Kind = "RETAIL"
	KindBot    Kind = "BOT"
	KindAny    Kind = "" // no type filter
)

// Info describes one managed wallet. Balance fields are advisory: they are
// refreshed from the chain boundary and adjusted after our own trades, but
// the chain remains authoritative.
type Info struct {
	PublicKey    string  `json:"public_key"`
	PrivateKey   string  `json:"-"` // key material, never serialized
	Kind         Kind    `json:"kind"`
	Balance      float64 `json:"balance"`       // quote currency
	TokenBalance float64 `json:"token_balance"` // token units
}

// BalanceQuerier is the balance boundary the allocator refreshes from
type BalanceQuerier interface {
	GetBalance(ctx context.Context, walletPubkey string) (float64, error)
}

// Allocator tracks wallet balances and per-settlement-window usage.
// The invariant it enforces: a wallet is selected at most once per window,
// so two trades can never land from the same wallet in the same slot.
type Allocator struct {
	mu      sync.Mutex
	wallets map[string]*Info
	order   []string          // stable iteration order for deterministic filtering
	usage   map[string]uint64 // pubkey -> last slot the wallet was used in
	rng     *rand.Rand
	logger  *logging.Logger
}

// NewAllocator creates an allocator over the given wallet set
func NewAllocator(wallets []Info, logger *logging.Logger) *Allocator {
	a := &Allocator{
		wallets: make(map[string]*Info, len(wallets)),
		order:   make([]string, 0, len(wallets)),
		usage:   make(map[string]uint64),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:  logger.WithComponent("wallet-allocator"),
	}
	for i := range wallets {
		w := wallets[i]
		if _, dup := a.wallets[w.PublicKey]; dup {
			continue
		}
		a.wallets[w.PublicKey] = &w
		a.order = append(a.order, w.PublicKey)
	}
	return a
}

// SelectWallet picks one eligible wallet uniformly at random and marks it
// used for the window in a single critical section, so concurrent callers
// cannot double-select a wallet within the same settlement window.
// Random tie-break, not first-fit: a predictable ordering would hand
// counterparties a fingerprint.
func (a *Allocator) SelectWallet(kind Kind, minBalance, minTokens float64, slot uint64) (*Info, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	candidates := make([]*Info, 0, len(a.order))
	for _, pk := range a.order {
		w := a.wallets[pk]
		if kind != KindAny && w.Kind != kind {
			continue
		}
		if w.Balance < minBalance || w.TokenBalance < minTokens {
			continue
		}
		if used, ok := a.usage[pk]; ok && used == slot {
			continue
		}
		candidates = append(candidates, w)
	}

	if len(candidates) == 0 {
		return nil, market.NewError(market.CodeWalletUnavailable, "wallet.SelectWallet", market.ErrNoEligibleWallet)
	}

	picked := candidates[a.rng.Intn(len(candidates))]
	a.usage[picked.PublicKey] = slot

	copied := *picked
	return &copied, nil
}

// IsAvailableForWindow reports whether the wallet can still act in the window
func (a *Allocator) IsAvailableForWindow(walletPubkey string, slot uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.wallets[walletPubkey]; !ok {
		return false
	}
	used, ok := a.usage[walletPubkey]
	return !ok || used != slot
}

// MarkUsed records the wallet as used in the given window
func (a *Allocator) MarkUsed(walletPubkey string, slot uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.wallets[walletPubkey]; ok {
		a.usage[walletPubkey] = slot
	}
}

// ApplyTrade adjusts advisory balances after one of our trades fills
func (a *Allocator) ApplyTrade(walletPubkey string, side market.Side, tokens, quoteAmount float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	w, ok := a.wallets[walletPubkey]
	if !ok {
		return
	}
	if side == market.SideBuy {
		w.Balance -= quoteAmount
		w.TokenBalance += tokens
	} else {
		w.Balance += quoteAmount
		w.TokenBalance -= tokens
	}
	if w.Balance < 0 {
		w.Balance = 0
	}
	if w.TokenBalance < 0 {
		w.TokenBalance = 0
	}
}

// RefreshBalances re-queries every wallet's quote balance from the boundary
func (a *Allocator) RefreshBalances(ctx context.Context, querier BalanceQuerier) error {
	a.mu.Lock()
	pubkeys := make([]string, len(a.order))
	copy(pubkeys, a.order)
	a.mu.Unlock()

	var firstErr error
	for _, pk := range pubkeys {
		balance, err := querier.GetBalance(ctx, pk)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("refreshing balance for %s: %w", pk, err)
			}
			continue
		}
		a.mu.Lock()
		if w, ok := a.wallets[pk]; ok {
			w.Balance = balance
		}
		a.mu.Unlock()
	}
	return firstErr
}

// TotalBalance sums advisory quote balances across all wallets
func (a *Allocator) TotalBalance() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	total := 0.0
	for _, w := range a.wallets {
		total += w.Balance
	}
	return total
}

// AverageBalance returns the mean quote balance, 0 for an empty set
func (a *Allocator) AverageBalance() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.wallets) == 0 {
		return 0
	}
	total := 0.0
	for _, w := range a.wallets {
		total += w.Balance
	}
	return total / float64(len(a.wallets))
}

// WalletCount returns how many wallets match the kind filter
func (a *Allocator) WalletCount(kind Kind) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if kind == KindAny {
		return len(a.wallets)
	}
	n := 0
	for _, w := range a.wallets {
		if w.Kind == kind {
			n++
		}
	}
	return n
}

// Summary returns a read-only view for status endpoints
func (a *Allocator) Summary() map[string]interface{} {
	a.mu.Lock()
	defer a.mu.Unlock()

	byKind := make(map[Kind]int)
	total := 0.0
	for _, w := range a.wallets {
		byKind[w.Kind]++
		total += w.Balance
	}
	return map[string]interface{}{
		"wallet_count":  len(a.wallets),
		"whale_count":   byKind[KindWhale],
		"retail_count":  byKind[KindRetail],
		"bot_count":     byKind[KindBot],
		"total_balance": total,
	}
}
