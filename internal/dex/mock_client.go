package dex

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

// MockClient simulates the DEX boundary for development and testing.
// Prices follow a random walk, the order book is synthesized around the
// mid price, and swaps always fill at the quoted price.
type MockClient struct {
	mu         sync.RWMutex
	price      float64
	liquidity  float64
	balances   map[string]float64
	slot       uint64
	genesis    time.Time
	slotLength time.Duration
	lastUpdate time.Time
	rng        *rand.Rand
	failSwaps  bool
}

// NewMockClient creates a mock client seeded with a base price and liquidity
func NewMockClient(basePrice, liquidity float64) *MockClient {
	return &MockClient{
		price:      basePrice,
		liquidity:  liquidity,
		balances:   make(map[string]float64),
		genesis:    time.Now(),
		slotLength: 400 * time.Millisecond,
		lastUpdate: time.Now(),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetBalance seeds a simulated wallet balance
func (mc *MockClient) SetBalance(walletPubkey string, balance float64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.balances[walletPubkey] = balance
}

// SetFailSwaps makes every SubmitSwap fail (for failure-path testing)
func (mc *MockClient) SetFailSwaps(fail bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.failSwaps = fail
}

// updatePrice adds small random variations to simulate market movement
func (mc *MockClient) updatePrice() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if time.Since(mc.lastUpdate) < time.Second {
		return
	}

	// Random walk: -0.5% to +0.5% change
	change := (mc.rng.Float64() - 0.5) * 0.01
	mc.price = mc.price * (1 + change)
	mc.lastUpdate = time.Now()
}

// GetQuote returns a simulated quote with impact proportional to size
func (mc *MockClient) GetQuote(ctx context.Context, inputMint, outputMint string, amount float64, maxSlippageBps int) (*Quote, error) {
	mc.updatePrice()

	mc.mu.RLock()
	price := mc.price
	liquidity := mc.liquidity
	mc.mu.RUnlock()

	impact := 0.0
	if liquidity > 0 {
		impact = math.Min(5.0, 100.0*amount*price/liquidity)
	}

	return &Quote{
		InputMint:          inputMint,
		OutputMint:         outputMint,
		InAmount:           amount,
		OutAmount:          amount * price,
		Price:              price,
		PriceImpactPercent: impact,
		MaxSlippageBps:     maxSlippageBps,
		Route: []RouteHop{
			{Venue: "mockswap", Pool: shortMint(inputMint) + "-" + shortMint(outputMint), FeeBps: 25},
		},
		FetchedAt: time.Now(),
	}, nil
}

// SubmitSwap fills at the quoted price and nudges the walk in trade direction
func (mc *MockClient) SubmitSwap(ctx context.Context, quote *Quote, walletPubkey string) (*TradeResult, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.failSwaps {
		return nil, fmt.Errorf("mock swap rejected")
	}

	// Trades move the simulated price by their impact
	mc.price = mc.price * (1 + quote.PriceImpactPercent/100*0.1)
	mc.slot = uint64(time.Since(mc.genesis) / mc.slotLength)

	return &TradeResult{
		TxID:         fmt.Sprintf("mock-%d-%06d", mc.slot, mc.rng.Intn(1000000)),
		Slot:         mc.slot,
		Price:        quote.Price,
		FilledAmount: quote.InAmount,
		FeeQuote:     quote.InAmount * quote.Price * 0.0025,
		SubmittedAt:  time.Now(),
	}, nil
}

func shortMint(mint string) string {
	if len(mint) > 4 {
		return mint[:4]
	}
	return mint
}

// GetOrderBook synthesizes a book around the current mid price
func (mc *MockClient) GetOrderBook(ctx context.Context, inputMint, outputMint string) (*OrderBookSnapshot, error) {
	mc.updatePrice()

	mc.mu.RLock()
	mid := mc.price
	liquidity := mc.liquidity
	mc.mu.RUnlock()

	levels := 10
	bids := make([]OrderBookLevel, levels)
	asks := make([]OrderBookLevel, levels)
	baseSize := liquidity / mid / 200

	for i := 0; i < levels; i++ {
		step := float64(i+1) * 0.001
		bids[i] = OrderBookLevel{
			Price: mid * (1 - step),
			Size:  baseSize * (1 + mc.rng.Float64()),
		}
		asks[i] = OrderBookLevel{
			Price: mid * (1 + step),
			Size:  baseSize * (1 + mc.rng.Float64()),
		}
	}

	return &OrderBookSnapshot{
		Bids:      bids,
		Asks:      asks,
		Spread:    asks[0].Price - bids[0].Price,
		Timestamp: time.Now(),
	}, nil
}

// GetBalance returns the simulated balance, defaulting to a funded wallet
func (mc *MockClient) GetBalance(ctx context.Context, walletPubkey string) (float64, error) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if balance, ok := mc.balances[walletPubkey]; ok {
		return balance, nil
	}
	return 100.0, nil
}

// Now returns the current time (mock clock)
func (mc *MockClient) Now() time.Time {
	return time.Now()
}

// CurrentSlot returns the simulated settlement window id
func (mc *MockClient) CurrentSlot() uint64 {
	return uint64(time.Since(mc.genesis) / mc.slotLength)
}

// Ensure MockClient also serves as the settlement clock in mock mode
var _ Clock = (*MockClient)(nil)
