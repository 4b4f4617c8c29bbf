package dex

import (
	"context"
	"time"
)

// MarketClient defines the DEX boundary the core consumes. Quote lookup,
// trade submission and balance queries are owned by the chain-connection
// layer; everything here may block on the network and takes a context.
type MarketClient interface {
	GetQuote(ctx context.Context, inputMint, outputMint string, amount float64, maxSlippageBps int) (*Quote, error)
	SubmitSwap(ctx context.Context, quote *Quote, walletPubkey string) (*TradeResult, error)
	GetOrderBook(ctx context.Context, inputMint, outputMint string) (*OrderBookSnapshot, error)
	GetBalance(ctx context.Context, walletPubkey string) (float64, error)
}

// Clock supplies time and the current settlement window (chain slot).
// The core never reads the wall clock or slot number directly.
type Clock interface {
	Now() time.Time
	CurrentSlot() uint64
}

// SystemClock derives slots from wall time at a fixed slot duration
type SystemClock struct {
	Genesis      time.Time
	SlotDuration time.Duration
}

// NewSystemClock returns a clock with a 400ms slot, anchored at start
func NewSystemClock() *SystemClock {
	return &SystemClock{
		Genesis:      time.Now(),
		SlotDuration: 400 * time.Millisecond,
	}
}

func (c *SystemClock) Now() time.Time {
	return time.Now()
}

func (c *SystemClock) CurrentSlot() uint64 {
	d := c.SlotDuration
	if d <= 0 {
		d = 400 * time.Millisecond
	}
	return uint64(time.Since(c.Genesis) / d)
}

// Ensure both Client and MockClient implement MarketClient
var _ MarketClient = (*Client)(nil)
var _ MarketClient = (*MockClient)(nil)
var _ MarketClient = (*RetryClient)(nil)
