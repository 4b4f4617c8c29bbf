package dex

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"dex-market-bot/internal/market"
)

// RetryClient wraps a MarketClient with exponential backoff on network
// failures. The core's pattern and strategy loops never retry internally;
// resilience lives here at the boundary, where callers opt in.
type RetryClient struct {
	inner       MarketClient
	maxElapsed  time.Duration
	maxInterval time.Duration
}

// NewRetryClient wraps inner with bounded exponential backoff
func NewRetryClient(inner MarketClient, maxElapsed time.Duration) *RetryClient {
	if maxElapsed <= 0 {
		maxElapsed = 15 * time.Second
	}
	return &RetryClient{
		inner:       inner,
		maxElapsed:  maxElapsed,
		maxInterval: 5 * time.Second,
	}
}

func (rc *RetryClient) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = rc.maxInterval
	b.MaxElapsedTime = rc.maxElapsed
	return backoff.WithContext(b, ctx)
}

// retryable reports whether err is worth retrying. Only network-tagged
// errors are; rejections and validation failures are permanent.
func retryable(err error) bool {
	return market.CodeOf(err) == market.CodeNetwork
}

func permanentUnless(err error) error {
	if err == nil || retryable(err) {
		return err
	}
	return backoff.Permanent(err)
}

func (rc *RetryClient) GetQuote(ctx context.Context, inputMint, outputMint string, amount float64, maxSlippageBps int) (*Quote, error) {
	var quote *Quote
	op := func() error {
		var err error
		quote, err = rc.inner.GetQuote(ctx, inputMint, outputMint, amount, maxSlippageBps)
		return permanentUnless(err)
	}
	if err := backoff.Retry(op, rc.backoff(ctx)); err != nil {
		return nil, unwrapPermanent(err)
	}
	return quote, nil
}

// SubmitSwap is NOT retried: a submission that timed out may still land,
// and resubmitting would double-trade. Network errors propagate as-is.
func (rc *RetryClient) SubmitSwap(ctx context.Context, quote *Quote, walletPubkey string) (*TradeResult, error) {
	return rc.inner.SubmitSwap(ctx, quote, walletPubkey)
}

func (rc *RetryClient) GetOrderBook(ctx context.Context, inputMint, outputMint string) (*OrderBookSnapshot, error) {
	var snapshot *OrderBookSnapshot
	op := func() error {
		var err error
		snapshot, err = rc.inner.GetOrderBook(ctx, inputMint, outputMint)
		return permanentUnless(err)
	}
	if err := backoff.Retry(op, rc.backoff(ctx)); err != nil {
		return nil, unwrapPermanent(err)
	}
	return snapshot, nil
}

func (rc *RetryClient) GetBalance(ctx context.Context, walletPubkey string) (float64, error) {
	var balance float64
	op := func() error {
		var err error
		balance, err = rc.inner.GetBalance(ctx, walletPubkey)
		return permanentUnless(err)
	}
	if err := backoff.Retry(op, rc.backoff(ctx)); err != nil {
		return 0, unwrapPermanent(err)
	}
	return balance, nil
}

func unwrapPermanent(err error) error {
	var pe *backoff.PermanentError
	if errors.As(err, &pe) {
		return pe.Err
	}
	return err
}
