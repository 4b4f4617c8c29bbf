// Package trader is the single execution path for synthetic trades.
// Every pattern, strategy and bait construct funnels through Execute so
// safety caps, wallet rotation and trade recording stay consistent.
package trader

import (
	"context"
	"fmt"
	"time"

	"dex-market-bot/internal/dex"
	"dex-market-bot/internal/events"
	"dex-market-bot/internal/logging"
	"dex-market-bot/internal/market"
	"dex-market-bot/internal/safety"
	"dex-market-bot/internal/wallet"
)

// Request describes one synthetic trade to execute
type Request struct {
	Side           market.Side
	Amount         float64     // token units
	WalletKind     wallet.Kind // preferred wallet role, KindAny for no filter
	MaxSlippageBps int         // 0 = derive from safety constants
	Source         string      // originating pattern/strategy/bait label
}

// TradeRecorder receives every executed trade (behavior analyzer)
type TradeRecorder interface {
	RecordTrade(walletPubkey string, amount float64, at time.Time)
}

// SinkFunc receives executed trades for optional persistence
type SinkFunc func(tm market.TradeMetrics)

// Trader executes trades through the DEX boundary with wallet rotation
// and safety-table enforcement.
type Trader struct {
	client    dex.MarketClient
	clock     dex.Clock
	allocator *wallet.Allocator
	table     *safety.Table
	book      *market.Book
	recorder  TradeRecorder
	bus       *events.Bus
	logger    *logging.Logger
	sink      SinkFunc

	inputMint  string // quote currency mint
	outputMint string // token mint
}

// Config wires a Trader
type Config struct {
	Client     dex.MarketClient
	Clock      dex.Clock
	Allocator  *wallet.Allocator
	Table      *safety.Table
	Book       *market.Book
	Recorder   TradeRecorder
	Bus        *events.Bus
	Logger     *logging.Logger
	InputMint  string
	OutputMint string
}

// New creates a Trader
func New(cfg Config) *Trader {
	return &Trader{
		client:     cfg.Client,
		clock:      cfg.Clock,
		allocator:  cfg.Allocator,
		table:      cfg.Table,
		book:       cfg.Book,
		recorder:   cfg.Recorder,
		bus:        cfg.Bus,
		logger:     cfg.Logger.WithComponent("trader"),
		inputMint:  cfg.InputMint,
		outputMint: cfg.OutputMint,
	}
}

// SetSink installs an optional persistence sink for executed trades
func (t *Trader) SetSink(sink SinkFunc) {
	t.sink = sink
}

// Execute runs one trade end to end: quote, wallet selection, submission,
// recording. Wallet selection and the window-usage mark happen atomically
// inside the allocator. Errors are tagged with the taxonomy codes; a
// missing wallet or tripped safety limit is recoverable (skip the cycle),
// a failed submission is not.
func (t *Trader) Execute(ctx context.Context, req Request) (*market.TradeMetrics, error) {
	if req.Amount <= 0 {
		return nil, market.Errorf(market.CodeConfiguration, "trader.Execute", "amount must be positive, got %f", req.Amount)
	}

	constants := t.table.Current()
	snapshot := t.book.Snapshot()
	price := snapshot.Price

	// Clamp to the per-trade cap rather than rejecting; the caller asked
	// for activity, not a specific fill size.
	amount := req.Amount
	if price > 0 && amount*price > constants.MaxSingleTrade {
		amount = constants.MaxSingleTrade / price
		t.logger.Debug("Trade clamped to single-trade cap", "source", req.Source, "requested", req.Amount, "clamped", amount)
	}

	slippageBps := req.MaxSlippageBps
	if slippageBps <= 0 {
		slippageBps = int(constants.MaxSlippagePercent * 100)
	}

	inMint, outMint := t.inputMint, t.outputMint
	quoteAmount := amount * price
	lookupAmount := quoteAmount
	if req.Side == market.SideSell {
		inMint, outMint = t.outputMint, t.inputMint
		lookupAmount = amount
	}

	quote, err := t.client.GetQuote(ctx, inMint, outMint, lookupAmount, slippageBps)
	if err != nil {
		return nil, fmt.Errorf("quote lookup for %s: %w", req.Source, err)
	}

	if quote.PriceImpactPercent > constants.MaxPriceImpactPercent {
		return nil, market.Errorf(market.CodeSafetyLimit, "trader.Execute",
			"price impact %.3f%% exceeds cap %.3f%%: %w",
			quote.PriceImpactPercent, constants.MaxPriceImpactPercent, market.ErrSafetyLimit)
	}

	slot := t.clock.CurrentSlot()
	minBalance, minTokens := 0.0, 0.0
	if req.Side == market.SideBuy {
		minBalance = quote.Price * amount * 1.1
	} else {
		minTokens = amount
	}

	w, err := t.allocator.SelectWallet(req.WalletKind, minBalance, minTokens, slot)
	if err != nil {
		return nil, err
	}

	result, err := t.client.SubmitSwap(ctx, quote, w.PublicKey)
	if err != nil {
		t.bus.PublishError(req.Source, "trade submission failed", err)
		return nil, market.NewError(market.CodeTransactionFailed, "trader.Execute", err)
	}

	filledTokens := amount
	if req.Side == market.SideBuy && result.Price > 0 {
		filledTokens = result.FilledAmount / result.Price
	} else if req.Side == market.SideSell {
		filledTokens = result.FilledAmount
	}
	filledQuote := filledTokens * result.Price

	tm := market.TradeMetrics{
		Wallet:      w.PublicKey,
		Side:        req.Side,
		Amount:      filledTokens,
		QuoteAmount: filledQuote,
		Price:       result.Price,
		TxID:        result.TxID,
		Slot:        result.Slot,
		Source:      req.Source,
		Timestamp:   t.clock.Now(),
	}

	t.book.Update(func(m *market.Metrics) {
		m.Price = result.Price
		m.Volume24h += filledQuote
	})
	t.allocator.ApplyTrade(w.PublicKey, req.Side, filledTokens, filledQuote)

	if t.recorder != nil {
		t.recorder.RecordTrade(w.PublicKey, filledTokens, tm.Timestamp)
	}
	t.bus.PublishTrade(req.Source, w.PublicKey, string(req.Side), filledTokens, result.Price, result.TxID)
	if t.sink != nil {
		t.sink(tm)
	}

	t.logger.Debug("Trade executed",
		"source", req.Source, "side", string(req.Side), "wallet", w.PublicKey,
		"amount", filledTokens, "price", result.Price, "slot", result.Slot)

	return &tm, nil
}

// AdjustLiquidity shifts pooled liquidity on the shared metrics. The DEX
// boundary has no liquidity operation, so adjustments act on market state
// directly, matching how every strategy observes liquidity.
func (t *Trader) AdjustLiquidity(ctx context.Context, amount float64, isAdd bool, source string) (market.Metrics, error) {
	if amount <= 0 {
		return market.Metrics{}, market.Errorf(market.CodeConfiguration, "trader.AdjustLiquidity",
			"amount must be positive, got %f", amount)
	}

	delta := amount
	if !isAdd {
		delta = -amount
		constants := t.table.Current()
		snapshot := t.book.Snapshot()
		if snapshot.Liquidity-amount < constants.MinLiquidityFloor {
			return market.Metrics{}, market.Errorf(market.CodeSafetyLimit, "trader.AdjustLiquidity",
				"removal would breach liquidity floor %.2f: %w", constants.MinLiquidityFloor, market.ErrSafetyLimit)
		}
	}

	m := t.book.AddLiquidity(delta)
	t.bus.Publish(events.Event{
		Type: events.EventLiquidityAdjusted,
		Data: map[string]interface{}{
			"source":    source,
			"amount":    amount,
			"added":     isAdd,
			"liquidity": m.Liquidity,
		},
	})
	t.logger.Debug("Liquidity adjusted", "source", source, "amount", amount, "added", isAdd, "liquidity", m.Liquidity)
	return m, nil
}
