// Package strategies implements the four concurrent market behaviors
// (liquidity, volume, price-action, technical) and the timing
// orchestrator that composes them across peak windows.
package strategies

import (
	"context"
	"sync"

	"dex-market-bot/internal/events"
	"dex-market-bot/internal/logging"
	"dex-market-bot/internal/market"
	"dex-market-bot/internal/safety"
	"dex-market-bot/internal/trader"
	"dex-market-bot/internal/wallet"
)

// Executor is the shared trade/liquidity path strategies act through
type Executor interface {
	Execute(ctx context.Context, req trader.Request) (*market.TradeMetrics, error)
	AdjustLiquidity(ctx context.Context, amount float64, isAdd bool, source string) (market.Metrics, error)
}

// Status is a read-only strategy view, recomputed on demand
type Status struct {
	Name     string         `json:"name"`
	IsActive bool           `json:"is_active"`
	Phase    string         `json:"phase"`
	Metrics  market.Metrics `json:"metrics"`
}

// Strategy is the contract all four behaviors share. Run is the
// long-running loop; ExecuteTrade and AdjustLiquidity are the direct
// operations the orchestrator delegates — a strategy that does not
// support one returns ErrUnsupportedOperation.
type Strategy interface {
	Name() string
	Initialize(ctx context.Context) error
	Run(ctx context.Context) error
	Stop()
	Status() Status
	ExecuteTrade(ctx context.Context, amount float64, isBuy bool) error
	AdjustLiquidity(ctx context.Context, amount float64, isAdd bool) error
	OnPriceChange(price float64)
	OnVolumeChange(volume float64)
	OnLiquidityChange(liquidity float64)
	CheckSafetyLimits() error
}

// Deps are the collaborators shared by every strategy
type Deps struct {
	Executor Executor
	Book     *market.Book
	Table    *safety.Table
	Bus      *events.Bus
	Logger   *logging.Logger
}

// BaseStrategy carries the state and safety gate common to all four
// strategies. Each strategy holds its own metrics mirror, fed by the
// orchestrator's propagation; only the Book is shared.
type BaseStrategy struct {
	name     string
	executor Executor
	book     *market.Book
	table    *safety.Table
	bus      *events.Bus
	logger   *logging.Logger

	mu       sync.Mutex
	isActive bool
	phase    string
	metrics  market.Metrics
	minPrice float64
	maxPrice float64
}

func newBase(name string, deps Deps, minPrice, maxPrice float64) *BaseStrategy {
	return &BaseStrategy{
		name:     name,
		executor: deps.Executor,
		book:     deps.Book,
		table:    deps.Table,
		bus:      deps.Bus,
		logger:   deps.Logger.WithComponent("strategy-" + name),
		phase:    "idle",
		metrics:  deps.Book.Snapshot(),
		minPrice: minPrice,
		maxPrice: maxPrice,
	}
}

// Name returns the strategy name
func (b *BaseStrategy) Name() string { return b.name }

// Initialize re-seeds the metrics mirror; variants extend this
func (b *BaseStrategy) Initialize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metrics = b.book.Snapshot()
	b.phase = "initialized"
	return nil
}

// Stop deactivates the strategy; the loop observes the flag and exits
func (b *BaseStrategy) Stop() {
	b.mu.Lock()
	wasActive := b.isActive
	b.isActive = false
	b.phase = "stopped"
	b.mu.Unlock()

	if wasActive {
		b.bus.PublishStrategyToggled(b.name, false, "stopped")
		b.logger.Info("Strategy stopped")
	}
}

// Status returns the current view
func (b *BaseStrategy) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{Name: b.name, IsActive: b.isActive, Phase: b.phase, Metrics: b.metrics}
}

// ExecuteTrade is unsupported unless a variant overrides it
func (b *BaseStrategy) ExecuteTrade(ctx context.Context, amount float64, isBuy bool) error {
	return market.Errorf(market.CodeConfiguration, b.name+".ExecuteTrade",
		"directional trading: %w", market.ErrUnsupportedOperation)
}

// AdjustLiquidity is unsupported unless a variant overrides it
func (b *BaseStrategy) AdjustLiquidity(ctx context.Context, amount float64, isAdd bool) error {
	return market.Errorf(market.CodeConfiguration, b.name+".AdjustLiquidity",
		"liquidity adjustment: %w", market.ErrUnsupportedOperation)
}

// OnPriceChange updates the local price mirror
func (b *BaseStrategy) OnPriceChange(price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metrics.Price = price
}

// OnVolumeChange updates the local volume mirror
func (b *BaseStrategy) OnVolumeChange(volume float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metrics.Volume24h = volume
}

// OnLiquidityChange updates the local liquidity mirror
func (b *BaseStrategy) OnLiquidityChange(liquidity float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metrics.Liquidity = liquidity
}

// CheckSafetyLimits is the gate every trade and liquidity adjustment
// must pass: liquidity at or above the derived floor, price inside the
// configured band, RSI at or below the ceiling.
func (b *BaseStrategy) CheckSafetyLimits() error {
	constants := b.table.Current()

	b.mu.Lock()
	m := b.metrics
	minPrice, maxPrice := b.minPrice, b.maxPrice
	b.mu.Unlock()

	reason := ""
	switch {
	case m.Liquidity < constants.MinLiquidityFloor:
		reason = "liquidity below floor"
	case minPrice > 0 && m.Price < minPrice:
		reason = "price below band"
	case maxPrice > 0 && m.Price > maxPrice:
		reason = "price above band"
	case m.RSI > constants.RSICeiling:
		reason = "rsi above ceiling"
	}
	if reason == "" {
		return nil
	}

	b.bus.Publish(events.Event{
		Type: events.EventSafetyLimit,
		Data: map[string]interface{}{
			"strategy": b.name,
			"reason":   reason,
			"price":    m.Price,
			"liquidity": m.Liquidity,
			"rsi":      m.RSI,
		},
	})
	return market.Errorf(market.CodeSafetyLimit, b.name+".CheckSafetyLimits", "%s: %w", reason, market.ErrSafetyLimit)
}

// activate flips the strategy on and announces the change
func (b *BaseStrategy) activate(reason string) {
	b.mu.Lock()
	wasActive := b.isActive
	b.isActive = true
	b.phase = "running"
	b.mu.Unlock()

	if !wasActive {
		b.bus.PublishStrategyToggled(b.name, true, reason)
	}
}

// active reports whether the loop should keep cycling
func (b *BaseStrategy) active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isActive
}

func (b *BaseStrategy) setPhase(phase string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.phase = phase
}

// onError records a failed cycle: the phase flips to "error" and the
// strategy deactivates so the loop exits instead of hammering a broken
// boundary. Restart requires an explicit re-activation.
func (b *BaseStrategy) onError(err error) {
	b.mu.Lock()
	b.phase = "error"
	b.isActive = false
	b.mu.Unlock()

	b.bus.PublishError("strategy:"+b.name, "strategy cycle failed", err)
	b.logger.Error("Strategy error", "error", err.Error())
}

// snapshotLocal returns the strategy's metric mirror
func (b *BaseStrategy) snapshotLocal() market.Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.metrics
}

// trade runs one gated directional trade through the shared path
func (b *BaseStrategy) trade(ctx context.Context, side market.Side, amount float64, kind wallet.Kind) (*market.TradeMetrics, error) {
	if err := b.CheckSafetyLimits(); err != nil {
		return nil, err
	}
	return b.executor.Execute(ctx, trader.Request{
		Side:       side,
		Amount:     amount,
		WalletKind: kind,
		Source:     "strategy:" + b.name,
	})
}
