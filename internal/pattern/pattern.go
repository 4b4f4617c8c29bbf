// Package pattern implements price-series driven trading patterns with a
// shared lifecycle: a pattern observes the market each cycle, derives a
// directional signal from indicator state and executes through the shared
// trade path until it completes, fails or is stopped.
package pattern

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dex-market-bot/internal/events"
	"dex-market-bot/internal/logging"
	"dex-market-bot/internal/market"
	"dex-market-bot/internal/trader"
	"dex-market-bot/internal/wallet"
)

// Status is the pattern lifecycle state
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusStopped   Status = "STOPPED"
)

// terminal reports whether no further transition may leave the state
func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusStopped
}

// Phase labels pattern progress for observers
type Phase string

const (
	PhaseInitialization Phase = "INITIALIZATION"
	PhaseAccumulation   Phase = "ACCUMULATION"
	PhaseCompletion     Phase = "COMPLETION"
)

// Type selects a concrete pattern variant
type Type string

const (
	TypeCrossover Type = "MA_CROSSOVER"
	TypeFibonacci Type = "FIB_RETRACEMENT"
)

// Executor is the trade path patterns submit through
type Executor interface {
	Execute(ctx context.Context, req trader.Request) (*market.TradeMetrics, error)
}

// Config parameterizes one pattern instance
type Config struct {
	Type       Type          `json:"type"`
	BaseAmount float64       `json:"base_amount"` // token units before intensity scaling
	Intensity  int           `json:"intensity"`   // 1..10, scales amount up and delay down
	Duration   time.Duration `json:"duration"`
	CycleDelay time.Duration `json:"cycle_delay"` // base delay at intensity 5
	StopLoss   float64       `json:"stop_loss"`   // price floor, 0 disables
	TakeProfit float64       `json:"take_profit"` // price ceiling, 0 disables
	WalletKind wallet.Kind   `json:"wallet_kind"`
}

// Validate rejects configurations the loop cannot run with
func (c Config) Validate() error {
	if c.BaseAmount <= 0 {
		return market.Errorf(market.CodeConfiguration, "pattern.Validate", "base amount must be positive, got %f", c.BaseAmount)
	}
	if c.Intensity < 1 || c.Intensity > 10 {
		return market.Errorf(market.CodeConfiguration, "pattern.Validate", "intensity must be in [1,10], got %d", c.Intensity)
	}
	if c.Duration <= 0 {
		return market.Errorf(market.CodeConfiguration, "pattern.Validate", "duration must be positive, got %s", c.Duration)
	}
	if c.CycleDelay <= 0 {
		return market.Errorf(market.CodeConfiguration, "pattern.Validate", "cycle delay must be positive, got %s", c.CycleDelay)
	}
	return nil
}

// StatusView is a read-only snapshot for status endpoints
type StatusView struct {
	ID           string    `json:"id"`
	Type         Type      `json:"type"`
	Status       Status    `json:"status"`
	Phase        Phase     `json:"phase"`
	Progress     float64   `json:"progress"`
	TradeCount   int       `json:"trade_count"`
	CurrentPrice float64   `json:"current_price"`
	StartedAt    time.Time `json:"started_at"`
	EndsAt       time.Time `json:"ends_at"`
	LastError    string    `json:"last_error,omitempty"`
}

// signalEngine is the per-variant indicator state. observe feeds the
// latest price, signal reports a directional decision for this cycle.
type signalEngine interface {
	observe(price float64)
	signal() (market.Side, bool)
}

// BasePattern drives the shared lifecycle around a variant's signal engine
type BasePattern struct {
	id       string
	cfg      Config
	engine   signalEngine
	executor Executor
	book     *market.Book
	bus      *events.Bus
	logger   *logging.Logger

	mu           sync.Mutex
	status       Status
	phase        Phase
	progress     float64
	currentPrice float64
	startTime    time.Time
	endTime      time.Time
	trades       []market.TradeMetrics
	lastErr      error
}

// ID returns the pattern instance id
func (p *BasePattern) ID() string { return p.id }

// Type returns the pattern variant
func (p *BasePattern) Type() Type { return p.cfg.Type }

// Run executes the pattern loop until completion, failure or stop. It
// blocks; callers run it in a goroutine and use Stop for early exit.
func (p *BasePattern) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.status != StatusPending {
		defer p.mu.Unlock()
		return market.Errorf(market.CodeConfiguration, "pattern.Run", "cannot start from status %s", p.status)
	}
	p.status = StatusRunning
	p.startTime = time.Now()
	p.endTime = p.startTime.Add(p.cfg.Duration)
	p.mu.Unlock()

	p.bus.Publish(events.Event{
		Type: events.EventPatternStarted,
		Data: map[string]interface{}{"id": p.id, "pattern": string(p.cfg.Type)},
	})
	p.logger.Info("Pattern started", "id", p.id, "pattern", string(p.cfg.Type), "duration", p.cfg.Duration.String())

	for p.shouldContinue() {
		if err := p.cycle(ctx); err != nil {
			p.fail(err)
			return err
		}
		if err := sleepCtx(ctx, p.cycleDelay()); err != nil {
			p.Stop()
			return nil
		}
	}

	p.mu.Lock()
	if p.status == StatusRunning {
		p.status = StatusCompleted
		p.phase = PhaseCompletion
		p.progress = 1
		p.endTime = time.Now()
		p.mu.Unlock()
		p.bus.Publish(events.Event{
			Type: events.EventPatternCompleted,
			Data: map[string]interface{}{"id": p.id, "pattern": string(p.cfg.Type), "trades": p.TradeCount()},
		})
		p.logger.Info("Pattern completed", "id", p.id, "trades", p.TradeCount())
		return nil
	}
	p.mu.Unlock()
	return nil
}

// cycle runs one observe/signal/execute step. Recoverable errors (no
// eligible wallet, safety gate) skip the cycle; anything else is fatal
// to the pattern.
func (p *BasePattern) cycle(ctx context.Context) error {
	snapshot := p.book.Snapshot()

	p.mu.Lock()
	p.currentPrice = snapshot.Price
	p.updateProgressLocked()
	p.engine.observe(snapshot.Price)
	side, ok := p.engine.signal()
	p.mu.Unlock()

	if !ok {
		return nil
	}

	amount := p.cfg.BaseAmount * float64(p.cfg.Intensity) / 5.0
	tm, err := p.executor.Execute(ctx, trader.Request{
		Side:       side,
		Amount:     amount,
		WalletKind: p.cfg.WalletKind,
		Source:     fmt.Sprintf("pattern:%s:%s", p.cfg.Type, p.id),
	})
	if err != nil {
		if market.IsRecoverable(err) {
			p.logger.Debug("Cycle skipped", "id", p.id, "reason", err.Error())
			return nil
		}
		return fmt.Errorf("pattern %s trade: %w", p.id, err)
	}

	p.mu.Lock()
	p.trades = append(p.trades, *tm)
	p.currentPrice = tm.Price
	p.mu.Unlock()
	return nil
}

// shouldContinue holds while the pattern is running, inside its duration
// and neither stop-loss nor take-profit has been crossed.
func (p *BasePattern) shouldContinue() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != StatusRunning {
		return false
	}
	if !time.Now().Before(p.endTime) {
		return false
	}
	if p.currentPrice > 0 {
		if p.cfg.StopLoss > 0 && p.currentPrice <= p.cfg.StopLoss {
			return false
		}
		if p.cfg.TakeProfit > 0 && p.currentPrice >= p.cfg.TakeProfit {
			return false
		}
	}
	return true
}

// cycleDelay scales the configured delay inversely with intensity:
// intensity 5 runs at the configured delay, 10 at half of it.
func (p *BasePattern) cycleDelay() time.Duration {
	return time.Duration(float64(p.cfg.CycleDelay) * 5.0 / float64(p.cfg.Intensity))
}

// updateProgressLocked recomputes progress and phase; caller holds the lock
func (p *BasePattern) updateProgressLocked() {
	if p.status != StatusRunning || p.cfg.Duration <= 0 {
		return
	}
	elapsed := time.Since(p.startTime)
	progress := float64(elapsed) / float64(p.cfg.Duration)
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	p.progress = progress

	switch {
	case progress < 0.3:
		p.phase = PhaseInitialization
	case progress < 0.7:
		p.phase = PhaseAccumulation
	default:
		p.phase = PhaseCompletion
	}
}

// fail transitions to FAILED and records the error
func (p *BasePattern) fail(err error) {
	p.mu.Lock()
	if p.status.terminal() {
		p.mu.Unlock()
		return
	}
	p.status = StatusFailed
	p.lastErr = err
	p.endTime = time.Now()
	p.mu.Unlock()

	p.bus.Publish(events.Event{
		Type: events.EventPatternFailed,
		Data: map[string]interface{}{"id": p.id, "pattern": string(p.cfg.Type), "error": err.Error()},
	})
	p.logger.Error("Pattern failed", "id", p.id, "error", err.Error())
}

// Stop halts the pattern from any non-terminal state. Safe to call more
// than once and from any goroutine; terminal states are never left.
func (p *BasePattern) Stop() {
	p.mu.Lock()
	if p.status.terminal() {
		p.mu.Unlock()
		return
	}
	p.status = StatusStopped
	p.endTime = time.Now()
	p.mu.Unlock()

	p.bus.Publish(events.Event{
		Type: events.EventPatternStopped,
		Data: map[string]interface{}{"id": p.id, "pattern": string(p.cfg.Type)},
	})
	p.logger.Info("Pattern stopped", "id", p.id)
}

// Status returns a snapshot of the pattern state
func (p *BasePattern) Status() StatusView {
	p.mu.Lock()
	defer p.mu.Unlock()

	view := StatusView{
		ID:           p.id,
		Type:         p.cfg.Type,
		Status:       p.status,
		Phase:        p.phase,
		Progress:     p.progress,
		TradeCount:   len(p.trades),
		CurrentPrice: p.currentPrice,
		StartedAt:    p.startTime,
		EndsAt:       p.endTime,
	}
	if p.lastErr != nil {
		view.LastError = p.lastErr.Error()
	}
	return view
}

// Trades returns a copy of the executed trade history
func (p *BasePattern) Trades() []market.TradeMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]market.TradeMetrics, len(p.trades))
	copy(out, p.trades)
	return out
}

// TradeCount returns how many trades the pattern has executed
func (p *BasePattern) TradeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.trades)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
