// Package engine is the coordination facade: it owns the running
// patterns, the timing orchestrator, the behavior analyzer and the bait
// runner, and exposes the operations the control API calls.
package engine

import (
	"context"
	"sync"

	"dex-market-bot/internal/detector"
	"dex-market-bot/internal/events"
	"dex-market-bot/internal/logging"
	"dex-market-bot/internal/market"
	"dex-market-bot/internal/pattern"
	"dex-market-bot/internal/safety"
	"dex-market-bot/internal/strategies"
	"dex-market-bot/internal/trader"
	"dex-market-bot/internal/wallet"
)

// Config wires the engine's collaborators
type Config struct {
	Book         *market.Book
	Table        *safety.Table
	Allocator    *wallet.Allocator
	Analyzer     *detector.Analyzer
	Baits        *detector.BaitRunner
	Trader       *trader.Trader
	Orchestrator *strategies.Orchestrator
	Bus          *events.Bus
	Logger       *logging.Logger
}

// Engine coordinates patterns, strategies and detection
type Engine struct {
	book         *market.Book
	table        *safety.Table
	allocator    *wallet.Allocator
	analyzer     *detector.Analyzer
	baits        *detector.BaitRunner
	trader       *trader.Trader
	orchestrator *strategies.Orchestrator
	bus          *events.Bus
	logger       *logging.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu       sync.Mutex
	patterns map[string]*pattern.BasePattern
	cancels  map[string]context.CancelFunc
}

// New creates an engine. Close releases everything it starts.
func New(cfg Config) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		book:         cfg.Book,
		table:        cfg.Table,
		allocator:    cfg.Allocator,
		analyzer:     cfg.Analyzer,
		baits:        cfg.Baits,
		trader:       cfg.Trader,
		orchestrator: cfg.Orchestrator,
		bus:          cfg.Bus,
		logger:       cfg.Logger.WithComponent("engine"),
		baseCtx:      ctx,
		baseCancel:   cancel,
		patterns:     make(map[string]*pattern.BasePattern),
		cancels:      make(map[string]context.CancelFunc),
	}
}

// StartPattern validates the config, builds the pattern and runs it in
// the background. Returns the generated pattern id.
func (e *Engine) StartPattern(cfg pattern.Config) (string, error) {
	p, err := pattern.New(cfg, pattern.Deps{
		Executor: e.trader,
		Book:     e.book,
		Bus:      e.bus,
		Logger:   e.logger,
	})
	if err != nil {
		return "", err
	}

	pCtx, pCancel := context.WithCancel(e.baseCtx)
	e.mu.Lock()
	e.patterns[p.ID()] = p
	e.cancels[p.ID()] = pCancel
	e.mu.Unlock()

	go func() {
		defer pCancel()
		if err := p.Run(pCtx); err != nil {
			e.logger.Error("Pattern run failed", "id", p.ID(), "error", err.Error())
		}
	}()

	e.logger.Info("Pattern launched", "id", p.ID(), "pattern", string(cfg.Type))
	return p.ID(), nil
}

// StopPattern halts a running pattern by id
func (e *Engine) StopPattern(id string) error {
	e.mu.Lock()
	p, ok := e.patterns[id]
	cancel := e.cancels[id]
	e.mu.Unlock()

	if !ok {
		return market.Errorf(market.CodeConfiguration, "engine.StopPattern", "unknown pattern %q", id)
	}
	p.Stop()
	if cancel != nil {
		cancel()
	}
	return nil
}

// PatternStatus returns a pattern's status view by id
func (e *Engine) PatternStatus(id string) (pattern.StatusView, error) {
	e.mu.Lock()
	p, ok := e.patterns[id]
	e.mu.Unlock()

	if !ok {
		return pattern.StatusView{}, market.Errorf(market.CodeConfiguration, "engine.PatternStatus", "unknown pattern %q", id)
	}
	return p.Status(), nil
}

// ListPatterns returns status views for every known pattern
func (e *Engine) ListPatterns() []pattern.StatusView {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]pattern.StatusView, 0, len(e.patterns))
	for _, p := range e.patterns {
		out = append(out, p.Status())
	}
	return out
}

// PatternTrades returns a pattern's executed trade history
func (e *Engine) PatternTrades(id string) ([]market.TradeMetrics, error) {
	e.mu.Lock()
	p, ok := e.patterns[id]
	e.mu.Unlock()

	if !ok {
		return nil, market.Errorf(market.CodeConfiguration, "engine.PatternTrades", "unknown pattern %q", id)
	}
	return p.Trades(), nil
}

// StartOrchestrator launches the timing orchestrator in the background
func (e *Engine) StartOrchestrator() error {
	if e.orchestrator.Status().Running {
		return market.Errorf(market.CodeConfiguration, "engine.StartOrchestrator", "orchestrator already running")
	}
	go func() {
		if err := e.orchestrator.Run(e.baseCtx); err != nil {
			e.logger.Error("Orchestrator run failed", "error", err.Error())
		}
	}()
	return nil
}

// StopOrchestrator halts the orchestrator and its strategies
func (e *Engine) StopOrchestrator() {
	e.orchestrator.Stop()
}

// OrchestratorStatus reports orchestrator and strategy state
func (e *Engine) OrchestratorStatus() strategies.OrchestratorStatus {
	return e.orchestrator.Status()
}

// BehaviorScore returns a counterparty's consistency score and flag
func (e *Engine) BehaviorScore(walletPubkey string) (float64, bool) {
	return e.analyzer.Score(walletPubkey)
}

// BehaviorProfile returns the full profile for one counterparty
func (e *Engine) BehaviorProfile(walletPubkey string) *detector.Profile {
	return e.analyzer.ProfileFor(walletPubkey)
}

// FlaggedWallets lists counterparties classified as automated
func (e *Engine) FlaggedWallets() []string {
	return e.analyzer.Flagged()
}

// DeployBait runs one bait sequence through the shared trade path
func (e *Engine) DeployBait(ctx context.Context, kind detector.BaitKind, cfg detector.BaitConfig) (*detector.BaitReport, error) {
	return e.baits.Deploy(ctx, kind, cfg)
}

// RefreshConstants re-derives the safety table from updated funding
// metrics. Every later safety check uses the refreshed table.
func (e *Engine) RefreshConstants(fm safety.FundingMetrics) (safety.Constants, error) {
	c, err := e.table.Refresh(fm)
	if err != nil {
		return safety.Constants{}, err
	}
	e.bus.Publish(events.Event{
		Type: events.EventConstantsRefresh,
		Data: map[string]interface{}{
			"max_single_trade":    c.MaxSingleTrade,
			"min_liquidity_floor": c.MinLiquidityFloor,
			"target_daily_volume": c.TargetDailyVolume,
		},
	})
	e.logger.Info("Safety constants refreshed")
	return c, nil
}

// Constants returns the current safety table
func (e *Engine) Constants() safety.Constants {
	return e.table.Current()
}

// Metrics returns the shared market snapshot
func (e *Engine) Metrics() market.Metrics {
	return e.book.Snapshot()
}

// WalletSummary returns the allocator's status view
func (e *Engine) WalletSummary() map[string]interface{} {
	return e.allocator.Summary()
}

// Close stops every pattern and the orchestrator
func (e *Engine) Close() {
	e.mu.Lock()
	for _, p := range e.patterns {
		p.Stop()
	}
	e.mu.Unlock()

	e.orchestrator.Stop()
	e.baseCancel()
}
