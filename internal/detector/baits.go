package detector

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"dex-market-bot/internal/dex"
	"dex-market-bot/internal/events"
	"dex-market-bot/internal/logging"
	"dex-market-bot/internal/market"
	"dex-market-bot/internal/trader"
	"dex-market-bot/internal/wallet"
)

// BaitKind identifies a bait construct
type BaitKind string

const (
	BaitBuyWall       BaitKind = "BUY_WALL"
	BaitBreakoutTrap  BaitKind = "BREAKOUT_TRAP"
	BaitHFTPair       BaitKind = "HFT_PAIR"
	BaitInsiderPhases BaitKind = "INSIDER_PHASES"
)

// Executor is the trade path baits submit through. Executed trades reach
// the behavior analyzer via the trader's recorder, so baits never record
// directly.
type Executor interface {
	Execute(ctx context.Context, req trader.Request) (*market.TradeMetrics, error)
}

// OrderBookSource supplies depth snapshots for reaction observation
type OrderBookSource interface {
	GetOrderBook(ctx context.Context, inputMint, outputMint string) (*dex.OrderBookSnapshot, error)
}

// BaitConfig shapes one bait deployment
type BaitConfig struct {
	TargetAmount      float64       `json:"target_amount"` // token units split across orders
	MinOrders         int           `json:"min_orders"`
	MaxOrders         int           `json:"max_orders"`
	SizeJitterPercent float64       `json:"size_jitter_percent"` // +/- applied per order
	MinDelay          time.Duration `json:"min_delay"`
	MaxDelay          time.Duration `json:"max_delay"`
	ObserveDelay      time.Duration `json:"observe_delay"` // wait before the after-snapshot
}

// DefaultBaitConfig returns deployment defaults
func DefaultBaitConfig() BaitConfig {
	return BaitConfig{
		TargetAmount:      100,
		MinOrders:         3,
		MaxOrders:         6,
		SizeJitterPercent: 25,
		MinDelay:          200 * time.Millisecond,
		MaxDelay:          500 * time.Millisecond,
		ObserveDelay:      2 * time.Second,
	}
}

// BaitReport summarizes a completed deployment
type BaitReport struct {
	Kind          BaitKind              `json:"kind"`
	Orders        int                   `json:"orders"`
	TotalFilled   float64               `json:"total_filled"`
	DepthBefore   float64               `json:"depth_before"`
	DepthAfter    float64               `json:"depth_after"`
	ReactionDelta float64               `json:"reaction_delta"`
	StartedAt     time.Time             `json:"started_at"`
	FinishedAt    time.Time             `json:"finished_at"`
	Trades        []market.TradeMetrics `json:"trades"`
}

type baitOrder struct {
	side market.Side
	kind wallet.Kind
	size float64
}

// BaitRunner deploys bait constructs through the shared execution path
// and observes order book reaction afterwards.
type BaitRunner struct {
	executor Executor
	books    OrderBookSource
	bus      *events.Bus
	logger   *logging.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	inputMint  string
	outputMint string
}

// NewBaitRunner creates a bait runner
func NewBaitRunner(executor Executor, books OrderBookSource, bus *events.Bus, logger *logging.Logger, inputMint, outputMint string) *BaitRunner {
	return &BaitRunner{
		executor:   executor,
		books:      books,
		bus:        bus,
		logger:     logger.WithComponent("bait-runner"),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		inputMint:  inputMint,
		outputMint: outputMint,
	}
}

// Deploy runs one bait sequence. Any failed order submission aborts the
// sequence and propagates the error; nothing is retried here so the
// caller can decide whether to redo the whole sequence.
func (r *BaitRunner) Deploy(ctx context.Context, kind BaitKind, cfg BaitConfig) (*BaitReport, error) {
	if cfg.TargetAmount <= 0 {
		return nil, market.Errorf(market.CodeConfiguration, "detector.Deploy", "target amount must be positive, got %f", cfg.TargetAmount)
	}
	if cfg.MinOrders <= 0 {
		cfg.MinOrders = DefaultBaitConfig().MinOrders
	}
	if cfg.MaxOrders < cfg.MinOrders {
		cfg.MaxOrders = cfg.MinOrders
	}
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = DefaultBaitConfig().MinDelay
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}

	orders, err := r.plan(kind, cfg)
	if err != nil {
		return nil, err
	}

	report := &BaitReport{Kind: kind, StartedAt: time.Now()}

	if before, err := r.books.GetOrderBook(ctx, r.inputMint, r.outputMint); err == nil {
		report.DepthBefore = before.Depth()
	}

	for i, order := range orders {
		if i > 0 {
			if err := sleepCtx(ctx, r.jitterDelay(cfg)); err != nil {
				return nil, err
			}
		}

		tm, err := r.executor.Execute(ctx, trader.Request{
			Side:       order.side,
			Amount:     order.size,
			WalletKind: order.kind,
			Source:     "bait:" + string(kind),
		})
		if err != nil {
			r.logger.Warn("Bait sequence aborted", "kind", string(kind), "order", i+1, "error", err.Error())
			return nil, fmt.Errorf("bait %s order %d/%d: %w", kind, i+1, len(orders), err)
		}

		report.Orders++
		report.TotalFilled += tm.Amount
		report.Trades = append(report.Trades, *tm)
	}

	// Give reactive counterparties a moment, then look at the book
	if cfg.ObserveDelay > 0 {
		if err := sleepCtx(ctx, cfg.ObserveDelay); err != nil {
			return nil, err
		}
	}
	if after, err := r.books.GetOrderBook(ctx, r.inputMint, r.outputMint); err == nil {
		report.DepthAfter = after.Depth()
		report.ReactionDelta = report.DepthAfter - report.DepthBefore
	}

	report.FinishedAt = time.Now()

	r.bus.Publish(events.Event{
		Type: events.EventBaitDeployed,
		Data: map[string]interface{}{
			"kind":           string(kind),
			"orders":         report.Orders,
			"total_filled":   report.TotalFilled,
			"reaction_delta": report.ReactionDelta,
		},
	})
	r.logger.Info("Bait deployed",
		"kind", string(kind), "orders", report.Orders,
		"filled", report.TotalFilled, "reaction_delta", report.ReactionDelta)

	return report, nil
}

// plan builds the randomized order sequence for a bait kind
func (r *BaitRunner) plan(kind BaitKind, cfg BaitConfig) ([]baitOrder, error) {
	n := r.orderCount(cfg)
	per := cfg.TargetAmount / float64(n)

	switch kind {
	case BaitBuyWall:
		// Stacked whale buys posing as a support wall
		orders := make([]baitOrder, 0, n)
		for i := 0; i < n; i++ {
			orders = append(orders, baitOrder{side: market.SideBuy, kind: wallet.KindWhale, size: r.jitterSize(per, cfg)})
		}
		return orders, nil

	case BaitBreakoutTrap:
		// Ramping retail buys capped by one whale push, the shape
		// breakout scanners chase
		orders := make([]baitOrder, 0, n)
		for i := 0; i < n-1; i++ {
			ramp := per * (0.6 + 0.8*float64(i)/float64(n))
			orders = append(orders, baitOrder{side: market.SideBuy, kind: wallet.KindRetail, size: r.jitterSize(ramp, cfg)})
		}
		orders = append(orders, baitOrder{side: market.SideBuy, kind: wallet.KindWhale, size: r.jitterSize(per*1.5, cfg)})
		return orders, nil

	case BaitHFTPair:
		// Tight buy/sell micro pairs leaving a visible spread inefficiency
		orders := make([]baitOrder, 0, 2*n)
		micro := per / 2
		for i := 0; i < n; i++ {
			orders = append(orders,
				baitOrder{side: market.SideBuy, kind: wallet.KindBot, size: r.jitterSize(micro, cfg)},
				baitOrder{side: market.SideSell, kind: wallet.KindBot, size: r.jitterSize(micro, cfg)},
			)
		}
		return orders, nil

	case BaitInsiderPhases:
		// Quiet whale accumulation followed by staged distribution
		orders := make([]baitOrder, 0, n)
		half := n / 2
		if half == 0 {
			half = 1
		}
		for i := 0; i < half; i++ {
			orders = append(orders, baitOrder{side: market.SideBuy, kind: wallet.KindWhale, size: r.jitterSize(per, cfg)})
		}
		for i := half; i < n; i++ {
			orders = append(orders, baitOrder{side: market.SideSell, kind: wallet.KindWhale, size: r.jitterSize(per*0.8, cfg)})
		}
		return orders, nil

	default:
		return nil, market.Errorf(market.CodeConfiguration, "detector.Deploy", "unknown bait kind %q", kind)
	}
}

func (r *BaitRunner) orderCount(cfg BaitConfig) int {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	if cfg.MaxOrders == cfg.MinOrders {
		return cfg.MinOrders
	}
	return cfg.MinOrders + r.rng.Intn(cfg.MaxOrders-cfg.MinOrders+1)
}

func (r *BaitRunner) jitterSize(base float64, cfg BaitConfig) float64 {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	if cfg.SizeJitterPercent <= 0 {
		return base
	}
	jitter := (r.rng.Float64()*2 - 1) * cfg.SizeJitterPercent / 100.0
	size := base * (1 + jitter)
	if size <= 0 {
		size = base
	}
	return size
}

func (r *BaitRunner) jitterDelay(cfg BaitConfig) time.Duration {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	span := cfg.MaxDelay - cfg.MinDelay
	if span <= 0 {
		return cfg.MinDelay
	}
	return cfg.MinDelay + time.Duration(r.rng.Int63n(int64(span)))
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
