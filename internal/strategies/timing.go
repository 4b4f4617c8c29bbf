package strategies

import (
	"context"
	"sync"
	"time"

	"dex-market-bot/internal/events"
	"dex-market-bot/internal/logging"
	"dex-market-bot/internal/market"
)

// TimeWindow is one UTC peak-trading window with its volume share
type TimeWindow struct {
	Name          string  `json:"name"`
	StartHour     int     `json:"start_hour"` // inclusive, UTC
	EndHour       int     `json:"end_hour"`   // exclusive, UTC
	VolumePercent float64 `json:"volume_percent"`
}

// Hours returns the window length, handling midnight wraps
func (w TimeWindow) Hours() int {
	h := w.EndHour - w.StartHour
	if h <= 0 {
		h += 24
	}
	return h
}

// Contains reports whether t falls inside the window
func (w TimeWindow) Contains(t time.Time) bool {
	hour := t.UTC().Hour()
	if w.StartHour <= w.EndHour {
		return hour >= w.StartHour && hour < w.EndHour
	}
	return hour >= w.StartHour || hour < w.EndHour
}

// DefaultWindows is the standard session table: Asia open, European
// morning and the US overlap.
func DefaultWindows() []TimeWindow {
	return []TimeWindow{
		{Name: "asia", StartHour: 0, EndHour: 4, VolumePercent: 20},
		{Name: "europe", StartHour: 7, EndHour: 11, VolumePercent: 25},
		{Name: "us", StartHour: 13, EndHour: 17, VolumePercent: 30},
	}
}

// ActiveWindow returns the window containing t, if any
func ActiveWindow(windows []TimeWindow, t time.Time) (TimeWindow, bool) {
	for _, w := range windows {
		if w.Contains(t) {
			return w, true
		}
	}
	return TimeWindow{}, false
}

// offPeakHours counts the hours outside every window
func offPeakHours(windows []TimeWindow) int {
	total := 0
	for _, w := range windows {
		total += w.Hours()
	}
	h := 24 - total
	if h < 1 {
		h = 1
	}
	return h
}

// OrchestratorConfig parameterizes the timing orchestrator
type OrchestratorConfig struct {
	Windows         []TimeWindow  `json:"windows"`
	ReevalInterval  time.Duration `json:"reeval_interval"`  // activation checks, min spacing
	MetricsInterval time.Duration `json:"metrics_interval"` // metric propagation cadence
	MaxRuntime      time.Duration `json:"max_runtime"`      // hard ceiling on a run
}

// DefaultOrchestratorConfig returns orchestrator defaults
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		Windows:         DefaultWindows(),
		ReevalInterval:  5 * time.Minute,
		MetricsInterval: 5 * time.Second,
		MaxRuntime:      48 * time.Hour,
	}
}

// OrchestratorStatus is a read-only orchestrator view
type OrchestratorStatus struct {
	Running    bool      `json:"running"`
	StartedAt  time.Time `json:"started_at"`
	InPeak     bool      `json:"in_peak"`
	WindowName string    `json:"window_name,omitempty"`
	Strategies []Status  `json:"strategies"`
}

// Orchestrator composes the four strategies across the peak-window
// table. The liquidity strategy is always active; price-action runs only
// inside peak windows. It owns no trading logic: directional trades and
// liquidity adjustments delegate to the volume and liquidity strategies.
type Orchestrator struct {
	cfg         OrchestratorConfig
	liquidity   *LiquidityStrategy
	volume      *VolumeStrategy
	priceAction *PriceActionStrategy
	technical   *TechnicalStrategy

	book   *market.Book
	bus    *events.Bus
	logger *logging.Logger

	mu        sync.Mutex
	running   bool
	startedAt time.Time
	cancel    context.CancelFunc
	launched  map[string]context.CancelFunc
	wg        sync.WaitGroup
}

// NewOrchestrator creates a timing orchestrator over the four strategies
func NewOrchestrator(cfg OrchestratorConfig, liquidity *LiquidityStrategy, volume *VolumeStrategy,
	priceAction *PriceActionStrategy, technical *TechnicalStrategy,
	book *market.Book, bus *events.Bus, logger *logging.Logger) *Orchestrator {

	d := DefaultOrchestratorConfig()
	if len(cfg.Windows) == 0 {
		cfg.Windows = d.Windows
	}
	if cfg.ReevalInterval <= 0 {
		cfg.ReevalInterval = d.ReevalInterval
	}
	if cfg.MetricsInterval <= 0 {
		cfg.MetricsInterval = d.MetricsInterval
	}
	if cfg.MaxRuntime <= 0 {
		cfg.MaxRuntime = d.MaxRuntime
	}
	return &Orchestrator{
		cfg:         cfg,
		liquidity:   liquidity,
		volume:      volume,
		priceAction: priceAction,
		technical:   technical,
		book:        book,
		bus:         bus,
		logger:      logger.WithComponent("orchestrator"),
		launched:    make(map[string]context.CancelFunc),
	}
}

func (o *Orchestrator) strategies() []Strategy {
	return []Strategy{o.liquidity, o.volume, o.priceAction, o.technical}
}

// Run drives activation and metric propagation until stopped or the
// runtime ceiling elapses. Blocks; callers run it in a goroutine.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return market.Errorf(market.CodeConfiguration, "orchestrator.Run", "already running")
	}
	runCtx, cancel := context.WithTimeout(ctx, o.cfg.MaxRuntime)
	o.running = true
	o.startedAt = time.Now()
	o.cancel = cancel
	o.mu.Unlock()
	defer cancel()

	for _, s := range o.strategies() {
		if err := s.Initialize(runCtx); err != nil {
			o.shutdown()
			return err
		}
	}

	o.publishState("started")
	o.logger.Info("Orchestrator started", "max_runtime", o.cfg.MaxRuntime.String())

	o.evaluate(runCtx, time.Now())
	o.propagateMetrics()

	reeval := time.NewTicker(o.cfg.ReevalInterval)
	defer reeval.Stop()
	metrics := time.NewTicker(o.cfg.MetricsInterval)
	defer metrics.Stop()

	for {
		select {
		case <-runCtx.Done():
			o.shutdown()
			o.publishState("stopped")
			o.logger.Info("Orchestrator stopped")
			return nil
		case now := <-reeval.C:
			o.evaluate(runCtx, now)
		case <-metrics.C:
			o.propagateMetrics()
		}
	}
}

// Stop halts the orchestrator and all launched strategies
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// evaluate reconciles which strategies run for the current window.
// Called at most every ReevalInterval to avoid activation thrashing.
func (o *Orchestrator) evaluate(ctx context.Context, now time.Time) {
	window, inPeak := ActiveWindow(o.cfg.Windows, now)

	desired := map[string]Strategy{
		o.liquidity.Name(): o.liquidity,
		o.volume.Name():    o.volume,
		o.technical.Name(): o.technical,
	}
	if inPeak {
		desired[o.priceAction.Name()] = o.priceAction
	}

	reason := "off-peak"
	if inPeak {
		reason = "peak:" + window.Name
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	// Deactivate what the window no longer wants
	for name, cancel := range o.launched {
		if _, ok := desired[name]; !ok {
			cancel()
			delete(o.launched, name)
			o.logger.Info("Strategy deactivated", "strategy", name, "reason", reason)
		}
	}

	// Launch what is missing; errored strategies stay down until an
	// operator restarts them explicitly
	for name, s := range desired {
		if _, ok := o.launched[name]; ok {
			continue
		}
		if s.Status().Phase == "error" {
			continue
		}
		sCtx, sCancel := context.WithCancel(ctx)
		o.launched[name] = sCancel
		o.wg.Add(1)
		go func(name string, s Strategy) {
			defer o.wg.Done()
			if err := s.Run(sCtx); err != nil {
				o.logger.Error("Strategy loop exited", "strategy", name, "error", err.Error())
			}
			o.mu.Lock()
			if cancel, ok := o.launched[name]; ok {
				cancel()
				delete(o.launched, name)
			}
			o.mu.Unlock()
		}(name, s)
		o.logger.Info("Strategy activated", "strategy", name, "reason", reason)
	}
}

// propagateMetrics pushes the shared book state into every strategy,
// active or not, so indicator state never drifts between them.
func (o *Orchestrator) propagateMetrics() {
	m := o.book.Snapshot()
	for _, s := range o.strategies() {
		s.OnPriceChange(m.Price)
		s.OnVolumeChange(m.Volume24h)
		s.OnLiquidityChange(m.Liquidity)
	}
	o.bus.Publish(events.Event{
		Type: events.EventMetricsUpdate,
		Data: map[string]interface{}{
			"price":      m.Price,
			"volume_24h": m.Volume24h,
			"liquidity":  m.Liquidity,
			"rsi":        m.RSI,
		},
	})
}

// shutdown stops every launched strategy and waits for the loops
func (o *Orchestrator) shutdown() {
	o.mu.Lock()
	for name, cancel := range o.launched {
		cancel()
		delete(o.launched, name)
	}
	o.running = false
	o.mu.Unlock()

	for _, s := range o.strategies() {
		s.Stop()
	}
	o.wg.Wait()
}

// ExecuteTrade delegates directional trades to the volume strategy
func (o *Orchestrator) ExecuteTrade(ctx context.Context, amount float64, isBuy bool) error {
	return o.volume.ExecuteTrade(ctx, amount, isBuy)
}

// AdjustLiquidity delegates pool adjustments to the liquidity strategy
func (o *Orchestrator) AdjustLiquidity(ctx context.Context, amount float64, isAdd bool) error {
	return o.liquidity.AdjustLiquidity(ctx, amount, isAdd)
}

// Status reports the orchestrator and per-strategy state
func (o *Orchestrator) Status() OrchestratorStatus {
	o.mu.Lock()
	running := o.running
	startedAt := o.startedAt
	o.mu.Unlock()

	window, inPeak := ActiveWindow(o.cfg.Windows, time.Now())
	st := OrchestratorStatus{
		Running:   running,
		StartedAt: startedAt,
		InPeak:    inPeak,
	}
	if inPeak {
		st.WindowName = window.Name
	}
	for _, s := range o.strategies() {
		st.Strategies = append(st.Strategies, s.Status())
	}
	return st
}

func (o *Orchestrator) publishState(state string) {
	o.bus.Publish(events.Event{
		Type: events.EventOrchestratorState,
		Data: map[string]interface{}{"state": state},
	})
}
