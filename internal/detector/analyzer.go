// Package detector scores observed counterparty behavior to separate
// automated responders from organic traders.
package detector

import (
	"math"
	"sync"
	"time"

	"dex-market-bot/internal/events"
	"dex-market-bot/internal/logging"
)

// Config tunes the behavior analyzer
type Config struct {
	AnalysisWindow   int           `json:"analysis_window"`    // rolling sample count per wallet
	MinTradeInterval time.Duration `json:"min_trade_interval"` // gaps below this look automated
	BotThreshold     float64       `json:"bot_threshold"`      // score above this flags the wallet
	MinSamples       int           `json:"min_samples"`        // trades required before flagging
}

// DefaultConfig returns analyzer defaults
func DefaultConfig() Config {
	return Config{
		AnalysisWindow:   50,
		MinTradeInterval: 2 * time.Second,
		BotThreshold:     0.85,
		MinSamples:       5,
	}
}

// Profile is the rolling behavior record for one counterparty wallet.
// Created on first observed trade, never deleted during a run; the
// bounded window truncates old samples.
type Profile struct {
	Wallet     string    `json:"wallet"`
	TradeCount int       `json:"trade_count"`
	LastTrade  time.Time `json:"last_trade"`
	Score      float64   `json:"score"`
	Flagged    bool      `json:"flagged"`

	// VolumeDeltaConsistency is the reference "interval consistency":
	// it measures successive volume differences, not time. Kept as the
	// authoritative signal for classification.
	VolumeDeltaConsistency float64 `json:"volume_delta_consistency"`
	// VolumeConsistency measures variance of the volume window.
	VolumeConsistency float64 `json:"volume_consistency"`
	// TimeConsistency is 1 when the latest gap is under the minimum
	// interval threshold, else 0.
	TimeConsistency float64 `json:"time_consistency"`
	// TimingConsistency is the true inter-trade timing signal
	// (variance of gaps). Reported for observers, not scored.
	TimingConsistency float64 `json:"timing_consistency"`

	volumes   []float64
	intervals []time.Duration
}

// Analyzer ingests trade observations per counterparty and maintains a
// rolling consistency score per wallet.
type Analyzer struct {
	mu       sync.RWMutex
	cfg      Config
	profiles map[string]*Profile
	bus      *events.Bus
	logger   *logging.Logger
}

// NewAnalyzer creates a behavior analyzer
func NewAnalyzer(cfg Config, bus *events.Bus, logger *logging.Logger) *Analyzer {
	if cfg.AnalysisWindow <= 0 {
		cfg.AnalysisWindow = DefaultConfig().AnalysisWindow
	}
	if cfg.BotThreshold <= 0 {
		cfg.BotThreshold = DefaultConfig().BotThreshold
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = DefaultConfig().MinSamples
	}
	if cfg.MinTradeInterval <= 0 {
		cfg.MinTradeInterval = DefaultConfig().MinTradeInterval
	}
	return &Analyzer{
		cfg:      cfg,
		profiles: make(map[string]*Profile),
		bus:      bus,
		logger:   logger.WithComponent("behavior-analyzer"),
	}
}

// RecordTrade ingests one observed trade for the wallet
func (a *Analyzer) RecordTrade(walletPubkey string, amount float64, at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.profiles[walletPubkey]
	if !ok {
		p = &Profile{Wallet: walletPubkey}
		a.profiles[walletPubkey] = p
	}

	if p.TradeCount > 0 && at.After(p.LastTrade) {
		p.intervals = append(p.intervals, at.Sub(p.LastTrade))
		if len(p.intervals) > a.cfg.AnalysisWindow {
			p.intervals = p.intervals[1:]
		}
	}

	p.volumes = append(p.volumes, amount)
	if len(p.volumes) > a.cfg.AnalysisWindow {
		p.volumes = p.volumes[1:]
	}

	p.TradeCount++
	p.LastTrade = at

	a.rescore(p)

	if !p.Flagged && p.TradeCount >= a.cfg.MinSamples && p.Score > a.cfg.BotThreshold {
		p.Flagged = true
		a.logger.Info("Counterparty flagged as automated", "wallet", walletPubkey, "score", p.Score)
		if a.bus != nil {
			a.bus.PublishBotFlagged(walletPubkey, p.Score)
		}
	}
}

// rescore recomputes the consistency signals; caller holds the lock
func (a *Analyzer) rescore(p *Profile) {
	p.VolumeDeltaConsistency = volumeDeltaConsistency(p.volumes)
	p.VolumeConsistency = volumeConsistency(p.volumes)
	p.TimeConsistency = 0
	if n := len(p.intervals); n > 0 && p.intervals[n-1] < a.cfg.MinTradeInterval {
		p.TimeConsistency = 1
	}
	p.TimingConsistency = timingConsistency(p.intervals)

	p.Score = (p.VolumeDeltaConsistency + p.VolumeConsistency + p.TimeConsistency) / 3.0
}

// volumeDeltaConsistency maps the mean absolute successive volume
// difference into (0, 1]: identical sizes score 1.
func volumeDeltaConsistency(volumes []float64) float64 {
	if len(volumes) < 2 {
		return 1
	}
	sum := 0.0
	for i := 1; i < len(volumes); i++ {
		sum += math.Abs(volumes[i] - volumes[i-1])
	}
	mean := sum / float64(len(volumes)-1)
	return math.Exp(-mean / 1000.0)
}

// volumeConsistency maps the volume window's relative variance into (0, 1]
func volumeConsistency(volumes []float64) float64 {
	if len(volumes) == 0 {
		return 1
	}
	mean := 0.0
	for _, v := range volumes {
		mean += v
	}
	mean /= float64(len(volumes))
	if mean == 0 {
		return 1
	}

	variance := 0.0
	for _, v := range volumes {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(volumes))

	return math.Exp(-variance / (mean * mean))
}

// timingConsistency is the variance-of-gaps signal the reference never
// actually wired; exposed on the profile for observers.
func timingConsistency(intervals []time.Duration) float64 {
	if len(intervals) < 2 {
		return 0
	}
	mean := 0.0
	for _, d := range intervals {
		mean += float64(d.Milliseconds())
	}
	mean /= float64(len(intervals))
	if mean == 0 {
		return 1
	}

	variance := 0.0
	for _, d := range intervals {
		diff := float64(d.Milliseconds()) - mean
		variance += diff * diff
	}
	variance /= float64(len(intervals))

	return math.Exp(-variance / (mean * mean))
}

// Score returns the wallet's consistency score and whether it is flagged
func (a *Analyzer) Score(walletPubkey string) (float64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	p, ok := a.profiles[walletPubkey]
	if !ok {
		return 0, false
	}
	return p.Score, p.Flagged
}

// ProfileFor returns a copy of the wallet's profile, or nil if unseen
func (a *Analyzer) ProfileFor(walletPubkey string) *Profile {
	a.mu.RLock()
	defer a.mu.RUnlock()

	p, ok := a.profiles[walletPubkey]
	if !ok {
		return nil
	}
	copied := *p
	copied.volumes = nil
	copied.intervals = nil
	return &copied
}

// Flagged lists wallets currently classified as automated
func (a *Analyzer) Flagged() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]string, 0)
	for pk, p := range a.profiles {
		if p.Flagged {
			out = append(out, pk)
		}
	}
	return out
}

// ProfileCount returns how many counterparties have been observed
func (a *Analyzer) ProfileCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.profiles)
}
