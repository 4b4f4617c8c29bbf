package pattern

import "dex-market-bot/internal/market"

// crossoverEngine derives signals from short/long simple moving average
// sign flips: BUY when the short average crosses above the long one,
// SELL on the opposite flip.
type crossoverEngine struct {
	shortWindow int
	longWindow  int
	prices      []float64
	lastDiff    float64
	primed      bool
}

func newCrossoverEngine(shortWindow, longWindow int) *crossoverEngine {
	if shortWindow <= 0 {
		shortWindow = 5
	}
	if longWindow <= shortWindow {
		longWindow = shortWindow * 3
	}
	return &crossoverEngine{shortWindow: shortWindow, longWindow: longWindow}
}

func (e *crossoverEngine) observe(price float64) {
	if price <= 0 {
		return
	}
	e.prices = append(e.prices, price)
	if len(e.prices) > e.longWindow {
		e.prices = e.prices[1:]
	}
}

func (e *crossoverEngine) signal() (market.Side, bool) {
	if len(e.prices) < e.longWindow {
		return "", false
	}

	diff := sma(e.prices, e.shortWindow) - sma(e.prices, e.longWindow)
	defer func() {
		e.lastDiff = diff
		e.primed = true
	}()

	if !e.primed {
		return "", false
	}
	if e.lastDiff <= 0 && diff > 0 {
		return market.SideBuy, true
	}
	if e.lastDiff >= 0 && diff < 0 {
		return market.SideSell, true
	}
	return "", false
}

// sma averages the trailing n samples
func sma(prices []float64, n int) float64 {
	if n > len(prices) {
		n = len(prices)
	}
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range prices[len(prices)-n:] {
		sum += p
	}
	return sum / float64(n)
}
