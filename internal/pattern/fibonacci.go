package pattern

import "dex-market-bot/internal/market"

// Retracement ratios of the observed swing range checked for bounces
var fibLevels = []float64{0.382, 0.5, 0.618}

// fibonacciEngine derives signals from retracement levels of the rolling
// swing range: a bounce up off a retracement level is a BUY, a rejection
// back down from the swing high is a SELL.
type fibonacciEngine struct {
	lookback  int
	tolerance float64 // fraction of price counted as "at" a level
	prices    []float64
	prev      float64
}

func newFibonacciEngine(lookback int, tolerance float64) *fibonacciEngine {
	if lookback <= 0 {
		lookback = 50
	}
	if tolerance <= 0 {
		tolerance = 0.003
	}
	return &fibonacciEngine{lookback: lookback, tolerance: tolerance}
}

func (e *fibonacciEngine) observe(price float64) {
	if price <= 0 {
		return
	}
	e.prices = append(e.prices, price)
	if len(e.prices) > e.lookback {
		e.prices = e.prices[1:]
	}
}

func (e *fibonacciEngine) signal() (market.Side, bool) {
	if len(e.prices) < 2 {
		return "", false
	}

	current := e.prices[len(e.prices)-1]
	prev := e.prev
	e.prev = current
	if prev == 0 {
		return "", false
	}

	high, low := swingRange(e.prices)
	if high <= low {
		return "", false
	}

	// Bounce up through a retracement level of the swing
	for _, ratio := range fibLevels {
		level := high - (high-low)*ratio
		if prev < level && current >= level && current <= level*(1+e.tolerance) {
			return market.SideBuy, true
		}
	}

	// Rejection at the swing high: touched it, now turning down
	if prev >= high*(1-e.tolerance) && current < prev {
		return market.SideSell, true
	}

	return "", false
}

func swingRange(prices []float64) (high, low float64) {
	high, low = prices[0], prices[0]
	for _, p := range prices {
		if p > high {
			high = p
		}
		if p < low {
			low = p
		}
	}
	return high, low
}
