package strategies

import "dex-market-bot/internal/market"

// ============================================================================
// SMA - Simple Moving Average
// ============================================================================

// CalculateSMA computes the simple moving average of the trailing period
func CalculateSMA(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period {
		return 0
	}
	sum := 0.0
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return sum / float64(period)
}

// ============================================================================
// EMA - Exponential Moving Average
// ============================================================================

// CalculateEMA computes an exponential moving average seeded with the
// initial SMA of the first period
func CalculateEMA(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period {
		return 0
	}

	ema := CalculateSMA(prices[:period], period)
	multiplier := 2.0 / float64(period+1)

	for i := period; i < len(prices); i++ {
		ema = (prices[i] * multiplier) + (ema * (1 - multiplier))
	}
	return ema
}

// ============================================================================
// RSI - Relative Strength Index
// ============================================================================

// CalculateRSI computes RSI over the trailing period using the
// average-gain / average-loss ratio. Returns neutral 50 when there is
// not enough history.
func CalculateRSI(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period+1 {
		return 50.0
	}

	gains := 0.0
	losses := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// ============================================================================
// MACD - Moving Average Convergence Divergence
// ============================================================================

// CalculateMACD computes the 12/26 EMA difference with a 9-period
// smoothed signal line and histogram
func CalculateMACD(prices []float64, fastPeriod, slowPeriod, signalPeriod int) market.MACD {
	if len(prices) < slowPeriod {
		return market.MACD{}
	}

	// MACD line series over the tail where both EMAs are defined
	macdSeries := make([]float64, 0, len(prices)-slowPeriod+1)
	for i := slowPeriod; i <= len(prices); i++ {
		fast := CalculateEMA(prices[:i], fastPeriod)
		slow := CalculateEMA(prices[:i], slowPeriod)
		macdSeries = append(macdSeries, fast-slow)
	}

	value := macdSeries[len(macdSeries)-1]
	signal := value
	if len(macdSeries) >= signalPeriod {
		signal = CalculateEMA(macdSeries, signalPeriod)
	}

	return market.MACD{
		Value:     value,
		Signal:    signal,
		Histogram: value - signal,
	}
}
