package market

import (
	"sync"
	"time"
)

// Side represents the direction of a trade
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the opposite trade side
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// MACD holds MACD indicator values
type MACD struct {
	Value     float64 `json:"value"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// MovingAverages holds short and long period moving averages
type MovingAverages struct {
	Short float64 `json:"short"`
	Long  float64 `json:"long"`
}

// Metrics is the shared market state every component reads.
// Components never hold a pointer into the live copy; they take
// value snapshots through Book and publish updates back through it.
type Metrics struct {
	Price          float64        `json:"price"`
	Volume24h      float64        `json:"volume_24h"`
	Liquidity      float64        `json:"liquidity"`
	RSI            float64        `json:"rsi"`
	MACD           MACD           `json:"macd"`
	MovingAverages MovingAverages `json:"moving_averages"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// TradeMetrics records one executed trade. Trade history is append-only.
type TradeMetrics struct {
	Wallet      string    `json:"wallet"`
	Side        Side      `json:"side"`
	Amount      float64   `json:"amount"`       // token units
	QuoteAmount float64   `json:"quote_amount"` // quote currency spent/received
	Price       float64   `json:"price"`
	TxID        string    `json:"tx_id"`
	Slot        uint64    `json:"slot"`
	Source      string    `json:"source"` // which pattern/strategy/bait issued it
	Timestamp   time.Time `json:"timestamp"`
}

// Book guards the shared metrics. Reads return value copies; writes go
// through Update so concurrent strategies see a consistent last-write-wins
// view rather than racing on a shared pointer.
type Book struct {
	mu      sync.RWMutex
	metrics Metrics
}

// NewBook creates a metrics book seeded with initial market state
func NewBook(initial Metrics) *Book {
	if initial.UpdatedAt.IsZero() {
		initial.UpdatedAt = time.Now()
	}
	return &Book{metrics: initial}
}

// Snapshot returns a copy of the current metrics
func (b *Book) Snapshot() Metrics {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.metrics
}

// Update applies fn to the metrics under the write lock.
// Last writer wins across concurrent strategies.
func (b *Book) Update(fn func(*Metrics)) Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&b.metrics)
	b.metrics.UpdatedAt = time.Now()
	return b.metrics
}

// SetPrice updates the current price
func (b *Book) SetPrice(price float64) Metrics {
	return b.Update(func(m *Metrics) { m.Price = price })
}

// AddVolume adds executed quote volume to the 24h counter
func (b *Book) AddVolume(quoteAmount float64) Metrics {
	return b.Update(func(m *Metrics) { m.Volume24h += quoteAmount })
}

// AddLiquidity adjusts pooled liquidity by delta (negative removes)
func (b *Book) AddLiquidity(delta float64) Metrics {
	return b.Update(func(m *Metrics) {
		m.Liquidity += delta
		if m.Liquidity < 0 {
			m.Liquidity = 0
		}
	})
}
