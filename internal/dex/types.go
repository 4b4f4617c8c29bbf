package dex

import "time"

// RouteHop is one leg of a swap route
type RouteHop struct {
	Venue  string `json:"venue"`
	Pool   string `json:"pool"`
	FeeBps int    `json:"fee_bps"`
}

// Quote represents a priced swap route for a token pair and amount
type Quote struct {
	InputMint          string     `json:"input_mint"`
	OutputMint         string     `json:"output_mint"`
	InAmount           float64    `json:"in_amount"`
	OutAmount          float64    `json:"out_amount"`
	Price              float64    `json:"price"` // quote per token
	PriceImpactPercent float64    `json:"price_impact_percent"`
	MaxSlippageBps     int        `json:"max_slippage_bps"`
	Route              []RouteHop `json:"route"`
	FetchedAt          time.Time  `json:"fetched_at"`
}

// TradeResult is the outcome of a submitted swap
type TradeResult struct {
	TxID         string    `json:"tx_id"`
	Slot         uint64    `json:"slot"`
	Price        float64   `json:"price"`
	FilledAmount float64   `json:"filled_amount"`
	FeeQuote     float64   `json:"fee_quote"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// OrderBookLevel is one price level of an order book side
type OrderBookLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBookSnapshot is a point-in-time view of resting orders
type OrderBookSnapshot struct {
	Bids      []OrderBookLevel `json:"bids"`
	Asks      []OrderBookLevel `json:"asks"`
	Spread    float64          `json:"spread"`
	Timestamp time.Time        `json:"timestamp"`
}

// Depth sums resting size on both sides of the book
func (s *OrderBookSnapshot) Depth() (bidDepth, askDepth float64) {
	for _, l := range s.Bids {
		bidDepth += l.Size
	}
	for _, l := range s.Asks {
		askDepth += l.Size
	}
	return bidDepth, askDepth
}
