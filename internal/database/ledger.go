package database

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"dex-market-bot/internal/market"
)

// Ledger appends one JSON line per executed trade. It complements the
// relational history with a file that survives a missing database and
// can be replayed or shipped as-is.
type Ledger struct {
	log    zerolog.Logger
	closer io.Closer
}

// NewLedger opens (or creates) an append-only ledger file
func NewLedger(path string) (*Ledger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger file: %w", err)
	}
	l := NewLedgerWriter(f)
	l.closer = f
	return l, nil
}

// NewLedgerWriter builds a ledger on an arbitrary writer
func NewLedgerWriter(w io.Writer) *Ledger {
	return &Ledger{log: zerolog.New(w).With().Timestamp().Logger()}
}

// Record appends one trade entry
func (l *Ledger) Record(tm market.TradeMetrics) {
	l.log.Info().
		Str("wallet", tm.Wallet).
		Str("side", string(tm.Side)).
		Float64("amount", tm.Amount).
		Float64("quote_amount", tm.QuoteAmount).
		Float64("price", tm.Price).
		Str("tx_id", tm.TxID).
		Uint64("slot", tm.Slot).
		Str("source", tm.Source).
		Time("executed_at", tm.Timestamp).
		Msg("trade")
}

// Close closes the underlying file if the ledger owns one
func (l *Ledger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
