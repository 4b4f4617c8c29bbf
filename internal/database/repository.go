package database

import (
	"context"
	"fmt"
	"time"

	"dex-market-bot/internal/market"
)

// Repository provides data access for trade history and behavior flags
type Repository struct {
	db *DB
}

// NewRepository creates a repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck pings the database
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// ============================================================================
// EXECUTED TRADES
// ============================================================================

// InsertTrade persists one executed trade
func (r *Repository) InsertTrade(ctx context.Context, tm market.TradeMetrics) error {
	query := `
		INSERT INTO executed_trades (wallet, side, amount, quote_amount, price, tx_id, slot, source, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Pool.Exec(
		ctx, query,
		tm.Wallet, string(tm.Side), tm.Amount, tm.QuoteAmount, tm.Price,
		tm.TxID, int64(tm.Slot), tm.Source, tm.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

// RecentTrades returns the latest trades, newest first
func (r *Repository) RecentTrades(ctx context.Context, limit int) ([]market.TradeMetrics, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT wallet, side, amount, quote_amount, price, tx_id, slot, source, executed_at
		FROM executed_trades
		ORDER BY executed_at DESC
		LIMIT $1
	`
	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var out []market.TradeMetrics
	for rows.Next() {
		var tm market.TradeMetrics
		var side string
		var slot int64
		if err := rows.Scan(&tm.Wallet, &side, &tm.Amount, &tm.QuoteAmount, &tm.Price,
			&tm.TxID, &slot, &tm.Source, &tm.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		tm.Side = market.Side(side)
		tm.Slot = uint64(slot)
		out = append(out, tm)
	}
	return out, rows.Err()
}

// VolumeSince sums quote volume executed at or after the cutoff
func (r *Repository) VolumeSince(ctx context.Context, since time.Time) (float64, error) {
	query := `SELECT COALESCE(SUM(quote_amount), 0) FROM executed_trades WHERE executed_at >= $1`
	var volume float64
	if err := r.db.Pool.QueryRow(ctx, query, since).Scan(&volume); err != nil {
		return 0, fmt.Errorf("failed to sum volume: %w", err)
	}
	return volume, nil
}

// ============================================================================
// BEHAVIOR FLAGS
// ============================================================================

// UpsertFlag records a counterparty bot classification
func (r *Repository) UpsertFlag(ctx context.Context, wallet string, score float64, tradeCount int) error {
	query := `
		INSERT INTO behavior_flags (wallet, score, trade_count, flagged_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (wallet) DO UPDATE SET score = $2, trade_count = $3, flagged_at = NOW()
	`
	if _, err := r.db.Pool.Exec(ctx, query, wallet, score, tradeCount); err != nil {
		return fmt.Errorf("failed to upsert flag: %w", err)
	}
	return nil
}

// FlaggedWallets lists persisted bot classifications, newest first
func (r *Repository) FlaggedWallets(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT wallet FROM behavior_flags ORDER BY flagged_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query flags: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("failed to scan flag: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
