// Package database persists executed trades and behavior flags to
// PostgreSQL and writes an append-only trade ledger. Persistence is
// optional: the coordinator runs fully in memory without it.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"dex-market-bot/internal/logging"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool   *pgxpool.Pool
	logger *logging.Logger
}

// Config holds database configuration
type Config struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"-"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// NewDB creates a new database connection pool
func NewDB(cfg Config, logger *logging.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log := logger.WithComponent("database")
	log.Info("Connected to PostgreSQL", "database", cfg.Database)

	return &DB{Pool: pool, logger: log}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info("Database connection closed")
	}
}

// RunMigrations creates the schema if it does not exist
func (db *DB) RunMigrations(ctx context.Context) error {
	db.logger.Info("Running database migrations")

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS executed_trades (
			id SERIAL PRIMARY KEY,
			wallet VARCHAR(64) NOT NULL,
			side VARCHAR(4) NOT NULL,
			amount DECIMAL(20, 8) NOT NULL,
			quote_amount DECIMAL(20, 8) NOT NULL,
			price DECIMAL(20, 8) NOT NULL,
			tx_id VARCHAR(128) NOT NULL,
			slot BIGINT NOT NULL,
			source VARCHAR(64) NOT NULL,
			executed_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_executed_trades_wallet ON executed_trades(wallet)`,
		`CREATE INDEX IF NOT EXISTS idx_executed_trades_executed_at ON executed_trades(executed_at)`,
		`CREATE TABLE IF NOT EXISTS behavior_flags (
			id SERIAL PRIMARY KEY,
			wallet VARCHAR(64) NOT NULL UNIQUE,
			score DECIMAL(6, 4) NOT NULL,
			trade_count INT NOT NULL,
			flagged_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.logger.Info("Migrations complete", "count", len(migrations))
	return nil
}
