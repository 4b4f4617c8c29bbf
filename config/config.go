// Package config loads coordinator configuration from an optional JSON
// file with environment-variable overrides on top.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"dex-market-bot/internal/cache"
	"dex-market-bot/internal/database"
	"dex-market-bot/internal/detector"
	"dex-market-bot/internal/logging"
	"dex-market-bot/internal/safety"
	"dex-market-bot/internal/strategies"
	"dex-market-bot/internal/wallet"
)

// Config is the root configuration
type Config struct {
	Server       ServerConfig       `json:"server"`
	Auth         AuthConfig         `json:"auth"`
	Dex          DexConfig          `json:"dex"`
	Wallets      WalletsConfig      `json:"wallets"`
	Funding      FundingConfig      `json:"funding"`
	Detector     DetectorConfig     `json:"detector"`
	Strategies   StrategiesConfig   `json:"strategies"`
	Orchestrator OrchestratorConfig `json:"orchestrator"`
	Redis        cache.RedisConfig  `json:"redis"`
	Database     DatabaseConfig     `json:"database"`
	Ledger       LedgerConfig       `json:"ledger"`
	Logging      logging.Config     `json:"logging"`
}

// ServerConfig holds the control API settings
type ServerConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	ProductionMode bool     `json:"production_mode"`
	AllowedOrigins []string `json:"allowed_origins"`
	RateLimit      int      `json:"rate_limit"`
}

// AuthConfig holds operator authentication settings
type AuthConfig struct {
	Enabled            bool   `json:"enabled"`
	Secret             string `json:"-"`
	Operator           string `json:"operator"`
	PasswordHash       string `json:"-"`
	TokenDurationHours int    `json:"token_duration_hours"`
}

// DexConfig holds the market boundary settings
type DexConfig struct {
	APIKey             string  `json:"-"`
	BaseURL            string  `json:"base_url"`
	MockMode           bool    `json:"mock_mode"` // simulate the venue in-process
	MockBasePrice      float64 `json:"mock_base_price"`
	MockLiquidity      float64 `json:"mock_liquidity"`
	RetryMaxElapsedSec int     `json:"retry_max_elapsed_sec"`
	InputMint          string  `json:"input_mint"`  // quote currency
	OutputMint         string  `json:"output_mint"` // token
}

// WalletsConfig selects the wallet source: a JSON file of wallet records
// or HashiCorp Vault.
type WalletsConfig struct {
	File  string             `json:"file"`
	Vault wallet.VaultConfig `json:"vault"`
}

// FundingConfig holds the market figures the safety table derives from
type FundingConfig struct {
	TotalFunding   float64 `json:"total_funding"`
	MarketCap      float64 `json:"market_cap"`
	Liquidity      float64 `json:"liquidity"`
	AverageBalance float64 `json:"average_balance"`
}

// Metrics converts to the safety table input
func (f FundingConfig) Metrics() safety.FundingMetrics {
	return safety.FundingMetrics{
		TotalFunding:   f.TotalFunding,
		MarketCap:      f.MarketCap,
		Liquidity:      f.Liquidity,
		AverageBalance: f.AverageBalance,
	}
}

// DetectorConfig holds behavior analyzer settings
type DetectorConfig struct {
	AnalysisWindow     int     `json:"analysis_window"`
	MinTradeIntervalMs int     `json:"min_trade_interval_ms"`
	BotThreshold       float64 `json:"bot_threshold"`
	MinSamples         int     `json:"min_samples"`
}

// Analyzer converts to the detector's config, falling back to its
// defaults for unset fields
func (d DetectorConfig) Analyzer() detector.Config {
	cfg := detector.DefaultConfig()
	if d.AnalysisWindow > 0 {
		cfg.AnalysisWindow = d.AnalysisWindow
	}
	if d.MinTradeIntervalMs > 0 {
		cfg.MinTradeInterval = time.Duration(d.MinTradeIntervalMs) * time.Millisecond
	}
	if d.BotThreshold > 0 {
		cfg.BotThreshold = d.BotThreshold
	}
	if d.MinSamples > 0 {
		cfg.MinSamples = d.MinSamples
	}
	return cfg
}

// StrategiesConfig carries the tuned knobs per strategy. Zero values fall
// back to each strategy's defaults.
type StrategiesConfig struct {
	MinPrice float64 `json:"min_price"` // safety band applied to every strategy
	MaxPrice float64 `json:"max_price"`

	LiquidityInitialAmount float64 `json:"liquidity_initial_amount"`
	LiquidityCheckSec      int     `json:"liquidity_check_sec"`

	VolumeDailyTarget float64 `json:"volume_daily_target"` // 0 derives from safety constants
	VolumeCycleSec    int     `json:"volume_cycle_sec"`

	PriceActionTradeAmount float64 `json:"price_action_trade_amount"`
	PriceActionStepSec     int     `json:"price_action_step_sec"`

	TechnicalNudgeAmount float64 `json:"technical_nudge_amount"`
	TechnicalCycleSec    int     `json:"technical_cycle_sec"`
}

// Liquidity builds the liquidity strategy config
func (s StrategiesConfig) Liquidity() strategies.LiquidityConfig {
	cfg := strategies.LiquidityConfig{
		InitialAmount: s.LiquidityInitialAmount,
		MinPrice:      s.MinPrice,
		MaxPrice:      s.MaxPrice,
	}
	if s.LiquidityCheckSec > 0 {
		cfg.CheckInterval = time.Duration(s.LiquidityCheckSec) * time.Second
	}
	return cfg
}

// Volume builds the volume strategy config
func (s StrategiesConfig) Volume() strategies.VolumeConfig {
	cfg := strategies.VolumeConfig{
		DailyTarget: s.VolumeDailyTarget,
		MinPrice:    s.MinPrice,
		MaxPrice:    s.MaxPrice,
	}
	if s.VolumeCycleSec > 0 {
		cfg.CycleInterval = time.Duration(s.VolumeCycleSec) * time.Second
	}
	return cfg
}

// PriceAction builds the price action strategy config
func (s StrategiesConfig) PriceAction() strategies.PriceActionConfig {
	cfg := strategies.PriceActionConfig{
		TradeAmount: s.PriceActionTradeAmount,
		MinPrice:    s.MinPrice,
		MaxPrice:    s.MaxPrice,
	}
	if s.PriceActionStepSec > 0 {
		cfg.StepInterval = time.Duration(s.PriceActionStepSec) * time.Second
	}
	return cfg
}

// Technical builds the technical strategy config
func (s StrategiesConfig) Technical() strategies.TechnicalConfig {
	cfg := strategies.TechnicalConfig{
		NudgeAmount: s.TechnicalNudgeAmount,
		MinPrice:    s.MinPrice,
		MaxPrice:    s.MaxPrice,
	}
	if s.TechnicalCycleSec > 0 {
		cfg.CycleInterval = time.Duration(s.TechnicalCycleSec) * time.Second
	}
	return cfg
}

// OrchestratorConfig holds the timing orchestrator settings
type OrchestratorConfig struct {
	ReevalIntervalSec  int `json:"reeval_interval_sec"`
	MetricsIntervalSec int `json:"metrics_interval_sec"`
	MaxRuntimeHours    int `json:"max_runtime_hours"`
}

// Build converts to the orchestrator's config. Peak windows come from the
// orchestrator defaults.
func (o OrchestratorConfig) Build() strategies.OrchestratorConfig {
	cfg := strategies.OrchestratorConfig{}
	if o.ReevalIntervalSec > 0 {
		cfg.ReevalInterval = time.Duration(o.ReevalIntervalSec) * time.Second
	}
	if o.MetricsIntervalSec > 0 {
		cfg.MetricsInterval = time.Duration(o.MetricsIntervalSec) * time.Second
	}
	if o.MaxRuntimeHours > 0 {
		cfg.MaxRuntime = time.Duration(o.MaxRuntimeHours) * time.Hour
	}
	return cfg
}

// DatabaseConfig holds trade-history persistence settings
type DatabaseConfig struct {
	Enabled    bool            `json:"enabled"`
	Connection database.Config `json:"connection"`
}

// LedgerConfig holds the append-only trade ledger settings
type LedgerConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// DefaultConfig returns the baseline configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      8080,
			RateLimit: 120,
		},
		Auth: AuthConfig{
			Enabled:            true,
			Operator:           "admin",
			TokenDurationHours: 12,
		},
		Dex: DexConfig{
			MockMode:           true,
			MockBasePrice:      1.0,
			MockLiquidity:      200000,
			RetryMaxElapsedSec: 30,
			InputMint:          "USDC",
			OutputMint:         "TOKEN",
		},
		Wallets: WalletsConfig{File: "wallets.json"},
		Funding: FundingConfig{
			TotalFunding:   100000,
			MarketCap:      1000000,
			Liquidity:      200000,
			AverageBalance: 500,
		},
		Redis: cache.RedisConfig{Address: "localhost:6379"},
		Database: DatabaseConfig{
			Connection: database.Config{
				Host:     "localhost",
				Port:     5432,
				User:     "postgres",
				Database: "dex_market_bot",
				SSLMode:  "disable",
			},
		},
		Ledger:  LedgerConfig{Path: "trades.ledger"},
		Logging: logging.Config{Level: "INFO", Output: "stdout", JSONFormat: true},
	}
}

// LoadConfig reads the JSON file at path (if it exists) over the defaults,
// then applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Server.Host = getEnvOrDefault("WEB_HOST", c.Server.Host)
	c.Server.Port = getEnvIntOrDefault("WEB_PORT", c.Server.Port)
	if v := os.Getenv("PRODUCTION_MODE"); v != "" {
		c.Server.ProductionMode = v == "true"
	}

	c.Auth.Secret = getEnvOrDefault("AUTH_SECRET", c.Auth.Secret)
	c.Auth.Operator = getEnvOrDefault("AUTH_OPERATOR", c.Auth.Operator)
	c.Auth.PasswordHash = getEnvOrDefault("AUTH_PASSWORD_HASH", c.Auth.PasswordHash)
	if v := os.Getenv("AUTH_ENABLED"); v != "" {
		c.Auth.Enabled = v == "true"
	}

	c.Dex.APIKey = getEnvOrDefault("DEX_API_KEY", c.Dex.APIKey)
	c.Dex.BaseURL = getEnvOrDefault("DEX_BASE_URL", c.Dex.BaseURL)
	if v := os.Getenv("MOCK_MODE"); v != "" {
		c.Dex.MockMode = v == "true"
	}
	c.Dex.InputMint = getEnvOrDefault("DEX_INPUT_MINT", c.Dex.InputMint)
	c.Dex.OutputMint = getEnvOrDefault("DEX_OUTPUT_MINT", c.Dex.OutputMint)

	c.Wallets.File = getEnvOrDefault("WALLETS_FILE", c.Wallets.File)
	c.Wallets.Vault.Address = getEnvOrDefault("VAULT_ADDR", c.Wallets.Vault.Address)
	c.Wallets.Vault.Token = getEnvOrDefault("VAULT_TOKEN", c.Wallets.Vault.Token)
	if v := os.Getenv("VAULT_ENABLED"); v != "" {
		c.Wallets.Vault.Enabled = v == "true"
	}

	c.Redis.Address = getEnvOrDefault("REDIS_ADDR", c.Redis.Address)
	c.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", c.Redis.Password)
	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		c.Redis.Enabled = v == "true"
	}

	c.Database.Connection.Host = getEnvOrDefault("DB_HOST", c.Database.Connection.Host)
	c.Database.Connection.Port = getEnvIntOrDefault("DB_PORT", c.Database.Connection.Port)
	c.Database.Connection.User = getEnvOrDefault("DB_USER", c.Database.Connection.User)
	c.Database.Connection.Password = getEnvOrDefault("DB_PASSWORD", c.Database.Connection.Password)
	c.Database.Connection.Database = getEnvOrDefault("DB_NAME", c.Database.Connection.Database)
	if v := os.Getenv("DB_ENABLED"); v != "" {
		c.Database.Enabled = v == "true"
	}

	c.Logging.Level = getEnvOrDefault("LOG_LEVEL", c.Logging.Level)
	c.Logging.Output = getEnvOrDefault("LOG_OUTPUT", c.Logging.Output)
	if v := os.Getenv("LOG_JSON"); v != "" {
		c.Logging.JSONFormat = v == "true"
	}
}

// Validate rejects configurations the coordinator cannot start with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Auth.Enabled && (c.Auth.Secret == "" || c.Auth.PasswordHash == "") {
		return fmt.Errorf("auth is enabled but AUTH_SECRET or AUTH_PASSWORD_HASH is missing")
	}
	if !c.Dex.MockMode && c.Dex.BaseURL == "" {
		return fmt.Errorf("dex base URL is required outside mock mode")
	}
	if c.Funding.TotalFunding <= 0 {
		return fmt.Errorf("funding.total_funding must be positive")
	}
	return nil
}

// GenerateSampleConfig writes a starting-point config file
func GenerateSampleConfig(path string) error {
	data, err := json.MarshalIndent(DefaultConfig(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sample config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write sample config: %w", err)
	}
	return nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
