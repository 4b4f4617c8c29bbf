package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"dex-market-bot/config"
	"dex-market-bot/internal/api"
	"dex-market-bot/internal/auth"
	"dex-market-bot/internal/cache"
	"dex-market-bot/internal/database"
	"dex-market-bot/internal/detector"
	"dex-market-bot/internal/dex"
	"dex-market-bot/internal/engine"
	"dex-market-bot/internal/events"
	"dex-market-bot/internal/logging"
	"dex-market-bot/internal/market"
	"dex-market-bot/internal/safety"
	"dex-market-bot/internal/strategies"
	"dex-market-bot/internal/trader"
	"dex-market-bot/internal/wallet"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config.json"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logging.New(&logging.Config{
		Level:      cfg.Logging.Level,
		Output:     cfg.Logging.Output,
		JSONFormat: cfg.Logging.JSONFormat,
		Component:  "main",
	})
	logging.SetDefault(logger)
	logger.Info("Configuration loaded", "config", configPath, "mock_mode", cfg.Dex.MockMode)

	bus := events.NewBus()

	// DEX boundary: in-process simulation or the real venue behind retries
	var client dex.MarketClient
	var clock dex.Clock
	if cfg.Dex.MockMode {
		mock := dex.NewMockClient(cfg.Dex.MockBasePrice, cfg.Dex.MockLiquidity)
		client = mock
		clock = mock
	} else {
		maxElapsed := time.Duration(cfg.Dex.RetryMaxElapsedSec) * time.Second
		client = dex.NewRetryClient(dex.NewClient(cfg.Dex.APIKey, cfg.Dex.BaseURL), maxElapsed)
		clock = dex.NewSystemClock()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Wallet set: Vault or a local file
	var wallets []wallet.Info
	if cfg.Wallets.Vault.Enabled {
		source, err := wallet.NewVaultSource(cfg.Wallets.Vault, logger)
		if err != nil {
			logger.Fatal("Failed to create vault source", "error", err.Error())
		}
		wallets, err = source.LoadWallets(ctx)
		if err != nil {
			logger.Fatal("Failed to load wallets from vault", "error", err.Error())
		}
	} else {
		wallets, err = wallet.LoadWalletFile(cfg.Wallets.File)
		if err != nil {
			logger.Fatal("Failed to load wallet file", "error", err.Error())
		}
	}
	allocator := wallet.NewAllocator(wallets, logger)
	logger.Info("Wallets loaded", "count", len(wallets))

	table, err := safety.NewTable(cfg.Funding.Metrics())
	if err != nil {
		logger.Fatal("Failed to derive safety constants", "error", err.Error())
	}

	book := market.NewBook(market.Metrics{
		Price:     cfg.Dex.MockBasePrice,
		Liquidity: cfg.Funding.Liquidity,
	})

	analyzer := detector.NewAnalyzer(cfg.Detector.Analyzer(), bus, logger)

	tr := trader.New(trader.Config{
		Client:     client,
		Clock:      clock,
		Allocator:  allocator,
		Table:      table,
		Book:       book,
		Recorder:   analyzer,
		Bus:        bus,
		Logger:     logger,
		InputMint:  cfg.Dex.InputMint,
		OutputMint: cfg.Dex.OutputMint,
	})

	// Optional persistence: relational history plus an append-only ledger
	var repo *database.Repository
	if cfg.Database.Enabled {
		db, err := database.NewDB(cfg.Database.Connection, logger)
		if err != nil {
			logger.Fatal("Failed to connect to database", "error", err.Error())
		}
		defer db.Close()
		if err := db.RunMigrations(ctx); err != nil {
			logger.Fatal("Migrations failed", "error", err.Error())
		}
		repo = database.NewRepository(db)

		// Bot classifications survive restarts
		bus.Subscribe(events.EventBotFlagged, func(event events.Event) {
			w, _ := event.Data["wallet"].(string)
			score, _ := event.Data["score"].(float64)
			if w == "" {
				return
			}
			flagCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := repo.UpsertFlag(flagCtx, w, score, 0); err != nil {
				logger.Warn("Failed to persist behavior flag", "wallet", w, "error", err.Error())
			}
		})
	}

	var ledger *database.Ledger
	if cfg.Ledger.Enabled {
		ledger, err = database.NewLedger(cfg.Ledger.Path)
		if err != nil {
			logger.Fatal("Failed to open trade ledger", "error", err.Error())
		}
		defer ledger.Close()
	}

	if repo != nil || ledger != nil {
		tr.SetSink(func(tm market.TradeMetrics) {
			if ledger != nil {
				ledger.Record(tm)
			}
			if repo != nil {
				sinkCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := repo.InsertTrade(sinkCtx, tm); err != nil {
					logger.Warn("Failed to persist trade", "error", err.Error())
				}
			}
		})
	}

	baits := detector.NewBaitRunner(tr, client, bus, logger, cfg.Dex.InputMint, cfg.Dex.OutputMint)

	deps := strategies.Deps{Executor: tr, Book: book, Table: table, Bus: bus, Logger: logger}
	orchestrator := strategies.NewOrchestrator(
		cfg.Orchestrator.Build(),
		strategies.NewLiquidityStrategy(cfg.Strategies.Liquidity(), deps),
		strategies.NewVolumeStrategy(cfg.Strategies.Volume(), nil, deps),
		strategies.NewPriceActionStrategy(cfg.Strategies.PriceAction(), deps),
		strategies.NewTechnicalStrategy(cfg.Strategies.Technical(), deps),
		book, bus, logger,
	)

	eng := engine.New(engine.Config{
		Book:         book,
		Table:        table,
		Allocator:    allocator,
		Analyzer:     analyzer,
		Baits:        baits,
		Trader:       tr,
		Orchestrator: orchestrator,
		Bus:          bus,
		Logger:       logger,
	})
	defer eng.Close()

	if cfg.Redis.Enabled {
		mirror := cache.NewMirror(cfg.Redis, logger)
		mirror.Attach(bus)
		defer mirror.Close()
	}

	var authManager *auth.Manager
	if cfg.Auth.Enabled {
		authManager, err = auth.NewManager(auth.Config{
			Secret:        cfg.Auth.Secret,
			TokenDuration: time.Duration(cfg.Auth.TokenDurationHours) * time.Hour,
			Operator:      cfg.Auth.Operator,
			PasswordHash:  cfg.Auth.PasswordHash,
		})
		if err != nil {
			logger.Fatal("Failed to create auth manager", "error", err.Error())
		}
	} else {
		logger.Warn("Authentication is disabled")
	}

	server := api.NewServer(api.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ProductionMode: cfg.Server.ProductionMode,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      cfg.Server.RateLimit,
	}, eng, authManager, bus, logger)

	logger.Info("Coordinator starting", "port", cfg.Server.Port)
	if err := server.Start(ctx); err != nil {
		logger.Fatal("Server failed", "error", err.Error())
	}
	logger.Info("Coordinator stopped")
}
