// Package cache mirrors live coordinator state into Redis with graceful
// degradation. When Redis is unavailable the mirror goes quiet; nothing
// in the trade path depends on it.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"dex-market-bot/internal/events"
	"dex-market-bot/internal/logging"
)

// Redis keys for mirrored state
const (
	KeyRecentTrades   = "coordinator:trades:recent"
	KeyFlaggedWallets = "coordinator:behavior:flagged"
	KeyMetrics        = "coordinator:metrics:latest"
	KeyOrchestrator   = "coordinator:orchestrator:state"

	recentTradesMax = 500
	metricsTTL      = 10 * time.Minute
)

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// Mirror copies bus events into Redis so dashboards and other processes
// can read live state without touching the coordinator.
type Mirror struct {
	client *redis.Client
	logger *logging.Logger

	mu      sync.RWMutex
	healthy bool
}

// NewMirror connects to Redis. A failed initial connection returns the
// mirror in degraded mode rather than an error.
func NewMirror(cfg RedisConfig, logger *logging.Logger) *Mirror {
	log := logger.WithComponent("cache")

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 5
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     poolSize,
		MinIdleConns: 1,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	m := &Mirror{client: client, logger: log}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unavailable, mirror degraded", "error", err.Error())
		return m
	}

	m.healthy = true
	log.Info("Redis connected", "addr", cfg.Address)
	return m
}

// IsHealthy reports whether the mirror is writing
func (m *Mirror) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy
}

func (m *Mirror) markUnhealthy(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.healthy {
		m.logger.Warn("Redis write failed, mirror degraded", "error", err.Error())
	}
	m.healthy = false
}

// Attach subscribes the mirror to the event bus. Trade, flag, metric and
// orchestrator events are written out; everything else is ignored.
func (m *Mirror) Attach(bus *events.Bus) {
	bus.SubscribeAll(func(event events.Event) {
		if !m.IsHealthy() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		switch event.Type {
		case events.EventTradeExecuted:
			m.pushTrade(ctx, event)
		case events.EventBotFlagged:
			m.addFlag(ctx, event)
		case events.EventMetricsUpdate:
			m.setJSON(ctx, KeyMetrics, event.Data, metricsTTL)
		case events.EventOrchestratorState:
			m.setJSON(ctx, KeyOrchestrator, event.Data, 0)
		}
	})
}

func (m *Mirror) pushTrade(ctx context.Context, event events.Event) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return
	}
	pipe := m.client.Pipeline()
	pipe.LPush(ctx, KeyRecentTrades, payload)
	pipe.LTrim(ctx, KeyRecentTrades, 0, recentTradesMax-1)
	if _, err := pipe.Exec(ctx); err != nil {
		m.markUnhealthy(err)
	}
}

func (m *Mirror) addFlag(ctx context.Context, event events.Event) {
	wallet, ok := event.Data["wallet"].(string)
	if !ok || wallet == "" {
		return
	}
	if err := m.client.SAdd(ctx, KeyFlaggedWallets, wallet).Err(); err != nil {
		m.markUnhealthy(err)
	}
}

func (m *Mirror) setJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := m.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		m.markUnhealthy(err)
	}
}

// RecentTrades reads the latest mirrored trades, newest first
func (m *Mirror) RecentTrades(ctx context.Context, limit int) ([]map[string]interface{}, error) {
	if limit <= 0 || limit > recentTradesMax {
		limit = recentTradesMax
	}
	raw, err := m.client.LRange(ctx, KeyRecentTrades, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(raw))
	for _, line := range raw {
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

// FlaggedWallets reads the mirrored bot classifications
func (m *Mirror) FlaggedWallets(ctx context.Context) ([]string, error) {
	return m.client.SMembers(ctx, KeyFlaggedWallets).Result()
}

// Close releases the Redis client
func (m *Mirror) Close() error {
	return m.client.Close()
}
