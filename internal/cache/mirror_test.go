package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"dex-market-bot/internal/events"
	"dex-market-bot/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(&logging.Config{Level: "ERROR", Output: "stderr"})
}

// degradedMirror builds a mirror that never connected
func degradedMirror() *Mirror {
	return &Mirror{
		client: redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}),
		logger: testLogger().WithComponent("cache"),
	}
}

// ============================================================================
// TEST: Degraded mirror stays quiet on bus events
// ============================================================================

func TestMirrorDegradedIgnoresEvents(t *testing.T) {
	m := degradedMirror()
	if m.IsHealthy() {
		t.Fatal("mirror without a connection should start degraded")
	}

	// Publishing through an attached bus must not panic or block even
	// though Redis is unreachable.
	bus := events.NewBus()
	m.Attach(bus)
	bus.PublishTrade("strategy:volume", "whale-1", "BUY", 25, 1.0, "tx-1")
	bus.PublishBotFlagged("bot-1", 0.93)
	time.Sleep(50 * time.Millisecond)

	if m.IsHealthy() {
		t.Error("mirror should remain degraded")
	}
}

// ============================================================================
// TEST: Health transitions
// ============================================================================

func TestMirrorMarkUnhealthy(t *testing.T) {
	m := degradedMirror()
	m.healthy = true

	m.markUnhealthy(errors.New("connection refused"))
	if m.IsHealthy() {
		t.Error("markUnhealthy should flip the health flag")
	}

	// Repeated failures are idempotent
	m.markUnhealthy(errors.New("still down"))
	if m.IsHealthy() {
		t.Error("mirror should stay degraded")
	}
}
