package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventPatternStarted    EventType = "PATTERN_STARTED"
	EventPatternCompleted  EventType = "PATTERN_COMPLETED"
	EventPatternFailed     EventType = "PATTERN_FAILED"
	EventPatternStopped    EventType = "PATTERN_STOPPED"
	EventTradeExecuted     EventType = "TRADE_EXECUTED"
	EventLiquidityAdjusted EventType = "LIQUIDITY_ADJUSTED"
	EventStrategyToggled   EventType = "STRATEGY_TOGGLED"
	EventSafetyLimit       EventType = "SAFETY_LIMIT_TRIPPED"
	EventConstantsRefresh  EventType = "CONSTANTS_REFRESHED"
	EventBaitDeployed      EventType = "BAIT_DEPLOYED"
	EventBotFlagged        EventType = "BOT_FLAGGED"
	EventMetricsUpdate     EventType = "METRICS_UPDATE"
	EventOrchestratorState EventType = "ORCHESTRATOR_STATE"
	EventError             EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// Bus manages event publishing and subscriptions
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (b *Bus) Subscribe(eventType EventType, subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (b *Bus) SubscribeAll(subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allSubs = append(b.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := b.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}
	for _, sub := range b.allSubs {
		go sub(event)
	}
}

// PublishTrade publishes a trade executed event
func (b *Bus) PublishTrade(source, wallet, side string, amount, price float64, txID string) {
	b.Publish(Event{
		Type: EventTradeExecuted,
		Data: map[string]interface{}{
			"source": source,
			"wallet": wallet,
			"side":   side,
			"amount": amount,
			"price":  price,
			"tx_id":  txID,
		},
	})
}

// PublishStrategyToggled publishes an activation change for a strategy
func (b *Bus) PublishStrategyToggled(name string, active bool, reason string) {
	b.Publish(Event{
		Type: EventStrategyToggled,
		Data: map[string]interface{}{
			"strategy": name,
			"active":   active,
			"reason":   reason,
		},
	})
}

// PublishBotFlagged publishes a counterparty bot classification
func (b *Bus) PublishBotFlagged(wallet string, score float64) {
	b.Publish(Event{
		Type: EventBotFlagged,
		Data: map[string]interface{}{
			"wallet": wallet,
			"score":  score,
		},
	})
}

// PublishError publishes an error event
func (b *Bus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	b.Publish(Event{Type: EventError, Data: data})
}
