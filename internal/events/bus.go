package events

import (
	"sync"
	"time"
)

// EventType represents the different events the decision core emits
type EventType string

const (
	EventVolatility      EventType = "VOLATILITY"
	EventDriftDetected   EventType = "DRIFT_DETECTED"
	EventRegimeChange    EventType = "REGIME_CHANGE"
	EventHedgeExecuted   EventType = "HEDGE_EXECUTED"
	EventSignalGenerated EventType = "SIGNAL_GENERATED"
	EventError           EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// Bus manages event publishing and subscriptions. Dispatch is synchronous:
// the core is single-threaded and subscribers must observe events in the
// order they were published.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[EventType][]Subscriber),
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
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	subs := b.subscribers[event.Type]
	all := b.allSubs
	b.mu.RUnlock()

	for _, sub := range subs {
		sub(event)
	}
	for _, sub := range all {
		sub(event)
	}
}

// PublishVolatility publishes a volatility reading
func (b *Bus) PublishVolatility(symbol string, volatility float64) {
	b.Publish(Event{
		Type: EventVolatility,
		Data: map[string]interface{}{
			"symbol":     symbol,
			"volatility": volatility,
		},
	})
}

// PublishDrift publishes a strategy drift detection
func (b *Bus) PublishDrift(symbol string, zScore float64, severity string) {
	b.Publish(Event{
		Type: EventDriftDetected,
		Data: map[string]interface{}{
			"symbol":   symbol,
			"z_score":  zScore,
			"severity": severity,
		},
	})
}

// PublishRegime publishes a market regime classification
func (b *Bus) PublishRegime(symbol, regime string, volatilityScore, trendStrength float64) {
	b.Publish(Event{
		Type: EventRegimeChange,
		Data: map[string]interface{}{
			"symbol":           symbol,
			"regime":           regime,
			"volatility_score": volatilityScore,
			"trend_strength":   trendStrength,
		},
	})
}

// PublishHedgeExecuted publishes a completed hedge rebalance
func (b *Bus) PublishHedgeExecuted(symbol, side string, quantity, price float64) {
	b.Publish(Event{
		Type: EventHedgeExecuted,
		Data: map[string]interface{}{
			"symbol":   symbol,
			"side":     side,
			"quantity": quantity,
			"price":    price,
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
	b.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
