package events

import (
	"testing"
)

func TestPublishDispatchOrder(t *testing.T) {
	bus := NewBus()

	var seen []float64
	bus.Subscribe(EventVolatility, func(e Event) {
		seen = append(seen, e.Data["volatility"].(float64))
	})

	bus.PublishVolatility("BTCUSDT", 0.006)
	bus.PublishVolatility("BTCUSDT", 0.012)
	bus.PublishVolatility("BTCUSDT", 0.003)

	if len(seen) != 3 {
		t.Fatalf("expected 3 deliveries, got %d", len(seen))
	}
	// Dispatch is synchronous, so publish order is observation order.
	if seen[0] != 0.006 || seen[1] != 0.012 || seen[2] != 0.003 {
		t.Errorf("events delivered out of order: %v", seen)
	}
}

func TestTypedSubscriptionFiltering(t *testing.T) {
	bus := NewBus()

	drift, all := 0, 0
	bus.Subscribe(EventDriftDetected, func(Event) { drift++ })
	bus.SubscribeAll(func(Event) { all++ })

	bus.PublishDrift("BTCUSDT", 2.4, "moderate")
	bus.PublishRegime("BTCUSDT", "choppy", 0.5, 0.1)
	bus.PublishHedgeExecuted("BTCUSDT", "SELL", 0.03, 50000)

	if drift != 1 {
		t.Errorf("typed subscriber must only see its type, got %d", drift)
	}
	if all != 3 {
		t.Errorf("catch-all subscriber must see every event, got %d", all)
	}
}

func TestEventTimestampDefaulted(t *testing.T) {
	bus := NewBus()

	var got Event
	bus.Subscribe(EventError, func(e Event) { got = e })
	bus.PublishError("test", "boom", nil)

	if got.Timestamp.IsZero() {
		t.Error("published events must carry a timestamp")
	}
}
