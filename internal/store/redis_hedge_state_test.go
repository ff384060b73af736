package store

import (
	"context"
	"testing"
	"time"

	"crypto-agent-core/internal/hedging"
	"crypto-agent-core/internal/logging"
)

func TestHedgeStateMemoryFallback(t *testing.T) {
	s := NewRedisHedgeStateStore(nil, logging.Nop())
	ctx := context.Background()

	if state, err := s.LoadHedgeState(ctx, "BTCUSDT"); err != nil || state != nil {
		t.Fatalf("missing state must load as (nil, nil), got (%v, %v)", state, err)
	}

	cap := 500.0
	saved := &hedging.State{
		CurrentHedgeQuantity: -0.03,
		LastEvaluation:       time.Now(),
		DynamicExposureCap:   &cap,
	}
	if err := s.SaveHedgeState(ctx, "BTCUSDT", saved); err != nil {
		t.Fatalf("SaveHedgeState failed: %v", err)
	}

	loaded, err := s.LoadHedgeState(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("LoadHedgeState failed: %v", err)
	}
	if loaded == nil || loaded.CurrentHedgeQuantity != -0.03 {
		t.Fatalf("unexpected loaded state: %+v", loaded)
	}
	if loaded.DynamicExposureCap == nil || *loaded.DynamicExposureCap != 500 {
		t.Errorf("dynamic cap not round-tripped: %v", loaded.DynamicExposureCap)
	}

	// The store hands out copies, not the cached pointer.
	loaded.CurrentHedgeQuantity = 99
	again, _ := s.LoadHedgeState(ctx, "BTCUSDT")
	if again.CurrentHedgeQuantity != -0.03 {
		t.Error("mutating a loaded state must not affect the cache")
	}

	if err := s.DeleteHedgeState(ctx, "BTCUSDT"); err != nil {
		t.Fatalf("DeleteHedgeState failed: %v", err)
	}
	if state, _ := s.LoadHedgeState(ctx, "BTCUSDT"); state != nil {
		t.Error("deleted state must not load")
	}
}

func TestSaveNilHedgeState(t *testing.T) {
	s := NewRedisHedgeStateStore(nil, logging.Nop())
	if err := s.SaveHedgeState(context.Background(), "BTCUSDT", nil); err == nil {
		t.Fatal("expected error for nil state")
	}
}
