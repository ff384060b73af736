package hedging

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"crypto-agent-core/internal/exchange"
	"crypto-agent-core/internal/logging"
)

// fakeClient returns fixed prices per symbol and records placed orders.
type fakeClient struct {
	prices   map[string]float64
	orders   []placedOrder
	orderErr error
}

type placedOrder struct {
	symbol   string
	side     exchange.OrderSide
	quantity float64
}

func (f *fakeClient) GetTicker(_ context.Context, _, symbol string) (*exchange.Ticker, error) {
	price, ok := f.prices[symbol]
	if !ok {
		return nil, errors.New("unknown symbol")
	}
	return &exchange.Ticker{Symbol: symbol, Last: price, Bid: price, Ask: price}, nil
}

func (f *fakeClient) CreateMarketOrder(_ context.Context, _, symbol string, side exchange.OrderSide, quantity float64) (*exchange.OrderResult, error) {
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	f.orders = append(f.orders, placedOrder{symbol: symbol, side: side, quantity: quantity})
	return &exchange.OrderResult{
		OrderID:        "test-1",
		Symbol:         symbol,
		Side:           side,
		Quantity:       quantity,
		FilledQuantity: quantity,
		Status:         "FILLED",
	}, nil
}

func (f *fakeClient) GetMarketData(_ context.Context, _, _, _ string, _ int) ([]exchange.Candle, error) {
	return nil, errors.New("not implemented")
}

func testConfig() Config {
	return Config{
		Enabled:          true,
		HedgeExchange:    "sim",
		HedgeSymbol:      "BTCUSDT",
		TargetDelta:      0,
		MaxDeltaExposure: 1000,
		CheckInterval:    time.Millisecond,
	}
}

func TestEvaluatePortfolioShortsExcessLongDelta(t *testing.T) {
	client := &fakeClient{prices: map[string]float64{
		"BTCUSDT": 50000,
		"ETHUSDT": 3000,
	}}
	c := NewController(testConfig(), client, nil, nil, nil, logging.Nop())

	positions := []Position{
		{ID: "p1", Symbol: "ETHUSDT", Exchange: "sim", Side: PositionLong, Quantity: 0.5}, // $1500
	}

	if err := c.EvaluatePortfolio(context.Background(), positions); err != nil {
		t.Fatalf("EvaluatePortfolio failed: %v", err)
	}

	if len(client.orders) != 1 {
		t.Fatalf("expected 1 hedge order, got %d", len(client.orders))
	}
	order := client.orders[0]
	if order.side != exchange.SideSell {
		t.Errorf("expected SELL hedge, got %s", order.side)
	}
	if math.Abs(order.quantity-0.03) > 1e-9 {
		t.Errorf("expected hedge quantity 0.03, got %f", order.quantity)
	}
	if math.Abs(c.State().CurrentHedgeQuantity-(-0.03)) > 1e-9 {
		t.Errorf("expected hedge state -0.03, got %f", c.State().CurrentHedgeQuantity)
	}
}

func TestEvaluatePortfolioWithinToleranceIsIdle(t *testing.T) {
	client := &fakeClient{prices: map[string]float64{
		"BTCUSDT": 50000,
		"ETHUSDT": 3000,
	}}
	c := NewController(testConfig(), client, nil, nil, nil, logging.Nop())

	// $900 delta is inside the $1000 cap.
	positions := []Position{
		{Symbol: "ETHUSDT", Exchange: "sim", Side: PositionLong, Quantity: 0.3},
	}

	if err := c.EvaluatePortfolio(context.Background(), positions); err != nil {
		t.Fatalf("EvaluatePortfolio failed: %v", err)
	}
	if len(client.orders) != 0 {
		t.Fatalf("expected no hedge orders within tolerance, got %d", len(client.orders))
	}
}

func TestEvaluatePortfolioDisabled(t *testing.T) {
	client := &fakeClient{prices: map[string]float64{"BTCUSDT": 50000}}
	cfg := testConfig()
	cfg.Enabled = false
	c := NewController(cfg, client, nil, nil, nil, logging.Nop())

	positions := []Position{
		{Symbol: "BTCUSDT", Exchange: "sim", Side: PositionLong, Quantity: 1},
	}
	if err := c.EvaluatePortfolio(context.Background(), positions); err != nil {
		t.Fatalf("EvaluatePortfolio failed: %v", err)
	}
	if len(client.orders) != 0 {
		t.Fatal("disabled controller must not place orders")
	}
}

func TestEvaluatePortfolioThrottle(t *testing.T) {
	client := &fakeClient{prices: map[string]float64{
		"BTCUSDT": 50000,
		"ETHUSDT": 3000,
	}}
	cfg := testConfig()
	cfg.CheckInterval = time.Hour
	c := NewController(cfg, client, nil, nil, nil, logging.Nop())

	positions := []Position{
		{Symbol: "ETHUSDT", Exchange: "sim", Side: PositionLong, Quantity: 0.5},
	}

	if err := c.EvaluatePortfolio(context.Background(), positions); err != nil {
		t.Fatalf("first evaluation failed: %v", err)
	}
	if err := c.EvaluatePortfolio(context.Background(), positions); err != nil {
		t.Fatalf("second evaluation failed: %v", err)
	}
	if len(client.orders) != 1 {
		t.Fatalf("expected throttled second tick to be a no-op, got %d orders", len(client.orders))
	}
}

func TestFailedRebalanceLeavesStateAndAdvancesThrottle(t *testing.T) {
	client := &fakeClient{
		prices: map[string]float64{
			"BTCUSDT": 50000,
			"ETHUSDT": 3000,
		},
		orderErr: errors.New("exchange unavailable"),
	}
	cfg := testConfig()
	cfg.CheckInterval = time.Hour
	c := NewController(cfg, client, nil, nil, nil, logging.Nop())

	positions := []Position{
		{Symbol: "ETHUSDT", Exchange: "sim", Side: PositionLong, Quantity: 0.5},
	}

	if err := c.EvaluatePortfolio(context.Background(), positions); err == nil {
		t.Fatal("expected order failure to propagate")
	}
	if c.State().CurrentHedgeQuantity != 0 {
		t.Errorf("failed rebalance must not change hedge quantity, got %f", c.State().CurrentHedgeQuantity)
	}

	// The throttle advanced, so a retry inside the interval is a no-op.
	client.orderErr = nil
	if err := c.EvaluatePortfolio(context.Background(), positions); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if len(client.orders) != 0 {
		t.Fatal("retry within the check interval must be throttled")
	}
}

func TestDustOrderSkipped(t *testing.T) {
	client := &fakeClient{prices: map[string]float64{
		"BTCUSDT": 50000,
		"ETHUSDT": 3000,
	}}
	cfg := testConfig()
	cfg.MaxDeltaExposure = 1 // cap so small that a $9 deviation still triggers
	c := NewController(cfg, client, nil, nil, nil, logging.Nop())

	positions := []Position{
		{Symbol: "ETHUSDT", Exchange: "sim", Side: PositionLong, Quantity: 0.003}, // $9
	}

	if err := c.EvaluatePortfolio(context.Background(), positions); err != nil {
		t.Fatalf("EvaluatePortfolio failed: %v", err)
	}
	if len(client.orders) != 0 {
		t.Fatal("sub-minimum notional must be skipped, not ordered")
	}
}

func TestUpdateMarketVolatilityTiers(t *testing.T) {
	c := NewController(testConfig(), &fakeClient{}, nil, nil, nil, logging.Nop())

	c.UpdateMarketVolatility(0.001)
	if c.State().DynamicExposureCap != nil {
		t.Error("calm volatility should leave the cap unset")
	}

	c.UpdateMarketVolatility(0.007)
	if got := c.State().DynamicExposureCap; got == nil || *got != 500 {
		t.Errorf("moderate volatility should halve the cap, got %v", got)
	}

	c.UpdateMarketVolatility(0.015)
	if got := c.State().DynamicExposureCap; got == nil || *got != 200 {
		t.Errorf("high volatility should cut the cap to 20%%, got %v", got)
	}

	// Last reading wins.
	c.UpdateMarketVolatility(0.001)
	if c.State().DynamicExposureCap != nil {
		t.Error("returning to calm volatility should unset the cap")
	}

	c.UpdateMarketVolatility(0.015)
	c.UpdateMarketVolatility(0.015)
	if got := c.State().DynamicExposureCap; got == nil || *got != 200 {
		t.Errorf("repeated readings must be idempotent, got %v", got)
	}
}
