package exchange

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

// SimClient provides simulated market data and order fills for development
// and testing. Prices follow a bounded random walk per symbol.
type SimClient struct {
	mu         sync.RWMutex
	prices     map[string]float64
	lastUpdate time.Time
	rng        *rand.Rand
	nextOrder  int64
}

// NewSimClient creates a simulated exchange client. A nil rng falls back to
// a time-seeded source.
func NewSimClient(rng *rand.Rand) *SimClient {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &SimClient{
		prices: map[string]float64{
			"BTCUSDT": 104500.00,
			"ETHUSDT": 3900.00,
			"BNBUSDT": 710.00,
			"SOLUSDT": 220.00,
			"XRPUSDT": 2.35,
		},
		lastUpdate: time.Now(),
		rng:        rng,
	}
}

// SetPrice pins the simulated price for a symbol.
func (sc *SimClient) SetPrice(symbol string, price float64) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.prices[symbol] = price
}

// updatePrices adds small random variations to simulate market movement
func (sc *SimClient) updatePrices() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if time.Since(sc.lastUpdate) < time.Second {
		return
	}

	for symbol, price := range sc.prices {
		// Random walk: -0.5% to +0.5% change
		change := (sc.rng.Float64() - 0.5) * 0.01
		sc.prices[symbol] = price * (1 + change)
	}
	sc.lastUpdate = time.Now()
}

func (sc *SimClient) basePrice(symbol string) float64 {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	if p, ok := sc.prices[symbol]; ok {
		return p
	}
	return 100.0
}

// GetTicker returns the current simulated quote for a symbol.
func (sc *SimClient) GetTicker(ctx context.Context, exchange, symbol string) (*Ticker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sc.updatePrices()

	last := sc.basePrice(symbol)
	spread := last * 0.0002
	return &Ticker{
		Symbol: symbol,
		Last:   last,
		Bid:    last - spread,
		Ask:    last + spread,
		Volume: last * 1000,
	}, nil
}

// CreateMarketOrder fills a market order at the current simulated price.
func (sc *SimClient) CreateMarketOrder(ctx context.Context, exchange, symbol string, side OrderSide, quantity float64) (*OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("invalid order quantity %f for %s", quantity, symbol)
	}

	sc.mu.Lock()
	sc.nextOrder++
	orderID := sc.nextOrder
	sc.mu.Unlock()

	return &OrderResult{
		OrderID:        fmt.Sprintf("sim-%d", orderID),
		Symbol:         symbol,
		Side:           side,
		Quantity:       quantity,
		FilledQuantity: quantity,
		AvgPrice:       sc.basePrice(symbol),
		Status:         "FILLED",
	}, nil
}

// GetMarketData returns simulated candlestick data working backwards from now.
func (sc *SimClient) GetMarketData(ctx context.Context, exchange, symbol, timeframe string, limit int) ([]Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sc.updatePrices()

	interval := timeframeDuration(timeframe)
	base := sc.basePrice(symbol)
	now := time.Now()

	candles := make([]Candle, limit)
	price := base
	for i := limit - 1; i >= 0; i-- {
		openTime := now.Add(-time.Duration(limit-i) * interval)

		volatility := 0.02
		open := price
		change := (sc.rng.Float64() - 0.5) * volatility * 2
		close := open * (1 + change)

		high := math.Max(open, close) * (1 + sc.rng.Float64()*volatility*0.5)
		low := math.Min(open, close) * (1 - sc.rng.Float64()*volatility*0.5)
		volume := base * (1000 + sc.rng.Float64()*5000)

		candles[i] = Candle{
			Timestamp: openTime.UnixMilli(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
		}
		price = close
	}

	return Normalize(candles), nil
}

func timeframeDuration(timeframe string) time.Duration {
	switch timeframe {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return time.Minute
	}
}
