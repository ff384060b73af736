package exchange

import "context"

// Client defines the capability interface the decision core needs from an
// exchange connector. Real connectivity (REST/websocket, testnet fallback)
// lives outside this module; implementations here are simulated.
type Client interface {
	GetTicker(ctx context.Context, exchange, symbol string) (*Ticker, error)
	CreateMarketOrder(ctx context.Context, exchange, symbol string, side OrderSide, quantity float64) (*OrderResult, error)
	GetMarketData(ctx context.Context, exchange, symbol, timeframe string, limit int) ([]Candle, error)
}

// Ensure SimClient satisfies the Client interface
var _ Client = (*SimClient)(nil)
