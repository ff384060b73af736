package exchange

import (
	"sort"
	"time"
)

// Candle represents a single OHLCV candle. Timestamps are Unix milliseconds
// and candle series are ordered by timestamp ascending.
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Time returns the candle timestamp as time.Time.
func (c Candle) Time() time.Time {
	return time.Unix(0, c.Timestamp*int64(time.Millisecond))
}

// Range returns the high-low spread of the candle.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// Body returns the absolute open-close distance.
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Ticker represents the current market quote for a symbol.
type Ticker struct {
	Symbol string  `json:"symbol"`
	Last   float64 `json:"last"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Volume float64 `json:"volume"`
}

// OrderSide is the direction of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderResult represents the outcome of placing a market order.
type OrderResult struct {
	OrderID        string    `json:"order_id"`
	Symbol         string    `json:"symbol"`
	Side           OrderSide `json:"side"`
	Quantity       float64   `json:"quantity"`
	FilledQuantity float64   `json:"filled_quantity"`
	AvgPrice       float64   `json:"avg_price"`
	Status         string    `json:"status"`
}

// Normalize sorts candles by timestamp ascending and collapses duplicate
// timestamps, keeping the last-written candle for each timestamp.
func Normalize(candles []Candle) []Candle {
	if len(candles) == 0 {
		return nil
	}

	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Timestamp < candles[j].Timestamp
	})

	out := make([]Candle, 0, len(candles))
	for _, c := range candles {
		if n := len(out); n > 0 && out[n-1].Timestamp == c.Timestamp {
			out[n-1] = c
			continue
		}
		out = append(out, c)
	}
	return out
}
