package analysis

import (
	"context"
	"errors"
	"testing"

	"crypto-agent-core/internal/exchange"
)

// flatCandles returns n identical candles with no swings or gaps.
func flatCandles(n int) []exchange.Candle {
	candles := make([]exchange.Candle, n)
	for i := range candles {
		candles[i] = exchange.Candle{
			Timestamp: int64(i+1) * 60_000,
			Open:      100, High: 101, Low: 99, Close: 100,
			Volume: 1000,
		}
	}
	return candles
}

func TestAnalyzeShortWindowDegrades(t *testing.T) {
	a := NewAnalyzer()

	res := a.Analyze(flatCandles(MinCandles - 1))

	if len(res.LiquidityZones) != 0 || len(res.OrderBlocks) != 0 || len(res.FairValueGaps) != 0 {
		t.Error("short window should produce an empty result")
	}
	if res.Structure.Trend != TrendNeutral {
		t.Errorf("expected neutral trend for short window, got %s", res.Structure.Trend)
	}
}

func TestNoSwingsInMonotonicSequence(t *testing.T) {
	a := NewAnalyzer()

	candles := make([]exchange.Candle, 60)
	for i := range candles {
		base := 100 + float64(i)
		candles[i] = exchange.Candle{
			Timestamp: int64(i+1) * 60_000,
			Open:      base, High: base + 1, Low: base - 1, Close: base + 0.5,
			Volume: 1000,
		}
	}

	res := a.Analyze(candles)

	if len(res.LiquidityZones) != 0 {
		t.Errorf("monotonic sequence should have no liquidity zones, got %d", len(res.LiquidityZones))
	}
	if res.Structure.Trend != TrendBullish {
		t.Errorf("expected bullish trend, got %s", res.Structure.Trend)
	}
	if res.Structure.HigherHighs != len(candles)-1 {
		t.Errorf("expected %d higher highs, got %d", len(candles)-1, res.Structure.HigherHighs)
	}
	if res.Structure.LowerLows != 0 {
		t.Errorf("expected 0 lower lows, got %d", res.Structure.LowerLows)
	}
}

func TestSwingLowInVShapedSequence(t *testing.T) {
	a := NewAnalyzer()

	// V shape: lows descend to index 30, then ascend
	candles := make([]exchange.Candle, 61)
	for i := range candles {
		dist := float64(abs(i - 30))
		low := 90 + dist
		candles[i] = exchange.Candle{
			Timestamp: int64(i+1) * 60_000,
			Open:      low + 1, High: low + 2, Low: low, Close: low + 1,
			Volume: 1000,
		}
	}

	res := a.Analyze(candles)

	var buySide []LiquidityZone
	for _, z := range res.LiquidityZones {
		if z.Kind == BuySideLiquidity {
			buySide = append(buySide, z)
		}
	}

	if len(buySide) != 1 {
		t.Fatalf("expected exactly 1 buy-side zone at the V bottom, got %d", len(buySide))
	}
	if buySide[0].Price != 90 {
		t.Errorf("expected zone price 90, got %f", buySide[0].Price)
	}
}

func TestDetectBullishFVG(t *testing.T) {
	a := NewAnalyzer()

	candles := flatCandles(60)
	// Insert a clean 3-candle bullish imbalance at index 30
	candles[29] = exchange.Candle{Timestamp: candles[29].Timestamp, Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000}
	candles[30] = exchange.Candle{Timestamp: candles[30].Timestamp, Open: 103, High: 104, Low: 102, Close: 103, Volume: 1000}
	for i := 31; i < len(candles); i++ {
		candles[i] = exchange.Candle{Timestamp: candles[i].Timestamp, Open: 106, High: 107, Low: 105, Close: 106, Volume: 1000}
	}

	res := a.Analyze(candles)

	var bullish []FairValueGap
	for _, g := range res.FairValueGaps {
		if g.Kind == BullishGap {
			bullish = append(bullish, g)
		}
	}

	if len(bullish) != 1 {
		t.Fatalf("expected exactly 1 bullish FVG, got %d", len(bullish))
	}
	if bullish[0].Low != 104 || bullish[0].High != 105 {
		t.Errorf("expected gap range [104, 105], got [%f, %f]", bullish[0].Low, bullish[0].High)
	}
}

func TestDetectBearishOrderBlock(t *testing.T) {
	a := NewAnalyzer()

	candles := flatCandles(60)
	// Strong bearish candle at 30: body 4.5 of range 6
	candles[30] = exchange.Candle{Timestamp: candles[30].Timestamp, Open: 105, High: 106, Low: 100, Close: 100.5, Volume: 3000}
	// Forward candles break and close below the block low
	for i := 31; i <= 35; i++ {
		candles[i] = exchange.Candle{Timestamp: candles[i].Timestamp, Open: 99, High: 99.5, Low: 97, Close: 98, Volume: 1000}
	}

	res := a.Analyze(candles)

	var found *OrderBlock
	for i, b := range res.OrderBlocks {
		if b.Kind == BearishBlock && b.High == 106 {
			found = &res.OrderBlocks[i]
		}
	}

	if found == nil {
		t.Fatal("expected a bearish order block at the strong candle")
	}
	if found.Strength != 1.0 {
		t.Errorf("all forward closes respect the block, expected strength 1.0, got %f", found.Strength)
	}
}

func TestStrengthsAlwaysInRange(t *testing.T) {
	a := NewAnalyzer()

	// Spiky window: alternating wide and narrow candles with volume spikes
	candles := make([]exchange.Candle, 80)
	for i := range candles {
		base := 100 + float64(i%7)*3
		spread := 1.0 + float64(i%5)*4
		vol := 100 + float64(i%11)*5000
		candles[i] = exchange.Candle{
			Timestamp: int64(i+1) * 60_000,
			Open:      base, High: base + spread, Low: base - spread, Close: base + spread/2,
			Volume: vol,
		}
	}

	res := a.Analyze(candles)

	for _, z := range res.LiquidityZones {
		if z.Strength < 0 || z.Strength > 1 {
			t.Errorf("liquidity zone strength %f out of [0,1]", z.Strength)
		}
	}
	for _, b := range res.OrderBlocks {
		if b.Strength < 0 || b.Strength > 1 {
			t.Errorf("order block strength %f out of [0,1]", b.Strength)
		}
	}
	for _, g := range res.FairValueGaps {
		if g.Strength < 0 || g.Strength > 1 {
			t.Errorf("FVG strength %f out of [0,1]", g.Strength)
		}
	}
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	a := NewAnalyzer()

	candles := make([]exchange.Candle, 70)
	for i := range candles {
		base := 100 + 10*float64(i%13)/13
		candles[i] = exchange.Candle{
			Timestamp: int64(i+1) * 60_000,
			Open:      base, High: base + 2, Low: base - 2, Close: base + 1,
			Volume: 500 + float64(i%3)*700,
		}
	}

	first := a.Analyze(candles)
	second := a.Analyze(candles)

	if len(first.LiquidityZones) != len(second.LiquidityZones) ||
		len(first.OrderBlocks) != len(second.OrderBlocks) ||
		len(first.FairValueGaps) != len(second.FairValueGaps) {
		t.Fatal("repeated analysis of the same window produced different detections")
	}
	if first.Structure != second.Structure {
		t.Errorf("structure differs between calls: %+v vs %+v", first.Structure, second.Structure)
	}
}

// shortDataClient returns fewer candles than the scan minimum.
type shortDataClient struct{}

func (shortDataClient) GetTicker(ctx context.Context, exchangeName, symbol string) (*exchange.Ticker, error) {
	return &exchange.Ticker{Symbol: symbol, Last: 100}, nil
}

func (shortDataClient) CreateMarketOrder(ctx context.Context, exchangeName, symbol string, side exchange.OrderSide, qty float64) (*exchange.OrderResult, error) {
	return nil, errors.New("not supported")
}

func (shortDataClient) GetMarketData(ctx context.Context, exchangeName, symbol, timeframe string, limit int) ([]exchange.Candle, error) {
	return flatCandles(10), nil
}

func TestScanMarketInsufficientData(t *testing.T) {
	a := NewAnalyzer()

	_, _, err := a.ScanMarket(context.Background(), shortDataClient{}, "binance", "BTCUSDT", "1h")

	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func BenchmarkAnalyze(b *testing.B) {
	a := NewAnalyzer()
	candles := make([]exchange.Candle, 1000)
	for i := range candles {
		base := 100 + float64(i%17)
		candles[i] = exchange.Candle{
			Timestamp: int64(i+1) * 60_000,
			Open:      base, High: base + 2, Low: base - 2, Close: base + 1,
			Volume: 1000,
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		a.Analyze(candles)
	}
}
