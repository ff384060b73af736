package analysis

import (
	"context"
	"errors"
	"fmt"

	"crypto-agent-core/internal/exchange"
)

// MinCandles is the window size below which Analyze degrades to an empty
// result and ScanMarket fails hard.
const MinCandles = 50

// ErrInsufficientData is returned by market-scan entry points when fewer
// than MinCandles candles are available.
var ErrInsufficientData = errors.New("insufficient candle data for market scan")

const (
	swingGuard       = 2   // candles excluded at each window edge
	blockForwardLook = 5   // candles checked for a structure break / respect
	blockBodyRatio   = 0.6 // minimum body as fraction of total range
)

// Analyzer detects liquidity zones, order blocks, fair value gaps and
// market structure in candlestick data. It is stateless: every call
// recomputes from the full window.
type Analyzer struct{}

// NewAnalyzer creates a new structural analyzer
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze runs all structural detections over a candle window. Windows
// shorter than MinCandles yield an empty result, not an error.
func (a *Analyzer) Analyze(candles []exchange.Candle) *Result {
	res := &Result{Structure: MarketStructure{Trend: TrendNeutral}}
	if len(candles) < MinCandles {
		return res
	}

	res.LiquidityZones = a.detectLiquidityZones(candles)
	res.OrderBlocks = a.detectOrderBlocks(candles)
	res.FairValueGaps = a.detectFairValueGaps(candles)
	res.Structure = a.analyzeStructure(candles)
	return res
}

// ScanMarket fetches a candle window and ticker through the exchange
// collaborator and analyzes it. Unlike Analyze, a short window here is a
// hard failure.
func (a *Analyzer) ScanMarket(ctx context.Context, client exchange.Client, exchangeName, symbol, timeframe string) (*Result, float64, error) {
	candles, err := client.GetMarketData(ctx, exchangeName, symbol, timeframe, 100)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch market data for %s: %w", symbol, err)
	}

	candles = exchange.Normalize(candles)
	if len(candles) < MinCandles {
		return nil, 0, fmt.Errorf("%w: got %d candles for %s, need %d", ErrInsufficientData, len(candles), symbol, MinCandles)
	}

	ticker, err := client.GetTicker(ctx, exchangeName, symbol)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch ticker for %s: %w", symbol, err)
	}

	return a.Analyze(candles), ticker.Last, nil
}

// detectLiquidityZones flags swing extremes as liquidity pools. A swing
// high requires the candle's high to strictly exceed both highs on each
// side; swing lows are the mirror on lows.
func (a *Analyzer) detectLiquidityZones(candles []exchange.Candle) []LiquidityZone {
	avgVolume, avgRange := windowAverages(candles)

	var zones []LiquidityZone
	for i := swingGuard; i < len(candles)-swingGuard; i++ {
		c := candles[i]

		if c.High > candles[i-1].High && c.High > candles[i-2].High &&
			c.High > candles[i+1].High && c.High > candles[i+2].High {
			zones = append(zones, LiquidityZone{
				Kind:      SellSideLiquidity,
				Price:     c.High,
				Strength:  swingStrength(c, avgVolume, avgRange),
				Timestamp: c.Timestamp,
				Volume:    c.Volume,
			})
		}

		if c.Low < candles[i-1].Low && c.Low < candles[i-2].Low &&
			c.Low < candles[i+1].Low && c.Low < candles[i+2].Low {
			zones = append(zones, LiquidityZone{
				Kind:      BuySideLiquidity,
				Price:     c.Low,
				Strength:  swingStrength(c, avgVolume, avgRange),
				Timestamp: c.Timestamp,
				Volume:    c.Volume,
			})
		}
	}
	return zones
}

// detectOrderBlocks classifies strong directional candles confirmed by a
// structure break in the forward-look window. Strength is the fraction of
// forward closes that stay on the block's expected side.
func (a *Analyzer) detectOrderBlocks(candles []exchange.Candle) []OrderBlock {
	var blocks []OrderBlock

	for i := blockForwardLook; i < len(candles)-blockForwardLook; i++ {
		c := candles[i]
		if c.Range() <= 0 || c.Body() < blockBodyRatio*c.Range() {
			continue
		}

		forward := candles[i+1 : i+1+blockForwardLook]

		if c.Close < c.Open {
			// Bearish block needs a subsequent low breaking the candle's low
			broke := false
			respected := 0
			for _, f := range forward {
				if f.Low < c.Low {
					broke = true
				}
				if f.Close < c.Low {
					respected++
				}
			}
			if broke {
				blocks = append(blocks, OrderBlock{
					Kind:      BearishBlock,
					Price:     c.Open,
					Low:       c.Low,
					High:      c.High,
					Strength:  float64(respected) / float64(len(forward)),
					Timestamp: c.Timestamp,
					Volume:    c.Volume,
				})
			}
		} else if c.Close > c.Open {
			broke := false
			respected := 0
			for _, f := range forward {
				if f.High > c.High {
					broke = true
				}
				if f.Close > c.High {
					respected++
				}
			}
			if broke {
				blocks = append(blocks, OrderBlock{
					Kind:      BullishBlock,
					Price:     c.Open,
					Low:       c.Low,
					High:      c.High,
					Strength:  float64(respected) / float64(len(forward)),
					Timestamp: c.Timestamp,
					Volume:    c.Volume,
				})
			}
		}
	}
	return blocks
}

// detectFairValueGaps scans consecutive triples for price imbalances.
func (a *Analyzer) detectFairValueGaps(candles []exchange.Candle) []FairValueGap {
	var gaps []FairValueGap

	for i := 1; i < len(candles)-1; i++ {
		prev, cur, next := candles[i-1], candles[i], candles[i+1]

		if cur.Low > prev.High && next.Low > cur.High {
			gaps = append(gaps, FairValueGap{
				Kind:      BullishGap,
				Price:     (cur.High + next.Low) / 2,
				Low:       cur.High,
				High:      next.Low,
				Strength:  gapStrength(next.Low-cur.High, cur, next),
				Timestamp: cur.Timestamp,
			})
		}

		if cur.High < prev.Low && next.High < cur.Low {
			gaps = append(gaps, FairValueGap{
				Kind:      BearishGap,
				Price:     (next.High + cur.Low) / 2,
				Low:       next.High,
				High:      cur.Low,
				Strength:  gapStrength(cur.Low-next.High, cur, next),
				Timestamp: cur.Timestamp,
			})
		}
	}
	return gaps
}

// analyzeStructure makes a single forward pass counting swing transitions
// between consecutive candles. The tally is cumulative over the whole
// window; trend is whichever side dominates, ties are neutral.
func (a *Analyzer) analyzeStructure(candles []exchange.Candle) MarketStructure {
	s := MarketStructure{
		Trend:     TrendNeutral,
		Timestamp: candles[len(candles)-1].Timestamp,
	}

	for i := 1; i < len(candles); i++ {
		if candles[i].High > candles[i-1].High {
			s.HigherHighs++
		} else if candles[i].High < candles[i-1].High {
			s.LowerHighs++
		}
		if candles[i].Low > candles[i-1].Low {
			s.HigherLows++
		} else if candles[i].Low < candles[i-1].Low {
			s.LowerLows++
		}
	}

	bullish := s.HigherHighs + s.HigherLows
	bearish := s.LowerHighs + s.LowerLows
	switch {
	case bullish > bearish:
		s.Trend = TrendBullish
	case bearish > bullish:
		s.Trend = TrendBearish
	}
	return s
}

func windowAverages(candles []exchange.Candle) (avgVolume, avgRange float64) {
	for _, c := range candles {
		avgVolume += c.Volume
		avgRange += c.Range()
	}
	n := float64(len(candles))
	return avgVolume / n, avgRange / n
}

// swingStrength scores a swing extreme by how much its volume and range
// stand out from the window averages, clamped to [0,1].
func swingStrength(c exchange.Candle, avgVolume, avgRange float64) float64 {
	var volRatio, rangeRatio float64
	if avgVolume > 0 {
		volRatio = c.Volume / avgVolume
	}
	if avgRange > 0 {
		rangeRatio = c.Range() / avgRange
	}
	return clamp01((volRatio + rangeRatio) / 2)
}

// gapStrength scores a gap by its width relative to the average range of
// the two candles bounding it, clamped to [0,1].
func gapStrength(width float64, a, b exchange.Candle) float64 {
	avg := (a.Range() + b.Range()) / 2
	if avg <= 0 {
		return 0
	}
	return clamp01(width / avg)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
