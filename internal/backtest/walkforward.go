package backtest

import (
	"fmt"
	"math"

	"crypto-agent-core/internal/exchange"
)

// WalkForwardAnalysis partitions the candle series into contiguous,
// equal-size windows, splits each by inSampleRatio, and simulates the
// strategy on the out-of-sample slice only. The in-sample slice is
// reserved for parameter search performed elsewhere.
func (b *Backtester) WalkForwardAnalysis(candles []exchange.Candle, config StrategyConfig, windows int, inSampleRatio float64) (*AggregatedResult, error) {
	if windows <= 0 {
		return nil, fmt.Errorf("window count must be positive, got %d", windows)
	}
	if inSampleRatio < 0 || inSampleRatio >= 1 {
		return nil, fmt.Errorf("in-sample ratio must be in [0,1), got %f", inSampleRatio)
	}
	windowSize := len(candles) / windows
	if windowSize == 0 {
		return nil, fmt.Errorf("insufficient candles: %d candles for %d windows", len(candles), windows)
	}

	agg := &AggregatedResult{}
	for w := 0; w < windows; w++ {
		block := candles[w*windowSize : (w+1)*windowSize]
		split := int(float64(len(block)) * inSampleRatio)
		outOfSample := block[split:]

		result, trades := b.RunWindow(outOfSample, config)
		agg.Windows = append(agg.Windows, *result)

		b.logger.Debug().
			Int("window", w).
			Int("trades", len(trades)).
			Float64("total_return", result.TotalReturn).
			Msg("Walk-forward window completed")
	}

	b.aggregate(agg)
	return agg, nil
}

// aggregate folds per-window results: sums of counts, means of rates,
// and a stability score that punishes return variance across windows.
func (b *Backtester) aggregate(agg *AggregatedResult) {
	if len(agg.Windows) == 0 {
		agg.StabilityScore = 1
		return
	}

	totalReturns := make([]float64, 0, len(agg.Windows))
	var winRate, totalReturn, sharpe, profitFactor float64
	finitePF := 0
	for _, w := range agg.Windows {
		agg.TotalTrades += w.TotalTrades
		winRate += w.WinRate
		totalReturn += w.TotalReturn
		sharpe += w.Sharpe
		if !math.IsInf(w.ProfitFactor, 1) {
			profitFactor += w.ProfitFactor
			finitePF++
		}
		if w.MaxDrawdown > agg.WorstDrawdown {
			agg.WorstDrawdown = w.MaxDrawdown
		}
		totalReturns = append(totalReturns, w.TotalReturn)
	}

	n := float64(len(agg.Windows))
	agg.AvgWinRate = winRate / n
	agg.AvgTotalReturn = totalReturn / n
	agg.AvgSharpe = sharpe / n
	if finitePF > 0 {
		agg.AvgProfitFactor = profitFactor / float64(finitePF)
	}
	agg.StabilityScore = 1 / (1 + variance(totalReturns))
}
