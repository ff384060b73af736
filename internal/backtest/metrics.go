package backtest

import (
	"math"
	"time"
)

// windowMetrics fills the window result from closed trades.
func (b *Backtester) windowMetrics(result *WindowResult, trades []Trade, initialBalance, finalBalance float64) {
	result.FinalBalance = finalBalance
	result.TotalTrades = len(trades)
	result.TotalReturn = (finalBalance - initialBalance) / initialBalance
	if len(trades) == 0 {
		return
	}

	var grossWin, grossLoss float64
	returns := make([]float64, 0, len(trades))
	for _, t := range trades {
		net := t.PnL - t.Fees
		returns = append(returns, net/initialBalance)
		if net > 0 {
			result.WinningTrades++
			grossWin += net
		} else {
			result.LosingTrades++
			grossLoss += -net
		}
	}

	result.WinRate = float64(result.WinningTrades) / float64(result.TotalTrades)
	if grossLoss > 0 {
		result.ProfitFactor = grossWin / grossLoss
	} else if grossWin > 0 {
		result.ProfitFactor = math.Inf(1)
	}

	result.MaxDrawdown = maxDrawdown(returns, initialBalance)
	result.Sharpe = sharpeRatio(returns)
	result.Sortino = sortinoRatio(returns)
	result.CAGR = cagr(initialBalance, finalBalance, result.StartTime, result.EndTime)
	result.Expectancy = mean(returns)
}

// maxDrawdown replays trade returns as a compounding equity curve and
// tracks the largest peak-to-balance fall as a fraction of the peak.
func maxDrawdown(returns []float64, initialBalance float64) float64 {
	balance := initialBalance
	peak := initialBalance
	worst := 0.0
	for _, r := range returns {
		balance *= 1 + r
		if balance > peak {
			peak = balance
		}
		if peak > 0 {
			if dd := (peak - balance) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

func sharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	sd := stdev(returns)
	if sd == 0 {
		return 0
	}
	return mean(returns) / sd
}

func sortinoRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var downside float64
	n := 0
	for _, r := range returns {
		if r < 0 {
			downside += r * r
			n++
		}
	}
	if n == 0 {
		return 0
	}
	dd := math.Sqrt(downside / float64(len(returns)))
	if dd == 0 {
		return 0
	}
	return mean(returns) / dd
}

func cagr(initialBalance, finalBalance float64, start, end time.Time) float64 {
	if initialBalance <= 0 || finalBalance <= 0 {
		return 0
	}
	years := float64(end.Unix()-start.Unix()) / (365.25 * 24 * 3600)
	if years <= 0 {
		return 0
	}
	return math.Pow(finalBalance/initialBalance, 1/years) - 1
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(values))
}

func stdev(values []float64) float64 {
	return math.Sqrt(variance(values))
}
