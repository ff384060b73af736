package backtest

import (
	"fmt"
	"sort"
)

const (
	ruinThreshold   = 0.10 // fraction of initial balance
	maxStoredCurves = 100
)

// MonteCarloSimulation shuffles the realized per-trade returns and
// replays each permutation as a compounding equity curve, estimating
// drawdown and ruin statistics that the single historical ordering
// cannot show.
func (b *Backtester) MonteCarloSimulation(trades []Trade, initialBalance float64, iterations int) (*MonteCarloResult, error) {
	if len(trades) == 0 {
		return nil, fmt.Errorf("no trades to resample")
	}
	if initialBalance <= 0 {
		return nil, fmt.Errorf("initial balance must be positive, got %f", initialBalance)
	}
	if iterations <= 0 {
		return nil, fmt.Errorf("iteration count must be positive, got %d", iterations)
	}

	returns := make([]float64, len(trades))
	for i, t := range trades {
		returns[i] = (t.PnL - t.Fees) / initialBalance
	}

	drawdowns := make([]float64, 0, iterations)
	finalReturns := make([]float64, 0, iterations)
	curves := make([][]float64, 0, maxStoredCurves)
	ruinCount := 0

	shuffled := make([]float64, len(returns))
	for i := 0; i < iterations; i++ {
		copy(shuffled, returns)
		b.rng.Shuffle(len(shuffled), func(a, c int) {
			shuffled[a], shuffled[c] = shuffled[c], shuffled[a]
		})

		balance := initialBalance
		peak := initialBalance
		worstDD := 0.0
		curve := make([]float64, 0, len(shuffled)+1)
		curve = append(curve, balance)

		for _, r := range shuffled {
			balance *= 1 + r
			if balance > peak {
				peak = balance
			}
			if peak > 0 {
				if dd := (peak - balance) / peak; dd > worstDD {
					worstDD = dd
				}
			}
			curve = append(curve, balance)
		}

		drawdowns = append(drawdowns, worstDD)
		finalReturns = append(finalReturns, (balance-initialBalance)/initialBalance)
		if balance <= initialBalance*ruinThreshold {
			ruinCount++
		}
		if len(curves) < maxStoredCurves {
			curves = append(curves, curve)
		}
	}

	sort.Float64s(drawdowns)
	sort.Float64s(finalReturns)

	return &MonteCarloResult{
		Iterations:      iterations,
		P95Drawdown:     drawdowns[percentileIndex(iterations, 0.95)],
		P5Return:        finalReturns[percentileIndex(iterations, 0.05)],
		RuinProbability: float64(ruinCount) / float64(iterations),
		EquityCurves:    curves,
	}, nil
}

// percentileIndex is floor(n*p) clamped into [0, n-1]. Small iteration
// counts make the raw index collide with the array bound.
func percentileIndex(n int, p float64) int {
	idx := int(float64(n) * p)
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}
