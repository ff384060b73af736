// Package backtest validates the structural strategy against historical
// candles: a single-pass simulation engine, walk-forward windowing, and
// Monte Carlo resampling of realized trade returns.
package backtest

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"crypto-agent-core/internal/analysis"
	"crypto-agent-core/internal/signal"
)

// StrategyConfig holds the simulated strategy parameters
type StrategyConfig struct {
	Symbol           string  `json:"symbol"`
	InitialBalance   float64 `json:"initial_balance"`
	PositionFraction float64 `json:"position_fraction"` // fraction of balance per trade
	FeeRate          float64 `json:"fee_rate"`          // per side
	AnalysisWindow   int     `json:"analysis_window"`
}

func (c *StrategyConfig) applyDefaults() {
	if c.InitialBalance <= 0 {
		c.InitialBalance = 10000
	}
	if c.PositionFraction <= 0 || c.PositionFraction > 1 {
		c.PositionFraction = 0.95
	}
	if c.FeeRate < 0 {
		c.FeeRate = 0
	}
	if c.AnalysisWindow < analysis.MinCandles {
		c.AnalysisWindow = 100
	}
}

// Trade is one simulated round trip.
type Trade struct {
	EntryTime  time.Time   `json:"entry_time"`
	ExitTime   time.Time   `json:"exit_time"`
	EntryPrice float64     `json:"entry_price"`
	ExitPrice  float64     `json:"exit_price"`
	Side       signal.Kind `json:"side"`
	Quantity   float64     `json:"quantity"`
	PnL        float64     `json:"pnl"`
	Fees       float64     `json:"fees"`
	Reason     string      `json:"reason"`
	ExitReason string      `json:"exit_reason"`
}

// WindowResult holds the metrics of one simulated window.
type WindowResult struct {
	TotalTrades   int       `json:"total_trades"`
	WinningTrades int       `json:"winning_trades"`
	LosingTrades  int       `json:"losing_trades"`
	WinRate       float64   `json:"win_rate"`
	TotalReturn   float64   `json:"total_return"` // fraction of initial balance
	ProfitFactor  float64   `json:"profit_factor"`
	MaxDrawdown   float64   `json:"max_drawdown"` // fraction of peak
	Sharpe        float64   `json:"sharpe"`
	Sortino       float64   `json:"sortino"`
	CAGR          float64   `json:"cagr"`
	Expectancy    float64   `json:"expectancy"`
	FinalBalance  float64   `json:"final_balance"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}

// AggregatedResult folds the per-window results of a walk-forward run.
type AggregatedResult struct {
	Windows         []WindowResult    `json:"windows"`
	TotalTrades     int               `json:"total_trades"`
	AvgWinRate      float64           `json:"avg_win_rate"`
	AvgTotalReturn  float64           `json:"avg_total_return"`
	AvgSharpe       float64           `json:"avg_sharpe"`
	AvgProfitFactor float64           `json:"avg_profit_factor"`
	WorstDrawdown   float64           `json:"worst_drawdown"`
	StabilityScore  float64           `json:"stability_score"` // in (0,1], higher is better
	MonteCarlo      *MonteCarloResult `json:"monte_carlo,omitempty"`
}

// MonteCarloResult summarizes the resampled equity outcomes.
type MonteCarloResult struct {
	Iterations      int         `json:"iterations"`
	P95Drawdown     float64     `json:"p95_drawdown"`
	P5Return        float64     `json:"p5_return"`
	RuinProbability float64     `json:"ruin_probability"`
	EquityCurves    [][]float64 `json:"equity_curves,omitempty"`
}

// RatioClient computes the ratios this package does not compute itself.
type RatioClient interface {
	CalculateCalmar(ctx context.Context, returns []float64) (float64, error)
	CalculateOmega(ctx context.Context, returns []float64) (float64, error)
}

// ResultStore persists aggregated results. Optional.
type ResultStore interface {
	SaveBacktestResult(ctx context.Context, strategyName string, result *AggregatedResult) (int64, error)
}

// Backtester orchestrates simulation, walk-forward analysis and Monte
// Carlo resampling. The random source is injected so tests can pin the
// shuffle order; a nil source falls back to time seeding.
type Backtester struct {
	analyzer  *analysis.Analyzer
	generator *signal.Generator
	worker    RatioClient
	store     ResultStore
	rng       *rand.Rand
	reportDir string
	logger    zerolog.Logger
}

// NewBacktester creates a backtester. worker and store may be nil.
func NewBacktester(worker RatioClient, store ResultStore, rng *rand.Rand, reportDir string, logger zerolog.Logger) *Backtester {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if reportDir == "" {
		reportDir = "reports"
	}
	return &Backtester{
		analyzer:  analysis.NewAnalyzer(),
		generator: signal.NewGenerator(),
		worker:    worker,
		store:     store,
		rng:       rng,
		reportDir: reportDir,
		logger:    logger.With().Str("component", "backtest").Logger(),
	}
}
