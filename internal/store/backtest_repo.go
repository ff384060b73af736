package store

import (
	"context"
	"fmt"
	"time"

	"crypto-agent-core/internal/backtest"
)

// BacktestRepository persists aggregated backtest results.
type BacktestRepository struct {
	db *DB
}

// NewBacktestRepository creates a backtest repository
func NewBacktestRepository(db *DB) *BacktestRepository {
	return &BacktestRepository{db: db}
}

var _ backtest.ResultStore = (*BacktestRepository)(nil)

// SaveBacktestResult inserts one aggregated walk-forward result and
// returns its row id.
func (r *BacktestRepository) SaveBacktestResult(ctx context.Context, strategyName string, result *backtest.AggregatedResult) (int64, error) {
	if result == nil {
		return 0, fmt.Errorf("cannot save nil backtest result")
	}

	var p95Drawdown, p5Return, ruinProbability *float64
	if mc := result.MonteCarlo; mc != nil {
		p95Drawdown = &mc.P95Drawdown
		p5Return = &mc.P5Return
		ruinProbability = &mc.RuinProbability
	}

	query := `
		INSERT INTO backtest_results (
			strategy_name, windows, total_trades,
			avg_win_rate, avg_total_return, avg_sharpe, avg_profit_factor,
			worst_drawdown, stability_score,
			p95_drawdown, p5_return, ruin_probability
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`

	var id int64
	err := r.db.Pool.QueryRow(ctx, query,
		strategyName, len(result.Windows), result.TotalTrades,
		result.AvgWinRate, result.AvgTotalReturn, result.AvgSharpe, result.AvgProfitFactor,
		result.WorstDrawdown, result.StabilityScore,
		p95Drawdown, p5Return, ruinProbability,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert backtest result: %w", err)
	}
	return id, nil
}

// StoredResult is a persisted backtest summary row.
type StoredResult struct {
	ID             int64     `json:"id"`
	StrategyName   string    `json:"strategy_name"`
	Windows        int       `json:"windows"`
	TotalTrades    int       `json:"total_trades"`
	AvgWinRate     float64   `json:"avg_win_rate"`
	AvgTotalReturn float64   `json:"avg_total_return"`
	StabilityScore float64   `json:"stability_score"`
	CreatedAt      time.Time `json:"created_at"`
}

// ListRecentResults returns the latest results for a strategy, newest first.
func (r *BacktestRepository) ListRecentResults(ctx context.Context, strategyName string, limit int) ([]StoredResult, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, strategy_name, windows, total_trades,
			avg_win_rate, avg_total_return, stability_score, created_at
		FROM backtest_results
		WHERE strategy_name = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, strategyName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest results: %w", err)
	}
	defer rows.Close()

	var results []StoredResult
	for rows.Next() {
		var s StoredResult
		if err := rows.Scan(&s.ID, &s.StrategyName, &s.Windows, &s.TotalTrades,
			&s.AvgWinRate, &s.AvgTotalReturn, &s.StabilityScore, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan backtest result: %w", err)
		}
		results = append(results, s)
	}
	return results, rows.Err()
}
