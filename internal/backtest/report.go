package backtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateFullReport renders the aggregated result (plus Calmar/Omega
// ratios from the statistical worker when reachable) into a markdown
// artifact and returns its path. Worker failures degrade the ratios to
// zero; they never abort report generation.
func (b *Backtester) GenerateFullReport(ctx context.Context, strategyName string, result *AggregatedResult, initialBalance float64) (string, error) {
	if result == nil {
		return "", fmt.Errorf("nil backtest result")
	}

	windowReturns := make([]float64, len(result.Windows))
	for i, w := range result.Windows {
		windowReturns[i] = w.TotalReturn
	}

	var calmar, omega float64
	if b.worker != nil && len(windowReturns) > 0 {
		var err error
		if calmar, err = b.worker.CalculateCalmar(ctx, windowReturns); err != nil {
			b.logger.Warn().Err(err).Msg("Calmar calculation failed, defaulting to 0")
			calmar = 0
		}
		if omega, err = b.worker.CalculateOmega(ctx, windowReturns); err != nil {
			b.logger.Warn().Err(err).Msg("Omega calculation failed, defaulting to 0")
			omega = 0
		}
	}

	if b.store != nil {
		if id, err := b.store.SaveBacktestResult(ctx, strategyName, result); err != nil {
			b.logger.Warn().Err(err).Msg("Failed to persist backtest result")
		} else {
			b.logger.Info().Int64("result_id", id).Msg("Backtest result persisted")
		}
	}

	if err := os.MkdirAll(b.reportDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	path := filepath.Join(b.reportDir, fmt.Sprintf("%s-%s.md", sanitizeName(strategyName), uuid.NewString()))

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Backtest Report: %s\n\n", strategyName)
	fmt.Fprintf(&sb, "Generated: %s\n\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "## Summary\n\n")
	fmt.Fprintf(&sb, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Initial balance | %.2f |\n", initialBalance)
	fmt.Fprintf(&sb, "| Windows | %d |\n", len(result.Windows))
	fmt.Fprintf(&sb, "| Total trades | %d |\n", result.TotalTrades)
	fmt.Fprintf(&sb, "| Avg win rate | %.2f%% |\n", result.AvgWinRate*100)
	fmt.Fprintf(&sb, "| Avg return per window | %.2f%% |\n", result.AvgTotalReturn*100)
	fmt.Fprintf(&sb, "| Avg Sharpe | %.3f |\n", result.AvgSharpe)
	fmt.Fprintf(&sb, "| Avg profit factor | %.3f |\n", result.AvgProfitFactor)
	fmt.Fprintf(&sb, "| Worst drawdown | %.2f%% |\n", result.WorstDrawdown*100)
	fmt.Fprintf(&sb, "| Stability score | %.4f |\n", result.StabilityScore)
	fmt.Fprintf(&sb, "| Calmar ratio | %.3f |\n", calmar)
	fmt.Fprintf(&sb, "| Omega ratio | %.3f |\n", omega)

	if mc := result.MonteCarlo; mc != nil {
		fmt.Fprintf(&sb, "\n## Monte Carlo (%d iterations)\n\n", mc.Iterations)
		fmt.Fprintf(&sb, "| Metric | Value |\n|---|---|\n")
		fmt.Fprintf(&sb, "| P95 drawdown | %.2f%% |\n", mc.P95Drawdown*100)
		fmt.Fprintf(&sb, "| P5 return | %.2f%% |\n", mc.P5Return*100)
		fmt.Fprintf(&sb, "| Ruin probability | %.2f%% |\n", mc.RuinProbability*100)
	}

	fmt.Fprintf(&sb, "\n## Windows\n\n")
	fmt.Fprintf(&sb, "| # | Trades | Win rate | Return | Drawdown | Sharpe |\n|---|---|---|---|---|---|\n")
	for i, w := range result.Windows {
		fmt.Fprintf(&sb, "| %d | %d | %.2f%% | %.2f%% | %.2f%% | %.3f |\n",
			i+1, w.TotalTrades, w.WinRate*100, w.TotalReturn*100, w.MaxDrawdown*100, w.Sharpe)
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	b.logger.Info().Str("path", path).Msg("Backtest report generated")
	return path, nil
}

func sanitizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "-")
	var sb strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return "strategy"
	}
	return sb.String()
}
