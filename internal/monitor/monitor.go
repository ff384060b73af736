// Package monitor tracks live strategy health: a cheap in-process
// volatility check on every price update, and throttled drift/regime
// checks delegated to the statistical worker.
package monitor

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"crypto-agent-core/internal/events"
	"crypto-agent-core/internal/notification"
	"crypto-agent-core/internal/statworker"
)

// StatClient is the slice of the worker bridge the monitor needs.
type StatClient interface {
	DetectDrift(ctx context.Context, recent, baseline []float64, thresholdStdDevs float64) (*statworker.DriftResult, error)
	DetectMarketRegime(ctx context.Context, closes []float64) (*statworker.RegimeResult, error)
}

// Config holds strategy monitor configuration
type Config struct {
	Symbol            string        `json:"symbol"`
	MaxBufferSize     int           `json:"max_buffer_size"`
	SlowCheckInterval time.Duration `json:"slow_check_interval"`
	DriftThreshold    float64       `json:"drift_threshold"` // standard deviations
}

// Fast-path and slow-path thresholds.
const (
	fastWindowSize         = 20
	volatilityAlertRatio   = 0.005
	slowWindowSize         = 50
	minReturnsForDrift     = 10
	minPricesForRegime     = 20
	baselineHistoryNeeded  = 100
	extremeVolatilityScore = 0.8
)

// Monitor holds bounded FIFO price and return buffers. The fast path is
// synchronous; slow-path worker calls run fire-and-forget and never
// propagate failures to the caller of UpdateMetrics.
type Monitor struct {
	config   Config
	bus      *events.Bus
	worker   StatClient
	notifier *notification.Manager
	logger   zerolog.Logger

	mu            sync.Mutex
	prices        []float64
	returns       []float64
	baseline      []float64 // first observed returns, frozen once captured
	totalReturns  int
	lastSlowCheck time.Time
}

// NewMonitor creates a strategy monitor. worker and notifier may be nil;
// without a worker the slow path is skipped entirely.
func NewMonitor(config Config, bus *events.Bus, worker StatClient, notifier *notification.Manager, logger zerolog.Logger) *Monitor {
	if config.MaxBufferSize <= 0 {
		config.MaxBufferSize = 500
	}
	if config.SlowCheckInterval <= 0 {
		config.SlowCheckInterval = 5 * time.Minute
	}
	if config.DriftThreshold <= 0 {
		config.DriftThreshold = 2.0
	}
	return &Monitor{
		config:   config,
		bus:      bus,
		worker:   worker,
		notifier: notifier,
		logger:   logger.With().Str("component", "monitor").Logger(),
	}
}

// UpdateMetrics appends a price observation (and optionally a realized
// return) to the buffers, runs the fast volatility check, and kicks off
// the throttled slow-path checks.
func (m *Monitor) UpdateMetrics(price float64, returnValue *float64) {
	m.mu.Lock()

	m.prices = append(m.prices, price)
	if len(m.prices) > m.config.MaxBufferSize {
		m.prices = m.prices[1:]
	}
	if returnValue != nil {
		m.returns = append(m.returns, *returnValue)
		if len(m.returns) > m.config.MaxBufferSize {
			m.returns = m.returns[1:]
		}
		m.totalReturns++
		if len(m.baseline) < slowWindowSize {
			m.baseline = append(m.baseline, *returnValue)
		}
	}

	volatility, alert := m.fastVolatility()

	slowDue := m.worker != nil && time.Since(m.lastSlowCheck) >= m.config.SlowCheckInterval
	var recentReturns, baseline, closes []float64
	if slowDue {
		m.lastSlowCheck = time.Now()
		if len(m.returns) >= minReturnsForDrift {
			recentReturns = tail(m.returns, slowWindowSize)
			baseline = m.driftBaseline()
		}
		if len(m.prices) >= minPricesForRegime {
			closes = tail(m.prices, slowWindowSize)
		}
	}
	m.mu.Unlock()

	if alert {
		m.logger.Debug().Float64("volatility", volatility).Msg("Volatility threshold exceeded")
		m.bus.PublishVolatility(m.config.Symbol, volatility)
	}

	if slowDue && (recentReturns != nil || closes != nil) {
		go m.runSlowChecks(recentReturns, baseline, closes)
	}
}

// fastVolatility computes stdev/mean over the last 20 prices. Caller
// holds the lock.
func (m *Monitor) fastVolatility() (float64, bool) {
	if len(m.prices) < fastWindowSize {
		return 0, false
	}
	window := m.prices[len(m.prices)-fastWindowSize:]

	var sum float64
	for _, p := range window {
		sum += p
	}
	mean := sum / float64(len(window))
	if mean == 0 {
		return 0, false
	}

	var variance float64
	for _, p := range window {
		d := p - mean
		variance += d * d
	}
	variance /= float64(len(window))

	ratio := math.Sqrt(variance) / mean
	return ratio, ratio > volatilityAlertRatio
}

// driftBaseline returns the frozen first-observed returns once enough
// history exists, otherwise a synthetic near-zero distribution. Caller
// holds the lock.
func (m *Monitor) driftBaseline() []float64 {
	if m.totalReturns > baselineHistoryNeeded && len(m.baseline) >= slowWindowSize {
		out := make([]float64, len(m.baseline))
		copy(out, m.baseline)
		return out
	}
	synthetic := make([]float64, slowWindowSize)
	for i := range synthetic {
		if i%2 == 0 {
			synthetic[i] = 0.001
		} else {
			synthetic[i] = -0.001
		}
	}
	return synthetic
}

// runSlowChecks performs the delegated drift and regime checks. The two
// calls are independent; each failure is logged and swallowed.
func (m *Monitor) runSlowChecks(recentReturns, baseline, closes []float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if recentReturns != nil {
		m.checkDrift(ctx, recentReturns, baseline)
	}
	if closes != nil {
		m.checkRegime(ctx, closes)
	}
}

func (m *Monitor) checkDrift(ctx context.Context, recent, baseline []float64) {
	result, err := m.worker.DetectDrift(ctx, recent, baseline, m.config.DriftThreshold)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Drift check failed")
		return
	}
	if !result.Detected {
		return
	}

	severity := "moderate"
	if math.Abs(result.ZScore) > m.config.DriftThreshold*1.5 {
		severity = "severe"
	}
	m.logger.Warn().
		Float64("z_score", result.ZScore).
		Str("severity", severity).
		Msg("Strategy drift detected")
	m.bus.PublishDrift(m.config.Symbol, result.ZScore, severity)
	m.notifier.SendDriftAlert(m.config.Symbol, result.ZScore, severity)
}

func (m *Monitor) checkRegime(ctx context.Context, closes []float64) {
	result, err := m.worker.DetectMarketRegime(ctx, closes)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Regime check failed")
		return
	}

	m.bus.PublishRegime(m.config.Symbol, result.Regime, result.VolatilityScore, result.TrendStrength)
	if result.VolatilityScore > extremeVolatilityScore {
		m.logger.Warn().
			Str("regime", result.Regime).
			Float64("volatility_score", result.VolatilityScore).
			Msg("Extreme volatility regime")
		m.notifier.SendRegimeWarning(m.config.Symbol, result.Regime, result.VolatilityScore)
	}
}

// BufferSizes reports the current price and return buffer lengths.
func (m *Monitor) BufferSizes() (prices, returns int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prices), len(m.returns)
}

func tail(s []float64, n int) []float64 {
	if len(s) > n {
		s = s[len(s)-n:]
	}
	out := make([]float64, len(s))
	copy(out, s)
	return out
}
