// Package statworker bridges the decision core to the out-of-process
// statistical worker. Every call is fallible and optional: callers fall
// back to their own in-process math when the worker is unavailable.
package statworker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Task names accepted by the worker.
const (
	TaskDetectDrift  = "detect_drift"
	TaskDetectRegime = "detect_market_regime"
	TaskCalmar       = "calculate_calmar"
	TaskOmega        = "calculate_omega"
	TaskMonteCarlo   = "monte_carlo"
)

// Config holds worker bridge configuration
type Config struct {
	BaseURL string        `json:"base_url"`
	Timeout time.Duration `json:"timeout"`
}

// Client is the request/response bridge to the statistical worker. It is
// injected where needed and closed by the owning process; never a
// package-level singleton.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a worker bridge client.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Close releases idle connections held by the bridge.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

type request struct {
	Task    string      `json:"task"`
	Payload interface{} `json:"payload"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}

// Call posts a task with its payload and decodes the result into out.
func (c *Client) Call(ctx context.Context, task string, payload, out interface{}) error {
	body, err := json.Marshal(request{Task: task, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", task, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/task", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", task, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("worker call %s failed: %w", task, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", task, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("worker call %s returned status %d: %s", task, resp.StatusCode, string(data))
	}

	var r response
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", task, err)
	}
	if r.Error != "" {
		return fmt.Errorf("worker task %s failed: %s", task, r.Error)
	}
	if out != nil {
		if err := json.Unmarshal(r.Result, out); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", task, err)
		}
	}
	return nil
}

// DriftResult is the worker's drift-detection output.
type DriftResult struct {
	Detected     bool    `json:"detected"`
	ZScore       float64 `json:"z_score"`
	CurrentMean  float64 `json:"current_mean"`
	BaselineMean float64 `json:"baseline_mean"`
}

// DetectDrift compares recent returns against a baseline distribution.
func (c *Client) DetectDrift(ctx context.Context, recent, baseline []float64, thresholdStdDevs float64) (*DriftResult, error) {
	var result DriftResult
	err := c.Call(ctx, TaskDetectDrift, map[string]interface{}{
		"recent":    recent,
		"baseline":  baseline,
		"threshold": thresholdStdDevs,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// RegimeResult is the worker's regime classification output.
type RegimeResult struct {
	Regime          string  `json:"regime"`
	VolatilityScore float64 `json:"volatility_score"`
	TrendStrength   float64 `json:"trend_strength"`
}

// DetectMarketRegime classifies the prevailing volatility/trend state.
func (c *Client) DetectMarketRegime(ctx context.Context, closes []float64) (*RegimeResult, error) {
	var result RegimeResult
	err := c.Call(ctx, TaskDetectRegime, map[string]interface{}{
		"closes": closes,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

type ratioResult struct {
	Value float64 `json:"value"`
}

// CalculateCalmar computes the Calmar ratio for a return series.
func (c *Client) CalculateCalmar(ctx context.Context, returns []float64) (float64, error) {
	var result ratioResult
	if err := c.Call(ctx, TaskCalmar, map[string]interface{}{"returns": returns}, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

// CalculateOmega computes the Omega ratio for a return series.
func (c *Client) CalculateOmega(ctx context.Context, returns []float64) (float64, error) {
	var result ratioResult
	if err := c.Call(ctx, TaskOmega, map[string]interface{}{"returns": returns}, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

// MonteCarloPaths asks the worker to simulate price paths from a return
// series. The core's own Monte Carlo does not depend on this.
func (c *Client) MonteCarloPaths(ctx context.Context, returns []float64, startPrice float64, paths, steps int) ([][]float64, error) {
	var result struct {
		Paths [][]float64 `json:"paths"`
	}
	err := c.Call(ctx, TaskMonteCarlo, map[string]interface{}{
		"returns":     returns,
		"start_price": startPrice,
		"paths":       paths,
		"steps":       steps,
	}, &result)
	if err != nil {
		return nil, err
	}
	return result.Paths, nil
}
