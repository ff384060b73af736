package statworker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(&Config{BaseURL: srv.URL})
	t.Cleanup(client.Close)
	return srv, client
}

func TestDetectDrift(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/task" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Task != TaskDetectDrift {
			t.Errorf("expected task %s, got %s", TaskDetectDrift, req.Task)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result": map[string]interface{}{
				"detected":      true,
				"z_score":       2.7,
				"current_mean":  -0.01,
				"baseline_mean": 0.002,
			},
		})
	})

	result, err := client.DetectDrift(context.Background(),
		[]float64{-0.01, -0.02}, []float64{0.001, 0.003}, 2.0)
	if err != nil {
		t.Fatalf("DetectDrift failed: %v", err)
	}
	if !result.Detected {
		t.Error("expected drift to be detected")
	}
	if result.ZScore != 2.7 {
		t.Errorf("expected z-score 2.7, got %f", result.ZScore)
	}
}

func TestDetectMarketRegime(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result": map[string]interface{}{
				"regime":           "high_volatility",
				"volatility_score": 0.91,
				"trend_strength":   0.2,
			},
		})
	})

	result, err := client.DetectMarketRegime(context.Background(), []float64{100, 110, 95, 120})
	if err != nil {
		t.Fatalf("DetectMarketRegime failed: %v", err)
	}
	if result.Regime != "high_volatility" {
		t.Errorf("unexpected regime %q", result.Regime)
	}
	if result.VolatilityScore != 0.91 {
		t.Errorf("unexpected volatility score %f", result.VolatilityScore)
	}
}

func TestRatioTasks(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req request
		json.NewDecoder(r.Body).Decode(&req)
		value := 1.5
		if req.Task == TaskOmega {
			value = 2.25
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result": map[string]interface{}{"value": value},
		})
	})

	calmar, err := client.CalculateCalmar(context.Background(), []float64{0.01, -0.005})
	if err != nil {
		t.Fatalf("CalculateCalmar failed: %v", err)
	}
	if calmar != 1.5 {
		t.Errorf("expected calmar 1.5, got %f", calmar)
	}

	omega, err := client.CalculateOmega(context.Background(), []float64{0.01, -0.005})
	if err != nil {
		t.Fatalf("CalculateOmega failed: %v", err)
	}
	if omega != 2.25 {
		t.Errorf("expected omega 2.25, got %f", omega)
	}
}

func TestCallWorkerError(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": "insufficient data",
		})
	})

	if _, err := client.DetectDrift(context.Background(), nil, nil, 2.0); err == nil {
		t.Fatal("expected error from worker-reported failure")
	}
}

func TestCallHTTPError(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "worker overloaded", http.StatusServiceUnavailable)
	})

	if _, err := client.DetectMarketRegime(context.Background(), []float64{1, 2}); err == nil {
		t.Fatal("expected error from non-2xx status")
	}
}

func TestCallMalformedResponse(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	if _, err := client.CalculateCalmar(context.Background(), []float64{0.1}); err == nil {
		t.Fatal("expected error from malformed response body")
	}
}
