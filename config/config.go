// Package config loads application configuration from a JSON file with
// environment-variable overrides. A .env file is honored when present.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	LoggingConfig      LoggingConfig      `json:"logging"`
	ExchangeConfig     ExchangeConfig     `json:"exchange"`
	AnalysisConfig     AnalysisConfig     `json:"analysis"`
	HedgingConfig      HedgingConfig      `json:"hedging"`
	MonitorConfig      MonitorConfig      `json:"monitor"`
	BacktestConfig     BacktestConfig     `json:"backtest"`
	NotificationConfig NotificationConfig `json:"notification"`
	StatWorkerConfig   StatWorkerConfig   `json:"stat_worker"`
	RedisConfig        RedisConfig        `json:"redis"`
	DatabaseConfig     DatabaseConfig     `json:"database"`
}

type LoggingConfig struct {
	Level      string `json:"level"`       // DEBUG, INFO, WARN, ERROR
	Output     string `json:"output"`      // stdout, stderr, or file path
	JSONFormat bool   `json:"json_format"` // Output as JSON
}

type ExchangeConfig struct {
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	MockMode  bool   `json:"mock_mode"` // Use simulated data
}

type AnalysisConfig struct {
	ScanIntervalSeconds int `json:"scan_interval_seconds"`
}

type HedgingConfig struct {
	Enabled          bool    `json:"enabled"`
	HedgeExchange    string  `json:"hedge_exchange"`
	HedgeSymbol      string  `json:"hedge_symbol"`
	TargetDelta      float64 `json:"target_delta"`
	MaxDeltaExposure float64 `json:"max_delta_exposure"`
	CheckIntervalMs  int     `json:"check_interval_ms"`
}

type MonitorConfig struct {
	MaxBufferSize            int     `json:"max_buffer_size"`
	SlowCheckIntervalSeconds int     `json:"slow_check_interval_seconds"`
	DriftThreshold           float64 `json:"drift_threshold"`
}

type BacktestConfig struct {
	InitialBalance       float64 `json:"initial_balance"`
	PositionFraction     float64 `json:"position_fraction"`
	FeeRate              float64 `json:"fee_rate"`
	AnalysisWindow       int     `json:"analysis_window"`
	Windows              int     `json:"windows"`
	InSampleRatio        float64 `json:"in_sample_ratio"`
	MonteCarloIterations int     `json:"monte_carlo_iterations"`
	ReportDir            string  `json:"report_dir"`
}

type NotificationConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

type StatWorkerConfig struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// DefaultConfig returns a config suitable for simulated local runs.
func DefaultConfig() *Config {
	return &Config{
		LoggingConfig: LoggingConfig{
			Level:  "INFO",
			Output: "stdout",
		},
		ExchangeConfig: ExchangeConfig{
			Name:      "sim",
			Symbol:    "BTCUSDT",
			Timeframe: "15m",
			MockMode:  true,
		},
		AnalysisConfig: AnalysisConfig{
			ScanIntervalSeconds: 60,
		},
		HedgingConfig: HedgingConfig{
			Enabled:          true,
			HedgeExchange:    "sim",
			HedgeSymbol:      "BTCUSDT",
			TargetDelta:      0,
			MaxDeltaExposure: 1000,
			CheckIntervalMs:  60000,
		},
		MonitorConfig: MonitorConfig{
			MaxBufferSize:            500,
			SlowCheckIntervalSeconds: 300,
			DriftThreshold:           2.0,
		},
		BacktestConfig: BacktestConfig{
			InitialBalance:       10000,
			PositionFraction:     0.95,
			FeeRate:              0.001,
			AnalysisWindow:       100,
			Windows:              4,
			InSampleRatio:        0.5,
			MonteCarloIterations: 1000,
			ReportDir:            "reports",
		},
		StatWorkerConfig: StatWorkerConfig{
			BaseURL:        "http://localhost:8700",
			TimeoutSeconds: 10,
		},
		RedisConfig: RedisConfig{
			Addr: "localhost:6379",
		},
		DatabaseConfig: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Database: "crypto_agent",
			SSLMode:  "disable",
		},
	}
}

// Load reads configuration from an optional JSON file, then applies
// environment overrides. Missing file falls back to defaults.
func Load(path string) (*Config, error) {
	// Best effort; a missing .env is not an error.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) applyEnvOverrides() {
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)
	cfg.LoggingConfig.JSONFormat = getEnvBool("LOG_JSON", cfg.LoggingConfig.JSONFormat)

	cfg.ExchangeConfig.Name = getEnvOrDefault("EXCHANGE_NAME", cfg.ExchangeConfig.Name)
	cfg.ExchangeConfig.Symbol = getEnvOrDefault("EXCHANGE_SYMBOL", cfg.ExchangeConfig.Symbol)
	cfg.ExchangeConfig.Timeframe = getEnvOrDefault("EXCHANGE_TIMEFRAME", cfg.ExchangeConfig.Timeframe)
	cfg.ExchangeConfig.MockMode = getEnvBool("EXCHANGE_MOCK_MODE", cfg.ExchangeConfig.MockMode)

	cfg.HedgingConfig.Enabled = getEnvBool("HEDGING_ENABLED", cfg.HedgingConfig.Enabled)
	cfg.HedgingConfig.HedgeSymbol = getEnvOrDefault("HEDGING_SYMBOL", cfg.HedgingConfig.HedgeSymbol)
	cfg.HedgingConfig.TargetDelta = getEnvFloat("HEDGING_TARGET_DELTA", cfg.HedgingConfig.TargetDelta)
	cfg.HedgingConfig.MaxDeltaExposure = getEnvFloat("HEDGING_MAX_DELTA_EXPOSURE", cfg.HedgingConfig.MaxDeltaExposure)
	cfg.HedgingConfig.CheckIntervalMs = getEnvInt("HEDGING_CHECK_INTERVAL_MS", cfg.HedgingConfig.CheckIntervalMs)

	cfg.NotificationConfig.Enabled = getEnvBool("NOTIFICATIONS_ENABLED", cfg.NotificationConfig.Enabled)
	cfg.NotificationConfig.WebhookURL = getEnvOrDefault("NOTIFICATION_WEBHOOK_URL", cfg.NotificationConfig.WebhookURL)

	cfg.StatWorkerConfig.BaseURL = getEnvOrDefault("STAT_WORKER_URL", cfg.StatWorkerConfig.BaseURL)

	cfg.RedisConfig.Enabled = getEnvBool("REDIS_ENABLED", cfg.RedisConfig.Enabled)
	cfg.RedisConfig.Addr = getEnvOrDefault("REDIS_ADDR", cfg.RedisConfig.Addr)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)

	cfg.DatabaseConfig.Enabled = getEnvBool("DATABASE_ENABLED", cfg.DatabaseConfig.Enabled)
	cfg.DatabaseConfig.Host = getEnvOrDefault("DATABASE_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvInt("DATABASE_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DATABASE_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DATABASE_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DATABASE_NAME", cfg.DatabaseConfig.Database)
}

// Validate rejects configurations the core cannot run with.
func (cfg *Config) Validate() error {
	if cfg.ExchangeConfig.Symbol == "" {
		return fmt.Errorf("exchange symbol must be set")
	}
	if cfg.HedgingConfig.Enabled {
		if cfg.HedgingConfig.MaxDeltaExposure <= 0 {
			return fmt.Errorf("max delta exposure must be positive, got %f", cfg.HedgingConfig.MaxDeltaExposure)
		}
		if cfg.HedgingConfig.CheckIntervalMs <= 0 {
			return fmt.Errorf("hedging check interval must be positive, got %d", cfg.HedgingConfig.CheckIntervalMs)
		}
		if cfg.HedgingConfig.HedgeSymbol == "" {
			return fmt.Errorf("hedge symbol must be set when hedging is enabled")
		}
	}
	if cfg.BacktestConfig.InSampleRatio < 0 || cfg.BacktestConfig.InSampleRatio >= 1 {
		return fmt.Errorf("in-sample ratio must be in [0,1), got %f", cfg.BacktestConfig.InSampleRatio)
	}
	return nil
}

// HedgeCheckInterval returns the hedging throttle as a duration.
func (cfg *Config) HedgeCheckInterval() time.Duration {
	return time.Duration(cfg.HedgingConfig.CheckIntervalMs) * time.Millisecond
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value == "true" || value == "1"
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return fallback
}
