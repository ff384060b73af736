package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"crypto-agent-core/config"
	"crypto-agent-core/internal/analysis"
	"crypto-agent-core/internal/backtest"
	"crypto-agent-core/internal/events"
	"crypto-agent-core/internal/exchange"
	"crypto-agent-core/internal/hedging"
	"crypto-agent-core/internal/logging"
	"crypto-agent-core/internal/monitor"
	"crypto-agent-core/internal/notification"
	sig "crypto-agent-core/internal/signal"
	"crypto-agent-core/internal/statworker"
	"crypto-agent-core/internal/store"
)

func main() {
	configPath := flag.String("config", "config.json", "path to config file")
	backtestMode := flag.Bool("backtest", false, "run a walk-forward backtest instead of the live loop")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(&logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     cfg.LoggingConfig.Output,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
	})
	logger.Info().Str("symbol", cfg.ExchangeConfig.Symbol).Msg("Starting decision core")

	bus := events.NewBus()

	notifier := notification.NewManager()
	if cfg.NotificationConfig.Enabled && cfg.NotificationConfig.WebhookURL != "" {
		notifier.AddNotifier(notification.NewWebhookNotifier(notification.WebhookConfig{
			URL:     cfg.NotificationConfig.WebhookURL,
			Enabled: true,
		}))
	}

	worker := statworker.NewClient(&statworker.Config{
		BaseURL: cfg.StatWorkerConfig.BaseURL,
		Timeout: time.Duration(cfg.StatWorkerConfig.TimeoutSeconds) * time.Second,
	})
	defer worker.Close()

	// The exchange client is simulated unless a real adapter is wired in.
	client := exchange.NewSimClient(nil)

	var hedgeStore hedging.StateStore
	if cfg.RedisConfig.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Addr,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		defer redisClient.Close()
		hedgeStore = store.NewRedisHedgeStateStore(redisClient, logger)
	}

	var resultStore backtest.ResultStore
	if cfg.DatabaseConfig.Enabled {
		db, err := store.NewDB(store.PostgresConfig{
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			User:     cfg.DatabaseConfig.User,
			Password: cfg.DatabaseConfig.Password,
			Database: cfg.DatabaseConfig.Database,
			SSLMode:  cfg.DatabaseConfig.SSLMode,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Database connection failed")
		}
		defer db.Close()
		if err := db.RunMigrations(context.Background()); err != nil {
			logger.Fatal().Err(err).Msg("Database migrations failed")
		}
		resultStore = store.NewBacktestRepository(db)
	}

	if *backtestMode {
		runBacktest(cfg, client, worker, resultStore, logger)
		return
	}

	runLive(cfg, client, worker, hedgeStore, notifier, bus, logger)
}

func runBacktest(cfg *config.Config, client exchange.Client, worker *statworker.Client, resultStore backtest.ResultStore, logger zerolog.Logger) {
	ctx := context.Background()
	bt := backtest.NewBacktester(worker, resultStore, nil, cfg.BacktestConfig.ReportDir, logger)

	candles, err := client.GetMarketData(ctx, cfg.ExchangeConfig.Name, cfg.ExchangeConfig.Symbol,
		cfg.ExchangeConfig.Timeframe, 1000)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to fetch historical candles")
	}

	strategyConfig := backtest.StrategyConfig{
		Symbol:           cfg.ExchangeConfig.Symbol,
		InitialBalance:   cfg.BacktestConfig.InitialBalance,
		PositionFraction: cfg.BacktestConfig.PositionFraction,
		FeeRate:          cfg.BacktestConfig.FeeRate,
		AnalysisWindow:   cfg.BacktestConfig.AnalysisWindow,
	}

	result, err := bt.WalkForwardAnalysis(candles, strategyConfig, cfg.BacktestConfig.Windows, cfg.BacktestConfig.InSampleRatio)
	if err != nil {
		logger.Fatal().Err(err).Msg("Walk-forward analysis failed")
	}

	_, trades := bt.RunWindow(candles, strategyConfig)
	if len(trades) > 0 {
		mc, err := bt.MonteCarloSimulation(trades, cfg.BacktestConfig.InitialBalance, cfg.BacktestConfig.MonteCarloIterations)
		if err != nil {
			logger.Warn().Err(err).Msg("Monte Carlo simulation failed")
		} else {
			result.MonteCarlo = mc
		}
	}

	path, err := bt.GenerateFullReport(ctx, "smc-structural", result, cfg.BacktestConfig.InitialBalance)
	if err != nil {
		logger.Fatal().Err(err).Msg("Report generation failed")
	}
	logger.Info().
		Str("report", path).
		Float64("stability", result.StabilityScore).
		Int("trades", result.TotalTrades).
		Msg("Backtest completed")
}

func runLive(cfg *config.Config, client exchange.Client, worker *statworker.Client,
	hedgeStore hedging.StateStore, notifier *notification.Manager, bus *events.Bus, logger zerolog.Logger) {

	analyzer := analysis.NewAnalyzer()
	generator := sig.NewGenerator()

	controller := hedging.NewController(hedging.Config{
		Enabled:          cfg.HedgingConfig.Enabled,
		HedgeExchange:    cfg.HedgingConfig.HedgeExchange,
		HedgeSymbol:      cfg.HedgingConfig.HedgeSymbol,
		TargetDelta:      cfg.HedgingConfig.TargetDelta,
		MaxDeltaExposure: cfg.HedgingConfig.MaxDeltaExposure,
		CheckInterval:    cfg.HedgeCheckInterval(),
	}, client, bus, notifier, hedgeStore, logger)

	// Volatility readings feed straight into the exposure cap.
	bus.Subscribe(events.EventVolatility, func(e events.Event) {
		if v, ok := e.Data["volatility"].(float64); ok {
			controller.UpdateMarketVolatility(v)
		}
	})

	mon := monitor.NewMonitor(monitor.Config{
		Symbol:            cfg.ExchangeConfig.Symbol,
		MaxBufferSize:     cfg.MonitorConfig.MaxBufferSize,
		SlowCheckInterval: time.Duration(cfg.MonitorConfig.SlowCheckIntervalSeconds) * time.Second,
		DriftThreshold:    cfg.MonitorConfig.DriftThreshold,
	}, bus, worker, notifier, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigChan
		logger.Info().Str("signal", s.String()).Msg("Shutting down")
		cancel()
	}()

	scanInterval := time.Duration(cfg.AnalysisConfig.ScanIntervalSeconds) * time.Second
	ticker := time.NewTicker(scanInterval)
	defer ticker.Stop()

	logger.Info().Dur("interval", scanInterval).Msg("Scan loop started")

	var lastPrice float64
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Decision core stopped")
			return
		case <-ticker.C:
		}

		result, price, err := analyzer.ScanMarket(ctx, client, cfg.ExchangeConfig.Name,
			cfg.ExchangeConfig.Symbol, cfg.ExchangeConfig.Timeframe)
		if err != nil {
			logger.Error().Err(err).Msg("Market scan failed")
			bus.PublishError("scanner", "market scan failed", err)
			notifier.SendError(err, "market scan")
			continue
		}

		signals := generator.Generate(result, price)
		for _, s := range signals {
			logger.Info().
				Str("kind", string(s.Kind)).
				Float64("entry", s.Entry).
				Float64("confidence", s.Confidence).
				Str("reason", s.Reason).
				Msg("Signal generated")
			bus.Publish(events.Event{
				Type: events.EventSignalGenerated,
				Data: map[string]interface{}{
					"id":         s.ID,
					"kind":       string(s.Kind),
					"entry":      s.Entry,
					"confidence": s.Confidence,
					"reason":     s.Reason,
				},
			})
		}

		var ret *float64
		if lastPrice > 0 {
			r := (price - lastPrice) / lastPrice
			ret = &r
		}
		mon.UpdateMetrics(price, ret)
		lastPrice = price

		// Positions come from the surrounding application; the sim run
		// hedges an empty book, exercising only the hedge-side delta.
		if err := controller.EvaluatePortfolio(ctx, nil); err != nil {
			logger.Error().Err(err).Msg("Portfolio evaluation failed")
		}
	}
}
