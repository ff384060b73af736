// Package hedging keeps aggregate portfolio delta near a configured
// target by placing offsetting market orders on a hedge instrument.
package hedging

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"crypto-agent-core/internal/events"
	"crypto-agent-core/internal/exchange"
	"crypto-agent-core/internal/notification"
)

// PositionSide represents the direction of an open position
type PositionSide string

const (
	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"
)

// Position is a read-only view of an open position owned by the
// surrounding application. The controller only uses it to compute
// exposure.
type Position struct {
	ID         string       `json:"id"`
	Symbol     string       `json:"symbol"`
	Exchange   string       `json:"exchange"`
	Side       PositionSide `json:"side"`
	EntryPrice float64      `json:"entry_price"`
	Quantity   float64      `json:"quantity"`
	OpenTime   time.Time    `json:"open_time"`
}

// Config holds hedging controller configuration. Immutable after
// construction; the effective exposure cap is derived internally from
// volatility readings.
type Config struct {
	Enabled          bool          `json:"enabled"`
	HedgeExchange    string        `json:"hedge_exchange"`
	HedgeSymbol      string        `json:"hedge_symbol"`
	TargetDelta      float64       `json:"target_delta"`
	MaxDeltaExposure float64       `json:"max_delta_exposure"`
	CheckInterval    time.Duration `json:"check_interval"`
}

// State is the controller's mutable hedge bookkeeping. Single writer:
// only the controller mutates it.
type State struct {
	CurrentHedgeQuantity float64    `json:"current_hedge_quantity"` // signed, negative = short
	LastEvaluation       time.Time  `json:"last_evaluation"`
	DynamicExposureCap   *float64   `json:"dynamic_exposure_cap,omitempty"`
	LastHedgeTime        *time.Time `json:"last_hedge_time,omitempty"`
}

// StateStore persists hedge state across restarts. Optional; a nil
// store means state lives only in memory.
type StateStore interface {
	SaveHedgeState(ctx context.Context, symbol string, state *State) error
	LoadHedgeState(ctx context.Context, symbol string) (*State, error)
}

// Orders below this notional are skipped as dust.
const minHedgeNotional = 15.0

// Volatility tiers for the dynamic exposure cap.
const (
	volTierModerate = 0.005
	volTierHigh     = 0.010
)

// Controller evaluates portfolio delta and rebalances through the
// exchange collaborator. Callers serialize evaluatePortfolio ticks; the
// interval throttle is the only concurrency guard.
type Controller struct {
	config   Config
	state    State
	client   exchange.Client
	bus      *events.Bus
	notifier *notification.Manager
	store    StateStore
	logger   zerolog.Logger
}

// NewController creates a hedging controller. bus, notifier and store may
// be nil.
func NewController(config Config, client exchange.Client, bus *events.Bus, notifier *notification.Manager, store StateStore, logger zerolog.Logger) *Controller {
	c := &Controller{
		config:   config,
		client:   client,
		bus:      bus,
		notifier: notifier,
		store:    store,
		logger:   logger.With().Str("component", "hedging").Logger(),
	}
	if store != nil {
		if saved, err := store.LoadHedgeState(context.Background(), config.HedgeSymbol); err == nil && saved != nil {
			c.state = *saved
			c.logger.Info().
				Float64("hedge_quantity", saved.CurrentHedgeQuantity).
				Msg("Restored hedge state")
		}
	}
	return c
}

// State returns a copy of the current hedge state.
func (c *Controller) State() State {
	return c.state
}

// EvaluatePortfolio computes total delta across the given positions plus
// the existing hedge and rebalances when the deviation from the target
// exceeds the effective exposure cap.
func (c *Controller) EvaluatePortfolio(ctx context.Context, positions []Position) error {
	if !c.config.Enabled {
		return nil
	}
	now := time.Now()
	if now.Sub(c.state.LastEvaluation) < c.config.CheckInterval {
		return nil
	}
	// The throttle advances even when the evaluation fails, so a failed
	// rebalance cannot be retried faster than the check interval.
	c.state.LastEvaluation = now

	portfolioDelta, err := c.portfolioDelta(ctx, positions)
	if err != nil {
		c.logger.Error().Err(err).Msg("Portfolio delta computation failed")
		c.notifier.SendError(err, "hedging delta computation")
		return err
	}

	hedgeTicker, err := c.client.GetTicker(ctx, c.config.HedgeExchange, c.config.HedgeSymbol)
	if err != nil {
		err = fmt.Errorf("failed to get hedge instrument price: %w", err)
		c.logger.Error().Err(err).Msg("Hedge price lookup failed")
		c.notifier.SendError(err, "hedging price lookup")
		return err
	}
	hedgePrice := hedgeTicker.Last
	if hedgePrice <= 0 {
		err = fmt.Errorf("invalid hedge instrument price %.8f for %s", hedgePrice, c.config.HedgeSymbol)
		c.logger.Error().Err(err).Msg("Hedge price lookup failed")
		c.notifier.SendError(err, "hedging price lookup")
		return err
	}

	hedgeDelta := c.state.CurrentHedgeQuantity * hedgePrice
	totalDelta := portfolioDelta + hedgeDelta
	deviation := totalDelta - c.config.TargetDelta
	cap := c.effectiveCap()

	c.logger.Debug().
		Float64("portfolio_delta", portfolioDelta).
		Float64("hedge_delta", hedgeDelta).
		Float64("deviation", deviation).
		Float64("cap", cap).
		Msg("Portfolio evaluated")

	if math.Abs(deviation) <= cap {
		return nil
	}
	return c.rebalance(ctx, deviation, hedgePrice)
}

func (c *Controller) portfolioDelta(ctx context.Context, positions []Position) (float64, error) {
	var delta float64
	for _, pos := range positions {
		ticker, err := c.client.GetTicker(ctx, pos.Exchange, pos.Symbol)
		if err != nil {
			return 0, fmt.Errorf("failed to get price for %s: %w", pos.Symbol, err)
		}
		value := pos.Quantity * ticker.Last
		if pos.Side == PositionShort {
			value = -value
		}
		delta += value
	}
	return delta, nil
}

func (c *Controller) rebalance(ctx context.Context, deviation, hedgePrice float64) error {
	quantityChange := -deviation / hedgePrice
	notional := math.Abs(quantityChange) * hedgePrice
	if notional < minHedgeNotional {
		c.logger.Info().
			Float64("notional", notional).
			Msg("Hedge adjustment below minimum notional, skipping")
		return nil
	}

	side := exchange.SideBuy
	if quantityChange < 0 {
		side = exchange.SideSell
	}
	orderQuantity := math.Abs(quantityChange)

	result, err := c.client.CreateMarketOrder(ctx, c.config.HedgeExchange, c.config.HedgeSymbol, side, orderQuantity)
	if err != nil {
		err = fmt.Errorf("hedge order failed: %w", err)
		c.logger.Error().Err(err).
			Str("side", string(side)).
			Float64("quantity", orderQuantity).
			Msg("Hedge rebalance failed")
		c.notifier.SendError(err, "hedging order placement")
		return err
	}

	filled := result.FilledQuantity
	if filled <= 0 {
		filled = orderQuantity
	}
	if side == exchange.SideSell {
		filled = -filled
	}
	c.state.CurrentHedgeQuantity += filled
	now := time.Now()
	c.state.LastHedgeTime = &now

	c.logger.Info().
		Str("side", string(side)).
		Float64("quantity", orderQuantity).
		Float64("price", hedgePrice).
		Float64("hedge_quantity", c.state.CurrentHedgeQuantity).
		Msg("Hedge rebalanced")

	if c.bus != nil {
		c.bus.PublishHedgeExecuted(c.config.HedgeSymbol, string(side), orderQuantity, hedgePrice)
	}
	c.notifier.SendHedgeExecuted(c.config.HedgeSymbol, string(side), orderQuantity, hedgePrice, deviation)
	c.persist(ctx)
	return nil
}

// UpdateMarketVolatility adjusts the dynamic exposure cap from a
// volatility reading (stdev/mean ratio). Idempotent; the latest reading
// wins.
func (c *Controller) UpdateMarketVolatility(volatility float64) {
	switch {
	case volatility > volTierHigh:
		cap := c.config.MaxDeltaExposure * 0.2
		c.state.DynamicExposureCap = &cap
	case volatility >= volTierModerate:
		cap := c.config.MaxDeltaExposure * 0.5
		c.state.DynamicExposureCap = &cap
	default:
		c.state.DynamicExposureCap = nil
	}
}

func (c *Controller) effectiveCap() float64 {
	if c.state.DynamicExposureCap != nil {
		return *c.state.DynamicExposureCap
	}
	return c.config.MaxDeltaExposure
}

func (c *Controller) persist(ctx context.Context) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveHedgeState(ctx, c.config.HedgeSymbol, &c.state); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to persist hedge state")
	}
}
