package backtest

import (
	"time"

	"crypto-agent-core/internal/exchange"
	"crypto-agent-core/internal/signal"
)

type openPosition struct {
	entryTime  time.Time
	entryPrice float64
	stopLoss   float64
	takeProfit float64
	side       signal.Kind
	quantity   float64
	reason     string
}

// RunWindow simulates the strategy over one candle slice: analyze a
// sliding window, enter on the top-ranked signal when flat, exit on
// stop-loss or first take-profit. Returns the window metrics and the
// individual trades.
func (b *Backtester) RunWindow(candles []exchange.Candle, config StrategyConfig) (*WindowResult, []Trade) {
	config.applyDefaults()

	result := &WindowResult{FinalBalance: config.InitialBalance}
	if len(candles) > 0 {
		result.StartTime = candles[0].Time()
		result.EndTime = candles[len(candles)-1].Time()
	}
	if len(candles) <= config.AnalysisWindow {
		return result, nil
	}

	balance := config.InitialBalance
	var trades []Trade
	var position *openPosition

	for i := config.AnalysisWindow; i < len(candles); i++ {
		candle := candles[i]

		if position != nil {
			if exitPrice, reason, hit := position.exitLevel(candle); hit {
				trade := closeTrade(position, exitPrice, candle.Time(), reason, config.FeeRate)
				trades = append(trades, trade)
				balance += trade.PnL - trade.Fees
				position = nil
			}
		}

		if position != nil {
			continue
		}

		window := candles[i-config.AnalysisWindow : i]
		res := b.analyzer.Analyze(window)
		signals := b.generator.Generate(res, candle.Close)
		if len(signals) == 0 {
			continue
		}

		best := signals[0]
		takeProfit := best.Entry
		if len(best.TakeProfit) > 0 {
			takeProfit = best.TakeProfit[0]
		}
		position = &openPosition{
			entryTime:  candle.Time(),
			entryPrice: candle.Close,
			stopLoss:   best.StopLoss,
			takeProfit: takeProfit,
			side:       best.Kind,
			quantity:   balance * config.PositionFraction / candle.Close,
			reason:     best.Reason,
		}
	}

	if position != nil {
		last := candles[len(candles)-1]
		trade := closeTrade(position, last.Close, last.Time(), "end of window", config.FeeRate)
		trades = append(trades, trade)
		balance += trade.PnL - trade.Fees
	}

	b.windowMetrics(result, trades, config.InitialBalance, balance)
	return result, trades
}

// exitLevel checks whether the candle touched the stop or the target.
// When both are inside the candle's range the stop wins, the pessimistic
// assumption.
func (p *openPosition) exitLevel(c exchange.Candle) (float64, string, bool) {
	if p.side == signal.SignalBuy {
		if c.Low <= p.stopLoss {
			return p.stopLoss, "stop loss", true
		}
		if c.High >= p.takeProfit {
			return p.takeProfit, "take profit", true
		}
		return 0, "", false
	}
	if c.High >= p.stopLoss {
		return p.stopLoss, "stop loss", true
	}
	if c.Low <= p.takeProfit {
		return p.takeProfit, "take profit", true
	}
	return 0, "", false
}

func closeTrade(p *openPosition, exitPrice float64, exitTime time.Time, reason string, feeRate float64) Trade {
	pnl := (exitPrice - p.entryPrice) * p.quantity
	if p.side == signal.SignalSell {
		pnl = -pnl
	}
	fees := (p.entryPrice + exitPrice) * p.quantity * feeRate

	return Trade{
		EntryTime:  p.entryTime,
		ExitTime:   exitTime,
		EntryPrice: p.entryPrice,
		ExitPrice:  exitPrice,
		Side:       p.side,
		Quantity:   p.quantity,
		PnL:        pnl,
		Fees:       fees,
		Reason:     p.reason,
		ExitReason: reason,
	}
}
