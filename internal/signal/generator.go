package signal

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"crypto-agent-core/internal/analysis"
)

// Kind represents the signal direction
type Kind string

const (
	SignalBuy  Kind = "BUY"
	SignalSell Kind = "SELL"
)

// Signal represents a ranked trading signal derived from structural analysis.
type Signal struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Entry      float64   `json:"entry"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit []float64 `json:"take_profit"`
	Confidence float64   `json:"confidence"` // 0.0 to 1.0
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
}

// Source strength thresholds and output cap.
const (
	zoneMinStrength  = 0.7
	blockMinStrength = 0.6
	gapMinStrength   = 0.5
	maxSignals       = 5
)

// Stop-loss / take-profit percentage bands. Longs give price more room
// than shorts.
var (
	longStopPct    = 0.02
	longTargetPct  = []float64{0.015, 0.03, 0.05}
	shortStopPct   = 0.015
	shortTargetPct = []float64{0.01, 0.025, 0.04}
)

// Generator converts analyzer output into ranked trading signals. Pure:
// no side effects, no retained state.
type Generator struct{}

// NewGenerator creates a new signal generator
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate emits one signal per qualifying liquidity zone, order block and
// fair value gap, merged, sorted by confidence descending and capped.
func (g *Generator) Generate(res *analysis.Result, currentPrice float64) []Signal {
	if res == nil || currentPrice <= 0 {
		return nil
	}

	now := time.Now()
	var signals []Signal

	for _, zone := range res.LiquidityZones {
		if zone.Strength <= zoneMinStrength {
			continue
		}
		kind := SignalBuy
		if zone.Kind == analysis.SellSideLiquidity {
			kind = SignalSell
		}
		signals = append(signals, build(kind, zone.Price, zone.Strength,
			fmt.Sprintf("%s liquidity at %.4f", zone.Kind, zone.Price), now))
	}

	for _, block := range res.OrderBlocks {
		if block.Strength <= blockMinStrength {
			continue
		}
		kind := SignalBuy
		if block.Kind == analysis.BearishBlock {
			kind = SignalSell
		}
		signals = append(signals, build(kind, block.Price, block.Strength,
			fmt.Sprintf("%s order block %.4f-%.4f", block.Kind, block.Low, block.High), now))
	}

	for _, gap := range res.FairValueGaps {
		if gap.Strength <= gapMinStrength {
			continue
		}
		kind := SignalBuy
		if gap.Kind == analysis.BearishGap {
			kind = SignalSell
		}
		signals = append(signals, build(kind, gap.Price, gap.Strength,
			fmt.Sprintf("%s fair value gap %.4f-%.4f", gap.Kind, gap.Low, gap.High), now))
	}

	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Confidence > signals[j].Confidence
	})

	if len(signals) > maxSignals {
		signals = signals[:maxSignals]
	}
	return signals
}

func build(kind Kind, entry, confidence float64, reason string, ts time.Time) Signal {
	s := Signal{
		ID:         uuid.NewString(),
		Kind:       kind,
		Entry:      entry,
		Confidence: confidence,
		Reason:     reason,
		Timestamp:  ts,
	}

	if kind == SignalBuy {
		s.StopLoss = entry * (1 - longStopPct)
		for _, pct := range longTargetPct {
			s.TakeProfit = append(s.TakeProfit, entry*(1+pct))
		}
	} else {
		s.StopLoss = entry * (1 + shortStopPct)
		for _, pct := range shortTargetPct {
			s.TakeProfit = append(s.TakeProfit, entry*(1-pct))
		}
	}
	return s
}
