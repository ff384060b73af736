package analysis

// ZoneKind distinguishes buy-side and sell-side liquidity
type ZoneKind string

const (
	BuySideLiquidity  ZoneKind = "buy_side"
	SellSideLiquidity ZoneKind = "sell_side"
)

// BlockKind represents the type of order block
type BlockKind string

const (
	BullishBlock BlockKind = "bullish"
	BearishBlock BlockKind = "bearish"
)

// GapKind represents the type of Fair Value Gap
type GapKind string

const (
	BullishGap GapKind = "bullish"
	BearishGap GapKind = "bearish"
)

// Trend represents the market trend direction
type Trend string

const (
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
	TrendNeutral Trend = "neutral"
)

// LiquidityZone marks a swing extreme presumed to cluster resting orders.
type LiquidityZone struct {
	Kind      ZoneKind `json:"kind"`
	Price     float64  `json:"price"`
	Strength  float64  `json:"strength"` // 0.0 to 1.0
	Timestamp int64    `json:"timestamp"`
	Volume    float64  `json:"volume"`
}

// OrderBlock marks a strong directional candle followed by a structure break.
type OrderBlock struct {
	Kind      BlockKind `json:"kind"`
	Price     float64   `json:"price"`
	Low       float64   `json:"low"`
	High      float64   `json:"high"`
	Strength  float64   `json:"strength"` // fraction of forward candles respecting the block
	Timestamp int64     `json:"timestamp"`
	Volume    float64   `json:"volume"`
}

// FairValueGap marks a three-candle price imbalance.
type FairValueGap struct {
	Kind      GapKind `json:"kind"`
	Price     float64 `json:"price"` // gap midpoint
	Low       float64 `json:"low"`
	High      float64 `json:"high"`
	Strength  float64 `json:"strength"` // gap width relative to bounding candle ranges
	Timestamp int64   `json:"timestamp"`
}

// MarketStructure is a running tally of swing transitions over the window.
type MarketStructure struct {
	Trend       Trend `json:"trend"`
	HigherHighs int   `json:"higher_highs"`
	HigherLows  int   `json:"higher_lows"`
	LowerHighs  int   `json:"lower_highs"`
	LowerLows   int   `json:"lower_lows"`
	Timestamp   int64 `json:"timestamp"`
}

// Result bundles all structural readings for one candle window.
type Result struct {
	LiquidityZones []LiquidityZone `json:"liquidity_zones"`
	OrderBlocks    []OrderBlock    `json:"order_blocks"`
	FairValueGaps  []FairValueGap  `json:"fair_value_gaps"`
	Structure      MarketStructure `json:"structure"`
}
