package models

import "time"

// Direction is the side of a structural zone or a trade.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// SwingPoint is a confirmed local extremum of the candle series.
type SwingPoint struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
}

// OrderBlock is the origin candle range of an impulsive displacement move,
// treated as a future support (LONG) or resistance (SHORT) zone.
type OrderBlock struct {
	Time      time.Time `json:"time"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Direction Direction `json:"direction"`
}

// Contains reports whether price trades inside the block range.
func (ob OrderBlock) Contains(price float64) bool {
	return price >= ob.Low && price <= ob.High
}

// FairValueGap is a price range skipped by an impulsive move and left
// unfilled by overlapping candle ranges.
type FairValueGap struct {
	Time      time.Time `json:"time"`
	Upper     float64   `json:"upper"`
	Lower     float64   `json:"lower"`
	Direction Direction `json:"direction"`
}

// Contains reports whether price trades inside the gap.
func (g FairValueGap) Contains(price float64) bool {
	return price >= g.Lower && price <= g.Upper
}

// LiquiditySweep records a pierce of a prior swing extreme that closed back
// inside it. Direction is the implied trade side: sweeping lows implies LONG,
// sweeping highs implies SHORT.
type LiquiditySweep struct {
	Time      time.Time `json:"time"`
	Level     float64   `json:"level"`
	Extreme   float64   `json:"extreme"` // furthest excursion beyond the level
	Direction Direction `json:"direction"`
}

// MarketStructure is the derived structural snapshot for one (asset,
// timeframe). Snapshots are superseded, never mutated in place, so earlier
// ones stay inspectable.
type MarketStructure struct {
	Asset      string         `json:"asset"`
	Timeframe  Timeframe      `json:"timeframe"`
	UpdatedAt  time.Time      `json:"updated_at"` // open time of the last applied candle
	LastClose  float64        `json:"last_close"`
	ATR        float64        `json:"atr"`
	SwingHighs []SwingPoint   `json:"swing_highs"`
	SwingLows  []SwingPoint   `json:"swing_lows"`
	Blocks     []OrderBlock   `json:"order_blocks"`
	Gaps       []FairValueGap `json:"fair_value_gaps"`
	Sweep      *LiquiditySweep `json:"sweep,omitempty"`
}

// Age returns how long ago the snapshot was last updated.
func (ms *MarketStructure) Age(now time.Time) time.Duration {
	return now.Sub(ms.UpdatedAt.Add(ms.Timeframe.Duration()))
}

// Stale reports whether the snapshot is older than the allowed feed gap.
// A stale structure is advisory: recomputation is deferred, not failed.
func (ms *MarketStructure) Stale(now time.Time, after time.Duration) bool {
	return ms.Age(now) > after
}

// LastSwingHigh returns the most recent confirmed swing high, if any.
func (ms *MarketStructure) LastSwingHigh() (SwingPoint, bool) {
	if len(ms.SwingHighs) == 0 {
		return SwingPoint{}, false
	}
	return ms.SwingHighs[len(ms.SwingHighs)-1], true
}

// LastSwingLow returns the most recent confirmed swing low, if any.
func (ms *MarketStructure) LastSwingLow() (SwingPoint, bool) {
	if len(ms.SwingLows) == 0 {
		return SwingPoint{}, false
	}
	return ms.SwingLows[len(ms.SwingLows)-1], true
}
