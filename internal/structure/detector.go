package structure

import (
	"errors"
	"fmt"

	"SMCFlow/internal/domain/models"

	talib "github.com/markcheno/go-talib"
)

var (
	// ErrDuplicate is returned for a candle whose open time was already applied.
	ErrDuplicate = errors.New("structure: duplicate candle")
	// ErrOutOfOrder is returned for a candle older than the last applied one.
	ErrOutOfOrder = errors.New("structure: out-of-order candle")
)

// Config holds detector tuning parameters.
type Config struct {
	SwingWindow     int     // candles required on each side of a local extremum
	MaxWindow       int     // bounded scan window, not full history
	ATRPeriod       int
	DisplacementATR float64 // candle body as a multiple of ATR to qualify as displacement
	MaxBlocks       int     // active order blocks retained
	MaxGaps         int     // unfilled gaps retained
}

func (c *Config) setDefaults() {
	if c.SwingWindow <= 0 {
		c.SwingWindow = 2
	}
	if c.MaxWindow <= 0 {
		c.MaxWindow = 300
	}
	if c.ATRPeriod <= 0 {
		c.ATRPeriod = 14
	}
	if c.DisplacementATR <= 0 {
		c.DisplacementATR = 1.5
	}
	if c.MaxBlocks <= 0 {
		c.MaxBlocks = 10
	}
	if c.MaxGaps <= 0 {
		c.MaxGaps = 10
	}
}

// Detector derives market-structure snapshots for one (asset, timeframe)
// candle series. It is not safe for concurrent use; the engine drives each
// detector from a single goroutine.
type Detector struct {
	asset    string
	tf       models.Timeframe
	cfg      Config
	window   []models.Candle
	snapshot *models.MarketStructure
}

// NewDetector creates a detector for one (asset, timeframe) series.
func NewDetector(asset string, tf models.Timeframe, cfg Config) *Detector {
	cfg.setDefaults()
	return &Detector{asset: asset, tf: tf, cfg: cfg}
}

// Snapshot returns the latest structure snapshot, or nil before the first
// candle. Snapshots are immutable; each recomputation produces a new value.
func (d *Detector) Snapshot() *models.MarketStructure { return d.snapshot }

// OnCandle applies one closed candle and recomputes the structure over the
// bounded window. Out-of-order and duplicate candles are rejected without
// touching state. The result is deterministic for a given candle sequence,
// independent of batching.
func (d *Detector) OnCandle(c *models.Candle) (*models.MarketStructure, error) {
	if c == nil {
		return nil, fmt.Errorf("structure: nil candle")
	}
	if c.Asset != d.asset || c.Timeframe != d.tf {
		return nil, fmt.Errorf("structure: candle %s/%s does not belong to series %s/%s",
			c.Asset, c.Timeframe, d.asset, d.tf)
	}
	if n := len(d.window); n > 0 {
		last := d.window[n-1].OpenTime
		if c.OpenTime.Equal(last) {
			return nil, ErrDuplicate
		}
		if c.OpenTime.Before(last) {
			return nil, ErrOutOfOrder
		}
	}

	d.window = append(d.window, *c)
	if len(d.window) > d.cfg.MaxWindow {
		d.window = d.window[len(d.window)-d.cfg.MaxWindow:]
	}

	d.snapshot = d.rebuild()
	return d.snapshot, nil
}

type swing struct {
	idx   int
	point models.SwingPoint
}

func (d *Detector) rebuild() *models.MarketStructure {
	last := d.window[len(d.window)-1]
	atr := d.atr()
	highs, lows := d.swings()

	ms := &models.MarketStructure{
		Asset:     d.asset,
		Timeframe: d.tf,
		UpdatedAt: last.OpenTime,
		LastClose: last.Close,
		ATR:       atr,
		Blocks:    d.orderBlocks(atr),
		Gaps:      d.fairValueGaps(),
		Sweep:     d.sweep(highs, lows),
	}
	for _, s := range highs {
		ms.SwingHighs = append(ms.SwingHighs, s.point)
	}
	for _, s := range lows {
		ms.SwingLows = append(ms.SwingLows, s.point)
	}
	return ms
}

func (d *Detector) atr() float64 {
	n := len(d.window)
	if n < d.cfg.ATRPeriod+1 {
		// not enough data for ATR; fall back to the mean candle range
		var sum float64
		for i := range d.window {
			sum += d.window[i].Range()
		}
		return sum / float64(n)
	}
	high := make([]float64, n)
	low := make([]float64, n)
	closes := make([]float64, n)
	for i := range d.window {
		high[i] = d.window[i].High
		low[i] = d.window[i].Low
		closes[i] = d.window[i].Close
	}
	out := talib.Atr(high, low, closes, d.cfg.ATRPeriod)
	return out[n-1]
}

// swings finds local extrema with SwingWindow strictly lower highs (or
// strictly higher lows) on both sides. A swing is only confirmed once the
// lookahead side has fully closed, so recent candles cannot produce one.
func (d *Detector) swings() (highs, lows []swing) {
	k := d.cfg.SwingWindow
	for i := k; i < len(d.window)-k; i++ {
		c := &d.window[i]
		isHigh, isLow := true, true
		for j := i - k; j <= i+k; j++ {
			if j == i {
				continue
			}
			if d.window[j].High >= c.High {
				isHigh = false
			}
			if d.window[j].Low <= c.Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}
		if isHigh {
			highs = append(highs, swing{idx: i, point: models.SwingPoint{Time: c.OpenTime, Price: c.High}})
		}
		if isLow {
			lows = append(lows, swing{idx: i, point: models.SwingPoint{Time: c.OpenTime, Price: c.Low}})
		}
	}
	return highs, lows
}

// orderBlocks keeps the last opposite-direction candle preceding each
// displacement move. A block dies when a later candle fully closes through it.
func (d *Detector) orderBlocks(atr float64) []models.OrderBlock {
	var blocks []models.OrderBlock
	for i := 1; i < len(d.window); i++ {
		disp := &d.window[i]
		origin := &d.window[i-1]
		if atr <= 0 || disp.Body() < d.cfg.DisplacementATR*atr {
			continue
		}

		var ob models.OrderBlock
		switch {
		case disp.Bullish() && origin.Bearish():
			ob = models.OrderBlock{Time: origin.OpenTime, High: origin.High, Low: origin.Low, Direction: models.Long}
		case disp.Bearish() && origin.Bullish():
			ob = models.OrderBlock{Time: origin.OpenTime, High: origin.High, Low: origin.Low, Direction: models.Short}
		default:
			continue
		}

		violated := false
		for j := i + 1; j < len(d.window); j++ {
			cl := d.window[j].Close
			if (ob.Direction == models.Long && cl < ob.Low) ||
				(ob.Direction == models.Short && cl > ob.High) {
				violated = true
				break
			}
		}
		if !violated {
			blocks = append(blocks, ob)
		}
	}
	if len(blocks) > d.cfg.MaxBlocks {
		blocks = blocks[len(blocks)-d.cfg.MaxBlocks:]
	}
	return blocks
}

// fairValueGaps finds three-candle ranges skipped by an impulsive move:
// candle one and candle three do not overlap, leaving a gap at candle two.
func (d *Detector) fairValueGaps() []models.FairValueGap {
	var gaps []models.FairValueGap
	for i := 2; i < len(d.window); i++ {
		first := &d.window[i-2]
		mid := &d.window[i-1]
		third := &d.window[i]

		var gap models.FairValueGap
		switch {
		case first.High < third.Low:
			gap = models.FairValueGap{Time: mid.OpenTime, Upper: third.Low, Lower: first.High, Direction: models.Long}
		case first.Low > third.High:
			gap = models.FairValueGap{Time: mid.OpenTime, Upper: first.Low, Lower: third.High, Direction: models.Short}
		default:
			continue
		}

		filled := false
		for j := i + 1; j < len(d.window); j++ {
			c := &d.window[j]
			if (gap.Direction == models.Long && c.Low <= gap.Lower) ||
				(gap.Direction == models.Short && c.High >= gap.Upper) {
				filled = true
				break
			}
		}
		if !filled {
			gaps = append(gaps, gap)
		}
	}
	if len(gaps) > d.cfg.MaxGaps {
		gaps = gaps[len(gaps)-d.cfg.MaxGaps:]
	}
	return gaps
}

// sweep finds the most recent pierce of a prior swing extreme that closed
// back inside it, within the same or the following candle.
func (d *Detector) sweep(highs, lows []swing) *models.LiquiditySweep {
	k := d.cfg.SwingWindow
	var latest *models.LiquiditySweep

	record := func(s models.LiquiditySweep) {
		if latest == nil || s.Time.After(latest.Time) {
			latest = &s
		}
	}

	for j := 1; j < len(d.window); j++ {
		c := &d.window[j]
		next := (*models.Candle)(nil)
		if j+1 < len(d.window) {
			next = &d.window[j+1]
		}

		// most recent swing confirmed before candle j
		if h, ok := lastConfirmed(highs, j, k); ok && c.High > h.Price {
			if c.Close < h.Price {
				record(models.LiquiditySweep{Time: c.OpenTime, Level: h.Price, Extreme: c.High, Direction: models.Short})
			} else if next != nil && next.Close < h.Price {
				record(models.LiquiditySweep{Time: next.OpenTime, Level: h.Price, Extreme: c.High, Direction: models.Short})
			}
		}
		if l, ok := lastConfirmed(lows, j, k); ok && c.Low < l.Price {
			if c.Close > l.Price {
				record(models.LiquiditySweep{Time: c.OpenTime, Level: l.Price, Extreme: c.Low, Direction: models.Long})
			} else if next != nil && next.Close > l.Price {
				record(models.LiquiditySweep{Time: next.OpenTime, Level: l.Price, Extreme: c.Low, Direction: models.Long})
			}
		}
	}
	return latest
}

// lastConfirmed returns the most recent swing whose lookahead window closed
// before candle j, so the sweep target existed at the time of the pierce.
func lastConfirmed(swings []swing, j, k int) (models.SwingPoint, bool) {
	for i := len(swings) - 1; i >= 0; i-- {
		if swings[i].idx+k <= j {
			return swings[i].point, true
		}
	}
	return models.SwingPoint{}, false
}
