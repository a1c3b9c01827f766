package structure

import (
	"testing"
	"time"

	"SMCFlow/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func candle(i int, o, h, l, c float64) *models.Candle {
	return &models.Candle{
		Asset:     "EURUSD",
		Timeframe: models.TF15m,
		OpenTime:  base.Add(time.Duration(i) * 15 * time.Minute),
		Open:      o,
		High:      h,
		Low:       l,
		Close:     c,
		Volume:    100,
	}
}

func feed(t *testing.T, d *Detector, candles []*models.Candle) *models.MarketStructure {
	t.Helper()
	var ms *models.MarketStructure
	var err error
	for _, c := range candles {
		ms, err = d.OnCandle(c)
		require.NoError(t, err)
	}
	return ms
}

func TestDetectorRejectsDuplicateAndOutOfOrder(t *testing.T) {
	d := NewDetector("EURUSD", models.TF15m, Config{})

	_, err := d.OnCandle(candle(0, 1.0, 1.1, 0.9, 1.05))
	require.NoError(t, err)
	_, err = d.OnCandle(candle(1, 1.05, 1.15, 1.0, 1.1))
	require.NoError(t, err)

	_, err = d.OnCandle(candle(1, 1.05, 1.15, 1.0, 1.1))
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = d.OnCandle(candle(0, 1.0, 1.1, 0.9, 1.05))
	assert.ErrorIs(t, err, ErrOutOfOrder)

	// state unchanged: the next in-order candle still applies cleanly
	next := candle(2, 1.1, 1.2, 1.05, 1.15)
	ms, err := d.OnCandle(next)
	require.NoError(t, err)
	assert.Equal(t, next.OpenTime, ms.UpdatedAt)
}

func TestDetectorRejectsForeignSeries(t *testing.T) {
	d := NewDetector("EURUSD", models.TF15m, Config{})
	c := candle(0, 1.0, 1.1, 0.9, 1.05)
	c.Asset = "GBPUSD"
	_, err := d.OnCandle(c)
	require.Error(t, err)
}

func TestDetectorFindsSwingPoints(t *testing.T) {
	d := NewDetector("EURUSD", models.TF15m, Config{SwingWindow: 2})

	// a clean peak at index 2 and trough at index 6
	ms := feed(t, d, []*models.Candle{
		candle(0, 1.00, 1.02, 0.99, 1.01),
		candle(1, 1.01, 1.04, 1.00, 1.03),
		candle(2, 1.03, 1.10, 1.02, 1.05), // swing high 1.10
		candle(3, 1.05, 1.06, 1.01, 1.02),
		candle(4, 1.02, 1.03, 0.98, 0.99),
		candle(5, 0.99, 1.00, 0.96, 0.97),
		candle(6, 0.97, 0.98, 0.90, 0.95), // swing low 0.90
		candle(7, 0.95, 0.99, 0.94, 0.98),
		candle(8, 0.98, 1.01, 0.97, 1.00),
	})

	require.Len(t, ms.SwingHighs, 1)
	assert.InDelta(t, 1.10, ms.SwingHighs[0].Price, 1e-9)
	require.Len(t, ms.SwingLows, 1)
	assert.InDelta(t, 0.90, ms.SwingLows[0].Price, 1e-9)
}

func TestDetectorFindsAndPrunesFairValueGaps(t *testing.T) {
	d := NewDetector("EURUSD", models.TF15m, Config{})

	// candle 0 high 1.02, candle 2 low 1.05 -> bullish gap [1.02, 1.05]
	ms := feed(t, d, []*models.Candle{
		candle(0, 1.00, 1.02, 0.99, 1.01),
		candle(1, 1.01, 1.06, 1.01, 1.05),
		candle(2, 1.05, 1.09, 1.05, 1.08),
	})
	require.Len(t, ms.Gaps, 1)
	gap := ms.Gaps[0]
	assert.Equal(t, models.Long, gap.Direction)
	assert.InDelta(t, 1.02, gap.Lower, 1e-9)
	assert.InDelta(t, 1.05, gap.Upper, 1e-9)

	// a later candle trading through the gap floor fills it
	ms = feed(t, d, []*models.Candle{
		candle(3, 1.08, 1.08, 1.01, 1.03),
	})
	assert.Empty(t, ms.Gaps)
}

func TestDetectorMarksLiquiditySweep(t *testing.T) {
	d := NewDetector("EURUSD", models.TF15m, Config{SwingWindow: 2})

	// establish a swing high at 1.10, then pierce it and close back under
	ms := feed(t, d, []*models.Candle{
		candle(0, 1.00, 1.02, 0.99, 1.01),
		candle(1, 1.01, 1.04, 1.00, 1.03),
		candle(2, 1.03, 1.10, 1.02, 1.05),
		candle(3, 1.05, 1.06, 1.01, 1.02),
		candle(4, 1.02, 1.03, 0.98, 0.99),
		candle(5, 0.99, 1.05, 0.98, 1.04),
		candle(6, 1.04, 1.12, 1.03, 1.06), // pierces 1.10, closes back inside
	})

	require.NotNil(t, ms.Sweep)
	assert.Equal(t, models.Short, ms.Sweep.Direction)
	assert.InDelta(t, 1.10, ms.Sweep.Level, 1e-9)
	assert.InDelta(t, 1.12, ms.Sweep.Extreme, 1e-9)
}

func TestDetectorFindsOrderBlock(t *testing.T) {
	d := NewDetector("EURUSD", models.TF15m, Config{DisplacementATR: 1.5})

	// quiet candles, then a bearish origin candle followed by a large
	// bullish displacement
	origin := candle(3, 1.00, 1.005, 0.985, 0.99) // bearish origin
	ms := feed(t, d, []*models.Candle{
		candle(0, 1.00, 1.01, 0.99, 1.00),
		candle(1, 1.00, 1.01, 0.99, 1.00),
		candle(2, 1.00, 1.01, 0.99, 1.00),
		origin,
		candle(4, 0.99, 1.09, 0.99, 1.08), // displacement up
	})

	require.NotEmpty(t, ms.Blocks)
	ob := ms.Blocks[len(ms.Blocks)-1]
	assert.Equal(t, models.Long, ob.Direction)
	assert.InDelta(t, 0.985, ob.Low, 1e-9)

	// closing fully below the block invalidates it
	ms = feed(t, d, []*models.Candle{
		candle(5, 1.08, 1.08, 0.97, 0.975),
	})
	for _, b := range ms.Blocks {
		assert.False(t, b.Time.Equal(origin.OpenTime), "violated block must be pruned")
	}
}

func TestDetectorDeterministic(t *testing.T) {
	candles := []*models.Candle{
		candle(0, 1.00, 1.02, 0.99, 1.01),
		candle(1, 1.01, 1.04, 1.00, 1.03),
		candle(2, 1.03, 1.10, 1.02, 1.05),
		candle(3, 1.05, 1.06, 1.01, 1.02),
		candle(4, 1.02, 1.03, 0.98, 0.99),
		candle(5, 0.99, 1.05, 0.98, 1.04),
		candle(6, 1.04, 1.12, 1.03, 1.06),
		candle(7, 1.06, 1.07, 1.00, 1.01),
	}

	a := NewDetector("EURUSD", models.TF15m, Config{})
	b := NewDetector("EURUSD", models.TF15m, Config{})

	msA := feed(t, a, candles)
	msB := feed(t, b, candles)

	assert.Equal(t, msA, msB)
}

func TestStructureStaleness(t *testing.T) {
	d := NewDetector("EURUSD", models.TF15m, Config{})
	ms := feed(t, d, []*models.Candle{candle(0, 1.0, 1.1, 0.9, 1.05)})

	fresh := ms.UpdatedAt.Add(20 * time.Minute)
	assert.False(t, ms.Stale(fresh, time.Hour))

	later := ms.UpdatedAt.Add(3 * time.Hour)
	assert.True(t, ms.Stale(later, time.Hour))
}
