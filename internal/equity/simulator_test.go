package equity

import (
	"testing"
	"time"

	"SMCFlow/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tradeOn(day int, result models.SignalStatus, pnl float64) models.Trade {
	return models.Trade{
		SignalID:   "s",
		Asset:      "EURUSD",
		Result:     result,
		PnlPercent: pnl,
		ClosedAt:   time.Date(2025, 6, day, 14, 0, 0, 0, time.UTC),
	}
}

func TestSimulatorFixedFractionalMath(t *testing.T) {
	s := NewSimulator("u1", 1000)

	win := tradeOn(2, models.StatusWin, 1.0)
	snaps := s.OnTrade(&win)
	require.Len(t, snaps, 1)
	assert.InDelta(t, 1010.00, s.Capital(), 1e-9)
	assert.InDelta(t, 1.0, snaps[0].CumulativePnlPercent, 1e-9)

	loss := tradeOn(3, models.StatusLoss, -1.0)
	s.OnTrade(&loss)
	assert.InDelta(t, 999.90, s.Capital(), 1e-9) // 1010 * 0.99
	assert.InDelta(t, -0.01, s.ROI(), 1e-9)
}

func TestSimulatorFullStopLossFromBaseline(t *testing.T) {
	s := NewSimulator("u1", 1000)

	loss := tradeOn(2, models.StatusLoss, -1.0)
	s.OnTrade(&loss)
	assert.InDelta(t, 990.00, s.Capital(), 1e-9)
}

func TestSimulatorSameDayTradesCompoundIntoOneSnapshot(t *testing.T) {
	s := NewSimulator("u1", 1000)

	first := tradeOn(2, models.StatusWin, 1.0)
	second := tradeOn(2, models.StatusWin, 2.0)
	s.OnTrade(&first)
	s.OnTrade(&second)

	curve := s.Curve(time.Time{})
	require.Len(t, curve, 1)
	assert.InDelta(t, 1030.20, curve[0].Capital, 1e-9) // 1000 * 1.01 * 1.02
}

func TestSimulatorBackfillsQuietDays(t *testing.T) {
	s := NewSimulator("u1", 1000)

	first := tradeOn(2, models.StatusWin, 1.0)
	later := tradeOn(5, models.StatusLoss, -1.0)
	s.OnTrade(&first)
	s.OnTrade(&later)

	curve := s.Curve(time.Time{})
	require.Len(t, curve, 4) // 2nd through 5th, no holes
	assert.Equal(t, time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC), curve[1].Date)
	assert.InDelta(t, 1010.00, curve[1].Capital, 1e-9) // carried forward
	assert.InDelta(t, 1010.00, curve[2].Capital, 1e-9)
	assert.InDelta(t, 999.90, curve[3].Capital, 1e-9)
}

func TestSimulatorOnTradeReturnsBackfilledRows(t *testing.T) {
	s := NewSimulator("u1", 1000)

	first := tradeOn(2, models.StatusWin, 1.0)
	later := tradeOn(5, models.StatusLoss, -1.0)
	require.Len(t, s.OnTrade(&first), 1)

	// the quiet 3rd and 4th come back alongside the 5th so callers can
	// persist the whole gap
	snaps := s.OnTrade(&later)
	require.Len(t, snaps, 3)
	assert.Equal(t, time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC), snaps[0].Date)
	assert.Equal(t, time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC), snaps[1].Date)
	assert.Equal(t, time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC), snaps[2].Date)
	assert.InDelta(t, 1010.00, snaps[0].Capital, 1e-9)
	assert.InDelta(t, 1010.00, snaps[1].Capital, 1e-9)
	assert.InDelta(t, 999.90, snaps[2].Capital, 1e-9)
}

func TestSimulatorReplayIsDeterministic(t *testing.T) {
	trades := []models.Trade{
		tradeOn(2, models.StatusWin, 1.0),
		tradeOn(3, models.StatusLoss, -1.0),
		tradeOn(3, models.StatusWin, 2.0),
		tradeOn(7, models.StatusBreakeven, 0),
	}

	a := NewSimulator("u1", 1000)
	for i := range trades {
		a.OnTrade(&trades[i])
	}

	b := NewSimulator("u1", 1000)
	b.Replay(trades)

	assert.InDelta(t, a.Capital(), b.Capital(), 1e-12)
	assert.Equal(t, a.Curve(time.Time{}), b.Curve(time.Time{}))

	// replaying again on the same simulator changes nothing
	b.Replay(trades)
	assert.InDelta(t, a.Capital(), b.Capital(), 1e-12)
}

func TestSimulatorCurvePeriodFilter(t *testing.T) {
	s := NewSimulator("u1", 1000)
	first := tradeOn(2, models.StatusWin, 1.0)
	later := tradeOn(10, models.StatusWin, 1.0)
	s.OnTrade(&first)
	s.OnTrade(&later)

	since := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)
	curve := s.Curve(since)
	require.Len(t, curve, 2) // the 9th (backfilled) and the 10th
	assert.Equal(t, time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC), curve[0].Date)
}
