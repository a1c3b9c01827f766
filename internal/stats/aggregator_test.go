package stats

import (
	"testing"
	"time"

	"SMCFlow/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

func resolved(daysAgo int, asset string, model models.SMCModel, result models.SignalStatus, pnl float64) models.Trade {
	return models.Trade{
		SignalID:   "s",
		Asset:      asset,
		Model:      model,
		Result:     result,
		PnlPercent: pnl,
		ClosedAt:   now.AddDate(0, 0, -daysAgo),
	}
}

func TestStreaksWinWinLossWin(t *testing.T) {
	trades := []models.Trade{
		resolved(4, "EURUSD", models.ModelBreakOfStructure, models.StatusWin, 1),
		resolved(3, "EURUSD", models.ModelBreakOfStructure, models.StatusWin, 1),
		resolved(2, "EURUSD", models.ModelBreakOfStructure, models.StatusLoss, -1),
		resolved(1, "EURUSD", models.ModelBreakOfStructure, models.StatusWin, 1),
	}

	s := Streaks(trades)
	assert.Equal(t, 2, s.Best)
	assert.Equal(t, 1, s.Current)
	assert.Equal(t, -1, s.Worst)
}

func TestStreaksBreakevenPausesWithoutReset(t *testing.T) {
	trades := []models.Trade{
		resolved(4, "EURUSD", models.ModelFVGFill, models.StatusWin, 1),
		resolved(3, "EURUSD", models.ModelFVGFill, models.StatusBreakeven, 0),
		resolved(2, "EURUSD", models.ModelFVGFill, models.StatusWin, 1),
	}

	s := Streaks(trades)
	assert.Equal(t, 2, s.Current)
	assert.Equal(t, 2, s.Best)
}

func TestComputeWinRateExcludesBreakeven(t *testing.T) {
	trades := []models.Trade{
		resolved(3, "EURUSD", models.ModelFVGFill, models.StatusWin, 1),
		resolved(2, "EURUSD", models.ModelFVGFill, models.StatusLoss, -1),
		resolved(1, "EURUSD", models.ModelFVGFill, models.StatusBreakeven, 0),
	}

	r := Compute(trades, models.PeriodAll, now)
	assert.Equal(t, 3, r.Overall.Trades)
	assert.InDelta(t, 0.5, r.Overall.WinRate, 1e-9)
	assert.Equal(t, 1, r.Overall.Breakeven)
}

func TestComputeProfitFactor(t *testing.T) {
	trades := []models.Trade{
		resolved(3, "EURUSD", models.ModelFVGFill, models.StatusWin, 2),
		resolved(2, "EURUSD", models.ModelFVGFill, models.StatusWin, 1),
		resolved(1, "EURUSD", models.ModelFVGFill, models.StatusLoss, -1.5),
	}

	r := Compute(trades, models.PeriodAll, now)
	assert.InDelta(t, 2.0, r.Overall.ProfitFactor, 1e-9) // 3 / 1.5
}

func TestComputeProfitFactorNoLossesSentinel(t *testing.T) {
	trades := []models.Trade{
		resolved(2, "EURUSD", models.ModelFVGFill, models.StatusWin, 1),
		resolved(1, "EURUSD", models.ModelFVGFill, models.StatusWin, 2),
	}

	r := Compute(trades, models.PeriodAll, now)
	assert.Equal(t, models.ProfitFactorNoLosses, r.Overall.ProfitFactor)
}

func TestComputePeriodScoping(t *testing.T) {
	trades := []models.Trade{
		resolved(30, "EURUSD", models.ModelFVGFill, models.StatusLoss, -1),
		resolved(2, "EURUSD", models.ModelFVGFill, models.StatusWin, 1),
	}

	r := Compute(trades, models.Period7d, now)
	assert.Equal(t, 1, r.Overall.Trades)
	assert.Equal(t, 1, r.Overall.Wins)
	require.Len(t, r.Trades, 1)
}

func TestComputeGroupings(t *testing.T) {
	trades := []models.Trade{
		resolved(4, "EURUSD", models.ModelBreakOfStructure, models.StatusWin, 1),
		resolved(3, "BTCUSD", models.ModelFVGFill, models.StatusLoss, -1),
		resolved(2, "EURUSD", models.ModelFVGFill, models.StatusWin, 2),
	}

	r := Compute(trades, models.PeriodAll, now)

	require.Len(t, r.ByAsset, 2)
	assert.Equal(t, "BTCUSD", r.ByAsset[0].Key) // sorted keys
	assert.Equal(t, 1, r.ByAsset[0].Trades)
	assert.Equal(t, "EURUSD", r.ByAsset[1].Key)
	assert.Equal(t, 2, r.ByAsset[1].Trades)

	require.Len(t, r.ByModel, 2)
	var fvg models.StatsBucket
	for _, b := range r.ByModel {
		if b.Key == string(models.ModelFVGFill) {
			fvg = b
		}
	}
	assert.Equal(t, 2, fvg.Trades)
	assert.InDelta(t, 2.0, fvg.BestTrade, 1e-9)
	assert.InDelta(t, -1.0, fvg.WorstTrade, 1e-9)
}

func TestComputeEmptyLogYieldsEmptyReport(t *testing.T) {
	r := Compute(nil, models.PeriodAll, now)
	assert.Zero(t, r.Overall.Trades)
	assert.Zero(t, r.Overall.WinRate)
	assert.Zero(t, r.Overall.ProfitFactor)
	assert.Empty(t, r.ByModel)
	assert.Empty(t, r.Trades)
}

func TestComputeTradesAreChronological(t *testing.T) {
	trades := []models.Trade{
		resolved(1, "EURUSD", models.ModelFVGFill, models.StatusWin, 1),
		resolved(5, "EURUSD", models.ModelFVGFill, models.StatusLoss, -1),
		resolved(3, "EURUSD", models.ModelFVGFill, models.StatusWin, 1),
	}

	r := Compute(trades, models.PeriodAll, now)
	require.Len(t, r.Trades, 3)
	assert.True(t, r.Trades[0].ClosedAt.Before(r.Trades[1].ClosedAt))
	assert.True(t, r.Trades[1].ClosedAt.Before(r.Trades[2].ClosedAt))
}
