package strategy

import (
	"testing"
	"time"

	"SMCFlow/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func tfCandle(i int, o, h, l, c float64) *models.Candle {
	return &models.Candle{
		Asset:     "EURUSD",
		Timeframe: models.TF15m,
		OpenTime:  t0.Add(time.Duration(i) * 15 * time.Minute),
		Open:      o,
		High:      h,
		Low:       l,
		Close:     c,
	}
}

func blockStructure(i int) *models.MarketStructure {
	return &models.MarketStructure{
		Asset:     "EURUSD",
		Timeframe: models.TF15m,
		UpdatedAt: t0.Add(time.Duration(i) * 15 * time.Minute),
		ATR:       0.02,
		Blocks: []models.OrderBlock{
			{Time: t0, High: 1.01, Low: 1.00, Direction: models.Long},
		},
	}
}

func TestMachineOrderBlockRetestEmits(t *testing.T) {
	m := NewMachine("EURUSD", models.TF15m, models.ModelOrderBlockRetest)
	require.Equal(t, StateWaitingSetup, m.State())

	// candle trades into the block: setup detected, nothing emitted yet
	draft := m.Step(blockStructure(0), tfCandle(0, 1.02, 1.025, 1.005, 1.012), true)
	assert.Nil(t, draft)
	assert.Equal(t, StateSetupDetected, m.State())

	// rejection wick closing back above the block confirms and emits
	draft = m.Step(blockStructure(1), tfCandle(1, 1.008, 1.02, 0.996, 1.018), true)
	require.NotNil(t, draft)
	assert.Equal(t, StateEmitted, m.State())

	assert.Equal(t, models.Long, draft.Direction)
	assert.InDelta(t, 1.018, draft.Entry, 1e-9)
	assert.InDelta(t, 0.998, draft.Stop, 1e-9) // zone low minus 0.1*ATR buffer
	require.Len(t, draft.Targets, 2)
	assert.InDelta(t, 1.038, draft.Targets[0], 1e-9)
	assert.InDelta(t, 1.058, draft.Targets[1], 1e-9)
	assert.Greater(t, draft.Confidence, 0.0)
}

func TestMachineConfirmationNeedsLaterCandle(t *testing.T) {
	m := NewMachine("EURUSD", models.TF15m, models.ModelOrderBlockRetest)

	// even a perfect rejection candle cannot both detect and confirm
	c := tfCandle(0, 1.008, 1.02, 0.996, 1.018)
	draft := m.Step(blockStructure(0), c, true)
	assert.Nil(t, draft)
	assert.Equal(t, StateSetupDetected, m.State())
}

func TestMachineInvalidatedOnCloseThroughZone(t *testing.T) {
	m := NewMachine("EURUSD", models.TF15m, models.ModelOrderBlockRetest)

	m.Step(blockStructure(0), tfCandle(0, 1.02, 1.025, 1.005, 1.012), true)
	require.Equal(t, StateSetupDetected, m.State())

	// full close below the block kills the setup
	draft := m.Step(blockStructure(1), tfCandle(1, 1.01, 1.012, 0.98, 0.985), true)
	assert.Nil(t, draft)
	assert.Equal(t, StateInvalidated, m.State())

	// the machine recovers on the next candle and can arm a fresh setup
	m.Step(blockStructure(2), tfCandle(2, 1.02, 1.025, 1.005, 1.012), true)
	assert.Equal(t, StateSetupDetected, m.State())
}

func TestMachineCooldownBlocksSetupDetection(t *testing.T) {
	m := NewMachine("EURUSD", models.TF15m, models.ModelOrderBlockRetest)

	draft := m.Step(blockStructure(0), tfCandle(0, 1.02, 1.025, 1.005, 1.012), false)
	assert.Nil(t, draft)
	assert.Equal(t, StateWaitingSetup, m.State())
}

func TestMachineBreakOfStructure(t *testing.T) {
	ms := &models.MarketStructure{
		Asset:      "EURUSD",
		Timeframe:  models.TF15m,
		ATR:        0.02,
		SwingHighs: []models.SwingPoint{{Time: t0, Price: 1.10}},
	}
	m := NewMachine("EURUSD", models.TF15m, models.ModelBreakOfStructure)

	m.Step(ms, tfCandle(0, 1.08, 1.12, 1.07, 1.11), true)
	require.Equal(t, StateSetupDetected, m.State())

	draft := m.Step(ms, tfCandle(1, 1.11, 1.14, 1.10, 1.13), true)
	require.NotNil(t, draft)
	assert.Equal(t, models.Long, draft.Direction)
	assert.True(t, draft.Model.Trailing())
	assert.InDelta(t, 1.13, draft.Entry, 1e-9)
	assert.InDelta(t, 1.098, draft.Stop, 1e-9) // broken level minus buffer
}

func TestMachineSweepReversal(t *testing.T) {
	ms := &models.MarketStructure{
		Asset:     "EURUSD",
		Timeframe: models.TF15m,
		ATR:       0.02,
		Sweep: &models.LiquiditySweep{
			Time:      t0,
			Level:     1.00,
			Extreme:   0.98,
			Direction: models.Long,
		},
	}
	m := NewMachine("EURUSD", models.TF15m, models.ModelSweepReversal)

	m.Step(ms, tfCandle(0, 0.99, 1.00, 0.985, 0.992), true)
	require.Equal(t, StateSetupDetected, m.State())

	// close above the swept range midpoint (0.99) confirms
	draft := m.Step(ms, tfCandle(1, 0.992, 1.01, 0.99, 1.005), true)
	require.NotNil(t, draft)
	assert.Equal(t, models.Long, draft.Direction)
}

func TestMachineIgnoresStaleSweep(t *testing.T) {
	ms := &models.MarketStructure{
		Asset:     "EURUSD",
		Timeframe: models.TF15m,
		ATR:       0.02,
		Sweep: &models.LiquiditySweep{
			Time:      t0.Add(-2 * time.Hour), // far older than sweepMaxAge candles
			Level:     1.00,
			Extreme:   0.98,
			Direction: models.Long,
		},
	}
	m := NewMachine("EURUSD", models.TF15m, models.ModelSweepReversal)

	m.Step(ms, tfCandle(0, 0.99, 1.00, 0.985, 0.992), true)
	assert.Equal(t, StateWaitingSetup, m.State())
}
