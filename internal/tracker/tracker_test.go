package tracker

import (
	"testing"
	"time"

	"SMCFlow/internal/domain/models"
	"SMCFlow/internal/domain/repository"
	"SMCFlow/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

type capture struct {
	signals []*models.Signal
	trades  []*models.Trade
}

func (c *capture) sink(s *models.Signal, trade *models.Trade) {
	c.signals = append(c.signals, s)
	c.trades = append(c.trades, trade)
}

func newTestTracker(cfg Config) (*Tracker, *capture) {
	cap := &capture{}
	return New(cfg, cap.sink, logger.Nop(), repository.NopMetrics{}), cap
}

func longSignal(id string, model models.SMCModel) *models.Signal {
	return &models.Signal{
		ID:        id,
		Asset:     "EURUSD",
		Timeframe: models.TF15m,
		Model:     model,
		Direction: models.Long,
		Entry:     1.00,
		Stop:      0.99,
		Targets:   []float64{1.01, 1.02},
		CreatedAt: t0,
		Status:    models.StatusEmitted,
	}
}

func candleAt(i int, o, h, l, c float64) *models.Candle {
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

func TestTrackerResolvesWinAtTarget(t *testing.T) {
	tk, cap := newTestTracker(Config{RiskPercent: 1.0})
	s := longSignal("s1", models.ModelOrderBlockRetest)
	require.True(t, tk.Track(s))
	assert.Equal(t, models.StatusOpen, s.Status)

	tk.OnCandle(candleAt(1, 1.002, 1.012, 0.998, 1.011))

	require.Len(t, cap.trades, 1)
	tr := cap.trades[0]
	require.NotNil(t, tr)
	assert.Equal(t, models.StatusWin, tr.Result)
	assert.Equal(t, models.StatusWin, s.Status)
	assert.InDelta(t, 1.0, tr.PnlPercent, 1e-9) // first target sits at one risk unit
	assert.Equal(t, "s1", tr.SignalID)
	assert.Equal(t, 30*time.Minute, tr.Holding)
}

func TestTrackerResolvesLossAtStop(t *testing.T) {
	tk, cap := newTestTracker(Config{RiskPercent: 1.0})
	require.True(t, tk.Track(longSignal("s1", models.ModelOrderBlockRetest)))

	tk.OnCandle(candleAt(1, 0.998, 1.002, 0.985, 0.988))

	require.Len(t, cap.trades, 1)
	assert.Equal(t, models.StatusLoss, cap.trades[0].Result)
	assert.InDelta(t, -1.0, cap.trades[0].PnlPercent, 1e-9)
}

func TestTrackerStopWinsOverTargetWithinOneCandle(t *testing.T) {
	tk, cap := newTestTracker(Config{RiskPercent: 1.0})
	require.True(t, tk.Track(longSignal("s1", models.ModelOrderBlockRetest)))

	// candle spans both levels; the adverse path cannot be ruled out
	tk.OnCandle(candleAt(1, 1.00, 1.02, 0.985, 1.015))

	require.Len(t, cap.trades, 1)
	assert.Equal(t, models.StatusLoss, cap.trades[0].Result)
}

func TestTrackerResolutionIsExactlyOnce(t *testing.T) {
	tk, cap := newTestTracker(Config{RiskPercent: 1.0})
	require.True(t, tk.Track(longSignal("s1", models.ModelOrderBlockRetest)))

	hit := candleAt(1, 1.002, 1.012, 0.998, 1.011)
	tk.OnCandle(hit)
	tk.OnCandle(hit) // duplicate delivery
	tk.OnCandle(candleAt(2, 1.00, 1.03, 0.98, 1.02))

	assert.Len(t, cap.trades, 1)
	assert.Empty(t, tk.OpenSignals())
}

func TestTrackerRejectsDuplicateTrack(t *testing.T) {
	tk, _ := newTestTracker(Config{})
	require.True(t, tk.Track(longSignal("s1", models.ModelOrderBlockRetest)))
	assert.False(t, tk.Track(longSignal("s1", models.ModelOrderBlockRetest)))
}

func TestTrackerCloseFlat(t *testing.T) {
	tk, cap := newTestTracker(Config{RiskPercent: 1.0})
	require.True(t, tk.Track(longSignal("s1", models.ModelOrderBlockRetest)))

	at := t0.Add(time.Hour)
	require.True(t, tk.CloseFlat("s1", at))
	assert.False(t, tk.CloseFlat("s1", at)) // already resolved

	require.Len(t, cap.trades, 1)
	tr := cap.trades[0]
	assert.Equal(t, models.StatusBreakeven, tr.Result)
	assert.Zero(t, tr.PnlPercent)
	assert.Equal(t, at, tr.ClosedAt)
}

func TestTrackerMaxHoldingClosesFlat(t *testing.T) {
	tk, cap := newTestTracker(Config{RiskPercent: 1.0, MaxHolding: time.Hour})
	require.True(t, tk.Track(longSignal("s1", models.ModelOrderBlockRetest)))

	tk.OnCandle(candleAt(1, 1.00, 1.005, 0.995, 1.002)) // inside the range
	require.Empty(t, cap.trades)

	tk.OnCandle(candleAt(4, 1.00, 1.005, 0.995, 1.002)) // closes at t0+75m
	require.Len(t, cap.trades, 1)
	assert.Equal(t, models.StatusBreakeven, cap.trades[0].Result)
}

func TestTrackerExpiryRecordsNoTrade(t *testing.T) {
	tk, cap := newTestTracker(Config{RiskPercent: 1.0, Expiry: time.Hour})
	s := longSignal("s1", models.ModelOrderBlockRetest)
	require.True(t, tk.Track(s))

	tk.OnCandle(candleAt(4, 1.00, 1.005, 0.995, 1.002))

	require.Len(t, cap.signals, 1)
	assert.Nil(t, cap.trades[0])
	assert.Equal(t, models.StatusExpired, s.Status)
}

func TestTrackerTrailingStopRatchetsMonotonically(t *testing.T) {
	tk, _ := newTestTracker(Config{RiskPercent: 1.0})
	s := longSignal("s1", models.ModelBreakOfStructure)
	s.Targets = []float64{2.00} // far away so the trail drives the exit
	require.True(t, tk.Track(s))

	tk.OnCandle(candleAt(1, 1.001, 1.004, 0.999, 1.003))
	prev := s.Stop
	assert.InDelta(t, 0.994, prev, 1e-9) // high minus registration risk

	tk.OnCandle(candleAt(2, 1.003, 1.02, 1.001, 1.018))
	assert.Greater(t, s.Stop, prev)
	prev = s.Stop

	// a pullback candle that stays above the stop must not move it back
	tk.OnCandle(candleAt(3, 1.018, 1.019, 1.012, 1.013))
	assert.Equal(t, prev, s.Stop)
}

func TestTrackerTrailingExitAboveEntryIsWin(t *testing.T) {
	tk, cap := newTestTracker(Config{RiskPercent: 1.0})
	s := longSignal("s1", models.ModelBreakOfStructure)
	s.Targets = []float64{2.00}
	require.True(t, tk.Track(s))

	tk.OnCandle(candleAt(1, 1.001, 1.03, 1.000, 1.028)) // stop trails to 1.02
	require.InDelta(t, 1.02, s.Stop, 1e-9)

	tk.OnCandle(candleAt(2, 1.028, 1.029, 1.015, 1.016)) // fills the trailed stop

	require.Len(t, cap.trades, 1)
	tr := cap.trades[0]
	assert.Equal(t, models.StatusWin, tr.Result)
	assert.InDelta(t, 2.0, tr.PnlPercent, 1e-9) // exit two risk units above entry
}

func TestTrackerLossCappedAtRisk(t *testing.T) {
	tk, cap := newTestTracker(Config{RiskPercent: 1.0})
	require.True(t, tk.Track(longSignal("s1", models.ModelOrderBlockRetest)))

	// gap far through the stop; the loss still books at one risk unit
	tk.OnCandle(candleAt(1, 0.95, 0.96, 0.94, 0.945))

	require.Len(t, cap.trades, 1)
	assert.InDelta(t, -1.0, cap.trades[0].PnlPercent, 1e-9)
}

func TestTrackerIgnoresOtherAssets(t *testing.T) {
	tk, cap := newTestTracker(Config{RiskPercent: 1.0})
	require.True(t, tk.Track(longSignal("s1", models.ModelOrderBlockRetest)))

	c := candleAt(1, 1.002, 1.012, 0.998, 1.011)
	c.Asset = "BTCUSD"
	tk.OnCandle(c)

	assert.Empty(t, cap.trades)
	assert.Len(t, tk.OpenSignals(), 1)
}

func TestTrackerOnTickResolvesTarget(t *testing.T) {
	tk, cap := newTestTracker(Config{RiskPercent: 1.0})
	require.True(t, tk.Track(longSignal("s1", models.ModelOrderBlockRetest)))

	tk.OnTick("EURUSD", 1.005, t0.Add(5*time.Minute))
	assert.Empty(t, cap.trades)

	tk.OnTick("EURUSD", 1.011, t0.Add(10*time.Minute))

	require.Len(t, cap.trades, 1)
	assert.Equal(t, models.StatusWin, cap.trades[0].Result)
	assert.InDelta(t, 1.0, cap.trades[0].PnlPercent, 1e-9)
}
