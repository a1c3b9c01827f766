package usecase

import (
	"context"
	"testing"
	"time"

	"SMCFlow/internal/domain/models"
	"SMCFlow/internal/domain/repository"
	pkgcache "SMCFlow/pkg/cache"
	"SMCFlow/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReportingFixture(t *testing.T) (*ReportingUseCase, *engineFixture) {
	t.Helper()
	f := newEngineFixture(t, []*models.UserPlan{{UserID: "u1", DailySignalQuota: 10}})
	uc := NewReportingUseCase(
		f.engine, f.signals, f.trades, f.grants, f.equity,
		logger.Nop(), repository.NopMetrics{},
	)
	return uc, f
}

func resolveOneWin(t *testing.T, f *engineFixture) *models.Signal {
	t.Helper()
	for _, c := range breakoutCandles() {
		f.engine.step("EURUSD", c)
	}
	require.Len(t, f.pub.published, 1)
	f.engine.step("EURUSD", engineCandle(7, 1.12, 1.20, 1.11, 1.19))
	return f.pub.published[0]
}

func TestReportingSummaryAfterWin(t *testing.T) {
	uc, f := newReportingFixture(t)
	resolveOneWin(t, f)

	sum := uc.Summary(context.Background(), "u1")
	assert.Equal(t, "u1", sum.UserID)
	assert.InDelta(t, 1010.00, sum.CurrentCapital, 1e-9)
	assert.InDelta(t, 1.0, sum.ROI, 1e-9)
	assert.Equal(t, 1, sum.BestStreak)
	assert.Equal(t, 0, sum.WorstStreak)
}

func TestReportingSummaryUnknownUserIsEmpty(t *testing.T) {
	uc, _ := newReportingFixture(t)

	sum := uc.Summary(context.Background(), "ghost")
	assert.Equal(t, "ghost", sum.UserID)
	assert.Zero(t, sum.CurrentCapital)
	assert.Zero(t, sum.BestStreak)
}

func TestReportingReportScopesToGrantedTrades(t *testing.T) {
	uc, f := newReportingFixture(t)
	sig := resolveOneWin(t, f)

	// a resolved trade the user was never granted must not appear
	require.NoError(t, f.trades.Save(context.Background(), &models.Trade{
		SignalID:   "other-signal",
		Asset:      "BTCUSD",
		Model:      models.ModelFVGFill,
		Result:     models.StatusLoss,
		PnlPercent: -1.0,
		OpenedAt:   t0,
		ClosedAt:   t0.Add(time.Hour),
	}))

	report := uc.Report(context.Background(), "u1", models.PeriodAll)
	assert.Equal(t, 1, report.Overall.Trades)
	assert.Equal(t, 1, report.Overall.Wins)
	require.Len(t, report.Trades, 1)
	assert.Equal(t, sig.ID, report.Trades[0].SignalID)
}

func TestReportingReportUsesCache(t *testing.T) {
	uc, f := newReportingFixture(t)
	resolveOneWin(t, f)
	uc.SetCache(pkgcache.NewMemoryCache())

	first := uc.Report(context.Background(), "u1", models.PeriodAll)
	require.Equal(t, 1, first.Overall.Trades)

	// new trades within the TTL are not visible; the cached report is served
	require.NoError(t, f.grants.Save(context.Background(), "u1", "late-signal"))
	require.NoError(t, f.trades.Save(context.Background(), &models.Trade{
		SignalID:   "late-signal",
		Asset:      "EURUSD",
		Model:      models.ModelBreakOfStructure,
		Result:     models.StatusLoss,
		PnlPercent: -1.0,
		OpenedAt:   t0,
		ClosedAt:   t0.Add(time.Hour),
	}))
	second := uc.Report(context.Background(), "u1", models.PeriodAll)
	assert.Equal(t, 1, second.Overall.Trades)
}

func TestReportingEquityCurve(t *testing.T) {
	uc, f := newReportingFixture(t)
	resolveOneWin(t, f)

	curve := uc.EquityCurve(context.Background(), "u1", models.PeriodAll)
	require.Len(t, curve, 1)
	assert.InDelta(t, 1010.00, curve[0].Capital, 1e-9)
}

func TestReportingCloseSignalUnknownID(t *testing.T) {
	uc, _ := newReportingFixture(t)

	err := uc.CloseSignal(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownSignal)
}

func TestReportingCloseSignalOpen(t *testing.T) {
	uc, f := newReportingFixture(t)
	for _, c := range breakoutCandles() {
		f.engine.step("EURUSD", c)
	}
	require.Len(t, f.pub.published, 1)
	sig := f.pub.published[0]

	require.NoError(t, uc.CloseSignal(context.Background(), sig.ID))
	assert.Empty(t, uc.OpenSignals())

	trades, err := f.trades.List(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, models.StatusBreakeven, trades[0].Result)
}
