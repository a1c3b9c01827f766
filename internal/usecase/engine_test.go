package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"SMCFlow/internal/domain/models"
	"SMCFlow/internal/domain/repository"
	"SMCFlow/internal/entitlement"
	"SMCFlow/internal/storage/memory"
	"SMCFlow/internal/strategy"
	"SMCFlow/internal/tracker"
	"SMCFlow/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

type capturePublisher struct {
	mu        sync.Mutex
	published []*models.Signal
}

func (p *capturePublisher) Publish(_ context.Context, s *models.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, s)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

type engineFixture struct {
	engine  *Engine
	pub     *capturePublisher
	signals *memory.SignalStore
	trades  *memory.TradeStore
	grants  *memory.GrantStore
	equity  *memory.EquityStore
}

func newEngineFixture(t *testing.T, plans []*models.UserPlan) *engineFixture {
	t.Helper()
	f := &engineFixture{
		pub:     &capturePublisher{},
		signals: memory.NewSignalStore(),
		trades:  memory.NewTradeStore(),
		grants:  memory.NewGrantStore(),
		equity:  memory.NewEquityStore(),
	}
	gate := entitlement.NewGate(entitlement.NewMemoryQuotaStore(), repository.NopMetrics{})
	f.engine = NewEngine(
		EngineConfig{
			Timeframes: []models.Timeframe{models.TF15m},
			Generator:  strategy.GeneratorConfig{Models: []models.SMCModel{models.ModelBreakOfStructure}},
			Tracker:    tracker.Config{RiskPercent: 1.0},
		},
		plans,
		gate,
		f.pub,
		EngineStores{Signals: f.signals, Trades: f.trades, Grants: f.grants, Equity: f.equity},
		logger.Nop(),
		repository.NopMetrics{},
	)
	require.NoError(t, f.engine.Start(context.Background()))
	t.Cleanup(f.engine.Stop)
	return f
}

func engineCandle(i int, o, h, l, c float64) *models.Candle {
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

// breakoutCandles builds a swing high at 1.10 and then breaks and holds
// above it, which walks the break-of-structure machine to emission.
func breakoutCandles() []*models.Candle {
	return []*models.Candle{
		engineCandle(0, 1.00, 1.005, 0.995, 1.00),
		engineCandle(1, 1.00, 1.05, 0.995, 1.04),
		engineCandle(2, 1.04, 1.10, 1.03, 1.09),
		engineCandle(3, 1.09, 1.095, 1.04, 1.05),
		engineCandle(4, 1.05, 1.055, 0.99, 1.00),
		engineCandle(5, 1.00, 1.12, 0.995, 1.11),
		engineCandle(6, 1.11, 1.13, 1.10, 1.12),
	}
}

func TestEngineEmitsAndTracksThroughFullChain(t *testing.T) {
	f := newEngineFixture(t, []*models.UserPlan{{UserID: "u1", DailySignalQuota: 10}})

	for _, c := range breakoutCandles() {
		f.engine.step("EURUSD", c)
	}

	require.Len(t, f.pub.published, 1)
	sig := f.pub.published[0]
	assert.Equal(t, models.ModelBreakOfStructure, sig.Model)
	assert.Equal(t, models.Long, sig.Direction)
	assert.Equal(t, models.StatusOpen, sig.Status)

	stored, err := f.signals.Get(context.Background(), sig.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, stored.Status)

	ids, err := f.grants.ListSignalIDs(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{sig.ID}, ids)

	require.Len(t, f.engine.OpenSignals(), 1)
}

func TestEngineResolutionUpdatesEquity(t *testing.T) {
	f := newEngineFixture(t, []*models.UserPlan{{UserID: "u1", DailySignalQuota: 10}})

	for _, c := range breakoutCandles() {
		f.engine.step("EURUSD", c)
	}
	require.Len(t, f.pub.published, 1)
	sig := f.pub.published[0]

	// run far above the first target without touching the stop
	f.engine.step("EURUSD", engineCandle(7, 1.12, 1.20, 1.11, 1.19))

	trades, err := f.trades.List(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, sig.ID, trades[0].SignalID)
	assert.Equal(t, models.StatusWin, trades[0].Result)
	assert.InDelta(t, 1.0, trades[0].PnlPercent, 1e-9)

	sim, ok := f.engine.Simulator("u1")
	require.True(t, ok)
	assert.InDelta(t, 1010.00, sim.Capital(), 1e-9)

	snaps, err := f.equity.List(context.Background(), "u1", time.Time{})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.InDelta(t, 1010.00, snaps[0].Capital, 1e-9)

	assert.Empty(t, f.engine.OpenSignals())
}

func TestEngineRejectedByAllUsersNeverReachesTracker(t *testing.T) {
	f := newEngineFixture(t, []*models.UserPlan{
		{UserID: "u1", AssetEntitlements: []string{"BTCUSD"}},
	})

	for _, c := range breakoutCandles() {
		f.engine.step("EURUSD", c)
	}

	assert.Empty(t, f.pub.published)
	assert.Empty(t, f.engine.OpenSignals())

	open, err := f.signals.ListOpen(context.Background())
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestEngineCloseFlat(t *testing.T) {
	f := newEngineFixture(t, []*models.UserPlan{{UserID: "u1"}})

	for _, c := range breakoutCandles() {
		f.engine.step("EURUSD", c)
	}
	require.Len(t, f.pub.published, 1)
	sig := f.pub.published[0]

	require.True(t, f.engine.CloseFlat(sig.ID))
	assert.False(t, f.engine.CloseFlat(sig.ID))

	trades, err := f.trades.List(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, models.StatusBreakeven, trades[0].Result)
}

func TestEngineResolutionPersistsQuietDayRows(t *testing.T) {
	f := newEngineFixture(t, []*models.UserPlan{{UserID: "u1", DailySignalQuota: 10}})

	grant := func(id string) {
		f.engine.mu.Lock()
		f.engine.granted[id] = []string{"u1"}
		f.engine.mu.Unlock()
	}
	closedAt := func(day int) time.Time {
		return time.Date(2025, 6, day, 14, 0, 0, 0, time.UTC)
	}

	grant("sig-a")
	f.engine.onClosed(
		&models.Signal{ID: "sig-a", Status: models.StatusWin},
		&models.Trade{SignalID: "sig-a", Asset: "EURUSD", Result: models.StatusWin, PnlPercent: 1.0, ClosedAt: closedAt(2)},
	)
	grant("sig-b")
	f.engine.onClosed(
		&models.Signal{ID: "sig-b", Status: models.StatusLoss},
		&models.Trade{SignalID: "sig-b", Asset: "EURUSD", Result: models.StatusLoss, PnlPercent: -1.0, ClosedAt: closedAt(5)},
	)

	// the stored curve has the quiet 3rd and 4th carried forward, matching
	// the in-memory simulation row for row
	snaps, err := f.equity.List(context.Background(), "u1", time.Time{})
	require.NoError(t, err)
	require.Len(t, snaps, 4)
	assert.Equal(t, time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC), snaps[1].Date)
	assert.InDelta(t, 1010.00, snaps[1].Capital, 1e-9)
	assert.InDelta(t, 1010.00, snaps[2].Capital, 1e-9)
	assert.InDelta(t, 999.90, snaps[3].Capital, 1e-9)

	sim, ok := f.engine.Simulator("u1")
	require.True(t, ok)
	assert.Equal(t, sim.Curve(time.Time{}), snaps)
}

func TestEngineProcessManyAssetsConcurrently(t *testing.T) {
	f := newEngineFixture(t, []*models.UserPlan{{UserID: "u1", DailySignalQuota: 100}})

	const assets = 32
	var wg sync.WaitGroup
	for i := 0; i < assets; i++ {
		asset := fmt.Sprintf("ASSET%02d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, c := range breakoutCandles() {
				cc := *c
				cc.Asset = asset
				_ = f.engine.Process(context.Background(), &cc)
			}
		}()
	}
	wg.Wait()

	// each asset's worker drains its queue independently
	require.Eventually(t, func() bool {
		return f.pub.count() == assets
	}, 5*time.Second, 10*time.Millisecond)

	assert.Len(t, f.engine.OpenSignals(), assets)
}
