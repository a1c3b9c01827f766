package usecase

import (
	"context"
	"errors"
	"time"

	"SMCFlow/internal/domain/models"
	drepo "SMCFlow/internal/domain/repository"
	"SMCFlow/internal/stats"
	pkgcache "SMCFlow/pkg/cache"
	xlogger "SMCFlow/pkg/logger"
)

// ErrUnknownSignal is returned by CloseSignal for ids that are not open.
var ErrUnknownSignal = errors.New("signal not open")

const reportCacheTTL = 30 * time.Second

// ReportingUseCase serves the query side: summaries, grouped reports and
// equity curves. A store failure never fails the request; the caller gets
// empty aggregates and the error is logged and counted.
type ReportingUseCase struct {
	engine  *Engine
	signals drepo.SignalStore
	trades  drepo.TradeStore
	grants  drepo.GrantStore
	equity  drepo.EquityStore
	cache   pkgcache.Service
	logger  *xlogger.Logger
	metrics drepo.Metrics
}

func NewReportingUseCase(
	engine *Engine,
	signals drepo.SignalStore,
	trades drepo.TradeStore,
	grants drepo.GrantStore,
	equity drepo.EquityStore,
	lgr *xlogger.Logger,
	metrics drepo.Metrics,
) *ReportingUseCase {
	return &ReportingUseCase{
		engine:  engine,
		signals: signals,
		trades:  trades,
		grants:  grants,
		equity:  equity,
		logger:  lgr,
		metrics: metrics,
	}
}

// SetCache enables response caching for report queries.
func (uc *ReportingUseCase) SetCache(c pkgcache.Service) { uc.cache = c }

// Summary returns the condensed account view for one user.
func (uc *ReportingUseCase) Summary(ctx context.Context, userID string) *models.Summary {
	sum := &models.Summary{UserID: userID}

	if sim, ok := uc.engine.Simulator(userID); ok {
		sum.CurrentCapital = sim.Capital()
		sum.ROI = sim.ROI()
	} else if snaps, err := uc.equity.List(ctx, userID, time.Time{}); err == nil && len(snaps) > 0 {
		last := snaps[len(snaps)-1]
		sum.CurrentCapital = last.Capital
		sum.ROI = last.CumulativePnlPercent
	}

	streaks := stats.Streaks(uc.userTrades(ctx, userID))
	sum.BestStreak = streaks.Best
	sum.WorstStreak = streaks.Worst
	return sum
}

// Report returns the grouped statistics view scoped to the period.
func (uc *ReportingUseCase) Report(ctx context.Context, userID string, period models.Period) *models.Report {
	cacheKey := pkgcache.GenerateKeyWithParams("report", userID, period)
	if uc.cache != nil {
		var cached models.Report
		if err := uc.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached
		}
	}

	report := stats.Compute(uc.userTrades(ctx, userID), period, time.Now().UTC())

	if uc.cache != nil {
		if err := uc.cache.Set(ctx, cacheKey, report, reportCacheTTL); err != nil {
			uc.logger.Warn("report cache set failed", xlogger.Error(err))
		}
	}
	return report
}

// EquityCurve returns the user's snapshots within the period.
func (uc *ReportingUseCase) EquityCurve(ctx context.Context, userID string, period models.Period) []models.EquitySnapshot {
	cutoff := period.Cutoff(time.Now().UTC())

	if sim, ok := uc.engine.Simulator(userID); ok {
		return sim.Curve(cutoff)
	}

	snaps, err := uc.equity.List(ctx, userID, cutoff)
	if err != nil {
		uc.metrics.RecordError("reporting_equity")
		uc.logger.Error("equity curve query failed", xlogger.String("user", userID), xlogger.Error(err))
		return nil
	}
	return snaps
}

// OpenSignals lists signals currently under tracking.
func (uc *ReportingUseCase) OpenSignals() []*models.Signal {
	return uc.engine.OpenSignals()
}

// CloseSignal force-closes an open signal flat on user instruction.
func (uc *ReportingUseCase) CloseSignal(ctx context.Context, id string) error {
	if _, err := uc.signals.Get(ctx, id); err != nil {
		if errors.Is(err, drepo.ErrSignalNotFound) {
			return ErrUnknownSignal
		}
		// the store may be down; the tracker still knows the truth
		uc.logger.Warn("signal lookup failed", xlogger.String("id", id), xlogger.Error(err))
	}
	if !uc.engine.CloseFlat(id) {
		return ErrUnknownSignal
	}
	return nil
}

// userTrades returns the resolved trades granted to the user, oldest first.
func (uc *ReportingUseCase) userTrades(ctx context.Context, userID string) []models.Trade {
	ids, err := uc.grants.ListSignalIDs(ctx, userID)
	if err != nil {
		uc.metrics.RecordError("reporting_grants")
		uc.logger.Error("grant query failed", xlogger.String("user", userID), xlogger.Error(err))
		return nil
	}
	granted := make(map[string]bool, len(ids))
	for _, id := range ids {
		granted[id] = true
	}

	all, err := uc.trades.List(ctx, time.Time{})
	if err != nil {
		uc.metrics.RecordError("reporting_trades")
		uc.logger.Error("trade query failed", xlogger.String("user", userID), xlogger.Error(err))
		return nil
	}

	out := make([]models.Trade, 0, len(all))
	for _, tr := range all {
		if granted[tr.SignalID] {
			out = append(out, tr)
		}
	}
	return out
}
