// Package stats computes the grouped performance view over the trade log.
// Everything here is a pure function of (trades, period, now); there are no
// carried counters, so any report can be rebuilt by replay.
package stats

import (
	"sort"
	"time"

	"SMCFlow/internal/domain/models"
)

// Compute scopes the trade log to the period and aggregates it. Trades must
// be resolved (WIN/LOSS/BREAKEVEN); the caller filters out expired and
// rejected signals. The input order does not matter, the scan sorts by close
// time before streak computation.
func Compute(trades []models.Trade, period models.Period, now time.Time) *models.Report {
	cutoff := period.Cutoff(now)

	scoped := make([]models.Trade, 0, len(trades))
	for _, tr := range trades {
		if !cutoff.IsZero() && tr.ClosedAt.Before(cutoff) {
			continue
		}
		scoped = append(scoped, tr)
	}
	sort.Slice(scoped, func(i, j int) bool { return scoped[i].ClosedAt.Before(scoped[j].ClosedAt) })

	return &models.Report{
		Period:    period,
		Overall:   bucket("overall", scoped),
		Streaks:   Streaks(scoped),
		ByModel:   group(scoped, func(t *models.Trade) string { return string(t.Model) }),
		ByAsset:   group(scoped, func(t *models.Trade) string { return t.Asset }),
		ByWeekday: group(scoped, func(t *models.Trade) string { return t.ClosedAt.UTC().Weekday().String() }),
		Trades:    scoped,
	}
}

// Streaks scans chronologically ordered trades. Wins extend a positive run,
// losses extend a negative one, breakeven pauses the counter without
// resetting it.
func Streaks(trades []models.Trade) models.StreakSummary {
	var s models.StreakSummary
	for _, tr := range trades {
		switch tr.Result {
		case models.StatusWin:
			if s.Current < 0 {
				s.Current = 0
			}
			s.Current++
		case models.StatusLoss:
			if s.Current > 0 {
				s.Current = 0
			}
			s.Current--
		default:
			continue
		}
		if s.Current > s.Best {
			s.Best = s.Current
		}
		if s.Current < s.Worst {
			s.Worst = s.Current
		}
	}
	return s
}

func group(trades []models.Trade, keyOf func(*models.Trade) string) []models.StatsBucket {
	byKey := make(map[string][]models.Trade)
	for i := range trades {
		k := keyOf(&trades[i])
		byKey[k] = append(byKey[k], trades[i])
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]models.StatsBucket, 0, len(keys))
	for _, k := range keys {
		out = append(out, bucket(k, byKey[k]))
	}
	return out
}

func bucket(key string, trades []models.Trade) models.StatsBucket {
	b := models.StatsBucket{Key: key}
	var grossWin, grossLoss float64

	for _, tr := range trades {
		b.Trades++
		b.PnlSum += tr.PnlPercent

		switch tr.Result {
		case models.StatusWin:
			b.Wins++
		case models.StatusLoss:
			b.Losses++
		case models.StatusBreakeven:
			b.Breakeven++
		}
		if tr.PnlPercent > 0 {
			grossWin += tr.PnlPercent
		} else {
			grossLoss += -tr.PnlPercent
		}
		if b.Trades == 1 || tr.PnlPercent > b.BestTrade {
			b.BestTrade = tr.PnlPercent
		}
		if b.Trades == 1 || tr.PnlPercent < b.WorstTrade {
			b.WorstTrade = tr.PnlPercent
		}
	}

	if decided := b.Wins + b.Losses; decided > 0 {
		b.WinRate = float64(b.Wins) / float64(decided)
	}
	switch {
	case grossLoss > 0:
		b.ProfitFactor = grossWin / grossLoss
	case grossWin > 0:
		b.ProfitFactor = models.ProfitFactorNoLosses
	}
	if b.Wins > 0 {
		b.AvgWin = grossWin / float64(b.Wins)
	}
	if b.Losses > 0 {
		b.AvgLoss = grossLoss / float64(b.Losses)
	}
	return b
}
