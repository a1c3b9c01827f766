// Package equity runs the fixed-fractional capital simulation behind each
// user's equity curve. Snapshots are pure functions of the ordered trade
// log: replaying the same trades always rebuilds the same curve.
package equity

import (
	"sync"
	"time"

	"SMCFlow/internal/domain/models"
)

// DefaultStartingCapital is the simulation baseline.
const DefaultStartingCapital = 1000.0

// Simulator tracks one user's capital. All methods serialize on an internal
// lock; trade resolutions for the same user must apply atomically.
type Simulator struct {
	mu      sync.Mutex
	userID  string
	base    float64
	capital float64
	snaps   []models.EquitySnapshot // ascending by date, one per UTC day
}

func NewSimulator(userID string, startingCapital float64) *Simulator {
	if startingCapital <= 0 {
		startingCapital = DefaultStartingCapital
	}
	return &Simulator{userID: userID, base: startingCapital, capital: startingCapital}
}

// OnTrade compounds the trade's pnl into capital and returns every snapshot
// the trade produced or changed, in date order. Same-day trades fold into one
// snapshot; a jump over quiet days backfills them with carried-forward values
// so the curve has no holes, and those filler rows are returned too so
// callers can persist them.
func (s *Simulator) OnTrade(tr *models.Trade) []models.EquitySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(tr)
}

// Replay rebuilds the simulation from scratch out of an ordered trade log.
func (s *Simulator) Replay(trades []models.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.capital = s.base
	s.snaps = nil
	for i := range trades {
		s.apply(&trades[i])
	}
}

func (s *Simulator) apply(tr *models.Trade) []models.EquitySnapshot {
	s.capital *= 1 + tr.PnlPercent/100

	day := dayOf(tr.ClosedAt)
	snap := models.EquitySnapshot{
		UserID:               s.userID,
		Date:                 day,
		CumulativePnlPercent: (s.capital/s.base - 1) * 100,
		Capital:              s.capital,
	}

	n := len(s.snaps)
	switch {
	case n == 0:
		s.snaps = append(s.snaps, snap)
	case s.snaps[n-1].Date.Equal(day):
		s.snaps[n-1] = snap
	case s.snaps[n-1].Date.Before(day):
		fillers := s.backfill(day)
		s.snaps = append(s.snaps, snap)
		return append(fillers, snap)
	default:
		// a trade dated before the last snapshot would rewrite history;
		// fold it into the latest day instead of editing past snapshots
		snap.Date = s.snaps[n-1].Date
		s.snaps[n-1] = snap
	}
	return []models.EquitySnapshot{snap}
}

// backfill carries the previous close forward over days without trades and
// returns the filler rows it appended.
func (s *Simulator) backfill(until time.Time) []models.EquitySnapshot {
	last := s.snaps[len(s.snaps)-1]
	var fillers []models.EquitySnapshot
	for d := last.Date.Add(24 * time.Hour); d.Before(until); d = d.Add(24 * time.Hour) {
		filler := last
		filler.Date = d
		s.snaps = append(s.snaps, filler)
		fillers = append(fillers, filler)
	}
	return fillers
}

// Capital returns the current simulated capital.
func (s *Simulator) Capital() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capital
}

// ROI returns the cumulative return in percent over the starting capital.
func (s *Simulator) ROI() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (s.capital/s.base - 1) * 100
}

// Curve returns the snapshots on or after since.
func (s *Simulator) Curve(since time.Time) []models.EquitySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.EquitySnapshot, 0, len(s.snaps))
	for _, snap := range s.snaps {
		if snap.Date.Before(since) {
			continue
		}
		out = append(out, snap)
	}
	return out
}

func dayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
