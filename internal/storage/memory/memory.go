// Package memory provides in-process store implementations with the same
// contracts as the postgres package. Used for standalone runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"SMCFlow/internal/domain/models"
	"SMCFlow/internal/domain/repository"
)

// SignalStore keeps signals in a map keyed by id.
type SignalStore struct {
	mu      sync.RWMutex
	signals map[string]*models.Signal
}

func NewSignalStore() *SignalStore {
	return &SignalStore{signals: make(map[string]*models.Signal)}
}

var _ repository.SignalStore = (*SignalStore)(nil)

func (s *SignalStore) Save(_ context.Context, sig *models.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sig
	s.signals[sig.ID] = &cp
	return nil
}

func (s *SignalStore) Get(_ context.Context, id string) (*models.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sig, ok := s.signals[id]
	if !ok {
		return nil, repository.ErrSignalNotFound
	}
	cp := *sig
	return &cp, nil
}

func (s *SignalStore) UpdateStatus(_ context.Context, id string, status models.SignalStatus, stop float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sig, ok := s.signals[id]
	if !ok || sig.Status.Terminal() {
		return nil
	}
	sig.Status = status
	sig.Stop = stop
	return nil
}

func (s *SignalStore) ListOpen(_ context.Context) ([]*models.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Signal
	for _, sig := range s.signals {
		if sig.Status == models.StatusOpen {
			cp := *sig
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// TradeStore keeps resolved trades keyed by signal id. A duplicate save is a
// no-op, matching the postgres primary-key behavior.
type TradeStore struct {
	mu     sync.RWMutex
	trades map[string]models.Trade
}

func NewTradeStore() *TradeStore {
	return &TradeStore{trades: make(map[string]models.Trade)}
}

var _ repository.TradeStore = (*TradeStore)(nil)

func (s *TradeStore) Save(_ context.Context, tr *models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.trades[tr.SignalID]; dup {
		return nil
	}
	s.trades[tr.SignalID] = *tr
	return nil
}

func (s *TradeStore) List(_ context.Context, since time.Time) ([]models.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Trade
	for _, tr := range s.trades {
		if tr.ClosedAt.Before(since) {
			continue
		}
		out = append(out, tr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ClosedAt.Equal(out[j].ClosedAt) {
			return out[i].SignalID < out[j].SignalID
		}
		return out[i].ClosedAt.Before(out[j].ClosedAt)
	})
	return out, nil
}

// GrantStore keeps per-user signal grants.
type GrantStore struct {
	mu     sync.RWMutex
	grants map[string][]string          // userID -> signal ids in grant order
	seen   map[string]map[string]bool   // userID -> signalID set
}

func NewGrantStore() *GrantStore {
	return &GrantStore{
		grants: make(map[string][]string),
		seen:   make(map[string]map[string]bool),
	}
}

var _ repository.GrantStore = (*GrantStore)(nil)

func (s *GrantStore) Save(_ context.Context, userID, signalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[userID] == nil {
		s.seen[userID] = make(map[string]bool)
	}
	if s.seen[userID][signalID] {
		return nil
	}
	s.seen[userID][signalID] = true
	s.grants[userID] = append(s.grants[userID], signalID)
	return nil
}

func (s *GrantStore) ListSignalIDs(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.grants[userID]))
	copy(out, s.grants[userID])
	return out, nil
}

// EquityStore keeps per-user snapshots keyed by (user, date).
type EquityStore struct {
	mu    sync.RWMutex
	snaps map[string]map[time.Time]models.EquitySnapshot
}

func NewEquityStore() *EquityStore {
	return &EquityStore{snaps: make(map[string]map[time.Time]models.EquitySnapshot)}
}

var _ repository.EquityStore = (*EquityStore)(nil)

func (s *EquityStore) Save(_ context.Context, snap *models.EquitySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snaps[snap.UserID] == nil {
		s.snaps[snap.UserID] = make(map[time.Time]models.EquitySnapshot)
	}
	s.snaps[snap.UserID][snap.Date] = *snap
	return nil
}

func (s *EquityStore) List(_ context.Context, userID string, since time.Time) ([]models.EquitySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.EquitySnapshot
	for _, snap := range s.snaps[userID] {
		if snap.Date.Before(since) {
			continue
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// CandleStore keeps candle history per (asset, timeframe), deduplicated by
// open time.
type CandleStore struct {
	mu      sync.RWMutex
	candles map[string]map[time.Time]*models.Candle
}

func NewCandleStore() *CandleStore {
	return &CandleStore{candles: make(map[string]map[time.Time]*models.Candle)}
}

var _ repository.CandleStore = (*CandleStore)(nil)

func (s *CandleStore) Init(_ context.Context) error { return nil }

func (s *CandleStore) Store(_ context.Context, c *models.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(c)
	return nil
}

func (s *CandleStore) StoreBatch(_ context.Context, candles []*models.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range candles {
		s.put(c)
	}
	return nil
}

func (s *CandleStore) put(c *models.Candle) {
	if c == nil {
		return
	}
	key := c.Asset + "|" + string(c.Timeframe)
	if s.candles[key] == nil {
		s.candles[key] = make(map[time.Time]*models.Candle)
	}
	cp := *c
	s.candles[key][c.OpenTime] = &cp
}

func (s *CandleStore) Query(_ context.Context, asset string, tf models.Timeframe, from, to time.Time, limit int) ([]*models.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Candle
	for _, c := range s.candles[asset+"|"+string(tf)] {
		if c.OpenTime.Before(from) || c.OpenTime.After(to) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime.Before(out[j].OpenTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *CandleStore) Health(_ context.Context) error { return nil }

func (s *CandleStore) Close() error { return nil }
