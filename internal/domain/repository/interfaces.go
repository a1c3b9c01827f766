package repository

import (
	"context"
	"errors"
	"time"

	"SMCFlow/internal/domain/models"
)

// ErrSignalNotFound is returned by SignalStore.Get for unknown ids.
var ErrSignalNotFound = errors.New("signal not found")

// CandleStream is a live feed of closed candles for the configured assets.
type CandleStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Candle, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// CandleStore persists the candle history. Writes must be idempotent under
// retry: storing the same (asset, timeframe, open time) twice is safe.
type CandleStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, c *models.Candle) error
	StoreBatch(ctx context.Context, candles []*models.Candle) error
	Query(ctx context.Context, asset string, tf models.Timeframe, from, to time.Time, limit int) ([]*models.Candle, error)
	Health(ctx context.Context) error
	Close() error
}

// SignalPublisher hands emitted signals to the external distribution
// channels (messaging, push) via the emission contract.
type SignalPublisher interface {
	Publish(ctx context.Context, s *models.Signal) error
	Close() error
}

// SignalStore persists signal records keyed by id.
type SignalStore interface {
	Save(ctx context.Context, s *models.Signal) error
	Get(ctx context.Context, id string) (*models.Signal, error)
	UpdateStatus(ctx context.Context, id string, status models.SignalStatus, stop float64) error
	ListOpen(ctx context.Context) ([]*models.Signal, error)
}

// TradeStore persists resolved trades keyed by signal id. Saving the same
// resolution twice must be a no-op.
type TradeStore interface {
	Save(ctx context.Context, t *models.Trade) error
	List(ctx context.Context, since time.Time) ([]models.Trade, error)
}

// GrantStore records which users a signal was distributed to after passing
// the entitlement gate.
type GrantStore interface {
	Save(ctx context.Context, userID, signalID string) error
	ListSignalIDs(ctx context.Context, userID string) ([]string, error)
}

// EquityStore persists per-user equity snapshots keyed by (user, date).
type EquityStore interface {
	Save(ctx context.Context, snap *models.EquitySnapshot) error
	List(ctx context.Context, userID string, since time.Time) ([]models.EquitySnapshot, error)
}

// QuotaStore tracks per-user daily signal quotas. Take atomically consumes
// one unit for the given day and reports whether the quota allowed it.
type QuotaStore interface {
	Take(ctx context.Context, userID, day string, limit int) (bool, error)
}

// Metrics records operational measurements.
type Metrics interface {
	RecordCandle(asset, timeframe string)
	RecordInvalidCandle(reason string)
	RecordSignal(model, status string)
	RecordResolution(result string)
	RecordError(kind string)
	RecordLastPrice(asset string, price float64)
	RecordLatency(op string, seconds float64)
}

// NopMetrics discards all measurements. Used when metrics are disabled and
// in tests.
type NopMetrics struct{}

func (NopMetrics) RecordCandle(asset, timeframe string)       {}
func (NopMetrics) RecordInvalidCandle(reason string)          {}
func (NopMetrics) RecordSignal(model, status string)          {}
func (NopMetrics) RecordResolution(result string)             {}
func (NopMetrics) RecordError(kind string)                    {}
func (NopMetrics) RecordLastPrice(asset string, price float64) {}
func (NopMetrics) RecordLatency(op string, seconds float64)   {}
