package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"SMCFlow/internal/domain/models"
	"SMCFlow/internal/domain/repository"
)

// SignalStore persists signals keyed by id.
type SignalStore struct {
	pool *Pool
}

func NewSignalStore(pool *Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// Compile-time interface check.
var _ repository.SignalStore = (*SignalStore)(nil)

// Save upserts the signal row. Re-saving the same id refreshes status and
// stop, which keeps retries safe.
func (s *SignalStore) Save(ctx context.Context, sig *models.Signal) error {
	query := `
		INSERT INTO signals (
			id, asset, timeframe, model, direction, entry, stop, targets, confidence, created_at, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, stop = EXCLUDED.stop
	`

	_, err := s.pool.Exec(ctx, query,
		sig.ID,
		sig.Asset,
		string(sig.Timeframe),
		string(sig.Model),
		string(sig.Direction),
		sig.Entry,
		sig.Stop,
		sig.Targets,
		sig.Confidence,
		sig.CreatedAt,
		string(sig.Status),
	)
	if err != nil {
		return fmt.Errorf("save signal: %w", err)
	}
	return nil
}

// Get returns one signal by id, or repository.ErrSignalNotFound.
func (s *SignalStore) Get(ctx context.Context, id string) (*models.Signal, error) {
	query := `
		SELECT id, asset, timeframe, model, direction, entry, stop, targets, confidence, created_at, status
		FROM signals
		WHERE id = $1
	`

	var sig models.Signal
	var tf, model, direction, status string
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&sig.ID,
		&sig.Asset,
		&tf,
		&model,
		&direction,
		&sig.Entry,
		&sig.Stop,
		&sig.Targets,
		&sig.Confidence,
		&sig.CreatedAt,
		&status,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, repository.ErrSignalNotFound
		}
		return nil, fmt.Errorf("get signal: %w", err)
	}

	sig.Timeframe = models.Timeframe(tf)
	sig.Model = models.SMCModel(model)
	sig.Direction = models.Direction(direction)
	sig.Status = models.SignalStatus(status)
	return &sig, nil
}

// UpdateStatus moves a signal's lifecycle forward. Terminal rows are left
// untouched so a duplicate resolution is a no-op.
func (s *SignalStore) UpdateStatus(ctx context.Context, id string, status models.SignalStatus, stop float64) error {
	query := `
		UPDATE signals SET status = $2, stop = $3
		WHERE id = $1 AND status IN ('EMITTED', 'OPEN')
	`
	_, err := s.pool.Exec(ctx, query, id, string(status), stop)
	if err != nil {
		return fmt.Errorf("update signal status: %w", err)
	}
	return nil
}

// ListOpen returns the signals that survived a restart and still need
// tracking.
func (s *SignalStore) ListOpen(ctx context.Context) ([]*models.Signal, error) {
	query := `
		SELECT id, asset, timeframe, model, direction, entry, stop, targets, confidence, created_at, status
		FROM signals
		WHERE status = 'OPEN'
		ORDER BY created_at ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list open signals: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

func scanSignals(rows pgx.Rows) ([]*models.Signal, error) {
	var out []*models.Signal

	for rows.Next() {
		var sig models.Signal
		var tf, model, direction, status string

		err := rows.Scan(
			&sig.ID,
			&sig.Asset,
			&tf,
			&model,
			&direction,
			&sig.Entry,
			&sig.Stop,
			&sig.Targets,
			&sig.Confidence,
			&sig.CreatedAt,
			&status,
		)
		if err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}

		sig.Timeframe = models.Timeframe(tf)
		sig.Model = models.SMCModel(model)
		sig.Direction = models.Direction(direction)
		sig.Status = models.SignalStatus(status)
		out = append(out, &sig)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signal rows: %w", err)
	}

	return out, nil
}
