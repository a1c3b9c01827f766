package postgres

import (
	"context"
	"fmt"
	"time"

	"SMCFlow/internal/domain/models"
	"SMCFlow/internal/domain/repository"
)

// EquityStore persists per-user equity snapshots.
type EquityStore struct {
	pool *Pool
}

func NewEquityStore(pool *Pool) *EquityStore {
	return &EquityStore{pool: pool}
}

// Compile-time interface check.
var _ repository.EquityStore = (*EquityStore)(nil)

// Save upserts the (user, date) snapshot. Same-day trades compound, so the
// latest write for the day wins.
func (s *EquityStore) Save(ctx context.Context, snap *models.EquitySnapshot) error {
	query := `
		INSERT INTO equity_snapshots (user_id, date, cumulative_pnl_percent, capital)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, date) DO UPDATE SET
			cumulative_pnl_percent = EXCLUDED.cumulative_pnl_percent,
			capital = EXCLUDED.capital
	`
	_, err := s.pool.Exec(ctx, query, snap.UserID, snap.Date, snap.CumulativePnlPercent, snap.Capital)
	if err != nil {
		return fmt.Errorf("save equity snapshot: %w", err)
	}
	return nil
}

// List returns the user's snapshots on or after since, ascending by date.
func (s *EquityStore) List(ctx context.Context, userID string, since time.Time) ([]models.EquitySnapshot, error) {
	query := `
		SELECT user_id, date, cumulative_pnl_percent, capital
		FROM equity_snapshots
		WHERE user_id = $1 AND date >= $2
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("list equity snapshots: %w", err)
	}
	defer rows.Close()

	var out []models.EquitySnapshot
	for rows.Next() {
		var snap models.EquitySnapshot
		if err := rows.Scan(&snap.UserID, &snap.Date, &snap.CumulativePnlPercent, &snap.Capital); err != nil {
			return nil, fmt.Errorf("scan equity row: %w", err)
		}
		out = append(out, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate equity rows: %w", err)
	}

	return out, nil
}
