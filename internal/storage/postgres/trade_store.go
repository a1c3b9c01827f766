package postgres

import (
	"context"
	"fmt"
	"time"

	"SMCFlow/internal/domain/models"
	"SMCFlow/internal/domain/repository"
)

// TradeStore persists resolved trades, one row per signal.
type TradeStore struct {
	pool *Pool
}

func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ repository.TradeStore = (*TradeStore)(nil)

// Save inserts the resolution exactly once: a replayed resolution for the
// same signal id hits the primary key and is silently skipped.
func (s *TradeStore) Save(ctx context.Context, tr *models.Trade) error {
	query := `
		INSERT INTO trades (
			signal_id, asset, timeframe, model, direction, result, pnl_percent, opened_at, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (signal_id) DO NOTHING
	`

	_, err := s.pool.Exec(ctx, query,
		tr.SignalID,
		tr.Asset,
		string(tr.Timeframe),
		string(tr.Model),
		string(tr.Direction),
		string(tr.Result),
		tr.PnlPercent,
		tr.OpenedAt,
		tr.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("save trade: %w", err)
	}
	return nil
}

// List returns trades closed at or after since, chronologically.
func (s *TradeStore) List(ctx context.Context, since time.Time) ([]models.Trade, error) {
	query := `
		SELECT signal_id, asset, timeframe, model, direction, result, pnl_percent, opened_at, closed_at
		FROM trades
		WHERE closed_at >= $1
		ORDER BY closed_at ASC, signal_id ASC
	`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var out []models.Trade
	for rows.Next() {
		var tr models.Trade
		var tf, model, direction, result string

		err := rows.Scan(
			&tr.SignalID,
			&tr.Asset,
			&tf,
			&model,
			&direction,
			&result,
			&tr.PnlPercent,
			&tr.OpenedAt,
			&tr.ClosedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}

		tr.Timeframe = models.Timeframe(tf)
		tr.Model = models.SMCModel(model)
		tr.Direction = models.Direction(direction)
		tr.Result = models.SignalStatus(result)
		tr.Holding = tr.ClosedAt.Sub(tr.OpenedAt)
		out = append(out, tr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return out, nil
}
