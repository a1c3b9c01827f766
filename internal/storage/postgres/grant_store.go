package postgres

import (
	"context"
	"fmt"

	"SMCFlow/internal/domain/repository"
)

// GrantStore records which users received which signals.
type GrantStore struct {
	pool *Pool
}

func NewGrantStore(pool *Pool) *GrantStore {
	return &GrantStore{pool: pool}
}

// Compile-time interface check.
var _ repository.GrantStore = (*GrantStore)(nil)

// Save records one grant. Duplicate grants are fine, delivery retries
// must not fail here.
func (s *GrantStore) Save(ctx context.Context, userID, signalID string) error {
	query := `
		INSERT INTO signal_grants (user_id, signal_id)
		VALUES ($1, $2)
	`
	if _, err := s.pool.Exec(ctx, query, userID, signalID); err != nil {
		if isDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("save grant: %w", err)
	}
	return nil
}

// ListSignalIDs returns every signal granted to the user.
func (s *GrantStore) ListSignalIDs(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT signal_id FROM signal_grants
		WHERE user_id = $1
		ORDER BY granted_at ASC
	`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan grant row: %w", err)
		}
		out = append(out, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grant rows: %w", err)
	}

	return out, nil
}
