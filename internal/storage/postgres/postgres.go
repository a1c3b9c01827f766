// Package postgres implements the signal, trade, grant and equity stores on
// PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
}

// NewPool creates a new Postgres connection pool.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

// InitSchema creates the tables when missing. Statements are idempotent.
func (p *Pool) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id          TEXT PRIMARY KEY,
			asset       TEXT NOT NULL,
			timeframe   TEXT NOT NULL,
			model       TEXT NOT NULL,
			direction   TEXT NOT NULL,
			entry       DOUBLE PRECISION NOT NULL,
			stop        DOUBLE PRECISION NOT NULL,
			targets     DOUBLE PRECISION[] NOT NULL,
			confidence  DOUBLE PRECISION NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL,
			status      TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			signal_id   TEXT PRIMARY KEY REFERENCES signals(id),
			asset       TEXT NOT NULL,
			timeframe   TEXT NOT NULL,
			model       TEXT NOT NULL,
			direction   TEXT NOT NULL,
			result      TEXT NOT NULL,
			pnl_percent DOUBLE PRECISION NOT NULL,
			opened_at   TIMESTAMPTZ NOT NULL,
			closed_at   TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS signal_grants (
			user_id    TEXT NOT NULL,
			signal_id  TEXT NOT NULL REFERENCES signals(id),
			granted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, signal_id)
		)`,
		`CREATE TABLE IF NOT EXISTS equity_snapshots (
			user_id                TEXT NOT NULL,
			date                   DATE NOT NULL,
			cumulative_pnl_percent DOUBLE PRECISION NOT NULL,
			capital                DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (user_id, date)
		)`,
		`CREATE INDEX IF NOT EXISTS trades_closed_at_idx ON trades (closed_at)`,
	}
	for _, stmt := range stmts {
		if _, err := p.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// PostgreSQL error codes
const (
	pgErrUniqueViolation = "23505" // unique_violation
)

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}

	return false
}

// isNotFoundError checks if error indicates no rows found.
func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
