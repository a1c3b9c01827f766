package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"SMCFlow/internal/domain/models"
	pkgch "SMCFlow/pkg/clickhouse"
	applogger "SMCFlow/pkg/logger"
)

// candleSchema keeps candle history idempotent under retry: the
// ReplacingMergeTree collapses duplicate (asset, timeframe, open_time) rows.
var candleSchema = []string{
	`CREATE DATABASE IF NOT EXISTS smcflow`,
	`CREATE TABLE IF NOT EXISTS smcflow.candles (
		asset      LowCardinality(String),
		timeframe  LowCardinality(String),
		open_time  DateTime64(3, 'UTC'),
		open       Float64,
		high       Float64,
		low        Float64,
		close      Float64,
		volume     Float64
	) ENGINE = ReplacingMergeTree
	ORDER BY (asset, timeframe, open_time)`,
}

// CHCandleStore implements CandleStore backed by ClickHouse.
type CHCandleStore struct {
	client *pkgch.Client
	db     *sql.DB
	l      *applogger.Logger
}

func NewCHCandleStore(ch *pkgch.Client) *CHCandleStore {
	return &CHCandleStore{client: ch, db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHCandleStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHCandleStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, candleSchema)
}

func (s *CHCandleStore) Store(ctx context.Context, c *models.Candle) error {
	return s.StoreBatch(ctx, []*models.Candle{c})
}

func (s *CHCandleStore) StoreBatch(ctx context.Context, candles []*models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	const chunkSize = 2000
	for start := 0; start < len(candles); start += chunkSize {
		end := start + chunkSize
		if end > len(candles) {
			end = len(candles)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*8)
		for _, c := range candles[start:end] {
			if c == nil || c.Asset == "" || c.OpenTime.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				c.Asset,
				string(c.Timeframe),
				c.OpenTime,
				c.Open,
				c.High,
				c.Low,
				c.Close,
				c.Volume,
			)
		}
		if len(values) == 0 {
			continue
		}
		q := "INSERT INTO smcflow.candles (asset, timeframe, open_time, open, high, low, close, volume) VALUES " + strings.Join(values, ",")
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse store_candles error",
					applogger.Int("rows", len(values)),
					applogger.Error(err),
				)
			}
			return fmt.Errorf("store candles: %w", err)
		}
	}
	return nil
}

func (s *CHCandleStore) Query(ctx context.Context, asset string, tf models.Timeframe, from, to time.Time, limit int) ([]*models.Candle, error) {
	start := time.Now()
	const q = `
        SELECT asset, timeframe, open_time, open, high, low, close, volume
        FROM smcflow.candles FINAL
        WHERE asset = ? AND timeframe = ? AND open_time >= ? AND open_time <= ?
        ORDER BY open_time ASC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, asset, string(tf), from, to, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse query_candles error",
				applogger.String("asset", asset),
				applogger.String("tf", string(tf)),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Candle, 0, 1024)
	for rows.Next() {
		var c models.Candle
		var tfRaw string
		if err := rows.Scan(&c.Asset, &tfRaw, &c.OpenTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.Timeframe = models.Timeframe(tfRaw)
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse query_candles ok",
			applogger.String("asset", asset),
			applogger.String("tf", string(tf)),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHCandleStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHCandleStore) Close() error {
	return nil // pool managed by pkg client
}
