package models

import "time"

// Trade is the resolved record of a signal. Exactly one Trade exists per
// resolved signal, created atomically at resolution time.
type Trade struct {
	SignalID   string        `json:"signal_id"`
	Asset      string        `json:"asset"`
	Timeframe  Timeframe     `json:"timeframe"`
	Model      SMCModel      `json:"model"`
	Direction  Direction     `json:"direction"`
	Result     SignalStatus  `json:"result"` // WIN, LOSS or BREAKEVEN
	PnlPercent float64       `json:"pnl_percent"`
	OpenedAt   time.Time     `json:"opened_at"`
	ClosedAt   time.Time     `json:"closed_at"`
	Holding    time.Duration `json:"holding"`
}

// EquitySnapshot is one point of a user's equity curve. Snapshots are
// appended in strict date order; capital is derived, never edited once a
// later snapshot exists.
type EquitySnapshot struct {
	UserID               string    `json:"user_id"`
	Date                 time.Time `json:"date"` // UTC midnight of the reporting day
	CumulativePnlPercent float64   `json:"cumulative_pnl_percent"`
	Capital              float64   `json:"capital"`
}
