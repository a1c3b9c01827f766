package models

import "time"

// Period scopes a reporting query to a trailing window.
type Period string

const (
	PeriodToday Period = "today"
	Period7d    Period = "7d"
	Period15d   Period = "15d"
	Period1mo   Period = "1mo"
	Period3mo   Period = "3mo"
	Period6mo   Period = "6mo"
	Period1yr   Period = "1yr"
	PeriodAll   Period = "all"
)

// IsValidPeriod returns true if p is a supported period.
func IsValidPeriod(p Period) bool {
	switch p {
	case PeriodToday, Period7d, Period15d, Period1mo, Period3mo, Period6mo, Period1yr, PeriodAll:
		return true
	default:
		return false
	}
}

// NormalizePeriod converts raw string to a valid period (or "all").
func NormalizePeriod(s string) Period {
	if s == "" {
		return PeriodAll
	}
	p := Period(s)
	if IsValidPeriod(p) {
		return p
	}
	return PeriodAll
}

// Cutoff returns the inclusive start of the period relative to now.
// PeriodAll returns the zero time.
func (p Period) Cutoff(now time.Time) time.Time {
	switch p {
	case PeriodToday:
		y, m, d := now.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	case Period7d:
		return now.AddDate(0, 0, -7)
	case Period15d:
		return now.AddDate(0, 0, -15)
	case Period1mo:
		return now.AddDate(0, -1, 0)
	case Period3mo:
		return now.AddDate(0, -3, 0)
	case Period6mo:
		return now.AddDate(0, -6, 0)
	case Period1yr:
		return now.AddDate(-1, 0, 0)
	default:
		return time.Time{}
	}
}
