package models

// SummaryRequest queries the condensed account view for one user.
type SummaryRequest struct {
	UserID string `query:"user_id" json:"user_id" validate:"required,min=1,max=64"`
}

// ReportRequest queries grouped statistics for one user and period.
type ReportRequest struct {
	UserID string `query:"user_id" json:"user_id" validate:"required,min=1,max=64"`
	Period string `query:"period" json:"period" default:"all" validate:"omitempty,oneof=today 7d 15d 1mo 3mo 6mo 1yr all"`
}

// EquityCurveRequest queries the equity curve for one user and period.
type EquityCurveRequest struct {
	UserID string `query:"user_id" json:"user_id" validate:"required,min=1,max=64"`
	Period string `query:"period" json:"period" default:"all" validate:"omitempty,oneof=today 7d 15d 1mo 3mo 6mo 1yr all"`
}

// CloseSignalRequest force-closes an open signal flat.
type CloseSignalRequest struct {
	ID string `param:"id" json:"id" validate:"required,min=1,max=64"`
}

// CandlesRequest queries stored candle history.
type CandlesRequest struct {
	Asset string `query:"asset" json:"asset" validate:"required,min=1,max=32"`
	TF    string `query:"tf" json:"tf" default:"15m" validate:"omitempty,oneof=5m 15m 1h 4h 1d"`
	From  string `query:"from" json:"from"`
	To    string `query:"to" json:"to"`
	Limit int    `query:"limit" json:"limit" validate:"omitempty,min=1,max=50000"`
}
