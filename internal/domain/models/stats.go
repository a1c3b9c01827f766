package models

// ProfitFactorNoLosses is the sentinel value reported when a bucket has
// gross wins but no losing trades, making the profit factor unbounded.
const ProfitFactorNoLosses float64 = -1

// StatsBucket holds the aggregates of one trade grouping. Buckets are derived
// views, fully recomputable from the trade log; never a source of truth.
type StatsBucket struct {
	Key          string  `json:"key"`
	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	Breakeven    int     `json:"breakeven"`
	PnlSum       float64 `json:"pnl_sum"`
	WinRate      float64 `json:"win_rate"`      // wins / (wins + losses), breakeven excluded
	ProfitFactor float64 `json:"profit_factor"` // ProfitFactorNoLosses when no losing trades
	AvgWin       float64 `json:"avg_win"`
	AvgLoss      float64 `json:"avg_loss"`
	BestTrade    float64 `json:"best_trade"`
	WorstTrade   float64 `json:"worst_trade"`
}

// StreakSummary tracks consecutive outcomes in chronological order. Wins
// increment the counter, losses reset it negative and decrement, breakeven
// pauses without resetting.
type StreakSummary struct {
	Current int `json:"current"`
	Best    int `json:"best"`
	Worst   int `json:"worst"`
}

// Report is the grouped, period-scoped statistics view served to the
// reporting surface.
type Report struct {
	Period    Period        `json:"period"`
	Overall   StatsBucket   `json:"overall"`
	Streaks   StreakSummary `json:"streaks"`
	ByModel   []StatsBucket `json:"by_model"`
	ByAsset   []StatsBucket `json:"by_asset"`
	ByWeekday []StatsBucket `json:"by_weekday"`
	Trades    []Trade       `json:"trades"`
}

// Summary is the condensed per-user account view.
type Summary struct {
	UserID         string  `json:"user_id"`
	CurrentCapital float64 `json:"current_capital"`
	ROI            float64 `json:"roi"`
	BestStreak     int     `json:"best_streak"`
	WorstStreak    int     `json:"worst_streak"`
}
