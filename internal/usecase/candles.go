package usecase

import (
	"context"
	"fmt"
	"time"

	"SMCFlow/internal/domain/models"
	drepo "SMCFlow/internal/domain/repository"
)

// CandlesUseCase provides business logic for retrieving candle history.
type CandlesUseCase struct {
	store drepo.CandleStore
}

func NewCandlesUseCase(store drepo.CandleStore) *CandlesUseCase {
	return &CandlesUseCase{store: store}
}

type GetCandlesParams struct {
	Asset     string
	From      time.Time
	To        time.Time
	Timeframe models.Timeframe
	Limit     int
}

type GetCandlesResult struct {
	Asset     string           `json:"asset"`
	Timeframe string           `json:"timeframe"`
	From      time.Time        `json:"from"`
	To        time.Time        `json:"to"`
	Count     int              `json:"count"`
	Candles   []*models.Candle `json:"candles"`
}

func (uc *CandlesUseCase) GetCandles(ctx context.Context, p GetCandlesParams) (*GetCandlesResult, error) {
	if p.Asset == "" {
		return nil, fmt.Errorf("asset required")
	}
	if p.From.After(p.To) {
		return nil, fmt.Errorf("from must be <= to")
	}
	if p.Limit <= 0 {
		p.Limit = 10000
	}
	if p.Limit > 50000 {
		p.Limit = 50000
	}

	candles, err := uc.store.Query(ctx, p.Asset, p.Timeframe, p.From, p.To, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("get candles: %w", err)
	}

	return &GetCandlesResult{
		Asset:     p.Asset,
		Timeframe: string(p.Timeframe),
		From:      p.From,
		To:        p.To,
		Count:     len(candles),
		Candles:   candles,
	}, nil
}
