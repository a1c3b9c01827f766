package usecase

import (
	"context"
	"fmt"
	"time"

	"SMCFlow/internal/domain/models"
	drepo "SMCFlow/internal/domain/repository"
)

// CandleProcessor is the pipeline's downstream: it hands each candle to the
// engine and persists it to the history store. The engine enqueue never
// fails; a store failure is returned so the pipeline buffers the candle for
// retry, and the engine's duplicate rejection absorbs the replay.
type CandleProcessor struct {
	engine  *Engine
	store   drepo.CandleStore
	metrics drepo.Metrics
}

// NewCandleProcessor creates a new CandleProcessor instance.
func NewCandleProcessor(engine *Engine, store drepo.CandleStore, metrics drepo.Metrics) *CandleProcessor {
	return &CandleProcessor{engine: engine, store: store, metrics: metrics}
}

// Process routes a single candle to the engine and the history store.
func (p *CandleProcessor) Process(ctx context.Context, c *models.Candle) error {
	if c == nil {
		return fmt.Errorf("candle is nil")
	}

	start := time.Now()
	_ = p.engine.Process(ctx, c)

	if p.store != nil {
		if err := p.store.Store(ctx, c); err != nil {
			p.metrics.RecordError("persist_candle")
			return fmt.Errorf("store candle: %w", err)
		}
	}

	p.metrics.RecordLatency("process", time.Since(start).Seconds())
	return nil
}

// Close closes underlying resources if available.
func (p *CandleProcessor) Close() {
	if p.store != nil {
		_ = p.store.Close()
	}
}
