package usecase

import (
	"context"
	"time"

	"SMCFlow/internal/domain/models"
	drepo "SMCFlow/internal/domain/repository"
	mid "SMCFlow/internal/middleware"
)

// CandleCollector reads closed candles from the live feed and pushes them
// through the ingest pipeline.
type CandleCollector struct {
	stream  drepo.CandleStream
	metrics drepo.Metrics
	pipe    *mid.IngestPipeline
}

// NewCandleCollector creates a new CandleCollector instance.
func NewCandleCollector(stream drepo.CandleStream, metrics drepo.Metrics, pipe *mid.IngestPipeline) *CandleCollector {
	return &CandleCollector{stream: stream, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the feed is connected.
func (c *CandleCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *CandleCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	c.pipe.Start(ctx)
	cnCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, cnCh, errCh)
	return nil
}

func (c *CandleCollector) consume(ctx context.Context, cnCh <-chan *models.Candle, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if ok && err == nil {
				continue
			}
			// a read error or a closed channel both mean the stream is dead;
			// the old channels stay closed, so fresh ones must be acquired
			if ok {
				c.metrics.RecordError("stream")
			}
			cnCh, errCh = c.reconnect(ctx)
			if cnCh == nil {
				return
			}
		case cn, ok := <-cnCh:
			if !ok {
				cnCh, errCh = c.reconnect(ctx)
				if cnCh == nil {
					return
				}
				continue
			}
			if cn == nil {
				continue
			}
			_ = c.pipe.Process(ctx, cn)
		}
	}
}

// reconnect re-establishes the stream until it succeeds or the context ends,
// returning fresh read channels. Nil channels mean the context is done.
func (c *CandleCollector) reconnect(ctx context.Context) (<-chan *models.Candle, <-chan error) {
	for {
		if ctx.Err() != nil {
			return nil, nil
		}
		if err := c.stream.Reconnect(ctx); err != nil {
			c.metrics.RecordError("stream_reconnect")
			select {
			case <-ctx.Done():
				return nil, nil
			case <-time.After(time.Second):
			}
			continue
		}
		return c.stream.Read(ctx)
	}
}

// Shutdown stops the pipeline and closes the feed.
func (c *CandleCollector) Shutdown(ctx context.Context) error {
	c.pipe.Stop()
	return c.stream.Close()
}
