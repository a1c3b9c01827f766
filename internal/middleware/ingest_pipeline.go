package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SMCFlow/internal/domain/models"
	domrepo "SMCFlow/internal/domain/repository"
)

// Proc is the minimal downstream interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, c *models.Candle) error
}

// IngestPipeline sits between the candle feed and the engine. It validates
// candles, drops out-of-order and duplicate deliveries at the boundary, and
// buffers candles whose downstream processing failed so a store outage never
// blocks the feed loop.
type IngestPipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	bufSize  int
	bufCh    chan *models.Candle
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per (asset, timeframe) last accepted open time
}

type PipelineOption func(*IngestPipeline)

// WithBufferSize sets the retry buffer size for downstream failures.
func WithBufferSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewIngestPipeline creates a new pipeline.
func NewIngestPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *IngestPipeline {
	p := &IngestPipeline{
		proc:     proc,
		metrics:  metrics,
		bufSize:  1000,
		bufCh:    make(chan *models.Candle, 1000),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan *models.Candle, p.bufSize)
	}
	return p
}

// Start launches background flushing of buffered candles.
func (p *IngestPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case c := <-p.bufCh:
				if c == nil {
					continue
				}
				if err := p.proc.Process(ctx, c); err != nil {
					// exponential backoff with cap
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- c:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *IngestPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates and forwards one closed candle, buffering on downstream
// errors. Invalid candles are counted and discarded, never applied.
func (p *IngestPipeline) Process(ctx context.Context, c *models.Candle) error {
	start := time.Now()
	if reason := validateCandle(c); reason != "" {
		p.metrics.RecordInvalidCandle(reason)
		return fmt.Errorf("invalid candle: %s", reason)
	}
	if !p.accept(c) {
		p.metrics.RecordInvalidCandle("out_of_order")
		return nil
	}

	if err := p.proc.Process(ctx, c); err != nil {
		p.metrics.RecordError("pipeline_process")
		// buffer non-blocking
		select {
		case p.bufCh <- c:
			p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.bufCh)))
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordCandle(c.Asset, string(c.Timeframe))
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateCandle(c *models.Candle) string {
	switch {
	case c == nil:
		return "nil"
	case c.Asset == "":
		return "asset_empty"
	case !models.IsValidTimeframe(c.Timeframe):
		return "timeframe_invalid"
	case c.OpenTime.IsZero():
		return "open_time_zero"
	case c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0:
		return "price_not_positive"
	case c.High < c.Low:
		return "high_below_low"
	case c.High < c.Open || c.High < c.Close || c.Low > c.Open || c.Low > c.Close:
		return "range_inconsistent"
	case c.Volume < 0:
		return "volume_negative"
	default:
		return ""
	}
}

// accept drops candles at or before the last accepted open time for the
// (asset, timeframe) series.
func (p *IngestPipeline) accept(c *models.Candle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := c.Asset + "|" + string(c.Timeframe)
	last, seen := p.lastSeen[key]
	if seen && !c.OpenTime.After(last) {
		return false
	}
	p.lastSeen[key] = c.OpenTime
	return true
}
