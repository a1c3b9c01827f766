package usecase

import (
	"context"
	"encoding/json"
	"time"

	"SMCFlow/internal/domain/models"
	drepo "SMCFlow/internal/domain/repository"
	mid "SMCFlow/internal/middleware"
	pkgkafka "SMCFlow/pkg/kafka"
)

// KafkaCandlesHandler consumes closed candles from a Kafka topic and feeds
// them into the ingest pipeline. Used when the deployment reads candles from
// an upstream aggregator instead of the websocket feed.
type KafkaCandlesHandler struct {
	topic   string
	pipe    *mid.IngestPipeline
	metrics drepo.Metrics
}

func NewKafkaCandlesHandler(topic string, pipe *mid.IngestPipeline, metrics drepo.Metrics) *KafkaCandlesHandler {
	return &KafkaCandlesHandler{topic: topic, pipe: pipe, metrics: metrics}
}

func (h *KafkaCandlesHandler) Topic() string { return h.topic }

// incoming message schema: {asset, tf, t, o, h, l, c, v} with t in unix
// seconds or milliseconds.
func (h *KafkaCandlesHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Asset string  `json:"asset"`
		TF    string  `json:"tf"`
		T     int64   `json:"t"`
		O     float64 `json:"o"`
		H     float64 `json:"h"`
		L     float64 `json:"l"`
		C     float64 `json:"c"`
		V     float64 `json:"v"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}
	openTime := time.Unix(m.T, 0).UTC()
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(openTime).Seconds())

	return h.pipe.Process(ctx, &models.Candle{
		Asset:     m.Asset,
		Timeframe: models.NormalizeTimeframe(m.TF),
		OpenTime:  openTime,
		Open:      m.O,
		High:      m.H,
		Low:       m.L,
		Close:     m.C,
		Volume:    m.V,
	})
}

var _ pkgkafka.MessageHandler = (*KafkaCandlesHandler)(nil)
