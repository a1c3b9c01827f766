package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	candlesTotal   *prometheus.CounterVec
	invalidCandles *prometheus.CounterVec
	signalsTotal   *prometheus.CounterVec
	resolutions    *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	lastPrice      *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		candlesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smcflow_candles_total",
				Help: "Total number of candles accepted into the pipeline",
			},
			[]string{"asset", "timeframe"},
		),
		invalidCandles: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smcflow_invalid_candles_total",
				Help: "Total number of candles rejected at the ingest boundary",
			},
			[]string{"reason"},
		),
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smcflow_signals_total",
				Help: "Total number of signals by model and status",
			},
			[]string{"model", "status"},
		),
		resolutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smcflow_resolutions_total",
				Help: "Total number of trade resolutions by result",
			},
			[]string{"result"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smcflow_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "smcflow_last_price",
				Help: "Last recorded close price for an asset",
			},
			[]string{"asset"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "smcflow_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordCandle records an accepted candle.
func (r *Recorder) RecordCandle(asset, timeframe string) {
	r.candlesTotal.WithLabelValues(asset, timeframe).Inc()
}

// RecordInvalidCandle records a rejected candle by reason.
func (r *Recorder) RecordInvalidCandle(reason string) {
	r.invalidCandles.WithLabelValues(reason).Inc()
}

// RecordSignal records a signal lifecycle event.
func (r *Recorder) RecordSignal(model, status string) {
	r.signalsTotal.WithLabelValues(model, status).Inc()
}

// RecordResolution records a trade resolution.
func (r *Recorder) RecordResolution(result string) {
	r.resolutions.WithLabelValues(result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last close price for an asset.
func (r *Recorder) RecordLastPrice(asset string, price float64) {
	r.lastPrice.WithLabelValues(asset).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
