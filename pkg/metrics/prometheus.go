package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cyclesTotal    *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	lastSignal     *prometheus.GaugeVec
	lastConfidence *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		cyclesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smirk_cycles_total",
				Help: "Evaluation cycles by symbol and outcome",
			},
			[]string{"symbol", "outcome"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smirk_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastSignal: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "smirk_last_signal",
				Help: "Last emitted signal direction per symbol (-1 sell, 0 hold, 1 buy)",
			},
			[]string{"symbol"},
		),
		lastConfidence: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "smirk_last_confidence",
				Help: "Confidence of the last emitted signal per symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "smirk_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordCycle records one evaluation cycle outcome for a symbol.
func (r *Recorder) RecordCycle(symbol, outcome string) {
	r.cyclesTotal.WithLabelValues(symbol, outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastSignal records the direction and confidence of the last signal.
func (r *Recorder) RecordLastSignal(symbol string, direction, confidence float64) {
	r.lastSignal.WithLabelValues(symbol).Set(direction)
	r.lastConfidence.WithLabelValues(symbol).Set(confidence)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
