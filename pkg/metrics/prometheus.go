package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	analyses     *prometheus.CounterVec
	anomalies    *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	breakerState *prometheus.GaugeVec
}

// New registers the recorder's collectors with the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors with reg. Tests pass a fresh
// prometheus.NewRegistry to avoid duplicate registration.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		analyses: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "epipulse_analyses_total",
				Help: "Completed analyses by data source, forecast method and risk level",
			},
			[]string{"source", "method", "risk"},
		),
		anomalies: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "epipulse_anomalies_detected_total",
				Help: "Days flagged as anomalous, by detector",
			},
			[]string{"detector"},
		),
		fallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "epipulse_forecast_fallbacks_total",
				Help: "Forecasts served by the moving-average fallback",
			},
			[]string{"reason"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "epipulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "epipulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),
		breakerState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "epipulse_source_breaker_state",
				Help: "Circuit breaker state per data source (0 closed, 1 half-open, 2 open)",
			},
			[]string{"source"},
		),
	}
}

// RecordAnalysis counts a completed analysis.
func (r *Recorder) RecordAnalysis(source, method, risk string) {
	r.analyses.WithLabelValues(source, method, risk).Inc()
}

// RecordAnomalies adds n flagged days for a detector.
func (r *Recorder) RecordAnomalies(detector string, n int) {
	if n > 0 {
		r.anomalies.WithLabelValues(detector).Add(float64(n))
	}
}

func (r *Recorder) RecordForecastFallback(reason string) {
	r.fallbacks.WithLabelValues(reason).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordBreakerState exposes a data source breaker transition.
func (r *Recorder) RecordBreakerState(source string, state int) {
	r.breakerState.WithLabelValues(source).Set(float64(state))
}
