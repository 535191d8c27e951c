package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fystack/taixiu-predictor/internal/predictor"
)

const namespace = "taixiu"

// Metrics holds the worker collectors. Each instance registers on its own
// registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	PredictionsTotal *prometheus.CounterVec
	ConfidenceGauge  *prometheus.GaugeVec
	BreakProbability *prometheus.GaugeVec
	HitsTotal        *prometheus.CounterVec
	SessionsIngested *prometheus.CounterVec
	HistorySize      *prometheus.GaugeVec
	FetchErrorsTotal *prometheus.CounterVec
	PredictDuration  *prometheus.HistogramVec
	ModelMultiplier  *prometheus.GaugeVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PredictionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Predictions made, by stream, label and stage",
		}, []string{"stream", "label", "stage"}),
		ConfidenceGauge: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "prediction_confidence",
			Help:      "Confidence of the latest prediction in percent",
		}, []string{"stream"}),
		BreakProbability: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "break_probability",
			Help:      "Break probability of the latest prediction",
		}, []string{"stream"}),
		HitsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_results_total",
			Help:      "Settled predictions, by stream and whether they hit",
		}, []string{"stream", "hit"}),
		SessionsIngested: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ingested_total",
			Help:      "New sessions added to history",
		}, []string{"stream"}),
		HistorySize: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_size",
			Help:      "Sessions currently retained",
		}, []string{"stream"}),
		FetchErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Failed history fetches",
		}, []string{"stream", "source"}),
		PredictDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "predict_duration_seconds",
			Help:      "Time spent in one engine prediction",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 12),
		}, []string{"stream"}),
		ModelMultiplier: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_multiplier",
			Help:      "Performance multiplier applied to each model's latest vote",
		}, []string{"stream", "model"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePrediction records one engine result.
func (m *Metrics) ObservePrediction(stream string, res predictor.Result, took time.Duration) {
	m.PredictionsTotal.WithLabelValues(stream, res.Label, string(res.Stage)).Inc()
	m.ConfidenceGauge.WithLabelValues(stream).Set(res.Confidence)
	m.BreakProbability.WithLabelValues(stream).Set(res.BreakProbability)
	m.PredictDuration.WithLabelValues(stream).Observe(took.Seconds())
	for _, v := range res.Votes {
		m.ModelMultiplier.WithLabelValues(stream, v.Model).Set(v.Multiplier)
	}
}

// ObserveSettled records whether the previous prediction came true.
func (m *Metrics) ObserveSettled(stream string, hit bool) {
	label := "false"
	if hit {
		label = "true"
	}
	m.HitsTotal.WithLabelValues(stream, label).Inc()
}

func (m *Metrics) ObserveIngest(stream string, added, size int) {
	if added > 0 {
		m.SessionsIngested.WithLabelValues(stream).Add(float64(added))
	}
	m.HistorySize.WithLabelValues(stream).Set(float64(size))
}

func (m *Metrics) ObserveFetchError(stream, source string) {
	m.FetchErrorsTotal.WithLabelValues(stream, source).Inc()
}
