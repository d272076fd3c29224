package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus metrics of the duplicate detection service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// BatchesTotal counts processed upload batches, labeled by outcome ("ok", "failed").
	BatchesTotal *prometheus.CounterVec

	// BatchDuration observes the end-to-end duration of a batch in seconds.
	BatchDuration prometheus.Histogram

	// RecordsClassified counts classified records, labeled by status.
	RecordsClassified *prometheus.CounterVec

	// RecordErrors counts rows rejected during ingestion or detection.
	RecordErrors prometheus.Counter

	// MatchTypes counts the match type of each retained best candidate.
	MatchTypes *prometheus.CounterVec

	// DetectionDuration observes the per-record registry scan in seconds.
	DetectionDuration prometheus.Histogram

	// EmbeddingRequests counts embedding calls, labeled by provider and outcome.
	EmbeddingRequests *prometheus.CounterVec

	// EmbeddingDuration observes embedding call latency in seconds, labeled by provider.
	EmbeddingDuration *prometheus.HistogramVec

	// ReferenceEntries reports the size of the last loaded reference corpus.
	ReferenceEntries prometheus.Gauge

	// HTTPRequests counts HTTP requests, labeled by method, route and status code.
	HTTPRequests *prometheus.CounterVec
}

// NewMetrics registers every metric with reg. A nil reg uses the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		BatchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total number of processed upload batches.",
		}, []string{"outcome"}),
		BatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of batch processing in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		}),
		RecordsClassified: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_classified_total",
			Help:      "Total number of classified records by status.",
		}, []string{"status"}),
		RecordErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_errors_total",
			Help:      "Total number of rows reported as errors.",
		}),
		MatchTypes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "best_match_type_total",
			Help:      "Match type of the retained best candidate per record.",
		}, []string{"match_type"}),
		DetectionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detection_duration_seconds",
			Help:      "Duration of one record's registry scan in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		EmbeddingRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		EmbeddingDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_duration_seconds",
			Help:      "Duration of embedding requests in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"provider"}),
		ReferenceEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reference_entries",
			Help:      "Number of entries in the last loaded reference corpus.",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "code"}),
	}
}

func (m *Metrics) RecordBatch(ok bool, durationSeconds float64) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.BatchesTotal.WithLabelValues(outcome).Inc()
	m.BatchDuration.Observe(durationSeconds)
}

func (m *Metrics) RecordClassification(status, matchType string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.RecordsClassified.WithLabelValues(status).Inc()
	if matchType != "" {
		m.MatchTypes.WithLabelValues(matchType).Inc()
	}
	m.DetectionDuration.Observe(durationSeconds)
}

func (m *Metrics) RecordRowErrors(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordErrors.Add(float64(n))
}

func (m *Metrics) RecordEmbedding(provider string, err error, durationSeconds float64) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.EmbeddingRequests.WithLabelValues(provider, outcome).Inc()
	m.EmbeddingDuration.WithLabelValues(provider).Observe(durationSeconds)
}

func (m *Metrics) SetReferenceEntries(n int) {
	if m == nil {
		return
	}
	m.ReferenceEntries.Set(float64(n))
}

func (m *Metrics) RecordHTTPRequest(method, route string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, statusLabel(code)).Inc()
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
