package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce       sync.Once
	similarityDuration *prometheus.HistogramVec
	similarityFailures *prometheus.CounterVec
	grammarFallbacks   *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	evaluationFailures prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used by the grading engine.
func RegisterMetrics() {
	registerOnce.Do(func() {
		similarityDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "grader",
			Subsystem: "similarity",
			Name:      "embedding_duration_seconds",
			Help:      "Duration of embedding backend calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"model"})

		similarityFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "grader",
			Subsystem: "similarity",
			Name:      "failures_total",
			Help:      "Number of similarity computations that failed open to zero.",
		}, []string{"model"})

		grammarFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "grader",
			Subsystem: "quality",
			Name:      "grammar_fallbacks_total",
			Help:      "Number of grammar checks served by the heuristic fallback.",
		}, []string{"reason"})

		evaluationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "grader",
			Subsystem: "engine",
			Name:      "evaluation_duration_seconds",
			Help:      "End-to-end duration of evaluation runs.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		})

		evaluationFailures = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "grader",
			Subsystem: "engine",
			Name:      "evaluation_failures_total",
			Help:      "Number of evaluation runs that returned an error.",
		})

		prometheus.MustRegister(
			similarityDuration,
			similarityFailures,
			grammarFallbacks,
			evaluationDuration,
			evaluationFailures,
		)
	})
}

// SimilarityDuration exposes the embedding-call duration histogram.
func SimilarityDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return similarityDuration
}

// SimilarityFailures exposes the counter for fail-open similarity scores.
func SimilarityFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return similarityFailures
}

// GrammarFallbacks exposes the counter for heuristic grammar fallbacks.
func GrammarFallbacks() *prometheus.CounterVec {
	RegisterMetrics()
	return grammarFallbacks
}

// EvaluationDuration exposes the evaluation-run duration histogram.
func EvaluationDuration() prometheus.Histogram {
	RegisterMetrics()
	return evaluationDuration
}

// EvaluationFailures exposes the counter for failed evaluation runs.
func EvaluationFailures() prometheus.Counter {
	RegisterMetrics()
	return evaluationFailures
}
