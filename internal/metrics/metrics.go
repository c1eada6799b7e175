// Package metrics registers the Prometheus collectors of the perspective engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Perspective cache
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perspective_cache_lookups_total",
			Help: "Perspective cache lookups by result",
		},
		[]string{"result"}, // "hit", "miss"
	)

	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perspective_cache_writes_total",
			Help: "Perspective match inserts by result",
		},
		[]string{"result"}, // "inserted", "duplicate"
	)

	// Matching
	CandidateOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perspective_candidates_total",
			Help: "Scored candidates by outcome",
		},
		[]string{"outcome"},
	)

	FindDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "perspective_find_duration_seconds",
			Help:    "Duration of perspective lookups",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"path"}, // "cache", "computed"
	)

	DegradedSignals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_degraded_signals_total",
			Help: "Analysis failures replaced by a neutral signal",
		},
		[]string{"signal"}, // "entities", "embedding"
	)

	// Analysis service client
	AnalysisRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_requests_total",
			Help: "Requests sent to the text analysis service",
		},
		[]string{"endpoint", "status"},
	)

	AnalysisCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_cache_lookups_total",
			Help: "In-memory analysis cache lookups",
		},
		[]string{"kind", "result"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "analysis_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Balanced feed
	FeedArticles = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "balanced_feed_bucket_articles",
			Help:    "Articles returned per alignment bucket",
			Buckets: prometheus.LinearBuckets(0, 5, 8),
		},
		[]string{"bucket"},
	)
)

// Candidate outcome labels.
const (
	OutcomeSameSource    = "same_source"
	OutcomeBelowEntity   = "below_entity_threshold"
	OutcomeBelowCombined = "below_combined_threshold"
	OutcomeMatched       = "matched"
)
