// Package metrics provides Prometheus metrics for the HTTP server and the catalog.
//
// HTTP metrics:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//   - rate_limiter_buckets_total: Gauge of client buckets held by the rate limiter
//
// Domain metrics cover recommendation and interaction requests and the published
// catalog. All metrics are registered with the Prometheus default registry during
// package initialization.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/giygas/dynamed-api/catalog"
)

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Number of client buckets held by the rate limiter",
		},
	)

	RecommendationRequests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendation_requests_total",
			Help: "Recommendation requests evaluated against the catalog",
		},
	)

	RecommendationCandidates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_candidates_total",
			Help: "Class-matching molecules by outcome: kept, excluded or dropped for a non-positive score",
		},
		[]string{"outcome"},
	)

	InteractionChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interaction_checks_total",
			Help: "Interaction screenings by result",
		},
		[]string{"result"},
	)

	CatalogVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_version",
			Help: "Version of the published catalog snapshot",
		},
	)

	CatalogEntities = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catalog_entities",
			Help: "Entities in the published catalog snapshot",
		},
		[]string{"kind"},
	)

	CatalogImportDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_import_duration_seconds",
			Help:    "Duration of catalog imports, download included",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)
)

// Candidate outcomes
const (
	OutcomeKept     = "kept"
	OutcomeExcluded = "excluded"
	OutcomeDropped  = "dropped"
)

func init() {
	prometheus.MustRegister(
		HTTPRequestTotals,
		HTTPRequestDuration,
		HTTPRequestInFlight,
		RateLimiterBucketsTotal,
		RecommendationRequests,
		RecommendationCandidates,
		InteractionChecks,
		CatalogVersion,
		CatalogEntities,
		CatalogImportDuration,
	)
}

// ObserveRecommendation counts one recommendation request and its candidates
func ObserveRecommendation(kept, excluded, dropped int) {
	RecommendationRequests.Inc()
	RecommendationCandidates.WithLabelValues(OutcomeKept).Add(float64(kept))
	RecommendationCandidates.WithLabelValues(OutcomeExcluded).Add(float64(excluded))
	RecommendationCandidates.WithLabelValues(OutcomeDropped).Add(float64(dropped))
}

// ObserveInteractionCheck counts one screening
func ObserveInteractionCheck(blocked bool) {
	result := "clear"
	if blocked {
		result = "blocked"
	}
	InteractionChecks.WithLabelValues(result).Inc()
}

// ObserveCatalog records the published snapshot and how long its import took
func ObserveCatalog(snap *catalog.Snapshot, importDuration time.Duration) {
	CatalogVersion.Set(float64(snap.Version()))

	c := snap.Counts()
	for kind, n := range map[string]int{
		"molecules":           c.Molecules,
		"diagnostics":         c.Diagnostics,
		"medical_classes":     c.MedicalClasses,
		"indications":         c.Indications,
		"allergies":           c.Allergies,
		"precautions":         c.Precautions,
		"antecedents":         c.Antecedents,
		"current_medications": c.CurrentMedications,
		"commercial_names":    c.CommercialNames,
		"interactions":        c.Interactions,
	} {
		CatalogEntities.WithLabelValues(kind).Set(float64(n))
	}

	if importDuration > 0 {
		CatalogImportDuration.Observe(importDuration.Seconds())
	}
}
