// Package metrics exposes prometheus instrumentation for the engine.
// Collectors register against the default registerer; binaries decide
// whether and where to serve them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	retrievalDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "contextkit",
		Name:      "retrieval_stage_seconds",
		Help:      "Duration of retrieval stages (gather, rank).",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})

	generatorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contextkit",
		Name:      "generator_failures_total",
		Help:      "Generator calls that errored or timed out and contributed nothing.",
	}, []string{"generator"})

	policyCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contextkit",
		Name:      "policy_cache_lookups_total",
		Help:      "Policy decision cache lookups by outcome.",
	}, []string{"outcome"})

	sliceDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contextkit",
		Name:      "slice_items_dropped_total",
		Help:      "Slice items excluded, by reason (policy, budget).",
	}, []string{"reason"})

	decisionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contextkit",
		Name:      "decision_outcomes_total",
		Help:      "Decision loop outcomes.",
	}, []string{"outcome"})

	qscoreCalibrated = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "contextkit",
		Name:      "qscore_calibrated",
		Help:      "Distribution of calibrated quality scores.",
		Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
	})
)

// RecordRetrievalStage observes one retrieval stage duration.
func RecordRetrievalStage(stage string, seconds float64) {
	retrievalDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordGeneratorFailure counts a degraded generator contribution.
func RecordGeneratorFailure(generator string) {
	generatorFailures.WithLabelValues(generator).Inc()
}

// RecordPolicyCacheLookup counts a cache hit or miss.
func RecordPolicyCacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	policyCacheLookups.WithLabelValues(outcome).Inc()
}

// RecordSliceDrop counts an excluded slice item.
func RecordSliceDrop(reason string) {
	sliceDropped.WithLabelValues(reason).Inc()
}

// RecordDecisionOutcome counts one decision cycle outcome.
func RecordDecisionOutcome(outcome string) {
	decisionOutcomes.WithLabelValues(outcome).Inc()
}

// RecordQScore observes a calibrated quality score.
func RecordQScore(calibrated float64) {
	qscoreCalibrated.Observe(calibrated)
}
