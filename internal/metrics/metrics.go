// Package metrics holds the Prometheus collectors shared by the server and the worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "endorse"

var (
	// JobsTotal counts finished jobs by queue and outcome (ok, retry, failed).
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Total number of processed jobs",
		},
		[]string{"queue", "outcome"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of job handlers in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"queue"},
	)

	// FeedItemsTotal counts feed items after window and keyword filtering.
	FeedItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_items_total",
			Help:      "Total number of feed items kept after filtering",
		},
		[]string{"feed"},
	)

	FeedErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_errors_total",
			Help:      "Total number of failed feed fetches",
		},
		[]string{"feed"},
	)

	// ClassificationConfidence observes classifier scores.
	ClassificationConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classification_confidence",
			Help:      "Distribution of classifier confidence scores",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 1},
		},
	)

	ScraperResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scraper_results_total",
			Help:      "Endorsements found by the scraper, by outcome (saved, skipped, error)",
		},
		[]string{"outcome"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Total number of notifications sent",
		},
		[]string{"type"},
	)
)

// RecordJob records one handler run.
func RecordJob(queue, outcome string, seconds float64) {
	JobsTotal.WithLabelValues(queue, outcome).Inc()
	JobDuration.WithLabelValues(queue).Observe(seconds)
}

// RecordFeed records the result of fetching one feed.
func RecordFeed(feed string, items int, err error) {
	if err != nil {
		FeedErrorsTotal.WithLabelValues(feed).Inc()
		return
	}
	FeedItemsTotal.WithLabelValues(feed).Add(float64(items))
}
