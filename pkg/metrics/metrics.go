// Package metrics provides Prometheus metrics for the Dahlia pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsProcessedTotal tracks jobs processed per stage by outcome
	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dahlia",
			Subsystem: "queue",
			Name:      "jobs_processed_total",
			Help:      "Total number of stage jobs processed by outcome",
		},
		[]string{"stage", "status"},
	)

	// JobDuration tracks stage job duration in seconds
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dahlia",
			Subsystem: "queue",
			Name:      "job_duration_seconds",
			Help:      "Duration of stage jobs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)

	// DLQJobsTotal tracks jobs sent to the dead letter queue
	DLQJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dahlia",
			Subsystem: "dlq",
			Name:      "jobs_total",
			Help:      "Total number of jobs sent to dead letter queue",
		},
		[]string{"stage", "reason"},
	)

	// GenerationRequestsTotal tracks generation request outcomes
	GenerationRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dahlia",
			Subsystem: "generation",
			Name:      "requests_total",
			Help:      "Total number of generation request transitions by status",
		},
		[]string{"status"},
	)

	// AssetsPublishedTotal tracks assets flipped to published
	AssetsPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dahlia",
			Subsystem: "assets",
			Name:      "published_total",
			Help:      "Total number of assets published",
		},
	)

	// LocalesProcessedTotal tracks localization outcomes per locale
	LocalesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dahlia",
			Subsystem: "localization",
			Name:      "locales_total",
			Help:      "Total number of locale localizations by outcome",
		},
		[]string{"locale", "status"},
	)

	// RelatedLinksWrittenTotal tracks related link rows upserted
	RelatedLinksWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dahlia",
			Subsystem: "links",
			Name:      "written_total",
			Help:      "Total number of related link rows upserted",
		},
		[]string{"type"},
	)

	// RemediationsTotal tracks thin-content fixes by outcome
	RemediationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dahlia",
			Subsystem: "remediation",
			Name:      "fixes_total",
			Help:      "Total number of thin-content remediations by outcome",
		},
		[]string{"status"},
	)

	// HTTPRequestsTotal tracks outbound HTTP requests to collaborators
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dahlia",
			Subsystem: "http_client",
			Name:      "requests_total",
			Help:      "Total number of outbound HTTP requests",
		},
		[]string{"method", "status_code"},
	)

	// HTTPRequestDuration tracks outbound HTTP request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dahlia",
			Subsystem: "http_client",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound HTTP requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method"},
	)

	// GovernorEnqueuedTotal tracks prompt jobs emitted by the quota governor
	GovernorEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dahlia",
			Subsystem: "governor",
			Name:      "prompts_enqueued_total",
			Help:      "Total number of prompt synthesis jobs enqueued by the governor",
		},
	)

	// KafkaMessagesPublished tracks Kafka lifecycle events published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dahlia",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// KafkaPublishDuration tracks Kafka publish duration
	KafkaPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dahlia",
			Subsystem: "kafka",
			Name:      "publish_duration_seconds",
			Help:      "Duration of Kafka publish operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)

	// DatabaseQueryDuration tracks database query duration
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dahlia",
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Duration of database queries in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)
)

// RecordJobProcessed records a stage job outcome and its duration
func RecordJobProcessed(stage, status string, duration time.Duration) {
	JobsProcessedTotal.WithLabelValues(stage, status).Inc()
	JobDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordDLQJob records a dead letter queue job
func RecordDLQJob(stage, reason string) {
	DLQJobsTotal.WithLabelValues(stage, reason).Inc()
}

// RecordRequestStatus records a generation request status transition
func RecordRequestStatus(status string) {
	GenerationRequestsTotal.WithLabelValues(status).Inc()
}

// RecordLocale records one locale's localization outcome
func RecordLocale(locale, status string) {
	LocalesProcessedTotal.WithLabelValues(locale, status).Inc()
}

// RecordHTTPRequest records an outbound HTTP request metric
func RecordHTTPRequest(method, statusCode string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string, durationSeconds float64) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
	KafkaPublishDuration.Observe(durationSeconds)
}
