// Package metrics registers the Prometheus collectors shared by the service
// and the reprocessing job.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestions counts ingestion calls by outcome: accepted, rejected
	// (policy or probe), or failed (storage/internal).
	Ingestions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "umsindo_ingestions_total",
		Help: "Ingestion pipeline calls by outcome.",
	}, []string{"outcome"})

	// ThumbnailFailures counts best-effort thumbnail generations that did not
	// produce a frame, by variant.
	ThumbnailFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "umsindo_thumbnail_failures_total",
		Help: "Failed thumbnail generations by variant.",
	}, []string{"variant"})

	// Moderations counts approve/reject actions that succeeded.
	Moderations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "umsindo_moderations_total",
		Help: "Successful moderation transitions by action.",
	}, []string{"action"})

	// ReprocessedRecords counts records touched by the reprocessing job.
	ReprocessedRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "umsindo_reprocessed_records_total",
		Help: "Submissions updated by the backfill job.",
	})
)
