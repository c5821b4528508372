package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upload outcomes used as metric labels.
const (
	outcomeStored    = "stored"
	outcomeFormat    = "rejected_format"
	outcomeSize      = "rejected_size"
	outcomeStorage   = "storage_error"
	outcomePersist   = "persist_error"
	outcomeCollision = "collision_exhausted"
	outcomeRead      = "read_error"
)

var (
	// uploadsTotal counts finished upload attempts by outcome.
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fcs_uploads_total",
			Help: "Upload attempts by outcome",
		},
		[]string{"outcome"},
	)

	// uploadBytes observes the size of stored uploads.
	uploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fcs_upload_size_bytes",
			Help:    "Size of stored uploads in bytes",
			Buckets: prometheus.ExponentialBuckets(1<<10, 4, 10),
		},
	)

	// referenceCollisions counts slug/storage name collisions that forced a redraw.
	referenceCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fcs_reference_collisions_total",
			Help: "Generated file references rejected as duplicates",
		},
	)

	// orphanedFiles counts promoted files that could not be cleaned up.
	orphanedFiles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fcs_orphaned_files_total",
			Help: "Stored files left without a record after a failed cleanup",
		},
	)

	// activityWriteFailures counts activity log entries that could not be stored.
	activityWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fcs_activity_log_failures_total",
			Help: "Activity log entries that could not be stored",
		},
		[]string{"activity_type"},
	)
)
