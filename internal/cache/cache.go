// Package cache holds read-through caches for terminal task status views.
//
// Only terminal views are ever stored: a FINISHED or FAILED record never
// changes again, so a cached copy can never be stale. Non-terminal views are
// always read from the status store.
package cache

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/fcs-vault/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fcs_status_cache_hits_total",
		Help: "Terminal task status cache hits.",
	}, []string{"layer"})
	cacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fcs_status_cache_misses_total",
		Help: "Terminal task status cache misses.",
	}, []string{"layer"})
)

// StatusCache stores terminal task status views by task id.
type StatusCache interface {
	// Get returns the cached view, or false on a miss.
	Get(ctx context.Context, id uuid.UUID) (*domain.TaskStatusView, bool)

	// Set caches view if it is terminal and ignores it otherwise.
	Set(ctx context.Context, view *domain.TaskStatusView)
}

func cacheable(view *domain.TaskStatusView) bool {
	return view != nil && view.Status.IsTerminal()
}
