package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/phrazzld/fcs-vault/internal/domain"
)

const layerLocal = "local"

// LRU is a per-instance size-bounded cache with a TTL on every entry.
type LRU struct {
	cache *expirable.LRU[uuid.UUID, *domain.TaskStatusView]
}

// NewLRU creates a cache holding at most size views for ttl each.
func NewLRU(size int, ttl time.Duration) *LRU {
	return &LRU{cache: expirable.NewLRU[uuid.UUID, *domain.TaskStatusView](size, nil, ttl)}
}

// Get implements StatusCache.
func (c *LRU) Get(_ context.Context, id uuid.UUID) (*domain.TaskStatusView, bool) {
	v, ok := c.cache.Get(id)
	if ok {
		cacheHitsTotal.WithLabelValues(layerLocal).Inc()
		return v, true
	}
	cacheMissesTotal.WithLabelValues(layerLocal).Inc()
	return nil, false
}

// Set implements StatusCache.
func (c *LRU) Set(_ context.Context, view *domain.TaskStatusView) {
	if cacheable(view) {
		c.cache.Add(view.TaskID, view)
	}
}

// Len returns the number of live entries.
func (c *LRU) Len() int {
	return c.cache.Len()
}
