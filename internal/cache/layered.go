package cache

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/fcs-vault/internal/domain"
)

// Layered checks a local cache before a shared one and backfills the local
// layer on shared hits.
type Layered struct {
	local  StatusCache
	shared StatusCache
}

// NewLayered combines two caches.
func NewLayered(local, shared StatusCache) *Layered {
	return &Layered{local: local, shared: shared}
}

// Get implements StatusCache.
func (c *Layered) Get(ctx context.Context, id uuid.UUID) (*domain.TaskStatusView, bool) {
	if v, ok := c.local.Get(ctx, id); ok {
		return v, true
	}
	v, ok := c.shared.Get(ctx, id)
	if ok {
		c.local.Set(ctx, v)
	}
	return v, ok
}

// Set implements StatusCache.
func (c *Layered) Set(ctx context.Context, view *domain.TaskStatusView) {
	c.local.Set(ctx, view)
	c.shared.Set(ctx, view)
}
