package store

import (
	"context"

	"github.com/phrazzld/fcs-vault/internal/domain"
)

// ActivityStore persists the per-user activity log. Entries are never
// updated or deleted.
type ActivityStore interface {
	// Append inserts an entry and assigns its ID.
	Append(ctx context.Context, activity *domain.Activity) error

	// ListByUser returns at most limit entries of the user, newest first.
	ListByUser(ctx context.Context, user domain.UserID, limit int) ([]*domain.Activity, error)
}
