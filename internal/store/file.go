package store

import (
	"context"

	"github.com/phrazzld/fcs-vault/internal/domain"
)

// FileStore defines the interface for file record persistence.
type FileStore interface {
	// Create inserts a new file record and assigns its ID.
	// Returns ErrSlugExists or ErrStoredNameExists when a unique reference
	// is already taken; the record is left unchanged in that case.
	Create(ctx context.Context, file *domain.FileRecord) error

	// GetBySlug retrieves a file record by its public slug.
	// Returns ErrFileNotFound if no record matches.
	GetBySlug(ctx context.Context, slug string) (*domain.FileRecord, error)

	// SetVisibility flips is_public on the record only if it is owned by owner.
	// Returns ErrFileNotFound if no record with that slug is owned by owner.
	SetVisibility(ctx context.Context, slug string, owner domain.UserID, isPublic bool) error

	// ListVisible returns public records plus records owned by the viewer,
	// newest first.
	ListVisible(ctx context.Context, viewer domain.Owner) ([]*domain.FileRecord, error)

	// ListByOwner returns every record owned by the user, newest first.
	ListByOwner(ctx context.Context, owner domain.UserID) ([]*domain.FileRecord, error)

	// StatsByOwner aggregates the count and total size of a user's records.
	StatsByOwner(ctx context.Context, owner domain.UserID) (domain.FileStats, error)
}
