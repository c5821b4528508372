package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/phrazzld/fcs-vault/internal/domain"
	"github.com/phrazzld/fcs-vault/internal/platform/logger"
	"github.com/phrazzld/fcs-vault/internal/store"
)

// Resolve looks a record up by slug. An unknown slug is reported through
// ok=false rather than an error.
func (s *Service) Resolve(ctx context.Context, slug string) (*domain.FileRecord, bool, error) {
	if len(slug) != domain.SlugLength {
		return nil, false, nil
	}

	rec, err := s.files.GetBySlug(ctx, slug)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("resolve %s: %w", slug, err)
	}
	return rec, true, nil
}

// SetVisibility flips is_public on a record owned by actor.
// It returns store.ErrFileNotFound for unknown slugs and ErrNotOwner when
// actor does not own the record; no state changes in either case.
func (s *Service) SetVisibility(ctx context.Context, slug string, isPublic bool, actor domain.UserID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rec, ok, err := s.Resolve(ctx, slug)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrFileNotFound
	}
	if !rec.Owner.Is(actor) {
		log.Warn("visibility change denied",
			slog.String("slug", slug),
			slog.String("actor", actor.String()),
			slog.String("owner", rec.Owner.String()))
		return ErrNotOwner
	}

	if err := s.files.SetVisibility(ctx, slug, actor, isPublic); err != nil {
		// The UPDATE is conditional on owner_id; a miss here means the owner
		// condition did not hold when the write ran.
		if errors.Is(err, store.ErrFileNotFound) {
			return ErrNotOwner
		}
		return fmt.Errorf("set visibility of %s: %w", slug, err)
	}

	s.recordActivity(ctx, log, actor, domain.ActivityVisibilityChange,
		fmt.Sprintf("Changed file visibility to %s: %s", visibilityWord(isPublic), rec.OriginalFilename))
	return nil
}

// ListVisible returns the public records plus the viewer's own records,
// each record once.
func (s *Service) ListVisible(ctx context.Context, viewer domain.Owner) ([]*Descriptor, error) {
	recs, err := s.files.ListVisible(ctx, viewer)
	if err != nil {
		return nil, fmt.Errorf("list visible files: %w", err)
	}

	seen := make(map[int64]struct{}, len(recs))
	out := make([]*Descriptor, 0, len(recs))
	for _, r := range recs {
		if _, dup := seen[r.ID]; dup || !r.VisibleTo(viewer) {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, NewDescriptor(r))
	}

	if user, ok := viewer.ID(); ok {
		s.recordActivity(ctx, logger.FromContextOrDefault(ctx, s.logger), user, domain.ActivityFileAccess,
			fmt.Sprintf("Listed %d visible files", len(out)))
	}
	return out, nil
}

// ListOwned returns every record owned by user.
func (s *Service) ListOwned(ctx context.Context, user domain.UserID) ([]*Descriptor, error) {
	recs, err := s.files.ListByOwner(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("list owned files: %w", err)
	}

	out := make([]*Descriptor, 0, len(recs))
	for _, r := range recs {
		out = append(out, NewDescriptor(r))
	}
	return out, nil
}

// OwnerSummary aggregates count and size of the user's uploads.
func (s *Service) OwnerSummary(ctx context.Context, user domain.UserID) (domain.FileStats, error) {
	stats, err := s.files.StatsByOwner(ctx, user)
	if err != nil {
		return domain.FileStats{}, fmt.Errorf("summarize files: %w", err)
	}
	return stats, nil
}

// OpenContent opens the stored bytes of rec.
func (s *Service) OpenContent(rec *domain.FileRecord) (io.ReadCloser, error) {
	f, err := s.blobs.OpenStored(rec.StoredFilename)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrStorage, rec.Slug, err)
	}
	return f, nil
}
