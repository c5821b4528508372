package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/fcs-vault/internal/domain"
)

// Activity log page sizes.
const (
	DefaultActivityLimit = 100
	MaxActivityLimit     = 1000
)

// Activities returns the user's activity log, newest first. limit is
// clamped to 1..MaxActivityLimit.
func (s *Service) Activities(ctx context.Context, user domain.UserID, limit int) ([]*domain.Activity, error) {
	if s.activities == nil {
		return []*domain.Activity{}, nil
	}
	switch {
	case limit <= 0:
		limit = DefaultActivityLimit
	case limit > MaxActivityLimit:
		limit = MaxActivityLimit
	}

	entries, err := s.activities.ListByUser(ctx, user, limit)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return entries, nil
}

// recordActivity appends an entry to the user's log. A failed write is
// logged and counted; it never fails the operation being recorded.
func (s *Service) recordActivity(ctx context.Context, log *slog.Logger, user domain.UserID, typ domain.ActivityType, description string) {
	if s.activities == nil {
		return
	}

	entry, err := domain.NewActivity(user, typ, description, s.now())
	if err == nil {
		err = s.activities.Append(context.WithoutCancel(ctx), entry)
	}
	if err != nil {
		activityWriteFailures.WithLabelValues(string(typ)).Inc()
		log.Error("failed to record activity",
			slog.String("user_id", user.String()),
			slog.String("activity_type", string(typ)),
			slog.String("error", err.Error()))
	}
}

func visibilityWord(isPublic bool) string {
	if isPublic {
		return "public"
	}
	return "private"
}
