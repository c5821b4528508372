package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/fcs-vault/internal/domain"
	"github.com/phrazzld/fcs-vault/internal/platform/logger"
	"github.com/phrazzld/fcs-vault/internal/store"
)

// PostgresActivityStore implements store.ActivityStore on the activity_logs table.
type PostgresActivityStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresActivityStore creates a new PostgresActivityStore.
// If logger is nil, a default logger will be used.
func NewPostgresActivityStore(db store.DBTX, logger *slog.Logger) *PostgresActivityStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresActivityStore{
		db:     db,
		logger: logger.With(slog.String("component", "activity_store")),
	}
}

var _ store.ActivityStore = (*PostgresActivityStore)(nil)

// Append implements store.ActivityStore.
func (s *PostgresActivityStore) Append(ctx context.Context, activity *domain.Activity) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := activity.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO activity_logs (user_id, activity_type, description, occurred_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	var id int64
	err := s.db.QueryRowContext(ctx, query,
		int64(activity.UserID),
		activity.Type,
		activity.Description,
		activity.OccurredAt,
	).Scan(&id)
	if err != nil {
		log.Error("failed to append activity",
			slog.String("user_id", activity.UserID.String()),
			slog.String("activity_type", string(activity.Type)),
			slog.String("error", err.Error()))
		return store.NewStoreError("activity", "append", "failed to insert activity", MapError(err))
	}

	activity.ID = id
	return nil
}

// ListByUser implements store.ActivityStore.
func (s *PostgresActivityStore) ListByUser(ctx context.Context, user domain.UserID, limit int) ([]*domain.Activity, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, user_id, activity_type, description, occurred_at
		FROM activity_logs
		WHERE user_id = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, int64(user), limit)
	if err != nil {
		log.Error("failed to query activities", slog.String("error", err.Error()))
		return nil, store.NewStoreError("activity", "list", "query failed", MapError(err))
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	activities := make([]*domain.Activity, 0)
	for rows.Next() {
		var (
			a      domain.Activity
			userID int64
		)
		if err := rows.Scan(&a.ID, &userID, &a.Type, &a.Description, &a.OccurredAt); err != nil {
			return nil, store.NewStoreError("activity", "list", "scan failed", MapError(err))
		}
		a.UserID = domain.UserID(userID)
		a.OccurredAt = a.OccurredAt.UTC()
		activities = append(activities, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("activity", "list", "iteration failed", MapError(err))
	}
	return activities, nil
}
