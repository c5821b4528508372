package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/fcs-vault/internal/domain"
	"github.com/phrazzld/fcs-vault/internal/platform/logger"
	"github.com/phrazzld/fcs-vault/internal/store"
)

// PostgresTaskStore implements the store.TaskStore interface using PostgreSQL.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgresTaskStore.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// Create persists a new task record and its submission in one statement.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.TaskRecord, sub domain.TaskSubmission) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	if err := sub.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		WITH created AS (
			INSERT INTO tasks (task_id, status, created_at, finished_at, result)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING task_id
		)
		INSERT INTO task_submissions (task_id, user_id, kind)
		SELECT task_id, $6, $7 FROM created
	`
	_, err := s.db.ExecContext(ctx, query,
		task.TaskID,
		task.Status,
		task.CreatedAt,
		task.FinishedAt,
		task.Result,
		int64(sub.UserID),
		sub.Kind,
	)
	if err != nil {
		log.Error("failed to save task",
			slog.String("task_id", task.TaskID.String()),
			slog.String("error", err.Error()))
		if IsUniqueViolation(err) {
			return MapUniqueViolation(err, "task")
		}
		return fmt.Errorf("failed to save task to database: %w", MapError(err))
	}

	log.Debug("task saved",
		slog.String("task_id", task.TaskID.String()),
		slog.String("status", string(task.Status)),
		slog.String("kind", sub.Kind))
	return nil
}

// Get retrieves a task record by id.
func (s *PostgresTaskStore) Get(ctx context.Context, id uuid.UUID) (*domain.TaskRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT task_id, status, created_at, finished_at, result FROM tasks WHERE task_id = $1`

	var (
		task       domain.TaskRecord
		finishedAt sql.NullTime
		result     sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&task.TaskID,
		&task.Status,
		&task.CreatedAt,
		&finishedAt,
		&result,
	)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task",
			slog.String("task_id", id.String()),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	task.CreatedAt = task.CreatedAt.UTC()
	if finishedAt.Valid {
		t := finishedAt.Time.UTC()
		task.FinishedAt = &t
	}
	if result.Valid {
		r := result.String
		task.Result = &r
	}
	return &task, nil
}

// Transition applies a status change conditional on the current status.
// Because rows are never deleted, a zero-row update followed by an existence
// check reliably separates "unknown task" from "someone else moved it".
func (s *PostgresTaskStore) Transition(ctx context.Context, id uuid.UUID, tr domain.Transition) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := tr.Validate(); err != nil {
		return err
	}

	var finishedAt *time.Time
	var result *string
	if tr.To.IsTerminal() {
		at := tr.At.UTC()
		finishedAt = &at
		result = tr.Result
	}

	query := `
		UPDATE tasks
		SET status = $1, finished_at = $2, result = $3
		WHERE task_id = $4 AND status = $5
	`
	res, err := s.db.ExecContext(ctx, query, tr.To, finishedAt, result, id, tr.From)
	if err != nil {
		log.Error("failed to transition task",
			slog.String("task_id", id.String()),
			slog.String("from", string(tr.From)),
			slog.String("to", string(tr.To)),
			slog.String("error", err.Error()))
		return store.NewStoreError("task", "transition", "failed to update task status", MapError(err))
	}

	if err := CheckRowsAffected(res, store.ErrTransitionConflict); err != nil {
		if !errors.Is(err, store.ErrTransitionConflict) {
			return err
		}
		var exists bool
		if qerr := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM tasks WHERE task_id = $1)`, id).Scan(&exists); qerr != nil {
			return fmt.Errorf("failed to check task existence: %w", MapError(qerr))
		}
		if !exists {
			return store.ErrTaskNotFound
		}
		log.Warn("task status changed concurrently",
			slog.String("task_id", id.String()),
			slog.String("expected", string(tr.From)))
		return store.ErrTransitionConflict
	}

	log.Debug("task transitioned",
		slog.String("task_id", id.String()),
		slog.String("from", string(tr.From)),
		slog.String("to", string(tr.To)))
	return nil
}

// ListPending returns every PENDING task that has a submission, oldest first.
func (s *PostgresTaskStore) ListPending(ctx context.Context) ([]domain.PendingTask, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT t.task_id, t.created_at, s.user_id, s.kind
		FROM tasks t
		JOIN task_submissions s ON s.task_id = t.task_id
		WHERE t.status = $1
		ORDER BY t.created_at, t.task_id
	`
	rows, err := s.db.QueryContext(ctx, query, domain.TaskStatusPending)
	if err != nil {
		log.Error("failed to list pending tasks", slog.String("error", err.Error()))
		return nil, store.NewStoreError("task", "list_pending", "failed to list pending tasks", MapError(err))
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var pending []domain.PendingTask
	for rows.Next() {
		var (
			p      domain.PendingTask
			userID int64
		)
		if err := rows.Scan(&p.TaskID, &p.CreatedAt, &userID, &p.Kind); err != nil {
			return nil, store.NewStoreError("task", "list_pending", "failed to scan pending task", MapError(err))
		}
		p.CreatedAt = p.CreatedAt.UTC()
		p.UserID = domain.UserID(userID)
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("task", "list_pending", "failed to iterate pending tasks", MapError(err))
	}
	return pending, nil
}

// CountRunningOlderThan counts tasks created more than age ago that are
// still RUNNING. Age runs from created_at because the schema keeps no claim
// time, so a task that waited long in PENDING is reported as soon as it is
// claimed.
func (s *PostgresTaskStore) CountRunningOlderThan(ctx context.Context, age time.Duration) (int, error) {
	query := `SELECT COUNT(*) FROM tasks WHERE status = $1 AND created_at < $2`

	var n int
	cutoff := time.Now().UTC().Add(-age)
	if err := s.db.QueryRowContext(ctx, query, domain.TaskStatusRunning, cutoff).Scan(&n); err != nil {
		return 0, store.NewStoreError("task", "count_running", "failed to count running tasks", MapError(err))
	}
	return n, nil
}
