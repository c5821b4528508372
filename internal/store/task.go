package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/fcs-vault/internal/domain"
)

// TaskStore defines the interface for task record persistence.
// Every status change goes through Transition, which is conditional on the
// current status so that concurrent writers cannot move a task backwards.
type TaskStore interface {
	// Create inserts a new task record together with its submission.
	// Returns ErrTaskExists if the id is already used.
	Create(ctx context.Context, task *domain.TaskRecord, sub domain.TaskSubmission) error

	// Get retrieves a task record by id.
	// Returns ErrTaskNotFound if the task does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.TaskRecord, error)

	// Transition applies tr only if the task is currently in tr.From.
	// Returns ErrTaskNotFound if the task does not exist and
	// ErrTransitionConflict if it exists in a different status.
	Transition(ctx context.Context, id uuid.UUID, tr domain.Transition) error

	// ListPending returns every PENDING task with its submission, oldest first.
	ListPending(ctx context.Context) ([]domain.PendingTask, error)

	// CountRunningOlderThan counts tasks that are still RUNNING and were
	// created more than age ago. Time spent queued as PENDING counts toward
	// the age.
	CountRunningOlderThan(ctx context.Context, age time.Duration) (int, error)
}
