package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/fcs-vault/internal/broker"
	"github.com/phrazzld/fcs-vault/internal/cache"
	"github.com/phrazzld/fcs-vault/internal/domain"
	"github.com/phrazzld/fcs-vault/internal/platform/logger"
	"github.com/phrazzld/fcs-vault/internal/store"
)

// Handle is what a submitter gets back: enough to poll.
type Handle struct {
	TaskID uuid.UUID         `json:"task_id"`
	Status domain.TaskStatus `json:"status"`
}

// Engine records tasks and hands them to the broker. It never executes them.
type Engine struct {
	tasks     store.TaskStore
	publisher broker.Publisher
	cache     cache.StatusCache
	logger    *slog.Logger
	now       func() time.Time
}

// NewEngine creates an Engine. statusCache may be nil.
// If logger is nil, a default logger will be used.
func NewEngine(tasks store.TaskStore, publisher broker.Publisher, statusCache cache.StatusCache, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		tasks:     tasks,
		publisher: publisher,
		cache:     statusCache,
		logger:    logger.With(slog.String("component", "task_engine")),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit starts a user_file_stats task for userID.
func (e *Engine) Submit(ctx context.Context, userID domain.UserID) (*Handle, error) {
	return e.SubmitKind(ctx, KindUserFileStats, userID)
}

// SubmitKind persists a PENDING record and publishes it. It returns after
// the broker acknowledged the message. When publishing fails the record is
// moved to FAILED and ErrDispatchFailed is returned.
func (e *Engine) SubmitKind(ctx context.Context, kind string, userID domain.UserID) (*Handle, error) {
	log := logger.FromContextOrDefault(ctx, e.logger)

	rec := domain.NewTaskRecord()
	rec.CreatedAt = e.now()
	if err := e.tasks.Create(ctx, rec, domain.TaskSubmission{UserID: userID, Kind: kind}); err != nil {
		tasksSubmittedTotal.WithLabelValues("persist_error").Inc()
		return nil, fmt.Errorf("create task record: %w", err)
	}

	log = log.With(slog.String("task_id", rec.TaskID.String()), slog.String("kind", kind))

	msg := broker.Message{TaskID: rec.TaskID, UserID: userID, Kind: kind}
	if err := e.publisher.Publish(ctx, msg); err != nil {
		tasksSubmittedTotal.WithLabelValues("dispatch_error").Inc()
		log.Error("failed to dispatch task", slog.String("error", err.Error()))
		e.failUndispatched(ctx, log, rec.TaskID, err)
		return nil, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	tasksSubmittedTotal.WithLabelValues("dispatched").Inc()
	log.Info("task submitted", slog.String("user_id", userID.String()))
	return &Handle{TaskID: rec.TaskID, Status: domain.TaskStatusPending}, nil
}

// failUndispatched records the dispatch failure so pollers see a terminal
// status instead of a task that stays PENDING forever.
func (e *Engine) failUndispatched(ctx context.Context, log *slog.Logger, id uuid.UUID, cause error) {
	_, payload := domain.Failed(domain.FailureKindDispatch, cause.Error()).Encode()
	err := e.tasks.Transition(context.WithoutCancel(ctx), id, domain.Transition{
		From:   domain.TaskStatusPending,
		To:     domain.TaskStatusFailed,
		Result: &payload,
		At:     e.now(),
	})
	if err != nil {
		log.Error("failed to mark undispatched task as failed",
			slog.Bool("fatal_for_task", true),
			slog.String("error", err.Error()))
	}
}

// Recover publishes every PENDING task again and returns how many were
// accepted by the broker. A task that is still queued from before runs once:
// the second delivery finds it already claimed. Publish failures leave the
// task PENDING for the next recovery.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	log := logger.FromContextOrDefault(ctx, e.logger)

	pending, err := e.tasks.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending tasks: %w", err)
	}

	recovered := 0
	for _, p := range pending {
		msg := broker.Message{TaskID: p.TaskID, UserID: p.UserID, Kind: p.Kind}
		if err := e.publisher.Publish(ctx, msg); err != nil {
			tasksSubmittedTotal.WithLabelValues("recover_error").Inc()
			log.Error("failed to republish pending task",
				slog.String("task_id", p.TaskID.String()),
				slog.String("kind", p.Kind),
				slog.String("error", err.Error()))
			continue
		}
		tasksSubmittedTotal.WithLabelValues("recovered").Inc()
		recovered++
	}

	log.Info("recovered pending tasks",
		slog.Int("pending_count", len(pending)),
		slog.Int("recovered_count", recovered))
	return recovered, nil
}

// GetStatus returns the current view of a task. Unknown ids report ok=false.
// Terminal views are served from the cache when present.
func (e *Engine) GetStatus(ctx context.Context, id uuid.UUID) (*domain.TaskStatusView, bool, error) {
	if e.cache != nil {
		if v, ok := e.cache.Get(ctx, id); ok {
			return v, true, nil
		}
	}

	rec, err := e.tasks.Get(ctx, id)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get task %s: %w", id, err)
	}

	view := rec.View()
	if e.cache != nil && view.Status.IsTerminal() {
		e.cache.Set(ctx, view)
	}
	return view, true, nil
}
