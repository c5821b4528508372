package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/phrazzld/fcs-vault/internal/broker"
	"github.com/phrazzld/fcs-vault/internal/domain"
	"github.com/phrazzld/fcs-vault/internal/platform/logger"
	"github.com/phrazzld/fcs-vault/internal/store"
)

// Worker executes delivered task messages.
type Worker struct {
	tasks    store.TaskStore
	registry *Registry
	logger   *slog.Logger
	now      func() time.Time
}

// NewWorker creates a Worker.
// If logger is nil, a default logger will be used.
func NewWorker(tasks store.TaskStore, registry *Registry, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		tasks:    tasks,
		registry: registry,
		logger:   logger.With(slog.String("component", "task_worker")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Handle claims the task, runs it and records the outcome. It is a
// broker.Handler. The work is detached from ctx cancellation so shutdown
// lets an in-flight task finish.
func (w *Worker) Handle(ctx context.Context, msg broker.Message) error {
	ctx = context.WithoutCancel(ctx)
	log := logger.FromContextOrDefault(ctx, w.logger).With(
		slog.String("task_id", msg.TaskID.String()),
		slog.String("kind", msg.Kind))

	claimedAt := w.now()
	err := w.tasks.Transition(ctx, msg.TaskID, domain.Transition{
		From: domain.TaskStatusPending,
		To:   domain.TaskStatusRunning,
		At:   claimedAt,
	})
	if err != nil {
		if errors.Is(err, store.ErrTransitionConflict) || store.IsNotFoundError(err) {
			log.Info("skipping task that is not claimable", slog.String("reason", err.Error()))
			return nil
		}
		return fmt.Errorf("claim task %s: %w", msg.TaskID, err)
	}

	log.Info("processing task")
	start := time.Now()

	outcome := w.run(ctx, log, msg)
	status, payload := outcome.Encode()

	err = w.tasks.Transition(ctx, msg.TaskID, domain.Transition{
		From:   domain.TaskStatusRunning,
		To:     status,
		Result: &payload,
		At:     w.now(),
	})
	if err != nil {
		log.Error("failed to record task outcome",
			slog.Bool("fatal_for_task", true),
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: task %s: %v", ErrTransitionPersist, msg.TaskID, err)
	}

	taskDuration.WithLabelValues(msg.Kind).Observe(time.Since(start).Seconds())
	tasksFinishedTotal.WithLabelValues(string(status), msg.Kind).Inc()

	if outcome.OK() {
		log.Info("task finished", slog.Duration("duration", time.Since(start)))
	} else {
		log.Warn("task failed",
			slog.String("failure_kind", outcome.Failure.Kind),
			slog.String("detail", outcome.Failure.Detail))
	}
	return nil
}

// run executes the computation and converts every way it can end, panics
// included, into an Outcome.
func (w *Worker) run(ctx context.Context, log *slog.Logger, msg broker.Message) (out domain.Outcome) {
	compute, ok := w.registry.Lookup(msg.Kind)
	if !ok {
		return domain.Failed(domain.FailureKindUnknownKind, msg.Kind)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("task computation panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			out = domain.Failed(domain.FailureKindPanic, fmt.Sprint(r))
		}
	}()

	value, err := compute(ctx, msg.TaskID, msg.UserID)
	if err != nil {
		return domain.Failed(domain.FailureKindComputation, err.Error())
	}
	return domain.Succeeded(value)
}
