package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/fcs-vault/internal/api/shared"
	"github.com/phrazzld/fcs-vault/internal/domain"
	"github.com/phrazzld/fcs-vault/internal/platform/logger"
	"github.com/phrazzld/fcs-vault/internal/store"
	"github.com/phrazzld/fcs-vault/internal/task"
)

// TaskService submits statistics tasks and reports their status.
type TaskService interface {
	Submit(ctx context.Context, userID domain.UserID) (*task.Handle, error)
	GetStatus(ctx context.Context, id uuid.UUID) (*domain.TaskStatusView, bool, error)
}

// StatsHandler serves the statistics endpoints.
type StatsHandler struct {
	tasks  TaskService
	files  FileService
	logger *slog.Logger
}

// NewStatsHandler creates a StatsHandler.
// If logger is nil, a default logger will be used.
func NewStatsHandler(tasks TaskService, files FileService, logger *slog.Logger) *StatsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsHandler{
		tasks:  tasks,
		files:  files,
		logger: logger.With(slog.String("component", "stats_handler")),
	}
}

// SubmitTask handles POST /api/stats/tasks.
func (h *StatsHandler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.GetUserID(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found", shared.WithKind(KindAuth))
		return
	}

	handle, err := h.tasks.Submit(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to submit task")
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Debug("statistics task accepted",
		slog.String("task_id", handle.TaskID.String()))
	shared.RespondWithJSON(w, r, http.StatusAccepted, handle)
}

// GetTask handles GET /api/stats/tasks/{task_id}. A malformed id cannot
// name a task and is reported as not found.
func (h *StatsHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "task_id"))
	if err != nil {
		HandleAPIError(w, r, store.ErrTaskNotFound, "")
		return
	}

	view, ok, err := h.tasks.GetStatus(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get task status")
		return
	}
	if !ok {
		HandleAPIError(w, r, store.ErrTaskNotFound, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, view)
}

// UserFiles handles GET /api/stats/user/files.
func (h *StatsHandler) UserFiles(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.GetUserID(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found", shared.WithKind(KindAuth))
		return
	}

	descs, err := h.files.ListOwned(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list files")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, descs)
}

// UserSummary handles GET /api/stats/user/summary.
func (h *StatsHandler) UserSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.GetUserID(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found", shared.WithKind(KindAuth))
		return
	}

	stats, err := h.files.OwnerSummary(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to summarize files")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}

// UserActivities handles GET /api/stats/user/activities. The optional
// limit query parameter must be a positive integer.
func (h *StatsHandler) UserActivities(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.GetUserID(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found", shared.WithKind(KindAuth))
		return
	}

	limit := 0
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "limit must be a positive integer",
				shared.WithKind(KindValidation))
			return
		}
		limit = n
	}

	entries, err := h.files.Activities(r.Context(), userID, limit)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list activities")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, entries)
}
