package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/fcs-vault/internal/api/shared"
	"github.com/phrazzld/fcs-vault/internal/domain"
	"github.com/phrazzld/fcs-vault/internal/ingest"
	"github.com/phrazzld/fcs-vault/internal/platform/logger"
	"github.com/phrazzld/fcs-vault/internal/store"
)

const (
	// multipartOverhead is the body allowance on top of the file size
	// ceiling for boundaries, part headers and the is_public field.
	multipartOverhead = 64 << 10

	// maxFieldBytes bounds the value of non-file form fields.
	maxFieldBytes = 16
)

// FileService is what the file endpoints need from the ingest package.
type FileService interface {
	Ingest(ctx context.Context, req ingest.UploadRequest) (*ingest.Descriptor, error)
	Resolve(ctx context.Context, slug string) (*domain.FileRecord, bool, error)
	SetVisibility(ctx context.Context, slug string, isPublic bool, actor domain.UserID) error
	ListVisible(ctx context.Context, viewer domain.Owner) ([]*ingest.Descriptor, error)
	ListOwned(ctx context.Context, user domain.UserID) ([]*ingest.Descriptor, error)
	OwnerSummary(ctx context.Context, user domain.UserID) (domain.FileStats, error)
	Activities(ctx context.Context, user domain.UserID, limit int) ([]*domain.Activity, error)
	OpenContent(rec *domain.FileRecord) (io.ReadCloser, error)
}

// VisibilityRequest is the body of PUT /api/files/{slug}/visibility.
type VisibilityRequest struct {
	IsPublic *bool `json:"is_public" validate:"required"`
}

// FileHandler serves upload, lookup, download and visibility endpoints.
type FileHandler struct {
	files          FileService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewFileHandler creates a FileHandler. maxUploadBytes is the file size
// ceiling enforced by the ingest pipeline.
// If logger is nil, a default logger will be used.
func NewFileHandler(files FileService, maxUploadBytes int64, logger *slog.Logger) *FileHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileHandler{
		files:          files,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(slog.String("component", "file_handler")),
	}
}

// Upload handles POST /api/files/upload.
//
// The body is read part by part: an optional is_public field, then the file
// part, which is streamed into the pipeline without buffering it whole.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	isPublic := true
	if q := r.URL.Query().Get("is_public"); q != "" {
		v, err := strconv.ParseBool(q)
		if err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "is_public must be a boolean",
				shared.WithKind(KindValidation))
			return
		}
		isPublic = v
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Expected a multipart/form-data body", err,
			shared.WithKind(KindValidation))
		return
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			h.uploadReadError(w, r, err)
			return
		}

		switch part.FormName() {
		case "is_public":
			v, err := readBoolField(part)
			_ = part.Close()
			if err != nil {
				shared.RespondWithError(w, r, http.StatusBadRequest, "is_public must be a boolean",
					shared.WithKind(KindValidation))
				return
			}
			isPublic = v

		case "file":
			desc, err := h.files.Ingest(r.Context(), ingest.UploadRequest{
				Reader:   part,
				Filename: part.FileName(),
				IsPublic: isPublic,
				Owner:    shared.GetOwner(r.Context()),
			})
			_ = part.Close()
			if err != nil {
				HandleAPIError(w, r, err, "Failed to upload file")
				return
			}
			shared.RespondWithJSON(w, r, http.StatusCreated, desc)
			return

		default:
			log.Debug("skipping unknown form part", slog.String("part", part.FormName()))
			if _, err := io.Copy(io.Discard, part); err != nil {
				_ = part.Close()
				h.uploadReadError(w, r, err)
				return
			}
			_ = part.Close()
		}
	}

	shared.RespondWithError(w, r, http.StatusBadRequest, "Missing file part", shared.WithKind(KindValidation))
}

func (h *FileHandler) uploadReadError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		HandleAPIError(w, r, fmt.Errorf("%w: %v", ingest.ErrFileTooLarge, err), "")
		return
	}
	HandleAPIError(w, r, fmt.Errorf("%w: %v", ingest.ErrIncompleteUpload, err), "")
}

func readBoolField(r io.Reader) (bool, error) {
	raw, err := io.ReadAll(io.LimitReader(r, maxFieldBytes+1))
	if err != nil {
		return false, err
	}
	if len(raw) > maxFieldBytes {
		return false, errors.New("field too long")
	}
	return strconv.ParseBool(strings.TrimSpace(string(raw)))
}

// List handles GET /api/files: public files plus the caller's own.
func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	descs, err := h.files.ListVisible(r.Context(), shared.GetOwner(r.Context()))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list files")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, descs)
}

// Get handles GET /api/files/{slug}.
func (h *FileHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.resolveVisible(w, r)
	if !ok {
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, ingest.NewDescriptor(rec))
}

// Download handles GET /api/files/{slug}/download.
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.resolveVisible(w, r)
	if !ok {
		return
	}

	content, err := h.files.OpenContent(rec)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to read file")
		return
	}
	defer func() { _ = content.Close() }()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment",
		map[string]string{"filename": rec.OriginalFilename}))
	w.Header().Set("Content-Length", strconv.FormatInt(rec.SizeBytes, 10))
	w.WriteHeader(http.StatusOK)

	if n, err := io.Copy(w, content); err != nil {
		// Headers are already sent; all that is left is to record it.
		logger.FromContextOrDefault(r.Context(), h.logger).Warn("download interrupted",
			slog.String("slug", rec.Slug),
			slog.Int64("bytes_written", n),
			slog.String("error", err.Error()))
	}
}

// SetVisibility handles PUT /api/files/{slug}/visibility.
func (h *FileHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.GetUserID(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found", shared.WithKind(KindAuth))
		return
	}

	var req VisibilityRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err,
			shared.WithKind(KindValidation))
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err,
			shared.WithKind(KindValidation))
		return
	}

	if err := h.files.SetVisibility(r.Context(), chi.URLParam(r, "slug"), *req.IsPublic, userID); err != nil {
		HandleAPIError(w, r, err, "Failed to update visibility")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resolveVisible looks up the slug and answers 404 for unknown records and
// for private records the caller does not own.
func (h *FileHandler) resolveVisible(w http.ResponseWriter, r *http.Request) (*domain.FileRecord, bool) {
	rec, ok, err := h.files.Resolve(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to look up file")
		return nil, false
	}
	if !ok || !rec.VisibleTo(shared.GetOwner(r.Context())) {
		HandleAPIError(w, r, store.ErrFileNotFound, "")
		return nil, false
	}
	return rec, true
}
