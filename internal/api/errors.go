package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/fcs-vault/internal/api/shared"
	"github.com/phrazzld/fcs-vault/internal/ingest"
	"github.com/phrazzld/fcs-vault/internal/service/auth"
	"github.com/phrazzld/fcs-vault/internal/store"
	"github.com/phrazzld/fcs-vault/internal/task"
)

// Error kinds reported to clients alongside the message.
const (
	KindFormat     = "format"
	KindSize       = "size"
	KindUpload     = "upload"
	KindAuth       = "auth"
	KindPermission = "permission"
	KindNotFound   = "not_found"
	KindValidation = "validation"
	KindStorage    = "storage"
	KindDispatch   = "dispatch"
	KindInternal   = "internal"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, ingest.ErrNotOwner):
		return http.StatusForbidden

	// Not found errors
	case errors.Is(err, store.ErrFileNotFound),
		errors.Is(err, store.ErrTaskNotFound):
		return http.StatusNotFound

	// Upload validation errors
	case errors.Is(err, ingest.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ingest.ErrUnsupportedFormat),
		errors.Is(err, ingest.ErrInvalidFilename),
		errors.Is(err, ingest.ErrIncompleteUpload),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// The broker refused the task; the client may retry later.
	case errors.Is(err, task.ErrDispatchFailed):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// ErrorKind returns the machine-readable kind for err.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ingest.ErrUnsupportedFormat),
		errors.Is(err, ingest.ErrInvalidFilename):
		return KindFormat
	case errors.Is(err, ingest.ErrFileTooLarge):
		return KindSize
	case errors.Is(err, ingest.ErrIncompleteUpload):
		return KindUpload
	case MapErrorToStatusCode(err) == http.StatusUnauthorized:
		return KindAuth
	case errors.Is(err, ingest.ErrNotOwner):
		return KindPermission
	case errors.Is(err, store.ErrNotFound):
		return KindNotFound
	case errors.Is(err, store.ErrInvalidEntity):
		return KindValidation
	case errors.Is(err, ingest.ErrStorage):
		return KindStorage
	case errors.Is(err, task.ErrDispatchFailed):
		return KindDispatch
	default:
		return KindInternal
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return "Authorization header required"
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid):
		return "Invalid token"

	case errors.Is(err, ingest.ErrNotOwner):
		return "Only the file owner can change visibility"

	case errors.Is(err, store.ErrFileNotFound):
		return "File not found"
	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"

	case errors.Is(err, ingest.ErrUnsupportedFormat):
		return "Unsupported file format"
	case errors.Is(err, ingest.ErrInvalidFilename):
		return "Invalid filename"
	case errors.Is(err, ingest.ErrFileTooLarge):
		return "File exceeds maximum allowed size"
	case errors.Is(err, ingest.ErrIncompleteUpload):
		return "Upload was interrupted"

	case errors.Is(err, ingest.ErrStorage):
		return "Failed to store file"
	case errors.Is(err, ingest.ErrReferenceCollision):
		return "Could not allocate a file reference"
	case errors.Is(err, task.ErrDispatchFailed):
		return "Task could not be dispatched"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid data provided"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns validator errors into a client message that
// names fields but never echoes values.
func SanitizeValidationError(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return "Invalid request format"
	}

	fieldErrors := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			fieldErrors = append(fieldErrors, fmt.Sprintf("%s is required", e.Field()))
		default:
			fieldErrors = append(fieldErrors, fmt.Sprintf("%s is invalid", e.Field()))
		}
	}
	return "Validation error: " + strings.Join(fieldErrors, "; ")
}

// HandleAPIError writes the mapped status, safe message and kind for err.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallbackMessage string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && message == GetSafeErrorMessage(nil) && fallbackMessage != "" {
		message = fallbackMessage
	}

	opts := []shared.ResponseOption{shared.WithKind(ErrorKind(err))}
	if status == http.StatusForbidden || status == http.StatusUnauthorized {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}
