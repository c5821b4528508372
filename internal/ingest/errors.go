package ingest

import "errors"

// Validation errors, returned before any durable write.
var (
	// ErrUnsupportedFormat is returned for file extensions outside the allow-list.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrFileTooLarge is returned once the stream exceeds the size ceiling.
	ErrFileTooLarge = errors.New("file exceeds maximum size")

	// ErrInvalidFilename is returned for empty client file names.
	ErrInvalidFilename = errors.New("invalid filename")

	// ErrIncompleteUpload is returned when the client stream fails mid-read.
	ErrIncompleteUpload = errors.New("upload stream interrupted")
)

var (
	// ErrStorage wraps temp-write and promotion failures.
	ErrStorage = errors.New("file storage failed")

	// ErrReferenceCollision is returned when every attempt drew a slug or
	// storage name that was already taken.
	ErrReferenceCollision = errors.New("could not allocate unique file reference")

	// ErrNotOwner is returned when a visibility change is attempted by anyone
	// other than the record owner.
	ErrNotOwner = errors.New("only the file owner can change visibility")
)
