package domain

import (
	"errors"
	"fmt"
	"time"
)

// SlugLength is the fixed length of every public file reference.
const SlugLength = 8

// Common validation errors for FileRecord
var (
	ErrEmptyOriginalFilename = errors.New("original filename cannot be empty")
	ErrEmptyStoredFilename   = errors.New("stored filename cannot be empty")
	ErrNegativeSize          = errors.New("file size cannot be negative")
	ErrInvalidSlug           = fmt.Errorf("slug must be exactly %d characters", SlugLength)
)

// FileRecord is the persisted metadata of one uploaded file.
// Only IsPublic may change after creation, and only by the owner.
type FileRecord struct {
	ID               int64     `json:"id"`
	Owner            Owner     `json:"owner_id"`
	OriginalFilename string    `json:"original_filename"`
	StoredFilename   string    `json:"-"`
	SizeBytes        int64     `json:"size_bytes"`
	FormatVersion    *string   `json:"format_version"`
	IsPublic         bool      `json:"is_public"`
	Slug             string    `json:"slug"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

// FileRecordParams enumerates every field accepted when creating a FileRecord.
// The ID is assigned by the record store.
type FileRecordParams struct {
	Owner            Owner
	OriginalFilename string
	StoredFilename   string
	SizeBytes        int64
	FormatVersion    *string
	IsPublic         bool
	Slug             string
	UploadedAt       time.Time
}

// NewFileRecord builds and validates a FileRecord from explicit parameters.
// A zero UploadedAt is replaced by the current UTC time.
func NewFileRecord(p FileRecordParams) (*FileRecord, error) {
	uploadedAt := p.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now().UTC()
	}

	f := &FileRecord{
		Owner:            p.Owner,
		OriginalFilename: p.OriginalFilename,
		StoredFilename:   p.StoredFilename,
		SizeBytes:        p.SizeBytes,
		FormatVersion:    p.FormatVersion,
		IsPublic:         p.IsPublic,
		Slug:             p.Slug,
		UploadedAt:       uploadedAt,
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks if the FileRecord has valid data.
func (f *FileRecord) Validate() error {
	if f.OriginalFilename == "" {
		return ErrEmptyOriginalFilename
	}
	if f.StoredFilename == "" {
		return ErrEmptyStoredFilename
	}
	if f.SizeBytes < 0 {
		return ErrNegativeSize
	}
	if len(f.Slug) != SlugLength {
		return ErrInvalidSlug
	}
	return nil
}

// VisibleTo reports whether the viewer may see the record.
func (f *FileRecord) VisibleTo(viewer Owner) bool {
	if f.IsPublic {
		return true
	}
	id, ok := viewer.ID()
	return ok && f.Owner.Is(id)
}

// FileStats aggregates a user's uploads.
type FileStats struct {
	TotalFiles     int64 `json:"total_files"`
	TotalSizeBytes int64 `json:"total_size_bytes"`
}
