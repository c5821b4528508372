package ingest

import (
	"time"

	"github.com/phrazzld/fcs-vault/internal/domain"
)

// Descriptor is what callers learn about a stored file.
type Descriptor struct {
	Slug          string       `json:"slug"`
	ShortLink     string       `json:"short_link"`
	Filename      string       `json:"filename"`
	Size          int64        `json:"size"`
	FormatVersion *string      `json:"format_version"`
	IsPublic      bool         `json:"is_public"`
	OwnerID       domain.Owner `json:"owner_id"`
	UploadedAt    time.Time    `json:"uploaded_at"`
}

// ShortLinkPrefix is the route under which a slug resolves to its descriptor.
const ShortLinkPrefix = "/api/files/"

// NewDescriptor projects a FileRecord. The storage name is never exposed.
func NewDescriptor(f *domain.FileRecord) *Descriptor {
	return &Descriptor{
		Slug:          f.Slug,
		ShortLink:     ShortLinkPrefix + f.Slug,
		Filename:      f.OriginalFilename,
		Size:          f.SizeBytes,
		FormatVersion: f.FormatVersion,
		IsPublic:      f.IsPublic,
		OwnerID:       f.Owner,
		UploadedAt:    f.UploadedAt,
	}
}
