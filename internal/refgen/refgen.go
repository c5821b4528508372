// Package refgen generates the opaque references attached to uploaded files:
// the public slug and the on-disk storage name.
//
// Generation is pure and never checks uniqueness; the record store enforces
// it and callers draw again on collision.
package refgen

import (
	"path"
	"strings"

	"github.com/lithammer/shortuuid/v4"
	"github.com/phrazzld/fcs-vault/internal/domain"
)

const (
	// maxNameTail caps the sanitized original name kept in storage names.
	maxNameTail = 64

	// fallbackName is used when nothing of the original name survives sanitizing.
	fallbackName = "file"
)

// Generator produces slugs and storage names.
type Generator interface {
	NewSlug() string
	NewStorageName(original string) string
}

// ShortUUID is the default Generator, backed by random v4 UUIDs encoded in
// a 57-symbol URL-safe alphabet.
type ShortUUID struct{}

// NewSlug returns a domain.SlugLength character reference.
func (ShortUUID) NewSlug() string {
	return NewSlug()
}

// NewStorageName returns a unique-looking on-disk name for original.
func (ShortUUID) NewStorageName(original string) string {
	return NewStorageName(original)
}

// NewSlug returns a fresh domain.SlugLength character reference.
func NewSlug() string {
	return shortuuid.New()[:domain.SlugLength]
}

// NewStorageName returns "<shortuuid>_<sanitized base name>".
// The result never contains a path separator.
func NewStorageName(original string) string {
	return shortuuid.New() + "_" + SanitizeName(original)
}

// SanitizeName reduces an untrusted client file name to its base name made
// of [A-Za-z0-9._-], without leading dots, capped at 64 characters.
func SanitizeName(original string) string {
	base := path.Base(strings.ReplaceAll(original, `\`, "/"))

	var b strings.Builder
	for _, r := range base {
		if b.Len() >= maxNameTail {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}

	name := strings.TrimLeft(b.String(), ".")
	if name == "" {
		return fallbackName
	}
	return name
}
