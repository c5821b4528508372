// Package ingest implements the file ingestion pipeline and the read-side
// operations on stored files.
//
// An upload is validated by extension, streamed in bounded chunks into a
// request-unique temp file, sniffed for its FCS version, promoted into the
// storage directory by rename and finally recorded in the file store. Every
// exit path removes the temp file.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/phrazzld/fcs-vault/internal/domain"
	"github.com/phrazzld/fcs-vault/internal/fcs"
	"github.com/phrazzld/fcs-vault/internal/platform/diskstore"
	"github.com/phrazzld/fcs-vault/internal/platform/logger"
	"github.com/phrazzld/fcs-vault/internal/refgen"
	"github.com/phrazzld/fcs-vault/internal/store"
	"github.com/spf13/afero"
)

// BlobStore is the subset of diskstore.Store the pipeline needs.
type BlobStore interface {
	CreateTemp() (afero.File, error)
	Open(path string) (afero.File, error)
	OpenStored(storedName string) (afero.File, error)
	Promote(tempPath, storedName string) (string, error)
	Demote(storedPath, tempPath string) error
	Remove(path string) error
}

// Config holds the pipeline limits.
type Config struct {
	AllowedExtensions []string
	MaxBytes          int64
	ChunkSize         int
	CollisionRetries  int
}

// UploadRequest is one incoming file.
type UploadRequest struct {
	Reader   io.Reader
	Filename string
	IsPublic bool
	Owner    domain.Owner
}

// Service runs uploads and serves file records.
type Service struct {
	files      store.FileStore
	activities store.ActivityStore
	blobs      BlobStore
	refs       refgen.Generator
	cfg        Config
	allowed    map[string]struct{}
	logger     *slog.Logger
	now        func() time.Time
}

// NewService validates cfg and wires the collaborators. activities may be
// nil, in which case nothing is recorded in the activity log.
// If logger is nil, a default logger will be used.
func NewService(
	files store.FileStore,
	activities store.ActivityStore,
	blobs BlobStore,
	refs refgen.Generator,
	cfg Config,
	logger *slog.Logger,
) (*Service, error) {
	if files == nil || blobs == nil || refs == nil {
		return nil, errors.New("ingest: file store, blob store and generator are required")
	}
	if cfg.MaxBytes <= 0 || cfg.ChunkSize <= 0 || cfg.CollisionRetries <= 0 {
		return nil, fmt.Errorf("ingest: invalid limits %+v", cfg)
	}
	if len(cfg.AllowedExtensions) == 0 {
		return nil, errors.New("ingest: at least one allowed extension is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(ext)] = struct{}{}
	}

	return &Service{
		files:      files,
		activities: activities,
		blobs:      blobs,
		refs:       refs,
		cfg:        cfg,
		allowed:    allowed,
		logger:     logger.With(slog.String("component", "ingest")),
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Ingest stores one upload and returns its descriptor.
func (s *Service) Ingest(ctx context.Context, req UploadRequest) (*Descriptor, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("filename", req.Filename),
		slog.String("owner", req.Owner.String()),
	)
	start := time.Now()

	name := strings.TrimSpace(req.Filename)
	if name == "" || req.Reader == nil {
		return nil, ErrInvalidFilename
	}
	if !s.AllowedExtension(name) {
		uploadsTotal.WithLabelValues(outcomeFormat).Inc()
		log.Info("upload rejected: unsupported format")
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, strings.ToLower(filepath.Ext(name)))
	}

	tmp, err := s.blobs.CreateTemp()
	if err != nil {
		uploadsTotal.WithLabelValues(outcomeStorage).Inc()
		log.Error("failed to create temp file", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	tempPath := tmp.Name()
	defer func() {
		if err := s.blobs.Remove(tempPath); err != nil {
			log.Error("failed to remove temp file",
				slog.String("path", tempPath),
				slog.String("error", err.Error()))
		}
	}()

	size, err := s.copyBounded(ctx, tmp, req.Reader)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("%w: close temp file: %v", ErrStorage, closeErr)
	}
	if err != nil {
		s.countFailure(err)
		log.Info("upload aborted", slog.Int64("bytes_read", size), slog.String("error", err.Error()))
		return nil, err
	}

	version := s.sniff(tempPath, log)

	rec, err := s.persist(ctx, log, tempPath, req, name, size, version)
	if err != nil {
		s.countFailure(err)
		return nil, err
	}

	uploadsTotal.WithLabelValues(outcomeStored).Inc()
	uploadBytes.Observe(float64(size))
	log.Info("file uploaded",
		slog.String("slug", rec.Slug),
		slog.Int64("size_bytes", size),
		slog.Bool("is_public", rec.IsPublic),
		slog.Duration("duration", time.Since(start)))

	if user, ok := req.Owner.ID(); ok {
		s.recordActivity(ctx, log, user, domain.ActivityFileUpload,
			fmt.Sprintf("Uploaded file: %s (%s)", rec.OriginalFilename, visibilityWord(rec.IsPublic)))
	}

	return NewDescriptor(rec), nil
}

// AllowedExtension reports whether name has an allowed extension.
func (s *Service) AllowedExtension(name string) bool {
	_, ok := s.allowed[strings.ToLower(filepath.Ext(name))]
	return ok
}

// copyBounded streams r into w one chunk at a time and stops as soon as the
// running total passes the ceiling.
func (s *Service) copyBounded(ctx context.Context, w io.Writer, r io.Reader) (int64, error) {
	buf := make([]byte, s.cfg.ChunkSize)
	var total int64

	for {
		if err := ctx.Err(); err != nil {
			return total, fmt.Errorf("%w: %v", ErrIncompleteUpload, err)
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			total += int64(n)
			if total > s.cfg.MaxBytes {
				return total, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, s.cfg.MaxBytes)
			}
			if _, err := w.Write(buf[:n]); err != nil {
				return total, fmt.Errorf("%w: write temp file: %v", ErrStorage, err)
			}
		}
		if errors.Is(readErr, io.EOF) {
			return total, nil
		}
		if readErr != nil {
			return total, fmt.Errorf("%w: %v", ErrIncompleteUpload, readErr)
		}
	}
}

// sniff returns the FCS version of the temp file, nil when unknown.
func (s *Service) sniff(tempPath string, log *slog.Logger) *string {
	f, err := s.blobs.Open(tempPath)
	if err != nil {
		log.Warn("failed to reopen temp file for sniffing", slog.String("error", err.Error()))
		return nil
	}
	defer func() {
		_ = f.Close()
	}()

	version := fcs.Version(f)
	if version == nil {
		log.Info("no FCS header found")
	}
	return version
}

// persist promotes the temp file and records it, redrawing references on
// collision up to CollisionRetries times. On return the temp path either
// holds the bytes again or nothing at all.
func (s *Service) persist(
	ctx context.Context,
	log *slog.Logger,
	tempPath string,
	req UploadRequest,
	name string,
	size int64,
	version *string,
) (*domain.FileRecord, error) {
	var lastErr error

	for attempt := 1; attempt <= s.cfg.CollisionRetries; attempt++ {
		rec, err := domain.NewFileRecord(domain.FileRecordParams{
			Owner:            req.Owner,
			OriginalFilename: name,
			StoredFilename:   s.refs.NewStorageName(name),
			SizeBytes:        size,
			FormatVersion:    version,
			IsPublic:         req.IsPublic,
			Slug:             s.refs.NewSlug(),
			UploadedAt:       s.now(),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}

		storedPath, err := s.blobs.Promote(tempPath, rec.StoredFilename)
		if err != nil {
			if errors.Is(err, diskstore.ErrExists) {
				referenceCollisions.Inc()
				lastErr = err
				log.Warn("storage name collision, drawing new references", slog.Int("attempt", attempt))
				continue
			}
			log.Error("failed to promote temp file", slog.String("error", err.Error()))
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}

		err = s.files.Create(ctx, rec)
		if err == nil {
			return rec, nil
		}

		if demoteErr := s.blobs.Demote(storedPath, tempPath); demoteErr != nil {
			s.removeOrphan(log, storedPath, rec.Slug, demoteErr)
			return nil, fmt.Errorf("%w: record not persisted and file could not be restored: %v", ErrStorage, err)
		}

		if store.IsDuplicateError(err) {
			referenceCollisions.Inc()
			lastErr = err
			log.Warn("reference collision, drawing new references",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			continue
		}

		log.Error("failed to persist file record", slog.String("error", err.Error()))
		return nil, fmt.Errorf("persist file record: %w", err)
	}

	log.Error("reference collision retries exhausted",
		slog.Int("attempts", s.cfg.CollisionRetries),
		slog.String("error", errString(lastErr)))
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrReferenceCollision, s.cfg.CollisionRetries, lastErr)
}

// removeOrphan deletes a promoted file whose record could not be written.
// If that fails too, the file stays behind and is reported for manual cleanup.
func (s *Service) removeOrphan(log *slog.Logger, storedPath, slug string, cause error) {
	err := s.blobs.Remove(storedPath)
	if err == nil {
		log.Warn("removed stored file after failed persistence",
			slog.String("path", storedPath),
			slog.String("demote_error", cause.Error()))
		return
	}

	orphanedFiles.Inc()
	log.Error("stored file left without a record",
		slog.Bool("orphaned_file", true),
		slog.String("path", storedPath),
		slog.String("slug", slug),
		slog.String("demote_error", cause.Error()),
		slog.String("remove_error", err.Error()))
}

func (s *Service) countFailure(err error) {
	switch {
	case errors.Is(err, ErrFileTooLarge):
		uploadsTotal.WithLabelValues(outcomeSize).Inc()
	case errors.Is(err, ErrIncompleteUpload):
		uploadsTotal.WithLabelValues(outcomeRead).Inc()
	case errors.Is(err, ErrStorage):
		uploadsTotal.WithLabelValues(outcomeStorage).Inc()
	case errors.Is(err, ErrReferenceCollision):
		uploadsTotal.WithLabelValues(outcomeCollision).Inc()
	default:
		uploadsTotal.WithLabelValues(outcomePersist).Inc()
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
