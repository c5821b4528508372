package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/fcs-vault/internal/domain"
	"github.com/phrazzld/fcs-vault/internal/platform/logger"
	"github.com/phrazzld/fcs-vault/internal/store"
)

const fileColumns = `id, owner_id, original_filename, stored_filename, size_bytes,
	format_version, is_public, slug, uploaded_at`

// PostgresFileStore implements the store.FileStore interface
// using a PostgreSQL database as the storage backend.
type PostgresFileStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresFileStore creates a new PostgreSQL implementation of the FileStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresFileStore(db store.DBTX, logger *slog.Logger) *PostgresFileStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresFileStore{
		db:     db,
		logger: logger.With(slog.String("component", "file_store")),
	}
}

// Ensure PostgresFileStore implements store.FileStore interface
var _ store.FileStore = (*PostgresFileStore)(nil)

// Create implements store.FileStore.Create.
// Unique violations on the slug or the stored filename are returned as
// store.ErrSlugExists / store.ErrStoredNameExists so the caller can retry with
// fresh references.
func (s *PostgresFileStore) Create(ctx context.Context, file *domain.FileRecord) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := file.Validate(); err != nil {
		log.Warn("file validation failed during create",
			slog.String("error", err.Error()),
			slog.String("slug", file.Slug))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO files (owner_id, original_filename, stored_filename, size_bytes,
			format_version, is_public, slug, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := s.db.QueryRowContext(
		ctx,
		query,
		ownerParam(file.Owner),
		file.OriginalFilename,
		file.StoredFilename,
		file.SizeBytes,
		file.FormatVersion,
		file.IsPublic,
		file.Slug,
		file.UploadedAt,
	).Scan(&id)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("unique reference collision during file creation",
				slog.String("slug", file.Slug),
				slog.String("stored_filename", file.StoredFilename))
			return MapUniqueViolation(err, "file")
		}

		log.Error("failed to create file record",
			slog.String("error", err.Error()),
			slog.String("slug", file.Slug))
		return MapError(err)
	}

	file.ID = id
	log.Info("file record created",
		slog.Int64("file_id", id),
		slog.String("slug", file.Slug),
		slog.String("owner", file.Owner.String()))
	return nil
}

// GetBySlug implements store.FileStore.GetBySlug.
func (s *PostgresFileStore) GetBySlug(ctx context.Context, slug string) (*domain.FileRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + fileColumns + ` FROM files WHERE slug = $1`
	file, err := scanFile(s.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		if IsNotFoundError(err) {
			log.Debug("file not found", slog.String("slug", slug))
			return nil, store.ErrFileNotFound
		}
		log.Error("failed to get file by slug",
			slog.String("error", err.Error()),
			slog.String("slug", slug))
		return nil, MapError(err)
	}
	return file, nil
}

// SetVisibility implements store.FileStore.SetVisibility.
// The owner condition is part of the UPDATE so that the check and the write
// cannot interleave with another request.
func (s *PostgresFileStore) SetVisibility(
	ctx context.Context,
	slug string,
	owner domain.UserID,
	isPublic bool,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `UPDATE files SET is_public = $1 WHERE slug = $2 AND owner_id = $3`
	result, err := s.db.ExecContext(ctx, query, isPublic, slug, int64(owner))
	if err != nil {
		log.Error("failed to update file visibility",
			slog.String("error", err.Error()),
			slog.String("slug", slug))
		return store.NewStoreError("file", "set_visibility", "update failed", MapError(err))
	}

	if err := CheckRowsAffected(result, store.ErrFileNotFound); err != nil {
		return err
	}

	log.Info("file visibility updated",
		slog.String("slug", slug),
		slog.Bool("is_public", isPublic))
	return nil
}

// ListVisible implements store.FileStore.ListVisible.
func (s *PostgresFileStore) ListVisible(ctx context.Context, viewer domain.Owner) ([]*domain.FileRecord, error) {
	if id, ok := viewer.ID(); ok {
		query := `SELECT ` + fileColumns + ` FROM files
			WHERE is_public OR owner_id = $1
			ORDER BY uploaded_at DESC, id DESC`
		return s.queryFiles(ctx, query, int64(id))
	}

	query := `SELECT ` + fileColumns + ` FROM files
		WHERE is_public
		ORDER BY uploaded_at DESC, id DESC`
	return s.queryFiles(ctx, query)
}

// ListByOwner implements store.FileStore.ListByOwner.
func (s *PostgresFileStore) ListByOwner(ctx context.Context, owner domain.UserID) ([]*domain.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files
		WHERE owner_id = $1
		ORDER BY uploaded_at DESC, id DESC`
	return s.queryFiles(ctx, query, int64(owner))
}

// StatsByOwner implements store.FileStore.StatsByOwner.
func (s *PostgresFileStore) StatsByOwner(ctx context.Context, owner domain.UserID) (domain.FileStats, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var stats domain.FileStats
	query := `SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM files WHERE owner_id = $1`
	if err := s.db.QueryRowContext(ctx, query, int64(owner)).Scan(&stats.TotalFiles, &stats.TotalSizeBytes); err != nil {
		log.Error("failed to aggregate file stats",
			slog.String("error", err.Error()),
			slog.String("owner", owner.String()))
		return domain.FileStats{}, store.NewStoreError("file", "stats", "aggregate failed", MapError(err))
	}
	return stats, nil
}

func (s *PostgresFileStore) queryFiles(ctx context.Context, query string, args ...any) ([]*domain.FileRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query files", slog.String("error", err.Error()))
		return nil, store.NewStoreError("file", "list", "query failed", MapError(err))
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	files := make([]*domain.FileRecord, 0)
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			log.Error("failed to scan file row", slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating file rows", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return files, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*domain.FileRecord, error) {
	var (
		file          domain.FileRecord
		ownerID       sql.NullInt64
		formatVersion sql.NullString
	)
	err := row.Scan(
		&file.ID,
		&ownerID,
		&file.OriginalFilename,
		&file.StoredFilename,
		&file.SizeBytes,
		&formatVersion,
		&file.IsPublic,
		&file.Slug,
		&file.UploadedAt,
	)
	if err != nil {
		return nil, err
	}

	file.Owner = domain.Anonymous()
	if ownerID.Valid {
		file.Owner = domain.OwnedBy(domain.UserID(ownerID.Int64))
	}
	if formatVersion.Valid {
		v := formatVersion.String
		file.FormatVersion = &v
	}
	file.UploadedAt = file.UploadedAt.UTC()
	return &file, nil
}

// ownerParam converts an Owner to a nullable query argument.
func ownerParam(o domain.Owner) sql.NullInt64 {
	if id, ok := o.ID(); ok {
		return sql.NullInt64{Int64: int64(id), Valid: true}
	}
	return sql.NullInt64{}
}
