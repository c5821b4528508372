// Package diskstore keeps uploaded blobs on a filesystem: request-unique
// temporary files under a temp directory and permanent files under the
// storage directory, moved between the two by rename.
package diskstore

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

const (
	tempPattern = "upload-*.part"
	dirMode     = os.FileMode(0o750)
)

var (
	// ErrExists is returned when promotion would overwrite a stored file.
	ErrExists = errors.New("stored file already exists")

	// ErrInvalidName is returned for storage names that would escape the
	// storage directory.
	ErrInvalidName = errors.New("invalid storage name")
)

// Store manages the temp and permanent directories on one filesystem.
type Store struct {
	fs      afero.Fs
	dir     string
	tempDir string
	logger  *slog.Logger

	// link creates newname as a hard link to oldname and fails if newname
	// exists. Nil when the filesystem has no hard links.
	link func(oldname, newname string) error

	// promoteMu serializes the check-then-rename fallback within a process.
	promoteMu sync.Mutex
}

// New creates both directories if needed.
// If logger is nil, a default logger will be used.
func New(fsys afero.Fs, dir, tempDir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := fsys.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	if err := fsys.MkdirAll(tempDir, dirMode); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	return &Store{
		fs:      fsys,
		dir:     filepath.Clean(dir),
		tempDir: filepath.Clean(tempDir),
		logger:  logger.With(slog.String("component", "diskstore")),
	}, nil
}

// NewOS is New over the host filesystem. Promotion there is exclusive
// across processes.
func NewOS(dir, tempDir string, logger *slog.Logger) (*Store, error) {
	s, err := New(afero.NewOsFs(), dir, tempDir, logger)
	if err != nil {
		return nil, err
	}
	s.link = os.Link
	return s, nil
}

// CreateTemp opens a new request-unique file in the temp directory.
// The caller owns the file and must Close and eventually Remove it.
func (s *Store) CreateTemp() (afero.File, error) {
	f, err := afero.TempFile(s.fs, s.tempDir, tempPattern)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return f, nil
}

// Open opens a temp file (by path) for reading.
func (s *Store) Open(path string) (afero.File, error) {
	return s.fs.Open(path)
}

// OpenStored opens a permanent file by storage name for reading.
func (s *Store) OpenStored(storedName string) (afero.File, error) {
	p, err := s.storedPath(storedName)
	if err != nil {
		return nil, err
	}
	return s.fs.Open(p)
}

// Promote moves a temp file to its permanent storage name and never
// replaces an existing file. On the host filesystem the file is hard-linked
// into place, which fails atomically when the name is taken, and the temp
// name is then removed. Filesystems without hard links fall back to a stat
// and rename under a lock, which is exclusive only within this process.
func (s *Store) Promote(tempPath, storedName string) (string, error) {
	dst, err := s.storedPath(storedName)
	if err != nil {
		return "", err
	}

	if s.link != nil {
		err := s.link(tempPath, dst)
		switch {
		case err == nil:
			if rmErr := s.Remove(tempPath); rmErr != nil {
				s.logger.Warn("failed to remove promoted temp file",
					slog.String("path", tempPath),
					slog.String("error", rmErr.Error()))
			}
			return dst, nil
		case errors.Is(err, fs.ErrExist):
			return "", fmt.Errorf("%w: %s", ErrExists, storedName)
		default:
			s.logger.Debug("hard link unavailable, promoting by rename",
				slog.String("error", err.Error()))
		}
	}

	s.promoteMu.Lock()
	defer s.promoteMu.Unlock()

	if _, err := s.fs.Stat(dst); err == nil {
		return "", fmt.Errorf("%w: %s", ErrExists, storedName)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("stat stored file: %w", err)
	}

	if err := s.fs.Rename(tempPath, dst); err != nil {
		return "", fmt.Errorf("promote %s: %w", filepath.Base(tempPath), err)
	}
	return dst, nil
}

// Demote moves a promoted file back to its temp path so a later Remove of the
// temp path cleans it up.
func (s *Store) Demote(storedPath, tempPath string) error {
	if err := s.fs.Rename(storedPath, tempPath); err != nil {
		return fmt.Errorf("demote %s: %w", filepath.Base(storedPath), err)
	}
	return nil
}

// Remove deletes path; a missing file is not an error.
func (s *Store) Remove(path string) error {
	if err := s.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// CheckSameFilesystem verifies that a file can be renamed from the temp
// directory into the storage directory, which promotion relies on.
func (s *Store) CheckSameFilesystem() error {
	f, err := s.CreateTemp()
	if err != nil {
		return err
	}
	check := f.Name()
	if err := f.Close(); err != nil {
		_ = s.Remove(check)
		return fmt.Errorf("close check file: %w", err)
	}

	dst := filepath.Join(s.dir, ".fscheck-"+filepath.Base(check))
	if err := s.fs.Rename(check, dst); err != nil {
		_ = s.Remove(check)
		return fmt.Errorf("temp dir %s and storage dir %s must share a filesystem: %w", s.tempDir, s.dir, err)
	}
	if err := s.Remove(dst); err != nil {
		s.logger.Warn("failed to remove check file", slog.String("path", dst), slog.String("error", err.Error()))
	}
	return nil
}

// Dir returns the permanent storage directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) storedPath(storedName string) (string, error) {
	if storedName == "" || storedName != filepath.Base(storedName) ||
		strings.HasPrefix(storedName, ".") || strings.ContainsAny(storedName, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, storedName)
	}
	return filepath.Join(s.dir, storedName), nil
}
