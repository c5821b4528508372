package ingest

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/phrazzld/fcs-vault/internal/mocks"
	"github.com/phrazzld/fcs-vault/internal/platform/diskstore"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const (
	storageDir = "/vault/files"
	tempDir    = "/vault/tmp"
)

// scriptedRefs hands out references in order and repeats the last one.
type scriptedRefs struct {
	mu        sync.Mutex
	slugs     []string
	names     []string
	slugCalls int
	nameCalls int
}

func (r *scriptedRefs) NewSlug() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := pick(r.slugs, r.slugCalls)
	r.slugCalls++
	return s
}

func (r *scriptedRefs) NewStorageName(original string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := pick(r.names, r.nameCalls) + "_" + original
	r.nameCalls++
	return name
}

func pick(list []string, i int) string {
	if i >= len(list) {
		return list[len(list)-1]
	}
	return list[i]
}

// hookedBlobs lets a test fail individual disk operations.
type hookedBlobs struct {
	*diskstore.Store
	demoteFn func(storedPath, tempPath string) error
	removeFn func(path string) error
}

func (b *hookedBlobs) Demote(storedPath, tempPath string) error {
	if b.demoteFn != nil {
		return b.demoteFn(storedPath, tempPath)
	}
	return b.Store.Demote(storedPath, tempPath)
}

func (b *hookedBlobs) Remove(path string) error {
	if b.removeFn != nil {
		return b.removeFn(path)
	}
	return b.Store.Remove(path)
}

type fixture struct {
	fs         afero.Fs
	disk       *diskstore.Store
	blobs      *hookedBlobs
	files      *mocks.MockFileStore
	activities *mocks.MockActivityStore
	refs       *scriptedRefs
	svc        *Service
}

func defaultConfig() Config {
	return Config{
		AllowedExtensions: []string{".fcs"},
		MaxBytes:          1 << 20,
		ChunkSize:         16,
		CollisionRetries:  3,
	}
}

func newFixture(t *testing.T, cfg Config, log *slog.Logger) *fixture {
	t.Helper()

	fsys := afero.NewMemMapFs()
	disk, err := diskstore.New(fsys, storageDir, tempDir, log)
	require.NoError(t, err)

	f := &fixture{
		fs:         fsys,
		disk:       disk,
		blobs:      &hookedBlobs{Store: disk},
		files:      mocks.NewMockFileStore(),
		activities: mocks.NewMockActivityStore(),
		refs:       &scriptedRefs{slugs: []string{"Slug0001", "Slug0002", "Slug0003"}, names: []string{"n1", "n2", "n3"}},
	}
	f.svc, err = NewService(f.files, f.activities, f.blobs, f.refs, cfg, log)
	require.NoError(t, err)
	return f
}

func (f *fixture) dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	infos, err := afero.ReadDir(f.fs, dir)
	require.NoError(t, err)
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names
}

// fcsBody returns a minimal FCS file of the given version padded to size.
func fcsBody(version string, size int) string {
	h := fmt.Sprintf("FCS%s    %8d%8d%8d%8d%8d%8d", version, 58, 100, 101, 200, 0, 0)
	if size > len(h) {
		h += strings.Repeat("x", size-len(h))
	}
	return h
}
