package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/phrazzld/fcs-vault/internal/domain"
	"github.com/phrazzld/fcs-vault/internal/store"
)

// MockFileStore implements store.FileStore in memory, enforcing the same
// uniqueness rules as the database. Any Fn field overrides the default.
type MockFileStore struct {
	CreateFn        func(ctx context.Context, file *domain.FileRecord) error
	GetBySlugFn     func(ctx context.Context, slug string) (*domain.FileRecord, error)
	SetVisibilityFn func(ctx context.Context, slug string, owner domain.UserID, isPublic bool) error
	ListVisibleFn   func(ctx context.Context, viewer domain.Owner) ([]*domain.FileRecord, error)

	mu     sync.Mutex
	files  map[string]*domain.FileRecord
	nextID int64

	// CreateCalls counts every Create call, including failed ones.
	CreateCalls int
}

// NewMockFileStore creates an empty store.
func NewMockFileStore() *MockFileStore {
	return &MockFileStore{files: make(map[string]*domain.FileRecord)}
}

var _ store.FileStore = (*MockFileStore)(nil)

// Create implements store.FileStore.
func (m *MockFileStore) Create(ctx context.Context, file *domain.FileRecord) error {
	m.mu.Lock()
	m.CreateCalls++
	m.mu.Unlock()

	if m.CreateFn != nil {
		return m.CreateFn(ctx, file)
	}
	return m.Insert(file)
}

// Insert is the default Create behavior, usable from CreateFn overrides.
func (m *MockFileStore) Insert(file *domain.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.files[file.Slug]; exists {
		return store.ErrSlugExists
	}
	for _, f := range m.files {
		if f.StoredFilename == file.StoredFilename {
			return store.ErrStoredNameExists
		}
	}

	m.nextID++
	file.ID = m.nextID
	stored := *file
	m.files[file.Slug] = &stored
	return nil
}

// GetBySlug implements store.FileStore.
func (m *MockFileStore) GetBySlug(ctx context.Context, slug string) (*domain.FileRecord, error) {
	if m.GetBySlugFn != nil {
		return m.GetBySlugFn(ctx, slug)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[slug]
	if !ok {
		return nil, store.ErrFileNotFound
	}
	out := *f
	return &out, nil
}

// SetVisibility implements store.FileStore.
func (m *MockFileStore) SetVisibility(ctx context.Context, slug string, owner domain.UserID, isPublic bool) error {
	if m.SetVisibilityFn != nil {
		return m.SetVisibilityFn(ctx, slug, owner, isPublic)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[slug]
	if !ok || !f.Owner.Is(owner) {
		return store.ErrFileNotFound
	}
	f.IsPublic = isPublic
	return nil
}

// ListVisible implements store.FileStore.
func (m *MockFileStore) ListVisible(ctx context.Context, viewer domain.Owner) ([]*domain.FileRecord, error) {
	if m.ListVisibleFn != nil {
		return m.ListVisibleFn(ctx, viewer)
	}
	return m.filter(func(f *domain.FileRecord) bool { return f.VisibleTo(viewer) }), nil
}

// ListByOwner implements store.FileStore.
func (m *MockFileStore) ListByOwner(ctx context.Context, owner domain.UserID) ([]*domain.FileRecord, error) {
	return m.filter(func(f *domain.FileRecord) bool { return f.Owner.Is(owner) }), nil
}

// StatsByOwner implements store.FileStore.
func (m *MockFileStore) StatsByOwner(ctx context.Context, owner domain.UserID) (domain.FileStats, error) {
	var stats domain.FileStats
	for _, f := range m.filter(func(f *domain.FileRecord) bool { return f.Owner.Is(owner) }) {
		stats.TotalFiles++
		stats.TotalSizeBytes += f.SizeBytes
	}
	return stats, nil
}

// Len returns the number of stored records.
func (m *MockFileStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

func (m *MockFileStore) filter(keep func(*domain.FileRecord) bool) []*domain.FileRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*domain.FileRecord, 0, len(m.files))
	for _, f := range m.files {
		if keep(f) {
			c := *f
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}
