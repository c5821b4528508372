package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/phrazzld/fcs-vault/internal/domain"
	"github.com/phrazzld/fcs-vault/internal/store"
)

// MockActivityStore implements store.ActivityStore in memory.
// Any Fn field overrides the default.
type MockActivityStore struct {
	AppendFn     func(ctx context.Context, activity *domain.Activity) error
	ListByUserFn func(ctx context.Context, user domain.UserID, limit int) ([]*domain.Activity, error)

	mu      sync.Mutex
	entries []*domain.Activity
}

// NewMockActivityStore creates an empty store.
func NewMockActivityStore() *MockActivityStore {
	return &MockActivityStore{}
}

var _ store.ActivityStore = (*MockActivityStore)(nil)

// Append implements store.ActivityStore.
func (m *MockActivityStore) Append(ctx context.Context, activity *domain.Activity) error {
	if m.AppendFn != nil {
		return m.AppendFn(ctx, activity)
	}
	if err := activity.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	activity.ID = int64(len(m.entries) + 1)
	c := *activity
	m.entries = append(m.entries, &c)
	return nil
}

// ListByUser implements store.ActivityStore.
func (m *MockActivityStore) ListByUser(ctx context.Context, user domain.UserID, limit int) ([]*domain.Activity, error) {
	if m.ListByUserFn != nil {
		return m.ListByUserFn(ctx, user, limit)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*domain.Activity, 0)
	for _, a := range m.entries {
		if a.UserID == user {
			c := *a
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Entries returns a copy of every appended entry in insertion order.
func (m *MockActivityStore) Entries() []domain.Activity {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Activity, 0, len(m.entries))
	for _, a := range m.entries {
		out = append(out, *a)
	}
	return out
}
