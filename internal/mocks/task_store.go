package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/fcs-vault/internal/domain"
	"github.com/phrazzld/fcs-vault/internal/store"
)

// MockTaskStore implements store.TaskStore in memory with the same
// conditional-transition semantics as the database. Any Fn field overrides
// the default.
type MockTaskStore struct {
	CreateFn      func(ctx context.Context, task *domain.TaskRecord, sub domain.TaskSubmission) error
	GetFn         func(ctx context.Context, id uuid.UUID) (*domain.TaskRecord, error)
	TransitionFn  func(ctx context.Context, id uuid.UUID, tr domain.Transition) error
	ListPendingFn func(ctx context.Context) ([]domain.PendingTask, error)

	mu          sync.Mutex
	tasks       map[uuid.UUID]*domain.TaskRecord
	submissions map[uuid.UUID]domain.TaskSubmission

	// Transitions records every applied transition in order.
	Transitions []domain.Transition
}

// NewMockTaskStore creates an empty store.
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{
		tasks:       make(map[uuid.UUID]*domain.TaskRecord),
		submissions: make(map[uuid.UUID]domain.TaskSubmission),
	}
}

var _ store.TaskStore = (*MockTaskStore)(nil)

// Create implements store.TaskStore.
func (m *MockTaskStore) Create(ctx context.Context, task *domain.TaskRecord, sub domain.TaskSubmission) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, task, sub)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tasks[task.TaskID]; exists {
		return store.ErrTaskExists
	}
	c := *task
	m.tasks[task.TaskID] = &c
	m.submissions[task.TaskID] = sub
	return nil
}

// Get implements store.TaskStore.
func (m *MockTaskStore) Get(ctx context.Context, id uuid.UUID) (*domain.TaskRecord, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	c := *t
	return &c, nil
}

// Transition implements store.TaskStore.
func (m *MockTaskStore) Transition(ctx context.Context, id uuid.UUID, tr domain.Transition) error {
	if m.TransitionFn != nil {
		return m.TransitionFn(ctx, id, tr)
	}
	return m.ApplyTransition(id, tr)
}

// ApplyTransition is the default Transition behavior, usable from overrides.
func (m *MockTaskStore) ApplyTransition(id uuid.UUID, tr domain.Transition) error {
	if err := tr.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	if t.Status != tr.From {
		return store.ErrTransitionConflict
	}
	if err := t.Apply(tr); err != nil {
		return err
	}
	m.Transitions = append(m.Transitions, tr)
	return nil
}

// ListPending implements store.TaskStore. Records stored with Put have no
// submission and are left out, as they are by the database join.
func (m *MockTaskStore) ListPending(ctx context.Context) ([]domain.PendingTask, error) {
	if m.ListPendingFn != nil {
		return m.ListPendingFn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []domain.PendingTask
	for id, t := range m.tasks {
		sub, ok := m.submissions[id]
		if !ok || t.Status != domain.TaskStatusPending {
			continue
		}
		pending = append(pending, domain.PendingTask{TaskID: id, CreatedAt: t.CreatedAt, TaskSubmission: sub})
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending, nil
}

// CountRunningOlderThan implements store.TaskStore.
func (m *MockTaskStore) CountRunningOlderThan(ctx context.Context, age time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().UTC().Add(-age)
	n := 0
	for _, t := range m.tasks {
		if t.Status == domain.TaskStatusRunning && t.CreatedAt.Before(cutoff) {
			n++
		}
	}
	return n, nil
}

// PutSubmitted stores a record as-is together with its submission.
func (m *MockTaskStore) PutSubmitted(task *domain.TaskRecord, sub domain.TaskSubmission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *task
	m.tasks[task.TaskID] = &c
	m.submissions[task.TaskID] = sub
}

// Put stores a record as-is, bypassing validation.
func (m *MockTaskStore) Put(task *domain.TaskRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *task
	m.tasks[task.TaskID] = &c
}
