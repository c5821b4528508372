package task

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/fcs-vault/internal/broker"
	"github.com/phrazzld/fcs-vault/internal/domain"
	"github.com/phrazzld/fcs-vault/internal/mocks"
	"github.com/phrazzld/fcs-vault/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type workerFixture struct {
	tasks    *mocks.MockTaskStore
	files    *mocks.MockFileStore
	registry *Registry
	worker   *Worker
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()
	f := &workerFixture{
		tasks: mocks.NewMockTaskStore(),
		files: mocks.NewMockFileStore(),
	}
	f.registry = DefaultRegistry(f.files)
	f.worker = NewWorker(f.tasks, f.registry, discardLogger())
	return f
}

func (f *workerFixture) pendingTask(kind string, user domain.UserID) broker.Message {
	rec := domain.NewTaskRecord()
	f.tasks.Put(rec)
	return broker.Message{TaskID: rec.TaskID, UserID: user, Kind: kind}
}

func (f *workerFixture) result(t *testing.T, id uuid.UUID) (*domain.TaskRecord, map[string]any) {
	t.Helper()
	rec, err := f.tasks.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, rec.Result)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(*rec.Result), &out))
	return rec, out
}

func seedUserFiles(t *testing.T, files *mocks.MockFileStore, owner domain.UserID, sizes ...int64) {
	t.Helper()
	for i, size := range sizes {
		rec, err := domain.NewFileRecord(domain.FileRecordParams{
			Owner:            domain.OwnedBy(owner),
			OriginalFilename: "f.fcs",
			StoredFilename:   uuid.NewString(),
			SizeBytes:        size,
			Slug:             uuid.NewString()[:domain.SlugLength-1] + string(rune('a'+i)),
		})
		require.NoError(t, err)
		require.NoError(t, files.Insert(rec))
	}
}

func TestWorkerComputesUserFileStats(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(t)
	seedUserFiles(t, f.files, 9, 100, 250, 50)
	seedUserFiles(t, f.files, 10, 999)
	msg := f.pendingTask(KindUserFileStats, 9)

	require.NoError(t, f.worker.Handle(context.Background(), msg))

	rec, out := f.result(t, msg.TaskID)
	assert.Equal(t, domain.TaskStatusFinished, rec.Status)
	assert.NotNil(t, rec.FinishedAt)
	assert.Equal(t, msg.TaskID.String(), out["task_id"])
	assert.EqualValues(t, 9, out["user_id"])
	assert.EqualValues(t, 3, out["total_files"])
	assert.EqualValues(t, 400, out["total_size_bytes"])

	assert.Equal(t, []domain.TaskStatus{domain.TaskStatusRunning, domain.TaskStatusFinished},
		[]domain.TaskStatus{f.tasks.Transitions[0].To, f.tasks.Transitions[1].To})
}

func TestWorkerIgnoresDuplicateDelivery(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(t)
	msg := f.pendingTask(KindUserFileStats, 1)

	require.NoError(t, f.worker.Handle(context.Background(), msg))
	require.NoError(t, f.worker.Handle(context.Background(), msg))
	assert.Len(t, f.tasks.Transitions, 2)
}

func TestWorkerIgnoresUnknownTask(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(t)
	msg := broker.Message{TaskID: uuid.New(), UserID: 1, Kind: KindUserFileStats}
	assert.NoError(t, f.worker.Handle(context.Background(), msg))
	assert.Empty(t, f.tasks.Transitions)
}

func TestWorkerFailureOutcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		kind     string
		register Computation
		wantKind string
		detail   string
	}{
		{
			name:     "unknown kind",
			kind:     "no_such_kind",
			wantKind: domain.FailureKindUnknownKind,
			detail:   "no_such_kind",
		},
		{
			name: "computation error",
			kind: "erroring",
			register: func(context.Context, uuid.UUID, domain.UserID) (any, error) {
				return nil, errors.New("division by zero")
			},
			wantKind: domain.FailureKindComputation,
			detail:   "division by zero",
		},
		{
			name: "panic",
			kind: "panicking",
			register: func(context.Context, uuid.UUID, domain.UserID) (any, error) {
				panic("index out of range")
			},
			wantKind: domain.FailureKindPanic,
			detail:   "index out of range",
		},
		{
			name: "unencodable value",
			kind: "unencodable",
			register: func(context.Context, uuid.UUID, domain.UserID) (any, error) {
				return func() {}, nil
			},
			wantKind: domain.FailureKindEncoding,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWorkerFixture(t)
			if tt.register != nil {
				f.registry.Register(tt.kind, tt.register)
			}
			msg := f.pendingTask(tt.kind, 1)

			require.NoError(t, f.worker.Handle(context.Background(), msg))

			rec, out := f.result(t, msg.TaskID)
			assert.Equal(t, domain.TaskStatusFailed, rec.Status)
			failure, ok := out["error"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, tt.wantKind, failure["kind"])
			if tt.detail != "" {
				assert.Contains(t, failure["detail"], tt.detail)
			}
		})
	}
}

func TestWorkerTransitionPersistFailure(t *testing.T) {
	t.Parallel()

	log, buf := logger.GetTestLogger(t)
	f := newWorkerFixture(t)
	f.worker = NewWorker(f.tasks, f.registry, log)
	f.tasks.TransitionFn = func(ctx context.Context, id uuid.UUID, tr domain.Transition) error {
		if tr.To == domain.TaskStatusRunning {
			return f.tasks.ApplyTransition(id, tr)
		}
		return errors.New("connection lost")
	}
	msg := f.pendingTask(KindUserFileStats, 1)

	err := f.worker.Handle(context.Background(), msg)
	assert.ErrorIs(t, err, ErrTransitionPersist)
	logger.AssertLogField(t, buf, "fatal_for_task", true)

	rec, err := f.tasks.Get(context.Background(), msg.TaskID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusRunning, rec.Status)
}

func TestWorkerClaimError(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(t)
	dbErr := errors.New("db down")
	f.tasks.TransitionFn = func(ctx context.Context, id uuid.UUID, tr domain.Transition) error { return dbErr }
	msg := f.pendingTask(KindUserFileStats, 1)

	assert.ErrorIs(t, f.worker.Handle(context.Background(), msg), dbErr)
}

func TestWorkerRunsDetachedFromCancellation(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(t)
	f.registry.Register("ctx_check", func(ctx context.Context, _ uuid.UUID, _ domain.UserID) (any, error) {
		return map[string]bool{"cancelled": ctx.Err() != nil}, nil
	})
	msg := f.pendingTask("ctx_check", 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, f.worker.Handle(ctx, msg))

	rec, out := f.result(t, msg.TaskID)
	assert.Equal(t, domain.TaskStatusFinished, rec.Status)
	assert.Equal(t, false, out["cancelled"])
}

func TestRegistryRejectsDuplicateKind(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("a", func(context.Context, uuid.UUID, domain.UserID) (any, error) { return nil, nil })
	assert.Panics(t, func() {
		r.Register("a", func(context.Context, uuid.UUID, domain.UserID) (any, error) { return nil, nil })
	})
	_, ok := r.Lookup("a")
	assert.True(t, ok)
	_, ok = r.Lookup("b")
	assert.False(t, ok)
}
