package task

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/fcs-vault/internal/domain"
)

// KindUserFileStats aggregates a user's uploads.
const KindUserFileStats = "user_file_stats"

// Computation produces the result value of one task. A returned error is
// recorded as a FAILED outcome, never propagated.
type Computation func(ctx context.Context, taskID uuid.UUID, userID domain.UserID) (any, error)

// Registry maps task kinds to computations.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]Computation
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{kinds: make(map[string]Computation)}
}

// Register adds a computation. Registering a kind twice panics.
func (r *Registry) Register(kind string, c Computation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.kinds[kind]; exists {
		panic(fmt.Sprintf("task kind %q registered twice", kind))
	}
	r.kinds[kind] = c
}

// Lookup returns the computation for kind.
func (r *Registry) Lookup(kind string) (Computation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.kinds[kind]
	return c, ok
}

// FileStatsSource is the read access UserFileStats needs.
type FileStatsSource interface {
	StatsByOwner(ctx context.Context, owner domain.UserID) (domain.FileStats, error)
}

// UserFileStatsResult is the FINISHED payload of a user_file_stats task.
type UserFileStatsResult struct {
	TaskID         uuid.UUID     `json:"task_id"`
	UserID         domain.UserID `json:"user_id"`
	TotalFiles     int64         `json:"total_files"`
	TotalSizeBytes int64         `json:"total_size_bytes"`
}

// UserFileStats counts the user's files and sums their sizes.
func UserFileStats(src FileStatsSource) Computation {
	return func(ctx context.Context, taskID uuid.UUID, userID domain.UserID) (any, error) {
		stats, err := src.StatsByOwner(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load file stats: %w", err)
		}
		return UserFileStatsResult{
			TaskID:         taskID,
			UserID:         userID,
			TotalFiles:     stats.TotalFiles,
			TotalSizeBytes: stats.TotalSizeBytes,
		}, nil
	}
}

// DefaultRegistry returns a registry with the built-in computations.
func DefaultRegistry(files FileStatsSource) *Registry {
	r := NewRegistry()
	r.Register(KindUserFileStats, UserFileStats(files))
	return r
}
