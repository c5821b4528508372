package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/phrazzld/fcs-vault/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func view(status domain.TaskStatus) *domain.TaskStatusView {
	v := &domain.TaskStatusView{TaskID: uuid.New(), Status: status}
	if status.IsTerminal() {
		v.Result = json.RawMessage(`{"total_files":2}`)
	}
	return v
}

func newRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, ttl, nil), mr
}

func TestLRUStoresOnlyTerminalViews(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewLRU(8, time.Minute)

	pending := view(domain.TaskStatusPending)
	running := view(domain.TaskStatusRunning)
	finished := view(domain.TaskStatusFinished)
	failed := view(domain.TaskStatusFailed)

	for _, v := range []*domain.TaskStatusView{pending, running, finished, failed, nil} {
		c.Set(ctx, v)
	}
	assert.Equal(t, 2, c.Len())

	_, ok := c.Get(ctx, pending.TaskID)
	assert.False(t, ok)
	_, ok = c.Get(ctx, running.TaskID)
	assert.False(t, ok)

	got, ok := c.Get(ctx, finished.TaskID)
	require.True(t, ok)
	assert.Equal(t, finished, got)

	_, ok = c.Get(ctx, failed.TaskID)
	assert.True(t, ok)
}

func TestLRUEvictsOldest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewLRU(2, time.Minute)
	a, b, d := view(domain.TaskStatusFinished), view(domain.TaskStatusFinished), view(domain.TaskStatusFinished)
	c.Set(ctx, a)
	c.Set(ctx, b)
	c.Set(ctx, d)

	_, ok := c.Get(ctx, a.TaskID)
	assert.False(t, ok)
	_, ok = c.Get(ctx, d.TaskID)
	assert.True(t, ok)
}

func TestRedisRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, mr := newRedis(t, time.Minute)
	v := view(domain.TaskStatusFinished)

	c.Set(ctx, v)
	assert.True(t, mr.Exists(keyPrefix+v.TaskID.String()))

	got, ok := c.Get(ctx, v.TaskID)
	require.True(t, ok)
	assert.Equal(t, v.TaskID, got.TaskID)
	assert.Equal(t, domain.TaskStatusFinished, got.Status)
	assert.JSONEq(t, string(v.Result), string(got.Result))
}

func TestRedisIgnoresNonTerminal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, mr := newRedis(t, time.Minute)
	v := view(domain.TaskStatusRunning)

	c.Set(ctx, v)
	assert.False(t, mr.Exists(keyPrefix+v.TaskID.String()))
	_, ok := c.Get(ctx, v.TaskID)
	assert.False(t, ok)
}

func TestRedisTTL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, mr := newRedis(t, time.Minute)
	v := view(domain.TaskStatusFailed)
	c.Set(ctx, v)

	mr.FastForward(2 * time.Minute)
	_, ok := c.Get(ctx, v.TaskID)
	assert.False(t, ok)
}

func TestRedisCorruptEntryIsMiss(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, mr := newRedis(t, time.Minute)
	id := uuid.New()
	require.NoError(t, mr.Set(keyPrefix+id.String(), "not json"))

	_, ok := c.Get(ctx, id)
	assert.False(t, ok)
}

func TestRedisUnavailableIsMiss(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, mr := newRedis(t, time.Minute)
	mr.Close()

	v := view(domain.TaskStatusFinished)
	c.Set(ctx, v)
	_, ok := c.Get(ctx, v.TaskID)
	assert.False(t, ok)
}

func TestConnectRedis(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	c, err := ConnectRedis(context.Background(), mr.Addr(), time.Minute, nil)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	addr := mr.Addr()
	mr.Close()
	_, err = ConnectRedis(context.Background(), addr, time.Minute, nil)
	assert.Error(t, err)
}

func TestLayeredBackfillsLocal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	local := NewLRU(8, time.Minute)
	shared, _ := newRedis(t, time.Minute)
	c := NewLayered(local, shared)

	v := view(domain.TaskStatusFinished)
	shared.Set(ctx, v)
	assert.Zero(t, local.Len())

	got, ok := c.Get(ctx, v.TaskID)
	require.True(t, ok)
	assert.Equal(t, v.TaskID, got.TaskID)
	assert.Equal(t, 1, local.Len())

	other := view(domain.TaskStatusFailed)
	c.Set(ctx, other)
	_, ok = local.Get(ctx, other.TaskID)
	assert.True(t, ok)
	_, ok = shared.Get(ctx, other.TaskID)
	assert.True(t, ok)

	_, ok = c.Get(ctx, uuid.New())
	assert.False(t, ok)
}
