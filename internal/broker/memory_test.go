package broker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMessage() Message {
	return Message{TaskID: uuid.New(), UserID: 7, Kind: "user_file_stats"}
}

func TestMemoryBrokerPublishConsume(t *testing.T) {
	t.Parallel()

	b := NewMemoryBroker(4, nil)
	msg := newMessage()
	require.NoError(t, b.Publish(context.Background(), msg))
	assert.Equal(t, 1, b.Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Message, 1)
	go func() {
		_ = b.Consume(ctx, func(ctx context.Context, m Message) error {
			got <- m
			return nil
		})
	}()

	select {
	case m := <-got:
		assert.Equal(t, msg, m)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestMemoryBrokerFull(t *testing.T) {
	t.Parallel()

	b := NewMemoryBroker(1, nil)
	require.NoError(t, b.Publish(context.Background(), newMessage()))
	assert.ErrorIs(t, b.Publish(context.Background(), newMessage()), ErrQueueFull)
}

func TestMemoryBrokerRejectsInvalidMessage(t *testing.T) {
	t.Parallel()

	b := NewMemoryBroker(1, nil)
	assert.ErrorIs(t, b.Publish(context.Background(), Message{Kind: "x"}), ErrBadMessage)
	assert.ErrorIs(t, b.Publish(context.Background(), Message{TaskID: uuid.New()}), ErrBadMessage)
	assert.Zero(t, b.Len())
}

func TestMemoryBrokerClose(t *testing.T) {
	t.Parallel()

	b := NewMemoryBroker(4, nil)
	first := newMessage()
	require.NoError(t, b.Publish(context.Background(), first))

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.Publish(context.Background(), newMessage()), ErrClosed)

	var delivered []Message
	err := b.Consume(context.Background(), func(ctx context.Context, m Message) error {
		delivered = append(delivered, m)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []Message{first}, delivered)
}

func TestMemoryBrokerCancelledPublish(t *testing.T) {
	t.Parallel()

	b := NewMemoryBroker(4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.Publish(ctx, newMessage()), context.Canceled)
}

func TestMemoryBrokerDeliversEachMessageOnce(t *testing.T) {
	t.Parallel()

	const total = 50
	b := NewMemoryBroker(total, nil)
	sent := make(map[uuid.UUID]bool, total)
	for i := 0; i < total; i++ {
		m := newMessage()
		sent[m.TaskID] = true
		require.NoError(t, b.Publish(context.Background(), m))
	}
	require.NoError(t, b.Close())

	var mu sync.Mutex
	seen := make(map[uuid.UUID]int, total)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Consume(context.Background(), func(ctx context.Context, m Message) error {
				mu.Lock()
				seen[m.TaskID]++
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	require.Len(t, seen, total)
	for id, n := range seen {
		assert.True(t, sent[id])
		assert.Equal(t, 1, n)
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()

	msg := newMessage()
	data, err := msg.Encode()
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, msg, got)

	for _, raw := range []string{"", "{", `{"kind":"x"}`, `{"task_id":"` + uuid.NewString() + `"}`} {
		_, err := Decode([]byte(raw))
		assert.ErrorIs(t, err, ErrBadMessage, raw)
	}
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
