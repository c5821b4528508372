package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// MemoryBroker is a buffered in-process queue that is both Publisher and
// Consumer. Any number of loops may Consume concurrently; each message is
// received by exactly one of them.
type MemoryBroker struct {
	messages chan Message
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewMemoryBroker creates a broker with the given buffer size.
// If logger is nil, a default logger will be used.
func NewMemoryBroker(size int, logger *slog.Logger) *MemoryBroker {
	if logger == nil {
		logger = slog.Default()
	}
	if size <= 0 {
		size = 1
	}
	return &MemoryBroker{
		messages: make(chan Message, size),
		logger:   logger.With(slog.String("component", "memory_broker")),
	}
}

// Publish enqueues msg without blocking.
// It returns ErrQueueFull when the buffer is full and ErrClosed after Close.
func (b *MemoryBroker) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	select {
	case b.messages <- msg:
		b.logger.Debug("message enqueued",
			slog.String("task_id", msg.TaskID.String()),
			slog.String("kind", msg.Kind),
			slog.Int("queue_len", len(b.messages)),
			slog.Int("queue_cap", cap(b.messages)))
		return nil
	default:
		return fmt.Errorf("%w: capacity %d reached", ErrQueueFull, cap(b.messages))
	}
}

// Consume hands messages to handler until ctx is done or the broker is
// closed and drained.
func (b *MemoryBroker) Consume(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-b.messages:
			if !ok {
				return nil
			}
			if err := handler(ctx, msg); err != nil {
				b.logger.Error("message handler failed",
					slog.String("task_id", msg.TaskID.String()),
					slog.String("error", err.Error()))
			}
		}
	}
}

// Close stops accepting messages. Buffered messages are still delivered.
// Close is idempotent.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.messages)
		b.logger.Info("memory broker closed")
	}
	return nil
}

// Len returns the number of buffered messages.
func (b *MemoryBroker) Len() int {
	return len(b.messages)
}
