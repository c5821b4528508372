// Package broker dispatches task messages from the API process to workers.
//
// Two implementations are provided: a Kafka broker built on sarama for
// multi-process deployments, and an in-process buffered channel used for
// single-binary runs and tests. Both deliver each message to exactly one
// consumer loop.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/fcs-vault/internal/domain"
)

// Common errors returned by brokers.
var (
	ErrClosed     = errors.New("broker is closed")
	ErrQueueFull  = errors.New("broker queue is full")
	ErrBadMessage = errors.New("malformed task message")
)

// Message is the unit of work handed to a worker. It carries only
// references; the task record lives in the status store.
type Message struct {
	TaskID uuid.UUID     `json:"task_id"`
	UserID domain.UserID `json:"user_id"`
	Kind   string        `json:"kind"`
}

// Validate checks that the message can be acted on.
func (m Message) Validate() error {
	if m.TaskID == uuid.Nil {
		return fmt.Errorf("%w: empty task id", ErrBadMessage)
	}
	if m.Kind == "" {
		return fmt.Errorf("%w: empty kind", ErrBadMessage)
	}
	return nil
}

// Encode serializes the message for the wire.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses and validates a wire message.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Publisher sends messages. Publish returns once the broker has accepted
// the message.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Handler processes one delivered message. Its error is logged by the
// consumer; the message is acknowledged either way.
type Handler func(ctx context.Context, msg Message) error

// Consumer delivers messages to a handler until ctx is cancelled or the
// broker is closed.
type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
	Close() error
}
