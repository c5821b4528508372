package task

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/phrazzld/fcs-vault/internal/broker"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// failingPublisher rejects every message.
type failingPublisher struct {
	err error
}

func (p *failingPublisher) Publish(context.Context, broker.Message) error { return p.err }
func (p *failingPublisher) Close() error                                  { return nil }

var errBrokerDown = errors.New("broker unreachable")
