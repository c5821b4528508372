package task

import (
	"context"
	"log/slog"
	"sync"

	"github.com/phrazzld/fcs-vault/internal/broker"
)

// WorkerPool runs one consume loop per consumer. Loops are independent; a
// failing loop is logged and does not stop the others.
type WorkerPool struct {
	// consumers are drained by one goroutine each. The same consumer may
	// appear more than once when it supports concurrent Consume calls.
	consumers []broker.Consumer

	handler broker.Handler

	// wg tracks active loops for clean shutdown
	wg sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	logger *slog.Logger
}

// NewWorkerPool creates a pool over consumers.
// If logger is nil, a default logger will be used.
func NewWorkerPool(consumers []broker.Consumer, handler broker.Handler, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		consumers: consumers,
		handler:   handler,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.With(slog.String("component", "worker_pool")),
	}
}

// Start launches the loops.
func (p *WorkerPool) Start() {
	p.logger.Info("starting worker pool", slog.Int("worker_count", len(p.consumers)))

	for i, c := range p.consumers {
		p.wg.Add(1)
		go p.loop(i, c)
	}
}

// Stop cancels the loops and waits for in-flight handlers to return.
func (p *WorkerPool) Stop() {
	p.logger.Info("stopping worker pool")
	p.cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *WorkerPool) loop(id int, c broker.Consumer) {
	defer p.wg.Done()

	log := p.logger.With(slog.Int("worker_id", id))
	log.Debug("worker started")

	if err := c.Consume(p.ctx, p.handler); err != nil {
		log.Error("worker stopped with error", slog.String("error", err.Error()))
		return
	}
	log.Debug("worker stopped")
}
