package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// StuckTaskCounter reports how many tasks were created more than age ago and
// are still RUNNING.
type StuckTaskCounter interface {
	CountRunningOlderThan(ctx context.Context, age time.Duration) (int, error)
}

// StuckTaskMonitorConfig holds the monitor thresholds.
type StuckTaskMonitorConfig struct {
	// StuckTaskAge is how long after creation a task may still be RUNNING
	// before it is reported. Time queued as PENDING counts toward it.
	StuckTaskAge time.Duration

	// CheckInterval defines how often to check.
	// If zero, defaults to 5 minutes.
	CheckInterval time.Duration
}

// StuckTaskMonitor periodically reports tasks created more than StuckTaskAge
// ago that are still RUNNING.
// It only observes: the worker that claimed a task is its only writer.
type StuckTaskMonitor struct {
	counter StuckTaskCounter
	config  StuckTaskMonitorConfig
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStuckTaskMonitor creates a monitor.
// If logger is nil, a default logger will be used.
func NewStuckTaskMonitor(counter StuckTaskCounter, config StuckTaskMonitorConfig, logger *slog.Logger) *StuckTaskMonitor {
	if config.CheckInterval <= 0 {
		config.CheckInterval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &StuckTaskMonitor{
		counter: counter,
		config:  config,
		logger:  logger.With(slog.String("component", "stuck_task_monitor")),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins periodic checks.
func (m *StuckTaskMonitor) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.config.CheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.Check(m.ctx)
			}
		}
	}()
}

// Stop ends the checks.
func (m *StuckTaskMonitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

// Check runs one check and returns the number of stuck tasks, -1 on error.
func (m *StuckTaskMonitor) Check(ctx context.Context) int {
	n, err := m.counter.CountRunningOlderThan(ctx, m.config.StuckTaskAge)
	if err != nil {
		m.logger.Error("failed to check for stuck tasks", slog.String("error", err.Error()))
		return -1
	}

	stuckTasks.Set(float64(n))
	if n > 0 {
		m.logger.Warn("found stuck tasks",
			slog.Int("count", n),
			slog.Duration("older_than", m.config.StuckTaskAge))
	}
	return n
}

// Recoverer republishes tasks left PENDING by an earlier process.
type Recoverer interface {
	Recover(ctx context.Context) (int, error)
}

// Runner owns the background side of the engine: the worker pool, the
// stuck-task monitor and startup recovery of PENDING tasks.
type Runner struct {
	pool      *WorkerPool
	monitor   *StuckTaskMonitor
	recoverer Recoverer
	logger    *slog.Logger
}

// NewRunner combines a pool, a monitor and a recoverer. monitor and
// recoverer may be nil.
func NewRunner(pool *WorkerPool, monitor *StuckTaskMonitor, recoverer Recoverer, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{pool: pool, monitor: monitor, recoverer: recoverer, logger: logger}
}

// Start launches the pool, republishes PENDING tasks and starts the
// monitor. The pool starts first so a bounded in-process queue drains while
// recovery publishes into it. A recovery failure stops the pool again.
func (r *Runner) Start(ctx context.Context) error {
	r.pool.Start()

	if r.recoverer != nil {
		if _, err := r.recoverer.Recover(ctx); err != nil {
			r.pool.Stop()
			return fmt.Errorf("failed to recover tasks: %w", err)
		}
	}

	if r.monitor != nil {
		r.monitor.Start()
	}
	r.logger.Info("task runner started")
	return nil
}

// Stop stops the monitor, then drains the pool.
func (r *Runner) Stop() {
	if r.monitor != nil {
		r.monitor.Stop()
	}
	r.pool.Stop()
	r.logger.Info("task runner stopped")
}
