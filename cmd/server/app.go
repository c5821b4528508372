package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/fcs-vault/internal/broker"
	"github.com/phrazzld/fcs-vault/internal/cache"
	"github.com/phrazzld/fcs-vault/internal/config"
	"github.com/phrazzld/fcs-vault/internal/ingest"
	"github.com/phrazzld/fcs-vault/internal/platform/diskstore"
	"github.com/phrazzld/fcs-vault/internal/platform/postgres"
	"github.com/phrazzld/fcs-vault/internal/refgen"
	"github.com/phrazzld/fcs-vault/internal/service/auth"
	"github.com/phrazzld/fcs-vault/internal/store"
	"github.com/phrazzld/fcs-vault/internal/task"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	fileStore store.FileStore
	taskStore store.TaskStore

	identity auth.IdentityProvider
	ingest   *ingest.Service
	engine   *task.Engine

	publisher broker.Publisher
	consumers []broker.Consumer
	redis     *cache.Redis
	runner    *task.Runner
}

// newApplication creates a new application instance with all dependencies initialized.
// It accepts core dependencies like configuration, logger, and database connection that
// must be established before application initialization.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	blobs, err := diskstore.NewOS(cfg.Upload.Dir, cfg.Upload.TempDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize file storage: %w", err)
	}
	if err := blobs.CheckSameFilesystem(); err != nil {
		return nil, fmt.Errorf("temp and storage directories: %w", err)
	}

	app, err := assemble(ctx, cfg, logger, blobs,
		postgres.NewPostgresFileStore(db, logger),
		postgres.NewPostgresActivityStore(db, logger),
		postgres.NewPostgresTaskStore(db, logger))
	if err != nil {
		return nil, err
	}
	app.db = db

	logger.Info("Application initialized successfully")
	return app, nil
}

// assemble wires everything above the stores. It is split from
// newApplication so the wiring can run against in-memory stores.
func assemble(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	blobs ingest.BlobStore,
	files store.FileStore,
	activities store.ActivityStore,
	tasks store.TaskStore,
) (*application, error) {
	app := &application{
		config:    cfg,
		logger:    logger,
		fileStore: files,
		taskStore: tasks,
	}

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	app.identity = auth.NewJWTIdentityProvider(jwtService, logger)

	app.ingest, err = ingest.NewService(files, activities, blobs, refgen.ShortUUID{}, ingest.Config{
		AllowedExtensions: cfg.Upload.AllowedExtensions,
		MaxBytes:          cfg.Upload.MaxBytes,
		ChunkSize:         cfg.Upload.ChunkSize,
		CollisionRetries:  cfg.Upload.CollisionRetries,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest service: %w", err)
	}

	if err := app.setupBroker(); err != nil {
		app.cleanup()
		return nil, err
	}

	statusCache, err := app.setupStatusCache(ctx)
	if err != nil {
		app.cleanup()
		return nil, err
	}
	app.engine = task.NewEngine(tasks, app.publisher, statusCache, logger)

	if cfg.Worker.Enabled {
		worker := task.NewWorker(tasks, task.DefaultRegistry(files), logger)
		pool := task.NewWorkerPool(app.consumers, worker.Handle, logger)
		monitor := task.NewStuckTaskMonitor(tasks, task.StuckTaskMonitorConfig{
			StuckTaskAge:  cfg.Worker.StuckTaskAge,
			CheckInterval: cfg.Worker.StuckCheckInterval,
		}, logger)
		app.runner = task.NewRunner(pool, monitor, app.engine, logger)
	}

	return app, nil
}

// setupBroker creates the publisher and one consumer per worker loop.
// Kafka loops are separate group members; in-memory loops share the channel.
func (app *application) setupBroker() error {
	cfg := app.config
	workers := cfg.Worker.Count
	if !cfg.Worker.Enabled {
		workers = 0
	}

	switch cfg.Broker.Kind {
	case "kafka":
		kcfg := broker.KafkaConfig{
			Brokers: cfg.Broker.Kafka.Brokers,
			Topic:   cfg.Broker.Kafka.Topic,
			GroupID: cfg.Broker.Kafka.GroupID,
		}
		pub, err := broker.NewKafkaPublisher(kcfg, app.logger)
		if err != nil {
			return fmt.Errorf("failed to create kafka publisher: %w", err)
		}
		app.publisher = pub
		for i := 0; i < workers; i++ {
			c, err := broker.NewKafkaConsumer(kcfg, app.logger)
			if err != nil {
				return fmt.Errorf("failed to create kafka consumer: %w", err)
			}
			app.consumers = append(app.consumers, c)
		}
		app.logger.Info("Kafka broker configured",
			slog.String("topic", kcfg.Topic),
			slog.Int("consumers", len(app.consumers)))

	default:
		mb := broker.NewMemoryBroker(cfg.Broker.QueueSize, app.logger)
		app.publisher = mb
		for i := 0; i < workers; i++ {
			app.consumers = append(app.consumers, mb)
		}
		app.logger.Info("In-process broker configured",
			slog.Int("queue_size", cfg.Broker.QueueSize),
			slog.Int("consumers", len(app.consumers)))
	}
	return nil
}

// setupStatusCache builds the terminal status cache: always an in-process
// LRU, fronting Redis when an address is configured.
func (app *application) setupStatusCache(ctx context.Context) (cache.StatusCache, error) {
	cfg := app.config.Cache
	local := cache.NewLRU(cfg.LRUSize, cfg.TTL)
	if cfg.RedisAddr == "" {
		return local, nil
	}

	r, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.TTL, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	app.redis = r
	app.logger.Info("Redis status cache connected")
	return cache.NewLayered(local, r), nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	if app.runner != nil {
		if err := app.runner.Start(ctx); err != nil {
			app.cleanup()
			return err
		}
	}

	router := app.setupRouter()
	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources. Workers stop
// before the broker closes so in-flight tasks reach a terminal state.
func (app *application) cleanup() {
	if app.runner != nil {
		app.runner.Stop()
	}

	closed := make(map[any]bool)
	closeOnce := func(name string, c interface{ Close() error }) {
		if c == nil || closed[c] {
			return
		}
		closed[c] = true
		if err := c.Close(); err != nil {
			app.logger.Error("Error closing "+name, slog.String("error", err.Error()))
		}
	}

	for _, c := range app.consumers {
		closeOnce("broker consumer", c)
	}
	if app.publisher != nil {
		closeOnce("broker publisher", app.publisher)
	}
	if app.redis != nil {
		closeOnce("redis", app.redis)
	}
	if app.db != nil {
		closeOnce("database connection", app.db)
	}

	app.logger.Info("Application shutdown completed")
}
