package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/fcs-vault/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	layerShared = "redis"
	keyPrefix   = "task:status:"
)

// Redis shares terminal views between API instances. Redis failures are
// logged and treated as misses; the status store stays authoritative.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// ConnectRedis dials addr and verifies the connection with PING.
func ConnectRedis(ctx context.Context, addr string, ttl time.Duration, logger *slog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(client, ttl, logger), nil
}

// NewRedis wraps an existing client.
// If logger is nil, a default logger will be used.
func NewRedis(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		client: client,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "redis_status_cache")),
	}
}

// Get implements StatusCache.
func (c *Redis) Get(ctx context.Context, id uuid.UUID) (*domain.TaskStatusView, bool) {
	data, err := c.client.Get(ctx, keyPrefix+id.String()).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("status cache read failed",
				slog.String("task_id", id.String()),
				slog.String("error", err.Error()))
		}
		cacheMissesTotal.WithLabelValues(layerShared).Inc()
		return nil, false
	}

	var view domain.TaskStatusView
	if err := json.Unmarshal(data, &view); err != nil || !cacheable(&view) {
		c.logger.Warn("discarding corrupt status cache entry", slog.String("task_id", id.String()))
		cacheMissesTotal.WithLabelValues(layerShared).Inc()
		return nil, false
	}

	cacheHitsTotal.WithLabelValues(layerShared).Inc()
	return &view, true
}

// Set implements StatusCache.
func (c *Redis) Set(ctx context.Context, view *domain.TaskStatusView) {
	if !cacheable(view) {
		return
	}

	data, err := json.Marshal(view)
	if err != nil {
		c.logger.Warn("failed to encode status view", slog.String("error", err.Error()))
		return
	}
	if err := c.client.Set(ctx, keyPrefix+view.TaskID.String(), data, c.ttl).Err(); err != nil {
		c.logger.Warn("status cache write failed",
			slog.String("task_id", view.TaskID.String()),
			slog.String("error", err.Error()))
	}
}

// Close closes the client.
func (c *Redis) Close() error {
	return c.client.Close()
}
