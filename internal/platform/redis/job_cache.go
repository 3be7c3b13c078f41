// Package redis provides a read-through cache for terminal jobs. Only
// jobs that can never change again are stored, so entries are never
// invalidated, they just expire.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/atelierhq/design-api/internal/config"
	"github.com/atelierhq/design-api/internal/domain"
	"github.com/atelierhq/design-api/internal/store"
)

// JobCache implements service.JobCache on Redis.
type JobCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewJobCache connects to Redis and verifies the connection.
func NewJobCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (*JobCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := time.Duration(cfg.TTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &JobCache{
		client: client,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "job_cache")),
	}, nil
}

func cacheKey(id uuid.UUID) string {
	return "design:job:" + id.String()
}

// Get returns the cached job or store.ErrNotFound on a miss.
func (c *JobCache) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	data, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("cache read failed: %w", err)
	}

	var job domain.Job
	if err := json.Unmarshal(data, &job); err != nil {
		// A corrupt entry is treated as a miss; the store remains the
		// source of truth.
		c.logger.Warn("dropping corrupt cache entry", slog.String("job_id", id.String()))
		return nil, store.ErrNotFound
	}
	return &job, nil
}

// Set caches a job. Non-terminal jobs are refused: caching mutable
// state here would serve stale poll results.
func (c *JobCache) Set(ctx context.Context, job *domain.Job) error {
	if !job.IsTerminal() {
		return fmt.Errorf("refusing to cache non-terminal job %s", job.ID)
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job for cache: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey(job.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache write failed: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *JobCache) Close() error {
	return c.client.Close()
}
