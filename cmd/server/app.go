package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/atelierhq/design-api/internal/config"
	"github.com/atelierhq/design-api/internal/events"
	"github.com/atelierhq/design-api/internal/generation"
	"github.com/atelierhq/design-api/internal/platform/gemini"
	"github.com/atelierhq/design-api/internal/platform/minio"
	"github.com/atelierhq/design-api/internal/platform/postgres"
	"github.com/atelierhq/design-api/internal/platform/qwen"
	"github.com/atelierhq/design-api/internal/platform/redis"
	"github.com/atelierhq/design-api/internal/service"
	"github.com/atelierhq/design-api/internal/task"
)

// application holds the composed dependencies for the running server.
type application struct {
	config     *config.Config
	logger     *slog.Logger
	db         *sql.DB
	jobService *service.JobService
	taskRunner *task.TaskRunner
	jobCache   *redis.JobCache
}

// buildApplication wires every component together: stores, generator,
// task runner and services. The task runner is constructed but not
// started; main starts it after migrations have run.
func buildApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	db, err := setupDatabase(cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := postgres.RunMigrations(db, logger); err != nil {
		return nil, err
	}

	jobStore := postgres.NewPostgresJobStore(db)
	taskStore := postgres.NewPostgresTaskStore(db)

	blobStore, err := minio.NewBlobStore(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up blob store: %w", err)
	}

	generator, err := buildGenerator(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	artifacts, err := service.NewArtifactService(blobStore, cfg.Storage.MaxUploadBytes, cfg.Storage.MaxImageDimension, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up artifact service: %w", err)
	}

	generationTimeout := time.Duration(cfg.Generator.TimeoutSeconds) * time.Second
	taskFactory := task.NewSpecGenerationTaskFactory(jobStore, generator, generationTimeout, logger)
	taskRunner := task.NewTaskRunner(taskStore, taskFactory, task.TaskRunnerConfig{
		WorkerCount:            cfg.Tasks.WorkerCount,
		QueueSize:              cfg.Tasks.QueueSize,
		MaxDeliveryAttempts:    cfg.Tasks.MaxDeliveryAttempts,
		StuckTaskAge:           time.Duration(cfg.Tasks.StuckTaskAgeMinutes) * time.Minute,
		StuckTaskCheckInterval: time.Duration(cfg.Tasks.StuckTaskCheckIntervalMinutes) * time.Minute,
	}, logger)

	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(task.NewSpecGenerationEventHandler(taskFactory, taskRunner, logger))

	var jobCache *redis.JobCache
	var cache service.JobCache
	if cfg.Cache.RedisURL != "" {
		jobCache, err = redis.NewJobCache(ctx, cfg.Cache, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to set up job cache: %w", err)
		}
		cache = jobCache
		logger.Info("terminal job cache enabled")
	}

	jobService, err := service.NewJobService(jobStore, artifacts, emitter, cache, cfg.Designs.Categories, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up job service: %w", err)
	}

	return &application{
		config:     cfg,
		logger:     logger,
		db:         db,
		jobService: jobService,
		taskRunner: taskRunner,
		jobCache:   jobCache,
	}, nil
}

// buildGenerator selects the generator backend from configuration.
func buildGenerator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (generation.Generator, error) {
	switch cfg.Generator.Provider {
	case "qwen":
		return qwen.NewGenerator(cfg.Generator, logger)
	case "gemini":
		return gemini.NewGenerator(ctx, cfg.Generator, logger)
	default:
		return nil, fmt.Errorf("unknown generator provider %q", cfg.Generator.Provider)
	}
}

// cleanup releases resources on shutdown, in reverse construction
// order.
func (app *application) cleanup() {
	app.taskRunner.Stop()

	if app.jobCache != nil {
		if err := app.jobCache.Close(); err != nil {
			app.logger.Error("failed to close job cache", slog.String("error", err.Error()))
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("failed to close database", slog.String("error", err.Error()))
	}
}
