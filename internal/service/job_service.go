package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/atelierhq/design-api/internal/domain"
	"github.com/atelierhq/design-api/internal/events"
	"github.com/atelierhq/design-api/internal/store"
	"github.com/atelierhq/design-api/internal/task"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// JobCache is an optional read-through cache for terminal jobs. Only
// jobs that can never change again are cached, so staleness is not a
// concern.
type JobCache interface {
	// Get returns the cached job or store.ErrNotFound on a miss.
	Get(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// Set caches a terminal job.
	Set(ctx context.Context, job *domain.Job) error
}

// SubmitRequest carries one design generation submission.
type SubmitRequest struct {
	Description      string
	Category         string
	ImageData        []byte
	ImageContentType string
}

// JobPage is one page of the job listing.
type JobPage struct {
	Jobs     []*domain.Job
	Total    int
	Page     int
	PageSize int
}

// JobService is the façade the web layer calls: submit, poll, list. It
// owns the create-then-enqueue ordering on submission and the
// enqueue-failure compensation that keeps jobs from sitting in
// processing forever.
type JobService struct {
	jobs       store.JobStore
	artifacts  *ArtifactService
	emitter    events.EventEmitter
	cache      JobCache
	categories map[string]bool
	logger     *slog.Logger
}

// NewJobService builds a JobService. cache may be nil to disable
// read-through caching.
func NewJobService(
	jobs store.JobStore,
	artifacts *ArtifactService,
	emitter events.EventEmitter,
	cache JobCache,
	categories []string,
	logger *slog.Logger,
) (*JobService, error) {
	if jobs == nil {
		return nil, fmt.Errorf("job store cannot be nil")
	}
	if artifacts == nil {
		return nil, fmt.Errorf("artifact service cannot be nil")
	}
	if emitter == nil {
		return nil, fmt.Errorf("event emitter cannot be nil")
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("at least one category is required")
	}

	allowed := make(map[string]bool, len(categories))
	for _, c := range categories {
		allowed[strings.ToLower(c)] = true
	}

	return &JobService{
		jobs:       jobs,
		artifacts:  artifacts,
		emitter:    emitter,
		cache:      cache,
		categories: allowed,
		logger:     logger.With(slog.String("component", "job_service")),
	}, nil
}

// Submit validates the request, stores the reference image, creates the
// job row and only then schedules the generation work item. A worker can
// therefore never observe a work item for a job that does not exist yet.
// If scheduling fails after the row is created, the job is force-failed
// so it does not poll as processing forever.
func (s *JobService) Submit(ctx context.Context, req SubmitRequest) (*domain.Job, error) {
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, ErrEmptyDescription
	}

	category := strings.ToLower(strings.TrimSpace(req.Category))
	if !s.categories[category] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, req.Category)
	}

	if len(req.ImageData) == 0 {
		return nil, ErrMissingImage
	}

	job, err := domain.NewJob(description, category)
	if err != nil {
		return nil, fmt.Errorf("failed to build job: %w", err)
	}

	ref, err := s.artifacts.StoreSourceImage(ctx, job.ID, req.ImageData, req.ImageContentType)
	if err != nil {
		return nil, err
	}
	job.ImageRef = ref

	if err := s.createJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	event, err := events.NewTaskRequestEvent(task.TaskTypeSpecGeneration, task.SpecGenerationPayload{
		JobID:       job.ID,
		Description: job.Description,
		Category:    job.Category,
		ImageRef:    job.ImageRef,
	})
	if err != nil {
		s.failEnqueue(ctx, job)
		return nil, fmt.Errorf("%w: %v", ErrEnqueueFailed, err)
	}

	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		s.failEnqueue(ctx, job)
		return nil, fmt.Errorf("%w: %v", ErrEnqueueFailed, err)
	}

	s.logger.Info("job submitted",
		slog.String("job_id", job.ID.String()),
		slog.String("category", job.Category))
	return job, nil
}

// transactionalStore is implemented by stores that can expose their raw
// connection for transaction management.
type transactionalStore interface {
	DB() *sql.DB
}

// createJob saves the job row, inside a transaction when the store can
// provide one.
func (s *JobService) createJob(ctx context.Context, job *domain.Job) error {
	ts, ok := s.jobs.(transactionalStore)
	if !ok || ts.DB() == nil {
		return s.jobs.Create(ctx, job)
	}
	return store.RunInTransaction(ctx, ts.DB(), func(ctx context.Context, tx *sql.Tx) error {
		return s.jobs.WithTx(tx).Create(ctx, job)
	})
}

// failEnqueue is the compensation for a created job whose work item
// never made it onto the queue.
func (s *JobService) failEnqueue(ctx context.Context, job *domain.Job) {
	err := s.jobs.UpdateTerminal(ctx, job.ID, domain.JobStatusFailed, nil, domain.FailureReasonEnqueue)
	if err != nil && !errors.Is(err, store.ErrAlreadyTerminal) {
		s.logger.Error("failed to mark job failed after enqueue failure",
			slog.String("job_id", job.ID.String()),
			slog.String("error", err.Error()))
	}
}

// GetJob returns the current state of a job. Terminal jobs are served
// from the cache when one is configured.
func (s *JobService) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	if s.cache != nil {
		if job, err := s.cache.Get(ctx, id); err == nil {
			return job, nil
		} else if !store.IsNotFoundError(err) {
			s.logger.Warn("job cache read failed",
				slog.String("job_id", id.String()),
				slog.String("error", err.Error()))
		}
	}

	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && job.IsTerminal() {
		if err := s.cache.Set(ctx, job); err != nil {
			s.logger.Warn("job cache write failed",
				slog.String("job_id", id.String()),
				slog.String("error", err.Error()))
		}
	}
	return job, nil
}

// GetJobImage returns the stored reference image for a job.
func (s *JobService) GetJobImage(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if job.ImageRef == "" {
		return nil, "", store.ErrBlobNotFound
	}
	return s.artifacts.GetImage(ctx, job.ImageRef)
}

// ListJobs returns one page of jobs, newest first. page is coerced to
// at least 1 and pageSize is clamped to keep responses bounded.
func (s *JobService) ListJobs(ctx context.Context, page, pageSize int) (*JobPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	offset := (page - 1) * pageSize
	jobs, total, err := s.jobs.List(ctx, offset, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return &JobPage{
		Jobs:     jobs,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}
