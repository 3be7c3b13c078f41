package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/atelierhq/design-api/internal/domain"
	"github.com/atelierhq/design-api/internal/generation"
	"github.com/atelierhq/design-api/internal/store"
)

// JobTerminalWriter is the slice of the job store this task needs: the
// single idempotent write that moves a job out of processing.
type JobTerminalWriter interface {
	UpdateTerminal(ctx context.Context, id uuid.UUID, status domain.JobStatus, spec json.RawMessage, reason string) error
}

// specGenerationPayload is the persisted work item body. It carries
// everything the worker needs so execution never re-reads the job row.
type specGenerationPayload struct {
	JobID       uuid.UUID `json:"job_id"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	ImageRef    string    `json:"image_ref,omitempty"`
}

// SpecGenerationTask calls the generator for one submitted job and
// records the outcome through the idempotent terminal write. Safe to run
// more than once: a redelivered task that finds the job already terminal
// does nothing.
type SpecGenerationTask struct {
	id        uuid.UUID
	payload   specGenerationPayload
	status    TaskStatus
	jobs      JobTerminalWriter
	generator generation.Generator
	timeout   time.Duration
	logger    *slog.Logger
}

func NewSpecGenerationTask(
	jobID uuid.UUID,
	description string,
	category string,
	imageRef string,
	jobs JobTerminalWriter,
	generator generation.Generator,
	timeout time.Duration,
	logger *slog.Logger,
) (*SpecGenerationTask, error) {
	if jobID == uuid.Nil {
		return nil, errors.New("job ID cannot be nil")
	}
	if description == "" {
		return nil, errors.New("description cannot be empty")
	}
	if jobs == nil {
		return nil, errors.New("job store cannot be nil")
	}
	if generator == nil {
		return nil, errors.New("generator cannot be nil")
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &SpecGenerationTask{
		id: uuid.New(),
		payload: specGenerationPayload{
			JobID:       jobID,
			Description: description,
			Category:    category,
			ImageRef:    imageRef,
		},
		status:    TaskStatusPending,
		jobs:      jobs,
		generator: generator,
		timeout:   timeout,
		logger:    logger.With(slog.String("task_type", TaskTypeSpecGeneration)),
	}, nil
}

func (t *SpecGenerationTask) ID() uuid.UUID      { return t.id }
func (t *SpecGenerationTask) Type() string       { return TaskTypeSpecGeneration }
func (t *SpecGenerationTask) Status() TaskStatus { return t.status }

func (t *SpecGenerationTask) Payload() []byte {
	data, err := json.Marshal(t.payload)
	if err != nil {
		// The payload is a plain struct of strings and a UUID; this
		// cannot fail at runtime.
		t.logger.Error("failed to marshal task payload", slog.String("error", err.Error()))
		return []byte("{}")
	}
	return data
}

// JobID exposes the target job, mainly for logs and tests.
func (t *SpecGenerationTask) JobID() uuid.UUID { return t.payload.JobID }

// Execute runs one delivery: generate a spec, then record the outcome.
// Every path ends in exactly one terminal write attempt, and a write
// rejected because the job is already terminal is treated as success.
func (t *SpecGenerationTask) Execute(ctx context.Context) error {
	t.status = TaskStatusProcessing
	log := t.logger.With(
		slog.String("task_id", t.id.String()),
		slog.String("job_id", t.payload.JobID.String()))

	genCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	spec, genErr := t.generator.GenerateSpec(genCtx, t.payload.Description, t.payload.Category, t.payload.ImageRef)
	if genErr != nil {
		reason := domain.FailureReasonGeneration
		if errors.Is(genErr, generation.ErrGenerationTimeout) || errors.Is(genErr, context.DeadlineExceeded) {
			reason = domain.FailureReasonTimeout
		}
		log.Warn("spec generation failed",
			slog.String("reason", reason),
			slog.String("error", genErr.Error()))

		if err := t.jobs.UpdateTerminal(ctx, t.payload.JobID, domain.JobStatusFailed, nil, reason); err != nil {
			if errors.Is(err, store.ErrAlreadyTerminal) {
				log.Info("job already terminal, dropping duplicate delivery")
				t.status = TaskStatusCompleted
				return nil
			}
			t.status = TaskStatusFailed
			return fmt.Errorf("%w: recording failure for job %s: %v", ErrTerminalWriteFailed, t.payload.JobID, err)
		}
		t.status = TaskStatusFailed
		return fmt.Errorf("spec generation for job %s: %w", t.payload.JobID, genErr)
	}

	if err := t.jobs.UpdateTerminal(ctx, t.payload.JobID, domain.JobStatusCompleted, spec, ""); err != nil {
		if errors.Is(err, store.ErrAlreadyTerminal) {
			log.Info("job already terminal, dropping duplicate delivery")
			t.status = TaskStatusCompleted
			return nil
		}
		t.status = TaskStatusFailed
		return fmt.Errorf("%w: recording completion for job %s: %v", ErrTerminalWriteFailed, t.payload.JobID, err)
	}

	t.status = TaskStatusCompleted
	log.Info("design spec generated")
	return nil
}

// HandleExhausted force-fails the job once the runner gives up on
// delivering this task, so callers are not left polling forever.
func (t *SpecGenerationTask) HandleExhausted(ctx context.Context) error {
	err := t.jobs.UpdateTerminal(ctx, t.payload.JobID, domain.JobStatusFailed, nil, domain.FailureReasonDeliveryExhausted)
	if err != nil && !errors.Is(err, store.ErrAlreadyTerminal) {
		return fmt.Errorf("force-failing job %s: %w", t.payload.JobID, err)
	}
	return nil
}
