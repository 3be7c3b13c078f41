package task

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/atelierhq/design-api/internal/domain"
	"github.com/atelierhq/design-api/internal/generation"
)

// SpecGenerationTaskFactory builds spec generation tasks, both for fresh
// submissions and for rows recovered from the store after a restart.
type SpecGenerationTaskFactory struct {
	jobs      JobTerminalWriter
	generator generation.Generator
	timeout   time.Duration
	logger    *slog.Logger
}

func NewSpecGenerationTaskFactory(
	jobs JobTerminalWriter,
	generator generation.Generator,
	timeout time.Duration,
	logger *slog.Logger,
) *SpecGenerationTaskFactory {
	return &SpecGenerationTaskFactory{
		jobs:      jobs,
		generator: generator,
		timeout:   timeout,
		logger:    logger,
	}
}

// CreateTask builds the work item for a newly submitted job.
func (f *SpecGenerationTaskFactory) CreateTask(job *domain.Job) (Task, error) {
	if job == nil {
		return nil, fmt.Errorf("cannot create task for nil job")
	}
	return NewSpecGenerationTask(
		job.ID,
		job.Description,
		job.Category,
		job.ImageRef,
		f.jobs,
		f.generator,
		f.timeout,
		f.logger,
	)
}

// Resolve rebuilds an executable task from a persisted row, keeping the
// row's id and status so delivery bookkeeping stays attached to it.
func (f *SpecGenerationTaskFactory) Resolve(t Task) (Task, error) {
	if t.Type() != TaskTypeSpecGeneration {
		return nil, fmt.Errorf("unknown task type %q", t.Type())
	}

	var payload specGenerationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return nil, fmt.Errorf("failed to decode task payload: %w", err)
	}
	if payload.JobID == uuid.Nil {
		return nil, fmt.Errorf("task payload has no job ID")
	}

	rebuilt, err := NewSpecGenerationTask(
		payload.JobID,
		payload.Description,
		payload.Category,
		payload.ImageRef,
		f.jobs,
		f.generator,
		f.timeout,
		f.logger,
	)
	if err != nil {
		return nil, err
	}
	rebuilt.id = t.ID()
	rebuilt.status = t.Status()
	return rebuilt, nil
}
