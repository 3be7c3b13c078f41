package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/atelierhq/design-api/internal/domain"
	"github.com/atelierhq/design-api/internal/events"
)

// SpecGenerationPayload is the event payload emitted when a job is
// submitted and a generation work item should be scheduled.
type SpecGenerationPayload struct {
	JobID       uuid.UUID `json:"job_id"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	ImageRef    string    `json:"image_ref,omitempty"`
}

// TaskSubmitter is the slice of the runner the event handler uses.
type TaskSubmitter interface {
	Submit(ctx context.Context, task Task) error
}

// SpecGenerationEventHandler turns task request events into persisted,
// queued work items.
type SpecGenerationEventHandler struct {
	factory   *SpecGenerationTaskFactory
	submitter TaskSubmitter
	logger    *slog.Logger
}

func NewSpecGenerationEventHandler(
	factory *SpecGenerationTaskFactory,
	submitter TaskSubmitter,
	logger *slog.Logger,
) *SpecGenerationEventHandler {
	return &SpecGenerationEventHandler{
		factory:   factory,
		submitter: submitter,
		logger:    logger.With(slog.String("component", "spec_generation_event_handler")),
	}
}

// HandleEvent implements events.EventHandler for spec generation
// requests. Events of other types are ignored.
func (h *SpecGenerationEventHandler) HandleEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	if event.Type != TaskTypeSpecGeneration {
		return nil
	}

	var payload SpecGenerationPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return fmt.Errorf("failed to decode spec generation event: %w", err)
	}

	job := &domain.Job{
		ID:          payload.JobID,
		Description: payload.Description,
		Category:    payload.Category,
		ImageRef:    payload.ImageRef,
		Status:      domain.JobStatusProcessing,
	}

	t, err := h.factory.CreateTask(job)
	if err != nil {
		return fmt.Errorf("failed to create spec generation task: %w", err)
	}

	if err := h.submitter.Submit(ctx, t); err != nil {
		return fmt.Errorf("failed to submit spec generation task: %w", err)
	}

	h.logger.Debug("spec generation task scheduled",
		slog.String("job_id", payload.JobID.String()),
		slog.String("task_id", t.ID().String()))
	return nil
}
