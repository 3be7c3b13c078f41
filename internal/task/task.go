package task

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a work item. The job the
// work item produces has its own status; the two are related but distinct.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// TaskTypeSpecGeneration identifies work items that call the generator to
// produce a design spec for a submitted job.
const TaskTypeSpecGeneration = "design_spec_generation"

// ErrTerminalWriteFailed wraps store errors hit while recording a job's
// terminal state. The runner treats it as retryable: the work item goes
// back to pending instead of failed, so the delivery is not acknowledged
// until the terminal write actually lands.
var ErrTerminalWriteFailed = errors.New("terminal write failed")

// Task is a unit of background work. Implementations carry their own
// dependencies; the runner only schedules and records them.
type Task interface {
	ID() uuid.UUID
	Type() string
	Payload() []byte
	Status() TaskStatus
	Execute(ctx context.Context) error
}

// ExhaustedHandler is implemented by tasks that need to record a final
// outcome when their delivery attempts run out. The runner calls it once
// before marking the task failed.
type ExhaustedHandler interface {
	HandleExhausted(ctx context.Context) error
}

// TaskResolver rebuilds an executable task from a persisted row. Rows
// loaded from the store carry only id, type and payload; the resolver
// reattaches the dependencies the task needs to run.
type TaskResolver interface {
	Resolve(t Task) (Task, error)
}

// TaskStore persists work items and their delivery bookkeeping.
type TaskStore interface {
	// SaveTask inserts a new work item in its current status.
	SaveTask(ctx context.Context, task Task) error

	// UpdateTaskStatus records a status change, with an optional error
	// message for failed or requeued items.
	UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error

	// IncrementAttempts bumps the delivery counter and returns the new
	// value. Called once per delivery, before execution.
	IncrementAttempts(ctx context.Context, taskID uuid.UUID) (int, error)

	// GetPendingTasks returns work items awaiting delivery. A zero age
	// returns all of them; a positive age returns only those whose last
	// update is older, which indicates a delivery that never happened.
	GetPendingTasks(ctx context.Context, olderThan time.Duration) ([]Task, error)

	// GetProcessingTasks returns work items claimed by a worker. A zero
	// age returns all of them; a positive age returns only those whose
	// last update is older, which indicates an interrupted run.
	GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]Task, error)

	// WithTx returns a store that runs against the given transaction.
	WithTx(tx *sql.Tx) TaskStore
}
