package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a design-generation job.
type JobStatus string

// Possible job status values. A job is created as processing and receives
// exactly one terminal transition; terminal states are absorbing.
const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Failure reason codes recorded on failed jobs. They distinguish a generator
// failure from a timeout, from a work item redelivered past the retry bound,
// and from a work item that could never be enqueued.
const (
	FailureReasonGeneration        = "generation_failed"
	FailureReasonTimeout           = "generation_timeout"
	FailureReasonDeliveryExhausted = "delivery_exhausted"
	FailureReasonEnqueue           = "enqueue_failed"
)

// Common validation errors for Job
var (
	ErrEmptyJobID          = errors.New("job ID cannot be empty")
	ErrEmptyJobDescription = errors.New("job description cannot be empty")
	ErrEmptyJobCategory    = errors.New("job category cannot be empty")
	ErrInvalidJobStatus    = errors.New("invalid job status")
	ErrInvalidJobSpec      = errors.New("job spec must be valid JSON")
	ErrSpecStatusMismatch  = errors.New("job spec must be set if and only if the job is completed")
	ErrJobAlreadyTerminal  = errors.New("job is already in a terminal state")
)

// Job represents one user-submitted design-generation request and its
// lifecycle record. Description, category, and image reference are immutable
// after creation; status and spec change only through a single terminal
// transition performed by a worker.
type Job struct {
	ID            uuid.UUID       `json:"id"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	ImageRef      string          `json:"image_ref"`
	Status        JobStatus       `json:"status"`
	Spec          json.RawMessage `json:"spec,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// DesignSpec documents the shape the external generator produces. The spec is
// stored as opaque JSONB; this struct is a reference shape, not a schema the
// core validates field by field.
type DesignSpec struct {
	Style   string   `json:"style"`
	Colors  []string `json:"colors"`
	Details string   `json:"details,omitempty"`
}

// NewJob creates a new Job in the processing state with a generated ID and
// creation timestamps. The image reference is set by the caller once the
// source image has been persisted, before the job row is stored.
// Returns an error if validation fails.
func NewJob(description, category string) (*Job, error) {
	job := &Job{
		ID:          uuid.New(),
		Description: description,
		Category:    category,
		Status:      JobStatusProcessing,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks if the Job has valid data, including the invariant that a
// spec is present if and only if the job is completed.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}

	if j.Description == "" {
		return ErrEmptyJobDescription
	}

	if j.Category == "" {
		return ErrEmptyJobCategory
	}

	if !isValidJobStatus(j.Status) {
		return ErrInvalidJobStatus
	}

	if (j.Status == JobStatusCompleted) != (len(j.Spec) > 0) {
		return ErrSpecStatusMismatch
	}

	if len(j.Spec) > 0 && !json.Valid(j.Spec) {
		return ErrInvalidJobSpec
	}

	return nil
}

// IsTerminal reports whether the job has reached an absorbing state.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Complete applies the successful terminal transition, attaching the
// generated spec. Returns ErrJobAlreadyTerminal if the job is not processing.
func (j *Job) Complete(spec json.RawMessage) error {
	if j.IsTerminal() {
		return ErrJobAlreadyTerminal
	}

	if len(spec) == 0 || !json.Valid(spec) {
		return ErrInvalidJobSpec
	}

	j.Status = JobStatusCompleted
	j.Spec = spec
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// Fail applies the failed terminal transition with a reason code.
// Returns ErrJobAlreadyTerminal if the job is not processing.
func (j *Job) Fail(reason string) error {
	if j.IsTerminal() {
		return ErrJobAlreadyTerminal
	}

	j.Status = JobStatusFailed
	j.FailureReason = reason
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// isValidJobStatus checks if the given status is a valid JobStatus.
func isValidJobStatus(status JobStatus) bool {
	switch status {
	case JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}
