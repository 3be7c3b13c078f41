package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/atelierhq/design-api/internal/domain"
	"github.com/google/uuid"
)

// JobStore defines the interface for job persistence. The store owns the
// canonical Job record; after creation the only permitted mutation is a
// single terminal write through UpdateTerminal.
// Version: 1.0
type JobStore interface {
	// Create saves a new job to the store.
	// Returns ErrDuplicate if a job with the same id already exists and
	// validation errors from the domain Job if data is invalid.
	Create(ctx context.Context, job *domain.Job) error

	// GetByID retrieves a job by its unique ID.
	// Returns ErrJobNotFound if the job does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// UpdateTerminal performs the single atomic compare-and-set transition
	// processing -> {completed, failed}. spec must be non-nil exactly when
	// status is completed; reason carries the failure reason code for
	// failed jobs. Returns ErrJobNotFound if the job does not exist and
	// ErrAlreadyTerminal if another writer already landed a terminal state,
	// in which case the stored record is unchanged.
	UpdateTerminal(
		ctx context.Context,
		id uuid.UUID,
		status domain.JobStatus,
		spec json.RawMessage,
		reason string,
	) error

	// List returns jobs ordered by creation time descending, ties broken by
	// id descending, together with the total number of jobs. offset and
	// limit select the page.
	List(ctx context.Context, offset, limit int) ([]*domain.Job, int, error)

	// WithTx returns a new JobStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller
	// (typically a service).
	WithTx(tx *sql.Tx) JobStore
}
