// Package postgres implements the store interfaces against PostgreSQL
// through database/sql with the pgx driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atelierhq/design-api/internal/domain"
	"github.com/atelierhq/design-api/internal/platform/logger"
	"github.com/atelierhq/design-api/internal/store"
)

// PostgresJobStore implements the store.JobStore interface using PostgreSQL.
type PostgresJobStore struct {
	db    store.DBTX
	sqlDB *sql.DB
}

// NewPostgresJobStore creates a new PostgresJobStore. When given a raw
// *sql.DB it keeps the handle so services can open transactions against
// it through DB.
func NewPostgresJobStore(db store.DBTX) *PostgresJobStore {
	s := &PostgresJobStore{db: db}
	if sqlDB, ok := db.(*sql.DB); ok {
		s.sqlDB = sqlDB
	}
	return s
}

// DB returns the underlying database connection, or nil for a store
// already bound to a transaction.
func (s *PostgresJobStore) DB() *sql.DB {
	return s.sqlDB
}

// Create saves a new job row. The job is validated first so the store
// never persists an entity the domain would reject.
func (s *PostgresJobStore) Create(ctx context.Context, job *domain.Job) error {
	log := logger.FromContext(ctx)

	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO jobs (id, description, category, image_ref, status, spec, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.Description,
		job.Category,
		nullString(job.ImageRef),
		job.Status,
		nullSpec(job.Spec),
		nullString(job.FailureReason),
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to insert job",
			"job_id", job.ID,
			"error", err)
		return MapError(err)
	}

	return nil
}

// GetByID retrieves a job by its unique ID.
func (s *PostgresJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `
		SELECT id, description, category, image_ref, status, spec, failure_reason, created_at, updated_at
		FROM jobs
		WHERE id = $1
	`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrJobNotFound, id)
		}
		return nil, MapError(err)
	}
	return job, nil
}

// UpdateTerminal performs the compare-and-set transition out of
// processing. The WHERE clause on the current status is what makes the
// write atomic: of two racing writers, exactly one matches the row, and
// the loser gets ErrAlreadyTerminal.
func (s *PostgresJobStore) UpdateTerminal(
	ctx context.Context,
	id uuid.UUID,
	status domain.JobStatus,
	spec json.RawMessage,
	reason string,
) error {
	log := logger.FromContext(ctx)

	if status != domain.JobStatusCompleted && status != domain.JobStatusFailed {
		return fmt.Errorf("%w: %q is not a terminal status", domain.ErrInvalidJobStatus, status)
	}
	if (status == domain.JobStatusCompleted) != (spec != nil) {
		return fmt.Errorf("%w: spec must be present exactly for completed jobs", domain.ErrSpecStatusMismatch)
	}

	query := `
		UPDATE jobs
		SET status = $1, spec = $2, failure_reason = $3, updated_at = $4
		WHERE id = $5 AND status = $6
	`

	result, err := s.db.ExecContext(ctx, query,
		status,
		nullSpec(spec),
		nullString(reason),
		time.Now().UTC(),
		id,
		domain.JobStatusProcessing,
	)
	if err != nil {
		log.Error("failed to update job terminal status",
			"job_id", id,
			"status", status,
			"error", err)
		return MapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// No row matched: either the job does not exist or another writer
	// already landed a terminal state. Distinguish the two.
	var current domain.JobStatus
	err = s.db.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", store.ErrJobNotFound, id)
	}
	if err != nil {
		return MapError(err)
	}

	log.Debug("terminal write lost the race, job already terminal",
		"job_id", id,
		"current_status", current)
	return fmt.Errorf("%w: job %s is %s", store.ErrAlreadyTerminal, id, current)
}

// List returns one page of jobs ordered by creation time descending,
// ties broken by id descending so pagination is stable, together with
// the total row count.
func (s *PostgresJobStore) List(ctx context.Context, offset, limit int) ([]*domain.Job, int, error) {
	log := logger.FromContext(ctx)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&total); err != nil {
		return nil, 0, MapError(err)
	}

	query := `
		SELECT id, description, category, image_ref, status, spec, failure_reason, created_at, updated_at
		FROM jobs
		ORDER BY created_at DESC, id DESC
		OFFSET $1 LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		log.Error("failed to list jobs", "error", err)
		return nil, 0, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	jobs := make([]*domain.Job, 0, limit)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating job rows: %w", err)
	}

	return jobs, total, nil
}

// WithTx returns a JobStore bound to the given transaction.
func (s *PostgresJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return &PostgresJobStore{db: tx}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var imageRef, failureReason sql.NullString
	var spec []byte

	err := row.Scan(
		&job.ID,
		&job.Description,
		&job.Category,
		&imageRef,
		&job.Status,
		&spec,
		&failureReason,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.ImageRef = imageRef.String
	job.FailureReason = failureReason.String
	if len(spec) > 0 {
		job.Spec = json.RawMessage(spec)
	}
	return &job, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullSpec keeps NULL in the spec column for non-completed jobs instead
// of an empty JSON document, which the table's check constraint relies
// on.
func nullSpec(spec json.RawMessage) interface{} {
	if spec == nil {
		return nil
	}
	return []byte(spec)
}
