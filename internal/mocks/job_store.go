package mocks

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/atelierhq/design-api/internal/domain"
	"github.com/atelierhq/design-api/internal/store"
)

// MockJobStore implements store.JobStore in memory with the same
// semantics as the SQL store: duplicate detection on Create, the
// compare-and-set terminal write, and List ordering by creation time
// descending with id as tiebreaker.
type MockJobStore struct {
	// Fn fields override the default in-memory behavior when set
	CreateFn         func(ctx context.Context, job *domain.Job) error
	GetByIDFn        func(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	UpdateTerminalFn func(ctx context.Context, id uuid.UUID, status domain.JobStatus, spec json.RawMessage, reason string) error
	ListFn           func(ctx context.Context, offset, limit int) ([]*domain.Job, int, error)

	mu   sync.Mutex
	jobs map[uuid.UUID]*domain.Job
}

func NewMockJobStore() *MockJobStore {
	return &MockJobStore{jobs: make(map[uuid.UUID]*domain.Job)}
}

// Create implements store.JobStore.
func (m *MockJobStore) Create(ctx context.Context, job *domain.Job) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, job)
	}
	if err := job.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[job.ID]; exists {
		return store.ErrDuplicate
	}
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

// GetByID implements store.JobStore.
func (m *MockJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

// UpdateTerminal implements store.JobStore with the same
// compare-and-set rule as the SQL store: only a job still in processing
// can be written, and only once.
func (m *MockJobStore) UpdateTerminal(ctx context.Context, id uuid.UUID, status domain.JobStatus, spec json.RawMessage, reason string) error {
	if m.UpdateTerminalFn != nil {
		return m.UpdateTerminalFn(ctx, id, status, spec, reason)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	if job.IsTerminal() {
		return store.ErrAlreadyTerminal
	}

	switch status {
	case domain.JobStatusCompleted:
		if err := job.Complete(spec); err != nil {
			return err
		}
	case domain.JobStatusFailed:
		if err := job.Fail(reason); err != nil {
			return err
		}
	default:
		return domain.ErrInvalidJobStatus
	}
	return nil
}

// List implements store.JobStore.
func (m *MockJobStore) List(ctx context.Context, offset, limit int) ([]*domain.Job, int, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, offset, limit)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]*domain.Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		copied := *job
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID.String() > all[j].ID.String()
	})

	total := len(all)
	if offset >= total {
		return []*domain.Job{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// WithTx implements store.JobStore. Transactions are a no-op in memory.
func (m *MockJobStore) WithTx(_ *sql.Tx) store.JobStore { return m }

// Seed inserts a job directly, bypassing validation, for test setup.
func (m *MockJobStore) Seed(job *domain.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *job
	m.jobs[job.ID] = &copied
}
