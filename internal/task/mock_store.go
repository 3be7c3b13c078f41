package task

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
)

// mockTaskRow is the persisted form a real store would keep.
type mockTaskRow struct {
	id        uuid.UUID
	taskType  string
	payload   []byte
	status    TaskStatus
	errorMsg  string
	attempts  int
	updatedAt time.Time
}

func (r *mockTaskRow) ID() uuid.UUID                 { return r.id }
func (r *mockTaskRow) Type() string                  { return r.taskType }
func (r *mockTaskRow) Payload() []byte               { return r.payload }
func (r *mockTaskRow) Status() TaskStatus            { return r.status }
func (r *mockTaskRow) Execute(context.Context) error { return nil }

// MockTaskStore is an in-memory TaskStore for tests. It records status
// transitions per task and supports injected failures.
type MockTaskStore struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]*mockTaskRow
	order []uuid.UUID

	// Transitions holds every status written per task, in order.
	Transitions map[uuid.UUID][]TaskStatus

	SaveTaskErr          error
	UpdateTaskStatusErr  error
	IncrementAttemptsErr error
}

func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{
		rows:        make(map[uuid.UUID]*mockTaskRow),
		Transitions: make(map[uuid.UUID][]TaskStatus),
	}
}

func (s *MockTaskStore) SaveTask(_ context.Context, t Task) error {
	if s.SaveTaskErr != nil {
		return s.SaveTaskErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[t.ID()] = &mockTaskRow{
		id:        t.ID(),
		taskType:  t.Type(),
		payload:   t.Payload(),
		status:    t.Status(),
		updatedAt: time.Now(),
	}
	s.order = append(s.order, t.ID())
	s.Transitions[t.ID()] = append(s.Transitions[t.ID()], t.Status())
	return nil
}

func (s *MockTaskStore) UpdateTaskStatus(_ context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error {
	if s.UpdateTaskStatusErr != nil {
		return s.UpdateTaskStatusErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[taskID]; ok {
		row.status = status
		row.errorMsg = errorMsg
		row.updatedAt = time.Now()
	}
	s.Transitions[taskID] = append(s.Transitions[taskID], status)
	return nil
}

func (s *MockTaskStore) IncrementAttempts(_ context.Context, taskID uuid.UUID) (int, error) {
	if s.IncrementAttemptsErr != nil {
		return 0, s.IncrementAttemptsErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[taskID]; ok {
		row.attempts++
		return row.attempts, nil
	}
	return 1, nil
}

func (s *MockTaskStore) GetPendingTasks(_ context.Context, olderThan time.Duration) ([]Task, error) {
	return s.tasksWithStatus(TaskStatusPending, olderThan), nil
}

func (s *MockTaskStore) GetProcessingTasks(_ context.Context, olderThan time.Duration) ([]Task, error) {
	return s.tasksWithStatus(TaskStatusProcessing, olderThan), nil
}

func (s *MockTaskStore) WithTx(*sql.Tx) TaskStore { return s }

func (s *MockTaskStore) tasksWithStatus(status TaskStatus, olderThan time.Duration) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var out []Task
	for _, id := range s.order {
		row := s.rows[id]
		if row.status != status {
			continue
		}
		if olderThan > 0 && row.updatedAt.After(cutoff) {
			continue
		}
		copied := *row
		out = append(out, &copied)
	}
	return out
}

// SeedRow inserts a raw persisted row, bypassing SaveTask, for recovery
// tests.
func (s *MockTaskStore) SeedRow(id uuid.UUID, taskType string, payload []byte, status TaskStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[id] = &mockTaskRow{id: id, taskType: taskType, payload: payload, status: status, updatedAt: time.Now()}
	s.order = append(s.order, id)
}

// StatusOf returns the current stored status of a task.
func (s *MockTaskStore) StatusOf(id uuid.UUID) (TaskStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return "", false
	}
	return row.status, true
}

// Attempts returns the delivery counter of a task.
func (s *MockTaskStore) Attempts(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[id]; ok {
		return row.attempts
	}
	return 0
}
