package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/design-api/internal/domain"
	"github.com/atelierhq/design-api/internal/mocks"
	"github.com/atelierhq/design-api/internal/store"
	"github.com/atelierhq/design-api/internal/task"
)

var testCategories = []string{"dress", "shirt", "pants", "skirt", "jacket"}

type jobServiceFixture struct {
	svc     *JobService
	jobs    *mocks.MockJobStore
	blobs   *mocks.MockBlobStore
	emitter *mocks.MockEventEmitter
}

func newJobServiceFixture(t *testing.T, cache JobCache) *jobServiceFixture {
	t.Helper()
	jobs := mocks.NewMockJobStore()
	blobs := mocks.NewMockBlobStore()
	emitter := &mocks.MockEventEmitter{}

	artifacts, err := NewArtifactService(blobs, 10<<20, 1024, testLogger())
	require.NoError(t, err)

	svc, err := NewJobService(jobs, artifacts, emitter, cache, testCategories, testLogger())
	require.NoError(t, err)

	return &jobServiceFixture{svc: svc, jobs: jobs, blobs: blobs, emitter: emitter}
}

func validSubmitRequest(t *testing.T) SubmitRequest {
	t.Helper()
	return SubmitRequest{
		Description:      "wrap dress with bell sleeves",
		Category:         "dress",
		ImageData:        makePNG(t, 20, 20),
		ImageContentType: "image/png",
	}
}

func TestJobServiceSubmit(t *testing.T) {
	t.Parallel()

	f := newJobServiceFixture(t, nil)

	job, err := f.svc.Submit(context.Background(), validSubmitRequest(t))
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, job.Status)
	assert.Equal(t, SourceImageKey(job.ID), job.ImageRef)

	stored, err := f.jobs.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, stored.Status)

	emitted := f.emitter.Events()
	require.Len(t, emitted, 1)
	assert.Equal(t, task.TaskTypeSpecGeneration, emitted[0].Type)

	var payload task.SpecGenerationPayload
	require.NoError(t, emitted[0].UnmarshalPayload(&payload))
	assert.Equal(t, job.ID, payload.JobID)
	assert.Equal(t, job.Description, payload.Description)
	assert.Equal(t, job.ImageRef, payload.ImageRef)
}

func TestJobServiceSubmitValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*SubmitRequest)
		wantErr error
	}{
		{
			name:    "empty description",
			mutate:  func(r *SubmitRequest) { r.Description = "   " },
			wantErr: ErrEmptyDescription,
		},
		{
			name:    "unknown category",
			mutate:  func(r *SubmitRequest) { r.Category = "spacesuit" },
			wantErr: ErrUnknownCategory,
		},
		{
			name:    "missing image",
			mutate:  func(r *SubmitRequest) { r.ImageData = nil },
			wantErr: ErrMissingImage,
		},
		{
			name:    "unsupported image type",
			mutate:  func(r *SubmitRequest) { r.ImageContentType = "text/html" },
			wantErr: ErrUnsupportedImageType,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newJobServiceFixture(t, nil)

			req := validSubmitRequest(t)
			tc.mutate(&req)

			_, err := f.svc.Submit(context.Background(), req)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Empty(t, f.emitter.Events(), "no work item on rejected submission")

			page, err := f.svc.ListJobs(context.Background(), 1, 10)
			require.NoError(t, err)
			assert.Zero(t, page.Total, "no job row on rejected submission")
		})
	}
}

func TestJobServiceSubmitCategoryCaseInsensitive(t *testing.T) {
	t.Parallel()

	f := newJobServiceFixture(t, nil)
	req := validSubmitRequest(t)
	req.Category = "Dress"

	job, err := f.svc.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "dress", job.Category)
}

func TestJobServiceSubmitEnqueueFailure(t *testing.T) {
	t.Parallel()

	// The job row exists by the time the emit fails; it must end up
	// failed rather than processing forever.
	f := newJobServiceFixture(t, nil)
	f.emitter.Err = errors.New("queue full")

	_, err := f.svc.Submit(context.Background(), validSubmitRequest(t))
	require.ErrorIs(t, err, ErrEnqueueFailed)

	page, err := f.svc.ListJobs(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Jobs, 1)
	assert.Equal(t, domain.JobStatusFailed, page.Jobs[0].Status)
	assert.Equal(t, domain.FailureReasonEnqueue, page.Jobs[0].FailureReason)
}

func TestJobServiceGetJobNotFound(t *testing.T) {
	t.Parallel()

	f := newJobServiceFixture(t, nil)
	_, err := f.svc.GetJob(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}

// memoryJobCache is a simple JobCache for tests.
type memoryJobCache struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*domain.Job
}

func newMemoryJobCache() *memoryJobCache {
	return &memoryJobCache{jobs: make(map[uuid.UUID]*domain.Job)}
}

func (c *memoryJobCache) Get(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (c *memoryJobCache) Set(_ context.Context, job *domain.Job) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := *job
	c.jobs[job.ID] = &copied
	return nil
}

func (c *memoryJobCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.jobs)
}

func TestJobServiceGetJobCachesOnlyTerminal(t *testing.T) {
	t.Parallel()

	cache := newMemoryJobCache()
	f := newJobServiceFixture(t, cache)

	job, err := f.svc.Submit(context.Background(), validSubmitRequest(t))
	require.NoError(t, err)

	// Still processing: served from the store, never cached.
	got, err := f.svc.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, got.Status)
	assert.Zero(t, cache.len())

	// Terminal write lands; the next poll populates the cache.
	spec := json.RawMessage(`{"style":"romantic","colors":["blush"],"details":"bell sleeves"}`)
	require.NoError(t, f.jobs.UpdateTerminal(context.Background(), job.ID, domain.JobStatusCompleted, spec, ""))

	got, err = f.svc.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
	assert.Equal(t, 1, cache.len())

	// Subsequent polls bypass the store entirely.
	storeReads := 0
	f.jobs.GetByIDFn = func(context.Context, uuid.UUID) (*domain.Job, error) {
		storeReads++
		return nil, store.ErrJobNotFound
	}
	got, err = f.svc.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
	assert.Zero(t, storeReads)
}

func TestJobServiceGetJobImage(t *testing.T) {
	t.Parallel()

	f := newJobServiceFixture(t, nil)
	job, err := f.svc.Submit(context.Background(), validSubmitRequest(t))
	require.NoError(t, err)

	data, contentType, err := f.svc.GetJobImage(context.Background(), job.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Equal(t, "image/png", contentType)

	_, _, err = f.svc.GetJobImage(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}

func TestJobServiceListPagination(t *testing.T) {
	t.Parallel()

	f := newJobServiceFixture(t, nil)
	base := time.Now().UTC().Add(-time.Hour)

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		job, err := domain.NewJob(fmt.Sprintf("design %d", i), "dress")
		require.NoError(t, err)
		job.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		job.UpdatedAt = job.CreatedAt
		f.jobs.Seed(job)
		ids = append(ids, job.ID)
	}

	page, err := f.svc.ListJobs(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Jobs, 2)
	assert.Equal(t, ids[4], page.Jobs[0].ID, "newest first")
	assert.Equal(t, ids[3], page.Jobs[1].ID)

	page, err = f.svc.ListJobs(context.Background(), 3, 2)
	require.NoError(t, err)
	require.Len(t, page.Jobs, 1)
	assert.Equal(t, ids[0], page.Jobs[0].ID, "last page holds the oldest job")

	page, err = f.svc.ListJobs(context.Background(), 4, 2)
	require.NoError(t, err)
	assert.Empty(t, page.Jobs)
	assert.Equal(t, 5, page.Total)
}

func TestJobServiceListClampsPaging(t *testing.T) {
	t.Parallel()

	f := newJobServiceFixture(t, nil)

	page, err := f.svc.ListJobs(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, defaultPageSize, page.PageSize)

	page, err = f.svc.ListJobs(context.Background(), -3, 5000)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, maxPageSize, page.PageSize)
}
