package task

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/design-api/internal/domain"
)

func mustJob(t *testing.T) *domain.Job {
	t.Helper()
	job, err := domain.NewJob("double breasted wool coat", "jacket")
	require.NoError(t, err)
	return job
}

func testRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:            1,
		QueueSize:              10,
		MaxDeliveryAttempts:    3,
		StuckTaskAge:           time.Hour,
		StuckTaskCheckInterval: time.Hour,
	}
}

func newRunnerFixture(t *testing.T, jobs JobTerminalWriter, gen *fakeGenerator) (*TaskRunner, *MockTaskStore, *SpecGenerationTaskFactory) {
	t.Helper()
	store := NewMockTaskStore()
	factory := NewSpecGenerationTaskFactory(jobs, gen, time.Second, testLogger())
	runner := NewTaskRunner(store, factory, testRunnerConfig(), testLogger())
	return runner, store, factory
}

func TestTaskRunnerProcessesSubmittedTask(t *testing.T) {
	t.Parallel()

	jobs := &fakeJobWriter{}
	gen := &fakeGenerator{spec: json.RawMessage(`{"style":"utility","colors":["olive"],"details":"cargo pockets"}`)}
	runner, taskStore, factory := newRunnerFixture(t, jobs, gen)

	tk, err := factory.CreateTask(mustJob(t))
	require.NoError(t, err)

	require.NoError(t, runner.Start())
	defer runner.Stop()

	require.NoError(t, runner.Submit(context.Background(), tk))

	require.Eventually(t, func() bool {
		status, ok := taskStore.StatusOf(tk.ID())
		return ok && status == TaskStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, taskStore.Attempts(tk.ID()))
	require.Len(t, jobs.recorded(), 1)
	assert.Equal(t,
		[]TaskStatus{TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted},
		taskStore.Transitions[tk.ID()])
}

func TestTaskRunnerSubmitFailsWhenSaveFails(t *testing.T) {
	t.Parallel()

	jobs := &fakeJobWriter{}
	runner, taskStore, factory := newRunnerFixture(t, jobs, &fakeGenerator{spec: json.RawMessage(`{}`)})
	taskStore.SaveTaskErr = errors.New("database down")

	tk, err := factory.CreateTask(mustJob(t))
	require.NoError(t, err)

	err = runner.Submit(context.Background(), tk)
	require.Error(t, err)
	assert.Equal(t, 0, runner.queue.Len())
}

func TestTaskRunnerRedeliversAfterTerminalWriteFailure(t *testing.T) {
	t.Parallel()

	// The first two terminal writes fail, so those deliveries must not
	// count as acknowledged. The runner requeues and the third lands.
	jobs := &fakeJobWriter{err: errors.New("connection refused"), healAfter: 2}
	gen := &fakeGenerator{spec: json.RawMessage(`{"style":"minimal"}`)}
	runner, taskStore, factory := newRunnerFixture(t, jobs, gen)

	tk, err := factory.CreateTask(mustJob(t))
	require.NoError(t, err)

	require.NoError(t, runner.Start())
	defer runner.Stop()

	require.NoError(t, runner.Submit(context.Background(), tk))

	require.Eventually(t, func() bool {
		status, ok := taskStore.StatusOf(tk.ID())
		return ok && status == TaskStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	require.Len(t, jobs.recorded(), 1)
	assert.Equal(t, 3, taskStore.Attempts(tk.ID()))
}

func TestTaskRunnerExhaustsDeliveryAttempts(t *testing.T) {
	t.Parallel()

	// Terminal writes never succeed until the attempts run out; the
	// exhausted hook then force-fails the job.
	jobs := &fakeJobWriter{err: errors.New("connection refused")}
	jobs.healAfter = 3 // the HandleExhausted write is the fourth
	gen := &fakeGenerator{spec: json.RawMessage(`{"style":"minimal"}`)}
	runner, taskStore, factory := newRunnerFixture(t, jobs, gen)

	tk, err := factory.CreateTask(mustJob(t))
	require.NoError(t, err)

	require.NoError(t, runner.Start())
	defer runner.Stop()

	require.NoError(t, runner.Submit(context.Background(), tk))

	require.Eventually(t, func() bool {
		status, ok := taskStore.StatusOf(tk.ID())
		return ok && status == TaskStatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	spec, ok := tk.(*SpecGenerationTask)
	require.True(t, ok)

	writes := jobs.recorded()
	require.Len(t, writes, 1)
	assert.Equal(t, spec.JobID(), writes[0].jobID)
	assert.Equal(t, "delivery_exhausted", writes[0].reason)
	assert.Equal(t, 4, taskStore.Attempts(tk.ID()))
}

func TestTaskRunnerRecoversPersistedTasks(t *testing.T) {
	t.Parallel()

	jobs := &fakeJobWriter{}
	gen := &fakeGenerator{spec: json.RawMessage(`{"style":"tailored"}`)}
	runner, taskStore, factory := newRunnerFixture(t, jobs, gen)

	pendingTask, err := factory.CreateTask(mustJob(t))
	require.NoError(t, err)
	interruptedTask, err := factory.CreateTask(mustJob(t))
	require.NoError(t, err)

	// Simulate a previous run: one task never delivered, one claimed by
	// a worker that died.
	taskStore.SeedRow(pendingTask.ID(), pendingTask.Type(), pendingTask.Payload(), TaskStatusPending)
	taskStore.SeedRow(interruptedTask.ID(), interruptedTask.Type(), interruptedTask.Payload(), TaskStatusProcessing)

	require.NoError(t, runner.Start())
	defer runner.Stop()

	require.Eventually(t, func() bool {
		a, okA := taskStore.StatusOf(pendingTask.ID())
		b, okB := taskStore.StatusOf(interruptedTask.ID())
		return okA && okB && a == TaskStatusCompleted && b == TaskStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	assert.Len(t, jobs.recorded(), 2)
}

func TestTaskRunnerResetsStuckTask(t *testing.T) {
	t.Parallel()

	jobs := &fakeJobWriter{}
	gen := &fakeGenerator{spec: json.RawMessage(`{"style":"pleated"}`)}
	store := NewMockTaskStore()
	factory := NewSpecGenerationTaskFactory(jobs, gen, time.Second, testLogger())

	cfg := testRunnerConfig()
	cfg.StuckTaskAge = time.Millisecond
	cfg.StuckTaskCheckInterval = 25 * time.Millisecond
	runner := NewTaskRunner(store, factory, cfg, testLogger())

	require.NoError(t, runner.Start())
	defer runner.Stop()

	// Claimed by a worker that wedged: the row appears after startup
	// recovery already ran, so only the monitor can rescue it.
	tk, err := factory.CreateTask(mustJob(t))
	require.NoError(t, err)
	store.SeedRow(tk.ID(), tk.Type(), tk.Payload(), TaskStatusProcessing)

	require.Eventually(t, func() bool {
		status, ok := store.StatusOf(tk.ID())
		return ok && status == TaskStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	writes := jobs.recorded()
	require.NotEmpty(t, writes)
	assert.Equal(t, domain.JobStatusCompleted, writes[0].status)

	// The monitor reset the row to pending before the redelivery ran.
	transitions := store.Transitions[tk.ID()]
	require.NotEmpty(t, transitions)
	assert.Equal(t, TaskStatusPending, transitions[0])
}

func TestTaskRunnerRescuesStalledPendingTask(t *testing.T) {
	t.Parallel()

	jobs := &fakeJobWriter{}
	gen := &fakeGenerator{spec: json.RawMessage(`{"style":"boxy"}`)}
	store := NewMockTaskStore()
	factory := NewSpecGenerationTaskFactory(jobs, gen, time.Second, testLogger())

	cfg := testRunnerConfig()
	cfg.StuckTaskAge = time.Millisecond
	cfg.StuckTaskCheckInterval = 25 * time.Millisecond
	runner := NewTaskRunner(store, factory, cfg, testLogger())

	require.NoError(t, runner.Start())
	defer runner.Stop()

	// A pending row with no queue entry: a requeue that hit a full queue
	// leaves exactly this state behind. Startup recovery already ran, so
	// only the monitor can get it delivered.
	tk, err := factory.CreateTask(mustJob(t))
	require.NoError(t, err)
	store.SeedRow(tk.ID(), tk.Type(), tk.Payload(), TaskStatusPending)

	require.Eventually(t, func() bool {
		status, ok := store.StatusOf(tk.ID())
		return ok && status == TaskStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	writes := jobs.recorded()
	require.NotEmpty(t, writes)
	assert.Equal(t, domain.JobStatusCompleted, writes[0].status)
}

func TestTaskRunnerSkipsDeliveryWhenAttemptCountFails(t *testing.T) {
	t.Parallel()

	jobs := &fakeJobWriter{}
	gen := &fakeGenerator{spec: json.RawMessage(`{"style":"aline"}`)}
	runner, taskStore, factory := newRunnerFixture(t, jobs, gen)
	taskStore.IncrementAttemptsErr = errors.New("database down")

	tk, err := factory.CreateTask(mustJob(t))
	require.NoError(t, err)

	require.NoError(t, runner.Start())
	defer runner.Stop()
	require.NoError(t, runner.Submit(context.Background(), tk))

	// An uncounted delivery would evade the attempt bound, so it must be
	// abandoned before execution: no generation, no terminal write, the
	// row left pending for a later sweep.
	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, jobs.recorded())
	status, ok := taskStore.StatusOf(tk.ID())
	require.True(t, ok)
	assert.Equal(t, TaskStatusPending, status)
	assert.Equal(t, []TaskStatus{TaskStatusPending}, taskStore.Transitions[tk.ID()])
}

func TestTaskRunnerStopWaitsForInFlightTask(t *testing.T) {
	t.Parallel()

	jobs := &fakeJobWriter{}
	gen := &fakeGenerator{spec: json.RawMessage(`{"style":"draped"}`), delay: 150 * time.Millisecond}
	runner, taskStore, factory := newRunnerFixture(t, jobs, gen)

	tk, err := factory.CreateTask(mustJob(t))
	require.NoError(t, err)

	require.NoError(t, runner.Start())
	require.NoError(t, runner.Submit(context.Background(), tk))

	require.Eventually(t, func() bool {
		status, ok := taskStore.StatusOf(tk.ID())
		return ok && status == TaskStatusProcessing
	}, 2*time.Second, 5*time.Millisecond)

	// Shutdown must not cancel the run: the generation finishes and its
	// terminal write lands before Stop returns.
	runner.Stop()

	status, ok := taskStore.StatusOf(tk.ID())
	require.True(t, ok)
	assert.Equal(t, TaskStatusCompleted, status)
	writes := jobs.recorded()
	require.Len(t, writes, 1)
	assert.Equal(t, domain.JobStatusCompleted, writes[0].status)
}

func TestTaskRunnerMarksUnresolvableTaskFailed(t *testing.T) {
	t.Parallel()

	jobs := &fakeJobWriter{}
	runner, taskStore, _ := newRunnerFixture(t, jobs, &fakeGenerator{spec: json.RawMessage(`{}`)})

	id := uuid.New()
	taskStore.SeedRow(id, "mystery_type", []byte(`{}`), TaskStatusPending)

	require.NoError(t, runner.Start())
	defer runner.Stop()

	require.Eventually(t, func() bool {
		status, ok := taskStore.StatusOf(id)
		return ok && status == TaskStatusFailed
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, jobs.recorded())
}
