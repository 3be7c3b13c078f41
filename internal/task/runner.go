package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// TaskRunnerConfig holds the tuning knobs for the worker pool.
type TaskRunnerConfig struct {
	// WorkerCount is the number of concurrent workers draining the queue.
	WorkerCount int

	// QueueSize is the capacity of the in-process task channel.
	QueueSize int

	// MaxDeliveryAttempts bounds redelivery. A task delivered more than
	// this many times is abandoned and its HandleExhausted hook fires.
	// Zero disables the bound.
	MaxDeliveryAttempts int

	// StuckTaskAge is how long a task may sit in processing before the
	// monitor resets it for redelivery.
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval is how often the monitor runs.
	StuckTaskCheckInterval time.Duration
}

// TaskRunner owns the worker pool. It persists every work item before
// queueing it, recovers interrupted items on startup, and enforces the
// delivery attempt bound.
type TaskRunner struct {
	store    TaskStore
	resolver TaskResolver
	queue    *TaskQueue
	config   TaskRunnerConfig
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTaskRunner(store TaskStore, resolver TaskResolver, config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.StuckTaskAge <= 0 {
		config.StuckTaskAge = 30 * time.Minute
	}
	if config.StuckTaskCheckInterval <= 0 {
		config.StuckTaskCheckInterval = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TaskRunner{
		store:    store,
		resolver: resolver,
		queue:    NewTaskQueue(config.QueueSize),
		config:   config,
		logger:   logger.With(slog.String("component", "task_runner")),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Submit persists a work item and offers it to the pool. The save happens
// first so a full queue or a crash never loses the item; recovery will
// requeue anything saved but not delivered.
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	if task == nil {
		return errors.New("cannot submit nil task")
	}

	if err := r.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	if err := r.queue.Enqueue(task); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	r.logger.Debug("task submitted",
		slog.String("task_id", task.ID().String()),
		slog.String("task_type", task.Type()))
	return nil
}

// Start recovers interrupted work, launches the workers and the stuck
// task monitor. Call Stop to shut the pool down.
func (r *TaskRunner) Start() error {
	if err := r.recoverTasks(); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(1)
	go r.stuckTaskMonitor()

	r.logger.Info("task runner started",
		slog.Int("worker_count", r.config.WorkerCount),
		slog.Int("queue_size", r.config.QueueSize))
	return nil
}

// Stop cancels in-flight work and waits for the workers to exit.
// Interrupted items are picked up by recovery on the next start.
func (r *TaskRunner) Stop() {
	r.cancel()
	r.queue.Close()
	r.wg.Wait()
	r.logger.Info("task runner stopped")
}

// recoverTasks requeues work items that were saved but never completed:
// pending items that missed their delivery and processing items whose
// worker died. Redelivery is safe because the terminal job write is
// idempotent.
func (r *TaskRunner) recoverTasks() error {
	ctx := r.ctx

	pending, err := r.store.GetPendingTasks(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to load pending tasks: %w", err)
	}

	processing, err := r.store.GetProcessingTasks(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to load processing tasks: %w", err)
	}

	recovered := 0
	for _, t := range append(pending, processing...) {
		resolved, err := r.resolver.Resolve(t)
		if err != nil {
			r.logger.Error("failed to resolve recovered task",
				slog.String("task_id", t.ID().String()),
				slog.String("task_type", t.Type()),
				slog.String("error", err.Error()))
			if uerr := r.store.UpdateTaskStatus(ctx, t.ID(), TaskStatusFailed, err.Error()); uerr != nil {
				r.logger.Error("failed to mark unresolvable task failed",
					slog.String("task_id", t.ID().String()),
					slog.String("error", uerr.Error()))
			}
			continue
		}

		if t.Status() == TaskStatusProcessing {
			if err := r.store.UpdateTaskStatus(ctx, t.ID(), TaskStatusPending, "requeued after interrupted run"); err != nil {
				r.logger.Error("failed to reset interrupted task",
					slog.String("task_id", t.ID().String()),
					slog.String("error", err.Error()))
				continue
			}
		}

		if err := r.queue.Enqueue(resolved); err != nil {
			r.logger.Warn("could not requeue recovered task, leaving it pending",
				slog.String("task_id", t.ID().String()),
				slog.String("error", err.Error()))
			continue
		}
		recovered++
	}

	if recovered > 0 {
		r.logger.Info("recovered interrupted tasks", slog.Int("count", recovered))
	}
	return nil
}

func (r *TaskRunner) worker(id int) {
	defer r.wg.Done()
	log := r.logger.With(slog.Int("worker_id", id))
	log.Debug("worker started")

	for {
		select {
		case <-r.ctx.Done():
			log.Debug("worker stopping")
			return
		case t, ok := <-r.queue.GetChannel():
			if !ok {
				log.Debug("queue closed, worker exiting")
				return
			}
			r.processTask(t, log)
		}
	}
}

// processTask runs a single delivery. The attempt counter is bumped
// before execution so a crash mid-run still counts against the bound.
func (r *TaskRunner) processTask(t Task, log *slog.Logger) {
	// Deliberately not the runner context: a shutdown mid-task should not
	// cancel the generation or its terminal write. Stop waits for the
	// in-flight run, which is bounded by the generation timeout.
	ctx := context.Background()

	log = log.With(
		slog.String("task_id", t.ID().String()),
		slog.String("task_type", t.Type()))

	attempts, err := r.store.IncrementAttempts(ctx, t.ID())
	if err != nil {
		// Without a counted attempt the exhaustion bound cannot hold, so
		// the delivery is abandoned before execution. The row stays
		// pending and the monitor redelivers it once it has aged.
		log.Error("failed to count delivery attempt, deferring task", slog.String("error", err.Error()))
		return
	}

	if r.config.MaxDeliveryAttempts > 0 && attempts > r.config.MaxDeliveryAttempts {
		log.Warn("delivery attempts exhausted, abandoning task",
			slog.Int("attempts", attempts),
			slog.Int("max_attempts", r.config.MaxDeliveryAttempts))
		if h, ok := t.(ExhaustedHandler); ok {
			if err := h.HandleExhausted(ctx); err != nil {
				log.Error("exhausted handler failed", slog.String("error", err.Error()))
			}
		}
		if err := r.store.UpdateTaskStatus(ctx, t.ID(), TaskStatusFailed, "delivery attempts exhausted"); err != nil {
			log.Error("failed to mark exhausted task failed", slog.String("error", err.Error()))
		}
		return
	}

	if err := r.store.UpdateTaskStatus(ctx, t.ID(), TaskStatusProcessing, ""); err != nil {
		log.Error("failed to mark task processing", slog.String("error", err.Error()))
	}

	log.Info("processing task", slog.Int("attempt", attempts))
	execErr := t.Execute(ctx)

	switch {
	case execErr == nil:
		if err := r.store.UpdateTaskStatus(ctx, t.ID(), TaskStatusCompleted, ""); err != nil {
			log.Error("failed to mark task completed", slog.String("error", err.Error()))
		}
		log.Info("task completed")

	case errors.Is(execErr, ErrTerminalWriteFailed):
		// The outcome never reached the store, so the delivery is not
		// acknowledged. Put the task back for another attempt.
		log.Warn("terminal write failed, requeueing task", slog.String("error", execErr.Error()))
		if err := r.store.UpdateTaskStatus(ctx, t.ID(), TaskStatusPending, execErr.Error()); err != nil {
			log.Error("failed to reset task for redelivery", slog.String("error", err.Error()))
		}
		if err := r.queue.Enqueue(t); err != nil {
			// Stays pending in the store; recovery picks it up.
			log.Warn("could not requeue task", slog.String("error", err.Error()))
		}

	default:
		if err := r.store.UpdateTaskStatus(ctx, t.ID(), TaskStatusFailed, execErr.Error()); err != nil {
			log.Error("failed to mark task failed", slog.String("error", err.Error()))
		}
		log.Error("task failed", slog.String("error", execErr.Error()))
	}
}

// stuckTaskMonitor periodically rescues tasks that stopped moving:
// processing rows whose worker wedged, and pending rows whose delivery
// never happened (a requeue that hit a full queue, or an attempt that
// could not be counted). A rescue racing a still-live worker is safe:
// the redelivery counts against the attempt bound and the terminal job
// write is first-wins.
func (r *TaskRunner) stuckTaskMonitor() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			stuck, err := r.store.GetProcessingTasks(r.ctx, r.config.StuckTaskAge)
			if err != nil {
				if r.ctx.Err() == nil {
					r.logger.Error("stuck task check failed", slog.String("error", err.Error()))
				}
				continue
			}
			stalled, err := r.store.GetPendingTasks(r.ctx, r.config.StuckTaskAge)
			if err != nil {
				if r.ctx.Err() == nil {
					r.logger.Error("stalled task check failed", slog.String("error", err.Error()))
				}
				continue
			}
			for _, t := range append(stuck, stalled...) {
				r.rescueTask(t)
			}
		}
	}
}

// rescueTask resets a stalled row to pending and puts it back on the
// queue for another delivery.
func (r *TaskRunner) rescueTask(t Task) {
	log := r.logger.With(
		slog.String("task_id", t.ID().String()),
		slog.String("task_type", t.Type()))
	log.Warn("task stalled, rescuing",
		slog.String("status", string(t.Status())),
		slog.Duration("older_than", r.config.StuckTaskAge))

	resolved, err := r.resolver.Resolve(t)
	if err != nil {
		log.Error("failed to resolve stalled task", slog.String("error", err.Error()))
		if uerr := r.store.UpdateTaskStatus(r.ctx, t.ID(), TaskStatusFailed, err.Error()); uerr != nil {
			log.Error("failed to mark unresolvable task failed", slog.String("error", uerr.Error()))
		}
		return
	}

	// Also refreshes updated_at, so the row is not rescued again before
	// the next stall.
	if err := r.store.UpdateTaskStatus(r.ctx, t.ID(), TaskStatusPending, "requeued after stall"); err != nil {
		log.Error("failed to reset stalled task", slog.String("error", err.Error()))
		return
	}

	if err := r.queue.Enqueue(resolved); err != nil {
		// Stays pending in the store; the next sweep retries.
		log.Warn("could not requeue stalled task", slog.String("error", err.Error()))
		return
	}
	log.Info("requeued stalled task")
}
