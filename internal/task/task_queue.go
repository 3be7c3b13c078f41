package task

import (
	"errors"
	"sync"
)

var (
	// ErrQueueFull is returned by Enqueue when the buffered channel has no
	// free slot. Callers decide whether to fail the submission or retry.
	ErrQueueFull = errors.New("task queue is full")

	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("task queue is closed")
)

// TaskQueue is a bounded in-process queue feeding the worker pool. Each
// task is received by exactly one worker; durability comes from the task
// store, not the channel.
type TaskQueue struct {
	tasks  chan Task
	mu     sync.Mutex
	closed bool
}

func NewTaskQueue(size int) *TaskQueue {
	if size <= 0 {
		size = 1
	}
	return &TaskQueue{tasks: make(chan Task, size)}
}

// Enqueue offers a task without blocking.
func (q *TaskQueue) Enqueue(task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// GetChannel exposes the receive side for workers.
func (q *TaskQueue) GetChannel() <-chan Task {
	return q.tasks
}

// Close stops accepting tasks and lets workers drain what remains.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.tasks)
}

// Len reports the number of tasks currently buffered.
func (q *TaskQueue) Len() int {
	return len(q.tasks)
}
