package task

import "errors"

var (
	// ErrQueueFull indicates the submission was rejected because the
	// queue has reached its configured capacity.
	ErrQueueFull = errors.New("task queue is full")

	// ErrQueueClosed indicates an operation was attempted on a stopped
	// queue.
	ErrQueueClosed = errors.New("task queue is closed")

	// ErrTaskNotFound indicates the requested task id is unknown,
	// already collected, or expired. The three cases are deliberately
	// indistinguishable to callers.
	ErrTaskNotFound = errors.New("task not found")
)
