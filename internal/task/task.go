package task

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/phrazzld/atlas-api/internal/artifact"
	"github.com/phrazzld/atlas-api/internal/generation"
)

// Status represents the current state of a task
type Status string

// Possible task status values. Transitions are monotonic: pending to
// running to one terminal state, with expired as the reclaim sink for
// abandoned tasks.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
)

// ErrorKind classifies a task failure.
type ErrorKind string

const (
	// ErrorKindJob marks failures reported by the generation backend.
	ErrorKindJob ErrorKind = "job_error"

	// ErrorKindInternal marks failures in the queue's own machinery,
	// workspace allocation or artifact persistence.
	ErrorKindInternal ErrorKind = "internal_error"
)

// TaskError is the stored outcome of a failed task.
type TaskError struct {
	Kind    ErrorKind
	Message string
}

// Submission is one queued unit of work as handed to Submit. The request
// payload is opaque to the queue; it was validated at the HTTP boundary.
type Submission struct {
	Kind    generation.Kind
	Owner   string
	Request json.RawMessage
}

// View is a point-in-time snapshot of one task, safe to hold after the
// task record has moved on.
type View struct {
	ID          string
	Kind        generation.Kind
	Owner       string
	Status      Status
	SubmittedAt time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time

	// Error is set for failed tasks.
	Error *TaskError

	// QueuePosition and EstimatedWait are set for pending tasks when the
	// queue has processed enough work to estimate.
	QueuePosition int
	EstimatedWait time.Duration

	// Artifact is set when a fetch collected a succeeded task's output.
	// The caller owns the handle and must close it.
	Artifact *artifact.Handle
}

// taskIDBytes sizes the random task identifier; 128 bits keeps ids
// unguessable.
const taskIDBytes = 16

// newTaskID returns a fresh opaque task identifier.
func newTaskID() (string, error) {
	b := make([]byte, taskIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating task id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
