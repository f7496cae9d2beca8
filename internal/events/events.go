package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type names one lifecycle transition. Values double as the suffix of the
// publish subject.
type Type string

// Task lifecycle event types
const (
	TypeTaskQueued    Type = "task.queued"
	TypeTaskStarted   Type = "task.started"
	TypeTaskSucceeded Type = "task.succeeded"
	TypeTaskFailed    Type = "task.failed"
	TypeTaskExpired   Type = "task.expired"
)

// TaskEvent describes one task lifecycle transition. It carries enough for a
// consumer to act without calling back into the API.
type TaskEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is the lifecycle transition
	Type Type `json:"type"`

	// TaskID identifies the task
	TaskID string `json:"task_id"`

	// Kind is the generation kind of the task
	Kind string `json:"kind"`

	// Owner is the identity that submitted the task
	Owner string `json:"owner"`

	// Error holds the failure description for failed tasks
	Error string `json:"error,omitempty"`

	// DurationSeconds is the processing time for terminal transitions
	DurationSeconds float64 `json:"duration_seconds,omitempty"`

	// OccurredAt is when the transition happened
	OccurredAt time.Time `json:"occurred_at"`
}

// NewTaskEvent creates a TaskEvent for the given transition.
func NewTaskEvent(eventType Type, taskID, kind, owner string) *TaskEvent {
	return &TaskEvent{
		ID:         uuid.New(),
		Type:       eventType,
		TaskID:     taskID,
		Kind:       kind,
		Owner:      owner,
		OccurredAt: time.Now(),
	}
}

// Publisher delivers task lifecycle events to one sink.
type Publisher interface {
	// Publish delivers the event. Implementations must not block on slow
	// consumers longer than ctx allows.
	Publish(ctx context.Context, event *TaskEvent) error
}
