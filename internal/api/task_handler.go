package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/phrazzld/atlas-api/internal/api/shared"
	"github.com/phrazzld/atlas-api/internal/redact"
	"github.com/phrazzld/atlas-api/internal/task"
)

// TaskService is the queue surface the HTTP layer depends on. Implemented
// by *task.Queue; tests substitute fakes.
type TaskService interface {
	Submit(ctx context.Context, sub task.Submission) (string, error)
	Fetch(ctx context.Context, taskID string) (*task.View, error)
	Stats() task.Stats
}

// Wording for the task endpoints. Polling clients match on these strings,
// so they are part of the API contract.
const (
	SubmitAcceptedDescription = "Task has been added to the queue. Use the task ID to retrieve the result."
	TaskNotFoundDescription   = "Task ID not found or has expired."
	TaskPendingDescription    = "Task is waiting in the queue."
	TaskRunningDescription    = "Task is being processed."
)

// TaskHandler handles task polling requests
type TaskHandler struct {
	tasks  TaskService
	logger *slog.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(tasks TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}

	return &TaskHandler{
		tasks:  tasks,
		logger: logger.With(slog.String("component", "task_handler")),
	}
}

// GetTask handles POST /task/get requests. Pending, running, and failed
// tasks are answered with a status envelope. A succeeded task streams its
// artifact exactly once; the fetch purges the record, so a repeat fetch of
// the same id reports not found.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	if _, ok := identityFromContext(r); !ok {
		h.logger.Warn("identity not found in request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid or missing API key")
		return
	}

	var req TaskIDRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	view, err := h.tasks.Fetch(r.Context(), req.TaskID)
	if err != nil {
		// A miss is an expected polling outcome, not an HTTP error.
		if errors.Is(err, task.ErrTaskNotFound) {
			shared.RespondWithJSON(w, r, http.StatusOK, TaskStatusResponse{
				Success:     false,
				Description: TaskNotFoundDescription,
			})
			return
		}
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	switch view.Status {
	case task.StatusPending:
		shared.RespondWithJSON(w, r, http.StatusOK, TaskStatusResponse{
			Success:              true,
			Status:               string(task.StatusPending),
			Description:          TaskPendingDescription,
			QueuePosition:        view.QueuePosition,
			EstimatedWaitSeconds: view.EstimatedWait.Seconds(),
		})

	case task.StatusRunning:
		shared.RespondWithJSON(w, r, http.StatusOK, TaskStatusResponse{
			Success:     true,
			Status:      string(task.StatusRunning),
			Description: TaskRunningDescription,
		})

	case task.StatusFailed:
		description := "Task failed."
		if view.Error != nil {
			description = view.Error.Message
		}
		shared.RespondWithJSON(w, r, http.StatusOK, TaskStatusResponse{
			Success:     false,
			Status:      string(task.StatusFailed),
			Description: description,
		})

	case task.StatusSucceeded:
		if view.Artifact == nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
				"An unexpected error occurred",
				fmt.Errorf("succeeded task %s fetched without artifact", view.ID))
			return
		}
		h.streamArtifact(w, view)

	default:
		// Expired records linger until the sweep; to the client they are
		// already gone.
		shared.RespondWithJSON(w, r, http.StatusOK, TaskStatusResponse{
			Success:     false,
			Description: TaskNotFoundDescription,
		})
	}
}

// streamArtifact delivers a collected artifact as a file download and
// releases it.
func (h *TaskHandler) streamArtifact(w http.ResponseWriter, view *task.View) {
	handle := view.Artifact
	defer func() {
		if err := handle.Close(); err != nil {
			h.logger.Warn("closing artifact handle",
				slog.String("task_id", view.ID),
				slog.String("error", redact.Error(err)))
		}
	}()

	w.Header().Set("Content-Type", handle.Ref.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", handle.Ref.Filename))
	if handle.Ref.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(handle.Ref.SizeBytes, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, handle); err != nil {
		// Headers are gone; the client sees a truncated body.
		h.logger.Error("streaming artifact",
			slog.String("task_id", view.ID),
			slog.String("filename", handle.Ref.Filename),
			slog.String("error", redact.Error(err)))
		return
	}

	h.logger.Debug("artifact streamed",
		slog.String("task_id", view.ID),
		slog.String("filename", handle.Ref.Filename),
		slog.Int64("size_bytes", handle.Ref.SizeBytes))
}
