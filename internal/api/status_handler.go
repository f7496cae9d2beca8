package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/atlas-api/internal/api/shared"
)

// historyIDLength is how much of a task identifier survives into status
// output. Full identifiers are fetch capabilities and must not leak
// through monitoring.
const historyIDLength = 8

// VersionInfo is the build identity stamped into the binary at link time.
type VersionInfo struct {
	Name    string
	Version string
	Commit  string
}

// StatusHandler reports queue health and build identity.
type StatusHandler struct {
	tasks   TaskService
	version VersionInfo
	logger  *slog.Logger
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(tasks TaskService, version VersionInfo, logger *slog.Logger) *StatusHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for StatusHandler")
	}

	return &StatusHandler{
		tasks:   tasks,
		version: version,
		logger:  logger.With(slog.String("component", "status_handler")),
	}
}

// QueueStatus handles GET /queue/status requests.
func (h *StatusHandler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	stats := h.tasks.Stats()

	history := make([]TaskHistoryEntry, 0, len(stats.History))
	for _, e := range stats.History {
		history = append(history, TaskHistoryEntry{
			TaskID:          truncateTaskID(e.TaskID),
			Kind:            string(e.Kind),
			Status:          string(e.Status),
			DurationSeconds: e.Duration.Seconds(),
			FinishedAt:      e.FinishedAt.UTC().Format(time.RFC3339),
		})
	}

	shared.RespondWithJSON(w, r, http.StatusOK, QueueStatusResponse{
		Depth:                stats.Depth,
		Pending:              stats.Pending,
		Running:              stats.Running,
		Succeeded:            stats.Succeeded,
		Failed:               stats.Failed,
		Expired:              stats.Expired,
		AvgProcessingSeconds: stats.AvgProcessing.Seconds(),
		History:              history,
	})
}

// Version handles GET /info/version requests.
func (h *StatusHandler) Version(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, VersionResponse{
		Name:    h.version.Name,
		Version: h.version.Version,
		Commit:  h.version.Commit,
	})
}

func truncateTaskID(id string) string {
	if len(id) <= historyIDLength {
		return id
	}
	return id[:historyIDLength]
}
