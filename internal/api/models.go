package api

import (
	"github.com/phrazzld/atlas-api/internal/generation"
)

// Common request/response structures

// TaskIDRequest identifies a previously submitted task.
type TaskIDRequest struct {
	TaskID string `json:"task_id" validate:"required"`
}

// LatLonRequest scopes a provider listing to a location. Zero values are
// valid coordinates, so only ranges are enforced.
type LatLonRequest struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// ProviderInfoRequest names one elevation provider by its short code.
type ProviderInfoRequest struct {
	Code string `json:"code" validate:"required"`
}

// TaskStatusResponse answers a task fetch that has no artifact to stream:
// the task is pending, failed, or unknown. Succeeded tasks are answered
// with the artifact bytes instead of this envelope.
type TaskStatusResponse struct {
	Success     bool   `json:"success"`
	Status      string `json:"status,omitempty"`
	Description string `json:"description"`

	// QueuePosition and EstimatedWaitSeconds are present for pending
	// tasks once the queue has completed enough work to estimate.
	QueuePosition        int     `json:"queue_position,omitempty"`
	EstimatedWaitSeconds float64 `json:"estimated_wait_seconds,omitempty"`
}

// ProviderInfoResponse wraps a single provider record.
type ProviderInfoResponse struct {
	Valid    bool                `json:"valid"`
	Provider generation.Provider `json:"provider"`
}

// KeyValidationResponse reports the outcome of an API key check.
type KeyValidationResponse struct {
	Valid bool `json:"valid"`

	// UserID is set for per-user keys, Service for the frontend key.
	UserID  uint64 `json:"user_id,omitempty"`
	Service bool   `json:"service,omitempty"`
}

// QueueStatusResponse summarizes queue health for operators.
type QueueStatusResponse struct {
	Depth                int                `json:"depth"`
	Pending              int                `json:"pending"`
	Running              int                `json:"running"`
	Succeeded            uint64             `json:"succeeded"`
	Failed               uint64             `json:"failed"`
	Expired              uint64             `json:"expired"`
	AvgProcessingSeconds float64            `json:"avg_processing_seconds"`
	History              []TaskHistoryEntry `json:"history"`
}

// TaskHistoryEntry is one recently finished task. TaskID is truncated
// before it gets here: full identifiers are fetch capabilities and must
// never appear in status output.
type TaskHistoryEntry struct {
	TaskID          string  `json:"task_id"`
	Kind            string  `json:"kind"`
	Status          string  `json:"status"`
	DurationSeconds float64 `json:"duration_seconds"`
	FinishedAt      string  `json:"finished_at"`
}

// VersionResponse reports the build identity of the running server.
type VersionResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
}
