package artifact

import "errors"

// Store errors
var (
	// ErrArtifactNotFound indicates no stored artifact for the task: never
	// stored, already taken, or swept
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrArtifactExists indicates a second Put for a task that already has
	// an artifact; one task produces at most one artifact
	ErrArtifactExists = errors.New("artifact already stored for task")
)
