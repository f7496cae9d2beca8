package generation

import "errors"

// Common errors returned by the generation package
var (
	// ErrJobFailed is returned when a generation job fails inside its backend
	ErrJobFailed = errors.New("generation job failed")

	// ErrNoOutputs is returned when a job finishes without producing any files
	ErrNoOutputs = errors.New("generation job produced no outputs")

	// ErrKindUnknown is returned for a kind with no registered generator
	ErrKindUnknown = errors.New("unknown generation kind")

	// ErrProviderUnknown is returned for an elevation provider code outside
	// the catalog
	ErrProviderUnknown = errors.New("unknown elevation provider")

	// ErrInvalidConfig is returned when a generator backend is misconfigured
	ErrInvalidConfig = errors.New("invalid generator configuration")
)
