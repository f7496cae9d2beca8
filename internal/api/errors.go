package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/phrazzld/atlas-api/internal/artifact"
	"github.com/phrazzld/atlas-api/internal/auth"
	"github.com/phrazzld/atlas-api/internal/generation"
	"github.com/phrazzld/atlas-api/internal/safepath"
	"github.com/phrazzld/atlas-api/internal/task"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case auth.IsAuthError(err):
		return http.StatusUnauthorized

	// Capacity errors
	case errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed):
		return http.StatusServiceUnavailable

	// Not found errors. A purged artifact is indistinguishable from an
	// expired task as far as the client is concerned.
	case errors.Is(err, task.ErrTaskNotFound),
		errors.Is(err, artifact.ErrArtifactNotFound):
		return http.StatusNotFound

	case errors.Is(err, generation.ErrProviderUnknown):
		return http.StatusNotFound

	// Bad request errors
	case errors.Is(err, generation.ErrKindUnknown),
		errors.Is(err, safepath.ErrUnsafeFilename),
		errors.Is(err, safepath.ErrOutsideRoot),
		errors.Is(err, safepath.ErrExtensionNotAllowed):
		return http.StatusBadRequest

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case auth.IsAuthError(err):
		return "Invalid or missing API key"

	case errors.Is(err, task.ErrQueueFull):
		return "The task queue is full. Try again later."

	case errors.Is(err, task.ErrQueueClosed):
		return "The service is shutting down. Try again later."

	case errors.Is(err, task.ErrTaskNotFound),
		errors.Is(err, artifact.ErrArtifactNotFound):
		return "Task ID not found or has expired."

	case errors.Is(err, generation.ErrProviderUnknown):
		return "Elevation provider with this code not found"

	case errors.Is(err, generation.ErrKindUnknown):
		return "Unknown generation kind"

	case errors.Is(err, safepath.ErrUnsafeFilename),
		errors.Is(err, safepath.ErrOutsideRoot):
		return "Invalid file name"

	case errors.Is(err, safepath.ErrExtensionNotAllowed):
		return "File extension not allowed"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	// Check if this is likely a validation error message
	if strings.Contains(errMsg, "Field validation") {
		// Extract the field name and validation tag
		// Example format: "Key: 'GenerateRequest.Lat' Error:Field validation for 'Lat' failed on the 'gte' tag"
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}

				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	// Fall back to a generic validation error message
	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min", "gte":
		return "value too small"
	case "max", "lte":
		return "value too large"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
