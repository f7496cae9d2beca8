package auth

import "errors"

// Common key validation errors
var (
	// ErrMalformedKey indicates the key does not have the expected
	// two-segment structure or its identity segment cannot be decoded
	ErrMalformedKey = errors.New("malformed API key")

	// ErrInvalidKey indicates a structurally valid key whose signature
	// does not match the configured secret
	ErrInvalidKey = errors.New("invalid API key")

	// ErrMissingKey indicates a key was expected but not provided
	ErrMissingKey = errors.New("API key is missing")
)

// IsAuthError reports whether err belongs to the key validation taxonomy.
// Handlers use it to distinguish authentication failures from internal ones.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrMalformedKey) ||
		errors.Is(err, ErrInvalidKey) ||
		errors.Is(err, ErrMissingKey)
}
