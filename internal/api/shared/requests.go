package shared

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Package-wide validator, shared by every handler.
var validate = validator.New()

// DecodeJSON decodes the request body into the given struct. Unknown
// fields are ignored, matching what clients of earlier releases expect.
func DecodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// ValidateRequest validates the given struct using the validator package.
// A type providing its own Validate method takes precedence over the
// struct tags.
func ValidateRequest(v interface{}) error {
	if validator, ok := v.(interface{ Validate() error }); ok {
		return validator.Validate()
	}
	return validate.Struct(v)
}
