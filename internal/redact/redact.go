// Package redact strips sensitive material from strings before they are
// logged or echoed in error responses: API keys, credential assignments,
// and filesystem paths.
package redact

import (
	"regexp"
)

// Redaction placeholders
const (
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
)

// Precompiled patterns
var (
	// apiKeyRegex matches the two-segment key wire format
	// (base64url identity dot hex signature).
	apiKeyRegex = regexp.MustCompile(`\b[A-Za-z0-9_-]{2,}\.[0-9a-f]{32}\b`)

	// bearerRegex matches Authorization header values however they were
	// interpolated into a message.
	bearerRegex = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_\-.~+/=]+`)

	// credentialRegex matches key/secret/token assignments in config dumps
	// and wrapped errors.
	credentialRegex = regexp.MustCompile(
		`(?i)(secret|token|password|api[_-]?key|access[_-]?key)(['"\s:=]+)[^'"&\s]{4,}`,
	)

	// awsKeyRegex matches AWS-style access key ids used by the S3 backend.
	awsKeyRegex = regexp.MustCompile(`\bAKIA[A-Z0-9]{12,}\b`)

	// unixPathRegex matches multi-component absolute paths, which reveal
	// storage layout.
	unixPathRegex = regexp.MustCompile(`(/[\w.-]+){2,}`)

	patternPlaceholders = []struct {
		pattern     *regexp.Regexp
		placeholder string
	}{
		{apiKeyRegex, RedactedKeyPlaceholder},
		{bearerRegex, RedactedKeyPlaceholder},
		{credentialRegex, RedactedCredentialPlaceholder},
		{awsKeyRegex, RedactedKeyPlaceholder},
		{unixPathRegex, RedactedPathPlaceholder},
	}
)

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}
	result := input
	for _, p := range patternPlaceholders {
		result = p.pattern.ReplaceAllString(result, p.placeholder)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

// Key returns a loggable form of an API key: the first four characters
// followed by an ellipsis. Short keys are fully masked.
func Key(apiKey string) string {
	if len(apiKey) <= 8 {
		return "****"
	}
	return apiKey[:4] + "****"
}
