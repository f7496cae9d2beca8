package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/atlas-api/internal/api/shared"
	"github.com/phrazzld/atlas-api/internal/auth"
	"github.com/phrazzld/atlas-api/internal/metrics"
	"github.com/phrazzld/atlas-api/internal/redact"
)

// AuthMiddleware provides API key authentication for routes.
type AuthMiddleware struct {
	keys    auth.KeyValidator
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware with the given dependencies.
// metrics may be nil, which disables failure counting.
func NewAuthMiddleware(keys auth.KeyValidator, m *metrics.Metrics, logger *slog.Logger) *AuthMiddleware {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for AuthMiddleware")
	}

	return &AuthMiddleware{
		keys:    keys,
		metrics: m,
		logger:  logger.With(slog.String("component", "auth_middleware")),
	}
}

// Authenticate validates the API key from the Authorization header and
// adds the caller identity to the request context for authorized requests.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.reject(w, r, "Authorization header required", nil)
			return
		}

		key, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || key == "" {
			m.reject(w, r, "Invalid authorization format", nil)
			return
		}

		identity, err := m.keys.Validate(key)
		if err != nil {
			m.reject(w, r, "Invalid or missing API key", err)
			return
		}

		next.ServeHTTP(w, r.WithContext(shared.WithIdentity(r.Context(), identity)))
	})
}

// reject answers an unauthenticated request. A structurally valid key with
// a bad signature is logged louder than an everyday missing header: it
// means a forgery attempt or a secret mismatch between deployments.
func (m *AuthMiddleware) reject(w http.ResponseWriter, r *http.Request, message string, err error) {
	if m.metrics != nil {
		m.metrics.AuthFailures.Inc()
	}

	if err != nil && errors.Is(err, auth.ErrInvalidKey) {
		shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, message, err,
			shared.WithElevatedLogLevel())
		return
	}

	if err != nil {
		m.logger.Debug("authentication failed", slog.String("error", redact.Error(err)))
	}
	shared.RespondWithError(w, r, http.StatusUnauthorized, message)
}

// GetIdentity extracts the caller identity from the request context.
// Returns the identity and a boolean indicating if it was found.
func GetIdentity(r *http.Request) (auth.Identity, bool) {
	return shared.IdentityFrom(r.Context())
}
