package api

import (
	"net/http"
	"strings"

	"github.com/phrazzld/atlas-api/internal/api/shared"
	"github.com/phrazzld/atlas-api/internal/auth"
)

// identityFromContext extracts the authenticated identity placed in the
// request context by the authentication middleware.
func identityFromContext(r *http.Request) (auth.Identity, bool) {
	return shared.IdentityFrom(r.Context())
}

// bearerToken extracts the credential from an Authorization header of the
// form "Bearer <token>". The second return is false when the header is
// absent or not in bearer form.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}
