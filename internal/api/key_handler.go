package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/atlas-api/internal/api/shared"
	"github.com/phrazzld/atlas-api/internal/auth"
	"github.com/phrazzld/atlas-api/internal/redact"
)

// KeyHandler answers key validation probes. The route is public: the
// response never reveals more than whether the presented key works.
type KeyHandler struct {
	keys   auth.KeyValidator
	logger *slog.Logger
}

// NewKeyHandler creates a new KeyHandler
func NewKeyHandler(keys auth.KeyValidator, logger *slog.Logger) *KeyHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for KeyHandler")
	}

	return &KeyHandler{
		keys:   keys,
		logger: logger.With(slog.String("component", "key_handler")),
	}
}

// ValidateKey handles POST /keys/validate requests. The key to check rides
// in the Authorization header so it never appears in a body or URL.
func (h *KeyHandler) ValidateKey(w http.ResponseWriter, r *http.Request) {
	key, ok := bearerToken(r)
	if !ok {
		shared.RespondWithJSON(w, r, http.StatusUnauthorized, KeyValidationResponse{Valid: false})
		return
	}

	identity, err := h.keys.Validate(key)
	if err != nil {
		h.logger.Debug("key validation failed", slog.String("error", redact.Error(err)))
		shared.RespondWithJSON(w, r, http.StatusUnauthorized, KeyValidationResponse{Valid: false})
		return
	}

	resp := KeyValidationResponse{Valid: true}
	if identity.Service {
		resp.Service = true
	} else {
		resp.UserID = identity.UserID
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
