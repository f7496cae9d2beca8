package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/atlas-api/internal/api/shared"
	"github.com/phrazzld/atlas-api/internal/generation"
)

// ProviderHandler serves the elevation provider catalog.
type ProviderHandler struct {
	catalog *generation.Catalog
	logger  *slog.Logger
}

// NewProviderHandler creates a new ProviderHandler
func NewProviderHandler(catalog *generation.Catalog, logger *slog.Logger) *ProviderHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ProviderHandler")
	}

	return &ProviderHandler{
		catalog: catalog,
		logger:  logger.With(slog.String("component", "provider_handler")),
	}
}

// ListProviders handles POST /providers/list requests. The response is a
// bare array of provider records.
func (h *ProviderHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	var req LatLonRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	// TODO(catalog-coverage): filter by provider coverage once the catalog
	// carries extent polygons. Until then the coordinates are validated but
	// every provider is returned.
	shared.RespondWithJSON(w, r, http.StatusOK, h.catalog.List())
}

// GetProviderInfo handles POST /providers/info requests.
func (h *ProviderHandler) GetProviderInfo(w http.ResponseWriter, r *http.Request) {
	var req ProviderInfoRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	provider, err := h.catalog.Lookup(req.Code)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ProviderInfoResponse{
		Valid:    true,
		Provider: provider,
	})
}
