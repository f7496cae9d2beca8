package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/phrazzld/atlas-api/internal/api/shared"
	"github.com/phrazzld/atlas-api/internal/generation"
	"github.com/phrazzld/atlas-api/internal/safepath"
	"github.com/phrazzld/atlas-api/internal/task"
)

// GenerateHandler accepts generation submissions for every asset route.
type GenerateHandler struct {
	tasks   TaskService
	catalog *generation.Catalog
	logger  *slog.Logger
}

// NewGenerateHandler creates a new GenerateHandler
func NewGenerateHandler(
	tasks TaskService,
	catalog *generation.Catalog,
	logger *slog.Logger,
) *GenerateHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for GenerateHandler")
	}

	return &GenerateHandler{
		tasks:   tasks,
		catalog: catalog,
		logger:  logger.With(slog.String("component", "generate_handler")),
	}
}

// Submit returns the handler for one generation route. The kind and asset
// list belong to the route; a client-supplied assets value is discarded.
func (h *GenerateHandler) Submit(kind generation.Kind, assets ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := identityFromContext(r)
		if !ok {
			h.logger.Warn("identity not found in request context")
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid or missing API key")
			return
		}

		var req generation.GenerateRequest
		if err := shared.DecodeJSON(r, &req); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
			return
		}
		if err := shared.ValidateRequest(&req); err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
			return
		}
		if err := req.CheckSize(); err != nil {
			// The message names only the offending value, safe to echo.
			shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
			return
		}

		if req.CustomElevation != "" {
			if err := safepath.CheckFilename(req.CustomElevation); err != nil {
				shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
				return
			}
		}

		if req.Provider == "" {
			req.Provider = generation.DefaultProviderCode
		}
		if _, err := h.catalog.Lookup(req.Provider); err != nil {
			shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
			return
		}

		req.Assets = assets

		payload, err := json.Marshal(&req)
		if err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
				"An unexpected error occurred", err)
			return
		}

		taskID, err := h.tasks.Submit(r.Context(), task.Submission{
			Kind:    kind,
			Owner:   identity.String(),
			Request: payload,
		})
		if err != nil {
			shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
			return
		}

		h.logger.Debug("task submitted",
			slog.String("task_id", taskID),
			slog.String("kind", string(kind)),
			slog.String("owner", identity.String()))

		shared.RespondWithJSON(w, r, http.StatusAccepted, shared.StatusResponse{
			Success:     true,
			Description: SubmitAcceptedDescription,
			TaskID:      taskID,
		})
	}
}
