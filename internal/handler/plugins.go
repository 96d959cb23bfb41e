package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/orbitdesk-ai/support-platform/internal/auth"
	"github.com/orbitdesk-ai/support-platform/internal/model"
	"github.com/orbitdesk-ai/support-platform/internal/service"
	"github.com/orbitdesk-ai/support-platform/pkg/errcode"
	"github.com/orbitdesk-ai/support-platform/pkg/logger"
)

// PluginHandler serves the dashboard plugin configuration endpoints.
type PluginHandler struct {
	service *service.PluginService
	logger  *logger.Logger
}

// NewPluginHandler creates a new plugin handler.
func NewPluginHandler(svc *service.PluginService, log *logger.Logger) *PluginHandler {
	return &PluginHandler{
		service: svc,
		logger:  log,
	}
}

// Upsert handles PUT /api/v1/plugins/{service}
func (h *PluginHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := auth.FromContext(ctx)
	if !ok {
		writeError(w, errcode.New(errcode.CodeUnauthenticated, "authentication required"))
		return
	}

	var req model.UpsertPluginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	status, err := h.service.Upsert(ctx, caller.OrgID, model.PluginService(chi.URLParam(r, "service")), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Status handles GET /api/v1/plugins/{service}
func (h *PluginHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := auth.FromContext(ctx)
	if !ok {
		writeError(w, errcode.New(errcode.CodeUnauthenticated, "authentication required"))
		return
	}

	status, err := h.service.Status(ctx, caller.OrgID, model.PluginService(chi.URLParam(r, "service")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Delete handles DELETE /api/v1/plugins/{service}
func (h *PluginHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := auth.FromContext(ctx)
	if !ok {
		writeError(w, errcode.New(errcode.CodeUnauthenticated, "authentication required"))
		return
	}

	if err := h.service.Delete(ctx, caller.OrgID, model.PluginService(chi.URLParam(r, "service"))); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
