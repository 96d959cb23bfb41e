// Package handler provides HTTP handlers for the API.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/orbitdesk-ai/support-platform/internal/auth"
	"github.com/orbitdesk-ai/support-platform/internal/middleware"
	"github.com/orbitdesk-ai/support-platform/internal/model"
	"github.com/orbitdesk-ai/support-platform/internal/service"
	"github.com/orbitdesk-ai/support-platform/pkg/errcode"
	"github.com/orbitdesk-ai/support-platform/pkg/logger"
)

// ConversationHandler serves the dashboard conversation endpoints.
type ConversationHandler struct {
	service *service.ConversationService
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(svc *service.ConversationService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: svc,
		logger:  log,
	}
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := auth.FromContext(ctx)
	if !ok {
		writeError(w, errcode.New(errcode.CodeUnauthenticated, "authentication required"))
		return
	}

	var status *model.ConversationStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := model.ConversationStatus(s)
		status = &st
	}

	resp, err := h.service.List(ctx, caller, status, r.URL.Query().Get("cursor"), queryInt(r, "limit"))
	if err != nil {
		h.logger.Error("failed to list conversations", zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/conversations/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := auth.FromContext(ctx)
	if !ok {
		writeError(w, errcode.New(errcode.CodeUnauthenticated, "authentication required"))
		return
	}

	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateID(conversationID); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	conv, err := h.service.Get(ctx, caller, conversationID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// Escalate handles POST /api/v1/conversations/{id}/escalate
func (h *ConversationHandler) Escalate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Escalate)
}

// Resolve handles POST /api/v1/conversations/{id}/resolve
func (h *ConversationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Resolve)
}

func (h *ConversationHandler) transition(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, orgID, id string) (*model.Conversation, error)) {
	ctx := r.Context()
	caller, ok := auth.FromContext(ctx)
	if !ok {
		writeError(w, errcode.New(errcode.CodeUnauthenticated, "authentication required"))
		return
	}

	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateID(conversationID); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	// Ownership check first so cross-tenant ids read as missing.
	if _, err := h.service.Get(ctx, caller, conversationID); err != nil {
		writeError(w, err)
		return
	}

	conv, err := apply(ctx, caller.OrgID, conversationID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}
